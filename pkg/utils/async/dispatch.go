package async

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/m-mizutani/ctxlog"
)

// Dispatch executes a handler function asynchronously with proper context and panic recovery
//
// Parameters:
//   - ctx: Original context (values will be preserved, but cancellation won't affect the async handler)
//   - handler: Function to execute asynchronously
//
// Behavior:
//   - Creates a new background context with preserved logger
//   - Executes handler in a new goroutine
//   - Recovers from panics and logs them
//   - Logs errors returned by handler
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	go run(newBackgroundContext(ctx), handler)
}

// Tracker dispatches handlers like Dispatch while counting in-flight work,
// so a server can drain dispatched pipeline runs before exiting.
type Tracker struct {
	wg sync.WaitGroup
}

// Dispatch executes a handler asynchronously and tracks its completion
func (x *Tracker) Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	x.wg.Add(1)
	newCtx := newBackgroundContext(ctx)
	go func() {
		defer x.wg.Done()
		run(newCtx, handler)
	}()
}

// Wait blocks until every dispatched handler has returned, or the context
// is canceled.
func (x *Tracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		x.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func run(ctx context.Context, handler func(ctx context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			logger := ctxlog.From(ctx)
			logger.Error("panic in async handler",
				"recover", r,
				"stack", string(stack))
		}
	}()

	if err := handler(ctx); err != nil {
		logger := ctxlog.From(ctx)
		logger.Error("error in async handler", "error", err)
	}
}

// newBackgroundContext creates a new background context preserving important values
//
// Preserved values:
//   - ctxlog logger
//
// Returns: New context.Background() with preserved values
func newBackgroundContext(ctx context.Context) context.Context {
	newCtx := context.Background()
	newCtx = ctxlog.With(newCtx, ctxlog.From(ctx))
	return newCtx
}
