package exec

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

// maxOutputBytes caps how much combined output a step record keeps.
const maxOutputBytes = 64 * 1024

type runner struct {
	shell []string
}

// Option customizes the runner.
type Option func(*runner)

// WithShell overrides the argv prefix used to run step scripts.
func WithShell(argv ...string) Option {
	return func(r *runner) {
		r.shell = argv
	}
}

// New creates a CommandRunner that executes step scripts through the
// platform shell: sh -c on unix, cmd /C on windows.
func New(opts ...Option) interfaces.CommandRunner {
	r := &runner{}
	if runtime.GOOS == "windows" {
		r.shell = []string{"cmd", "/C"}
	} else {
		r.shell = []string{"sh", "-c"}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the command and measures wall clock and CPU time (user plus
// system) of the child process. A non-zero exit or a timeout returns an
// error wrapping types.ErrStepFailed together with the partial result.
func (r *runner) Run(ctx context.Context, cmd *model.Command) (*model.CommandResult, error) {
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	argv := append(append([]string{}, r.shell...), cmd.Script)
	proc := exec.CommandContext(ctx, argv[0], argv[1:]...)
	proc.Dir = cmd.Dir
	proc.Env = cmd.Env

	var buf bytes.Buffer
	proc.Stdout = &buf
	proc.Stderr = &buf

	started := time.Now()
	runErr := proc.Run()

	result := &model.CommandResult{
		Output: tail(buf.Bytes(), maxOutputBytes),
		Wall:   time.Since(started),
	}
	if state := proc.ProcessState; state != nil {
		result.ExitCode = state.ExitCode()
		result.CPU = state.UserTime() + state.SystemTime()
	}

	ctxlog.From(ctx).Debug("command finished",
		"exit_code", result.ExitCode,
		"wall", result.Wall,
		"cpu", result.CPU,
	)

	if runErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return result, goerr.Wrap(types.ErrStepFailed, "command timed out",
				goerr.V("timeout", cmd.Timeout))
		}
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return result, goerr.Wrap(types.ErrStepFailed, "command exited with non-zero status",
				goerr.V("exit_code", result.ExitCode))
		}
		return nil, goerr.Wrap(runErr, "failed to start command")
	}
	return result, nil
}

func tail(b []byte, limit int) string {
	if len(b) <= limit {
		return string(b)
	}
	return "... (truncated)\n" + string(b[len(b)-limit:])
}
