package interfaces

import (
	"context"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

// WebhookUseCase defines the interface for webhook event processing
type WebhookUseCase interface {
	// ProcessEvent processes a webhook event
	ProcessEvent(ctx context.Context, event *model.WebhookEvent) error
}

// TriggerUseCase decides whether a push event starts the pipeline and runs
// it when it does.
type TriggerUseCase interface {
	// HandlePush evaluates the event against the pipeline trigger. When the
	// trigger matches, it executes the pipeline and returns the recorded
	// run. A nil run means the event was ignored.
	HandlePush(ctx context.Context, event *model.PushEvent) (*model.Run, error)
}

// RunQueryUseCase serves recorded runs to the CLI and the HTTP API.
type RunQueryUseCase interface {
	GetRun(ctx context.Context, id types.RunID) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*model.Run, error)
	CountActive(ctx context.Context) (int, error)
}
