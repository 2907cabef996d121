package interfaces

import (
	"context"
	"io"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

// CommandRunner executes step commands in a shell.
type CommandRunner interface {
	Run(ctx context.Context, cmd *model.Command) (*model.CommandResult, error)
}

// RunStore persists pipeline runs. Put is an upsert keyed by run ID so the
// executor can record progress while the run is still moving.
type RunStore interface {
	Put(ctx context.Context, run *model.Run) error
	Get(ctx context.Context, id types.RunID) (*model.Run, error)
	// List returns runs ordered newest first.
	List(ctx context.Context, limit int) ([]*model.Run, error)
	Close() error
}

// ArtifactStore keeps build outputs captured from steps.
type ArtifactStore interface {
	// Save stores the content under the run ID and returns its location.
	Save(ctx context.Context, runID types.RunID, name string, r io.Reader) (string, error)
	// Open reads back a stored artifact by the location Save returned.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// Notifier announces finished runs.
type Notifier interface {
	NotifyRun(ctx context.Context, channel string, run *model.Run) error
}

// StatusReporter reflects run progress onto the pushed commit.
type StatusReporter interface {
	ReportPending(ctx context.Context, event *model.PushEvent, id types.RunID) error
	ReportResult(ctx context.Context, event *model.PushEvent, run *model.Run) error
}

// SecretSource resolves secrets referenced by name in the pipeline. Values
// never appear in the pipeline file itself.
type SecretSource interface {
	// Lookup resolves one secret. ok is false when it is not defined.
	Lookup(name string) (value string, ok bool)
	// Values returns every defined secret value, used to mask step output.
	Values() []string
}

// IndexPublisher talks to the package index.
type IndexPublisher interface {
	// Upload pushes one artifact file to the index using the given token.
	Upload(ctx context.Context, cfg *model.PublishConfig, artifact *model.Artifact, r io.Reader, token string) error
	// MintToken exchanges a signed identity token for a short-lived upload
	// token when trusted publishing is configured.
	MintToken(ctx context.Context, cfg *model.PublishConfig, event *model.PushEvent) (string, error)
}

// Summarizer produces a human-readable failure analysis for a failed run.
type Summarizer interface {
	SummarizeFailure(ctx context.Context, failure *model.StepFailure) (*model.FailureSummary, error)
}
