package model

import (
	"time"

	"github.com/m-mizutani/drover/pkg/domain/types"
)

// Run is one recorded execution of a pipeline for a single tag push.
type Run struct {
	ID        types.RunID     `json:"id"`
	Pipeline  string          `json:"pipeline"`
	Event     PushEvent       `json:"event"`
	Status    types.RunStatus `json:"status"`
	Steps     []StepResult    `json:"steps"`
	Artifacts []Artifact      `json:"artifacts,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   time.Time       `json:"ended_at,omitzero"`

	// Error holds the message of the failure that ended the run, empty
	// when the run succeeded or was skipped.
	Error string `json:"error,omitempty"`

	// Summary is filled in asynchronously when a summarizer is configured
	// and the run failed.
	Summary *FailureSummary `json:"summary,omitempty"`
}

// Duration returns the wall time of the whole run.
func (x *Run) Duration() time.Duration {
	if x.EndedAt.IsZero() {
		return 0
	}
	return x.EndedAt.Sub(x.StartedAt)
}

// StepResult records the outcome of one step execution. Matrixed steps
// produce one record per combination; release steps have an empty
// Combination.
type StepResult struct {
	Name        string           `json:"name"`
	Combination string           `json:"combination,omitempty"`
	Status      types.StepStatus `json:"status"`
	ExitCode    int              `json:"exit_code"`
	Output      string           `json:"output,omitempty"`
	Wall        time.Duration    `json:"wall_ns"`
	CPU         time.Duration    `json:"cpu_ns"`
	StartedAt   time.Time        `json:"started_at,omitzero"`
}

// Artifact is a build output captured from a step and copied into the
// artifact store.
type Artifact struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}
