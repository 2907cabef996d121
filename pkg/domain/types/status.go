package types

// RunStatus represents the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"

	// RunStatusSkipped is recorded when the concurrency policy rejects a
	// run instead of queueing it.
	RunStatusSkipped RunStatus = "skipped"
)

// Terminal returns true when the run will not change state anymore.
func (x RunStatus) Terminal() bool {
	switch x {
	case RunStatusSucceeded, RunStatusFailed, RunStatusSkipped:
		return true
	}
	return false
}

// StepStatus represents the outcome of one executed step.
type StepStatus string

const (
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusFailed    StepStatus = "failed"

	// StepStatusSkipped is recorded when a step's condition evaluated to
	// false, or when an earlier step already failed.
	StepStatusSkipped StepStatus = "skipped"
)
