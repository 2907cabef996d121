package types

import "github.com/google/uuid"

// RunID identifies a single pipeline run.
type RunID string

// NewRunID issues a random run ID.
func NewRunID() RunID {
	return RunID(uuid.New().String())
}

func (x RunID) String() string {
	return string(x)
}
