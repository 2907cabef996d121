package types

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrRunNotFound is returned by run stores when no run matches the
	// requested ID.
	ErrRunNotFound = goerr.New("run not found")

	// ErrStepFailed is returned by the runner when a step command exits
	// with a non-zero status.
	ErrStepFailed = goerr.New("step failed")
)
