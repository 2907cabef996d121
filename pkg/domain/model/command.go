package model

import "time"

// Command describes one shell command execution prepared for a step.
type Command struct {
	Script  string        // Handed to the shell via -c
	Dir     string        // Working directory
	Env     []string      // Full environment in KEY=VALUE form
	Timeout time.Duration // Zero means no limit
}

// CommandResult carries what the runner measured. Output holds the tail of
// the combined stdout and stderr; secret values are redacted before the
// result is recorded.
type CommandResult struct {
	ExitCode int
	Output   string
	Wall     time.Duration
	CPU      time.Duration
}
