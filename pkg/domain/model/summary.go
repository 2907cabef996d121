package model

// FailureSummary represents the result of LLM-based failure analysis
type FailureSummary struct {
	Title       string   `json:"title"`
	Cause       string   `json:"cause"`
	Suggestions []string `json:"suggestions"`
}

// StepFailure holds the context handed to the summarizer when a run fails
type StepFailure struct {
	Pipeline string
	Step     string
	Tag      string
	ExitCode int
	Output   string
}
