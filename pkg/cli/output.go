package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

var (
	okMark   = color.New(color.FgGreen, color.Bold).Sprint("✔")
	failMark = color.New(color.FgRed, color.Bold).Sprint("✘")
	skipMark = color.New(color.FgYellow).Sprint("○")
	dimText  = color.New(color.Faint).SprintFunc()
)

func runMark(status types.RunStatus) string {
	switch status {
	case types.RunStatusSucceeded:
		return okMark
	case types.RunStatusFailed:
		return failMark
	case types.RunStatusSkipped:
		return skipMark
	default:
		return dimText("·")
	}
}

func stepMark(status types.StepStatus) string {
	switch status {
	case types.StepStatusSucceeded:
		return okMark
	case types.StepStatusFailed:
		return failMark
	default:
		return skipMark
	}
}

// printRun writes a full run report to stdout.
func printRun(run *model.Run) {
	fmt.Printf("%s %s %s %s %s\n",
		runMark(run.Status),
		run.Pipeline,
		color.CyanString(run.Event.Tag()),
		run.Status,
		dimText(fmt.Sprintf("(run %s, %s)", run.ID, formatDuration(run.Duration()))),
	)

	for i := range run.Steps {
		step := &run.Steps[i]
		name := step.Name
		if step.Combination != "" {
			name = fmt.Sprintf("%s [%s]", name, step.Combination)
		}
		switch step.Status {
		case types.StepStatusSkipped:
			fmt.Printf("    %s %s %s\n", stepMark(step.Status), name, dimText("skipped"))
		case types.StepStatusFailed:
			fmt.Printf("    %s %s %s\n", stepMark(step.Status), name,
				color.RedString("exit %d after %s", step.ExitCode, formatDuration(step.Wall)))
		default:
			fmt.Printf("    %s %s %s\n", stepMark(step.Status), name,
				dimText(formatDuration(step.Wall)))
		}
	}

	if len(run.Artifacts) > 0 {
		fmt.Println("  artifacts:")
		for _, artifact := range run.Artifacts {
			fmt.Printf("    %s %s %s\n",
				artifact.Name,
				dimText(fmt.Sprintf("%d bytes", artifact.Size)),
				dimText("sha256:"+shortDigest(artifact.SHA256)),
			)
		}
	}

	if run.Summary != nil {
		fmt.Printf("  analysis: %s\n", color.YellowString(run.Summary.Title))
		if run.Summary.Cause != "" {
			fmt.Printf("    %s\n", run.Summary.Cause)
		}
		for _, suggestion := range run.Summary.Suggestions {
			fmt.Printf("    - %s\n", suggestion)
		}
	}

	if run.Error != "" && run.Status == types.RunStatusFailed {
		fmt.Printf("  error: %s\n", color.RedString(run.Error))
	}
}

// printRunLine writes a one-line run summary for list output.
func printRunLine(run *model.Run) {
	fmt.Printf("%s %s  %-9s %-18s %s %s\n",
		runMark(run.Status),
		run.ID,
		run.Status,
		run.Event.Tag(),
		run.Event.FullRepo(),
		dimText(run.StartedAt.Format(time.RFC3339)),
	)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return d.Round(10 * time.Millisecond).String()
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
