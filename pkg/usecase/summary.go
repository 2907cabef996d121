package usecase

import (
	"context"
	_ "embed"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
)

//go:embed prompts/failure_summary_system.md
var failureSummarySystemPrompt string

//go:embed prompts/failure_summary_user.md
var failureSummaryUserTemplate string

// maxSummaryOutput caps the step output passed to the model.
const maxSummaryOutput = 8192

// failureSummarizer asks an LLM to explain why a step failed.
type failureSummarizer struct {
	llm gollem.LLMClient
}

// NewFailureSummarizer creates a Summarizer backed by an LLM client.
func NewFailureSummarizer(llm gollem.LLMClient) interfaces.Summarizer {
	return &failureSummarizer{llm: llm}
}

// SummarizeFailure renders the failed step into a prompt and parses the
// structured analysis out of the JSON response.
func (d *failureSummarizer) SummarizeFailure(ctx context.Context, failure *model.StepFailure) (*model.FailureSummary, error) {
	tmpl, err := template.New("failure_summary").Parse(failureSummaryUserTemplate)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse prompt template")
	}

	data := map[string]any{
		"Pipeline": failure.Pipeline,
		"Step":     failure.Step,
		"Tag":      failure.Tag,
		"ExitCode": failure.ExitCode,
		"Output":   tailOutput(failure.Output, maxSummaryOutput),
	}
	var userPrompt strings.Builder
	if err := tmpl.Execute(&userPrompt, data); err != nil {
		return nil, goerr.Wrap(err, "failed to render prompt template")
	}

	session, err := d.llm.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionSystemPrompt(failureSummarySystemPrompt),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(userPrompt.String()))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate failure summary")
	}
	if len(resp.Texts) == 0 {
		return nil, goerr.New("no response from LLM")
	}

	var summary model.FailureSummary
	if err := json.Unmarshal([]byte(resp.Texts[0]), &summary); err != nil {
		return nil, goerr.Wrap(err, "failed to parse LLM response",
			goerr.V("response", resp.Texts[0]),
		)
	}
	if summary.Title == "" {
		return nil, goerr.New("LLM response has no title", goerr.V("response", resp.Texts[0]))
	}

	return &summary, nil
}

func tailOutput(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return "...(truncated)...\n" + s[len(s)-limit:]
}
