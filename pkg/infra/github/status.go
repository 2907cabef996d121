package github

import (
	"context"
	"fmt"

	"github.com/google/go-github/v75/github"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

// statusContext labels drover's commit statuses in the GitHub UI.
const statusContext = "drover/publish"

type statusReporter struct {
	client  interfaces.GitHubClient
	baseURL string
}

// StatusOption customizes the status reporter.
type StatusOption func(*statusReporter)

// WithRunBaseURL makes statuses link to the run detail API of the given
// drover instance.
func WithRunBaseURL(baseURL string) StatusOption {
	return func(x *statusReporter) {
		x.baseURL = baseURL
	}
}

// NewStatusReporter creates a StatusReporter that mirrors run progress as
// commit statuses on the pushed tag's commit.
func NewStatusReporter(client interfaces.GitHubClient, opts ...StatusOption) interfaces.StatusReporter {
	reporter := &statusReporter{client: client}
	for _, opt := range opts {
		opt(reporter)
	}
	return reporter
}

func (x *statusReporter) ReportPending(ctx context.Context, event *model.PushEvent, id types.RunID) error {
	status := &github.RepoStatus{
		State:       github.Ptr("pending"),
		Context:     github.Ptr(statusContext),
		Description: github.Ptr(fmt.Sprintf("publishing %s", event.Tag())),
	}
	x.attachTarget(status, id)

	_, _, err := x.client.CreateStatus(ctx, event.Owner, event.Repo, event.SHA, status)
	return err
}

func (x *statusReporter) ReportResult(ctx context.Context, event *model.PushEvent, run *model.Run) error {
	state := "success"
	description := fmt.Sprintf("published %s", event.Tag())
	if run.Status == types.RunStatusFailed {
		state = "failure"
		description = run.Error
		if description == "" {
			description = "release pipeline failed"
		}
	}
	// GitHub truncates long descriptions; keep it within the API limit.
	if len(description) > 140 {
		description = description[:137] + "..."
	}

	status := &github.RepoStatus{
		State:       github.Ptr(state),
		Context:     github.Ptr(statusContext),
		Description: github.Ptr(description),
	}
	x.attachTarget(status, run.ID)

	_, _, err := x.client.CreateStatus(ctx, event.Owner, event.Repo, event.SHA, status)
	return err
}

func (x *statusReporter) attachTarget(status *github.RepoStatus, id types.RunID) {
	if x.baseURL != "" {
		status.TargetURL = github.Ptr(x.baseURL + "/api/v1/runs/" + id.String())
	}
}
