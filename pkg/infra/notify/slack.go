package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

type slackNotifier struct {
	client *slack.Client
}

// NewSlack creates a Notifier that posts run results to Slack. Extra
// options are passed through to the Slack client, which tests use to
// point it at a fake API.
func NewSlack(token string, opts ...slack.Option) interfaces.Notifier {
	return &slackNotifier{client: slack.New(token, opts...)}
}

// NotifyRun posts one message per finished run. An empty channel disables
// notification without error so pipelines can leave notify unset.
func (x *slackNotifier) NotifyRun(ctx context.Context, channel string, run *model.Run) error {
	if channel == "" {
		return nil
	}

	color := "good"
	title := fmt.Sprintf("Published %s %s", run.Event.FullRepo(), run.Event.Tag())
	switch run.Status {
	case types.RunStatusFailed:
		color = "danger"
		title = fmt.Sprintf("Release pipeline failed for %s %s", run.Event.FullRepo(), run.Event.Tag())
	case types.RunStatusSkipped:
		color = "warning"
		title = fmt.Sprintf("Release run skipped for %s %s", run.Event.FullRepo(), run.Event.Tag())
	}

	fields := []slack.AttachmentField{
		{Title: "Run", Value: run.ID.String(), Short: true},
		{Title: "Duration", Value: run.Duration().Round(time.Millisecond).String(), Short: true},
	}
	if run.Error != "" {
		fields = append(fields, slack.AttachmentField{Title: "Error", Value: run.Error})
	}
	if run.Summary != nil {
		fields = append(fields, slack.AttachmentField{Title: "Analysis", Value: run.Summary.Cause})
		if len(run.Summary.Suggestions) > 0 {
			fields = append(fields, slack.AttachmentField{
				Title: "Suggestions",
				Value: "- " + strings.Join(run.Summary.Suggestions, "\n- "),
			})
		}
	}

	attachment := slack.Attachment{
		Color:  color,
		Title:  title,
		Fields: fields,
	}

	_, _, err := x.client.PostMessageContext(ctx, channel, slack.MsgOptionAttachments(attachment))
	if err != nil {
		return goerr.Wrap(err, "failed to post slack message", goerr.V("channel", channel))
	}
	return nil
}
