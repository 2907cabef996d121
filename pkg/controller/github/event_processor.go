package github

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/ctxlog"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/utils/async"
)

// EventProcessor turns GitHub webhook payloads into pipeline triggers
type EventProcessor struct {
	triggerUC interfaces.TriggerUseCase
	tracker   *async.Tracker
}

// NewEventProcessor creates a new GitHub event processor. The tracker is
// optional; when set, dispatched runs can be drained on shutdown.
func NewEventProcessor(triggerUC interfaces.TriggerUseCase, tracker *async.Tracker) *EventProcessor {
	return &EventProcessor{
		triggerUC: triggerUC,
		tracker:   tracker,
	}
}

// ProcessEvent processes a GitHub webhook event
func (p *EventProcessor) ProcessEvent(ctx context.Context, deliveryID, eventType string, payload interface{}) error {
	logger := ctxlog.From(ctx)

	switch eventType {
	case "push":
		return p.processPushEvent(ctx, deliveryID, payload)
	case "ping":
		logger.Info("Received ping event", "delivery_id", deliveryID)
		return nil
	default:
		logger.Info("Ignoring unsupported event type", "event_type", eventType)
		return nil
	}
}

// processPushEvent extracts the push information and dispatches the
// pipeline run. The webhook response does not wait for the run.
func (p *EventProcessor) processPushEvent(ctx context.Context, deliveryID string, payload interface{}) error {
	logger := ctxlog.From(ctx)

	pushEvent, ok := payload.(*github.PushEvent)
	if !ok {
		logger.Warn("Invalid push event payload")
		return nil
	}

	event, err := p.extractPushEvent(deliveryID, pushEvent)
	if err != nil {
		logger.Error("Failed to extract push info", "error", err)
		return err
	}

	if !event.IsTagPush() {
		logger.Debug("Ignoring push that is not a tag push",
			"ref", event.Ref,
			"deleted", event.Deleted,
		)
		return nil
	}

	logger.Info("Dispatching pipeline run for tag push",
		"owner", event.Owner,
		"repo", event.Repo,
		"tag", event.Tag(),
		"sha", event.SHA,
	)

	p.dispatch(ctx, event)
	return nil
}

func (p *EventProcessor) dispatch(ctx context.Context, event *model.PushEvent) {
	handler := func(ctx context.Context) error {
		_, err := p.triggerUC.HandlePush(ctx, event)
		return err
	}
	if p.tracker != nil {
		p.tracker.Dispatch(ctx, handler)
		return
	}
	async.Dispatch(ctx, handler)
}

// extractPushEvent extracts push information from a GitHub push event
func (p *EventProcessor) extractPushEvent(deliveryID string, event *github.PushEvent) (*model.PushEvent, error) {
	if event.GetRepo() == nil {
		return nil, fmt.Errorf("missing repository information in push event")
	}

	// Use Get*() helper methods for concise and nil-safe field access
	owner := event.GetRepo().GetOwner().GetLogin()
	repo := event.GetRepo().GetName()
	ref := event.GetRef()
	sha := event.GetAfter()
	sender := event.GetSender().GetLogin()

	if owner == "" || repo == "" || ref == "" {
		return nil, fmt.Errorf("missing required fields: owner=%s, repo=%s, ref=%s", owner, repo, ref)
	}

	return &model.PushEvent{
		DeliveryID: deliveryID,
		Owner:      owner,
		Repo:       repo,
		Ref:        ref,
		SHA:        sha,
		Sender:     sender,
		Deleted:    event.GetDeleted(),
		InstallID:  event.GetInstallation().GetID(),
		ReceivedAt: time.Now(),
	}, nil
}
