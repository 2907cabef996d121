package usecase

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/drover/pkg/domain/model"
)

type webhookUseCase struct{}

// NewWebhook creates a new instance of WebhookUseCase
func NewWebhook() *webhookUseCase {
	return &webhookUseCase{}
}

// ProcessEvent records a webhook event. Push events are handled by the
// trigger use case; everything else is only logged here.
func (uc *webhookUseCase) ProcessEvent(ctx context.Context, event *model.WebhookEvent) error {
	logger := ctxlog.From(ctx)

	logger.Info("Processing webhook event",
		"id", event.ID,
		"type", event.Type,
		"repository", event.Repository,
		"sender", event.Sender,
		"supported", event.IsSupportedEvent(),
	)

	if !event.IsSupportedEvent() {
		logger.Warn("Unsupported event received",
			"type", event.Type,
		)
	}

	return nil
}
