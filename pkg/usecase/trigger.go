package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

// HandlePush runs the pipeline for a tag push event. It returns nil
// without error when the event does not trigger the pipeline (not a tag
// push, or the tag matches no trigger pattern). The returned run is
// always persisted, including skipped and failed ones.
func (x *UseCase) HandlePush(ctx context.Context, event *model.PushEvent) (*model.Run, error) {
	logger := ctxlog.From(ctx)

	// Snapshot the definition so a concurrent reload cannot change the
	// rules mid-run.
	pipeline := x.Pipeline()

	if !event.IsTagPush() {
		logger.Debug("Ignoring push event that is not a tag push",
			"ref", event.Ref,
			"deleted", event.Deleted,
		)
		return nil, nil
	}

	tag := event.Tag()
	if !pipeline.Matches(tag) {
		logger.Info("Tag does not match trigger patterns",
			"tag", tag,
			"patterns", pipeline.On.Tags,
		)
		return nil, nil
	}

	if event.DeliveryID != "" && x.seenDelivery(event.DeliveryID) {
		logger.Info("Ignoring duplicate webhook delivery",
			"delivery_id", event.DeliveryID,
			"tag", tag,
		)
		return nil, nil
	}

	run := &model.Run{
		ID:        types.NewRunID(),
		Pipeline:  pipeline.Name,
		Event:     *event,
		Status:    types.RunStatusQueued,
		StartedAt: time.Now(),
	}

	logger = logger.With("run_id", run.ID, "tag", tag, "repo", event.FullRepo())
	ctx = ctxlog.With(ctx, logger)

	group := pipeline.Concurrency.Group
	gate := x.gate(group)

	if pipeline.Concurrency.Policy == model.PolicySkip {
		if !gate.TryAcquire(1) {
			logger.Warn("Skipping run because the concurrency group is busy", "group", group)
			run.Status = types.RunStatusSkipped
			run.Error = "concurrency group is busy"
			run.EndedAt = time.Now()
			x.persist(ctx, run)
			x.notify(ctx, pipeline, run)
			return run, nil
		}
	} else {
		logger.Debug("Waiting for concurrency group", "group", group)
		if err := gate.Acquire(ctx, 1); err != nil {
			return nil, goerr.Wrap(err, "canceled while waiting for concurrency group", goerr.V("group", group))
		}
	}
	defer gate.Release(1)

	x.active.Add(1)
	defer x.active.Add(-1)

	run.Status = types.RunStatusRunning
	x.persist(ctx, run)
	x.reportPending(ctx, run)

	logger.Info("Starting pipeline run",
		"pipeline", pipeline.Name,
		"combinations", len(pipeline.Matrix.Expand()),
		"steps", len(pipeline.Steps),
		"release_steps", len(pipeline.Release),
	)

	execErr := x.executeRun(ctx, pipeline, run)

	run.EndedAt = time.Now()
	if execErr != nil {
		run.Status = types.RunStatusFailed
		run.Error = execErr.Error()
	} else {
		run.Status = types.RunStatusSucceeded
	}
	x.persist(ctx, run)

	if execErr != nil {
		x.summarize(ctx, run)
	}
	x.reportResult(ctx, run)
	x.notify(ctx, pipeline, run)

	if execErr != nil {
		logger.Error("Pipeline run failed",
			"error", execErr,
			"duration", run.Duration(),
		)
		return run, execErr
	}

	logger.Info("Pipeline run succeeded",
		"duration", run.Duration(),
		"artifacts", len(run.Artifacts),
	)
	return run, nil
}

// maxSeenDeliveries bounds the redelivery window. GitHub redeliveries
// arrive within minutes, so a small window is enough.
const maxSeenDeliveries = 256

// seenDelivery records a webhook delivery ID and reports whether it was
// seen before. GitHub reuses the ID when a delivery is redelivered, so a
// duplicate means this push was already handled.
func (x *UseCase) seenDelivery(id string) bool {
	x.seenMu.Lock()
	defer x.seenMu.Unlock()

	if _, ok := x.seen[id]; ok {
		return true
	}
	x.seen[id] = struct{}{}
	x.seenOrder = append(x.seenOrder, id)
	if len(x.seenOrder) > maxSeenDeliveries {
		delete(x.seen, x.seenOrder[0])
		x.seenOrder = x.seenOrder[1:]
	}
	return false
}

// summarize asks the LLM for a failure analysis and attaches it to the
// run. Analysis failures are logged but never fail the run handling.
func (x *UseCase) summarize(ctx context.Context, run *model.Run) {
	if x.summarizer == nil {
		return
	}

	failed := lastFailedStep(run)
	if failed == nil {
		return
	}

	summary, err := x.summarizer.SummarizeFailure(ctx, &model.StepFailure{
		Pipeline: run.Pipeline,
		Step:     failed.Name,
		Tag:      run.Event.Tag(),
		ExitCode: failed.ExitCode,
		Output:   failed.Output,
	})
	if err != nil {
		ctxlog.From(ctx).Warn("Failed to summarize run failure", "error", err)
		return
	}

	run.Summary = summary
	x.persist(ctx, run)
}

func lastFailedStep(run *model.Run) *model.StepResult {
	for i := len(run.Steps) - 1; i >= 0; i-- {
		if run.Steps[i].Status == types.StepStatusFailed {
			return &run.Steps[i]
		}
	}
	return nil
}

func (x *UseCase) reportPending(ctx context.Context, run *model.Run) {
	if x.status == nil {
		return
	}
	if err := x.status.ReportPending(ctx, &run.Event, run.ID); err != nil {
		ctxlog.From(ctx).Warn("Failed to report pending status", "error", err)
	}
}

func (x *UseCase) reportResult(ctx context.Context, run *model.Run) {
	if x.status == nil {
		return
	}
	if err := x.status.ReportResult(ctx, &run.Event, run); err != nil {
		ctxlog.From(ctx).Warn("Failed to report commit status", "error", err)
	}
}

func (x *UseCase) notify(ctx context.Context, pipeline *model.Pipeline, run *model.Run) {
	if x.notifier == nil {
		return
	}
	if err := x.notifier.NotifyRun(ctx, pipeline.Notify.Slack, run); err != nil {
		ctxlog.From(ctx).Warn("Failed to send run notification", "error", err)
	}
}

// persist stores the current run state. Storage errors are logged so a
// broken store does not abort a running pipeline.
func (x *UseCase) persist(ctx context.Context, run *model.Run) {
	if err := x.store.Put(ctx, run); err != nil {
		ctxlog.From(ctx).Error("Failed to store run", "error", err, "run_id", run.ID)
	}
}
