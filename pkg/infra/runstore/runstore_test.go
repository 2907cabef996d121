package runstore_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
	"github.com/m-mizutani/drover/pkg/infra/runstore"
)

func testRun(id string, started time.Time, status types.RunStatus) *model.Run {
	return &model.Run{
		ID:       types.RunID(id),
		Pipeline: "publish",
		Event: model.PushEvent{
			Owner: "m-mizutani",
			Repo:  "drover",
			Ref:   "refs/tags/v1.0.0",
			SHA:   "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2",
		},
		Status: status,
		Steps: []model.StepResult{
			{Name: "test", Combination: "python=3.12", Status: types.StepStatusSucceeded, Wall: time.Second},
		},
		StartedAt: started,
	}
}

func TestRunStore(t *testing.T) {
	backends := []struct {
		name  string
		setup func(t *testing.T) interfaces.RunStore
	}{
		{
			name: "memory",
			setup: func(t *testing.T) interfaces.RunStore {
				return runstore.NewMemory()
			},
		},
		{
			name: "sqlite",
			setup: func(t *testing.T) interfaces.RunStore {
				store, err := runstore.NewSQLite(filepath.Join(t.TempDir(), "data", "runs.db"))
				gt.NoError(t, err)
				return store
			},
		},
	}

	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			ctx := context.Background()
			store := backend.setup(t)
			defer func() {
				_ = store.Close()
			}()

			base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
			gt.NoError(t, store.Put(ctx, testRun("run-1", base, types.RunStatusSucceeded)))
			gt.NoError(t, store.Put(ctx, testRun("run-2", base.Add(time.Minute), types.RunStatusFailed)))
			gt.NoError(t, store.Put(ctx, testRun("run-3", base.Add(2*time.Minute), types.RunStatusRunning)))

			t.Run("get", func(t *testing.T) {
				run, err := store.Get(ctx, "run-2")
				gt.NoError(t, err)
				gt.Equal(t, run.ID, types.RunID("run-2"))
				gt.Equal(t, run.Status, types.RunStatusFailed)
				gt.Equal(t, run.Event.Repo, "drover")
				gt.Equal(t, len(run.Steps), 1)
				gt.Equal(t, run.Steps[0].Combination, "python=3.12")
			})

			t.Run("get unknown run", func(t *testing.T) {
				_, err := store.Get(ctx, "no-such-run")
				gt.Error(t, err)
				gt.True(t, errors.Is(err, types.ErrRunNotFound))
			})

			t.Run("list newest first", func(t *testing.T) {
				runs, err := store.List(ctx, 0)
				gt.NoError(t, err)
				gt.Equal(t, len(runs), 3)
				gt.Equal(t, runs[0].ID, types.RunID("run-3"))
				gt.Equal(t, runs[2].ID, types.RunID("run-1"))
			})

			t.Run("list with limit", func(t *testing.T) {
				runs, err := store.List(ctx, 2)
				gt.NoError(t, err)
				gt.Equal(t, len(runs), 2)
				gt.Equal(t, runs[0].ID, types.RunID("run-3"))
			})

			t.Run("put updates existing run", func(t *testing.T) {
				updated := testRun("run-3", base.Add(2*time.Minute), types.RunStatusSucceeded)
				updated.EndedAt = base.Add(3 * time.Minute)
				gt.NoError(t, store.Put(ctx, updated))

				run, err := store.Get(ctx, "run-3")
				gt.NoError(t, err)
				gt.Equal(t, run.Status, types.RunStatusSucceeded)

				runs, err := store.List(ctx, 0)
				gt.NoError(t, err)
				gt.Equal(t, len(runs), 3)
			})

			t.Run("stored run is a snapshot", func(t *testing.T) {
				run := testRun("run-4", base.Add(time.Hour), types.RunStatusRunning)
				gt.NoError(t, store.Put(ctx, run))
				run.Status = types.RunStatusFailed
				run.Steps[0].Status = types.StepStatusFailed

				stored, err := store.Get(ctx, "run-4")
				gt.NoError(t, err)
				gt.Equal(t, stored.Status, types.RunStatusRunning)
				gt.Equal(t, stored.Steps[0].Status, types.StepStatusSucceeded)
			})
		})
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	store, err := runstore.NewSQLite(path)
	gt.NoError(t, err)
	started := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	gt.NoError(t, store.Put(ctx, testRun("run-1", started, types.RunStatusSucceeded)))
	gt.NoError(t, store.Close())

	reopened, err := runstore.NewSQLite(path)
	gt.NoError(t, err)
	defer func() {
		_ = reopened.Close()
	}()

	run, err := reopened.Get(ctx, "run-1")
	gt.NoError(t, err)
	gt.Equal(t, run.Status, types.RunStatusSucceeded)
	gt.True(t, run.StartedAt.Equal(started))
}
