package runstore

import (
	"context"
	"slices"
	"sync"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

type memoryStore struct {
	mu    sync.RWMutex
	runs  map[types.RunID]*model.Run
	order []types.RunID
}

// NewMemory creates an in-process RunStore. Runs are lost on restart, so
// it suits local one-shot runs and tests.
func NewMemory() interfaces.RunStore {
	return &memoryStore{runs: map[types.RunID]*model.Run{}}
}

func (x *memoryStore) Put(ctx context.Context, run *model.Run) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.runs[run.ID]; !ok {
		x.order = append(x.order, run.ID)
	}
	x.runs[run.ID] = cloneRun(run)
	return nil
}

func (x *memoryStore) Get(ctx context.Context, id types.RunID) (*model.Run, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	run, ok := x.runs[id]
	if !ok {
		return nil, types.ErrRunNotFound
	}
	return cloneRun(run), nil
}

func (x *memoryStore) List(ctx context.Context, limit int) ([]*model.Run, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	runs := make([]*model.Run, 0, len(x.order))
	for i := len(x.order) - 1; i >= 0; i-- {
		if limit > 0 && len(runs) >= limit {
			break
		}
		runs = append(runs, cloneRun(x.runs[x.order[i]]))
	}
	return runs, nil
}

func (x *memoryStore) Close() error {
	return nil
}

// cloneRun snapshots a run so callers can keep mutating their copy while
// the store holds a consistent record.
func cloneRun(run *model.Run) *model.Run {
	clone := *run
	clone.Steps = slices.Clone(run.Steps)
	clone.Artifacts = slices.Clone(run.Artifacts)
	return &clone
}
