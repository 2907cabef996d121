package usecase

import (
	"context"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

// GetRun returns one recorded run by ID.
func (x *UseCase) GetRun(ctx context.Context, id types.RunID) (*model.Run, error) {
	return x.store.Get(ctx, id)
}

// ListRuns returns recorded runs, newest first.
func (x *UseCase) ListRuns(ctx context.Context, limit int) ([]*model.Run, error) {
	return x.store.List(ctx, limit)
}

// CountActive returns the number of runs currently executing.
func (x *UseCase) CountActive(_ context.Context) (int, error) {
	return int(x.active.Load()), nil
}
