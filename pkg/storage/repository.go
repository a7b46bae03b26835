package storage

import (
	"context"

	"github.com/absmach/modelfactory/run"
)

type RunRepository interface {
	Create(ctx context.Context, r run.Run) (run.Run, error)
	Get(ctx context.Context, id string) (run.Run, error)
	Update(ctx context.Context, r run.Run) error
	List(ctx context.Context, offset, limit uint64) ([]run.Run, uint64, error)
	Delete(ctx context.Context, id string) error
}

type EpochRepository interface {
	CreateEpoch(ctx context.Context, e run.Epoch) error
	ListEpochs(ctx context.Context, runID string, offset, limit uint64) ([]run.Epoch, uint64, error)
}
