package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/absmach/modelfactory/run"
)

const (
	runPrefix   = "run:"
	orderPrefix = "run_order:"
	epochPrefix = "epoch:"
)

type RunRepository struct {
	db *Database
}

func NewRunRepository(db *Database) *RunRepository {
	return &RunRepository{db: db}
}

// orderKey sorts runs by creation time, then id.
func orderKey(r run.Run) []byte {
	return fmt.Appendf(nil, "%s%020d:%s", orderPrefix, r.CreatedAt.UnixNano(), r.ID)
}

func (r *RunRepository) Create(ctx context.Context, rn run.Run) (run.Run, error) {
	if _, err := r.db.get([]byte(runPrefix + rn.ID)); err == nil {
		return run.Run{}, fmt.Errorf("%w: %w", ErrCreate, pkgerrors.ErrEntityExists)
	}
	val, err := json.Marshal(rn)
	if err != nil {
		return run.Run{}, fmt.Errorf("marshal error: %w", err)
	}
	if err := r.db.set([]byte(runPrefix+rn.ID), val); err != nil {
		return run.Run{}, fmt.Errorf("%w: %w", ErrCreate, err)
	}
	if err := r.db.set(orderKey(rn), []byte(rn.ID)); err != nil {
		return run.Run{}, fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return rn, nil
}

func (r *RunRepository) Get(ctx context.Context, id string) (run.Run, error) {
	val, err := r.db.get([]byte(runPrefix + id))
	if err != nil {
		return run.Run{}, err
	}
	var rn run.Run
	if err := json.Unmarshal(val, &rn); err != nil {
		return run.Run{}, fmt.Errorf("unmarshal error: %w", err)
	}

	return rn, nil
}

func (r *RunRepository) Update(ctx context.Context, rn run.Run) error {
	if _, err := r.db.get([]byte(runPrefix + rn.ID)); err != nil {
		return err
	}
	val, err := json.Marshal(rn)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	return r.db.set([]byte(runPrefix+rn.ID), val)
}

// List returns the newest runs first.
func (r *RunRepository) List(ctx context.Context, offset, limit uint64) ([]run.Run, uint64, error) {
	total, err := r.db.countWithPrefix([]byte(orderPrefix))
	if err != nil {
		return nil, 0, err
	}
	ids, err := r.db.listWithPrefix([]byte(orderPrefix), offset, limit, true)
	if err != nil {
		return nil, 0, err
	}
	runs := make([]run.Run, 0, len(ids))
	for _, id := range ids {
		rn, err := r.Get(ctx, string(id))
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, rn)
	}

	return runs, total, nil
}

func (r *RunRepository) Delete(ctx context.Context, id string) error {
	rn, err := r.Get(ctx, id)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := r.db.delete(orderKey(rn)); err != nil {
		return err
	}

	return r.db.delete([]byte(runPrefix + id))
}

type EpochRepository struct {
	db *Database
}

func NewEpochRepository(db *Database) *EpochRepository {
	return &EpochRepository{db: db}
}

func (r *EpochRepository) CreateEpoch(ctx context.Context, e run.Epoch) error {
	key := fmt.Appendf(nil, "%s%s:%020d:%s:%08d", epochPrefix, e.RunID, e.Timestamp.UnixNano(), e.Tournament, e.Epoch)
	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}
	if err := r.db.set(key, val); err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (r *EpochRepository) ListEpochs(ctx context.Context, runID string, offset, limit uint64) ([]run.Epoch, uint64, error) {
	prefix := []byte(epochPrefix + runID + ":")
	total, err := r.db.countWithPrefix(prefix)
	if err != nil {
		return nil, 0, err
	}
	values, err := r.db.listWithPrefix(prefix, offset, limit, false)
	if err != nil {
		return nil, 0, err
	}
	epochs := make([]run.Epoch, len(values))
	for i, val := range values {
		if err := json.Unmarshal(val, &epochs[i]); err != nil {
			return nil, 0, fmt.Errorf("unmarshal error: %w", err)
		}
	}

	return epochs, total, nil
}
