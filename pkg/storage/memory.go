package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/absmach/modelfactory/pkg/errors"
	"github.com/absmach/modelfactory/run"
)

type memoryRunRepo struct {
	sync.Mutex

	runs map[string]run.Run
}

func NewMemoryRunRepository() RunRepository {
	return &memoryRunRepo{
		runs: make(map[string]run.Run),
	}
}

func (r *memoryRunRepo) Create(_ context.Context, rn run.Run) (run.Run, error) {
	if rn.ID == "" {
		return run.Run{}, errors.ErrEmptyKey
	}

	r.Lock()
	defer r.Unlock()

	if _, ok := r.runs[rn.ID]; ok {
		return run.Run{}, errors.ErrEntityExists
	}
	r.runs[rn.ID] = rn

	return rn, nil
}

func (r *memoryRunRepo) Get(_ context.Context, id string) (run.Run, error) {
	if id == "" {
		return run.Run{}, errors.ErrEmptyKey
	}

	r.Lock()
	defer r.Unlock()

	if rn, ok := r.runs[id]; ok {
		return rn, nil
	}

	return run.Run{}, errors.ErrNotFound
}

func (r *memoryRunRepo) Update(_ context.Context, rn run.Run) error {
	if rn.ID == "" {
		return errors.ErrEmptyKey
	}

	r.Lock()
	defer r.Unlock()

	if _, ok := r.runs[rn.ID]; !ok {
		return errors.ErrNotFound
	}
	r.runs[rn.ID] = rn

	return nil
}

// List returns the newest runs first. Runs created at the same instant
// are ordered by ID.
func (r *memoryRunRepo) List(_ context.Context, offset, limit uint64) ([]run.Run, uint64, error) {
	r.Lock()
	runs := make([]run.Run, 0, len(r.runs))
	for _, rn := range r.runs {
		runs = append(runs, rn)
	}
	r.Unlock()

	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}

		return runs[i].ID < runs[j].ID
	})

	return page(runs, offset, limit), uint64(len(runs)), nil
}

func (r *memoryRunRepo) Delete(_ context.Context, id string) error {
	if id == "" {
		return errors.ErrEmptyKey
	}

	r.Lock()
	defer r.Unlock()

	delete(r.runs, id)

	return nil
}

type memoryEpochRepo struct {
	sync.Mutex

	epochs map[string][]run.Epoch
}

func NewMemoryEpochRepository() EpochRepository {
	return &memoryEpochRepo{
		epochs: make(map[string][]run.Epoch),
	}
}

func epochKey(e run.Epoch) string {
	return fmt.Sprintf("%s:%s:%08d", e.RunID, e.Tournament, e.Epoch)
}

func (r *memoryEpochRepo) CreateEpoch(_ context.Context, e run.Epoch) error {
	if e.RunID == "" {
		return errors.ErrEmptyKey
	}

	r.Lock()
	defer r.Unlock()

	key := epochKey(e)
	for _, prev := range r.epochs[e.RunID] {
		if epochKey(prev) == key {
			return errors.ErrEntityExists
		}
	}
	r.epochs[e.RunID] = append(r.epochs[e.RunID], e)

	return nil
}

// ListEpochs returns the epochs of a run in recording order.
func (r *memoryEpochRepo) ListEpochs(_ context.Context, runID string, offset, limit uint64) ([]run.Epoch, uint64, error) {
	r.Lock()
	epochs := append([]run.Epoch(nil), r.epochs[runID]...)
	r.Unlock()

	sort.SliceStable(epochs, func(i, j int) bool {
		if !epochs[i].Timestamp.Equal(epochs[j].Timestamp) {
			return epochs[i].Timestamp.Before(epochs[j].Timestamp)
		}

		return strings.Compare(epochKey(epochs[i]), epochKey(epochs[j])) < 0
	})

	return page(epochs, offset, limit), uint64(len(epochs)), nil
}

func page[T any](items []T, offset, limit uint64) []T {
	total := uint64(len(items))
	if offset >= total {
		return []T{}
	}
	end := min(offset+limit, total)

	return items[offset:end]
}
