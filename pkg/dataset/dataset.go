// Package dataset adapts competition data to fold-restricted, indexable
// sample sequences and batches them for the trainers.
package dataset

import (
	"context"
	"fmt"
	"os"

	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
)

// Sample is one example. Labels is keyed by task name and is empty for
// test-only datasets.
type Sample struct {
	ID     string
	Fold   int
	Group  string
	Input  []float32
	Labels map[string]int
	Target float64
}

// Dataset is an indexable, length-queryable sequence of samples.
type Dataset interface {
	Len() int
	Get(ctx context.Context, idx int) (Sample, error)
}

// Batch is a contiguous group of samples, column-major by field.
type Batch struct {
	IDs     []string
	Folds   []int
	Groups  []string
	Inputs  [][]float32
	Labels  map[string][]int
	Targets []float64
}

func (b Batch) Size() int {
	return len(b.IDs)
}

func newBatch(samples []Sample) Batch {
	b := Batch{
		IDs:     make([]string, len(samples)),
		Folds:   make([]int, len(samples)),
		Groups:  make([]string, len(samples)),
		Inputs:  make([][]float32, len(samples)),
		Labels:  map[string][]int{},
		Targets: make([]float64, len(samples)),
	}
	for i, s := range samples {
		b.IDs[i] = s.ID
		b.Folds[i] = s.Fold
		b.Groups[i] = s.Group
		b.Inputs[i] = s.Input
		b.Targets[i] = s.Target
		for task, label := range s.Labels {
			if _, ok := b.Labels[task]; !ok {
				b.Labels[task] = make([]int, len(samples))
			}
			b.Labels[task][i] = label
		}
	}

	return b
}

// Slice is an in-memory dataset.
type Slice []Sample

func (s Slice) Len() int {
	return len(s)
}

func (s Slice) Get(_ context.Context, idx int) (Sample, error) {
	if idx < 0 || idx >= len(s) {
		return Sample{}, fmt.Errorf("%w: index %d out of range [0, %d)", pkgerrors.ErrInvalidData, idx, len(s))
	}

	return s[idx], nil
}

func requireFile(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", pkgerrors.ErrDataUnavailable)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %w", pkgerrors.ErrDataUnavailable, err)
	}

	return nil
}
