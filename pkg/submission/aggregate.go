// Package submission averages per-fold predictions and renders them as
// competition submission rows.
package submission

import (
	"fmt"
	"slices"

	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/absmach/modelfactory/pkg/metrics"
)

// Aggregate collects model outputs across folds. Outputs are kept per task,
// per fold, per sample in append order. Sample ids are taken from the first
// fold; later folds must produce the same ids in the same order.
type Aggregate struct {
	tasks []string
	preds map[string][][][]float64
	ids   []string
	seen  int
	open  bool
}

func NewAggregate(tasks []string) *Aggregate {
	preds := make(map[string][][][]float64, len(tasks))
	for _, t := range tasks {
		preds[t] = nil
	}

	return &Aggregate{tasks: slices.Clone(tasks), preds: preds}
}

func (a *Aggregate) Tasks() []string {
	return a.tasks
}

// BeginFold starts collecting the outputs of the next fold.
func (a *Aggregate) BeginFold() {
	for _, t := range a.tasks {
		a.preds[t] = append(a.preds[t], nil)
	}
	a.seen = 0
	a.open = true
}

// Append adds one batch of outputs for the current fold. outputs maps task
// to one vector per sample.
func (a *Aggregate) Append(ids []string, outputs map[string][][]float64) error {
	if !a.open || len(a.tasks) == 0 {
		return fmt.Errorf("%w: append outside of a fold", pkgerrors.ErrInvalidData)
	}
	first := len(a.preds[a.tasks[0]]) == 1
	for _, t := range a.tasks {
		out, ok := outputs[t]
		if !ok || len(out) != len(ids) {
			return fmt.Errorf("%w: task %s has %d outputs for %d ids", pkgerrors.ErrInvalidData, t, len(out), len(ids))
		}
	}
	if first {
		a.ids = append(a.ids, ids...)
	} else {
		for i, id := range ids {
			pos := a.seen + i
			if pos >= len(a.ids) || a.ids[pos] != id {
				return fmt.Errorf("%w: sample %q at position %d differs from the first fold", pkgerrors.ErrInvalidData, id, pos)
			}
		}
	}
	for _, t := range a.tasks {
		f := len(a.preds[t]) - 1
		a.preds[t][f] = append(a.preds[t][f], outputs[t]...)
	}
	a.seen += len(ids)

	return nil
}

// EndFold closes the current fold. Every fold must cover all samples of
// the first one.
func (a *Aggregate) EndFold() error {
	if !a.open {
		return nil
	}
	a.open = false
	if a.seen != len(a.ids) {
		return fmt.Errorf("%w: fold produced %d samples, want %d", pkgerrors.ErrInvalidData, a.seen, len(a.ids))
	}

	return nil
}

func (a *Aggregate) Folds() int {
	if len(a.tasks) == 0 {
		return 0
	}

	return len(a.preds[a.tasks[0]])
}

func (a *Aggregate) IDs() []string {
	return a.ids
}

// Mean averages the fold outputs of a task element-wise.
func (a *Aggregate) Mean(task string) ([][]float64, error) {
	folds, ok := a.preds[task]
	if !ok {
		return nil, fmt.Errorf("%w: task %s", pkgerrors.ErrNotFound, task)
	}
	if len(folds) == 0 {
		return nil, fmt.Errorf("%w: no folds collected", pkgerrors.ErrInvalidData)
	}

	mean := make([][]float64, len(folds[0]))
	for s := range mean {
		mean[s] = make([]float64, len(folds[0][s]))
		for _, fold := range folds {
			if s >= len(fold) || len(fold[s]) != len(mean[s]) {
				return nil, fmt.Errorf("%w: fold shapes differ for task %s", pkgerrors.ErrInvalidData, task)
			}
			for j, v := range fold[s] {
				mean[s][j] += v
			}
		}
		for j := range mean[s] {
			mean[s][j] /= float64(len(folds))
		}
	}

	return mean, nil
}

// Classes returns the arg-max class per sample of the fold mean of every
// task.
func (a *Aggregate) Classes() (map[string][]int, error) {
	out := make(map[string][]int, len(a.tasks))
	for _, t := range a.tasks {
		mean, err := a.Mean(t)
		if err != nil {
			return nil, err
		}
		classes := make([]int, len(mean))
		for i, v := range mean {
			classes[i] = metrics.Argmax(v)
		}
		out[t] = classes
	}

	return out, nil
}
