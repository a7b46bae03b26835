package trainer

import (
	"context"
	"fmt"
	"math"

	"github.com/absmach/modelfactory/pkg/dataset"
	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/absmach/modelfactory/pkg/metrics"
	"github.com/absmach/modelfactory/pkg/models"
	"gonum.org/v1/gonum/mat"
)

var _ Trainer = (*regressor)(nil)

// regressor fits a single-output model to sample targets. Models that can
// solve in closed form are fitted once per pass over the whole loader;
// others take one gradient step per batch. Passes are scored by the
// correlation of predictions and targets.
type regressor struct {
	*base
}

func NewRegressor(opts Options) (Trainer, error) {
	if len(opts.Heads) != 1 || opts.Heads[0].Classes != 1 {
		return nil, fmt.Errorf("%w: regressor needs exactly one single-output head", pkgerrors.ErrConfiguration)
	}
	b, err := newBase(opts)
	if err != nil {
		return nil, err
	}

	return &regressor{base: b}, nil
}

func (r *regressor) Train(ctx context.Context, loader *dataset.Loader) (float64, float64, error) {
	r.model.SetTraining(true)
	if fitter, ok := r.unwrap().(models.Fitter); ok {
		return r.fit(ctx, loader, fitter)
	}

	return r.pass(ctx, loader, true)
}

func (r *regressor) Evaluate(ctx context.Context, loader *dataset.Loader) (float64, float64, error) {
	r.model.SetTraining(false)

	return r.pass(ctx, loader, false)
}

func (r *regressor) Infer(ctx context.Context, loader *dataset.Loader, fn InferFunc) error {
	return r.infer(ctx, loader, fn)
}

func (r *regressor) fit(ctx context.Context, loader *dataset.Loader, fitter models.Fitter) (float64, float64, error) {
	var (
		rows    [][]float32
		targets []float64
	)
	err := loader.Iterate(ctx, func(b dataset.Batch) error {
		for i, t := range b.Targets {
			if math.IsNaN(t) {
				continue
			}
			rows = append(rows, b.Inputs[i])
			targets = append(targets, t)
		}

		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	x, err := models.Matrix(rows)
	if err != nil {
		return 0, 0, err
	}
	if err := fitter.Fit(x, mat.NewDense(len(targets), 1, targets)); err != nil {
		return 0, 0, err
	}

	outs, err := r.model.Forward(x)
	if err != nil {
		return 0, 0, err
	}
	pred := mat.Col(nil, 0, outs[0])
	loss, _ := metrics.MSE(outs[0], targets)

	return loss, metrics.Correlation(pred, targets), nil
}

func (r *regressor) pass(ctx context.Context, loader *dataset.Loader, update bool) (float64, float64, error) {
	var (
		lossSum float64
		batches int
		preds   []float64
		targets []float64
	)
	err := loader.Iterate(ctx, func(b dataset.Batch) error {
		var (
			rows [][]float32
			ys   []float64
		)
		for i, t := range b.Targets {
			if math.IsNaN(t) {
				continue
			}
			rows = append(rows, b.Inputs[i])
			ys = append(ys, t)
		}
		if len(rows) == 0 {
			return nil
		}
		x, err := models.Matrix(rows)
		if err != nil {
			return err
		}
		outs, err := r.model.Forward(x)
		if err != nil {
			return err
		}
		loss, grad := metrics.MSE(outs[0], ys)
		lossSum += loss
		batches++
		preds = append(preds, mat.Col(nil, 0, outs[0])...)
		targets = append(targets, ys...)

		if !update {
			return nil
		}
		r.model.ZeroGrad()
		if err := r.model.Backward(x, []*mat.Dense{grad}); err != nil {
			return err
		}
		r.model.Step(r.plateau.LR())

		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	if batches == 0 {
		return 0, 0, fmt.Errorf("%w: no labelled rows", pkgerrors.ErrInvalidData)
	}

	return lossSum / float64(batches), metrics.Correlation(preds, targets), nil
}
