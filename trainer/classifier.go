package trainer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/absmach/modelfactory/pkg/dataset"
	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/absmach/modelfactory/pkg/metrics"
	"github.com/absmach/modelfactory/pkg/models"
	"gonum.org/v1/gonum/mat"
)

var _ Trainer = (*classifier)(nil)

// classifier trains one softmax head per task with cross-entropy loss.
// A single head is scored by accuracy, several heads by the weighted mean
// of their macro recall.
type classifier struct {
	*base
}

func NewClassifier(opts Options) (Trainer, error) {
	b, err := newBase(opts)
	if err != nil {
		return nil, err
	}
	for _, h := range opts.Heads {
		if h.Classes < 2 {
			return nil, fmt.Errorf("%w: classifier head %s needs at least two classes", pkgerrors.ErrConfiguration, h.Name)
		}
	}

	return &classifier{base: b}, nil
}

func (c *classifier) Train(ctx context.Context, loader *dataset.Loader) (float64, float64, error) {
	c.model.SetTraining(true)

	return c.pass(ctx, loader, true)
}

func (c *classifier) Evaluate(ctx context.Context, loader *dataset.Loader) (float64, float64, error) {
	c.model.SetTraining(false)

	return c.pass(ctx, loader, false)
}

func (c *classifier) Infer(ctx context.Context, loader *dataset.Loader, fn InferFunc) error {
	return c.infer(ctx, loader, fn)
}

func (c *classifier) pass(ctx context.Context, loader *dataset.Loader, update bool) (float64, float64, error) {
	var (
		lossSum float64
		batches int
		preds   = make([][]int, len(c.heads))
		labels  = make([][]int, len(c.heads))
	)

	err := loader.Iterate(ctx, func(b dataset.Batch) error {
		x, err := models.Matrix(b.Inputs)
		if err != nil {
			return err
		}
		outs, err := c.model.Forward(x)
		if err != nil {
			return err
		}

		grads := make([]*mat.Dense, len(c.heads))
		var loss float64
		for h, head := range c.heads {
			y, ok := b.Labels[head.Name]
			if !ok {
				return fmt.Errorf("%w: batch has no labels for %s", pkgerrors.ErrInvalidData, head.Name)
			}
			l, g := metrics.CrossEntropy(outs[h], y)
			loss += l
			g.Scale(1/float64(len(c.heads)), g)
			grads[h] = g
			preds[h] = append(preds[h], metrics.Predictions(outs[h])...)
			labels[h] = append(labels[h], y...)
		}
		lossSum += loss / float64(len(c.heads))
		batches++

		if !update {
			return nil
		}
		c.model.ZeroGrad()
		if err := c.model.Backward(x, grads); err != nil {
			return err
		}
		c.model.Step(c.plateau.LR())

		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	if batches == 0 {
		return 0, 0, fmt.Errorf("%w: empty loader", pkgerrors.ErrInvalidData)
	}

	score := c.score(preds, labels)
	c.logger.Debug("classifier pass finished",
		slog.Bool("update", update),
		slog.Int("batches", batches),
		slog.Float64("score", score),
	)

	return lossSum / float64(batches), score, nil
}

func (c *classifier) score(preds, labels [][]int) float64 {
	if len(c.heads) == 1 {
		return metrics.Accuracy(preds[0], labels[0])
	}
	scores := make([]float64, len(c.heads))
	for h := range c.heads {
		scores[h] = metrics.MacroRecall(preds[h], labels[h])
	}

	return metrics.WeightedAverage(scores, c.weights)
}
