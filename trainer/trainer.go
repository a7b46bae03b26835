// Package trainer owns a model together with its optimiser schedule,
// early-stopping policy, device placement and checkpoint persistence.
package trainer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/absmach/modelfactory/pkg/blobstore"
	"github.com/absmach/modelfactory/pkg/checkpoint"
	"github.com/absmach/modelfactory/pkg/dataset"
	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/absmach/modelfactory/pkg/models"
	"github.com/absmach/modelfactory/pkg/optim"
)

// InferFunc receives the outputs of one batch, keyed by head name with one
// vector per sample.
type InferFunc func(ids []string, outputs map[string][][]float64) error

type Trainer interface {
	// Train runs one full pass over loader, updating the model, and returns
	// the mean loss and the pass score.
	Train(ctx context.Context, loader *dataset.Loader) (float64, float64, error)

	// Evaluate runs one pass without touching the weights.
	Evaluate(ctx context.Context, loader *dataset.Loader) (float64, float64, error)

	// Infer runs an evaluation-mode forward pass and hands every batch to fn
	// in loader order.
	Infer(ctx context.Context, loader *dataset.Loader, fn InferFunc) error

	SaveLocal(path string) error
	LoadLocal(path string) error
	SaveRemote(ctx context.Context, filename, key string, creds blobstore.Credentials) error
	LoadRemote(ctx context.Context, filename, key string, creds blobstore.Credentials) error

	ModelName() string
	Heads() []models.Head
	Scheduler() optim.Scheduler
	EarlyStopping() optim.Stopper

	// Place spreads the model over devices. More than one device wraps the
	// model for data-parallel execution with devices[0] as coordinator.
	Place(devices []int) error
	Devices() []int
}

// Options configures a trainer.
type Options struct {
	ModelName             string
	Registry              *models.Registry
	InputDim              int
	Heads                 []models.Head
	ScoreWeights          []float64
	LearningRate          float64
	SchedulerFactor       float64
	SchedulerPatience     int
	EarlyStoppingPatience int
	Seed                  uint64
	Blobs                 blobstore.Provider
	Logger                *slog.Logger
}

// base carries what every trainer shares: the model, its schedules and the
// checkpoint plumbing.
type base struct {
	name     string
	model    models.Model
	heads    []models.Head
	weights  []float64
	plateau  *optim.Plateau
	stopping *optim.EarlyStopping
	devices  []int
	blobs    blobstore.Provider
	logger   *slog.Logger
}

func newBase(opts Options) (*base, error) {
	if opts.ModelName == "" {
		return nil, fmt.Errorf("%w: missing model name", pkgerrors.ErrConfiguration)
	}
	reg := opts.Registry
	if reg == nil {
		reg = models.DefaultRegistry()
	}
	m, err := reg.New(opts.ModelName)
	if err != nil {
		return nil, err
	}
	if err := m.Init(opts.InputDim, opts.Heads, opts.Seed); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &base{
		name:     opts.ModelName,
		model:    m,
		heads:    opts.Heads,
		weights:  opts.ScoreWeights,
		plateau:  optim.NewPlateau(opts.LearningRate, opts.SchedulerFactor, opts.SchedulerPatience),
		stopping: optim.NewEarlyStopping(opts.EarlyStoppingPatience),
		devices:  []int{0},
		blobs:    opts.Blobs,
		logger:   logger,
	}, nil
}

func (b *base) ModelName() string {
	return b.name
}

func (b *base) Heads() []models.Head {
	return b.heads
}

func (b *base) Scheduler() optim.Scheduler {
	return b.plateau
}

func (b *base) EarlyStopping() optim.Stopper {
	return b.stopping
}

func (b *base) Devices() []int {
	return b.devices
}

func (b *base) Place(devices []int) error {
	if len(devices) == 0 {
		return fmt.Errorf("%w: no devices available", pkgerrors.ErrConfiguration)
	}
	m := b.unwrap()
	if len(devices) > 1 {
		dp, err := models.NewDataParallel(m, devices)
		if err != nil {
			return err
		}
		b.model = dp
	} else {
		b.model = m
	}
	b.devices = append([]int(nil), devices...)

	return nil
}

func (b *base) unwrap() models.Model {
	if dp, ok := b.model.(*models.DataParallel); ok {
		return dp.Unwrap()
	}

	return b.model
}

func (b *base) SaveLocal(path string) error {
	n, err := checkpoint.Save(path, b.unwrap())
	if err != nil {
		return err
	}
	b.logger.Debug("checkpoint saved", slog.String("path", path), slog.String("size", checkpoint.Size(n)))

	return nil
}

func (b *base) LoadLocal(path string) error {
	return checkpoint.Load(path, b.unwrap())
}

func (b *base) store(ctx context.Context, creds blobstore.Credentials) (blobstore.Store, error) {
	if b.blobs == nil {
		return nil, fmt.Errorf("%w: %w: no remote storage configured", pkgerrors.ErrRemoteStorage, pkgerrors.ErrConfiguration)
	}
	s, err := b.blobs.Open(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pkgerrors.ErrRemoteStorage, err)
	}

	return s, nil
}

func (b *base) SaveRemote(ctx context.Context, filename, key string, creds blobstore.Credentials) error {
	s, err := b.store(ctx, creds)
	if err != nil {
		return err
	}

	return blobstore.Upload(ctx, s, filename, key)
}

func (b *base) LoadRemote(ctx context.Context, filename, key string, creds blobstore.Credentials) error {
	s, err := b.store(ctx, creds)
	if err != nil {
		return err
	}

	return blobstore.Download(ctx, s, key, filename)
}

// infer runs the shared evaluation-mode forward pass.
func (b *base) infer(ctx context.Context, loader *dataset.Loader, fn InferFunc) error {
	b.model.SetTraining(false)

	return loader.Iterate(ctx, func(batch dataset.Batch) error {
		x, err := models.Matrix(batch.Inputs)
		if err != nil {
			return err
		}
		outs, err := b.model.Forward(x)
		if err != nil {
			return err
		}
		outputs := make(map[string][][]float64, len(b.heads))
		for h, head := range b.heads {
			n, _ := outs[h].Dims()
			rows := make([][]float64, n)
			for i := range n {
				rows[i] = append([]float64(nil), outs[h].RawRowView(i)...)
			}
			outputs[head.Name] = rows
		}

		return fn(batch.IDs, outputs)
	})
}
