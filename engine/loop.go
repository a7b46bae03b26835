package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	modelfactory "github.com/absmach/modelfactory"
	"github.com/absmach/modelfactory/pkg/checkpoint"
	"github.com/absmach/modelfactory/pkg/dataset"
	"github.com/absmach/modelfactory/pkg/device"
	"github.com/absmach/modelfactory/pkg/fold"
	"github.com/absmach/modelfactory/pkg/submission"
	"github.com/absmach/modelfactory/trainer"
)

// RoleLoader is a loader tagged with its role and the folds it covers.
type RoleLoader struct {
	*dataset.Loader
	Role  dataset.Role
	Folds fold.Set
}

// foldEngine is the shared training loop of the fold-based competitions.
type foldEngine struct {
	lifecycle
	name     string
	cfg      modelfactory.Config
	strategy Strategy
	trainer  trainer.Trainer
	deps     Deps
	logger   *slog.Logger
}

var _ Engine = (*foldEngine)(nil)

// NewFoldEngineFor returns a constructor of fold engines driven by s.
func NewFoldEngineFor(s Strategy) Constructor {
	return func(cfg modelfactory.Config, deps Deps) (Engine, error) {
		return NewFoldEngine(s, cfg, deps)
	}
}

func NewFoldEngine(s Strategy, cfg modelfactory.Config, deps Deps) (Engine, error) {
	deps = deps.withDefaults()
	cfg = cfg.WithDefaults()
	name := s.Name()

	ctor, err := deps.Trainers.Get(name)
	if err != nil {
		return nil, err
	}
	tr, err := ctor(trainer.Options{
		ModelName:             cfg.Model.Name,
		Registry:              deps.Models,
		InputDim:              s.InputDim(cfg),
		Heads:                 s.Heads(),
		ScoreWeights:          s.ScoreWeights(),
		LearningRate:          cfg.Training.LearningRate,
		SchedulerFactor:       cfg.Training.SchedulerFactor,
		SchedulerPatience:     cfg.Training.SchedulerPatience,
		EarlyStoppingPatience: cfg.Training.EarlyStoppingPatience,
		Seed:                  uint64(cfg.Training.Seed),
		Blobs:                 deps.Blobs,
		Logger:                deps.Logger,
	})
	if err != nil {
		return nil, err
	}

	e := &foldEngine{
		name:     name,
		cfg:      cfg,
		strategy: s,
		trainer:  tr,
		deps:     deps,
		logger:   deps.Logger.With(slog.String("engine", name)),
	}
	e.state = Configured

	return e, nil
}

func (e *foldEngine) Name() string {
	return e.name
}

// BuildLoader builds the loader of one role. Training loaders shuffle and
// use the training batch size; the others keep dataset order.
func (e *foldEngine) BuildLoader(folds fold.Set, role dataset.Role) (RoleLoader, error) {
	ds, err := e.strategy.Dataset(e.cfg, folds, role)
	if err != nil {
		return RoleLoader{}, err
	}

	return e.wrap(ds, folds, role), nil
}

func (e *foldEngine) wrap(ds dataset.Dataset, folds fold.Set, role dataset.Role) RoleLoader {
	opts := dataset.LoaderOptions{
		BatchSize: e.cfg.Training.TestBatchSize,
		Workers:   e.cfg.Training.Workers,
		Seed:      uint64(e.cfg.Training.Seed),
	}
	if role == dataset.RoleTrain {
		opts.BatchSize = e.cfg.Training.TrainBatchSize
		opts.Shuffle = true
	}

	rl := RoleLoader{Loader: dataset.NewLoader(ds, opts), Role: role, Folds: folds}
	e.logger.Debug("loader built",
		slog.String("role", string(rl.Role)),
		slog.String("folds", rl.Folds.String()),
		slog.Int("batches", rl.Len()),
	)

	return rl
}

func (e *foldEngine) place() error {
	inv := e.deps.Inventory
	devices := inv.Available(e.cfg.Training.DeviceIDs)
	if err := e.trainer.Place(devices); err != nil {
		return err
	}
	args := []any{
		slog.String("cpu", inv.Brand),
		slog.Int("cpu_features", len(inv.Features)),
		slog.Int("devices", len(devices)),
		slog.Any("ids", devices),
	}
	if len(devices) > 1 {
		args = append(args, slog.String("coordinator", device.Name(devices[0])))
	}
	e.logger.Info("model placed", args...)

	return nil
}

func (e *foldEngine) Train(ctx context.Context) (TrainResult, error) {
	if err := e.begin(); err != nil {
		return TrainResult{}, err
	}
	defer e.finish()

	if err := e.cfg.ValidateTraining(); err != nil {
		return TrainResult{}, err
	}
	if err := e.place(); err != nil {
		return TrainResult{}, err
	}

	t := e.cfg.Training
	e.logger.Info("training", slog.String("train_folds", t.TrainFolds.String()), slog.String("val_folds", t.ValFolds.String()))
	train, err := e.BuildLoader(t.TrainFolds, dataset.RoleTrain)
	if err != nil {
		return TrainResult{}, err
	}
	val, err := e.BuildLoader(t.ValFolds, dataset.RoleVal)
	if err != nil {
		return TrainResult{}, err
	}

	valFold, _ := t.ValFolds.First()
	key := checkpoint.Key(e.trainer.ModelName(), e.strategy.Domain(), valFold)
	path := filepath.Join(e.cfg.Model.Dir, key)

	res := TrainResult{Competition: e.name, BestScore: -1}
	e.state = Training
	for epoch := 1; epoch <= t.Epochs; epoch++ {
		m, err := e.epoch(ctx, epoch, train, val, &res.BestScore, path, key)
		if err != nil {
			return TrainResult{}, err
		}
		res.Epochs = epoch
		if m.Checkpointed && len(res.Checkpoints) == 0 {
			res.Checkpoints = []string{path}
		}
		if e.trainer.EarlyStopping().Stopped() {
			e.logger.Info("early stopping", slog.Int("epoch", epoch))
			e.state = EarlyStopped

			break
		}
	}
	if e.state == Training {
		e.state = EpochsExhausted
	}
	res.State = e.state.String()
	res.StoppedEarly = e.state == EarlyStopped

	return res, nil
}

// epoch trains and validates once, checkpoints on a new best score, then
// steps the scheduler before early stopping.
func (e *foldEngine) epoch(ctx context.Context, epoch int, train, val RoleLoader, best *float64, path, key string) (EpochMetrics, error) {
	trainLoss, trainScore, err := e.trainer.Train(ctx, train.Loader)
	if err != nil {
		return EpochMetrics{}, err
	}
	valLoss, valScore, err := e.trainer.Evaluate(ctx, val.Loader)
	if err != nil {
		return EpochMetrics{}, err
	}

	m := EpochMetrics{
		Epoch:      epoch,
		TrainLoss:  trainLoss,
		TrainScore: trainScore,
		ValLoss:    valLoss,
		ValScore:   valScore,
	}
	if valScore > *best {
		*best = valScore
		if err := e.trainer.SaveLocal(path); err != nil {
			return EpochMetrics{}, err
		}
		m.Checkpointed = true
		if e.cfg.Storage.SaveRemote {
			if err := e.trainer.SaveRemote(ctx, path, key, e.cfg.Storage.Credentials); err != nil {
				e.logger.Warn("remote checkpoint mirror failed", slog.String("key", key), slog.Any("error", err))
			}
		}
	}

	m.LearningRate = e.trainer.Scheduler().Step(valLoss)
	e.trainer.EarlyStopping().Step(valScore)

	e.logger.Info("epoch completed",
		slog.Int("epoch", epoch),
		slog.Group("train", slog.Float64("loss", trainLoss), slog.Float64("score", trainScore)),
		slog.Group("val", slog.Float64("loss", valLoss), slog.Float64("score", valScore)),
		slog.Float64("learning_rate", m.LearningRate),
		slog.Bool("checkpointed", m.Checkpointed),
	)
	e.deps.Observer.EpochEnd(ctx, m)

	return m, nil
}

func (e *foldEngine) Predict(ctx context.Context) (PredictResult, error) {
	if err := e.begin(); err != nil {
		return PredictResult{}, err
	}
	defer e.finish()

	if err := e.cfg.ValidateInference(); err != nil {
		return PredictResult{}, err
	}
	if err := e.place(); err != nil {
		return PredictResult{}, err
	}

	sets, err := e.strategy.TestSets(e.cfg)
	if err != nil {
		return PredictResult{}, err
	}
	loaders := make([]RoleLoader, len(sets))
	for i, ds := range sets {
		loaders[i] = e.wrap(ds, nil, dataset.RoleTest)
	}

	agg := submission.NewAggregate(taskNames(e.strategy.Heads()))
	for _, idx := range e.cfg.Training.InferenceFolds.Indices() {
		if err := e.inferFold(ctx, idx, loaders, agg); err != nil {
			return PredictResult{}, err
		}
	}

	records, err := submission.Records(agg)
	if err != nil {
		return PredictResult{}, err
	}
	res := PredictResult{Competition: e.name, Folds: agg.Folds(), Records: records}
	if e.cfg.Output.ToCSV {
		path, err := submission.Write(e.cfg.Output.Dir, e.deps.Clock, records)
		if err != nil {
			return PredictResult{}, err
		}
		e.logger.Info("submission written", slog.String("path", path), slog.Int("rows", len(records)))
		res.SubmissionPath = path
		res.Files = []string{path}
	}

	return res, nil
}

func (e *foldEngine) inferFold(ctx context.Context, idx int, loaders []RoleLoader, agg *submission.Aggregate) error {
	key := checkpoint.Key(e.trainer.ModelName(), e.strategy.Domain(), idx)
	path := filepath.Join(e.cfg.Model.Dir, key)
	e.logger.Info("inference", slog.Int("fold", idx), slog.String("checkpoint", key))

	if e.cfg.Storage.LoadRemote {
		if err := e.trainer.LoadRemote(ctx, path, key, e.cfg.Storage.Credentials); err != nil {
			return err
		}
	}
	if err := e.trainer.LoadLocal(path); err != nil {
		return fmt.Errorf("fold %d: %w", idx, err)
	}

	agg.BeginFold()
	for _, l := range loaders {
		if err := e.trainer.Infer(ctx, l.Loader, agg.Append); err != nil {
			return err
		}
	}

	return agg.EndFold()
}
