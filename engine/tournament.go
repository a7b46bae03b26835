package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	modelfactory "github.com/absmach/modelfactory"
	"github.com/absmach/modelfactory/pkg/checkpoint"
	"github.com/absmach/modelfactory/pkg/dataset"
	"github.com/absmach/modelfactory/pkg/metrics"
	"github.com/absmach/modelfactory/pkg/models"
	"github.com/absmach/modelfactory/pkg/submission"
	"github.com/absmach/modelfactory/pkg/tournament"
	"github.com/absmach/modelfactory/trainer"
)

const targetHead = "target"

// tournamentEngine trains one regressor per tournament of a tabular round.
type tournamentEngine struct {
	lifecycle
	cfg      modelfactory.Config
	deps     Deps
	logger   *slog.Logger
	data     *dataset.Tabular
	trainers map[string]trainer.Trainer
}

var _ Engine = (*tournamentEngine)(nil)

func NewTournamentEngine(cfg modelfactory.Config, deps Deps) (Engine, error) {
	deps = deps.withDefaults()
	cfg = cfg.WithDefaults()
	if err := cfg.ValidateTournament(); err != nil {
		return nil, err
	}
	if _, err := deps.Trainers.Get(NumeraiName); err != nil {
		return nil, err
	}

	e := &tournamentEngine{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With(slog.String("engine", NumeraiName)),
	}
	e.state = Configured

	return e, nil
}

func (e *tournamentEngine) Name() string {
	return NumeraiName
}

// setup loads the round data and builds one trainer per tournament.
func (e *tournamentEngine) setup(ctx context.Context) error {
	zipPath := e.cfg.Tournament.LocalData
	if e.cfg.Tournament.GetCurrentData {
		fetcher := e.deps.Fetcher
		if fetcher == nil {
			fetcher = tournament.NewFetcher(e.cfg.Tournament.DataURL, nil)
		}
		dir := e.cfg.Model.Dir
		if zipPath != "" {
			dir = filepath.Dir(zipPath)
		}
		path, err := fetcher.Fetch(ctx, dir)
		if err != nil {
			return err
		}
		e.logger.Info("round data downloaded", slog.String("path", path))
		zipPath = path
	}

	data, err := dataset.OpenTabularZip(zipPath)
	if err != nil {
		return err
	}
	e.data = data

	ctor, err := e.deps.Trainers.Get(NumeraiName)
	if err != nil {
		return err
	}
	e.trainers = make(map[string]trainer.Trainer, len(e.cfg.Tournament.Names))
	devices := e.deps.Inventory.Available(e.cfg.Training.DeviceIDs)
	for _, name := range e.cfg.Tournament.Names {
		tr, err := ctor(trainer.Options{
			ModelName:             e.cfg.Model.Name,
			Registry:              e.deps.Models,
			InputDim:              len(data.Features()),
			Heads:                 []models.Head{{Name: targetHead, Classes: 1}},
			LearningRate:          e.cfg.Training.LearningRate,
			SchedulerFactor:       e.cfg.Training.SchedulerFactor,
			SchedulerPatience:     e.cfg.Training.SchedulerPatience,
			EarlyStoppingPatience: e.cfg.Training.EarlyStoppingPatience,
			Seed:                  uint64(e.cfg.Training.Seed),
			Blobs:                 e.deps.Blobs,
			Logger:                e.deps.Logger,
		})
		if err != nil {
			return err
		}
		if err := tr.Place(devices); err != nil {
			return err
		}
		e.trainers[name] = tr
	}
	e.logger.Info("tournaments configured",
		slog.Any("tournaments", e.cfg.Tournament.Names),
		slog.Int("features", len(data.Features())),
	)

	return nil
}

func (e *tournamentEngine) loader(ds dataset.Dataset, shuffle bool) *dataset.Loader {
	opts := dataset.LoaderOptions{
		BatchSize: e.cfg.Training.TestBatchSize,
		Workers:   e.cfg.Training.Workers,
		Seed:      uint64(e.cfg.Training.Seed),
	}
	if shuffle {
		opts.BatchSize = e.cfg.Training.TrainBatchSize
		opts.Shuffle = true
	}

	return dataset.NewLoader(ds, opts)
}

func (e *tournamentEngine) path(tr trainer.Trainer, name string) (string, string) {
	key := checkpoint.TournamentKey(tr.ModelName(), name)

	return filepath.Join(e.cfg.Model.Dir, key), key
}

func (e *tournamentEngine) Train(ctx context.Context) (TrainResult, error) {
	if err := e.begin(); err != nil {
		return TrainResult{}, err
	}
	defer e.finish()

	if err := e.setup(ctx); err != nil {
		return TrainResult{}, err
	}

	e.state = Training
	res := TrainResult{Competition: NumeraiName, Epochs: 1, Tournaments: map[string]float64{}}
	var total float64
	for _, name := range e.cfg.Tournament.Names {
		score, path, err := e.trainTournament(ctx, name)
		if err != nil {
			return TrainResult{}, fmt.Errorf("tournament %s: %w", name, err)
		}
		res.Tournaments[name] = score
		res.Checkpoints = append(res.Checkpoints, path)
		total += score
	}
	res.BestScore = total / float64(len(e.cfg.Tournament.Names))
	e.state = EpochsExhausted
	res.State = e.state.String()

	return res, nil
}

func (e *tournamentEngine) trainTournament(ctx context.Context, name string) (float64, string, error) {
	tr := e.trainers[name]
	train, err := e.data.Training(name)
	if err != nil {
		return 0, "", err
	}
	val, err := e.data.Validation(name)
	if err != nil {
		return 0, "", err
	}

	trainLoss, trainScore, err := tr.Train(ctx, e.loader(train, true))
	if err != nil {
		return 0, "", err
	}
	valLoss, valScore, err := tr.Evaluate(ctx, e.loader(val, false))
	if err != nil {
		return 0, "", err
	}

	path, key := e.path(tr, name)
	if err := tr.SaveLocal(path); err != nil {
		return 0, "", err
	}
	if e.cfg.Storage.SaveRemote {
		if err := tr.SaveRemote(ctx, path, key, e.cfg.Storage.Credentials); err != nil {
			e.logger.Warn("remote checkpoint mirror failed", slog.String("key", key), slog.Any("error", err))
		}
	}

	m := EpochMetrics{
		Tournament:   name,
		Epoch:        1,
		TrainLoss:    trainLoss,
		TrainScore:   trainScore,
		ValLoss:      valLoss,
		ValScore:     valScore,
		LearningRate: tr.Scheduler().LR(),
		Checkpointed: true,
	}
	e.logger.Info("tournament trained",
		slog.String("tournament", name),
		slog.Group("train", slog.Float64("loss", trainLoss), slog.Float64("correlation", trainScore)),
		slog.Group("val", slog.Float64("loss", valLoss), slog.Float64("correlation", valScore)),
	)
	e.deps.Observer.EpochEnd(ctx, m)

	return valScore, path, nil
}

func (e *tournamentEngine) Predict(ctx context.Context) (PredictResult, error) {
	if err := e.begin(); err != nil {
		return PredictResult{}, err
	}
	defer e.finish()

	if err := e.setup(ctx); err != nil {
		return PredictResult{}, err
	}

	res := PredictResult{
		Competition: NumeraiName,
		Tournaments: make(map[string]submission.TournamentPredictions, len(e.cfg.Tournament.Names)),
	}
	for _, name := range e.cfg.Tournament.Names {
		preds, err := e.predictTournament(ctx, name)
		if err != nil {
			return PredictResult{}, fmt.Errorf("tournament %s: %w", name, err)
		}
		res.Tournaments[name] = preds
		if e.cfg.Output.ToCSV {
			path, err := preds.Write(e.cfg.Output.Dir)
			if err != nil {
				return PredictResult{}, err
			}
			e.logger.Info("predictions written", slog.String("tournament", name), slog.String("path", path))
			res.Files = append(res.Files, path)
		}
	}

	return res, nil
}

func (e *tournamentEngine) predictTournament(ctx context.Context, name string) (submission.TournamentPredictions, error) {
	tr := e.trainers[name]
	path, key := e.path(tr, name)
	if e.cfg.Storage.LoadRemote {
		if err := tr.LoadRemote(ctx, path, key, e.cfg.Storage.Credentials); err != nil {
			return submission.TournamentPredictions{}, err
		}
	}
	if err := tr.LoadLocal(path); err != nil {
		return submission.TournamentPredictions{}, err
	}

	ds, err := e.data.Tournament(name)
	if err != nil {
		return submission.TournamentPredictions{}, err
	}
	ids, out, err := e.collect(ctx, tr, ds)
	if err != nil {
		return submission.TournamentPredictions{}, err
	}
	probs := make([]float64, len(out))
	for i, v := range out {
		probs[i] = min(max(v, 0), 1)
	}

	if err := e.evaluateEras(ctx, tr, name); err != nil {
		return submission.TournamentPredictions{}, err
	}

	return submission.TournamentPredictions{Tournament: name, IDs: ids, Probability: probs}, nil
}

// collect runs inference over ds in order and returns the single output
// column.
func (e *tournamentEngine) collect(ctx context.Context, tr trainer.Trainer, ds dataset.Dataset) ([]string, []float64, error) {
	ids := make([]string, 0, ds.Len())
	out := make([]float64, 0, ds.Len())
	err := tr.Infer(ctx, e.loader(ds, false), func(batch []string, outputs map[string][][]float64) error {
		ids = append(ids, batch...)
		for _, row := range outputs[targetHead] {
			out = append(out, row[0])
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return ids, out, nil
}

// evaluateEras logs the per-era correlation summary on the validation rows.
func (e *tournamentEngine) evaluateEras(ctx context.Context, tr trainer.Trainer, name string) error {
	val, err := e.data.Validation(name)
	if err != nil {
		return err
	}
	_, preds, err := e.collect(ctx, tr, val)
	if err != nil {
		return err
	}
	order, groups, err := dataset.Eras(ctx, val)
	if err != nil {
		return err
	}

	scores := make([]float64, 0, len(order))
	for _, era := range order {
		idx := groups[era]
		p := make([]float64, len(idx))
		y := make([]float64, len(idx))
		for i, j := range idx {
			s, err := val.Get(ctx, j)
			if err != nil {
				return err
			}
			p[i] = preds[j]
			y[i] = s.Target
		}
		scores = append(scores, metrics.Correlation(p, y))
	}
	sum := metrics.Summarize(scores)
	e.logger.Info("validation eras",
		slog.String("tournament", name),
		slog.Int("eras", len(scores)),
		slog.Group("correlation",
			slog.Float64("mean", sum.Mean),
			slog.Float64("std", sum.Std),
			slog.Float64("sharpe", sum.Sharpe),
			slog.Float64("positive", sum.Positive),
		),
	)

	return nil
}
