package manager

import (
	"context"
	"log/slog"
	"time"

	"github.com/0x6flab/namegenerator"
	modelfactory "github.com/absmach/modelfactory"
	"github.com/absmach/modelfactory/engine"
	"github.com/absmach/modelfactory/pkg/mqtt"
	"github.com/absmach/modelfactory/pkg/storage"
	"github.com/absmach/modelfactory/run"
	"github.com/google/uuid"
)

type service struct {
	engines engine.Factory
	deps    engine.Deps
	runsDB  storage.RunRepository
	epochDB storage.EpochRepository
	pubsub  mqtt.PubSub
	namegen namegenerator.NameGenerator
	logger  *slog.Logger
}

// NewService returns the run service. pubsub may be nil, in which case
// progress is only recorded.
func NewService(engines engine.Factory, deps engine.Deps, runsDB storage.RunRepository, epochDB storage.EpochRepository, pubsub mqtt.PubSub, logger *slog.Logger) Service {
	if deps.Logger == nil {
		deps.Logger = logger
	}

	return &service{
		engines: engines,
		deps:    deps,
		runsDB:  runsDB,
		epochDB: epochDB,
		pubsub:  pubsub,
		namegen: namegenerator.NewGenerator(),
		logger:  logger,
	}
}

func (svc *service) Train(ctx context.Context, competition string, cfg modelfactory.Config) (run.Run, error) {
	r, e, err := svc.start(ctx, run.KindTrain, competition, cfg)
	if err != nil {
		return run.Run{}, err
	}

	res, err := e.Train(ctx)
	if err != nil {
		return svc.fail(ctx, r, e, err)
	}
	r.BestScore = res.BestScore
	r.Epochs = res.Epochs
	r.StoppedEarly = res.StoppedEarly
	r.Checkpoints = res.Checkpoints
	r.Tournaments = res.Tournaments

	return svc.complete(ctx, r, e)
}

func (svc *service) Predict(ctx context.Context, competition string, cfg modelfactory.Config) (Prediction, error) {
	r, e, err := svc.start(ctx, run.KindPredict, competition, cfg)
	if err != nil {
		return Prediction{}, err
	}

	res, err := e.Predict(ctx)
	if err != nil {
		r, err = svc.fail(ctx, r, e, err)

		return Prediction{Run: r}, err
	}
	r.Folds = res.Folds
	r.SubmissionPath = res.SubmissionPath
	r.Files = res.Files

	r, err = svc.complete(ctx, r, e)
	if err != nil {
		return Prediction{}, err
	}

	return Prediction{Run: r, Records: res.Records, Tournaments: res.Tournaments}, nil
}

// start builds the engine and records the run as running. A request the
// engine rejects is not recorded.
func (svc *service) start(ctx context.Context, kind run.Kind, competition string, cfg modelfactory.Config) (run.Run, engine.Engine, error) {
	now := time.Now()
	r := run.Run{
		ID:          uuid.NewString(),
		Name:        svc.namegen.Generate(),
		Kind:        kind,
		Competition: competition,
		State:       run.Running,
		StartTime:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	deps := svc.deps
	deps.Observer = svc.observer(r.ID)
	e, err := svc.engines.New(competition, cfg, deps)
	if err != nil {
		return run.Run{}, nil, err
	}
	r.EngineState = e.State().String()

	r, err = svc.runsDB.Create(ctx, r)
	if err != nil {
		return run.Run{}, nil, err
	}

	return r, e, nil
}

func (svc *service) complete(ctx context.Context, r run.Run, e engine.Engine) (run.Run, error) {
	r.State = run.Completed

	return svc.finish(ctx, r, e)
}

// fail records the failure and returns the engine error.
func (svc *service) fail(ctx context.Context, r run.Run, e engine.Engine, cause error) (run.Run, error) {
	r.State = run.Failed
	r.Error = cause.Error()
	r, err := svc.finish(ctx, r, e)
	if err != nil {
		svc.logger.Warn("failed to record failed run", slog.String("run_id", r.ID), slog.Any("error", err))
	}

	return r, cause
}

func (svc *service) finish(ctx context.Context, r run.Run, e engine.Engine) (run.Run, error) {
	// The record is written even when the caller has gone away.
	ctx = context.WithoutCancel(ctx)
	now := time.Now()
	r.EngineState = e.State().String()
	r.FinishTime = now
	r.UpdatedAt = now
	if err := svc.runsDB.Update(ctx, r); err != nil {
		return r, err
	}
	if svc.pubsub != nil {
		if err := svc.pubsub.PublishRun(ctx, r); err != nil {
			svc.logger.Warn("failed to publish run", slog.String("run_id", r.ID), slog.Any("error", err))
		}
	}

	return r, nil
}

// observer stores the epochs of a run and publishes them.
func (svc *service) observer(runID string) engine.Observer {
	base := svc.deps.Observer

	return engine.ObserverFunc(func(ctx context.Context, m engine.EpochMetrics) {
		ep := run.Epoch{
			RunID:        runID,
			Tournament:   m.Tournament,
			Epoch:        m.Epoch,
			TrainLoss:    m.TrainLoss,
			TrainScore:   m.TrainScore,
			ValLoss:      m.ValLoss,
			ValScore:     m.ValScore,
			LearningRate: m.LearningRate,
			Checkpointed: m.Checkpointed,
			Timestamp:    time.Now(),
		}
		if err := svc.epochDB.CreateEpoch(ctx, ep); err != nil {
			svc.logger.Warn("failed to store epoch", slog.String("run_id", runID), slog.Int("epoch", m.Epoch), slog.Any("error", err))
		}
		if svc.pubsub != nil {
			if err := svc.pubsub.PublishEpoch(ctx, ep); err != nil {
				svc.logger.Warn("failed to publish epoch", slog.String("run_id", runID), slog.Int("epoch", m.Epoch), slog.Any("error", err))
			}
		}
		if base != nil {
			base.EpochEnd(ctx, m)
		}
	})
}

func (svc *service) GetRun(ctx context.Context, id string) (run.Run, error) {
	return svc.runsDB.Get(ctx, id)
}

func (svc *service) ListRuns(ctx context.Context, offset, limit uint64) (run.RunPage, error) {
	runs, total, err := svc.runsDB.List(ctx, offset, limit)
	if err != nil {
		return run.RunPage{}, err
	}

	return run.RunPage{
		Offset: offset,
		Limit:  limit,
		Total:  total,
		Runs:   runs,
	}, nil
}

func (svc *service) ListEpochs(ctx context.Context, runID string, offset, limit uint64) (run.EpochPage, error) {
	if _, err := svc.runsDB.Get(ctx, runID); err != nil {
		return run.EpochPage{}, err
	}
	epochs, total, err := svc.epochDB.ListEpochs(ctx, runID, offset, limit)
	if err != nil {
		return run.EpochPage{}, err
	}

	return run.EpochPage{
		Offset: offset,
		Limit:  limit,
		Total:  total,
		Epochs: epochs,
	}, nil
}

func (svc *service) Competitions(context.Context) ([]string, error) {
	return svc.engines.Names(), nil
}
