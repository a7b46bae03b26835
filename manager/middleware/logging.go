package middleware

import (
	"context"
	"log/slog"
	"time"

	modelfactory "github.com/absmach/modelfactory"
	"github.com/absmach/modelfactory/manager"
	"github.com/absmach/modelfactory/run"
)

var _ manager.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    manager.Service
}

func Logging(logger *slog.Logger, svc manager.Service) manager.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) Train(ctx context.Context, competition string, cfg modelfactory.Config) (resp run.Run, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("run",
				slog.String("id", resp.ID),
				slog.String("name", resp.Name),
				slog.String("competition", competition),
				slog.String("model", cfg.Model.Name),
				slog.Int("epochs", resp.Epochs),
				slog.Float64("best_score", resp.BestScore),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Train failed", args...)

			return
		}
		lm.logger.Info("Train completed successfully", args...)
	}(time.Now())

	return lm.svc.Train(ctx, competition, cfg)
}

func (lm *loggingMiddleware) Predict(ctx context.Context, competition string, cfg modelfactory.Config) (resp manager.Prediction, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("run",
				slog.String("id", resp.Run.ID),
				slog.String("name", resp.Run.Name),
				slog.String("competition", competition),
				slog.String("model", cfg.Model.Name),
				slog.Int("folds", resp.Run.Folds),
				slog.Int("rows", len(resp.Records)),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Predict failed", args...)

			return
		}
		lm.logger.Info("Predict completed successfully", args...)
	}(time.Now())

	return lm.svc.Predict(ctx, competition, cfg)
}

func (lm *loggingMiddleware) GetRun(ctx context.Context, id string) (resp run.Run, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("run",
				slog.String("id", id),
				slog.String("name", resp.Name),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get run failed", args...)

			return
		}
		lm.logger.Info("Get run completed successfully", args...)
	}(time.Now())

	return lm.svc.GetRun(ctx, id)
}

func (lm *loggingMiddleware) ListRuns(ctx context.Context, offset, limit uint64) (resp run.RunPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List runs failed", args...)

			return
		}
		lm.logger.Info("List runs completed successfully", args...)
	}(time.Now())

	return lm.svc.ListRuns(ctx, offset, limit)
}

func (lm *loggingMiddleware) ListEpochs(ctx context.Context, runID string, offset, limit uint64) (resp run.EpochPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("run_id", runID),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List epochs failed", args...)

			return
		}
		lm.logger.Info("List epochs completed successfully", args...)
	}(time.Now())

	return lm.svc.ListEpochs(ctx, runID, offset, limit)
}

func (lm *loggingMiddleware) Competitions(ctx context.Context) (resp []string, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Any("competitions", resp),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List competitions failed", args...)

			return
		}
		lm.logger.Info("List competitions completed successfully", args...)
	}(time.Now())

	return lm.svc.Competitions(ctx)
}
