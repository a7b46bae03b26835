package middleware

import (
	"context"

	modelfactory "github.com/absmach/modelfactory"
	"github.com/absmach/modelfactory/manager"
	"github.com/absmach/modelfactory/run"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var _ manager.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    manager.Service
}

func Tracing(tracer trace.Tracer, svc manager.Service) manager.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) Train(ctx context.Context, competition string, cfg modelfactory.Config) (run.Run, error) {
	ctx, span := tm.tracer.Start(ctx, "train", trace.WithAttributes(
		attribute.String("competition", competition),
		attribute.String("model", cfg.Model.Name),
		attribute.Int("epochs", cfg.Training.Epochs),
	))
	defer span.End()

	return tm.svc.Train(ctx, competition, cfg)
}

func (tm *tracing) Predict(ctx context.Context, competition string, cfg modelfactory.Config) (manager.Prediction, error) {
	ctx, span := tm.tracer.Start(ctx, "predict", trace.WithAttributes(
		attribute.String("competition", competition),
		attribute.String("model", cfg.Model.Name),
		attribute.String("inference_folds", cfg.Training.InferenceFolds.String()),
	))
	defer span.End()

	return tm.svc.Predict(ctx, competition, cfg)
}

func (tm *tracing) GetRun(ctx context.Context, id string) (run.Run, error) {
	ctx, span := tm.tracer.Start(ctx, "get-run", trace.WithAttributes(
		attribute.String("id", id),
	))
	defer span.End()

	return tm.svc.GetRun(ctx, id)
}

func (tm *tracing) ListRuns(ctx context.Context, offset, limit uint64) (run.RunPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-runs", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListRuns(ctx, offset, limit)
}

func (tm *tracing) ListEpochs(ctx context.Context, runID string, offset, limit uint64) (run.EpochPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-epochs", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListEpochs(ctx, runID, offset, limit)
}

func (tm *tracing) Competitions(ctx context.Context) ([]string, error) {
	ctx, span := tm.tracer.Start(ctx, "competitions")
	defer span.End()

	return tm.svc.Competitions(ctx)
}
