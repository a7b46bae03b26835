package middleware

import (
	"context"
	"time"

	modelfactory "github.com/absmach/modelfactory"
	"github.com/absmach/modelfactory/manager"
	"github.com/absmach/modelfactory/run"
	"github.com/go-kit/kit/metrics"
)

var _ manager.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     manager.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc manager.Service) manager.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) Train(ctx context.Context, competition string, cfg modelfactory.Config) (run.Run, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "train").Add(1)
		mm.latency.With("method", "train").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Train(ctx, competition, cfg)
}

func (mm *metricsMiddleware) Predict(ctx context.Context, competition string, cfg modelfactory.Config) (manager.Prediction, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "predict").Add(1)
		mm.latency.With("method", "predict").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Predict(ctx, competition, cfg)
}

func (mm *metricsMiddleware) GetRun(ctx context.Context, id string) (run.Run, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-run").Add(1)
		mm.latency.With("method", "get-run").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetRun(ctx, id)
}

func (mm *metricsMiddleware) ListRuns(ctx context.Context, offset, limit uint64) (run.RunPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-runs").Add(1)
		mm.latency.With("method", "list-runs").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListRuns(ctx, offset, limit)
}

func (mm *metricsMiddleware) ListEpochs(ctx context.Context, runID string, offset, limit uint64) (run.EpochPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-epochs").Add(1)
		mm.latency.With("method", "list-epochs").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListEpochs(ctx, runID, offset, limit)
}

func (mm *metricsMiddleware) Competitions(ctx context.Context) ([]string, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "competitions").Add(1)
		mm.latency.With("method", "competitions").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Competitions(ctx)
}
