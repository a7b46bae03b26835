package manager

import (
	"context"
	"log/slog"

	"github.com/absmach/modelfactory/pkg/mqtt"
	"github.com/absmach/modelfactory/run"
)

// Subscribe accepts train and predict requests published on the control
// topics. Progress and results are reported on the run topics.
func Subscribe(ctx context.Context, svc Service, pubsub mqtt.PubSub, logger *slog.Logger) error {
	return pubsub.SubscribeRequests(ctx, Handle(svc, logger))
}

// Handle dispatches run requests. Runs are started in their own goroutine
// so the client's delivery loop is not blocked.
func Handle(svc Service, logger *slog.Logger) mqtt.RequestHandler {
	return func(ctx context.Context, req mqtt.Request) error {
		var dispatch func(context.Context) error
		switch req.Kind {
		case run.KindTrain:
			dispatch = func(ctx context.Context) error {
				_, err := svc.Train(ctx, req.Competition, req.Config)

				return err
			}
		case run.KindPredict:
			dispatch = func(ctx context.Context) error {
				_, err := svc.Predict(ctx, req.Competition, req.Config.WithSubmission(req.Submit))

				return err
			}
		default:
			return nil
		}

		go func() {
			if err := dispatch(ctx); err != nil {
				logger.WarnContext(ctx, "control request failed",
					slog.String("kind", string(req.Kind)),
					slog.String("competition", req.Competition),
					slog.Any("error", err))
			}
		}()

		return nil
	}
}
