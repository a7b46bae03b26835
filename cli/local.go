package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	modelfactory "github.com/absmach/modelfactory"
	"github.com/absmach/modelfactory/engine"
	"github.com/absmach/modelfactory/pkg/blobstore"
	"github.com/schollz/progressbar/v3"
)

// localEngine builds the engine of competition in process. Epoch progress
// is drawn on out. The returned closer releases the blob provider.
func localEngine(competition string, cfg modelfactory.Config, out io.Writer, logger *slog.Logger) (engine.Engine, func(), error) {
	cfg = cfg.WithDefaults()
	deps := engine.Deps{Logger: logger}
	closer := func() {}

	if cfg.Storage.Kind != "" {
		p, err := blobstore.NewProvider(cfg.Storage.Kind, cfg.Storage.Endpoint, cfg.Storage.Secure)
		if err != nil {
			return nil, nil, err
		}
		deps.Blobs = p
		closer = func() {
			if err := p.Close(); err != nil {
				logger.Warn("failed to close blob store", slog.Any("error", err))
			}
		}
	}

	total := cfg.Training.Epochs
	if competition == engine.NumeraiName {
		total = len(cfg.Tournament.Names)
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(competition),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	deps.Observer = engine.ObserverFunc(func(_ context.Context, m engine.EpochMetrics) {
		label := fmt.Sprintf("%s epoch %d val %.4f", competition, m.Epoch, m.ValScore)
		if m.Tournament != "" {
			label = fmt.Sprintf("%s %s val %.4f", competition, m.Tournament, m.ValScore)
		}
		bar.Describe(label)
		_ = bar.Add(1)
	})

	e, err := engine.DefaultFactory().New(competition, cfg, deps)
	if err != nil {
		closer()

		return nil, nil, err
	}

	return e, func() {
		_ = bar.Finish()
		closer()
	}, nil
}
