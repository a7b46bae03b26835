// Package manager runs training and prediction requests through the
// competition engines and records every run.
package manager

import (
	"context"

	modelfactory "github.com/absmach/modelfactory"
	"github.com/absmach/modelfactory/pkg/submission"
	"github.com/absmach/modelfactory/run"
)

// Prediction is a finished prediction run with its outputs.
type Prediction struct {
	Run         run.Run                                     `json:"run"`
	Records     []submission.Record                         `json:"records,omitempty"`
	Tournaments map[string]submission.TournamentPredictions `json:"tournaments,omitempty"`
}

type Service interface {
	// Train builds the engine of competition, trains it and records the run.
	Train(ctx context.Context, competition string, cfg modelfactory.Config) (run.Run, error)
	// Predict builds the engine of competition, runs inference and records
	// the run.
	Predict(ctx context.Context, competition string, cfg modelfactory.Config) (Prediction, error)
	GetRun(ctx context.Context, id string) (run.Run, error)
	ListRuns(ctx context.Context, offset, limit uint64) (run.RunPage, error)
	ListEpochs(ctx context.Context, runID string, offset, limit uint64) (run.EpochPage, error)
	Competitions(ctx context.Context) ([]string, error)
}
