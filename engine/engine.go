// Package engine composes datasets, a trainer and checkpoint storage into
// the training and inference lifecycle of one competition.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	modelfactory "github.com/absmach/modelfactory"
	"github.com/absmach/modelfactory/pkg/blobstore"
	"github.com/absmach/modelfactory/pkg/device"
	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/absmach/modelfactory/pkg/models"
	"github.com/absmach/modelfactory/pkg/submission"
	"github.com/absmach/modelfactory/pkg/tournament"
	"github.com/absmach/modelfactory/trainer"
)

// State is a step of the engine lifecycle.
type State uint8

const (
	Initialized State = iota
	Configured
	Training
	EarlyStopped
	EpochsExhausted
	Done
)

func (s State) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Configured:
		return "configured"
	case Training:
		return "training"
	case EarlyStopped:
		return "early_stopped"
	case EpochsExhausted:
		return "epochs_exhausted"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// EpochMetrics is reported once per epoch. Tournament is set only by the
// tabular engine.
type EpochMetrics struct {
	Tournament   string  `json:"tournament,omitempty"`
	Epoch        int     `json:"epoch"`
	TrainLoss    float64 `json:"train_loss"`
	TrainScore   float64 `json:"train_score"`
	ValLoss      float64 `json:"val_loss"`
	ValScore     float64 `json:"val_score"`
	LearningRate float64 `json:"learning_rate"`
	Checkpointed bool    `json:"checkpointed"`
}

// Observer is notified after every epoch.
type Observer interface {
	EpochEnd(ctx context.Context, m EpochMetrics)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, m EpochMetrics)

func (f ObserverFunc) EpochEnd(ctx context.Context, m EpochMetrics) {
	f(ctx, m)
}

type TrainResult struct {
	Competition  string             `json:"competition"`
	State        string             `json:"state"`
	BestScore    float64            `json:"best_score"`
	Epochs       int                `json:"epochs"`
	StoppedEarly bool               `json:"stopped_early"`
	Checkpoints  []string           `json:"checkpoints,omitempty"`
	Tournaments  map[string]float64 `json:"tournaments,omitempty"`
}

type PredictResult struct {
	Competition    string                                      `json:"competition"`
	Folds          int                                         `json:"folds,omitempty"`
	Records        []submission.Record                         `json:"records,omitempty"`
	SubmissionPath string                                      `json:"submission_path,omitempty"`
	Tournaments    map[string]submission.TournamentPredictions `json:"tournaments,omitempty"`
	Files          []string                                    `json:"files,omitempty"`
}

// Engine runs one competition. An engine runs once: after Train or
// Predict returns it is Done and further calls fail with ErrEngineDone.
type Engine interface {
	Name() string
	State() State
	Train(ctx context.Context) (TrainResult, error)
	Predict(ctx context.Context) (PredictResult, error)
}

// Deps are the collaborators shared by every engine.
type Deps struct {
	Trainers  trainer.Factory
	Models    *models.Registry
	Blobs     blobstore.Provider
	Fetcher   tournament.Fetcher
	Clock     submission.Clock
	Inventory device.Inventory
	Observer  Observer
	Logger    *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Trainers == nil {
		d.Trainers = trainer.DefaultFactory()
	}
	if d.Models == nil {
		d.Models = models.DefaultRegistry()
	}
	if d.Clock == nil {
		d.Clock = submission.SystemClock()
	}
	if d.Inventory.Cores == 0 {
		d.Inventory = device.Detect()
	}
	if d.Observer == nil {
		d.Observer = ObserverFunc(func(context.Context, EpochMetrics) {})
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	return d
}

// Constructor builds an engine for a configuration.
type Constructor func(cfg modelfactory.Config, deps Deps) (Engine, error)

// Factory maps competition names to engine constructors.
type Factory map[string]Constructor

func DefaultFactory() Factory {
	return Factory{
		BengaliName: NewFoldEngineFor(Bengali{}),
		IMDBName:    NewFoldEngineFor(IMDB{}),
		GoogleName:  NewFoldEngineFor(GoogleQA{}),
		NumeraiName: NewTournamentEngine,
	}
}

func (f Factory) Get(name string) (Constructor, error) {
	ctor, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("%w: %w: engine %q", pkgerrors.ErrConfiguration, pkgerrors.ErrUnknownDomain, name)
	}

	return ctor, nil
}

// New looks up and builds the engine of a competition.
func (f Factory) New(name string, cfg modelfactory.Config, deps Deps) (Engine, error) {
	ctor, err := f.Get(name)
	if err != nil {
		return nil, err
	}

	return ctor(cfg, deps)
}

func (f Factory) Names() []string {
	names := make([]string, 0, len(f))
	for n := range f {
		names = append(names, n)
	}
	sort.Strings(names)

	return names
}

// lifecycle guards the one-shot state machine shared by the engines.
type lifecycle struct {
	state State
}

func (l *lifecycle) State() State {
	return l.state
}

func (l *lifecycle) begin() error {
	if l.state == Done {
		return pkgerrors.ErrEngineDone
	}
	if l.state != Configured {
		return fmt.Errorf("%w: engine is %s", pkgerrors.ErrConfiguration, l.state)
	}

	return nil
}

func (l *lifecycle) finish() {
	l.state = Done
}
