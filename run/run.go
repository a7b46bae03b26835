// Package run describes the training and prediction runs the manager
// executes and records.
package run

import "time"

type State uint8

const (
	Pending State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Running:
		return "Running"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

type Kind string

const (
	KindTrain   Kind = "train"
	KindPredict Kind = "predict"
)

// Run is the record of one engine invocation.
type Run struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Kind           Kind               `json:"kind"`
	Competition    string             `json:"competition"`
	State          State              `json:"state"`
	EngineState    string             `json:"engine_state,omitempty"`
	BestScore      float64            `json:"best_score"`
	Epochs         int                `json:"epochs"`
	StoppedEarly   bool               `json:"stopped_early"`
	Folds          int                `json:"folds,omitempty"`
	Checkpoints    []string           `json:"checkpoints,omitempty"`
	SubmissionPath string             `json:"submission_path,omitempty"`
	Files          []string           `json:"files,omitempty"`
	Tournaments    map[string]float64 `json:"tournaments,omitempty"`
	Error          string             `json:"error,omitempty"`
	StartTime      time.Time          `json:"start_time"`
	FinishTime     time.Time          `json:"finish_time"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

type RunPage struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
	Total  uint64 `json:"total"`
	Runs   []Run  `json:"runs"`
}

// Epoch is the progress record of one training epoch of a run.
type Epoch struct {
	RunID        string    `json:"run_id"`
	Tournament   string    `json:"tournament,omitempty"`
	Epoch        int       `json:"epoch"`
	TrainLoss    float64   `json:"train_loss"`
	TrainScore   float64   `json:"train_score"`
	ValLoss      float64   `json:"val_loss"`
	ValScore     float64   `json:"val_score"`
	LearningRate float64   `json:"learning_rate"`
	Checkpointed bool      `json:"checkpointed"`
	Timestamp    time.Time `json:"timestamp"`
}

type EpochPage struct {
	Offset uint64  `json:"offset"`
	Limit  uint64  `json:"limit"`
	Total  uint64  `json:"total"`
	Epochs []Epoch `json:"epochs"`
}
