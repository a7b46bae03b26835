package testutil

import (
	"time"

	"github.com/absmach/modelfactory/run"
)

func TestRun(id string) run.Run {
	now := time.Now().UTC().Truncate(time.Millisecond)

	return run.Run{
		ID:           id,
		Name:         "test-run-" + id,
		Kind:         run.KindTrain,
		Competition:  "bengali",
		State:        run.Completed,
		EngineState:  "early_stopped",
		BestScore:    0.91,
		Epochs:       7,
		StoppedEarly: true,
		Checkpoints:  []string{"models/resnet34_bengali_fold4.pth"},
		StartTime:    now.Add(-time.Minute),
		FinishTime:   now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestEpoch(runID string, epoch int) run.Epoch {
	return run.Epoch{
		RunID:        runID,
		Epoch:        epoch,
		TrainLoss:    1.0 / float64(epoch),
		TrainScore:   0.5,
		ValLoss:      1.2 / float64(epoch),
		ValScore:     0.4,
		LearningRate: 1e-4,
		Checkpointed: epoch == 1,
		Timestamp:    time.Now().UTC().Truncate(time.Millisecond).Add(time.Duration(epoch) * time.Millisecond),
	}
}
