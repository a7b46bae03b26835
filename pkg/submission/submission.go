package submission

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const (
	RowIDColumn  = "row_id"
	TargetColumn = "target"

	timestampLayout = "20060102_150405"
)

// Record is one row of a submission.
type Record struct {
	RowID  string `json:"row_id"`
	Target int    `json:"target"`
}

var createFile = func(path string) (io.WriteCloser, error) { return os.Create(path) }

// Clock supplies the time used to name submission files.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return systemClock{}
}

// Expand renders one row per sample and task, in sample order then task
// order. Row ids are the sample id suffixed with the task name.
func Expand(ids []string, tasks []string, classes map[string][]int) ([]Record, error) {
	for _, t := range tasks {
		if len(classes[t]) != len(ids) {
			return nil, fmt.Errorf("%w: task %s has %d classes for %d ids", pkgerrors.ErrInvalidData, t, len(classes[t]), len(ids))
		}
	}

	out := make([]Record, 0, len(ids)*len(tasks))
	for i, id := range ids {
		for _, t := range tasks {
			out = append(out, Record{RowID: id + "_" + t, Target: classes[t][i]})
		}
	}

	return out, nil
}

// Records averages the aggregate and expands it into submission rows.
func Records(a *Aggregate) ([]Record, error) {
	classes, err := a.Classes()
	if err != nil {
		return nil, err
	}

	return Expand(a.IDs(), a.Tasks(), classes)
}

// Frame converts records to a two-column frame.
func Frame(records []Record) dataframe.DataFrame {
	ids := make([]string, len(records))
	targets := make([]int, len(records))
	for i, r := range records {
		ids[i] = r.RowID
		targets[i] = r.Target
	}

	return dataframe.New(
		series.New(ids, series.String, RowIDColumn),
		series.New(targets, series.Int, TargetColumn),
	)
}

// Write stores records as submission_<timestamp>.csv under dir and returns
// the file path.
func Write(dir string, clock Clock, records []Record) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("submission_%s.csv", clock.Now().Format(timestampLayout)))

	return path, WriteFrame(path, Frame(records))
}

// WriteFrame writes df as CSV with a header row, creating parent
// directories.
func WriteFrame(path string, df dataframe.DataFrame) error {
	if df.Err != nil {
		return fmt.Errorf("%w: %w", pkgerrors.ErrInvalidData, df.Err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: %w", pkgerrors.ErrCheckpointIO, err)
	}
	f, err := createFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", pkgerrors.ErrCheckpointIO, err)
	}
	if err := df.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("%w: %w", pkgerrors.ErrCheckpointIO, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", pkgerrors.ErrCheckpointIO, err)
	}

	return nil
}

// TournamentPredictions is the tabular prediction file of one tournament.
type TournamentPredictions struct {
	Tournament  string    `json:"tournament"`
	IDs         []string  `json:"ids"`
	Probability []float64 `json:"probability"`
}

func (p TournamentPredictions) Frame() dataframe.DataFrame {
	return dataframe.New(
		series.New(p.IDs, series.String, "id"),
		series.New(p.Probability, series.Float, "probability_"+p.Tournament),
	)
}

// Write stores the predictions as {tournament}_predictions.csv under dir.
func (p TournamentPredictions) Write(dir string) (string, error) {
	path := filepath.Join(dir, p.Tournament+"_predictions.csv")

	return path, WriteFrame(path, p.Frame())
}
