package dataset

import (
	"archive/zip"
	"context"
	"fmt"
	"math"
	"path"
	"strings"

	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const (
	TrainingFile   = "numerai_training_data.csv"
	TournamentFile = "numerai_tournament_data.csv"

	idCol         = "id"
	eraCol        = "era"
	dataTypeCol   = "data_type"
	featurePrefix = "feature"
	targetPrefix  = "target"

	DataTypeValidation = "validation"
)

// Tabular holds the training and tournament tables of one round.
type Tabular struct {
	training   dataframe.DataFrame
	tournament dataframe.DataFrame
	features   []string
}

// OpenTabularZip reads a round archive holding the training and tournament
// CSV files.
func OpenTabularZip(zipPath string) (*Tabular, error) {
	if err := requireFile(zipPath); err != nil {
		return nil, err
	}
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pkgerrors.ErrInvalidData, err)
	}
	defer zr.Close()

	frames := map[string]dataframe.DataFrame{}
	for _, f := range zr.File {
		name := path.Base(f.Name)
		if name != TrainingFile && name != TournamentFile {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", pkgerrors.ErrInvalidData, err)
		}
		df := dataframe.ReadCSV(rc, dataframe.WithTypes(map[string]series.Type{
			idCol:       series.String,
			eraCol:      series.String,
			dataTypeCol: series.String,
		}))
		rc.Close()
		if df.Err != nil {
			return nil, fmt.Errorf("%w: %s: %w", pkgerrors.ErrInvalidData, name, df.Err)
		}
		frames[name] = df
	}

	for _, name := range []string{TrainingFile, TournamentFile} {
		if _, ok := frames[name]; !ok {
			return nil, fmt.Errorf("%w: %s missing from %s", pkgerrors.ErrDataUnavailable, name, zipPath)
		}
	}

	return NewTabular(frames[TrainingFile], frames[TournamentFile]), nil
}

func NewTabular(training, tournament dataframe.DataFrame) *Tabular {
	var features []string
	for _, name := range training.Names() {
		if strings.HasPrefix(name, featurePrefix) {
			features = append(features, name)
		}
	}

	return &Tabular{training: training, tournament: tournament, features: features}
}

func (t *Tabular) Features() []string {
	return t.features
}

// TargetColumn returns the label column of a tournament.
func TargetColumn(tournament string) string {
	return targetPrefix + "_" + tournament
}

func (t *Tabular) Training(tournament string) (Dataset, error) {
	return tabularDataset(t.training, t.features, TargetColumn(tournament), true)
}

// Validation returns the labelled validation rows of the tournament table.
func (t *Tabular) Validation(tournament string) (Dataset, error) {
	df := t.tournament.Filter(dataframe.F{Colname: dataTypeCol, Comparator: series.Eq, Comparando: DataTypeValidation})
	if df.Err != nil {
		return nil, fmt.Errorf("%w: %w", pkgerrors.ErrInvalidData, df.Err)
	}

	return tabularDataset(df, t.features, TargetColumn(tournament), true)
}

// Tournament returns every row of the tournament table. Unlabelled rows
// carry a NaN target.
func (t *Tabular) Tournament(tournament string) (Dataset, error) {
	return tabularDataset(t.tournament, t.features, TargetColumn(tournament), false)
}

func tabularDataset(df dataframe.DataFrame, features []string, target string, labeled bool) (Dataset, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: no %s columns", pkgerrors.ErrInvalidData, featurePrefix)
	}
	ids := df.Col(idCol).Records()
	eras := df.Col(eraCol).Records()
	if len(eras) != len(ids) {
		return nil, fmt.Errorf("%w: %s column missing", pkgerrors.ErrInvalidData, eraCol)
	}

	targets := make([]float64, len(ids))
	tcol := df.Col(target)
	switch {
	case tcol.Err == nil:
		targets = tcol.Float()
	case labeled:
		return nil, fmt.Errorf("%w: %w", pkgerrors.ErrInvalidData, tcol.Err)
	default:
		for i := range targets {
			targets[i] = math.NaN()
		}
	}

	cols := make([][]float64, len(features))
	for i, name := range features {
		s := df.Col(name)
		if s.Err != nil {
			return nil, fmt.Errorf("%w: %w", pkgerrors.ErrInvalidData, s.Err)
		}
		cols[i] = s.Float()
	}

	out := make(Slice, len(ids))
	for r := range out {
		input := make([]float32, len(features))
		for c := range cols {
			input[c] = float32(cols[c][r])
		}
		out[r] = Sample{ID: ids[r], Group: eras[r], Input: input, Target: targets[r]}
	}

	return out, nil
}

// Eras groups samples of ds by era, preserving first-seen order.
func Eras(ctx context.Context, ds Dataset) ([]string, map[string][]int, error) {
	var order []string
	idx := map[string][]int{}
	for i := range ds.Len() {
		s, err := ds.Get(ctx, i)
		if err != nil {
			return nil, nil, err
		}
		if _, ok := idx[s.Group]; !ok {
			order = append(order, s.Group)
		}
		idx[s.Group] = append(idx[s.Group], i)
	}

	return order, idx, nil
}
