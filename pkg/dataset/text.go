package dataset

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/absmach/modelfactory/pkg/fold"
	"github.com/go-gota/gota/series"
)

type TextOptions struct {
	CSVPath string
	// Folds restricts rows by kfold. Nil keeps every row, which is how
	// unlabelled test files are read.
	Folds       fold.Set
	IDColumn    string
	TextColumns []string
	// LabelColumn is empty for unlabelled data.
	LabelColumn string
	Task        string
	// LabelMap maps raw label values to classes. When nil the raw value
	// must be an integer.
	LabelMap  map[string]int
	Tokenizer Tokenizer
}

type textRecord struct {
	id    string
	fold  int
	text  string
	label int
}

type textDataset struct {
	opts    TextOptions
	labeled bool
	records []textRecord
}

func NewText(opts TextOptions) (Dataset, error) {
	types := map[string]series.Type{}
	for _, c := range opts.TextColumns {
		types[c] = series.String
	}
	if opts.IDColumn != "" {
		types[opts.IDColumn] = series.String
	}
	if opts.LabelColumn != "" {
		types[opts.LabelColumn] = series.String
	}

	df, err := readFrame(opts.CSVPath, types)
	if err != nil {
		return nil, err
	}
	if opts.Folds != nil {
		df = filterFolds(df, opts.Folds)
		if df.Err != nil {
			return nil, fmt.Errorf("%w: %w", pkgerrors.ErrInvalidData, df.Err)
		}
	}

	n := df.Nrow()
	records := make([]textRecord, n)
	for i := range records {
		records[i].id = strconv.Itoa(i)
		records[i].fold = -1
	}
	if opts.IDColumn != "" {
		for i, id := range df.Col(opts.IDColumn).Records() {
			records[i].id = id
		}
	}
	if opts.Folds != nil {
		folds, err := df.Col(kfoldCol).Int()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", pkgerrors.ErrInvalidData, kfoldCol, err)
		}
		for i, f := range folds {
			records[i].fold = f
		}
	}

	parts := make([][]string, len(opts.TextColumns))
	for c, col := range opts.TextColumns {
		s := df.Col(col)
		if s.Err != nil {
			return nil, fmt.Errorf("%w: %w", pkgerrors.ErrInvalidData, s.Err)
		}
		parts[c] = s.Records()
	}
	for i := range records {
		fields := make([]string, len(parts))
		for c := range parts {
			fields[c] = parts[c][i]
		}
		records[i].text = strings.Join(fields, " ")
	}

	labeled := opts.LabelColumn != ""
	if labeled {
		for i, raw := range df.Col(opts.LabelColumn).Records() {
			label, err := opts.label(raw)
			if err != nil {
				return nil, err
			}
			records[i].label = label
		}
	}

	return &textDataset{opts: opts, labeled: labeled, records: records}, nil
}

func (o TextOptions) label(raw string) (int, error) {
	if o.LabelMap != nil {
		l, ok := o.LabelMap[raw]
		if !ok {
			return 0, fmt.Errorf("%w: unknown label %q", pkgerrors.ErrInvalidData, raw)
		}

		return l, nil
	}
	l, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: label %q: %w", pkgerrors.ErrInvalidData, raw, err)
	}

	return l, nil
}

func (d *textDataset) Len() int {
	return len(d.records)
}

func (d *textDataset) Get(_ context.Context, idx int) (Sample, error) {
	if idx < 0 || idx >= len(d.records) {
		return Sample{}, fmt.Errorf("%w: index %d out of range [0, %d)", pkgerrors.ErrInvalidData, idx, len(d.records))
	}
	rec := d.records[idx]
	s := Sample{
		ID:    rec.id,
		Fold:  rec.fold,
		Input: d.opts.Tokenizer.Encode(rec.text),
	}
	if d.labeled {
		s.Labels = map[string]int{d.opts.Task: rec.label}
	}

	return s, nil
}
