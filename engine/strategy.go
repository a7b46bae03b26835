package engine

import (
	modelfactory "github.com/absmach/modelfactory"
	"github.com/absmach/modelfactory/pkg/dataset"
	"github.com/absmach/modelfactory/pkg/fold"
	"github.com/absmach/modelfactory/pkg/models"
)

const (
	BengaliName = "bengali"
	IMDBName    = "imdb"
	GoogleName  = "google"
	NumeraiName = "numerai"
)

// Strategy is what a fold-based competition contributes to the shared
// training loop: its output heads, its datasets and its checkpoint domain.
type Strategy interface {
	// Name is the competition name the engine and trainer are keyed by.
	Name() string
	// Domain names the competition in checkpoint keys.
	Domain() string
	Heads() []models.Head
	// ScoreWeights weight the per-head scores. Nil weighs heads equally.
	ScoreWeights() []float64
	InputDim(cfg modelfactory.Config) int
	// Dataset builds the labelled dataset restricted to folds.
	Dataset(cfg modelfactory.Config, folds fold.Set, role dataset.Role) (dataset.Dataset, error)
	// TestSets builds the unlabelled datasets inference runs over, in
	// order.
	TestSets(cfg modelfactory.Config) ([]dataset.Dataset, error)
}

func taskNames(heads []models.Head) []string {
	names := make([]string, len(heads))
	for i, h := range heads {
		names[i] = h.Name
	}

	return names
}

// Bengali is grapheme classification over handwritten character images
// with three heads.
type Bengali struct{}

func (Bengali) Name() string {
	return BengaliName
}

func (Bengali) Domain() string {
	return BengaliName
}

func (Bengali) Heads() []models.Head {
	return []models.Head{
		{Name: "grapheme_root", Classes: 168},
		{Name: "vowel_diacritic", Classes: 11},
		{Name: "consonant_diacritic", Classes: 7},
	}
}

func (Bengali) ScoreWeights() []float64 {
	return []float64{2, 1, 1}
}

func (Bengali) geometry(cfg modelfactory.Config) dataset.Geometry {
	return dataset.Geometry{
		Height: cfg.Data.ImageHeight,
		Width:  cfg.Data.ImageWidth,
		Mean:   cfg.Data.Mean,
		Std:    cfg.Data.Std,
	}
}

func (b Bengali) InputDim(cfg modelfactory.Config) int {
	return b.geometry(cfg).InputDim()
}

func (b Bengali) Dataset(cfg modelfactory.Config, folds fold.Set, role dataset.Role) (dataset.Dataset, error) {
	return dataset.NewImageFolds(dataset.ImageFoldOptions{
		CSVPath:  cfg.Data.TrainPath,
		ImageDir: cfg.Data.ImagePath,
		Folds:    folds,
		Tasks:    taskNames(b.Heads()),
		Geometry: b.geometry(cfg),
		Augment:  role == dataset.RoleTrain,
		Seed:     uint64(cfg.Training.Seed),
	})
}

func (b Bengali) TestSets(cfg modelfactory.Config) ([]dataset.Dataset, error) {
	sets := make([]dataset.Dataset, cfg.Data.TestShards)
	for i := range sets {
		ds, err := dataset.NewImageShard(dataset.ShardPath(cfg.Data.TestPath, i), b.geometry(cfg))
		if err != nil {
			return nil, err
		}
		sets[i] = ds
	}

	return sets, nil
}

// IMDB is binary sentiment classification of movie reviews.
type IMDB struct{}

func (IMDB) Name() string {
	return IMDBName
}

func (IMDB) Domain() string {
	return IMDBName
}

func (IMDB) Heads() []models.Head {
	return []models.Head{{Name: "sentiment", Classes: 2}}
}

func (IMDB) ScoreWeights() []float64 {
	return nil
}

func (IMDB) InputDim(cfg modelfactory.Config) int {
	return cfg.Data.HashDim
}

func (i IMDB) options(cfg modelfactory.Config, path string, folds fold.Set) dataset.TextOptions {
	return dataset.TextOptions{
		CSVPath:     path,
		Folds:       folds,
		TextColumns: []string{"review"},
		LabelColumn: "sentiment",
		Task:        i.Heads()[0].Name,
		LabelMap:    map[string]int{"negative": 0, "positive": 1},
		Tokenizer:   dataset.Tokenizer{MaxLen: cfg.Data.MaxLen, HashDim: cfg.Data.HashDim},
	}
}

func (i IMDB) Dataset(cfg modelfactory.Config, folds fold.Set, _ dataset.Role) (dataset.Dataset, error) {
	return dataset.NewText(i.options(cfg, cfg.Data.TrainPath, folds))
}

// TestSets reads the held-out test folds. Their labels are ignored at
// inference time.
func (i IMDB) TestSets(cfg modelfactory.Config) ([]dataset.Dataset, error) {
	opts := i.options(cfg, cfg.Data.TestPath, cfg.Training.TestFolds)
	opts.LabelColumn = ""
	ds, err := dataset.NewText(opts)
	if err != nil {
		return nil, err
	}

	return []dataset.Dataset{ds}, nil
}

// GoogleQA classifies question and answer pairs into their site category.
type GoogleQA struct{}

func (GoogleQA) Name() string {
	return GoogleName
}

func (GoogleQA) Domain() string {
	return "googleqa"
}

func (GoogleQA) Heads() []models.Head {
	return []models.Head{{Name: "category", Classes: 5}}
}

func (GoogleQA) ScoreWeights() []float64 {
	return nil
}

func (GoogleQA) InputDim(cfg modelfactory.Config) int {
	return cfg.Data.HashDim
}

func (g GoogleQA) options(cfg modelfactory.Config, path string) dataset.TextOptions {
	return dataset.TextOptions{
		CSVPath:     path,
		IDColumn:    "qa_id",
		TextColumns: []string{"question_title", "question_body", "answer"},
		Task:        g.Heads()[0].Name,
		Tokenizer:   dataset.Tokenizer{MaxLen: cfg.Data.MaxLen, HashDim: cfg.Data.HashDim},
	}
}

func (g GoogleQA) Dataset(cfg modelfactory.Config, folds fold.Set, _ dataset.Role) (dataset.Dataset, error) {
	opts := g.options(cfg, cfg.Data.TrainPath)
	opts.Folds = folds
	opts.LabelColumn = "category"
	opts.LabelMap = map[string]int{
		"CULTURE":       0,
		"LIFE_ARTS":     1,
		"SCIENCE":       2,
		"STACKOVERFLOW": 3,
		"TECHNOLOGY":    4,
	}

	return dataset.NewText(opts)
}

func (g GoogleQA) TestSets(cfg modelfactory.Config) ([]dataset.Dataset, error) {
	ds, err := dataset.NewText(g.options(cfg, cfg.Data.TestPath))
	if err != nil {
		return nil, err
	}

	return []dataset.Dataset{ds}, nil
}
