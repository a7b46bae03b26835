package dataset

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/absmach/modelfactory/pkg/fold"
	"github.com/disintegration/imaging"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const (
	imageIDCol = "image_id"
	kfoldCol   = "kfold"
	imageExt   = ".png"
	channels   = 3
	maxDegrees = 5.0
)

// Geometry is the target image size and per-channel normalisation.
type Geometry struct {
	Height int
	Width  int
	Mean   []float64
	Std    []float64
}

// InputDim is the flattened size of one normalised CHW image.
func (g Geometry) InputDim() int {
	return channels * g.Height * g.Width
}

type ImageFoldOptions struct {
	CSVPath  string
	ImageDir string
	Folds    fold.Set
	Tasks    []string
	Geometry Geometry
	Augment  bool
	Seed     uint64
}

type imageRecord struct {
	id     string
	fold   int
	labels map[string]int
}

type imageFolds struct {
	opts    ImageFoldOptions
	records []imageRecord
}

// NewImageFolds reads the fold-assigned training table and keeps only the
// rows whose kfold is in opts.Folds. Images are decoded lazily from
// {ImageDir}/{image_id}.png.
func NewImageFolds(opts ImageFoldOptions) (Dataset, error) {
	df, err := readFrame(opts.CSVPath, map[string]series.Type{imageIDCol: series.String, kfoldCol: series.Int})
	if err != nil {
		return nil, err
	}
	df = filterFolds(df, opts.Folds)
	if df.Err != nil {
		return nil, fmt.Errorf("%w: %w", pkgerrors.ErrInvalidData, df.Err)
	}

	ids := df.Col(imageIDCol).Records()
	folds, err := df.Col(kfoldCol).Int()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", pkgerrors.ErrInvalidData, kfoldCol, err)
	}
	records := make([]imageRecord, len(ids))
	for i := range records {
		records[i] = imageRecord{id: ids[i], fold: folds[i], labels: make(map[string]int, len(opts.Tasks))}
	}
	for _, task := range opts.Tasks {
		labels, err := df.Col(task).Int()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", pkgerrors.ErrInvalidData, task, err)
		}
		for i, l := range labels {
			records[i].labels[task] = l
		}
	}

	return &imageFolds{opts: opts, records: records}, nil
}

func (d *imageFolds) Len() int {
	return len(d.records)
}

func (d *imageFolds) Get(_ context.Context, idx int) (Sample, error) {
	if idx < 0 || idx >= len(d.records) {
		return Sample{}, fmt.Errorf("%w: index %d out of range [0, %d)", pkgerrors.ErrInvalidData, idx, len(d.records))
	}
	rec := d.records[idx]

	path := filepath.Join(d.opts.ImageDir, rec.id+imageExt)
	img, err := imaging.Open(path)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %w", pkgerrors.ErrDataUnavailable, err)
	}
	if d.opts.Augment {
		r := rand.New(rand.NewPCG(d.opts.Seed, uint64(idx)))
		img = imaging.Rotate(img, (r.Float64()*2-1)*maxDegrees, color.Black)
	}

	return Sample{
		ID:     rec.id,
		Fold:   rec.fold,
		Input:  d.opts.Geometry.normalize(img),
		Labels: rec.labels,
	}, nil
}

// normalize resizes img to the geometry and returns it as channel-major
// float32 values scaled to [0, 1] and standardised per channel.
func (g Geometry) normalize(img image.Image) []float32 {
	b := img.Bounds()
	if b.Dx() != g.Width || b.Dy() != g.Height {
		img = imaging.Resize(img, g.Width, g.Height, imaging.Lanczos)
	}
	rgba := imaging.Clone(img)

	plane := g.Height * g.Width
	out := make([]float32, channels*plane)
	for y := range g.Height {
		for x := range g.Width {
			off := rgba.PixOffset(x, y)
			for c := range channels {
				v := float64(rgba.Pix[off+c]) / 255
				out[c*plane+y*g.Width+x] = float32((v - g.channelMean(c)) / g.channelStd(c))
			}
		}
	}

	return out
}

func (g Geometry) channelMean(c int) float64 {
	if c < len(g.Mean) {
		return g.Mean[c]
	}

	return 0
}

func (g Geometry) channelStd(c int) float64 {
	if c < len(g.Std) && g.Std[c] != 0 {
		return g.Std[c]
	}

	return 1
}

func readFrame(path string, types map[string]series.Type) (dataframe.DataFrame, error) {
	if err := requireFile(path); err != nil {
		return dataframe.DataFrame{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %w", pkgerrors.ErrDataUnavailable, err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f, dataframe.WithTypes(types))
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %s: %w", pkgerrors.ErrInvalidData, path, df.Err)
	}

	return df, nil
}

func filterFolds(df dataframe.DataFrame, folds fold.Set) dataframe.DataFrame {
	values := make([]string, len(folds))
	for i, f := range folds {
		values[i] = strconv.Itoa(f)
	}

	return df.Filter(dataframe.F{Colname: kfoldCol, Comparator: series.In, Comparando: values})
}
