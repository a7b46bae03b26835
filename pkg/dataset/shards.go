package dataset

import (
	"context"
	"fmt"
	"image"
	"path/filepath"

	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/go-gota/gota/series"
)

// ShardPath returns the path of test shard idx under dir.
func ShardPath(dir string, idx int) string {
	return filepath.Join(dir, fmt.Sprintf("test_image_data_%d.csv", idx))
}

type imageShard struct {
	geo    Geometry
	ids    []string
	pixels [][]uint8
}

// NewImageShard loads one flattened grayscale test shard. Every row is an
// image_id followed by Height*Width pixel intensities.
func NewImageShard(path string, geo Geometry) (Dataset, error) {
	df, err := readFrame(path, map[string]series.Type{imageIDCol: series.String})
	if err != nil {
		return nil, err
	}

	ids := df.Col(imageIDCol).Records()
	px := df.Drop(imageIDCol)
	if px.Err != nil {
		return nil, fmt.Errorf("%w: %w", pkgerrors.ErrInvalidData, px.Err)
	}
	rows, cols := px.Dims()
	if want := geo.Height * geo.Width; cols != want {
		return nil, fmt.Errorf("%w: %s has %d pixel columns, want %d", pkgerrors.ErrInvalidData, path, cols, want)
	}

	pixels := make([][]uint8, rows)
	for i := range rows {
		row := make([]uint8, cols)
		for j := range cols {
			v := px.Elem(i, j).Float()
			row[j] = uint8(min(max(v, 0), 255))
		}
		pixels[i] = row
	}

	return &imageShard{geo: geo, ids: ids, pixels: pixels}, nil
}

func (d *imageShard) Len() int {
	return len(d.ids)
}

func (d *imageShard) Get(_ context.Context, idx int) (Sample, error) {
	if idx < 0 || idx >= len(d.ids) {
		return Sample{}, fmt.Errorf("%w: index %d out of range [0, %d)", pkgerrors.ErrInvalidData, idx, len(d.ids))
	}
	img := &image.Gray{
		Pix:    d.pixels[idx],
		Stride: d.geo.Width,
		Rect:   image.Rect(0, 0, d.geo.Width, d.geo.Height),
	}

	return Sample{ID: d.ids[idx], Input: d.geo.normalize(img)}, nil
}
