package models

import (
	"fmt"

	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// DataParallel splits every forward pass into one row shard per device and
// runs the shards concurrently against the shared weights. Gradient
// accumulation and optimiser steps happen only on the coordinator, which
// is the first device id.
type DataParallel struct {
	Model
	devices []int
}

func NewDataParallel(m Model, devices []int) (*DataParallel, error) {
	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: data parallel needs at least one device", pkgerrors.ErrConfiguration)
	}

	return &DataParallel{Model: m, devices: append([]int(nil), devices...)}, nil
}

func (dp *DataParallel) Devices() []int {
	return dp.devices
}

func (dp *DataParallel) Coordinator() int {
	return dp.devices[0]
}

// Unwrap returns the wrapped model.
func (dp *DataParallel) Unwrap() Model {
	return dp.Model
}

func (dp *DataParallel) Forward(x *mat.Dense) ([]*mat.Dense, error) {
	n, d := x.Dims()
	shards := min(len(dp.devices), n)
	if shards <= 1 {
		return dp.Model.Forward(x)
	}

	parts := make([][]*mat.Dense, shards)
	bounds := make([]int, shards+1)
	for i := range shards {
		bounds[i+1] = bounds[i] + n/shards
		if i < n%shards {
			bounds[i+1]++
		}
	}

	var g errgroup.Group
	for i := range shards {
		g.Go(func() error {
			shard := x.Slice(bounds[i], bounds[i+1], 0, d).(*mat.Dense)
			out, err := dp.Model.Forward(shard)
			if err != nil {
				return fmt.Errorf("device %d: %w", dp.devices[i], err)
			}
			parts[i] = out

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	heads := len(parts[0])
	merged := make([]*mat.Dense, heads)
	for h := range heads {
		_, classes := parts[0][h].Dims()
		out := mat.NewDense(n, classes, nil)
		for i := range shards {
			for r := bounds[i]; r < bounds[i+1]; r++ {
				out.SetRow(r, parts[i][h].RawRowView(r-bounds[i]))
			}
		}
		merged[h] = out
	}

	return merged, nil
}
