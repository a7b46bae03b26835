// Package models holds the model contract used by the trainers, a lazily
// resolved registry of model constructors and data-parallel placement.
package models

import (
	"fmt"
	"sort"

	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Head is one output of a model. Regression heads have a single class.
type Head struct {
	Name    string `cbor:"name"`
	Classes int    `cbor:"classes"`
}

// Param is a dense parameter matrix in row-major order.
type Param struct {
	Rows int       `cbor:"rows"`
	Cols int       `cbor:"cols"`
	Data []float64 `cbor:"data"`
}

// StateDict maps parameter names to values.
type StateDict map[string]Param

// Keys returns the parameter names in sorted order.
func (sd StateDict) Keys() []string {
	keys := make([]string, 0, len(sd))
	for k := range sd {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

func paramOf(m *mat.Dense) Param {
	r, c := m.Dims()
	data := make([]float64, 0, r*c)
	for i := range r {
		data = append(data, m.RawRowView(i)...)
	}

	return Param{Rows: r, Cols: c, Data: data}
}

func (p Param) dense() (*mat.Dense, error) {
	if p.Rows <= 0 || p.Cols <= 0 || len(p.Data) != p.Rows*p.Cols {
		return nil, fmt.Errorf("%w: parameter shape %dx%d with %d values", pkgerrors.ErrInvalidData, p.Rows, p.Cols, len(p.Data))
	}

	return mat.NewDense(p.Rows, p.Cols, append([]float64(nil), p.Data...)), nil
}

// Model is a trainable function from a batch of inputs to one output matrix
// per head. Forward does not mutate the model and may be called
// concurrently. Backward accumulates gradients until Step or ZeroGrad.
type Model interface {
	Init(inputDim int, heads []Head, seed uint64) error
	Heads() []Head
	Forward(x *mat.Dense) ([]*mat.Dense, error)
	Backward(x *mat.Dense, grads []*mat.Dense) error
	Step(lr float64)
	ZeroGrad()
	SetTraining(training bool)
	StateDict() StateDict
	LoadStateDict(sd StateDict) error
}

// Fitter is implemented by models that solve for their weights in closed
// form over a full pass instead of taking gradient steps.
type Fitter interface {
	Fit(x *mat.Dense, y *mat.Dense) error
}

// Matrix packs a batch of float32 rows into a dense matrix.
func Matrix(rows [][]float32) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty batch", pkgerrors.ErrInvalidData)
	}
	cols := len(rows[0])
	if cols == 0 {
		return nil, fmt.Errorf("%w: empty input row", pkgerrors.ErrInvalidData)
	}
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", pkgerrors.ErrInvalidData, i, len(r), cols)
		}
		for _, v := range r {
			data = append(data, float64(v))
		}
	}

	return mat.NewDense(len(rows), cols, data), nil
}
