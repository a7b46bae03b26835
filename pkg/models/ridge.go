package models

import (
	"fmt"

	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	RidgeName = "ridge"

	defLambda = 1.0
)

// ridge is an L2-regularised least squares regressor. It can be trained
// with gradient steps like linear or solved exactly with Fit.
type ridge struct {
	*linear
	lambda float64
}

func NewRidge() Model {
	return &ridge{linear: &linear{}, lambda: defLambda}
}

func (r *ridge) Init(inputDim int, heads []Head, seed uint64) error {
	for _, h := range heads {
		if h.Classes != 1 {
			return fmt.Errorf("%w: ridge head %s must have one output, got %d", pkgerrors.ErrConfiguration, h.Name, h.Classes)
		}
	}

	return r.linear.Init(inputDim, heads, seed)
}

// Fit solves (XcᵀXc + λI)w = Xcᵀyc on column-centred data for every head
// and sets the bias so predictions are unbiased on the training set. Column
// j of y is the target of head j.
func (r *ridge) Fit(x *mat.Dense, y *mat.Dense) error {
	if err := r.check(x); err != nil {
		return err
	}
	n, d := x.Dims()
	yn, heads := y.Dims()
	if yn != n || heads != len(r.layers) {
		return fmt.Errorf("%w: targets are %dx%d, want %dx%d", pkgerrors.ErrInvalidData, yn, heads, n, len(r.layers))
	}

	xMean := columnMeans(x)
	yMean := columnMeans(y)
	var xc, yc mat.Dense
	xc.Apply(func(_, j int, v float64) float64 { return v - xMean[j] }, x)
	yc.Apply(func(_, j int, v float64) float64 { return v - yMean[j] }, y)

	gram := mat.NewSymDense(d, nil)
	gram.SymOuterK(1, xc.T())
	for i := range d {
		gram.SetSym(i, i, gram.At(i, i)+r.lambda)
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return fmt.Errorf("%w: normal equations are not positive definite", pkgerrors.ErrInvalidData)
	}

	var xty, w mat.Dense
	xty.Mul(xc.T(), &yc)
	if err := chol.SolveTo(&w, &xty); err != nil {
		return fmt.Errorf("%w: %w", pkgerrors.ErrInvalidData, err)
	}

	for h, ly := range r.layers {
		col := mat.Col(nil, h, &w)
		bias := yMean[h]
		for j, wj := range col {
			ly.w.Set(j, 0, wj)
			bias -= xMean[j] * wj
		}
		ly.b.Set(0, 0, bias)
	}
	r.ZeroGrad()

	return nil
}

func columnMeans(m *mat.Dense) []float64 {
	n, d := m.Dims()
	means := make([]float64, d)
	for j := range d {
		means[j] = mat.Sum(m.ColView(j)) / float64(n)
	}

	return means
}
