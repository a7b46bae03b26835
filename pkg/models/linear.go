package models

import (
	"fmt"
	"math"
	"math/rand/v2"

	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	LinearName = "linear"

	weightSuffix = ".weight"
	biasSuffix   = ".bias"
)

type layer struct {
	w, b   *mat.Dense
	dw, db *mat.Dense
}

// linear is one affine map per head. For classification heads the outputs
// are logits.
type linear struct {
	inputDim int
	heads    []Head
	layers   []*layer
	training bool
}

func NewLinear() Model {
	return &linear{}
}

func (l *linear) Init(inputDim int, heads []Head, seed uint64) error {
	if inputDim <= 0 || len(heads) == 0 {
		return fmt.Errorf("%w: input dim %d with %d heads", pkgerrors.ErrConfiguration, inputDim, len(heads))
	}
	r := rand.New(rand.NewPCG(seed, uint64(inputDim)))
	scale := 1 / math.Sqrt(float64(inputDim))

	l.inputDim = inputDim
	l.heads = append([]Head(nil), heads...)
	l.layers = make([]*layer, len(heads))
	for i, h := range heads {
		if h.Classes <= 0 {
			return fmt.Errorf("%w: head %s has %d classes", pkgerrors.ErrConfiguration, h.Name, h.Classes)
		}
		w := mat.NewDense(inputDim, h.Classes, nil)
		w.Apply(func(_, _ int, _ float64) float64 { return r.NormFloat64() * scale }, w)
		l.layers[i] = &layer{
			w:  w,
			b:  mat.NewDense(1, h.Classes, nil),
			dw: mat.NewDense(inputDim, h.Classes, nil),
			db: mat.NewDense(1, h.Classes, nil),
		}
	}

	return nil
}

func (l *linear) Heads() []Head {
	return l.heads
}

func (l *linear) Forward(x *mat.Dense) ([]*mat.Dense, error) {
	if err := l.check(x); err != nil {
		return nil, err
	}
	n, _ := x.Dims()
	out := make([]*mat.Dense, len(l.layers))
	for i, ly := range l.layers {
		var y mat.Dense
		y.Mul(x, ly.w)
		bias := ly.b.RawRowView(0)
		for r := range n {
			row := y.RawRowView(r)
			for c := range row {
				row[c] += bias[c]
			}
		}
		out[i] = &y
	}

	return out, nil
}

func (l *linear) Backward(x *mat.Dense, grads []*mat.Dense) error {
	if err := l.check(x); err != nil {
		return err
	}
	if len(grads) != len(l.layers) {
		return fmt.Errorf("%w: %d gradients for %d heads", pkgerrors.ErrInvalidData, len(grads), len(l.layers))
	}
	for i, ly := range l.layers {
		var dw mat.Dense
		dw.Mul(x.T(), grads[i])
		ly.dw.Add(ly.dw, &dw)

		n, classes := grads[i].Dims()
		db := ly.db.RawRowView(0)
		for r := range n {
			row := grads[i].RawRowView(r)
			for c := range classes {
				db[c] += row[c]
			}
		}
	}

	return nil
}

func (l *linear) Step(lr float64) {
	for _, ly := range l.layers {
		var dw, db mat.Dense
		dw.Scale(lr, ly.dw)
		db.Scale(lr, ly.db)
		ly.w.Sub(ly.w, &dw)
		ly.b.Sub(ly.b, &db)
	}
	l.ZeroGrad()
}

func (l *linear) ZeroGrad() {
	for _, ly := range l.layers {
		ly.dw.Zero()
		ly.db.Zero()
	}
}

func (l *linear) SetTraining(training bool) {
	l.training = training
}

func (l *linear) StateDict() StateDict {
	sd := StateDict{}
	for i, h := range l.heads {
		sd[h.Name+weightSuffix] = paramOf(l.layers[i].w)
		sd[h.Name+biasSuffix] = paramOf(l.layers[i].b)
	}

	return sd
}

func (l *linear) LoadStateDict(sd StateDict) error {
	if len(l.layers) == 0 {
		return fmt.Errorf("%w: model is not initialised", pkgerrors.ErrInvalidData)
	}
	loaded := make([]*layer, len(l.layers))
	for i, h := range l.heads {
		w, err := lookup(sd, h.Name+weightSuffix, l.inputDim, h.Classes)
		if err != nil {
			return err
		}
		b, err := lookup(sd, h.Name+biasSuffix, 1, h.Classes)
		if err != nil {
			return err
		}
		loaded[i] = &layer{w: w, b: b, dw: mat.NewDense(l.inputDim, h.Classes, nil), db: mat.NewDense(1, h.Classes, nil)}
	}
	l.layers = loaded

	return nil
}

func (l *linear) check(x *mat.Dense) error {
	if len(l.layers) == 0 {
		return fmt.Errorf("%w: model is not initialised", pkgerrors.ErrInvalidData)
	}
	if _, c := x.Dims(); c != l.inputDim {
		return fmt.Errorf("%w: input has %d features, want %d", pkgerrors.ErrInvalidData, c, l.inputDim)
	}

	return nil
}

func lookup(sd StateDict, name string, rows, cols int) (*mat.Dense, error) {
	p, ok := sd[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing parameter %s", pkgerrors.ErrInvalidData, name)
	}
	if p.Rows != rows || p.Cols != cols {
		return nil, fmt.Errorf("%w: parameter %s is %dx%d, want %dx%d", pkgerrors.ErrInvalidData, name, p.Rows, p.Cols, rows, cols)
	}

	return p.dense()
}
