package models_test

import (
	"testing"

	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/absmach/modelfactory/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var heads = []models.Head{{Name: "root", Classes: 3}, {Name: "vowel", Classes: 2}}

func TestRegistry(t *testing.T) {
	reg := models.DefaultRegistry()
	assert.Equal(t, []string{models.LinearName, models.RidgeName}, reg.Names())

	cases := []struct {
		desc string
		name string
		err  error
	}{
		{desc: "linear", name: models.LinearName},
		{desc: "ridge", name: models.RidgeName},
		{desc: "unknown model", name: "resnet34", err: pkgerrors.ErrConfiguration},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			m, err := reg.New(tc.name)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				assert.Nil(t, m)

				return
			}
			require.NoError(t, err)
			assert.NotNil(t, m)
		})
	}

	assert.ErrorIs(t, reg.Register(models.LinearName, models.NewLinear), pkgerrors.ErrEntityExists)
	assert.ErrorIs(t, reg.Register("", models.NewLinear), pkgerrors.ErrEmptyKey)
}

func TestRegistryResolvesLazily(t *testing.T) {
	reg := models.NewRegistry()
	calls := 0
	require.NoError(t, reg.Register("counted", func() models.Model {
		calls++

		return models.NewLinear()
	}))
	assert.Equal(t, 0, calls)

	_, err := reg.New("counted")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestLinearForwardShapes(t *testing.T) {
	m := models.NewLinear()
	require.NoError(t, m.Init(4, heads, 1))

	x := mat.NewDense(5, 4, nil)
	out, err := m.Forward(x)
	require.NoError(t, err)
	require.Len(t, out, 2)
	r, c := out[0].Dims()
	assert.Equal(t, [2]int{5, 3}, [2]int{r, c})
	r, c = out[1].Dims()
	assert.Equal(t, [2]int{5, 2}, [2]int{r, c})

	_, err = m.Forward(mat.NewDense(5, 3, nil))
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)
}

func TestLinearStepReducesError(t *testing.T) {
	m := models.NewLinear()
	one := []models.Head{{Name: "y", Classes: 1}}
	require.NoError(t, m.Init(1, one, 3))

	x := mat.NewDense(2, 1, []float64{1, 2})
	target := []float64{2, 4}
	sse := func() float64 {
		out, err := m.Forward(x)
		require.NoError(t, err)
		var s float64
		for i, v := range target {
			d := out[0].At(i, 0) - v
			s += d * d
		}

		return s
	}

	before := sse()
	for range 50 {
		out, err := m.Forward(x)
		require.NoError(t, err)
		grad := mat.NewDense(2, 1, nil)
		for i, v := range target {
			grad.Set(i, 0, (out[0].At(i, 0)-v)/2)
		}
		require.NoError(t, m.Backward(x, []*mat.Dense{grad}))
		m.Step(0.1)
	}
	assert.Less(t, sse(), before)
}

func TestStateDictRoundTrip(t *testing.T) {
	src := models.NewLinear()
	require.NoError(t, src.Init(4, heads, 1))
	dst := models.NewLinear()
	require.NoError(t, dst.Init(4, heads, 2))

	require.NoError(t, dst.LoadStateDict(src.StateDict()))
	assert.Equal(t, src.StateDict(), dst.StateDict())
	assert.Equal(t, []string{"root.bias", "root.weight", "vowel.bias", "vowel.weight"}, src.StateDict().Keys())

	other := models.NewLinear()
	require.NoError(t, other.Init(3, heads, 1))
	assert.ErrorIs(t, other.LoadStateDict(src.StateDict()), pkgerrors.ErrInvalidData)
	assert.ErrorIs(t, models.NewLinear().LoadStateDict(src.StateDict()), pkgerrors.ErrInvalidData)
}

func TestRidgeFit(t *testing.T) {
	m := models.NewRidge()
	require.ErrorIs(t, m.Init(2, heads, 0), pkgerrors.ErrConfiguration)
	require.NoError(t, m.Init(2, []models.Head{{Name: "target", Classes: 1}}, 0))

	// y = 2*a - b + 0.5
	x := mat.NewDense(6, 2, []float64{
		0, 0,
		1, 0,
		0, 1,
		1, 1,
		2, 1,
		1, 3,
	})
	y := mat.NewDense(6, 1, nil)
	for i := range 6 {
		y.Set(i, 0, 2*x.At(i, 0)-x.At(i, 1)+0.5)
	}

	fitter, ok := m.(models.Fitter)
	require.True(t, ok)
	require.NoError(t, fitter.Fit(x, y))

	out, err := m.Forward(x)
	require.NoError(t, err)
	var mean float64
	for i := range 6 {
		mean += out[0].At(i, 0) - y.At(i, 0)
	}
	assert.InDelta(t, 0, mean/6, 1e-9, "centred fit is unbiased on the training set")
	assert.Greater(t, out[0].At(4, 0), out[0].At(0, 0))

	assert.ErrorIs(t, fitter.Fit(x, mat.NewDense(5, 1, nil)), pkgerrors.ErrInvalidData)
}

func TestDataParallelMatchesSingleDevice(t *testing.T) {
	base := models.NewLinear()
	require.NoError(t, base.Init(3, heads, 7))

	_, err := models.NewDataParallel(base, nil)
	assert.ErrorIs(t, err, pkgerrors.ErrConfiguration)

	dp, err := models.NewDataParallel(base, []int{2, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, 2, dp.Coordinator())
	assert.Same(t, base, dp.Unwrap())

	data := make([]float64, 7*3)
	for i := range data {
		data[i] = float64(i%5) - 2
	}
	x := mat.NewDense(7, 3, data)

	want, err := base.Forward(x)
	require.NoError(t, err)
	got, err := dp.Forward(x)
	require.NoError(t, err)
	for h := range want {
		assert.True(t, mat.EqualApprox(want[h], got[h], 1e-12))
	}
}

func TestMatrix(t *testing.T) {
	m, err := models.Matrix([][]float32{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, 4.0, m.At(1, 1))

	_, err = models.Matrix(nil)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)
	_, err = models.Matrix([][]float32{{1, 2}, {3}})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)
}
