package metrics_test

import (
	"math"
	"testing"

	"github.com/absmach/modelfactory/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestArgmax(t *testing.T) {
	cases := []struct {
		desc string
		v    []float64
		want int
	}{
		{desc: "largest wins", v: []float64{0.3, 0.7}, want: 1},
		{desc: "tie goes to lowest index", v: []float64{0.5, 0.5}, want: 0},
		{desc: "three way tie", v: []float64{0.2, 0.4, 0.4}, want: 1},
		{desc: "single value", v: []float64{-1}, want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, metrics.Argmax(tc.v))
		})
	}
}

func TestSoftmaxRowsSumToOne(t *testing.T) {
	p := metrics.Softmax(mat.NewDense(2, 3, []float64{1, 2, 3, 1000, 1000, 1000}))
	for i := range 2 {
		assert.InDelta(t, 1.0, mat.Sum(p.RowView(i)), 1e-12)
	}
	assert.InDelta(t, 1.0/3, p.At(1, 0), 1e-12)
}

func TestCrossEntropy(t *testing.T) {
	logits := mat.NewDense(2, 2, []float64{0, 0, 0, 0})
	loss, grad := metrics.CrossEntropy(logits, []int{0, 1})

	assert.InDelta(t, math.Log(2), loss, 1e-12)
	assert.InDelta(t, -0.25, grad.At(0, 0), 1e-12)
	assert.InDelta(t, 0.25, grad.At(0, 1), 1e-12)
	assert.InDelta(t, -0.25, grad.At(1, 1), 1e-12)
}

func TestMSE(t *testing.T) {
	loss, grad := metrics.MSE(mat.NewDense(2, 1, []float64{1, 3}), []float64{0, 3})
	assert.InDelta(t, 0.5, loss, 1e-12)
	assert.InDelta(t, 1.0, grad.At(0, 0), 1e-12)
	assert.InDelta(t, 0.0, grad.At(1, 0), 1e-12)
}

func TestScores(t *testing.T) {
	pred := []int{0, 1, 1, 2}
	labels := []int{0, 1, 0, 2}

	assert.InDelta(t, 0.75, metrics.Accuracy(pred, labels), 1e-12)
	assert.InDelta(t, (0.5+1+1)/3, metrics.MacroRecall(pred, labels), 1e-12)
	assert.Equal(t, 0.0, metrics.Accuracy(nil, nil))
	assert.InDelta(t, 0.5, metrics.WeightedAverage([]float64{0.25, 1}, []float64{2}), 1e-12)
}

func TestCorrelation(t *testing.T) {
	cases := []struct {
		desc    string
		pred    []float64
		targets []float64
		want    float64
	}{
		{desc: "perfect", pred: []float64{1, 2, 3}, targets: []float64{2, 4, 6}, want: 1},
		{desc: "inverse", pred: []float64{1, 2, 3}, targets: []float64{3, 2, 1}, want: -1},
		{desc: "skips unlabelled rows", pred: []float64{1, 2, 9, 3}, targets: []float64{1, 2, math.NaN(), 3}, want: 1},
		{desc: "constant predictions", pred: []float64{1, 1, 1}, targets: []float64{1, 2, 3}, want: 0},
		{desc: "too few rows", pred: []float64{1}, targets: []float64{1}, want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.InDelta(t, tc.want, metrics.Correlation(tc.pred, tc.targets), 1e-9)
		})
	}
}

func TestSummarize(t *testing.T) {
	s := metrics.Summarize([]float64{0.02, -0.01, 0.05})
	assert.InDelta(t, 0.02, s.Mean, 1e-12)
	assert.InDelta(t, -0.01, s.Min, 1e-12)
	assert.InDelta(t, 0.05, s.Max, 1e-12)
	assert.InDelta(t, 2.0/3, s.Positive, 1e-12)
	assert.Greater(t, s.Sharpe, 0.0)

	assert.Equal(t, metrics.Summary{}, metrics.Summarize(nil))
}
