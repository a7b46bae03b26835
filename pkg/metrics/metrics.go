// Package metrics computes losses, their gradients and the validation
// scores reported per epoch.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Softmax returns the row-wise softmax of logits.
func Softmax(logits *mat.Dense) *mat.Dense {
	n, c := logits.Dims()
	out := mat.NewDense(n, c, nil)
	for i := range n {
		row := logits.RawRowView(i)
		dst := out.RawRowView(i)
		hi := floats.Max(row)
		for j, v := range row {
			dst[j] = math.Exp(v - hi)
		}
		floats.Scale(1/floats.Sum(dst), dst)
	}

	return out
}

// CrossEntropy returns the mean negative log-likelihood of labels under the
// softmax of logits and its gradient with respect to the logits.
func CrossEntropy(logits *mat.Dense, labels []int) (float64, *mat.Dense) {
	probs := Softmax(logits)
	n, c := probs.Dims()
	grad := mat.DenseCopyOf(probs)

	var loss float64
	for i := range n {
		y := labels[i]
		if y < 0 || y >= c {
			continue
		}
		loss -= math.Log(math.Max(probs.At(i, y), 1e-12))
		grad.Set(i, y, grad.At(i, y)-1)
	}
	grad.Scale(1/float64(n), grad)

	return loss / float64(n), grad
}

// MSE returns the mean squared error of a single-column prediction matrix
// and its gradient.
func MSE(pred *mat.Dense, targets []float64) (float64, *mat.Dense) {
	n, _ := pred.Dims()
	grad := mat.NewDense(n, 1, nil)

	var loss float64
	for i := range n {
		d := pred.At(i, 0) - targets[i]
		loss += d * d
		grad.Set(i, 0, 2*d/float64(n))
	}

	return loss / float64(n), grad
}

// Argmax returns the index of the largest value. Ties go to the lowest
// index.
func Argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}

	return best
}

// Predictions returns the arg-max class of every row.
func Predictions(scores *mat.Dense) []int {
	n, _ := scores.Dims()
	out := make([]int, n)
	for i := range n {
		out[i] = Argmax(scores.RawRowView(i))
	}

	return out
}

func Accuracy(pred, labels []int) float64 {
	if len(pred) == 0 {
		return 0
	}
	var hit int
	for i, p := range pred {
		if p == labels[i] {
			hit++
		}
	}

	return float64(hit) / float64(len(pred))
}

// MacroRecall is the unweighted mean of per-class recall over the classes
// present in labels.
func MacroRecall(pred, labels []int) float64 {
	seen := map[int]int{}
	hits := map[int]int{}
	for i, l := range labels {
		seen[l]++
		if pred[i] == l {
			hits[l]++
		}
	}
	if len(seen) == 0 {
		return 0
	}

	var sum float64
	for class, n := range seen {
		sum += float64(hits[class]) / float64(n)
	}

	return sum / float64(len(seen))
}

// WeightedAverage combines per-task scores. Missing weights count as one.
func WeightedAverage(scores []float64, weights []float64) float64 {
	w := make([]float64, len(scores))
	for i := range w {
		w[i] = 1
		if i < len(weights) {
			w[i] = weights[i]
		}
	}

	return stat.Mean(scores, w)
}

// Correlation is the Pearson correlation of predictions and targets,
// skipping pairs where the target is NaN. It is zero when either side is
// constant.
func Correlation(pred, targets []float64) float64 {
	var x, y []float64
	for i, t := range targets {
		if math.IsNaN(t) {
			continue
		}
		x = append(x, pred[i])
		y = append(y, t)
	}
	if len(x) < 2 {
		return 0
	}
	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) {
		return 0
	}

	return c
}

// Summary describes a set of per-group scores.
type Summary struct {
	Mean     float64 `json:"mean"`
	Std      float64 `json:"std"`
	Sharpe   float64 `json:"sharpe"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Positive float64 `json:"positive"`
}

func Summarize(scores []float64) Summary {
	if len(scores) == 0 {
		return Summary{}
	}
	mean, std := stat.MeanStdDev(scores, nil)
	if math.IsNaN(std) {
		std = 0
	}
	s := Summary{
		Mean: mean,
		Std:  std,
		Min:  floats.Min(scores),
		Max:  floats.Max(scores),
	}
	if std > 0 {
		s.Sharpe = mean / std
	}
	var pos int
	for _, v := range scores {
		if v > 0 {
			pos++
		}
	}
	s.Positive = float64(pos) / float64(len(scores))

	return s
}
