package optim

import "math"

// EarlyStopping tracks the best validation score seen so far. Every epoch
// that does not beat it increments a counter, and the run should stop once
// the counter reaches Patience.
type EarlyStopping struct {
	Patience int

	best    float64
	counter int
	stopped bool
}

func NewEarlyStopping(patience int) *EarlyStopping {
	if patience <= 0 {
		patience = 1
	}

	return &EarlyStopping{Patience: patience, best: math.Inf(-1)}
}

// Step records a validation score and reports whether training should stop.
func (e *EarlyStopping) Step(score float64) bool {
	if score > e.best {
		e.best = score
		e.counter = 0

		return e.stopped
	}

	e.counter++
	if e.counter >= e.Patience {
		e.stopped = true
	}

	return e.stopped
}

func (e *EarlyStopping) Stopped() bool {
	return e.stopped
}

func (e *EarlyStopping) Counter() int {
	return e.counter
}

func (e *EarlyStopping) Best() float64 {
	return e.best
}
