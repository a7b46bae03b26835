// Package optim holds the learning-rate schedule and early-stopping policy
// stepped once per epoch by the training loop.
package optim

import "math"

// Scheduler adjusts the learning rate once per epoch from the validation
// loss.
type Scheduler interface {
	Step(loss float64) float64
	LR() float64
}

// Stopper decides from the validation score when training should end.
type Stopper interface {
	Step(score float64) bool
	Stopped() bool
}

var (
	_ Scheduler = (*Plateau)(nil)
	_ Stopper   = (*EarlyStopping)(nil)
)

const (
	defFactor    = 0.1
	defPatience  = 10
	defThreshold = 1e-4
	defMinLR     = 0
)

// Plateau lowers the learning rate by Factor once the monitored loss has
// failed to improve by more than Threshold for Patience epochs.
type Plateau struct {
	Factor    float64
	Patience  int
	Threshold float64
	MinLR     float64

	lr         float64
	best       float64
	badEpochs  int
	reductions int
}

func NewPlateau(lr, factor float64, patience int) *Plateau {
	if factor <= 0 || factor >= 1 {
		factor = defFactor
	}
	if patience <= 0 {
		patience = defPatience
	}

	return &Plateau{
		Factor:    factor,
		Patience:  patience,
		Threshold: defThreshold,
		MinLR:     defMinLR,
		lr:        lr,
		best:      math.Inf(1),
	}
}

// Step records the epoch's validation loss and returns the learning rate
// to use next.
func (p *Plateau) Step(loss float64) float64 {
	if loss < p.best-p.Threshold {
		p.best = loss
		p.badEpochs = 0

		return p.lr
	}

	p.badEpochs++
	if p.badEpochs >= p.Patience {
		p.lr = math.Max(p.lr*p.Factor, p.MinLR)
		p.badEpochs = 0
		p.reductions++
	}

	return p.lr
}

func (p *Plateau) LR() float64 {
	return p.lr
}

// Reductions reports how many times the learning rate was lowered.
func (p *Plateau) Reductions() int {
	return p.reductions
}
