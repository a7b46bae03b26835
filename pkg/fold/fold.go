// Package fold describes cross-validation partitions.
package fold

import (
	"fmt"
	"slices"
	"strings"
)

// Set is a list of fold identifiers a dataset is restricted to.
type Set []int

func (s Set) Contains(f int) bool {
	return slices.Contains(s, f)
}

// Overlaps reports the folds present in both sets.
func (s Set) Overlaps(other Set) []int {
	var common []int
	for _, f := range s {
		if other.Contains(f) && !slices.Contains(common, f) {
			common = append(common, f)
		}
	}

	return common
}

// First returns the first fold of the set. Checkpoints produced by a
// training run are keyed by the first validation fold.
func (s Set) First() (int, bool) {
	if len(s) == 0 {
		return 0, false
	}

	return s[0], true
}

func (s Set) String() string {
	parts := make([]string, len(s))
	for i, f := range s {
		parts[i] = fmt.Sprint(f)
	}

	return "[" + strings.Join(parts, ",") + "]"
}

// Range is an explicit range of fold indices used to enumerate
// fold checkpoints during inference.
type Range struct {
	Start     int  `toml:"start"     yaml:"start"     json:"start"`
	End       int  `toml:"end"       yaml:"end"       json:"end"`
	Inclusive bool `toml:"inclusive" yaml:"inclusive" json:"inclusive"`
}

// Indices lists the folds covered by the range in ascending order.
func (r Range) Indices() []int {
	end := r.End
	if r.Inclusive {
		end++
	}
	if end <= r.Start {
		return nil
	}

	idx := make([]int, 0, end-r.Start)
	for i := r.Start; i < end; i++ {
		idx = append(idx, i)
	}

	return idx
}

func (r Range) String() string {
	closing := ")"
	if r.Inclusive {
		closing = "]"
	}

	return fmt.Sprintf("[%d, %d%s", r.Start, r.End, closing)
}
