package fold_test

import (
	"testing"

	"github.com/absmach/modelfactory/pkg/fold"
	"github.com/stretchr/testify/assert"
)

func TestSetOverlaps(t *testing.T) {
	cases := []struct {
		desc  string
		train fold.Set
		val   fold.Set
		want  []int
	}{
		{desc: "disjoint sets", train: fold.Set{0, 1, 2, 3}, val: fold.Set{4}, want: nil},
		{desc: "single overlap", train: fold.Set{0, 1, 4}, val: fold.Set{4}, want: []int{4}},
		{desc: "duplicate overlap reported once", train: fold.Set{2, 2}, val: fold.Set{2}, want: []int{2}},
		{desc: "empty validation", train: fold.Set{0}, val: nil, want: nil},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.train.Overlaps(tc.val))
		})
	}
}

func TestRangeIndices(t *testing.T) {
	cases := []struct {
		desc string
		r    fold.Range
		want []int
	}{
		{desc: "exclusive range skips end", r: fold.Range{Start: 1, End: 5}, want: []int{1, 2, 3, 4}},
		{desc: "inclusive range keeps end", r: fold.Range{Start: 0, End: 4, Inclusive: true}, want: []int{0, 1, 2, 3, 4}},
		{desc: "empty range", r: fold.Range{Start: 3, End: 3}, want: nil},
		{desc: "single inclusive fold", r: fold.Range{Start: 3, End: 3, Inclusive: true}, want: []int{3}},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.r.Indices())
		})
	}
}

func TestRangeString(t *testing.T) {
	assert.Equal(t, "[1, 5)", fold.Range{Start: 1, End: 5}.String())
	assert.Equal(t, "[0, 4]", fold.Range{Start: 0, End: 4, Inclusive: true}.String())
}
