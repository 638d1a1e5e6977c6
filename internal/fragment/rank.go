package fragment

import (
	"sort"

	"github.com/ppiankov/annofrag/internal/model"
)

// rankLess orders range indices outer to inner:
//  1. should_not_split before normal
//  2. earlier start first
//  3. input order
//
// Ends are deliberately ignored; two ranges sharing a start nest in the order
// they were supplied.
func rankLess(ranges []model.Range) func(a, b int) bool {
	return func(a, b int) bool {
		ra, rb := &ranges[a], &ranges[b]
		if pa, pb := ra.Policy.ShouldNotSplit(), rb.Policy.ShouldNotSplit(); pa != pb {
			return pa
		}
		if ra.Start != rb.Start {
			return ra.Start < rb.Start
		}
		return a < b
	}
}

// rank sorts the indices of one segment's active set into nesting order
func rank(ranges []model.Range, active []int) []int {
	less := rankLess(ranges)
	ranked := append([]int(nil), active...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return less(ranked[i], ranked[j])
	})
	return ranked
}
