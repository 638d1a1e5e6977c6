package fragment

import (
	"sort"

	"github.com/ppiankov/annofrag/internal/model"
	"github.com/tidwall/btree"
)

// activeSet sweeps the boundaries of a pass left to right and keeps the
// ranges covering the current segment in a tree ordered by rankLess. A
// spanning range covers [lo, hi) exactly when start <= lo and end > lo,
// because every end is itself a boundary.
type activeSet struct {
	ranges    []model.Range
	byStart   []int
	byEnd     []int
	nextStart int
	nextEnd   int
	tree      *btree.BTreeG[int]
}

func newActiveSet(ranges []model.Range) *activeSet {
	var spans []int
	for i, r := range ranges {
		if !r.IsCollapsed() {
			spans = append(spans, i)
		}
	}

	byStart := append([]int(nil), spans...)
	sort.SliceStable(byStart, func(i, j int) bool {
		return ranges[byStart[i]].Start < ranges[byStart[j]].Start
	})
	byEnd := spans
	sort.SliceStable(byEnd, func(i, j int) bool {
		return ranges[byEnd[i]].End < ranges[byEnd[j]].End
	})

	return &activeSet{
		ranges:  ranges,
		byStart: byStart,
		byEnd:   byEnd,
		tree:    btree.NewBTreeGOptions(rankLess(ranges), btree.Options{NoLocks: true}),
	}
}

// advance moves the sweep to the segment starting at lo. Boundaries must be
// visited in increasing order.
func (a *activeSet) advance(lo int) {
	for a.nextEnd < len(a.byEnd) && a.ranges[a.byEnd[a.nextEnd]].End <= lo {
		a.tree.Delete(a.byEnd[a.nextEnd])
		a.nextEnd++
	}
	for a.nextStart < len(a.byStart) && a.ranges[a.byStart[a.nextStart]].Start <= lo {
		a.tree.Set(a.byStart[a.nextStart])
		a.nextStart++
	}
}

// ranked returns the active set outer to inner
func (a *activeSet) ranked() []int {
	target := make([]int, 0, a.tree.Len())
	a.tree.Scan(func(idx int) bool {
		target = append(target, idx)
		return true
	})
	return target
}

// covering is the direct definition of the active set of [lo, hi), in input
// order. The sweep must always agree with it.
func covering(ranges []model.Range, lo, hi int) []int {
	var active []int
	for i, r := range ranges {
		if !r.IsCollapsed() && r.Start <= lo && r.End >= hi {
			active = append(active, i)
		}
	}
	return active
}
