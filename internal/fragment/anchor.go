package fragment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/annofrag/internal/model"
)

// AnchorPlacement decides where collapsed ranges go when their offset is a
// boundary at which open fragments close.
type AnchorPlacement int

const (
	// AnchorsOutside emits anchors after the fragments closing at the offset
	// have exited, and before anything opening there.
	AnchorsOutside AnchorPlacement = iota
	// AnchorsInside emits anchors before any fragment exits, so they nest in
	// everything open just before the offset.
	AnchorsInside
)

func (p AnchorPlacement) String() string {
	if p == AnchorsInside {
		return "inside"
	}
	return "outside"
}

// ParseAnchorPlacement accepts "outside" (or empty) and "inside"
func ParseAnchorPlacement(s string) (AnchorPlacement, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "outside":
		return AnchorsOutside, nil
	case "inside":
		return AnchorsInside, nil
	default:
		return AnchorsOutside, fmt.Errorf("unknown anchor placement %q", s)
	}
}

// anchorQueue hands out collapsed ranges by offset, input order within an
// offset.
type anchorQueue struct {
	ranges []model.Range
	order  []int
	next   int
}

func newAnchorQueue(ranges []model.Range) *anchorQueue {
	var order []int
	for i, r := range ranges {
		if r.IsCollapsed() {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return ranges[order[i]].Start < ranges[order[j]].Start
	})
	return &anchorQueue{ranges: ranges, order: order}
}

// peek returns the offset of the next pending anchor
func (q *anchorQueue) peek() (int, bool) {
	if q.next >= len(q.order) {
		return 0, false
	}
	return q.ranges[q.order[q.next]].Start, true
}

// emit yields an enter/exit pair for every pending anchor at offset, nested
// at the given depth. It does not touch the open stack.
func (q *anchorQueue) emit(offset, depth int, yield func(Event) bool) bool {
	for q.next < len(q.order) {
		idx := q.order[q.next]
		r := q.ranges[idx]
		if r.Start != offset {
			return true
		}
		q.next++

		f := Fragment{Range: r, Start: offset, End: offset, Depth: depth}
		if !yield(Event{Kind: EnterEvent, Fragment: f, Offset: offset}) {
			return false
		}
		if !yield(Event{Kind: ExitEvent, Fragment: f, Offset: offset}) {
			return false
		}
	}
	return true
}
