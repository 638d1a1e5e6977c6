package fragment

import "github.com/ppiankov/annofrag/internal/model"

type frame struct {
	idx  int
	frag Fragment
}

// stack is the set of fragments open in the output, outer to inner
type stack struct {
	ranges   []model.Range
	frames   []frame
	ordinals []int // fragments emitted so far, per input range
	snap     []Fragment
	dirty    bool
}

func newStack(ranges []model.Range) *stack {
	return &stack{
		ranges:   ranges,
		ordinals: make([]int, len(ranges)),
	}
}

func (s *stack) depth() int {
	return len(s.frames)
}

// commonPrefix is the number of leading entries where the open stack and the
// target hold the same range at the same depth. Those ranges continue.
func (s *stack) commonPrefix(target []int) int {
	p := 0
	for p < len(s.frames) && p < len(target) && s.frames[p].idx == target[p] {
		p++
	}
	return p
}

// unwind exits everything above depth p, innermost first
func (s *stack) unwind(p, offset int, yield func(Event) bool) bool {
	if p > len(s.frames) {
		violate("unwind", offset, "keep %d of %d open fragments", p, len(s.frames))
	}
	for len(s.frames) > p {
		top := s.frames[len(s.frames)-1]
		s.frames = s.frames[:len(s.frames)-1]
		s.dirty = true

		f := top.frag
		if f.Start >= offset {
			violate("unwind", offset, "fragment of %q opened at %d closes empty", f.Range.ID, f.Start)
		}
		f.End = offset
		if !yield(Event{Kind: ExitEvent, Fragment: f, Offset: offset}) {
			return false
		}
	}
	return true
}

// push enters target[p:], outermost first. Every entry is a new fragment,
// even when the same range was closed a moment ago.
func (s *stack) push(target []int, p, offset int, yield func(Event) bool) bool {
	if p != len(s.frames) {
		violate("push", offset, "diff prefix %d but %d fragments open", p, len(s.frames))
	}
	for depth := p; depth < len(target); depth++ {
		idx := target[depth]
		for _, open := range s.frames {
			if open.idx == idx {
				violate("push", offset, "range %q is already open", s.ranges[idx].ID)
			}
		}

		f := Fragment{
			Range:   s.ranges[idx],
			Ordinal: s.ordinals[idx],
			Start:   offset,
			End:     -1,
			Depth:   depth,
		}
		s.ordinals[idx]++
		s.frames = append(s.frames, frame{idx: idx, frag: f})
		s.dirty = true

		if !yield(Event{Kind: EnterEvent, Fragment: f, Offset: offset}) {
			return false
		}
	}
	return true
}

// fragments returns the open fragments, outer to inner. The slice is shared
// by every text event until the stack changes again.
func (s *stack) fragments() []Fragment {
	if s.dirty || s.snap == nil {
		s.snap = make([]Fragment, len(s.frames))
		for i, fr := range s.frames {
			s.snap[i] = fr.frag
		}
		s.dirty = false
	}
	return s.snap
}
