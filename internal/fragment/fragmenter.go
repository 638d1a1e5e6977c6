// Package fragment turns a text and a set of possibly overlapping ranges
// into a properly nested sequence of enter, exit and text events.
//
// The text is cut at every endpoint of every spanning range. For each
// resulting segment the covering ranges are ranked outer to inner, and the
// ranked list is diffed against the fragments currently open: the open
// stack is unwound down to the longest common prefix and the rest of the
// target is entered. A range whose position changes between two segments is
// therefore closed and reopened, which is how splitting happens. Zero-length
// ranges are emitted as immediate enter/exit pairs and never take part in
// the cutting.
//
// Offsets are rune indices into the text.
package fragment

import (
	"fmt"
	"iter"
	"slices"
	"unicode/utf8"

	"github.com/ppiankov/annofrag/internal/model"
)

// DefaultMaxRanges bounds the number of ranges accepted in one pass
const DefaultMaxRanges = 100_000

// Option configures a Fragmenter
type Option func(*Fragmenter)

// WithMaxRanges sets the defensive range bound. Zero or less disables it.
func WithMaxRanges(n int) Option {
	return func(f *Fragmenter) {
		f.maxRanges = n
	}
}

// WithAnchorPlacement sets how anchors sit against fragments closing at
// their offset.
func WithAnchorPlacement(p AnchorPlacement) Option {
	return func(f *Fragmenter) {
		f.placement = p
	}
}

// Fragmenter holds configuration only; every pass owns its own state, so a
// Fragmenter is safe for concurrent use.
type Fragmenter struct {
	maxRanges int
	placement AnchorPlacement
}

// New creates a Fragmenter
func New(opts ...Option) *Fragmenter {
	f := &Fragmenter{
		maxRanges: DefaultMaxRanges,
		placement: AnchorsOutside,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Segment is a maximal interval over which the covering set is constant
type Segment struct {
	Lo     int
	Hi     int
	Active []model.Range // Outer to inner
}

// Validate checks a pass without running it
func (f *Fragmenter) Validate(text string, ranges []model.Range) error {
	return f.check(utf8.RuneCountInString(text), ranges)
}

func (f *Fragmenter) check(length int, ranges []model.Range) error {
	if f.maxRanges > 0 && len(ranges) > f.maxRanges {
		return fmt.Errorf("%w: %d ranges, limit is %d", ErrTooManyRanges, len(ranges), f.maxRanges)
	}

	seen := make(map[string]int, len(ranges))
	for i, r := range ranges {
		reason := ""
		switch {
		case r.Start < 0:
			reason = "start is negative"
		case r.Start > r.End:
			reason = "start is after end"
		case r.End > length:
			reason = "end is past the text"
		}
		if reason == "" && r.ID != "" {
			if first, dup := seen[r.ID]; dup {
				reason = fmt.Sprintf("duplicate id, first used by range #%d", first)
			}
			seen[r.ID] = i
		}
		if reason != "" {
			return &InvalidRangeError{
				Index:  i,
				ID:     r.ID,
				Start:  r.Start,
				End:    r.End,
				Length: length,
				Reason: reason,
			}
		}
	}
	return nil
}

// Run fragments text and feeds the events to sink. Invalid input is rejected
// before the sink sees anything.
func (f *Fragmenter) Run(text string, ranges []model.Range, sink Sink) error {
	p, err := f.newPass(text, ranges)
	if err != nil {
		return err
	}
	p.walk(func(ev Event) bool {
		Dispatch(sink, ev)
		return true
	})
	return nil
}

// Events validates the input and returns the event stream as a lazy
// sequence. Each iteration runs a fresh pass over a private copy of ranges.
func (f *Fragmenter) Events(text string, ranges []model.Range) (iter.Seq[Event], error) {
	if err := f.Validate(text, ranges); err != nil {
		return nil, err
	}
	ranges = slices.Clone(ranges)
	return func(yield func(Event) bool) {
		p := &pass{
			text:      []rune(text),
			ranges:    ranges,
			placement: f.placement,
		}
		p.walk(yield)
	}, nil
}

// Collect runs a pass and returns all of its events
func (f *Fragmenter) Collect(text string, ranges []model.Range) ([]Event, error) {
	var rec Recorder
	if err := f.Run(text, ranges, &rec); err != nil {
		return nil, err
	}
	return rec.Events, nil
}

// Segments returns the segments of a pass with their ranked covering sets.
// A text of length zero has no segments.
func (f *Fragmenter) Segments(text string, ranges []model.Range) ([]Segment, error) {
	length := utf8.RuneCountInString(text)
	if err := f.check(length, ranges); err != nil {
		return nil, err
	}

	bounds := collectBoundaries(ranges, length)
	active := newActiveSet(ranges)
	segments := make([]Segment, 0, len(bounds))
	for i := 0; i+1 < len(bounds); i++ {
		active.advance(bounds[i])
		seg := Segment{Lo: bounds[i], Hi: bounds[i+1]}
		for _, idx := range active.ranked() {
			seg.Active = append(seg.Active, ranges[idx])
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func (f *Fragmenter) newPass(text string, ranges []model.Range) (*pass, error) {
	runes := []rune(text)
	if err := f.check(len(runes), ranges); err != nil {
		return nil, err
	}
	return &pass{text: runes, ranges: ranges, placement: f.placement}, nil
}

// pass is the state of one fragmentation
type pass struct {
	text      []rune
	ranges    []model.Range
	placement AnchorPlacement
}

// walk produces the whole event stream, stopping early when yield says so
func (p *pass) walk(yield func(Event) bool) {
	length := len(p.text)
	bounds := collectBoundaries(p.ranges, length)
	active := newActiveSet(p.ranges)
	anchors := newAnchorQueue(p.ranges)
	st := newStack(p.ranges)

	// settle moves the open stack to target at a boundary, placing the
	// anchors that sit on it.
	settle := func(offset int, target []int) bool {
		prefix := st.commonPrefix(target)
		if p.placement == AnchorsInside && !anchors.emit(offset, st.depth(), yield) {
			return false
		}
		if !st.unwind(prefix, offset, yield) {
			return false
		}
		if p.placement == AnchorsOutside && !anchors.emit(offset, st.depth(), yield) {
			return false
		}
		return st.push(target, prefix, offset, yield)
	}

	for i := 0; i+1 < len(bounds); i++ {
		lo, hi := bounds[i], bounds[i+1]
		active.advance(lo)
		if !settle(lo, active.ranked()) {
			return
		}

		// Anchors strictly inside the segment cut its text without
		// disturbing the stack.
		pos := lo
		for {
			at, ok := anchors.peek()
			if !ok || at >= hi {
				break
			}
			if !p.emitText(pos, at, st, yield) {
				return
			}
			if !anchors.emit(at, st.depth(), yield) {
				return
			}
			pos = at
		}
		if !p.emitText(pos, hi, st, yield) {
			return
		}
	}

	settle(length, nil)
}

func (p *pass) emitText(from, to int, st *stack, yield func(Event) bool) bool {
	if from >= to {
		return true
	}
	return yield(Event{
		Kind:   TextEvent,
		Text:   string(p.text[from:to]),
		Offset: from,
		Stack:  st.fragments(),
	})
}
