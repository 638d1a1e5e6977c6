package fragment

import (
	"fmt"
	"math/rand/v2"
	"reflect"
	"strings"
	"testing"

	"github.com/ppiankov/annofrag/internal/model"
)

const rounds = 400

func randomPass(rng *rand.Rand) (string, []model.Range) {
	length := rng.IntN(24)
	var b strings.Builder
	for i := 0; i < length; i++ {
		b.WriteRune(rune('a' + rng.IntN(26)))
	}

	n := rng.IntN(9)
	ranges := make([]model.Range, n)
	for i := range ranges {
		start := 0
		if length > 0 {
			start = rng.IntN(length + 1)
		}
		end := start
		if rng.IntN(4) > 0 && start < length {
			end = start + 1 + rng.IntN(length-start)
		}
		ranges[i] = model.Range{
			ID:    fmt.Sprintf("r%d", i),
			Tag:   string(rune('p' + i)),
			Start: start,
			End:   end,
		}
	}
	return b.String(), ranges
}

// withPinned marks non-overlapping spanning ranges as should_not_split
func withPinned(rng *rand.Rand, ranges []model.Range) []model.Range {
	var claimed []model.Range
	for i := range ranges {
		r := ranges[i]
		if r.IsCollapsed() || rng.IntN(3) != 0 {
			continue
		}
		free := true
		for _, c := range claimed {
			if r.Start < c.End && c.Start < r.End {
				free = false
				break
			}
		}
		if free {
			ranges[i].Policy = model.PolicyShouldNotSplit
			claimed = append(claimed, r)
		}
	}
	return ranges
}

func TestProperty_ContentPreservedAndNested(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	f := New()

	for round := 0; round < rounds; round++ {
		txt, ranges := randomPass(rng)
		for _, placement := range []AnchorPlacement{AnchorsOutside, AnchorsInside} {
			f.placement = placement
			events, err := f.Collect(txt, ranges)
			if err != nil {
				t.Fatalf("round %d: Collect failed: %v", round, err)
			}

			var content strings.Builder
			var open []Fragment
			for i, ev := range events {
				switch ev.Kind {
				case TextEvent:
					content.WriteString(ev.Text)
					if len(ev.Stack) != len(open) {
						t.Fatalf("round %d event %d: context depth %d, open %d", round, i, len(ev.Stack), len(open))
					}
				case EnterEvent:
					if ev.Fragment.Depth != len(open) {
						t.Fatalf("round %d event %d: enter depth %d with %d open", round, i, ev.Fragment.Depth, len(open))
					}
					open = append(open, ev.Fragment)
				case ExitEvent:
					if len(open) == 0 {
						t.Fatalf("round %d event %d: exit with empty stack", round, i)
					}
					top := open[len(open)-1]
					if top.Range.ID != ev.Fragment.Range.ID || top.Ordinal != ev.Fragment.Ordinal {
						t.Fatalf("round %d event %d: exit %s#%d does not match %s#%d",
							round, i, ev.Fragment.Range.ID, ev.Fragment.Ordinal, top.Range.ID, top.Ordinal)
					}
					open = open[:len(open)-1]
				}
			}
			if len(open) != 0 {
				t.Fatalf("round %d: %d fragments left open", round, len(open))
			}
			if content.String() != txt {
				t.Fatalf("round %d: content %q, want %q", round, content.String(), txt)
			}
		}
	}
}

func TestProperty_FragmentsTileTheirRange(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	f := New()

	for round := 0; round < rounds; round++ {
		txt, ranges := randomPass(rng)
		events, err := f.Collect(txt, ranges)
		if err != nil {
			t.Fatalf("round %d: Collect failed: %v", round, err)
		}

		spans := make(map[string][][2]int)
		for _, ev := range events {
			if ev.Kind == ExitEvent {
				id := ev.Fragment.Range.ID
				if ev.Fragment.Ordinal != len(spans[id]) && !ev.Fragment.Collapsed() {
					t.Fatalf("round %d: %s exits ordinal %d after %d fragments", round, id, ev.Fragment.Ordinal, len(spans[id]))
				}
				spans[id] = append(spans[id], [2]int{ev.Fragment.Start, ev.Fragment.End})
			}
		}

		for _, r := range ranges {
			got := spans[r.ID]
			if len(got) == 0 {
				t.Fatalf("round %d: range %s never rendered", round, r.ID)
			}
			if got[0][0] != r.Start || got[len(got)-1][1] != r.End {
				t.Fatalf("round %d: range %s [%d,%d) rendered as %v", round, r.ID, r.Start, r.End, got)
			}
			for i := 1; i < len(got); i++ {
				if got[i][0] != got[i-1][1] {
					t.Fatalf("round %d: range %s fragments not contiguous: %v", round, r.ID, got)
				}
			}
		}
	}
}

func TestProperty_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(19, 23))
	f := New()

	for round := 0; round < rounds/4; round++ {
		txt, ranges := randomPass(rng)
		first, err := f.Collect(txt, ranges)
		if err != nil {
			t.Fatalf("round %d: Collect failed: %v", round, err)
		}
		second, err := f.Collect(txt, ranges)
		if err != nil {
			t.Fatalf("round %d: Collect failed: %v", round, err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("round %d: two passes differ", round)
		}
	}
}

func TestProperty_PinnedRangesNeverSplit(t *testing.T) {
	rng := rand.New(rand.NewPCG(29, 31))
	f := New()

	for round := 0; round < rounds; round++ {
		txt, ranges := randomPass(rng)
		ranges = withPinned(rng, ranges)
		events, err := f.Collect(txt, ranges)
		if err != nil {
			t.Fatalf("round %d: Collect failed: %v", round, err)
		}

		enters := make(map[string]int)
		exits := make(map[string]int)
		for _, ev := range events {
			switch ev.Kind {
			case EnterEvent:
				enters[ev.Fragment.Range.ID]++
			case ExitEvent:
				exits[ev.Fragment.Range.ID]++
			}
		}
		for _, r := range ranges {
			if !r.Policy.ShouldNotSplit() {
				continue
			}
			if enters[r.ID] != 1 || exits[r.ID] != 1 {
				t.Fatalf("round %d: pinned range %s entered %d and exited %d times", round, r.ID, enters[r.ID], exits[r.ID])
			}
		}
	}
}

func TestProperty_CollapsedRangesDoNotCut(t *testing.T) {
	rng := rand.New(rand.NewPCG(37, 41))
	f := New()

	for round := 0; round < rounds/4; round++ {
		txt, ranges := randomPass(rng)
		var spanning []model.Range
		for _, r := range ranges {
			if !r.IsCollapsed() {
				spanning = append(spanning, r)
			}
		}

		with, err := f.Segments(txt, ranges)
		if err != nil {
			t.Fatalf("round %d: Segments failed: %v", round, err)
		}
		without, err := f.Segments(txt, spanning)
		if err != nil {
			t.Fatalf("round %d: Segments failed: %v", round, err)
		}
		if len(with) != len(without) {
			t.Fatalf("round %d: collapsed ranges changed segment count %d -> %d", round, len(without), len(with))
		}
		for i := range with {
			if with[i].Lo != without[i].Lo || with[i].Hi != without[i].Hi {
				t.Fatalf("round %d: segment %d moved", round, i)
			}
		}
	}
}

func TestProperty_SweepMatchesDefinition(t *testing.T) {
	rng := rand.New(rand.NewPCG(43, 47))

	for round := 0; round < rounds; round++ {
		txt, ranges := randomPass(rng)
		length := len([]rune(txt))
		bounds := collectBoundaries(ranges, length)
		active := newActiveSet(ranges)

		for i := 0; i+1 < len(bounds); i++ {
			lo, hi := bounds[i], bounds[i+1]
			active.advance(lo)
			got := active.ranked()
			want := rank(ranges, covering(ranges, lo, hi))
			if len(got) != len(want) || (len(want) > 0 && !reflect.DeepEqual(got, want)) {
				t.Fatalf("round %d segment [%d,%d): sweep %v, definition %v", round, lo, hi, got, want)
			}
		}
	}
}

func TestProperty_EqualRangesNestInInputOrder(t *testing.T) {
	rng := rand.New(rand.NewPCG(53, 59))
	f := New()

	for round := 0; round < rounds/4; round++ {
		start := rng.IntN(5)
		end := start + 1 + rng.IntN(4)
		ranges := []model.Range{anno("x", "first", start, end), anno("y", "second", start, end)}
		events, err := f.Collect(text, ranges)
		if err != nil {
			t.Fatalf("round %d: Collect failed: %v", round, err)
		}
		for _, ev := range events {
			if ev.Kind == EnterEvent {
				if ev.Fragment.Range.ID != "first" {
					t.Fatalf("round %d: expected first to open first, got %s", round, ev.Fragment.Range.ID)
				}
				break
			}
		}
	}
}
