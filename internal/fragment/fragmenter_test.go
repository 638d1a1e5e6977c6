package fragment

import (
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/annofrag/internal/model"
)

const text = "ABCDEFGHI"

func anno(tag, id string, start, end int) model.Range {
	return model.Range{ID: id, Tag: tag, Start: start, End: end}
}

func pinned(r model.Range) model.Range {
	r.Policy = model.PolicyShouldNotSplit
	return r
}

// markup renders events as <tag>...</tag> without escaping
func markup(t *testing.T, f *Fragmenter, txt string, ranges []model.Range) string {
	t.Helper()
	var b strings.Builder
	sink := FuncSink{
		Enter: func(fr Fragment) { b.WriteString("<" + fr.Range.Tag + ">") },
		Exit:  func(fr Fragment) { b.WriteString("</" + fr.Range.Tag + ">") },
		Text:  func(_ Context, s string) { b.WriteString(s) },
	}
	if err := f.Run(txt, ranges, sink); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return b.String()
}

func TestFragmenter_Scenarios(t *testing.T) {
	tests := []struct {
		name   string
		ranges []model.Range
		want   string
	}{
		{"no annotations", nil, "ABCDEFGHI"},
		{"one annotation", []model.Range{anno("b", "b1", 3, 6)}, "ABC<b>DEF</b>GHI"},
		{"one anchor", []model.Range{{ID: "a1", Tag: "a", Start: 3, End: 3, Anchor: true}}, "ABC<a></a>DEFGHI"},
		{"one inline", []model.Range{anno("i", "i1", 3, 4)}, "ABC<i>D</i>EFGHI"},
		{"nested", []model.Range{anno("b", "b1", 3, 6), anno("i", "i1", 4, 5)}, "ABC<b>D<i>E</i>F</b>GHI"},
		{"overlapping", []model.Range{anno("b", "b1", 3, 6), anno("i", "i1", 4, 8)}, "ABC<b>D<i>EF</i></b><i>GH</i>I"},
		{"equal", []model.Range{anno("b", "b1", 3, 6), anno("i", "i1", 3, 6)}, "ABC<b><i>DEF</i></b>GHI"},
		{
			"should not split",
			[]model.Range{anno("b", "b1", 3, 6), pinned(anno("a", "link1", 4, 8))},
			"ABC<b>D</b><a><b>EF</b>GH</a>I",
		},
		{
			"anchor before co-starting open",
			[]model.Range{anno("b", "b1", 3, 6), {ID: "a1", Tag: "a", Start: 3, End: 3, Anchor: true}},
			"ABC<a></a><b>DEF</b>GHI",
		},
		{
			"two subsequent inline",
			[]model.Range{{ID: "inline1", Tag: "a", Start: 3, End: 4, Inline: true}, {ID: "inline2", Tag: "b", Start: 4, End: 5, Inline: true}},
			"ABC<a>D</a><b>E</b>FGHI",
		},
		{"collapsed at start", []model.Range{anno("a", "a1", 0, 0)}, "<a></a>ABCDEFGHI"},
		{"two collapsed at start", []model.Range{anno("a", "a1", 0, 0), anno("b", "b2", 0, 0)}, "<a></a><b></b>ABCDEFGHI"},
		{
			"anchor does not fragment",
			[]model.Range{anno("a", "a1", 3, 6), {ID: "b1", Tag: "b", Start: 4, End: 4, Anchor: true}},
			"ABC<a>D<b></b>EF</a>GHI",
		},
		{"collapsed at end", []model.Range{anno("a", "a1", 9, 9)}, "ABCDEFGHI<a></a>"},
		{
			"pinned inside earlier normal",
			[]model.Range{anno("n", "n1", 0, 9), pinned(anno("s", "s1", 3, 6))},
			"<n>ABC</n><s><n>DEF</n></s><n>GHI</n>",
		},
		{
			"same start follows input order",
			[]model.Range{anno("b", "b1", 3, 6), anno("i", "i1", 3, 8)},
			"ABC<b><i>DEF</i></b><i>GH</i>I",
		},
	}

	f := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := markup(t, f, text, tt.ranges)
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFragmenter_AnchorPlacementAtEnd(t *testing.T) {
	ranges := []model.Range{anno("b", "b1", 0, 3), anno("a", "a1", 3, 3)}

	if got := markup(t, New(), text, ranges); got != "<b>ABC</b><a></a>DEFGHI" {
		t.Errorf("outside: got %q", got)
	}
	if got := markup(t, New(WithAnchorPlacement(AnchorsInside)), text, ranges); got != "<b>ABC<a></a></b>DEFGHI" {
		t.Errorf("inside: got %q", got)
	}

	// At the very end of the text the final unwind is the exit step.
	tail := []model.Range{anno("b", "b1", 6, 9), anno("a", "a1", 9, 9)}
	if got := markup(t, New(), text, tail); got != "ABCDEF<b>GHI</b><a></a>" {
		t.Errorf("outside at end: got %q", got)
	}
	if got := markup(t, New(WithAnchorPlacement(AnchorsInside)), text, tail); got != "ABCDEF<b>GHI<a></a></b>" {
		t.Errorf("inside at end: got %q", got)
	}
}

func TestFragmenter_AnchorAtSplitBoundary(t *testing.T) {
	ranges := []model.Range{anno("b", "b1", 3, 6), anno("i", "i1", 4, 8), anno("x", "x1", 6, 6)}
	got := markup(t, New(), text, ranges)
	want := "ABC<b>D<i>EF</i></b><x></x><i>GH</i>I"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestFragmenter_EmptyText(t *testing.T) {
	f := New()

	events, err := f.Collect("", nil)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}

	got := markup(t, f, "", []model.Range{anno("a", "a1", 0, 0), anno("b", "b1", 0, 0)})
	if got != "<a></a><b></b>" {
		t.Errorf("expected anchors only, got %q", got)
	}
}

func TestFragmenter_RuneOffsets(t *testing.T) {
	got := markup(t, New(), "héllo wörld", []model.Range{anno("b", "b1", 1, 4), anno("i", "i1", 7, 8)})
	want := "h<b>éll</b>o w<i>ö</i>rld"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestFragmenter_InvalidRanges(t *testing.T) {
	tests := []struct {
		name   string
		ranges []model.Range
		index  int
	}{
		{"start after end", []model.Range{anno("b", "b1", 5, 3)}, 0},
		{"negative start", []model.Range{anno("b", "b1", 0, 2), anno("i", "i1", -1, 2)}, 1},
		{"end past text", []model.Range{anno("b", "b1", 3, 10)}, 0},
		{"duplicate id", []model.Range{anno("b", "x", 0, 2), anno("i", "x", 3, 4)}, 1},
	}

	f := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			sink := FuncSink{
				Enter: func(Fragment) { called = true },
				Text:  func(Context, string) { called = true },
			}
			err := f.Run(text, tt.ranges, sink)
			if !errors.Is(err, ErrInvalidRange) {
				t.Fatalf("expected ErrInvalidRange, got %v", err)
			}
			var rangeErr *InvalidRangeError
			if !errors.As(err, &rangeErr) {
				t.Fatalf("expected *InvalidRangeError, got %T", err)
			}
			if rangeErr.Index != tt.index {
				t.Errorf("expected index %d, got %d", tt.index, rangeErr.Index)
			}
			if called {
				t.Error("sink must not be called for a rejected pass")
			}

			if _, err := f.Events(text, tt.ranges); !errors.Is(err, ErrInvalidRange) {
				t.Errorf("Events: expected ErrInvalidRange, got %v", err)
			}
		})
	}
}

func TestFragmenter_AnonymousRangesMayRepeat(t *testing.T) {
	got := markup(t, New(), text, []model.Range{anno("b", "", 0, 2), anno("i", "", 1, 3)})
	if got != "<b>A<i>B</i></b><i>C</i>DEFGHI" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestFragmenter_MaxRanges(t *testing.T) {
	f := New(WithMaxRanges(2))
	ranges := []model.Range{anno("a", "1", 0, 1), anno("b", "2", 1, 2), anno("c", "3", 2, 3)}

	err := f.Run(text, ranges, FuncSink{})
	if !errors.Is(err, ErrTooManyRanges) {
		t.Fatalf("expected ErrTooManyRanges, got %v", err)
	}

	if err := New(WithMaxRanges(0)).Run(text, ranges, FuncSink{}); err != nil {
		t.Errorf("expected unbounded fragmenter to accept, got %v", err)
	}
}

func TestFragmenter_FragmentsOfSplitRange(t *testing.T) {
	events, err := New().Collect(text, []model.Range{anno("b", "b1", 3, 6), anno("i", "i1", 4, 8)})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	var fragments []Fragment
	for _, ev := range events {
		if ev.Kind == ExitEvent && ev.Fragment.Range.ID == "i1" {
			fragments = append(fragments, ev.Fragment)
		}
	}
	if len(fragments) != 2 {
		t.Fatalf("expected 2 fragments of i1, got %d", len(fragments))
	}
	if fragments[0].Ordinal != 0 || fragments[0].Start != 4 || fragments[0].End != 6 || fragments[0].Depth != 1 {
		t.Errorf("unexpected first fragment %+v", fragments[0])
	}
	if fragments[1].Ordinal != 1 || fragments[1].Start != 6 || fragments[1].End != 8 || fragments[1].Depth != 0 {
		t.Errorf("unexpected second fragment %+v", fragments[1])
	}
}

func TestFragmenter_TextContext(t *testing.T) {
	events, err := New().Collect(text, []model.Range{anno("b", "b1", 3, 6), anno("i", "i1", 4, 8)})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	for _, ev := range events {
		if ev.Kind != TextEvent || ev.Text != "EF" {
			continue
		}
		if ev.Offset != 4 {
			t.Errorf("expected offset 4, got %d", ev.Offset)
		}
		if len(ev.Stack) != 2 || ev.Stack[0].Range.ID != "b1" || ev.Stack[1].Range.ID != "i1" {
			t.Errorf("expected stack [b1 i1], got %+v", ev.Stack)
		}
		return
	}
	t.Fatal("text event EF not found")
}

func TestFragmenter_Segments(t *testing.T) {
	f := New()

	segs, err := f.Segments(text, []model.Range{anno("a", "a1", 2, 2), anno("b", "b1", 5, 5)})
	if err != nil {
		t.Fatalf("Segments failed: %v", err)
	}
	if len(segs) != 1 || segs[0].Lo != 0 || segs[0].Hi != 9 || len(segs[0].Active) != 0 {
		t.Errorf("expected the single segment [0,9), got %+v", segs)
	}

	segs, err = f.Segments(text, []model.Range{pinned(anno("a", "a1", 4, 8)), anno("b", "b1", 3, 6)})
	if err != nil {
		t.Fatalf("Segments failed: %v", err)
	}
	wantBounds := [][2]int{{0, 3}, {3, 4}, {4, 6}, {6, 8}, {8, 9}}
	if len(segs) != len(wantBounds) {
		t.Fatalf("expected %d segments, got %d", len(wantBounds), len(segs))
	}
	for i, seg := range segs {
		if seg.Lo != wantBounds[i][0] || seg.Hi != wantBounds[i][1] {
			t.Errorf("segment %d: expected %v, got [%d,%d)", i, wantBounds[i], seg.Lo, seg.Hi)
		}
	}
	if ids := activeIDs(segs[2]); ids != "a1,b1" {
		t.Errorf("expected pinned range outermost in [4,6), got %s", ids)
	}

	segs, err = f.Segments("", nil)
	if err != nil || len(segs) != 0 {
		t.Errorf("expected no segments for empty text, got %v (err %v)", segs, err)
	}
}

func activeIDs(seg Segment) string {
	ids := make([]string, len(seg.Active))
	for i, r := range seg.Active {
		ids[i] = r.ID
	}
	return strings.Join(ids, ",")
}
