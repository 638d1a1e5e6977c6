package validate

import (
	"strings"
	"testing"

	"github.com/ppiankov/annofrag/internal/fragment"
	"github.com/ppiankov/annofrag/internal/model"
)

func kinds(issues []model.Issue) []model.IssueKind {
	out := make([]model.IssueKind, len(issues))
	for i, is := range issues {
		out[i] = is.Kind
	}
	return out
}

func TestCheck_Clean(t *testing.T) {
	doc := model.Document{Text: "ABCDEF", Ranges: []model.Range{
		{ID: "b1", Tag: "b", Start: 0, End: 3},
		{ID: "a1", Tag: "a", Start: 6, End: 6},
	}}
	if issues := Check(doc); len(issues) != 0 {
		t.Errorf("expected no issues, got %+v", issues)
	}
}

func TestCheck_ReportsEverything(t *testing.T) {
	doc := model.Document{Text: "ABCDEF", Ranges: []model.Range{
		{ID: "r1", Tag: "b", Start: -1, End: 2},
		{ID: "r2", Tag: "b", Start: 4, End: 2},
		{ID: "r3", Tag: "b", Start: 2, End: 9},
		{ID: "r1", Tag: "i", Start: 0, End: 1},
		{Tag: "", Start: 0, End: 1},
	}}

	issues := Check(doc)
	got := kinds(issues)
	want := []model.IssueKind{
		model.IssueNegativeStart,
		model.IssueReversed,
		model.IssuePastEnd,
		model.IssueDuplicateID,
		model.IssueMissingID,
		model.IssueMissingTag,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("issue %d: expected %s, got %s", i, want[i], got[i])
		}
		if issues[i].Fixed {
			t.Errorf("issue %d: Check must not mark issues fixed", i)
		}
	}
	if issues[3].Index != 3 || !strings.Contains(issues[3].Message, "range 0") {
		t.Errorf("duplicate should point at the first use, got %+v", issues[3])
	}

	rejected := Rejected(issues)
	if len(rejected) != 4 {
		t.Errorf("expected 4 rejecting issues, got %v", kinds(rejected))
	}
}

func TestCheck_RuneLength(t *testing.T) {
	doc := model.Document{Text: "héllo", Ranges: []model.Range{
		{ID: "r1", Tag: "b", Start: 0, End: 5},
	}}
	if issues := Check(doc); len(issues) != 0 {
		t.Errorf("offsets are runes, expected no issues, got %+v", issues)
	}
}

func TestClamp_Repairs(t *testing.T) {
	doc := model.Document{ID: "d", Text: "ABCDEF", Ranges: []model.Range{
		{ID: "r1", Tag: "b", Start: -3, End: 2},
		{ID: "r2", Tag: "i", Start: 5, End: 1},
		{ID: "r3", Tag: "u", Start: 4, End: 40},
		{ID: "r1", Tag: "", Start: 0, End: 1},
	}}

	fixed, issues := Clamp(doc)

	if fixed.ID != "d" || fixed.Text != doc.Text {
		t.Errorf("document identity changed: %+v", fixed)
	}
	r := fixed.Ranges
	if r[0].Start != 0 || r[0].End != 2 {
		t.Errorf("expected [0,2), got [%d,%d)", r[0].Start, r[0].End)
	}
	if r[1].Start != 1 || r[1].End != 5 {
		t.Errorf("expected swapped [1,5), got [%d,%d)", r[1].Start, r[1].End)
	}
	if r[2].Start != 4 || r[2].End != 6 {
		t.Errorf("expected [4,6), got [%d,%d)", r[2].Start, r[2].End)
	}
	if !strings.HasPrefix(r[3].ID, "r1~") || len(r[3].ID) != len("r1~")+8 {
		t.Errorf("expected renamed duplicate, got %q", r[3].ID)
	}
	if r[3].Tag != DefaultTag {
		t.Errorf("expected default tag, got %q", r[3].Tag)
	}

	if doc.Ranges[0].Start != -3 {
		t.Error("Clamp must not modify its input")
	}

	for _, is := range issues {
		if !is.Fixed {
			t.Errorf("expected every issue fixed, got %+v", is)
		}
	}
	if len(Rejected(issues)) != 0 {
		t.Error("fixed issues must not be rejected")
	}

	if err := fragment.New().Validate(fixed.Text, fixed.Ranges); err != nil {
		t.Errorf("clamped document rejected: %v", err)
	}
}

func TestClamp_KeepsAnonymousRanges(t *testing.T) {
	doc := model.Document{Text: "AB", Ranges: []model.Range{
		{Tag: "b", Start: 0, End: 1},
		{Tag: "i", Start: 1, End: 2},
	}}
	fixed, issues := Clamp(doc)
	if fixed.Ranges[0].ID != "" || fixed.Ranges[1].ID != "" {
		t.Errorf("empty ids must stay empty, got %+v", fixed.Ranges)
	}
	if len(issues) != 2 {
		t.Fatalf("expected two missing_id issues, got %+v", issues)
	}
	for _, is := range issues {
		if is.Kind != model.IssueMissingID || is.Fixed {
			t.Errorf("expected unfixed missing_id, got %+v", is)
		}
	}
}

func TestNames(t *testing.T) {
	tags := map[string]bool{
		"b":                          true,
		"my-tag":                     true,
		"svg:rect":                   true,
		"h1":                         true,
		"1h":                         false,
		"img src=x onerror=alert(1)": false,
		"b>":                         false,
		"":                           false,
	}
	for tag, want := range tags {
		if got := TagName(tag); got != want {
			t.Errorf("TagName(%q) = %v, want %v", tag, got, want)
		}
	}

	attrs := map[string]bool{
		"href":        true,
		"data-x":      true,
		"aria-label":  true,
		`a"><script>`: false,
		"on click":    false,
		"x=y":         false,
		"":            false,
	}
	for attr, want := range attrs {
		if got := AttrName(attr); got != want {
			t.Errorf("AttrName(%q) = %v, want %v", attr, got, want)
		}
	}
}

func TestCheck_InvalidNames(t *testing.T) {
	doc := model.Document{Text: "ABC", Ranges: []model.Range{
		{ID: "r1", Tag: "img src=x onerror=alert(1)", Start: 0, End: 1},
		{ID: "r2", Tag: "b", Start: 1, End: 2, Attrs: map[string]string{`a"><script>`: "v", "title": "ok"}},
	}}

	issues := Check(doc)
	got := kinds(issues)
	if len(got) != 2 || got[0] != model.IssueInvalidTag || got[1] != model.IssueInvalidAttr {
		t.Fatalf("expected invalid_tag and invalid_attr, got %v", got)
	}
	if len(Rejected(issues)) != 2 {
		t.Errorf("invalid names must be rejected, got %v", kinds(Rejected(issues)))
	}

	fixed, issues := Clamp(doc)
	if fixed.Ranges[0].Tag != DefaultTag {
		t.Errorf("expected invalid tag replaced by %q, got %q", DefaultTag, fixed.Ranges[0].Tag)
	}
	if _, ok := fixed.Ranges[1].Attrs[`a"><script>`]; ok || fixed.Ranges[1].Attrs["title"] != "ok" {
		t.Errorf("expected only the invalid attribute dropped, got %v", fixed.Ranges[1].Attrs)
	}
	if len(Rejected(issues)) != 0 {
		t.Errorf("clamped names must not be rejected, got %+v", issues)
	}
	if _, ok := doc.Ranges[1].Attrs[`a"><script>`]; !ok {
		t.Error("Clamp must not modify its input attributes")
	}
}
