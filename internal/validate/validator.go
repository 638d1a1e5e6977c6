// Package validate finds and repairs range problems the fragmenter refuses
package validate

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ppiankov/annofrag/internal/model"
)

// DefaultTag replaces an empty tag when clamping
const DefaultTag = "span"

// Check lists every problem in doc without stopping at the first.
// Issues are ordered by range index; Fixed is always false.
func Check(doc model.Document) []model.Issue {
	length := utf8.RuneCountInString(doc.Text)
	seen := make(map[string]int, len(doc.Ranges))
	var issues []model.Issue

	for i, r := range doc.Ranges {
		issues = append(issues, inspect(i, r, length)...)

		if r.ID == "" {
			continue
		}
		if first, ok := seen[r.ID]; ok {
			issues = append(issues, model.Issue{
				Kind:    model.IssueDuplicateID,
				Index:   i,
				RangeID: r.ID,
				Message: fmt.Sprintf("id %q already used by range %d", r.ID, first),
			})
			continue
		}
		seen[r.ID] = i
	}
	return issues
}

// inspect checks one range in isolation
func inspect(i int, r model.Range, length int) []model.Issue {
	var issues []model.Issue
	add := func(kind model.IssueKind, format string, args ...interface{}) {
		issues = append(issues, model.Issue{
			Kind:    kind,
			Index:   i,
			RangeID: r.ID,
			Message: fmt.Sprintf(format, args...),
		})
	}

	if r.ID == "" {
		add(model.IssueMissingID, "range has no id")
	}
	if r.Tag == "" {
		add(model.IssueMissingTag, "range has no tag")
	} else if !TagName(r.Tag) {
		add(model.IssueInvalidTag, "tag %q is not a valid element name", r.Tag)
	}
	for _, k := range badAttrs(r.Attrs) {
		add(model.IssueInvalidAttr, "attribute %q is not a valid attribute name", k)
	}
	if r.Start < 0 {
		add(model.IssueNegativeStart, "start %d is negative", r.Start)
	}
	if r.Start > r.End {
		add(model.IssueReversed, "start %d is after end %d", r.Start, r.End)
	}
	if r.End > length || r.Start > length {
		add(model.IssuePastEnd, "range [%d, %d) extends past text length %d", r.Start, r.End, length)
	}
	return issues
}

// Rejected returns the issues the fragmenter would reject the document for.
// Missing ids and tags are accepted as they are.
func Rejected(issues []model.Issue) []model.Issue {
	var out []model.Issue
	for _, is := range issues {
		if is.Fixed {
			continue
		}
		switch is.Kind {
		case model.IssueNegativeStart, model.IssueReversed, model.IssuePastEnd, model.IssueDuplicateID,
			model.IssueInvalidTag, model.IssueInvalidAttr:
			out = append(out, is)
		}
	}
	return out
}

// Clamp returns a copy of doc the fragmenter accepts, plus what it changed.
// Reversed ranges are swapped, offsets are clamped into [0, L], duplicate
// ids get a random suffix, empty or invalid tags become DefaultTag and
// attributes with invalid names are dropped. Range order is
// kept, so tie-breaks are unchanged. Empty ids are left alone.
func Clamp(doc model.Document) (model.Document, []model.Issue) {
	length := utf8.RuneCountInString(doc.Text)
	out := model.Document{
		ID:     doc.ID,
		Text:   doc.Text,
		Ranges: make([]model.Range, len(doc.Ranges)),
	}
	seen := make(map[string]bool, len(doc.Ranges))
	var issues []model.Issue

	for i, r := range doc.Ranges {
		for _, is := range inspect(i, r, length) {
			is.Fixed = is.Kind != model.IssueMissingID
			issues = append(issues, is)
		}

		if r.Start > r.End {
			r.Start, r.End = r.End, r.Start
		}
		r.Start = clampOffset(r.Start, length)
		r.End = clampOffset(r.End, length)
		if r.Tag == "" || !TagName(r.Tag) {
			r.Tag = DefaultTag
		}
		if bad := badAttrs(r.Attrs); len(bad) > 0 {
			attrs := make(map[string]string, len(r.Attrs)-len(bad))
			for k, v := range r.Attrs {
				if AttrName(k) {
					attrs[k] = v
				}
			}
			r.Attrs = attrs
		}

		if r.ID != "" {
			if seen[r.ID] {
				renamed := r.ID + "~" + uuid.NewString()[:8]
				issues = append(issues, model.Issue{
					Kind:    model.IssueDuplicateID,
					Index:   i,
					RangeID: r.ID,
					Message: fmt.Sprintf("renamed duplicate id %q to %q", r.ID, renamed),
					Fixed:   true,
				})
				r.ID = renamed
			}
			seen[r.ID] = true
		}
		out.Ranges[i] = r
	}
	return out, issues
}

// badAttrs returns the invalid attribute names of attrs, sorted
func badAttrs(attrs map[string]string) []string {
	var bad []string
	for k := range attrs {
		if !AttrName(k) {
			bad = append(bad, k)
		}
	}
	sort.Strings(bad)
	return bad
}

func clampOffset(offset, length int) int {
	if offset < 0 {
		return 0
	}
	if offset > length {
		return length
	}
	return offset
}
