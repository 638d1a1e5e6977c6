// Package stats measures how a document was fragmented
package stats

import (
	"fmt"
	"unicode/utf8"

	"github.com/ppiankov/annofrag/internal/fragment"
	"github.com/ppiankov/annofrag/internal/model"
)

const (
	heavySplitRatio   = 0.5 // Share of spanning ranges split before it is reported
	heavySplitMinimum = 4   // Spanning ranges needed before the ratio means anything
	deepNestingLimit  = 8
)

// Collector is a sink that counts what the fragmenter emits
type Collector struct {
	textRunes   int
	spanning    int
	anchors     int
	fragments   int
	maxDepth    int
	split       int // spanning ranges emitted as more than one fragment
	pinned      int // should_not_split ranges among them
	splitIDs    []string
	pinnedSplit []string
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) OnEnter(f fragment.Fragment) {
	if depth := f.Depth + 1; depth > c.maxDepth {
		c.maxDepth = depth
	}
	if f.Collapsed() {
		c.anchors++
		return
	}

	c.fragments++
	if f.Ordinal == 0 {
		c.spanning++
		return
	}
	// Ordinals count per input range, so ordinal 1 marks each split range
	// exactly once, anonymous ones included. Only named ranges are listed.
	if f.Ordinal != 1 {
		return
	}
	c.split++
	pinned := f.Range.Policy.ShouldNotSplit()
	if pinned {
		c.pinned++
	}
	if f.Range.ID == "" {
		return
	}
	c.splitIDs = append(c.splitIDs, f.Range.ID)
	if pinned {
		c.pinnedSplit = append(c.pinnedSplit, f.Range.ID)
	}
}

func (c *Collector) OnExit(fragment.Fragment) {}

func (c *Collector) OnText(_ fragment.Context, text string) {
	c.textRunes += utf8.RuneCountInString(text)
}

// Stats summarises the pass. segments comes from Fragmenter.Segments, which
// the event stream alone cannot reveal.
func (c *Collector) Stats(segments int) model.Stats {
	st := model.Stats{
		TextRunes:   c.textRunes,
		Ranges:      c.spanning + c.anchors,
		Anchors:     c.anchors,
		Segments:    segments,
		Fragments:   c.fragments,
		MaxDepth:    c.maxDepth,
		Split:       c.split,
		SplitRanges: c.splitIDs,
	}

	if c.textRunes == 0 {
		st.Signals = append(st.Signals, model.Signal{
			Type:        model.SignalEmptyDocument,
			Severity:    model.SeverityInfo,
			Description: "Document has no text",
		})
	}

	if c.spanning >= heavySplitMinimum {
		ratio := float64(c.split) / float64(c.spanning)
		if ratio > heavySplitRatio {
			st.Signals = append(st.Signals, model.Signal{
				Type:        model.SignalHeavySplitting,
				Severity:    model.SeverityWarning,
				Description: fmt.Sprintf("%d of %d ranges were split", c.split, c.spanning),
				Data: map[string]interface{}{
					"split":     c.split,
					"spanning":  c.spanning,
					"ratio":     ratio,
					"threshold": heavySplitRatio,
				},
			})
		}
	}

	if c.maxDepth > deepNestingLimit {
		st.Signals = append(st.Signals, model.Signal{
			Type:        model.SignalDeepNesting,
			Severity:    model.SeverityInfo,
			Description: fmt.Sprintf("Nesting reaches depth %d", c.maxDepth),
			Data: map[string]interface{}{
				"max_depth": c.maxDepth,
				"limit":     deepNestingLimit,
			},
		})
	}

	if c.pinned > 0 {
		st.Signals = append(st.Signals, model.Signal{
			Type:        model.SignalPinnedConflict,
			Severity:    model.SeverityCritical,
			Description: fmt.Sprintf("%d should_not_split ranges overlap another one and were split", c.pinned),
			Data: map[string]interface{}{
				"ranges": c.pinnedSplit,
			},
		})
	}

	return st
}
