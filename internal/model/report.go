package model

import "time"

// RenderReport is the complete result of rendering one document
type RenderReport struct {
	DocumentID string    `json:"document_id,omitempty"` // Document identifier, if any
	Source     string    `json:"source,omitempty"`      // Where the document was loaded from
	RenderedAt time.Time `json:"rendered_at"`           // When the render happened
	Format     string    `json:"format"`                // markup, html or events

	Output string        `json:"output,omitempty"` // Rendered markup (markup/html formats)
	Events []EventRecord `json:"events,omitempty"` // Event stream (events format)

	Stats  Stats   `json:"stats"`            // Fragmentation statistics
	Issues []Issue `json:"issues,omitempty"` // Problems repaired before rendering
	Cached bool    `json:"cached"`           // Whether the result came from cache
}

// Stats describes how a document was fragmented
type Stats struct {
	TextRunes   int      `json:"text_runes"`
	Ranges      int      `json:"ranges"`
	Anchors     int      `json:"anchors"`
	Segments    int      `json:"segments"`
	Fragments   int      `json:"fragments"`
	MaxDepth    int      `json:"max_depth"`
	Split       int      `json:"split"`                  // Ranges rendered as more than one fragment
	SplitRanges []string `json:"split_ranges,omitempty"` // Ids of ranges rendered as more than one fragment
	Signals     []Signal `json:"signals,omitempty"`
}

// Signal represents a diagnostic observation with transparent data
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalHeavySplitting SignalType = "heavy_splitting" // Most ranges needed more than one fragment
	SignalDeepNesting    SignalType = "deep_nesting"    // Nesting depth above threshold
	SignalEmptyDocument  SignalType = "empty_document"  // No text at all
	SignalPinnedConflict SignalType = "pinned_conflict" // Unsplittable ranges overlap each other
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// IssueKind classifies a range problem found before fragmenting
type IssueKind string

const (
	IssueNegativeStart IssueKind = "negative_start"
	IssueReversed      IssueKind = "reversed"
	IssuePastEnd       IssueKind = "past_end"
	IssueDuplicateID   IssueKind = "duplicate_id"
	IssueMissingID     IssueKind = "missing_id"
	IssueMissingTag    IssueKind = "missing_tag"
	IssueInvalidTag    IssueKind = "invalid_tag"
	IssueInvalidAttr   IssueKind = "invalid_attr"
)

// Issue describes one range problem and, when clamped, how it was fixed
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Index   int       `json:"index"`
	RangeID string    `json:"range_id,omitempty"`
	Message string    `json:"message"`
	Fixed   bool      `json:"fixed"`
}
