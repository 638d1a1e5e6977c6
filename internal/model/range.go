package model

// Policy is a fragmentation hint attached to a range
type Policy string

const (
	PolicyNormal         Policy = "normal"           // May be split by overlapping ranges
	PolicyShouldNotSplit Policy = "should_not_split" // Pushed outward so that others split instead
)

// ShouldNotSplit reports whether the policy asks to keep the range whole.
// An empty policy is treated as normal.
func (p Policy) ShouldNotSplit() bool {
	return p == PolicyShouldNotSplit
}

// Range is a labeled interval [Start, End) over a text, measured in runes
type Range struct {
	// ID is unique within a document and stable across splits.
	ID string `json:"id" yaml:"id" toml:"id"`
	// Tag is the rendered element name.
	Tag   string `json:"tag" yaml:"tag" toml:"tag"`
	Start int    `json:"start" yaml:"start" toml:"start"`
	End   int    `json:"end" yaml:"end" toml:"end"`

	Policy Policy `json:"policy,omitempty" yaml:"policy,omitempty" toml:"policy,omitempty"`
	// Anchor and Inline are passed through to consumers untouched.
	Anchor bool              `json:"anchor,omitempty" yaml:"anchor,omitempty" toml:"anchor,omitempty"`
	Inline bool              `json:"inline,omitempty" yaml:"inline,omitempty" toml:"inline,omitempty"`
	Attrs  map[string]string `json:"attrs,omitempty" yaml:"attrs,omitempty" toml:"attrs,omitempty"`
}

// IsCollapsed reports whether the range has zero length.
// Collapsed ranges render as point markers regardless of the anchor hint.
func (r Range) IsCollapsed() bool {
	return r.Start == r.End
}

// Len returns the number of runes covered by the range
func (r Range) Len() int {
	return r.End - r.Start
}

// Document is a text together with the ranges annotating it
type Document struct {
	ID     string  `json:"id,omitempty" yaml:"id,omitempty" toml:"id,omitempty"`
	Text   string  `json:"text" yaml:"text" toml:"text"`
	Ranges []Range `json:"ranges" yaml:"ranges" toml:"ranges"`
}

// Annotation is a range owned by a node inside a container
type Annotation struct {
	Range
	ContainerID string `json:"container_id" yaml:"container_id"`
	NodeID      string `json:"node_id" yaml:"node_id"`
}

// Path returns the property path the annotation's coordinates live on
func (a Annotation) Path() string {
	return a.NodeID + ".content"
}

// Coordinate is one endpoint of an annotation on a node property
type Coordinate struct {
	AnnotationID string `json:"annotation_id"`
	NodeID       string `json:"node_id"`
	Offset       int    `json:"offset"`
	IsStart      bool   `json:"is_start"`
}
