package model

// EventRecord is the serializable form of one fragmenter event
type EventRecord struct {
	Kind     string            `json:"kind"`               // enter, exit, text
	ID       string            `json:"id,omitempty"`       // Range id for enter/exit
	Tag      string            `json:"tag,omitempty"`      // Range tag for enter/exit
	Ordinal  int               `json:"ordinal,omitempty"`  // Fragment number of the range (0 = first)
	Depth    int               `json:"depth"`              // Nesting depth of the fragment or text
	Offset   int               `json:"offset"`             // Rune offset where the event occurs
	Text     string            `json:"text,omitempty"`     // Text content for text events
	Attrs    map[string]string `json:"attrs,omitempty"`    // Range attributes on enter
	Collapse bool              `json:"collapse,omitempty"` // Enter/exit of a zero-length range
}
