// Package render turns fragmenter events into output
package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/annofrag/internal/fragment"
	"github.com/ppiankov/annofrag/internal/model"
	"github.com/ppiankov/annofrag/internal/validate"
	"golang.org/x/net/html"
)

// Renderer is a sink that can report what it built
type Renderer interface {
	fragment.Sink
	Output() (string, error)
}

// Options shared by the renderers
type Options struct {
	WithIDs    bool // Write id and fragment ordinal attributes
	EscapeText bool // Escape text and attribute values
}

// Formats lists the names accepted by ForFormat
var Formats = []string{"markup", "html", "events"}

// ForFormat creates a fresh renderer for the named format
func ForFormat(name string, opts Options) (Renderer, error) {
	switch strings.ToLower(name) {
	case "", "markup":
		return NewMarkup(opts), nil
	case "html":
		return NewTree(opts), nil
	case "events":
		return NewEvents(), nil
	default:
		return nil, fmt.Errorf("unknown format %q (want one of %s)", name, strings.Join(Formats, ", "))
	}
}

// elementAttrs returns the attributes written on the element of f, in
// output order: id or data-continues, data-policy, data-fragment, then
// the range's own attributes sorted by name. Names that would break out of
// the tag are refused with validate.ErrInvalidName.
func elementAttrs(f fragment.Fragment, opts Options) ([]html.Attribute, error) {
	if !validate.TagName(f.Range.Tag) {
		return nil, fmt.Errorf("%w: tag %q of range %q", validate.ErrInvalidName, f.Range.Tag, f.Range.ID)
	}

	var attrs []html.Attribute
	if opts.WithIDs {
		if f.Range.ID != "" {
			if f.Ordinal == 0 {
				attrs = append(attrs, html.Attribute{Key: "id", Val: f.Range.ID})
			} else {
				attrs = append(attrs, html.Attribute{Key: "data-continues", Val: f.Range.ID})
			}
		}
		if f.Ordinal == 0 && f.Range.Policy != "" && f.Range.Policy != model.PolicyNormal {
			attrs = append(attrs, html.Attribute{Key: "data-policy", Val: string(f.Range.Policy)})
		}
		if f.Range.ID != "" && !f.Collapsed() {
			attrs = append(attrs, html.Attribute{Key: "data-fragment", Val: strconv.Itoa(f.Ordinal)})
		}
	}

	keys := make([]string, 0, len(f.Range.Attrs))
	for k := range f.Range.Attrs {
		if !validate.AttrName(k) {
			return nil, fmt.Errorf("%w: attribute %q of range %q", validate.ErrInvalidName, k, f.Range.ID)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, html.Attribute{Key: k, Val: f.Range.Attrs[k]})
	}
	return attrs, nil
}
