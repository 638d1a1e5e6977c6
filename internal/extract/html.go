// Package extract turns existing markup back into text plus ranges
package extract

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ppiankov/annofrag/internal/model"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attributes written by render.Markup that describe fragments, not ranges
const (
	attrContinues = "data-continues"
	attrFragment  = "data-fragment"
	attrPolicy    = "data-policy"
)

// FromHTML walks an HTML fragment and produces its text with one range per
// element. Elements without content become anchors. Elements carrying an
// id attribute keep it as the range id; others get a generated one.
// A fragment marked data-continues extends the range it continues, so the
// output of render.Markup with ids comes back as the ranges it came from.
func FromHTML(src string) (model.Document, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(src), body)
	if err != nil {
		return model.Document{}, fmt.Errorf("parse html: %w", err)
	}

	var (
		text   strings.Builder
		offset int
		ranges []model.Range
		byID   = make(map[string]int)
	)

	var walk func(*html.Node) error
	walk = func(n *html.Node) error {
		switch n.Type {
		case html.TextNode:
			text.WriteString(n.Data)
			offset += utf8.RuneCountInString(n.Data)
			return nil
		case html.ElementNode:
		default:
			return nil
		}

		// Reserve the slot now so outer elements precede inner ones
		// and win the input-order tie-break.
		slot := len(ranges)
		r := elementRange(n, offset)
		ranges = append(ranges, r)

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if err := walk(c); err != nil {
				return err
			}
		}
		ranges[slot].End = offset

		if continues := attrValue(n, attrContinues); continues != "" {
			first, ok := byID[continues]
			if !ok {
				return fmt.Errorf("element <%s> continues unknown range %q", n.Data, continues)
			}
			if ranges[first].End != ranges[slot].Start {
				return fmt.Errorf("fragment of %q at %d does not follow the previous one ending at %d",
					continues, ranges[slot].Start, ranges[first].End)
			}
			ranges[first].End = offset
			ranges[slot].ID = "" // dropped below
			ranges[slot].Tag = ""
			return nil
		}

		if _, dup := byID[ranges[slot].ID]; dup {
			return fmt.Errorf("duplicate element id %q", ranges[slot].ID)
		}
		byID[ranges[slot].ID] = slot
		return nil
	}

	for _, n := range nodes {
		if err := walk(n); err != nil {
			return model.Document{}, err
		}
	}

	kept := ranges[:0]
	for _, r := range ranges {
		if r.Tag != "" {
			kept = append(kept, r)
		}
	}
	return model.Document{Text: text.String(), Ranges: kept}, nil
}

func elementRange(n *html.Node, offset int) model.Range {
	r := model.Range{Tag: n.Data, Start: offset, End: offset}
	for _, a := range n.Attr {
		switch a.Key {
		case "id":
			r.ID = a.Val
		case attrContinues, attrFragment:
		case attrPolicy:
			r.Policy = model.Policy(a.Val)
		default:
			if r.Attrs == nil {
				r.Attrs = make(map[string]string)
			}
			r.Attrs[a.Key] = a.Val
		}
	}
	if r.ID == "" {
		r.ID = n.Data + "-" + uuid.NewString()[:8]
	}
	if n.FirstChild == nil {
		r.Anchor = true
	}
	return r
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
