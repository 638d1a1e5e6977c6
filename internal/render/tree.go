package render

import (
	"fmt"
	"strings"

	"github.com/ppiankov/annofrag/internal/fragment"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Tree builds an x/net/html node tree from events. Every fragment becomes
// an element; a split range becomes several sibling or cousin elements.
type Tree struct {
	opts Options
	root *html.Node
	cur  *html.Node
	err  error
}

// NewTree creates a tree builder with an empty document fragment as root
func NewTree(opts Options) *Tree {
	root := &html.Node{Type: html.DocumentNode}
	return &Tree{opts: opts, root: root, cur: root}
}

func (t *Tree) OnEnter(f fragment.Fragment) {
	if t.err != nil {
		return
	}
	attrs, err := elementAttrs(f, t.opts)
	if err != nil {
		t.err = err
		return
	}
	el := &html.Node{
		Type:     html.ElementNode,
		Data:     f.Range.Tag,
		DataAtom: atom.Lookup([]byte(f.Range.Tag)),
		Attr:     attrs,
	}

	t.cur.AppendChild(el)
	t.cur = el
}

func (t *Tree) OnExit(f fragment.Fragment) {
	if t.err != nil {
		return
	}
	if t.cur == t.root || t.cur.Data != f.Range.Tag {
		t.err = fmt.Errorf("%w: exit <%s> while <%s> is open", fragment.ErrInvariant, f.Range.Tag, t.cur.Data)
		return
	}
	t.cur = t.cur.Parent
}

func (t *Tree) OnText(_ fragment.Context, text string) {
	if t.err != nil {
		return
	}
	// Adjacent text events (split by anchors or closed siblings) stay
	// separate nodes; html.Render concatenates them anyway.
	t.cur.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// Root returns the document fragment holding the built nodes
func (t *Tree) Root() (*html.Node, error) {
	if t.err != nil {
		return nil, t.err
	}
	if t.cur != t.root {
		return nil, fmt.Errorf("%w: <%s> left open", fragment.ErrInvariant, t.cur.Data)
	}
	return t.root, nil
}

// Output serialises the tree with html.Render
func (t *Tree) Output() (string, error) {
	root, err := t.Root()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", fmt.Errorf("render html: %w", err)
		}
	}
	return b.String(), nil
}
