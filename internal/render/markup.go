package render

import (
	"strings"

	"github.com/ppiankov/annofrag/internal/fragment"
	"golang.org/x/net/html"
)

// Markup writes <tag>...</tag> markup as events arrive. The first invalid
// tag or attribute name stops the output; Output reports it.
type Markup struct {
	opts Options
	buf  strings.Builder
	err  error
}

// NewMarkup creates a markup renderer
func NewMarkup(opts Options) *Markup {
	return &Markup{opts: opts}
}

func (m *Markup) OnEnter(f fragment.Fragment) {
	if m.err != nil {
		return
	}
	attrs, err := elementAttrs(f, m.opts)
	if err != nil {
		m.err = err
		return
	}
	m.buf.WriteByte('<')
	m.buf.WriteString(f.Range.Tag)
	for _, a := range attrs {
		m.buf.WriteByte(' ')
		m.buf.WriteString(a.Key)
		m.buf.WriteString(`="`)
		m.buf.WriteString(m.escape(a.Val))
		m.buf.WriteByte('"')
	}
	m.buf.WriteByte('>')
}

func (m *Markup) OnExit(f fragment.Fragment) {
	if m.err != nil {
		return
	}
	m.buf.WriteString("</")
	m.buf.WriteString(f.Range.Tag)
	m.buf.WriteByte('>')
}

func (m *Markup) OnText(_ fragment.Context, text string) {
	if m.err != nil {
		return
	}
	m.buf.WriteString(m.escape(text))
}

// Output returns the markup written so far
func (m *Markup) Output() (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.buf.String(), nil
}

func (m *Markup) escape(s string) string {
	if !m.opts.EscapeText {
		return s
	}
	return html.EscapeString(s)
}
