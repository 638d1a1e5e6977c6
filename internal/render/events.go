package render

import (
	"encoding/json"
	"fmt"

	"github.com/ppiankov/annofrag/internal/fragment"
	"github.com/ppiankov/annofrag/internal/model"
)

// Events records the stream as serializable records
type Events struct {
	Records []model.EventRecord
}

// NewEvents creates an event recorder
func NewEvents() *Events {
	return &Events{}
}

// Record converts one fragmenter event
func Record(ev fragment.Event) model.EventRecord {
	switch ev.Kind {
	case fragment.TextEvent:
		return model.EventRecord{Kind: ev.Kind.String(), Depth: len(ev.Stack), Offset: ev.Offset, Text: ev.Text}
	default:
		f := ev.Fragment
		rec := model.EventRecord{
			Kind:     ev.Kind.String(),
			ID:       f.Range.ID,
			Tag:      f.Range.Tag,
			Ordinal:  f.Ordinal,
			Depth:    f.Depth,
			Offset:   ev.Offset,
			Collapse: f.Collapsed(),
		}
		if ev.Kind == fragment.EnterEvent {
			rec.Attrs = f.Range.Attrs
		}
		return rec
	}
}

func (e *Events) OnEnter(f fragment.Fragment) {
	e.Records = append(e.Records, Record(fragment.Event{Kind: fragment.EnterEvent, Fragment: f, Offset: f.Start}))
}

func (e *Events) OnExit(f fragment.Fragment) {
	e.Records = append(e.Records, Record(fragment.Event{Kind: fragment.ExitEvent, Fragment: f, Offset: f.End}))
}

func (e *Events) OnText(ctx fragment.Context, text string) {
	e.Records = append(e.Records, Record(fragment.Event{Kind: fragment.TextEvent, Text: text, Offset: ctx.Offset, Stack: ctx.Stack}))
}

// Output returns the records as a JSON array
func (e *Events) Output() (string, error) {
	records := e.Records
	if records == nil {
		records = []model.EventRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("marshal events: %w", err)
	}
	return string(data), nil
}
