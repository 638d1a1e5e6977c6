package fragment

import "github.com/ppiankov/annofrag/internal/model"

// Kind identifies an event
type Kind int

const (
	EnterEvent Kind = iota
	ExitEvent
	TextEvent
)

func (k Kind) String() string {
	switch k {
	case EnterEvent:
		return "enter"
	case ExitEvent:
		return "exit"
	case TextEvent:
		return "text"
	default:
		return "unknown"
	}
}

// Fragment is one continuous enter...exit occurrence of a range.
// A split range produces several fragments sharing the same Range.ID.
type Fragment struct {
	Range   model.Range
	Ordinal int // 0 for the first fragment of the range
	Start   int
	End     int // -1 on enter events of spanning ranges
	Depth   int // 0 is outermost
}

// Collapsed reports whether the fragment belongs to a zero-length range
func (f Fragment) Collapsed() bool {
	return f.Range.IsCollapsed()
}

// Context is passed with text to sinks that need ancestry
type Context struct {
	Stack  []Fragment // Open fragments, outer to inner; shared, do not modify
	Offset int        // Rune offset of the text
}

// Event is one item of the fragmenter output
type Event struct {
	Kind     Kind
	Fragment Fragment   // Enter and exit events
	Text     string     // Text events
	Offset   int        // Rune offset at which the event happens
	Stack    []Fragment // Text events: open fragments, outer to inner
}

// Sink consumes events synchronously in output order
type Sink interface {
	OnEnter(f Fragment)
	OnExit(f Fragment)
	OnText(ctx Context, text string)
}

// FuncSink adapts plain callbacks to Sink. Nil callbacks are skipped.
type FuncSink struct {
	Enter func(Fragment)
	Exit  func(Fragment)
	Text  func(Context, string)
}

func (s FuncSink) OnEnter(f Fragment) {
	if s.Enter != nil {
		s.Enter(f)
	}
}

func (s FuncSink) OnExit(f Fragment) {
	if s.Exit != nil {
		s.Exit(f)
	}
}

func (s FuncSink) OnText(ctx Context, text string) {
	if s.Text != nil {
		s.Text(ctx, text)
	}
}

// Tee returns a sink that forwards every event to each sink in turn
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

type tee []Sink

func (t tee) OnEnter(f Fragment) {
	for _, s := range t {
		s.OnEnter(f)
	}
}

func (t tee) OnExit(f Fragment) {
	for _, s := range t {
		s.OnExit(f)
	}
}

func (t tee) OnText(ctx Context, text string) {
	for _, s := range t {
		s.OnText(ctx, text)
	}
}

// Dispatch hands one event to a sink
func Dispatch(sink Sink, ev Event) {
	switch ev.Kind {
	case EnterEvent:
		sink.OnEnter(ev.Fragment)
	case ExitEvent:
		sink.OnExit(ev.Fragment)
	case TextEvent:
		sink.OnText(Context{Stack: ev.Stack, Offset: ev.Offset}, ev.Text)
	}
}

// Recorder is a Sink that keeps every event it sees
type Recorder struct {
	Events []Event
}

func (r *Recorder) OnEnter(f Fragment) {
	r.Events = append(r.Events, Event{Kind: EnterEvent, Fragment: f, Offset: f.Start})
}

func (r *Recorder) OnExit(f Fragment) {
	r.Events = append(r.Events, Event{Kind: ExitEvent, Fragment: f, Offset: f.End})
}

func (r *Recorder) OnText(ctx Context, text string) {
	r.Events = append(r.Events, Event{Kind: TextEvent, Text: text, Offset: ctx.Offset, Stack: ctx.Stack})
}
