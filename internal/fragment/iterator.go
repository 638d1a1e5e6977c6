package fragment

import (
	"iter"

	"github.com/ppiankov/annofrag/internal/model"
)

// Iterator pulls events one at a time
type Iterator struct {
	next   func() (Event, bool)
	stop   func()
	peeked Event
	ready  bool
	done   bool
}

// Iterator validates the input and returns a pull-based reader over the
// event stream. Call Close when abandoning it early.
func (f *Fragmenter) Iterator(text string, ranges []model.Range) (*Iterator, error) {
	seq, err := f.Events(text, ranges)
	if err != nil {
		return nil, err
	}
	next, stop := iter.Pull(seq)
	return &Iterator{next: next, stop: stop}, nil
}

// HasNext reports whether another event is available
func (it *Iterator) HasNext() bool {
	if it.ready {
		return true
	}
	if it.done {
		return false
	}
	ev, ok := it.next()
	if !ok {
		it.Close()
		return false
	}
	it.peeked, it.ready = ev, true
	return true
}

// Next returns the next event, or ErrExhausted once the stream has ended
func (it *Iterator) Next() (Event, error) {
	if !it.HasNext() {
		return Event{}, ErrExhausted
	}
	it.ready = false
	return it.peeked, nil
}

// Close stops the underlying pass. It is safe to call more than once.
func (it *Iterator) Close() {
	if it.done {
		return
	}
	it.done = true
	it.ready = false
	it.stop()
}
