package fragment

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRange is wrapped by every *InvalidRangeError.
	ErrInvalidRange = errors.New("invalid range")
	// ErrTooManyRanges is returned when a pass exceeds the configured range bound.
	ErrTooManyRanges = errors.New("too many ranges")
	// ErrExhausted is returned by Iterator.Next once the stream has terminated.
	ErrExhausted = errors.New("event stream exhausted")
	// ErrInvariant marks a fragmenter defect. It is never caused by input.
	ErrInvariant = errors.New("fragmenter invariant violated")
)

// InvalidRangeError describes the first range that made a pass unacceptable
type InvalidRangeError struct {
	Index  int    // Position of the range in the input
	ID     string // Range id
	Start  int
	End    int
	Length int // Rune length of the text
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range %q (#%d) [%d,%d) over %d runes: %s",
		e.ID, e.Index, e.Start, e.End, e.Length, e.Reason)
}

func (e *InvalidRangeError) Unwrap() error {
	return ErrInvalidRange
}

// InvariantError is the panic value raised when the open stack gets out of
// step with the ranked target. A pass that hits it is aborted.
type InvariantError struct {
	Op     string
	Offset int
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%v: %s at offset %d: %s", ErrInvariant, e.Op, e.Offset, e.Detail)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariant
}

func violate(op string, offset int, format string, args ...any) {
	panic(&InvariantError{Op: op, Offset: offset, Detail: fmt.Sprintf(format, args...)})
}
