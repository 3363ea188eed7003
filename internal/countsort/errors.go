package countsort

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSize is returned when the sequence is empty.
	ErrInvalidSize = errors.New("sequence must contain at least one element")
	// ErrInvalidValue is returned when a value is negative.
	ErrInvalidValue = errors.New("values must be non-negative")
	// ErrValueTooLarge is returned by Validate when a value exceeds the limit.
	ErrValueTooLarge = errors.New("value exceeds the configured maximum")
	// ErrKeyOutOfRange is returned when a value is above MaxKey. It matches
	// ErrValueTooLarge.
	ErrKeyOutOfRange = fmt.Errorf("%w: frequency table cannot hold it", ErrValueTooLarge)
)

// ValueError reports the first offending element of a sequence.
// Value and Limit are decimal so unsigned values above MaxInt64 survive.
type ValueError struct {
	Index int
	Value string
	Limit string
	Err   error
}

func (e *ValueError) Error() string {
	switch {
	case errors.Is(e.Err, ErrKeyOutOfRange):
		return fmt.Sprintf("element %d: value %s exceeds the largest sortable value %s", e.Index, e.Value, e.Limit)
	case errors.Is(e.Err, ErrValueTooLarge):
		return fmt.Sprintf("element %d: value %s exceeds the configured maximum %s", e.Index, e.Value, e.Limit)
	}
	return fmt.Sprintf("element %d: value %s is negative; %v", e.Index, e.Value, e.Err)
}

func (e *ValueError) Unwrap() error {
	return e.Err
}
