package console

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/JakeFAU/countsort/internal/countsort"
)

// ErrInputParse marks input that could not be read as an integer.
var ErrInputParse = errors.New("input is not an integer")

// ParseError describes a token that could not be parsed.
type ParseError struct {
	Field string
	Token string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("read %s: %v", e.Field, e.Err)
	}
	if errors.Is(e.Err, strconv.ErrRange) {
		return fmt.Sprintf("read %s: %q is out of range", e.Field, e.Token)
	}
	return fmt.Sprintf("read %s: %q is not an integer", e.Field, e.Token)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrInputParse, e.Err}
}

// SizeError reports a sequence length that is not positive.
type SizeError struct {
	Size int64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("invalid size %d: %v", e.Size, countsort.ErrInvalidSize)
}

func (e *SizeError) Unwrap() error {
	return countsort.ErrInvalidSize
}
