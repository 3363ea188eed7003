// Package console runs the interactive read-sort-print session.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/countsort/internal/countsort"
)

// Prompts and labels written to the user.
const (
	PromptSize     = "Enter the size of array: "
	PromptElements = "Enter elements:"
	LabelUnsorted  = "Unsorted array: "
	LabelSorted    = "Sorted array: "
)

// preallocLimit bounds the initial buffer so a huge declared size cannot
// allocate before any element has been read.
const preallocLimit = 1 << 16

// Config controls Session behavior.
type Config struct {
	// MaxValue rejects any element above it when positive.
	MaxValue int64
}

// Session reads a sequence from in, sorts it, and writes both forms to out.
type Session struct {
	scanner *bufio.Scanner
	out     io.Writer
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Session.
func New(in io.Reader, out io.Writer, cfg Config, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	scanner := bufio.NewScanner(in)
	scanner.Split(bufio.ScanWords)
	return &Session{
		scanner: scanner,
		out:     out,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run executes one session. Nothing after the prompts is printed when the
// input is invalid.
func (s *Session) Run(ctx context.Context) error {
	if _, err := io.WriteString(s.out, PromptSize); err != nil {
		return fmt.Errorf("write prompt: %w", err)
	}
	n, err := s.readInt("size")
	if err != nil {
		return err
	}
	if n <= 0 {
		return &SizeError{Size: n}
	}

	if _, err := fmt.Fprintln(s.out, PromptElements); err != nil {
		return fmt.Errorf("write prompt: %w", err)
	}
	values, err := s.ReadSequence(ctx, n)
	if err != nil {
		return err
	}
	if err := countsort.Validate(values, s.cfg.MaxValue); err != nil {
		return fmt.Errorf("validate input: %w", err)
	}

	if err := WriteSequence(s.out, LabelUnsorted, values); err != nil {
		return err
	}
	start := time.Now()
	if err := countsort.Sort(values); err != nil {
		return fmt.Errorf("sort: %w", err)
	}
	s.logger.Debug("sequence sorted",
		zap.Int("elements", len(values)),
		zap.Int64("max_value", values[len(values)-1]),
		zap.Duration("duration", time.Since(start)),
	)
	return WriteSequence(s.out, LabelSorted, values)
}

// ReadSequence reads n whitespace-separated integers.
func (s *Session) ReadSequence(ctx context.Context, n int64) ([]int64, error) {
	values := make([]int64, 0, min(n, preallocLimit))
	for i := int64(0); i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("read elements: %w", err)
		}
		v, err := s.readInt(fmt.Sprintf("element %d", i))
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func (s *Session) readInt(field string) (int64, error) {
	if !s.scanner.Scan() {
		err := s.scanner.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return 0, &ParseError{Field: field, Err: err}
	}
	token := s.scanner.Text()
	v, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			err = numErr.Err
		}
		return 0, &ParseError{Field: field, Token: token, Err: err}
	}
	return v, nil
}

// WriteSequence writes label followed by each value and a trailing space, then
// a newline.
func WriteSequence(w io.Writer, label string, values []int64) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(label); err != nil {
		return fmt.Errorf("write sequence: %w", err)
	}
	var num [20]byte
	for _, v := range values {
		if _, err := bw.Write(strconv.AppendInt(num[:0], v, 10)); err != nil {
			return fmt.Errorf("write sequence: %w", err)
		}
		if err := bw.WriteByte(' '); err != nil {
			return fmt.Errorf("write sequence: %w", err)
		}
	}
	if err := bw.WriteByte('\n'); err != nil {
		return fmt.Errorf("write sequence: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush sequence: %w", err)
	}
	return nil
}
