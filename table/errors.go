package table

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat is the root of all "not the expected format / inconsistent
	// structure" failures. Format-sniffing callers test for it with
	// errors.Is and try the next handler.
	ErrFormat = errors.New("table format error")

	// ErrCancelled is returned by a cursor whose iteration was interrupted
	// on request. It is distinct from I/O failure.
	ErrCancelled = errors.New("table: operation cancelled")

	// ErrNotRandom is returned by random access methods of sequential tables.
	ErrNotRandom = errors.New("table: random access not supported")

	// ErrSingleUse is returned when a second cursor is requested from a
	// table backed by a one-shot byte source.
	ErrSingleUse = errors.New("table: single-use source already consumed")

	// ErrNoRow is returned when a cursor is read with no current row.
	ErrNoRow = errors.New("table: no current row")

	// ErrClosed is returned when a closed cursor or table is used.
	ErrClosed = errors.New("table: closed")

	// ErrColumnNotFound is returned when a column name is not present.
	ErrColumnNotFound = errors.New("table: column not found")
)

// FormatError describes malformed or inconsistent table data.
//
// It matches ErrFormat with errors.Is. The original underlying error (if
// any) can be accessed via errors.Unwrap.
type FormatError struct {
	Format string
	Msg    string
	cause  error
}

// NewFormatError returns a FormatError for the named format.
func NewFormatError(format, msg string, cause error) *FormatError {
	return &FormatError{Format: format, Msg: msg, cause: cause}
}

// Formatf returns a FormatError with a formatted message.
func Formatf(format, msg string, args ...any) *FormatError {
	return &FormatError{Format: format, Msg: fmt.Sprintf(msg, args...)}
}

func (e *FormatError) Error() string {
	s := e.Msg
	if e.Format != "" {
		s = e.Format + ": " + s
	}
	if e.cause != nil {
		s += ": " + e.cause.Error()
	}
	return s
}

func (e *FormatError) Unwrap() error { return e.cause }

// Is makes every FormatError match ErrFormat.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// ErrRowIndex indicates a row index outside the table.
type ErrRowIndex struct {
	Row   int64
	Count int64
}

func (e *ErrRowIndex) Error() string {
	return fmt.Sprintf("table: row index %d out of range [0,%d)", e.Row, e.Count)
}

// ErrColumnIndex indicates a column index outside the table.
type ErrColumnIndex struct {
	Column int
	Count  int
}

func (e *ErrColumnIndex) Error() string {
	return fmt.Sprintf("table: column index %d out of range [0,%d)", e.Column, e.Count)
}

// ErrRowArity indicates a row whose cell count differs from the column count.
type ErrRowArity struct {
	Expected int
	Actual   int
}

func (e *ErrRowArity) Error() string {
	return fmt.Sprintf("table: row arity mismatch: expected %d cells, got %d", e.Expected, e.Actual)
}

// RowError attaches a row index to a data fault discovered while reading.
type RowError struct {
	Row   int64
	cause error
}

// NewRowError wraps err with the index of the row being read.
func NewRowError(row int64, err error) *RowError {
	return &RowError{Row: row, cause: err}
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.cause)
}

func (e *RowError) Unwrap() error { return e.cause }
