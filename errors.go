package startable

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/startable/arrayjoin"
	"github.com/hupe1980/startable/blobstore"
	"github.com/hupe1980/startable/expr"
	"github.com/hupe1980/startable/fitsplus"
	"github.com/hupe1980/startable/table"
	"github.com/hupe1980/startable/tableio"
)

var (
	// ErrFormat matches every malformed or inconsistent input.
	ErrFormat = table.ErrFormat
	// ErrCancelled matches interrupted or context-cancelled reads.
	ErrCancelled = table.ErrCancelled
	// ErrNotRandom is returned by random access to sequential tables.
	ErrNotRandom = table.ErrNotRandom
	// ErrSingleUse is returned when a one-shot source is read twice.
	ErrSingleUse = table.ErrSingleUse
	// ErrNotFound is returned when a location names no blob.
	ErrNotFound = blobstore.ErrNotFound
	// ErrUnknownFormat is returned when no builder reads a location.
	ErrUnknownFormat = tableio.ErrUnknownFormat
	// ErrNoStore is returned for locations no store can serve.
	ErrNoStore = tableio.ErrNoStore
	// ErrNotFitsPlus is returned for fits-plus reads of other input.
	ErrNotFitsPlus = fitsplus.ErrNotFitsPlus
	// ErrNoArrayTables is returned by ArrayJoin when no row has data.
	ErrNoArrayTables = arrayjoin.ErrNoArrayTables
	// ErrExpression is returned for expressions that do not compile.
	ErrExpression = expr.ErrCompile
	// ErrColumnNotFound is returned for unknown column names.
	ErrColumnNotFound = table.ErrColumnNotFound
)

// ErrOpen reports a failure to open a location.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrOpen struct {
	Location string
	cause    error
}

func (e *ErrOpen) Error() string {
	return fmt.Sprintf("open %s: %v", e.Location, e.cause)
}

func (e *ErrOpen) Unwrap() error { return e.cause }

// ErrColumn reports a column name that is not present in a table.
type ErrColumn struct {
	Table  string
	Column string
}

func (e *ErrColumn) Error() string {
	return fmt.Sprintf("table %q has no column %q", e.Table, e.Column)
}

func (e *ErrColumn) Unwrap() error { return ErrColumnNotFound }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Cancellation unification.
	if !errors.Is(err, ErrCancelled) &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return err
}
