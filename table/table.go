// Package table defines the streaming and random-access table model.
//
// A Table is an ordered sequence of rows paired with a fixed list of column
// descriptors. Every table supports sequential access through RowSequence;
// tables reporting IsRandom also support addressing any row by index.
//
// Tables are safe for multiple independent cursors. A single cursor must not
// be shared between goroutines.
package table

import (
	"context"
)

// UnknownRowCount is returned by RowCount when the number of rows is not
// known in advance.
const UnknownRowCount int64 = -1

// RowSequence is a forward-only cursor over the rows of a table.
//
// Next must be called before the first row is available. After Next returns
// false there is no current row. Close releases any held resources and is
// idempotent; it must be called on every exit path.
type RowSequence interface {
	// Next advances to the next row. It returns false at end of data and
	// an error on malformed input, I/O failure or cancellation.
	Next() (bool, error)
	// Cell returns the value of one column in the current row.
	Cell(col int) (any, error)
	// Row returns the values of the current row.
	// The returned slice must not be retained past the next call to Next.
	Row() ([]any, error)
	// Close releases the cursor.
	Close() error
}

// Table is the table abstraction: column metadata plus sequential or random
// row access.
type Table interface {
	// Name returns a human-readable table name, possibly empty.
	Name() string
	// ColumnCount returns the number of columns.
	ColumnCount() int
	// ColumnInfo returns the metadata of column i.
	ColumnInfo(i int) ColumnInfo
	// Params returns table parameters.
	Params() []Param
	// RowCount returns the number of rows, or UnknownRowCount.
	RowCount() int64
	// IsRandom reports whether Cell and Row are supported.
	IsRandom() bool
	// RowSequence opens a new independent cursor.
	RowSequence(ctx context.Context) (RowSequence, error)
	// Cell returns one value by row and column index.
	Cell(ctx context.Context, row int64, col int) (any, error)
	// Row returns the values of a row by index.
	Row(ctx context.Context, row int64) ([]any, error)
	// Close releases resources held by the table.
	Close() error
}

// Columns returns the column metadata of t.
func Columns(t Table) []ColumnInfo {
	cols := make([]ColumnInfo, t.ColumnCount())
	for i := range cols {
		cols[i] = t.ColumnInfo(i)
	}
	return cols
}

// ColumnIndex returns the index of the named column or ErrColumnNotFound.
// Names are compared case-sensitively.
func ColumnIndex(t Table, name string) (int, error) {
	for i := 0; i < t.ColumnCount(); i++ {
		if t.ColumnInfo(i).Name == name {
			return i, nil
		}
	}
	return -1, ErrColumnNotFound
}

// ParamByName returns the named parameter of t.
func ParamByName(t Table, name string) (Param, bool) {
	for _, p := range t.Params() {
		if p.Info.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// CheckRow verifies that a row has exactly ncol cells.
func CheckRow(row []any, ncol int) error {
	if len(row) != ncol {
		return &ErrRowArity{Expected: ncol, Actual: len(row)}
	}
	return nil
}

// CheckRowIndex validates a random-access row index against a known count.
func CheckRowIndex(row, count int64) error {
	if row < 0 || (count >= 0 && row >= count) {
		return &ErrRowIndex{Row: row, Count: count}
	}
	return nil
}

// ReadAll reads every row of t into memory.
func ReadAll(ctx context.Context, t Table) (rows [][]any, err error) {
	seq, err := t.RowSequence(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := seq.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	ncol := t.ColumnCount()
	for {
		ok, err := seq.Next()
		if err != nil {
			return rows, err
		}
		if !ok {
			return rows, nil
		}
		row, err := seq.Row()
		if err != nil {
			return rows, err
		}
		if err := CheckRow(row, ncol); err != nil {
			return rows, err
		}
		rows = append(rows, append([]any(nil), row...))
	}
}

// Count performs a full sequential pass and returns the number of rows.
func Count(ctx context.Context, t Table) (n int64, err error) {
	if nr := t.RowCount(); nr >= 0 {
		return nr, nil
	}
	seq, err := t.RowSequence(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := seq.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for {
		ok, err := seq.Next()
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		n++
	}
}

// Random returns a random-access view of t. Random tables are returned
// unchanged; sequential tables are read fully into a MemoryTable.
func Random(ctx context.Context, t Table) (Table, error) {
	if t.IsRandom() {
		return t, nil
	}
	store := NewRowStore()
	if err := Copy(ctx, t, store); err != nil {
		return nil, err
	}
	return store.Table(), nil
}
