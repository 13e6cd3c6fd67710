package table

import (
	"context"
	"errors"
	"fmt"
)

// Sink receives a table streamed row by row.
//
// AcceptMetadata is called exactly once before any row; EndRows is called
// once after the last row. The meta table passed to AcceptMetadata supplies
// column metadata only; its row data must not be read.
type Sink interface {
	AcceptMetadata(meta Table) error
	AcceptRow(row []any) error
	EndRows() error
}

// Copy streams t into sink. The cursor is closed on every exit path.
func Copy(ctx context.Context, t Table, sink Sink) (err error) {
	if err := sink.AcceptMetadata(t); err != nil {
		return err
	}
	seq, err := t.RowSequence(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := seq.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	ncol := t.ColumnCount()
	var irow int64
	for {
		ok, err := seq.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		row, err := seq.Row()
		if err != nil {
			return NewRowError(irow, err)
		}
		if err := CheckRow(row, ncol); err != nil {
			return NewRowError(irow, err)
		}
		if err := sink.AcceptRow(row); err != nil {
			return err
		}
		irow++
	}
	return sink.EndRows()
}

// RowStore is a Sink that buffers rows in memory and produces a
// random-access MemoryTable.
type RowStore struct {
	name   string
	cols   []ColumnInfo
	params []Param
	rows   [][]any
	ended  bool
}

// NewRowStore creates an empty row store.
func NewRowStore() *RowStore {
	return &RowStore{}
}

// AcceptMetadata implements Sink.
func (s *RowStore) AcceptMetadata(meta Table) error {
	if s.cols != nil {
		return errors.New("table: row store metadata already accepted")
	}
	s.name = meta.Name()
	s.cols = Columns(meta)
	s.params = meta.Params()
	if n := meta.RowCount(); n > 0 {
		s.rows = make([][]any, 0, n)
	}
	return nil
}

// AcceptRow implements Sink. The row is copied.
func (s *RowStore) AcceptRow(row []any) error {
	if s.cols == nil {
		return errors.New("table: row before metadata")
	}
	if s.ended {
		return errors.New("table: row after end of rows")
	}
	if err := CheckRow(row, len(s.cols)); err != nil {
		return err
	}
	s.rows = append(s.rows, append([]any(nil), row...))
	return nil
}

// EndRows implements Sink.
func (s *RowStore) EndRows() error {
	s.ended = true
	return nil
}

// Table returns the stored table. It must be called after EndRows.
func (s *RowStore) Table() *MemoryTable {
	return &MemoryTable{name: s.name, cols: s.cols, params: s.params, rows: s.rows}
}

// MemoryTable is a random-access table held in memory.
type MemoryTable struct {
	name   string
	cols   []ColumnInfo
	params []Param
	rows   [][]any
}

// NewMemoryTable creates a table from column metadata and rows.
// Every row must have exactly len(cols) cells.
func NewMemoryTable(name string, cols []ColumnInfo, rows [][]any, params ...Param) (*MemoryTable, error) {
	for i, row := range rows {
		if err := CheckRow(row, len(cols)); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return &MemoryTable{name: name, cols: cols, params: params, rows: rows}, nil
}

func (t *MemoryTable) Name() string                { return t.name }
func (t *MemoryTable) ColumnCount() int            { return len(t.cols) }
func (t *MemoryTable) ColumnInfo(i int) ColumnInfo { return t.cols[i] }
func (t *MemoryTable) Params() []Param             { return t.params }
func (t *MemoryTable) RowCount() int64             { return int64(len(t.rows)) }
func (t *MemoryTable) IsRandom() bool              { return true }
func (t *MemoryTable) Close() error                { return nil }

// RowSequence implements Table.
func (t *MemoryTable) RowSequence(ctx context.Context) (RowSequence, error) {
	return NewRandomRowSequence(ctx, t), nil
}

// Cell implements Table.
func (t *MemoryTable) Cell(_ context.Context, row int64, col int) (any, error) {
	if err := CheckRowIndex(row, int64(len(t.rows))); err != nil {
		return nil, err
	}
	if col < 0 || col >= len(t.cols) {
		return nil, &ErrColumnIndex{Column: col, Count: len(t.cols)}
	}
	return t.rows[row][col], nil
}

// Row implements Table.
func (t *MemoryTable) Row(_ context.Context, row int64) ([]any, error) {
	if err := CheckRowIndex(row, int64(len(t.rows))); err != nil {
		return nil, err
	}
	return t.rows[row], nil
}

// randomSequence is a cursor over a random-access table.
type randomSequence struct {
	ctx    context.Context
	t      Table
	nrow   int64
	irow   int64
	row    []any
	closed bool
}

// NewRandomRowSequence returns a cursor that walks a random-access table
// by index. The table's row count must be known.
func NewRandomRowSequence(ctx context.Context, t Table) RowSequence {
	return &randomSequence{ctx: ctx, t: t, nrow: t.RowCount(), irow: -1}
}

func (s *randomSequence) Next() (bool, error) {
	if s.closed {
		return false, ErrClosed
	}
	s.row = nil
	if s.irow+1 >= s.nrow {
		s.irow = s.nrow
		return false, nil
	}
	s.irow++
	return true, nil
}

func (s *randomSequence) Cell(col int) (any, error) {
	if s.irow < 0 || s.irow >= s.nrow {
		return nil, ErrNoRow
	}
	if s.row != nil {
		return s.row[col], nil
	}
	return s.t.Cell(s.ctx, s.irow, col)
}

func (s *randomSequence) Row() ([]any, error) {
	if s.irow < 0 || s.irow >= s.nrow {
		return nil, ErrNoRow
	}
	if s.row == nil {
		row, err := s.t.Row(s.ctx, s.irow)
		if err != nil {
			return nil, err
		}
		s.row = row
	}
	return s.row, nil
}

func (s *randomSequence) Close() error {
	s.closed = true
	s.row = nil
	return nil
}
