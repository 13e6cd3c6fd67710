package table

import (
	"context"
	"io"
	"sync/atomic"
)

// SequenceOpener opens the one cursor a single-use source can provide.
type SequenceOpener func(ctx context.Context) (RowSequence, error)

// SingleUseTable is a sequential table backed by a byte source that can be
// read only once, such as a network stream or a one-shot transfer.
//
// The first call to RowSequence succeeds; any further call fails with
// ErrSingleUse rather than reading from a shared, partially consumed stream.
type SingleUseTable struct {
	name   string
	cols   []ColumnInfo
	params []Param
	nrow   int64
	open   SequenceOpener
	closer io.Closer
	used   atomic.Bool
}

// NewSingleUseTable creates a single-use table. closer, if not nil, is
// closed by Close.
func NewSingleUseTable(name string, cols []ColumnInfo, params []Param, nrow int64, open SequenceOpener, closer io.Closer) *SingleUseTable {
	return &SingleUseTable{name: name, cols: cols, params: params, nrow: nrow, open: open, closer: closer}
}

func (t *SingleUseTable) Name() string                { return t.name }
func (t *SingleUseTable) ColumnCount() int            { return len(t.cols) }
func (t *SingleUseTable) ColumnInfo(i int) ColumnInfo { return t.cols[i] }
func (t *SingleUseTable) Params() []Param             { return t.params }
func (t *SingleUseTable) RowCount() int64             { return t.nrow }
func (t *SingleUseTable) IsRandom() bool              { return false }

// Consumed reports whether the single cursor has been handed out.
func (t *SingleUseTable) Consumed() bool { return t.used.Load() }

func (t *SingleUseTable) RowSequence(ctx context.Context) (RowSequence, error) {
	if t.used.Swap(true) {
		return nil, ErrSingleUse
	}
	return t.open(ctx)
}

func (t *SingleUseTable) Cell(context.Context, int64, int) (any, error) {
	return nil, ErrNotRandom
}

func (t *SingleUseTable) Row(context.Context, int64) ([]any, error) {
	return nil, ErrNotRandom
}

func (t *SingleUseTable) Close() error {
	if t.closer == nil {
		return nil
	}
	c := t.closer
	t.closer = nil
	return c.Close()
}
