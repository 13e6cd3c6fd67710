package table

import (
	"context"
	"fmt"
)

// RowFunc computes a value from the cells of a row.
//
// It is typically backed by an expression evaluator. A returned error aborts
// the read that requested the value.
type RowFunc func(ctx context.Context, row []any) (any, error)

// RowPredicate decides whether a row belongs to some subset.
type RowPredicate func(ctx context.Context, row []any) (bool, error)

// DerivedColumn pairs column metadata with the function computing it.
type DerivedColumn struct {
	Info ColumnInfo
	Func RowFunc
}

// DerivedTable appends computed columns to a base table.
//
// Values are computed lazily when a row is read; nothing is precomputed.
type DerivedTable struct {
	*Wrapper
	derived []DerivedColumn
	nbase   int
}

// NewDerivedTable returns base extended by the given computed columns.
func NewDerivedTable(base Table, cols ...DerivedColumn) *DerivedTable {
	return &DerivedTable{Wrapper: NewWrapper(base), derived: cols, nbase: base.ColumnCount()}
}

func (t *DerivedTable) ColumnCount() int { return t.nbase + len(t.derived) }

func (t *DerivedTable) ColumnInfo(i int) ColumnInfo {
	if i < t.nbase {
		return t.Base.ColumnInfo(i)
	}
	return t.derived[i-t.nbase].Info
}

func (t *DerivedTable) extend(ctx context.Context, base []any) ([]any, error) {
	row := make([]any, t.nbase+len(t.derived))
	copy(row, base)
	for i, d := range t.derived {
		v, err := d.Func(ctx, base)
		if err != nil {
			return nil, fmt.Errorf("evaluating column %q: %w", d.Info.Name, err)
		}
		row[t.nbase+i] = v
	}
	return row, nil
}

func (t *DerivedTable) RowSequence(ctx context.Context) (RowSequence, error) {
	seq, err := t.Base.RowSequence(ctx)
	if err != nil {
		return nil, err
	}
	return &derivedSequence{WrapperSequence: WrapperSequence{Base: seq}, ctx: ctx, t: t}, nil
}

func (t *DerivedTable) Cell(ctx context.Context, row int64, col int) (any, error) {
	if col < t.nbase {
		return t.Base.Cell(ctx, row, col)
	}
	r, err := t.Row(ctx, row)
	if err != nil {
		return nil, err
	}
	return r[col], nil
}

func (t *DerivedTable) Row(ctx context.Context, row int64) ([]any, error) {
	base, err := t.Base.Row(ctx, row)
	if err != nil {
		return nil, err
	}
	return t.extend(ctx, base)
}

type derivedSequence struct {
	WrapperSequence
	ctx context.Context
	t   *DerivedTable
	row []any
}

func (s *derivedSequence) Next() (bool, error) {
	s.row = nil
	return s.Base.Next()
}

func (s *derivedSequence) Row() ([]any, error) {
	if s.row != nil {
		return s.row, nil
	}
	base, err := s.Base.Row()
	if err != nil {
		return nil, err
	}
	row, err := s.t.extend(s.ctx, base)
	if err != nil {
		return nil, err
	}
	s.row = row
	return row, nil
}

func (s *derivedSequence) Cell(col int) (any, error) {
	if col < s.t.nbase {
		return s.Base.Cell(col)
	}
	row, err := s.Row()
	if err != nil {
		return nil, err
	}
	return row[col], nil
}

// ColumnPermuteTable presents a selection of base columns in a given order.
// Columns may be masked out or repeated.
type ColumnPermuteTable struct {
	*Wrapper
	index []int
}

// NewColumnPermuteTable returns a view of base containing the columns
// listed in index.
func NewColumnPermuteTable(base Table, index []int) (*ColumnPermuteTable, error) {
	n := base.ColumnCount()
	for _, ic := range index {
		if ic < 0 || ic >= n {
			return nil, &ErrColumnIndex{Column: ic, Count: n}
		}
	}
	return &ColumnPermuteTable{Wrapper: NewWrapper(base), index: index}, nil
}

func (t *ColumnPermuteTable) ColumnCount() int { return len(t.index) }

func (t *ColumnPermuteTable) ColumnInfo(i int) ColumnInfo { return t.Base.ColumnInfo(t.index[i]) }

func (t *ColumnPermuteTable) permute(base []any) []any {
	row := make([]any, len(t.index))
	for i, ic := range t.index {
		row[i] = base[ic]
	}
	return row
}

func (t *ColumnPermuteTable) RowSequence(ctx context.Context) (RowSequence, error) {
	seq, err := t.Base.RowSequence(ctx)
	if err != nil {
		return nil, err
	}
	return &permuteSequence{WrapperSequence: WrapperSequence{Base: seq}, t: t}, nil
}

func (t *ColumnPermuteTable) Cell(ctx context.Context, row int64, col int) (any, error) {
	return t.Base.Cell(ctx, row, t.index[col])
}

func (t *ColumnPermuteTable) Row(ctx context.Context, row int64) ([]any, error) {
	base, err := t.Base.Row(ctx, row)
	if err != nil {
		return nil, err
	}
	return t.permute(base), nil
}

type permuteSequence struct {
	WrapperSequence
	t *ColumnPermuteTable
}

func (s *permuteSequence) Cell(col int) (any, error) { return s.Base.Cell(s.t.index[col]) }

func (s *permuteSequence) Row() ([]any, error) {
	base, err := s.Base.Row()
	if err != nil {
		return nil, err
	}
	return s.t.permute(base), nil
}
