package table

import (
	"context"
	"errors"
	"fmt"
)

// ConcatTable appends the rows of several tables with compatible columns.
//
// Column metadata comes from the first table. Every input must have the same
// column count and the same kind in each column.
type ConcatTable struct {
	tables []Table
	// offsets[i] is the first concatenated row index of tables[i].
	offsets []int64
	nrow    int64
	random  bool
}

// NewConcatTable concatenates tables vertically.
func NewConcatTable(tables ...Table) (*ConcatTable, error) {
	if len(tables) == 0 {
		return nil, errors.New("table: concatenation of no tables")
	}
	first := tables[0]
	c := &ConcatTable{tables: tables, random: true}
	var total int64
	for it, t := range tables {
		if t.ColumnCount() != first.ColumnCount() {
			return nil, fmt.Errorf("table: concat input %d has %d columns, want %d", it, t.ColumnCount(), first.ColumnCount())
		}
		for ic := 0; ic < t.ColumnCount(); ic++ {
			if got, want := t.ColumnInfo(ic).Kind, first.ColumnInfo(ic).Kind; got != want {
				return nil, fmt.Errorf("table: concat input %d column %d is %s, want %s", it, ic, got, want)
			}
		}
		c.offsets = append(c.offsets, total)
		n := t.RowCount()
		if n < 0 || total < 0 {
			total = UnknownRowCount
		} else {
			total += n
		}
		c.random = c.random && t.IsRandom()
	}
	c.nrow = total
	c.random = c.random && total >= 0
	return c, nil
}

func (c *ConcatTable) Name() string                { return c.tables[0].Name() }
func (c *ConcatTable) ColumnCount() int            { return c.tables[0].ColumnCount() }
func (c *ConcatTable) ColumnInfo(i int) ColumnInfo { return c.tables[0].ColumnInfo(i) }
func (c *ConcatTable) Params() []Param             { return c.tables[0].Params() }
func (c *ConcatTable) RowCount() int64             { return c.nrow }
func (c *ConcatTable) IsRandom() bool              { return c.random }

func (c *ConcatTable) Close() error {
	var errs []error
	for _, t := range c.tables {
		errs = append(errs, t.Close())
	}
	return errors.Join(errs...)
}

func (c *ConcatTable) locate(row int64) (Table, int64, error) {
	if !c.random {
		return nil, 0, ErrNotRandom
	}
	if err := CheckRowIndex(row, c.nrow); err != nil {
		return nil, 0, err
	}
	for i := len(c.tables) - 1; i >= 0; i-- {
		if row >= c.offsets[i] {
			return c.tables[i], row - c.offsets[i], nil
		}
	}
	return nil, 0, &ErrRowIndex{Row: row, Count: c.nrow}
}

func (c *ConcatTable) Cell(ctx context.Context, row int64, col int) (any, error) {
	t, irow, err := c.locate(row)
	if err != nil {
		return nil, err
	}
	return t.Cell(ctx, irow, col)
}

func (c *ConcatTable) Row(ctx context.Context, row int64) ([]any, error) {
	t, irow, err := c.locate(row)
	if err != nil {
		return nil, err
	}
	return t.Row(ctx, irow)
}

func (c *ConcatTable) RowSequence(ctx context.Context) (RowSequence, error) {
	return &concatSequence{ctx: ctx, c: c, it: -1}, nil
}

// concatSequence opens one input cursor at a time.
type concatSequence struct {
	ctx context.Context
	c   *ConcatTable
	it  int
	cur RowSequence
	has bool
}

func (s *concatSequence) Next() (bool, error) {
	s.has = false
	for {
		if s.cur == nil {
			if s.it+1 >= len(s.c.tables) {
				return false, nil
			}
			s.it++
			seq, err := s.c.tables[s.it].RowSequence(s.ctx)
			if err != nil {
				return false, err
			}
			s.cur = seq
		}
		ok, err := s.cur.Next()
		if err != nil {
			return false, err
		}
		if ok {
			s.has = true
			return true, nil
		}
		err = s.cur.Close()
		s.cur = nil
		if err != nil {
			return false, err
		}
	}
}

func (s *concatSequence) Cell(col int) (any, error) {
	if !s.has {
		return nil, ErrNoRow
	}
	return s.cur.Cell(col)
}

func (s *concatSequence) Row() ([]any, error) {
	if !s.has {
		return nil, ErrNoRow
	}
	return s.cur.Row()
}

func (s *concatSequence) Close() error {
	s.has = false
	s.it = len(s.c.tables)
	if s.cur == nil {
		return nil
	}
	err := s.cur.Close()
	s.cur = nil
	return err
}
