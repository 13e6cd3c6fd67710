package table

import (
	"context"
	"errors"
	"fmt"
)

// FixAction determines how a joined table's column names are adjusted.
type FixAction struct {
	// Mode selects when Suffix is applied.
	Mode FixMode
	// Suffix is appended to affected column names.
	Suffix string
}

// FixMode selects which columns a FixAction renames.
type FixMode uint8

const (
	// FixNone leaves names unchanged.
	FixNone FixMode = iota
	// FixDuplicates renames columns whose name occurs in another input.
	FixDuplicates
	// FixAll renames every column.
	FixAll
)

// NoFix is the FixAction that leaves names unchanged.
var NoFix = FixAction{}

// JoinTable joins tables side by side: row i of the result is the
// concatenation of row i of every input.
//
// Inputs reporting a known row count must agree; inputs of unknown length
// are checked while iterating. The result is random only if every input is
// random.
type JoinTable struct {
	tables []Table
	cols   []ColumnInfo
	// owner maps a joined column to its table and column index.
	owner  [][2]int
	nrow   int64
	random bool
}

// NewJoinTable joins tables with one FixAction per table. fixes may be nil.
func NewJoinTable(tables []Table, fixes []FixAction) (*JoinTable, error) {
	if len(tables) == 0 {
		return nil, errors.New("table: join of no tables")
	}
	if fixes != nil && len(fixes) != len(tables) {
		return nil, fmt.Errorf("table: %d fix actions for %d tables", len(fixes), len(tables))
	}
	j := &JoinTable{tables: tables, nrow: UnknownRowCount, random: true}
	for _, t := range tables {
		if n := t.RowCount(); n >= 0 {
			if j.nrow >= 0 && n != j.nrow {
				return nil, fmt.Errorf("table: join row count mismatch: %d != %d", n, j.nrow)
			}
			j.nrow = n
		}
		j.random = j.random && t.IsRandom()
	}

	counts := make(map[string]int)
	for _, t := range tables {
		for ic := 0; ic < t.ColumnCount(); ic++ {
			counts[t.ColumnInfo(ic).Name]++
		}
	}
	for it, t := range tables {
		fix := NoFix
		if fixes != nil {
			fix = fixes[it]
		}
		for ic := 0; ic < t.ColumnCount(); ic++ {
			info := t.ColumnInfo(ic)
			rename := fix.Mode == FixAll || (fix.Mode == FixDuplicates && counts[info.Name] > 1)
			if rename {
				info = info.WithName(info.Name + fix.Suffix)
			}
			j.cols = append(j.cols, info)
			j.owner = append(j.owner, [2]int{it, ic})
		}
	}
	return j, nil
}

func (j *JoinTable) Name() string                { return j.tables[0].Name() }
func (j *JoinTable) ColumnCount() int            { return len(j.cols) }
func (j *JoinTable) ColumnInfo(i int) ColumnInfo { return j.cols[i] }
func (j *JoinTable) RowCount() int64             { return j.nrow }
func (j *JoinTable) IsRandom() bool              { return j.random }

func (j *JoinTable) Params() []Param {
	var params []Param
	for _, t := range j.tables {
		params = append(params, t.Params()...)
	}
	return params
}

func (j *JoinTable) Close() error {
	var errs []error
	for _, t := range j.tables {
		errs = append(errs, t.Close())
	}
	return errors.Join(errs...)
}

func (j *JoinTable) Cell(ctx context.Context, row int64, col int) (any, error) {
	if !j.random {
		return nil, ErrNotRandom
	}
	o := j.owner[col]
	return j.tables[o[0]].Cell(ctx, row, o[1])
}

func (j *JoinTable) Row(ctx context.Context, row int64) ([]any, error) {
	if !j.random {
		return nil, ErrNotRandom
	}
	out := make([]any, 0, len(j.cols))
	for _, t := range j.tables {
		r, err := t.Row(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, r...)
	}
	return out, nil
}

func (j *JoinTable) RowSequence(ctx context.Context) (RowSequence, error) {
	seqs := make([]RowSequence, 0, len(j.tables))
	for _, t := range j.tables {
		seq, err := t.RowSequence(ctx)
		if err != nil {
			for _, s := range seqs {
				_ = s.Close()
			}
			return nil, err
		}
		seqs = append(seqs, seq)
	}
	return &joinSequence{j: j, seqs: seqs}, nil
}

type joinSequence struct {
	j    *JoinTable
	seqs []RowSequence
	row  []any
	cur  bool
}

func (s *joinSequence) Next() (bool, error) {
	s.row = nil
	s.cur = false
	var more int
	for _, seq := range s.seqs {
		ok, err := seq.Next()
		if err != nil {
			return false, err
		}
		if ok {
			more++
		}
	}
	switch more {
	case 0:
		return false, nil
	case len(s.seqs):
		s.cur = true
		return true, nil
	default:
		return false, errors.New("table: joined tables have different lengths")
	}
}

func (s *joinSequence) Cell(col int) (any, error) {
	if !s.cur {
		return nil, ErrNoRow
	}
	o := s.j.owner[col]
	return s.seqs[o[0]].Cell(o[1])
}

func (s *joinSequence) Row() ([]any, error) {
	if !s.cur {
		return nil, ErrNoRow
	}
	if s.row != nil {
		return s.row, nil
	}
	row := make([]any, 0, len(s.j.cols))
	for _, seq := range s.seqs {
		r, err := seq.Row()
		if err != nil {
			return nil, err
		}
		row = append(row, r...)
	}
	s.row = row
	return row, nil
}

func (s *joinSequence) Close() error {
	var errs []error
	for _, seq := range s.seqs {
		errs = append(errs, seq.Close())
	}
	return errors.Join(errs...)
}
