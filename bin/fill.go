package bin

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/hupe1980/startable/table"
)

// FillOptions configures Fill.
type FillOptions struct {
	// WeightColumn is the index of the weight column, or -1 for unit weights.
	WeightColumn int
	// Subsets decide per row which subsets a datum counts towards. An empty
	// list means a single subset containing every row.
	Subsets []table.RowPredicate
}

// Fill reads t sequentially and submits the value in column valueCol of
// every row. Non-numeric and null values and weights are ignored. It returns
// the number of rows read.
func Fill(ctx context.Context, data BinnedData, t table.Table, valueCol int, optFns ...func(o *FillOptions)) (int64, error) {
	opts := FillOptions{WeightColumn: -1}
	for _, fn := range optFns {
		fn(&opts)
	}
	nset := data.SetCount()
	if len(opts.Subsets) > 0 && len(opts.Subsets) != nset {
		return 0, fmt.Errorf("bin: %d subset predicates for %d subsets", len(opts.Subsets), nset)
	}
	ncol := t.ColumnCount()
	if valueCol < 0 || valueCol >= ncol {
		return 0, &table.ErrColumnIndex{Column: valueCol, Count: ncol}
	}
	if opts.WeightColumn >= ncol {
		return 0, &table.ErrColumnIndex{Column: opts.WeightColumn, Count: ncol}
	}

	seq, err := t.RowSequence(ctx)
	if err != nil {
		return 0, err
	}
	defer seq.Close()

	sets := make([]bool, nset)
	if len(opts.Subsets) == 0 {
		for i := range sets {
			sets[i] = true
		}
	}
	var n int64
	for {
		ok, err := seq.Next()
		if err != nil {
			return n, err
		}
		if !ok {
			break
		}
		row, err := seq.Row()
		if err != nil {
			return n, table.NewRowError(n, err)
		}
		n++
		value, ok := table.AsFloat64(row[valueCol])
		if !ok {
			continue
		}
		weight := 1.0
		if opts.WeightColumn >= 0 {
			if weight, ok = table.AsFloat64(row[opts.WeightColumn]); !ok {
				continue
			}
		}
		for i, pred := range opts.Subsets {
			in, err := pred(ctx, row)
			if err != nil {
				return n, table.NewRowError(n-1, err)
			}
			sets[i] = in
		}
		if err := data.Submit(value, weight, sets); err != nil {
			return n, err
		}
	}
	return n, seq.Close()
}

// ToTable exports the bins of data as a random-access table with columns
// LOW, HIGH and one count column per subset. Count columns are Int64 when
// every submitted weight was integral and Float64 otherwise.
// names supplies subset column names; missing names default to COUNT_<i>.
func ToTable(data BinnedData, includeEmpty bool, names ...string) (*table.MemoryTable, error) {
	nset := data.SetCount()
	integral := data.IsInteger()
	countKind := table.KindFloat64
	if integral {
		countKind = table.KindInt64
	}
	cols := []table.ColumnInfo{
		{Name: "LOW", Kind: table.KindFloat64, Description: "Bin lower bound"},
		{Name: "HIGH", Kind: table.KindFloat64, Description: "Bin upper bound"},
	}
	for i := 0; i < nset; i++ {
		name := "COUNT_" + strconv.Itoa(i)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		cols = append(cols, table.ColumnInfo{Name: name, Kind: countKind, Description: "Weighted bin count"})
	}

	var rows [][]any
	for b := range data.Bins(includeEmpty) {
		row := make([]any, 0, len(cols))
		row = append(row, b.Low, b.High)
		for i := 0; i < nset; i++ {
			c := b.WeightedCount(i)
			if integral {
				row = append(row, int64(math.Round(c)))
			} else {
				row = append(row, c)
			}
		}
		rows = append(rows, row)
	}
	return table.NewMemoryTable("histogram", cols, rows)
}
