package table_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hupe1980/startable/table"
	"github.com/hupe1980/startable/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func abTable(t *testing.T) *table.MemoryTable {
	t.Helper()
	return testutil.MustTable(t,
		[]table.ColumnInfo{
			table.NewColumn("a", table.KindInt32),
			table.NewColumn("b", table.KindString),
		},
		[][]any{
			{int32(1), "one"},
			{int32(2), "two"},
			{int32(3), nil},
			{int32(4), "four"},
		},
	)
}

func TestMemoryTable_RandomMatchesSequence(t *testing.T) {
	ctx := context.Background()
	tab := abTable(t)

	rows := testutil.Rows(t, tab)
	require.Len(t, rows, int(tab.RowCount()))

	for i, want := range rows {
		got, err := tab.Row(ctx, int64(i))
		require.NoError(t, err)
		assert.Equal(t, want, got)

		cell, err := tab.Cell(ctx, int64(i), 1)
		require.NoError(t, err)
		assert.Equal(t, want[1], cell)
	}
}

func TestMemoryTable_IndexErrors(t *testing.T) {
	ctx := context.Background()
	tab := abTable(t)

	_, err := tab.Row(ctx, 4)
	var rowErr *table.ErrRowIndex
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, int64(4), rowErr.Row)

	_, err = tab.Cell(ctx, 0, 2)
	var colErr *table.ErrColumnIndex
	require.ErrorAs(t, err, &colErr)
}

func TestNewMemoryTable_Arity(t *testing.T) {
	_, err := table.NewMemoryTable("bad", []table.ColumnInfo{table.NewColumn("x", table.KindInt64)}, [][]any{{int64(1), int64(2)}})
	var arity *table.ErrRowArity
	require.ErrorAs(t, err, &arity)
	assert.Equal(t, 1, arity.Expected)
	assert.Equal(t, 2, arity.Actual)
}

func TestRowSequence_NoCurrentRow(t *testing.T) {
	seq, err := abTable(t).RowSequence(context.Background())
	require.NoError(t, err)
	defer seq.Close()

	_, err = seq.Row()
	assert.ErrorIs(t, err, table.ErrNoRow)

	for {
		ok, err := seq.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
	}
	_, err = seq.Cell(0)
	assert.ErrorIs(t, err, table.ErrNoRow)
}

func TestCount(t *testing.T) {
	ctx := context.Background()
	tab := abTable(t)

	n, err := table.Count(ctx, testutil.Streamed(tab))
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	n, err = table.Count(ctx, tab)
	require.NoError(t, err)
	assert.Equal(t, tab.RowCount(), n)
}

func TestRandom_MaterializesSequential(t *testing.T) {
	ctx := context.Background()
	base := abTable(t)
	seq := testutil.Streamed(base)
	require.False(t, seq.IsRandom())

	r, err := table.Random(ctx, seq)
	require.NoError(t, err)
	assert.True(t, r.IsRandom())
	assert.Equal(t, int64(4), r.RowCount())

	row, err := r.Row(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []any{int32(3), nil}, row)
	assert.Equal(t, 1, seq.Opened())

	same, err := table.Random(ctx, base)
	require.NoError(t, err)
	assert.Same(t, base, same)
}

func TestCopy_ClosesCursorOnError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	bad := testutil.FailAt(abTable(t), 2, boom)

	store := table.NewRowStore()
	err := table.Copy(ctx, bad, store)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, bad.Closed())
}

func TestSequential_NotRandom(t *testing.T) {
	seq := testutil.Sequential(abTable(t))
	_, err := seq.Row(context.Background(), 0)
	assert.ErrorIs(t, err, table.ErrNotRandom)
	assert.Equal(t, int64(4), seq.RowCount())
}

func TestWithMetadata(t *testing.T) {
	base := abTable(t)
	cols := []table.ColumnInfo{
		base.ColumnInfo(0).WithName("id"),
		base.ColumnInfo(1).WithName("label"),
	}
	mt, err := table.WithMetadata(base, "renamed", cols, nil)
	require.NoError(t, err)

	assert.Equal(t, "renamed", mt.Name())
	assert.Equal(t, "label", mt.ColumnInfo(1).Name)
	assert.Equal(t, "b", base.ColumnInfo(1).Name)
	assert.Equal(t, testutil.Rows(t, base), testutil.Rows(t, mt))

	_, err = table.WithMetadata(base, "x", cols[:1], nil)
	assert.Error(t, err)
}

func TestColumnIndex(t *testing.T) {
	tab := abTable(t)
	ic, err := table.ColumnIndex(tab, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, ic)

	_, err = table.ColumnIndex(tab, "B")
	assert.ErrorIs(t, err, table.ErrColumnNotFound)
}

func TestJoinTable(t *testing.T) {
	ctx := context.Background()
	left := abTable(t)
	right := testutil.FloatTable(t, "a", 0.5, 1.5, 2.5, 3.5)

	j, err := table.NewJoinTable(
		[]table.Table{left, right},
		[]table.FixAction{table.NoFix, {Mode: table.FixDuplicates, Suffix: "_2"}},
	)
	require.NoError(t, err)

	require.Equal(t, 3, j.ColumnCount())
	assert.Equal(t, "a", j.ColumnInfo(0).Name)
	assert.Equal(t, "b", j.ColumnInfo(1).Name)
	assert.Equal(t, "a_2", j.ColumnInfo(2).Name)
	assert.Equal(t, int64(4), j.RowCount())
	assert.True(t, j.IsRandom())

	rows := testutil.Rows(t, j)
	require.Len(t, rows, 4)
	assert.Equal(t, []any{int32(2), "two", 1.5}, rows[1])

	v, err := j.Cell(ctx, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)
}

func TestJoinTable_RowCountMismatch(t *testing.T) {
	left := abTable(t)
	right := testutil.FloatTable(t, "x", 1, 2)

	_, err := table.NewJoinTable([]table.Table{left, right}, nil)
	assert.Error(t, err)
}

func TestJoinTable_UnknownLengthMismatch(t *testing.T) {
	left := abTable(t)
	right := testutil.Streamed(testutil.FloatTable(t, "x", 1, 2))

	j, err := table.NewJoinTable([]table.Table{left, right}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(4), j.RowCount())
	assert.False(t, j.IsRandom())

	_, err = table.ReadAll(context.Background(), j)
	assert.Error(t, err)
}

func TestRowSubsetTable(t *testing.T) {
	ctx := context.Background()
	base := abTable(t)
	mask := roaring64.BitmapOf(1, 3)
	sub := table.NewRowSubsetTable(base, mask)

	assert.Equal(t, int64(2), sub.RowCount())
	rows := testutil.Rows(t, sub)
	assert.Equal(t, [][]any{{int32(2), "two"}, {int32(4), "four"}}, rows)

	row, err := sub.Row(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, rows[1], row)

	_, err = sub.Row(ctx, 2)
	var rowErr *table.ErrRowIndex
	assert.ErrorAs(t, err, &rowErr)

	seqSub := table.NewRowSubsetTable(testutil.Sequential(base), mask)
	_, err = seqSub.Row(ctx, 0)
	assert.ErrorIs(t, err, table.ErrNotRandom)
	assert.Equal(t, rows, testutil.Rows(t, seqSub))
}

func TestConcatTable(t *testing.T) {
	ctx := context.Background()
	first := testutil.FloatTable(t, "x", 1, 2)
	second := testutil.FloatTable(t, "y", 3)
	third := testutil.FloatTable(t, "z", 4, 5)

	c, err := table.NewConcatTable(first, second, third)
	require.NoError(t, err)
	assert.Equal(t, int64(5), c.RowCount())
	assert.Equal(t, "x", c.ColumnInfo(0).Name)

	rows := testutil.Rows(t, c)
	assert.Equal(t, [][]any{{1.0}, {2.0}, {3.0}, {4.0}, {5.0}}, rows)

	v, err := c.Cell(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	_, err = table.NewConcatTable(first, abTable(t))
	assert.Error(t, err)

	streamed, err := table.NewConcatTable(first, testutil.Streamed(second))
	require.NoError(t, err)
	assert.Equal(t, table.UnknownRowCount, streamed.RowCount())
	assert.False(t, streamed.IsRandom())
}

func TestDerivedTable(t *testing.T) {
	ctx := context.Background()
	base := abTable(t)
	double := table.DerivedColumn{
		Info: table.NewColumn("a2", table.KindInt64),
		Func: func(_ context.Context, row []any) (any, error) {
			a, _ := table.AsInt64(row[0])
			return a * 2, nil
		},
	}
	d := table.NewDerivedTable(base, double)

	require.Equal(t, 3, d.ColumnCount())
	assert.Equal(t, "a2", d.ColumnInfo(2).Name)

	rows := testutil.Rows(t, d)
	assert.Equal(t, []any{int32(3), nil, int64(6)}, rows[2])

	v, err := d.Cell(ctx, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(8), v)
}

func TestDerivedTable_FuncError(t *testing.T) {
	boom := errors.New("boom")
	d := table.NewDerivedTable(abTable(t), table.DerivedColumn{
		Info: table.NewColumn("bad", table.KindInt64),
		Func: func(context.Context, []any) (any, error) { return nil, boom },
	})
	_, err := table.ReadAll(context.Background(), d)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `"bad"`)
}

func TestColumnPermuteTable(t *testing.T) {
	ctx := context.Background()
	p, err := table.NewColumnPermuteTable(abTable(t), []int{1, 0, 1})
	require.NoError(t, err)

	require.Equal(t, 3, p.ColumnCount())
	assert.Equal(t, "b", p.ColumnInfo(0).Name)

	rows := testutil.Rows(t, p)
	assert.Equal(t, []any{"one", int32(1), "one"}, rows[0])

	v, err := p.Cell(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)

	_, err = table.NewColumnPermuteTable(abTable(t), []int{5})
	assert.Error(t, err)
}

func TestSingleUseTable(t *testing.T) {
	ctx := context.Background()
	base := abTable(t)
	su := table.NewSingleUseTable("once", table.Columns(base), nil, table.UnknownRowCount,
		func(ctx context.Context) (table.RowSequence, error) { return base.RowSequence(ctx) }, nil)

	assert.False(t, su.IsRandom())
	rows := testutil.Rows(t, su)
	assert.Len(t, rows, 4)
	assert.True(t, su.Consumed())

	_, err := su.RowSequence(ctx)
	assert.ErrorIs(t, err, table.ErrSingleUse)

	_, err = su.Cell(ctx, 0, 0)
	assert.ErrorIs(t, err, table.ErrNotRandom)
	assert.NoError(t, su.Close())
}

func TestFormatError(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := table.NewFormatError("FITS", "truncated header", cause)

	assert.ErrorIs(t, err, table.ErrFormat)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "FITS: truncated header: unexpected EOF", err.Error())

	f := table.Formatf("", "bad card %d", 3)
	assert.ErrorIs(t, f, table.ErrFormat)
	assert.Equal(t, "bad card 3", f.Error())
}

func TestRowError(t *testing.T) {
	err := table.NewRowError(7, io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "7")
}
