package table

import "context"

// Wrapper delegates every Table method to a base table.
//
// Embed Wrapper in a struct and override the methods that differ.
type Wrapper struct {
	Base Table
}

// NewWrapper returns a wrapper around base.
func NewWrapper(base Table) *Wrapper {
	return &Wrapper{Base: base}
}

func (w *Wrapper) Name() string                { return w.Base.Name() }
func (w *Wrapper) ColumnCount() int            { return w.Base.ColumnCount() }
func (w *Wrapper) ColumnInfo(i int) ColumnInfo { return w.Base.ColumnInfo(i) }
func (w *Wrapper) Params() []Param             { return w.Base.Params() }
func (w *Wrapper) RowCount() int64             { return w.Base.RowCount() }
func (w *Wrapper) IsRandom() bool              { return w.Base.IsRandom() }
func (w *Wrapper) Close() error                { return w.Base.Close() }

func (w *Wrapper) RowSequence(ctx context.Context) (RowSequence, error) {
	return w.Base.RowSequence(ctx)
}

func (w *Wrapper) Cell(ctx context.Context, row int64, col int) (any, error) {
	return w.Base.Cell(ctx, row, col)
}

func (w *Wrapper) Row(ctx context.Context, row int64) ([]any, error) {
	return w.Base.Row(ctx, row)
}

// WrapperSequence delegates every RowSequence method to a base cursor.
type WrapperSequence struct {
	Base RowSequence
}

func (w *WrapperSequence) Next() (bool, error)       { return w.Base.Next() }
func (w *WrapperSequence) Cell(col int) (any, error) { return w.Base.Cell(col) }
func (w *WrapperSequence) Row() ([]any, error)       { return w.Base.Row() }
func (w *WrapperSequence) Close() error              { return w.Base.Close() }

// MetaTable overrides the column metadata of a base table without touching
// its data. The replacement columns must match the base kinds and count.
type MetaTable struct {
	*Wrapper
	name   string
	cols   []ColumnInfo
	params []Param
}

// WithMetadata returns a view of base whose name, columns and params come
// from the given values. Nil params keep the base params.
func WithMetadata(base Table, name string, cols []ColumnInfo, params []Param) (*MetaTable, error) {
	if len(cols) != base.ColumnCount() {
		return nil, &ErrRowArity{Expected: base.ColumnCount(), Actual: len(cols)}
	}
	if params == nil {
		params = base.Params()
	}
	return &MetaTable{Wrapper: NewWrapper(base), name: name, cols: cols, params: params}, nil
}

func (t *MetaTable) Name() string                { return t.name }
func (t *MetaTable) ColumnInfo(i int) ColumnInfo { return t.cols[i] }
func (t *MetaTable) Params() []Param             { return t.params }
