package fits

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/hupe1980/startable/table"
)

// Bintable is the decoded layout of a BINTABLE extension header.
type Bintable struct {
	header  *Header
	name    string
	cols    []*column
	rowSize int64
	nrow    int64
	// dataSize is the padded size of the data unit including the heap.
	dataSize int64
}

// ParseBintable interprets h as a BINTABLE extension header.
func ParseBintable(h *Header) (*Bintable, error) {
	if xt, _ := h.String("XTENSION"); xt != "BINTABLE" {
		return nil, table.Formatf(formatName, "HDU is not a BINTABLE extension (XTENSION=%q)", xt)
	}
	if bitpix, _ := h.Int("BITPIX"); bitpix != 8 {
		return nil, table.Formatf(formatName, "BINTABLE BITPIX must be 8, got %d", bitpix)
	}
	if naxis, _ := h.Int("NAXIS"); naxis != 2 {
		return nil, table.Formatf(formatName, "BINTABLE NAXIS must be 2, got %d", naxis)
	}
	rowSize, err := h.RequireInt("NAXIS1")
	if err != nil {
		return nil, err
	}
	nrow, err := h.RequireInt("NAXIS2")
	if err != nil {
		return nil, err
	}
	nfield, err := h.RequireInt("TFIELDS")
	if err != nil {
		return nil, err
	}
	dataSize, err := DataSize(h)
	if err != nil {
		return nil, err
	}
	b := &Bintable{header: h, rowSize: rowSize, nrow: nrow, dataSize: dataSize}
	b.name, _ = h.String("EXTNAME")

	offset := 0
	for i := 1; i <= int(nfield); i++ {
		c, err := newColumn(h, i, offset)
		if err != nil {
			return nil, err
		}
		offset += c.width
		b.cols = append(b.cols, c)
	}
	if int64(offset) != rowSize {
		return nil, table.Formatf(formatName, "column widths sum to %d bytes, NAXIS1 is %d", offset, rowSize)
	}
	return b, nil
}

// Header returns the extension header.
func (b *Bintable) Header() *Header { return b.header }

// Name returns the EXTNAME value, if any.
func (b *Bintable) Name() string { return b.name }

// RowCount returns NAXIS2.
func (b *Bintable) RowCount() int64 { return b.nrow }

// RowSize returns NAXIS1.
func (b *Bintable) RowSize() int64 { return b.rowSize }

// DataSize returns the padded size of the data unit.
func (b *Bintable) DataSize() int64 { return b.dataSize }

// Columns returns the column metadata.
func (b *Bintable) Columns() []table.ColumnInfo {
	cols := make([]table.ColumnInfo, len(b.cols))
	for i, c := range b.cols {
		cols[i] = c.info
	}
	return cols
}

// DecodeRow converts the bytes of one row into cell values.
func (b *Bintable) DecodeRow(buf []byte, row []any) []any {
	if cap(row) < len(b.cols) {
		row = make([]any, len(b.cols))
	}
	row = row[:len(b.cols)]
	for i, c := range b.cols {
		row[i] = c.decode(buf)
	}
	return row
}

// Table is a random-access BINTABLE backed by an io.ReaderAt.
type Table struct {
	b      *Bintable
	ra     io.ReaderAt
	offset int64
	params []table.Param
	closer io.Closer
}

// NewTable returns a random-access table whose row data starts at byte
// offset of ra. closer, if not nil, is closed by Close.
func NewTable(b *Bintable, ra io.ReaderAt, offset int64, closer io.Closer) *Table {
	return &Table{b: b, ra: ra, offset: offset, params: headerParams(b.header), closer: closer}
}

func (t *Table) Name() string                      { return t.b.name }
func (t *Table) ColumnCount() int                  { return len(t.b.cols) }
func (t *Table) ColumnInfo(i int) table.ColumnInfo { return t.b.cols[i].info }
func (t *Table) Params() []table.Param             { return t.params }
func (t *Table) RowCount() int64                   { return t.b.nrow }
func (t *Table) IsRandom() bool                    { return true }

// Bintable returns the layout description.
func (t *Table) Bintable() *Bintable { return t.b }

func (t *Table) Close() error {
	if t.closer == nil {
		return nil
	}
	c := t.closer
	t.closer = nil
	return c.Close()
}

func (t *Table) readRow(row int64) ([]byte, error) {
	if err := table.CheckRowIndex(row, t.b.nrow); err != nil {
		return nil, err
	}
	buf := make([]byte, t.b.rowSize)
	n, err := t.ra.ReadAt(buf, t.offset+row*t.b.rowSize)
	if err != nil && !(errors.Is(err, io.EOF) && n == len(buf)) {
		return nil, table.NewRowError(row, table.NewFormatError(formatName, "truncated table data", err))
	}
	return buf, nil
}

func (t *Table) Cell(_ context.Context, row int64, col int) (any, error) {
	if col < 0 || col >= len(t.b.cols) {
		return nil, &table.ErrColumnIndex{Column: col, Count: len(t.b.cols)}
	}
	buf, err := t.readRow(row)
	if err != nil {
		return nil, err
	}
	return t.b.cols[col].decode(buf), nil
}

func (t *Table) Row(_ context.Context, row int64) ([]any, error) {
	buf, err := t.readRow(row)
	if err != nil {
		return nil, err
	}
	return t.b.DecodeRow(buf, nil), nil
}

// RowSequence reads rows in order through a buffered section reader.
func (t *Table) RowSequence(ctx context.Context) (table.RowSequence, error) {
	sr := io.NewSectionReader(t.ra, t.offset, t.b.nrow*t.b.rowSize)
	return newSequence(ctx, t.b, bufio.NewReaderSize(sr, 64*1024)), nil
}

// sequence decodes rows from a forward-only reader.
type sequence struct {
	ctx    context.Context
	b      *Bintable
	r      io.Reader
	buf    []byte
	row    []any
	irow   int64
	has    bool
	closed bool
}

func newSequence(ctx context.Context, b *Bintable, r io.Reader) *sequence {
	return &sequence{ctx: ctx, b: b, r: r, buf: make([]byte, b.rowSize), irow: -1}
}

func (s *sequence) Next() (bool, error) {
	if s.closed {
		return false, table.ErrClosed
	}
	s.has = false
	if s.irow+1 >= s.b.nrow {
		return false, nil
	}
	if err := s.ctx.Err(); err != nil {
		return false, err
	}
	if _, err := io.ReadFull(s.r, s.buf); err != nil {
		return false, table.NewRowError(s.irow+1, table.NewFormatError(formatName, "truncated table data", err))
	}
	s.irow++
	s.row = s.b.DecodeRow(s.buf, s.row)
	s.has = true
	return true, nil
}

func (s *sequence) Cell(col int) (any, error) {
	if !s.has {
		return nil, table.ErrNoRow
	}
	return s.row[col], nil
}

func (s *sequence) Row() ([]any, error) {
	if !s.has {
		return nil, table.ErrNoRow
	}
	return s.row, nil
}

func (s *sequence) Close() error {
	s.closed = true
	s.has = false
	return nil
}

// NewStreamTable returns a single-use sequential table reading row data
// from r, which must be positioned at the start of the data unit.
func NewStreamTable(b *Bintable, r io.Reader, closer io.Closer) *table.SingleUseTable {
	open := func(ctx context.Context) (table.RowSequence, error) {
		return newSequence(ctx, b, r), nil
	}
	return table.NewSingleUseTable(b.name, b.Columns(), headerParams(b.header), b.nrow, open, closer)
}

// Stream copies the rows of a BINTABLE data unit read from r into sink.
// meta supplies the metadata passed to sink; if nil, the BINTABLE's own
// metadata is used.
func Stream(ctx context.Context, b *Bintable, r io.Reader, meta table.Table, sink table.Sink) error {
	t := NewStreamTable(b, r, nil)
	if meta == nil {
		return table.Copy(ctx, t, sink)
	}
	if meta.ColumnCount() != t.ColumnCount() {
		return table.Formatf(formatName, "metadata has %d columns, BINTABLE has %d", meta.ColumnCount(), t.ColumnCount())
	}
	view, err := table.WithMetadata(t, meta.Name(), table.Columns(meta), meta.Params())
	if err != nil {
		return err
	}
	return table.Copy(ctx, view, sink)
}

// structural lists keywords describing the HDU layout rather than the table.
var structural = map[string]bool{
	"XTENSION": true, "BITPIX": true, "NAXIS": true, "NAXIS1": true, "NAXIS2": true,
	"PCOUNT": true, "GCOUNT": true, "TFIELDS": true, "EXTNAME": true, "END": true,
}

var columnKeywords = []string{"TTYPE", "TFORM", "TUNIT", "TNULL", "TSCAL", "TZERO", "TDIM", "TUCD", "TUTYP", "TCOMM", "TDISP"}

// headerParams exposes the non-structural valued cards as table params.
func headerParams(h *Header) []table.Param {
	var params []table.Param
	for _, c := range h.Cards() {
		if !c.HasValue || c.Key == "" || structural[c.Key] || isColumnKeyword(c.Key) {
			continue
		}
		info := table.ValueInfo{Name: c.Key, Description: c.Comment}
		var v any
		if c.IsString {
			info.Kind, v = table.KindString, c.Value
		} else if b, ok := c.Bool(); ok {
			info.Kind, v = table.KindBool, b
		} else if n, ok := c.Int(); ok {
			info.Kind, v = table.KindInt64, n
		} else if f, ok := c.Float(); ok {
			info.Kind, v = table.KindFloat64, f
		} else {
			info.Kind, v = table.KindString, c.Value
		}
		params = append(params, table.Param{Info: info, Value: v})
	}
	return params
}

func isColumnKeyword(key string) bool {
	for _, p := range columnKeywords {
		if len(key) > len(p) && key[:len(p)] == p {
			if _, err := strconv.Atoi(key[len(p):]); err == nil {
				return true
			}
		}
	}
	return false
}
