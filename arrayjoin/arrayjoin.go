package arrayjoin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/hupe1980/startable/table"
	"github.com/hupe1980/startable/tableio"
)

const formatName = "arrayjoin"

var (
	// ErrNoArrayTables is returned when no base row yields a loadable
	// external table.
	ErrNoArrayTables = errors.New("arrayjoin: no array tables")

	// ErrNoColumns is returned when the template table has neither
	// supported columns nor matching parameters.
	ErrNoColumns = errors.New("arrayjoin: no usable columns or parameters in template table")
)

// LoadError reports an external table that could not be loaded while
// missing data is not allowed.
type LoadError struct {
	Row      int64
	Location string
	cause    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("arrayjoin: load %q for row %d: %v", e.Location, e.Row, e.cause)
}

func (e *LoadError) Unwrap() error { return e.cause }

// LocationFunc returns the location of the external table for a base row,
// or "" if the row has none.
type LocationFunc func(ctx context.Context, row []any) (string, error)

// Dimension states of an array column during a pass.
const (
	unknownDim  = -1
	variableDim = -2
)

// Options configures New.
type Options struct {
	// KeepAll retains base rows without external data.
	KeepAll bool
	// Cache reads the array columns into memory once, giving random
	// access and fixed array shapes.
	Cache bool
	// AllowMissing treats a failed load as a row without data.
	AllowMissing bool
	// ParamPattern selects template parameters, by comma or space
	// separated glob items, to add as scalar columns.
	ParamPattern string
	// Fix renames array columns that clash with base columns.
	Fix table.FixAction
	// Logger receives warnings about skipped columns and failed loads.
	Logger *slog.Logger
}

// DefaultOptions are the options used by New before optFns apply.
var DefaultOptions = Options{
	KeepAll:      true,
	Cache:        true,
	AllowMissing: true,
	Fix:          table.FixAction{Mode: table.FixDuplicates, Suffix: "_a"},
}

// WithKeepAll sets whether rows without data are retained.
func WithKeepAll(keep bool) func(o *Options) {
	return func(o *Options) {
		o.KeepAll = keep
	}
}

// WithCache sets whether the array columns are read into memory.
func WithCache(cache bool) func(o *Options) {
	return func(o *Options) {
		o.Cache = cache
	}
}

// WithAllowMissing sets whether load failures are tolerated.
func WithAllowMissing(allow bool) func(o *Options) {
	return func(o *Options) {
		o.AllowMissing = allow
	}
}

// WithParams selects template parameters to add as columns.
func WithParams(pattern string) func(o *Options) {
	return func(o *Options) {
		o.ParamPattern = pattern
	}
}

// WithFixAction sets how clashing array column names are changed.
func WithFixAction(fix table.FixAction) func(o *Options) {
	return func(o *Options) {
		o.Fix = fix
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) func(o *Options) {
	return func(o *Options) {
		o.Logger = l
	}
}

// New joins base with array columns read from the external tables that
// locate names and load opens.
//
// New takes ownership of base: it is closed with the result, or before
// New returns an error. A sequential base is read into memory first, since
// the join makes more than one pass over it.
func New(ctx context.Context, base table.Table, locate LocationFunc, load tableio.Loader, optFns ...func(o *Options)) (table.Table, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	t, err := join(ctx, base, locate, load, opts)
	if err != nil {
		_ = base.Close()
		return nil, err
	}
	return t, nil
}

func join(ctx context.Context, base table.Table, locate LocationFunc, load tableio.Loader, opts Options) (table.Table, error) {
	if !base.IsRandom() {
		rt, err := table.Random(ctx, base)
		if err != nil {
			return nil, err
		}
		if err := base.Close(); err != nil {
			return nil, err
		}
		base = rt
	}

	d := &dataTable{base: base, locate: locate, load: load, opts: opts}
	if err := d.init(ctx); err != nil {
		return nil, err
	}

	var arrays table.Table = d
	if opts.Cache {
		cached, err := d.cache(ctx)
		if err != nil {
			return nil, err
		}
		arrays = cached
	}

	in := base
	if !opts.KeepAll {
		mask, err := d.rowMask(ctx)
		if err != nil {
			return nil, err
		}
		in = table.NewRowSubsetTable(base, mask)
	}
	return table.NewJoinTable([]table.Table{in, arrays}, []table.FixAction{table.NoFix, opts.Fix})
}

// dataTable is the sequential table of array and parameter columns, one
// row per base row (or per base row with data, without KeepAll).
type dataTable struct {
	base   table.Table
	locate LocationFunc
	load   tableio.Loader
	opts   Options

	cols   []*arrayColumn
	params []table.ValueInfo
	infos  []table.ColumnInfo
	// first is the first base row with data.
	first int64

	mu sync.Mutex
	// dims and mask are set by the first complete pass.
	dims []int
	mask *roaring64.Bitmap
}

// init finds the template table and sets up the columns.
func (d *dataTable) init(ctx context.Context) error {
	tmpl, first, err := d.template(ctx)
	if err != nil {
		return err
	}
	defer tmpl.Close()
	d.first = first

	for ic := 0; ic < tmpl.ColumnCount(); ic++ {
		info := tmpl.ColumnInfo(ic)
		c, ok := newArrayColumn(ic, info)
		if !ok {
			d.opts.Logger.Warn("array storage not supported for column, ignoring",
				slog.String("column", info.String()))
			continue
		}
		d.cols = append(d.cols, c)
		d.infos = append(d.infos, c.info())
	}
	if strings.TrimSpace(d.opts.ParamPattern) != "" {
		for _, p := range tmpl.Params() {
			if matchName(d.opts.ParamPattern, p.Info.Name) {
				d.params = append(d.params, p.Info.Clone())
				d.infos = append(d.infos, p.Info.Clone())
			}
		}
	}
	if len(d.infos) == 0 {
		return ErrNoColumns
	}
	return nil
}

// template returns the first external table that loads, and its base row.
func (d *dataTable) template(ctx context.Context) (_ table.Table, _ int64, err error) {
	seq, err := d.base.RowSequence(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if cerr := seq.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for irow := int64(0); ; irow++ {
		ok, err := seq.Next()
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			return nil, 0, ErrNoArrayTables
		}
		row, err := seq.Row()
		if err != nil {
			return nil, 0, table.NewRowError(irow, err)
		}
		loc, err := d.locate(ctx, row)
		if err != nil {
			return nil, 0, table.NewRowError(irow, err)
		}
		if loc == "" {
			continue
		}
		t, err := d.fetch(ctx, irow, loc)
		if err != nil {
			return nil, 0, err
		}
		if t != nil {
			return t, irow, nil
		}
	}
}

// fetch loads the external table for a row. A nil table means no data.
func (d *dataTable) fetch(ctx context.Context, irow int64, loc string) (table.Table, error) {
	t, err := d.load(ctx, loc)
	if err == nil {
		return t, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !d.opts.AllowMissing {
		return nil, &LoadError{Row: irow, Location: loc, cause: err}
	}
	d.opts.Logger.Warn("array table not loaded",
		slog.Int64("row", irow),
		slog.String("location", loc),
		slog.Any("error", err))
	return nil, nil
}

// readArrays reads an external table into one array per column, followed
// by the selected parameter values.
func (d *dataTable) readArrays(ctx context.Context, irow int64, t table.Table) (_ []any, err error) {
	for _, c := range d.cols {
		if c.icol >= t.ColumnCount() {
			return nil, table.Formatf(formatName, "table data mismatch at row %d: no column %d for %s", irow, c.icol+1, c.scalar)
		}
		got := t.ColumnInfo(c.icol)
		if got.Name != c.scalar.Name || got.Kind != c.scalar.Kind {
			return nil, table.Formatf(formatName, "table data mismatch at row %d: %s does not match %s", irow, got, c.scalar)
		}
	}

	cells := make([][]any, len(d.cols))
	seq, err := t.RowSequence(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := seq.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for {
		ok, err := seq.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		row, err := seq.Row()
		if err != nil {
			return nil, err
		}
		for i, c := range d.cols {
			cells[i] = append(cells[i], row[c.icol])
		}
	}

	out := make([]any, len(d.infos))
	for i, c := range d.cols {
		out[i] = c.pack(cells[i])
	}
	for j, info := range d.params {
		if p, ok := table.ParamByName(t, info.Name); ok && p.Value != nil && table.KindOf(p.Value) == info.Kind {
			out[len(d.cols)+j] = p.Value
		}
	}
	return out, nil
}

func (d *dataTable) Name() string                      { return d.base.Name() }
func (d *dataTable) ColumnCount() int                  { return len(d.infos) }
func (d *dataTable) ColumnInfo(i int) table.ColumnInfo { return d.infos[i] }
func (d *dataTable) Params() []table.Param             { return nil }
func (d *dataTable) IsRandom() bool                    { return false }

// Close is a no-op; the base table is closed by the join.
func (d *dataTable) Close() error { return nil }

func (d *dataTable) RowCount() int64 {
	if d.opts.KeepAll {
		return d.base.RowCount()
	}
	return table.UnknownRowCount
}

func (d *dataTable) Cell(context.Context, int64, int) (any, error) {
	return nil, table.ErrNotRandom
}

func (d *dataTable) Row(context.Context, int64) ([]any, error) {
	return nil, table.ErrNotRandom
}

func (d *dataTable) RowSequence(ctx context.Context) (table.RowSequence, error) {
	seq, err := d.base.RowSequence(ctx)
	if err != nil {
		return nil, err
	}
	dims := make([]int, len(d.cols))
	for i := range dims {
		dims[i] = unknownDim
	}
	return &dataSequence{
		d:        d,
		ctx:      ctx,
		base:     seq,
		irow:     -1,
		complete: true,
		dims:     dims,
		mask:     roaring64.New(),
	}, nil
}

// columns returns the column metadata, with fixed shapes for arrays of
// uniform length once a complete pass has been made.
func (d *dataTable) columns() []table.ColumnInfo {
	d.mu.Lock()
	dims := d.dims
	d.mu.Unlock()

	out := make([]table.ColumnInfo, len(d.infos))
	for i, info := range d.infos {
		if i < len(d.cols) && dims != nil && dims[i] > 0 {
			info = info.WithShape(dims[i])
		}
		out[i] = info
	}
	return out
}

// cache reads every row into memory.
func (d *dataTable) cache(ctx context.Context) (table.Table, error) {
	store := table.NewRowStore()
	if err := table.Copy(ctx, d, store); err != nil {
		return nil, err
	}
	return table.WithMetadata(store.Table(), d.Name(), d.columns(), []table.Param{})
}

// rowMask returns the base rows with data, making a pass if none has
// completed yet.
func (d *dataTable) rowMask(ctx context.Context) (*roaring64.Bitmap, error) {
	d.mu.Lock()
	mask := d.mask
	d.mu.Unlock()
	if mask != nil {
		return mask, nil
	}
	if _, err := table.Count(ctx, d); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mask == nil {
		return nil, errors.New("arrayjoin: row mask not available after a complete pass")
	}
	return d.mask, nil
}

type dataSequence struct {
	d    *dataTable
	ctx  context.Context
	base table.RowSequence
	irow int64

	cur  bool
	done bool
	data []any

	finished bool
	// complete is false once a row has been skipped without reading it.
	complete bool
	closed   bool
	dims     []int
	mask     *roaring64.Bitmap
}

func (s *dataSequence) Next() (bool, error) {
	if s.cur && !s.done {
		s.complete = false
	}
	s.cur, s.done, s.data = false, false, nil
	for {
		if err := s.ctx.Err(); err != nil {
			return false, err
		}
		ok, err := s.base.Next()
		if err != nil {
			return false, err
		}
		if !ok {
			s.finished = true
			return false, nil
		}
		s.irow++
		if s.d.opts.KeepAll {
			s.cur = true
			return true, nil
		}
		has, err := s.compute()
		if err != nil {
			return false, err
		}
		if has {
			s.cur = true
			return true, nil
		}
		s.done, s.data = false, nil
	}
}

// compute reads the external data for the current base row and reports
// whether there was any.
func (s *dataSequence) compute() (bool, error) {
	brow, err := s.base.Row()
	if err != nil {
		return false, table.NewRowError(s.irow, err)
	}
	loc, err := s.d.locate(s.ctx, brow)
	if err != nil {
		return false, table.NewRowError(s.irow, err)
	}

	var data []any
	if loc != "" && s.irow >= s.d.first {
		t, err := s.d.fetch(s.ctx, s.irow, loc)
		if err != nil {
			return false, err
		}
		if t != nil {
			data, err = s.d.readArrays(s.ctx, s.irow, t)
			if cerr := t.Close(); cerr != nil && err == nil {
				err = cerr
			}
			if err != nil {
				return false, err
			}
		}
	}

	s.done = true
	if data == nil {
		s.data = make([]any, len(s.d.infos))
		return false, nil
	}
	s.data = data
	s.mask.Add(uint64(s.irow))
	for i := range s.d.cols {
		n := table.ArrayLen(data[i])
		if n <= 0 {
			continue
		}
		switch {
		case s.dims[i] == unknownDim:
			s.dims[i] = n
		case s.dims[i] > 0 && s.dims[i] != n:
			s.dims[i] = variableDim
		}
	}
	return true, nil
}

func (s *dataSequence) Row() ([]any, error) {
	if !s.cur {
		return nil, table.ErrNoRow
	}
	if !s.done {
		if _, err := s.compute(); err != nil {
			return nil, err
		}
	}
	return s.data, nil
}

func (s *dataSequence) Cell(col int) (any, error) {
	row, err := s.Row()
	if err != nil {
		return nil, err
	}
	if col < 0 || col >= len(row) {
		return nil, &table.ErrColumnIndex{Column: col, Count: len(row)}
	}
	return row[col], nil
}

func (s *dataSequence) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.data = nil
	err := s.base.Close()
	if s.finished && s.complete {
		s.d.mu.Lock()
		s.d.dims = s.dims
		s.d.mask = s.mask
		s.d.mu.Unlock()
	}
	return err
}
