package fits

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/hupe1980/startable/table"
)

// field is the output layout chosen for one column.
type field struct {
	info     table.ColumnInfo
	code     byte
	repeat   int
	dims     []int
	strWidth int
	zero     float64
	hasNull  bool
	tnull    int64
	offset   int
	width    int
}

// colStats summarizes one column over all rows.
type colStats struct {
	maxLen    int
	lenFixed  bool
	firstLen  int
	seen      bool
	maxStrLen int
	nulls     bool
	hasMin    bool
	hasMax    bool
}

func codeFor(k table.Kind) (byte, error) {
	switch k.Scalar() {
	case table.KindBool:
		return 'L', nil
	case table.KindInt8:
		return 'B', nil
	case table.KindInt16:
		return 'I', nil
	case table.KindInt32:
		return 'J', nil
	case table.KindInt64:
		return 'K', nil
	case table.KindFloat32:
		return 'E', nil
	case table.KindFloat64:
		return 'D', nil
	case table.KindString:
		return 'A', nil
	}
	return 0, fmt.Errorf("fits: cannot write column of kind %s", k)
}

// intRange returns the value range of an integer kind.
func intRange(k table.Kind) (lo, hi int64) {
	switch k.Scalar() {
	case table.KindInt8:
		return math.MinInt8, math.MaxInt8
	case table.KindInt16:
		return math.MinInt16, math.MaxInt16
	case table.KindInt32:
		return math.MinInt32, math.MaxInt32
	default:
		return math.MinInt64, math.MaxInt64
	}
}

// scan collects the statistics needed to lay out fixed-width fields.
func scan(ctx context.Context, t table.Table) ([]colStats, error) {
	ncol := t.ColumnCount()
	stats := make([]colStats, ncol)
	for i := range stats {
		stats[i].lenFixed = true
	}
	seq, err := t.RowSequence(ctx)
	if err != nil {
		return nil, err
	}
	defer seq.Close()
	for {
		ok, err := seq.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return stats, seq.Close()
		}
		row, err := seq.Row()
		if err != nil {
			return nil, err
		}
		for i, v := range row {
			st := &stats[i]
			kind := t.ColumnInfo(i).Kind
			if v == nil {
				st.nulls = true
				continue
			}
			switch x := v.(type) {
			case string:
				st.maxStrLen = max(st.maxStrLen, len(x))
			case []string:
				for _, s := range x {
					st.maxStrLen = max(st.maxStrLen, len(s))
				}
			}
			if kind.IsArray() {
				n := table.ArrayLen(v)
				if st.seen && n != st.firstLen {
					st.lenFixed = false
				}
				if !st.seen {
					st.firstLen = n
					st.seen = true
				}
				st.maxLen = max(st.maxLen, n)
			} else if kind.IsInteger() {
				lo, hi := intRange(kind)
				iv, _ := table.AsInt64(v)
				st.hasMin = st.hasMin || iv == lo
				st.hasMax = st.hasMax || iv == hi
			}
		}
	}
}

func layout(t table.Table, stats []colStats) ([]*field, int, error) {
	fields := make([]*field, t.ColumnCount())
	offset := 0
	for i := range fields {
		info := t.ColumnInfo(i)
		code, err := codeFor(info.Kind)
		if err != nil {
			return nil, 0, err
		}
		st := stats[i]
		f := &field{info: info, code: code, repeat: 1}
		if info.Kind.Scalar() == table.KindInt8 {
			f.zero = -128
		}
		n := st.maxLen
		var dims []int
		if info.Kind.IsArray() {
			if fl := info.FixedLength(); fl >= 0 && (!st.seen || (st.lenFixed && st.firstLen == fl)) {
				n, dims = fl, info.Shape
			} else {
				dims = []int{n}
			}
		}
		switch {
		case info.Kind == table.KindString:
			f.repeat = max(st.maxStrLen, 1)
		case info.Kind == table.KindStringArray:
			f.strWidth = max(st.maxStrLen, 1)
			f.repeat = f.strWidth * n
			f.dims = append([]int{f.strWidth}, dims...)
		case info.Kind.IsArray():
			f.repeat = n
			f.dims = dims
		}
		if st.nulls && info.Kind.IsInteger() {
			lo, hi := intRange(info.Kind)
			f.hasNull = true
			f.tnull = lo
			if st.hasMin && !st.hasMax {
				f.tnull = hi
			}
			if code == 'B' {
				f.tnull += 128
			}
		}
		f.offset = offset
		f.width = f.repeat * elementSize(code)
		offset += f.width
		fields[i] = f
	}
	return fields, offset, nil
}

// bintableHeader builds the extension header for the planned fields.
func bintableHeader(t table.Table, fields []*field, rowSize int, nrow int64) (*Header, error) {
	h := NewHeader()
	set := func(key string, v any, comment string) error { return h.Set(key, v, comment) }
	if err := firstErr(
		set("XTENSION", "BINTABLE", "binary table extension"),
		set("BITPIX", 8, "8-bit bytes"),
		set("NAXIS", 2, "2-dimensional table"),
		set("NAXIS1", rowSize, "width of table in bytes"),
		set("NAXIS2", nrow, "number of rows in table"),
		set("PCOUNT", 0, "size of special data area"),
		set("GCOUNT", 1, "one data group"),
		set("TFIELDS", len(fields), "number of columns"),
	); err != nil {
		return nil, err
	}
	if name := t.Name(); name != "" && len(name) <= 68 {
		if err := set("EXTNAME", name, "table name"); err != nil {
			return nil, err
		}
	}
	for i, f := range fields {
		s := strconv.Itoa(i + 1)
		errs := []error{
			set("TTYPE"+s, f.info.Name, "label for column "+s),
			set("TFORM"+s, strconv.Itoa(f.repeat)+string(f.code), "format for column "+s),
		}
		if f.info.Unit != "" {
			errs = append(errs, set("TUNIT"+s, f.info.Unit, ""))
		}
		if f.hasNull {
			errs = append(errs, set("TNULL"+s, f.tnull, "blank value"))
		}
		if f.zero != 0 {
			errs = append(errs, set("TZERO"+s, int64(f.zero), "offset for signed bytes"))
		}
		if f.dims != nil {
			errs = append(errs, set("TDIM"+s, formatTDim(f.dims), ""))
		}
		if err := firstErr(errs...); err != nil {
			return nil, fmt.Errorf("column %q: %w", f.info.Name, err)
		}
	}
	return h, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteBintable writes t as a BINTABLE extension HDU. Tables without
// random access are read into memory first. Variable-length array columns
// are padded to the longest array.
func WriteBintable(ctx context.Context, w io.Writer, t table.Table) (int64, error) {
	t, err := table.Random(ctx, t)
	if err != nil {
		return 0, err
	}
	stats, err := scan(ctx, t)
	if err != nil {
		return 0, err
	}
	fields, rowSize, err := layout(t, stats)
	if err != nil {
		return 0, err
	}
	nrow := t.RowCount()
	h, err := bintableHeader(t, fields, rowSize, nrow)
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriter(w)
	written, err := WriteHeader(bw, h)
	if err != nil {
		return written, err
	}

	buf := make([]byte, rowSize)
	seq, err := t.RowSequence(ctx)
	if err != nil {
		return written, err
	}
	defer seq.Close()
	for {
		ok, err := seq.Next()
		if err != nil {
			return written, err
		}
		if !ok {
			break
		}
		row, err := seq.Row()
		if err != nil {
			return written, err
		}
		clear(buf)
		for i, f := range fields {
			f.encode(buf[f.offset:f.offset+f.width], row[i])
		}
		n, err := bw.Write(buf)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	pad := Padding(int64(rowSize) * nrow)
	n, err := bw.Write(make([]byte, pad))
	written += int64(n)
	if err != nil {
		return written, err
	}
	return written, bw.Flush()
}

// WritePrimary writes a primary HDU. data, if not nil, is written as a
// BITPIX=8 one-dimensional data array; extra cards follow NAXIS1.
func WritePrimary(w io.Writer, data []byte, extra ...Card) (int64, error) {
	h := NewHeader()
	errs := []error{
		h.Set("SIMPLE", true, "file conforms to FITS standard"),
		h.Set("BITPIX", 8, "8-bit bytes"),
	}
	if data == nil {
		errs = append(errs, h.Set("NAXIS", 0, "no primary data array"))
	} else {
		errs = append(errs,
			h.Set("NAXIS", 1, "one-dimensional data array"),
			h.Set("NAXIS1", len(data), "length of data array"),
		)
	}
	if err := firstErr(errs...); err != nil {
		return 0, err
	}
	for _, c := range extra {
		h.Add(c)
	}
	if err := h.Set("EXTEND", true, "extensions may be present"); err != nil {
		return 0, err
	}
	n, err := WriteHeader(w, h)
	if err != nil || data == nil {
		return n, err
	}
	m, err := w.Write(data)
	n += int64(m)
	if err != nil {
		return n, err
	}
	m, err = w.Write(make([]byte, Padding(int64(len(data)))))
	return n + int64(m), err
}

// Write writes t as a FITS file with an empty primary HDU followed by one
// BINTABLE extension.
func Write(ctx context.Context, w io.Writer, t table.Table) (int64, error) {
	n, err := WritePrimary(w, nil)
	if err != nil {
		return n, err
	}
	m, err := WriteBintable(ctx, w, t)
	return n + m, err
}

// encode writes one cell into its field bytes, which are zeroed on entry.
func (f *field) encode(b []byte, v any) {
	switch f.code {
	case 'A':
		switch x := v.(type) {
		case string:
			copy(b, x)
		case []string:
			for i, s := range x {
				if (i+1)*f.strWidth > len(b) {
					break
				}
				copy(b[i*f.strWidth:(i+1)*f.strWidth], s)
			}
		}
		return
	case 'L':
		switch x := v.(type) {
		case bool:
			b[0] = logical(x)
		case []bool:
			for i := 0; i < len(x) && i < f.repeat; i++ {
				b[i] = logical(x[i])
			}
		}
		return
	}

	if !f.info.Kind.IsArray() {
		if v == nil {
			f.putNull(b)
			return
		}
		f.put(b, v)
		return
	}
	size := elementSize(f.code)
	n := table.ArrayLen(v)
	for i := 0; i < f.repeat; i++ {
		e := b[i*size : (i+1)*size]
		if i >= n {
			f.putNull(e)
			continue
		}
		f.put(e, arrayElement(v, i))
	}
}

func logical(v bool) byte {
	if v {
		return 'T'
	}
	return 'F'
}

func (f *field) putNull(b []byte) {
	switch f.code {
	case 'E':
		binary.BigEndian.PutUint32(b, math.Float32bits(float32(math.NaN())))
	case 'D':
		binary.BigEndian.PutUint64(b, math.Float64bits(math.NaN()))
	default:
		if f.hasNull {
			putInt(f.code, b, f.tnull)
		}
	}
}

func (f *field) put(b []byte, v any) {
	switch f.code {
	case 'E':
		x, _ := table.AsFloat64(v)
		binary.BigEndian.PutUint32(b, math.Float32bits(float32(x)))
	case 'D':
		x, _ := table.AsFloat64(v)
		binary.BigEndian.PutUint64(b, math.Float64bits(x))
	default:
		x, _ := table.AsInt64(v)
		if f.code == 'B' {
			x += 128
		}
		putInt(f.code, b, x)
	}
}

func putInt(code byte, b []byte, v int64) {
	switch code {
	case 'B':
		b[0] = byte(v)
	case 'I':
		binary.BigEndian.PutUint16(b, uint16(v))
	case 'J':
		binary.BigEndian.PutUint32(b, uint32(v))
	case 'K':
		binary.BigEndian.PutUint64(b, uint64(v))
	}
}

func arrayElement(v any, i int) any {
	switch a := v.(type) {
	case []int8:
		return a[i]
	case []int16:
		return a[i]
	case []int32:
		return a[i]
	case []int64:
		return a[i]
	case []float32:
		return a[i]
	case []float64:
		return a[i]
	}
	return nil
}
