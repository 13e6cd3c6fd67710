package fits

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/hupe1980/startable/table"
)

// column describes the storage of one BINTABLE field.
type column struct {
	info   table.ColumnInfo
	code   byte
	repeat int
	// offset is the byte offset of the field within a row.
	offset int
	width  int
	array  bool

	hasNull bool
	tnull   int64

	scaled   bool
	scale    float64
	zero     float64
	unsigned bool

	// strWidth is the length of each element of a string array.
	strWidth int
}

func elementSize(code byte) int {
	switch code {
	case 'L', 'B', 'A':
		return 1
	case 'I':
		return 2
	case 'J', 'E':
		return 4
	case 'K', 'D':
		return 8
	}
	return 0
}

// parseTForm splits a TFORM value such as "16E" into repeat count and type
// code.
func parseTForm(s string) (int, byte, error) {
	s = strings.TrimSpace(s)
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == len(s) {
		return 0, 0, table.Formatf(formatName, "bad TFORM %q", s)
	}
	repeat := 1
	if i > 0 {
		n, err := strconv.Atoi(s[:i])
		if err != nil {
			return 0, 0, table.NewFormatError(formatName, "bad TFORM repeat", err)
		}
		repeat = n
	}
	code := s[i]
	if elementSize(code) == 0 {
		return 0, 0, table.Formatf(formatName, "unsupported TFORM %q", s)
	}
	return repeat, code, nil
}

// parseTDim decodes a TDIM value such as "(3,4)".
func parseTDim(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return nil, table.Formatf(formatName, "bad TDIM %q", s)
	}
	parts := strings.Split(s[1:len(s)-1], ",")
	dims := make([]int, len(parts))
	for i, p := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || d < 0 {
			return nil, table.Formatf(formatName, "bad TDIM %q", s)
		}
		dims[i] = d
	}
	return dims, nil
}

func formatTDim(dims []int) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = strconv.Itoa(d)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

func product(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// newColumn builds the column description for field i (1-based) of h.
func newColumn(h *Header, i int, offset int) (*column, error) {
	suffix := strconv.Itoa(i)
	tform, ok := h.String("TFORM" + suffix)
	if !ok {
		return nil, table.Formatf(formatName, "missing TFORM%d", i)
	}
	repeat, code, err := parseTForm(tform)
	if err != nil {
		return nil, err
	}
	c := &column{
		code:   code,
		repeat: repeat,
		offset: offset,
		width:  repeat * elementSize(code),
		scale:  1,
	}
	name, _ := h.String("TTYPE" + suffix)
	if name == "" {
		name = "col" + suffix
	}
	c.info = table.ColumnInfo{Name: name}
	c.info.Unit, _ = h.String("TUNIT" + suffix)
	c.info.UCD, _ = h.String("TUCD" + suffix)
	c.info.Utype, _ = h.String("TUTYP" + suffix)
	c.info.Description, _ = h.String("TCOMM" + suffix)

	var dims []int
	if tdim, ok := h.String("TDIM" + suffix); ok {
		if dims, err = parseTDim(tdim); err != nil {
			return nil, err
		}
		if product(dims) != repeat {
			return nil, table.Formatf(formatName, "TDIM%d %s does not match repeat %d", i, tdim, repeat)
		}
	}
	if v, ok := h.Int("TNULL" + suffix); ok {
		c.hasNull = true
		c.tnull = v
	}
	if v, ok := h.Float("TSCAL" + suffix); ok {
		c.scale = v
	}
	if v, ok := h.Float("TZERO" + suffix); ok {
		c.zero = v
	}

	if code == 'A' {
		switch {
		case len(dims) > 1:
			c.array = true
			c.strWidth = dims[0]
			c.info.Kind = table.KindStringArray
			c.info.Shape = append([]int(nil), dims[1:]...)
		default:
			c.info.Kind = table.KindString
		}
		c.info.Nullable = true
		return c, nil
	}

	c.array = repeat != 1 || dims != nil
	kind := c.scalarKind()
	c.info.Nullable = c.hasNull || kind == table.KindFloat32 || kind == table.KindFloat64 || code == 'L'
	if c.array {
		c.info.Kind = kind.Array()
		c.info.Shape = dims
		if dims == nil {
			c.info.Shape = []int{repeat}
		}
	} else {
		c.info.Kind = kind
	}
	return c, nil
}

// scalarKind derives the element kind, recognizing the standard unsigned
// integer offsets and falling back to Float64 for other scaling.
func (c *column) scalarKind() table.Kind {
	trivial := c.scale == 1 && c.zero == 0
	switch c.code {
	case 'L':
		return table.KindBool
	case 'B':
		if c.scale == 1 && c.zero == -128 {
			c.unsigned = true
			return table.KindInt8
		}
		if trivial {
			return table.KindInt16
		}
	case 'I':
		if c.scale == 1 && c.zero == 32768 {
			c.unsigned = true
			return table.KindInt32
		}
		if trivial {
			return table.KindInt16
		}
	case 'J':
		if c.scale == 1 && c.zero == 2147483648 {
			c.unsigned = true
			return table.KindInt64
		}
		if trivial {
			return table.KindInt32
		}
	case 'K':
		if trivial {
			return table.KindInt64
		}
	case 'E':
		if trivial {
			return table.KindFloat32
		}
	case 'D':
		if trivial {
			return table.KindFloat64
		}
	}
	c.scaled = true
	return table.KindFloat64
}

// rawInt reads an integer element. B is unsigned; I, J and K are signed.
func rawInt(code byte, b []byte) int64 {
	switch code {
	case 'B':
		return int64(b[0])
	case 'I':
		return int64(int16(binary.BigEndian.Uint16(b)))
	case 'J':
		return int64(int32(binary.BigEndian.Uint32(b)))
	default:
		return int64(binary.BigEndian.Uint64(b))
	}
}

func rawFloat(code byte, b []byte) float64 {
	if code == 'E' {
		return float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

func isFloatCode(code byte) bool { return code == 'E' || code == 'D' }

// element decodes element i of the field as a scalar cell value.
func (c *column) element(b []byte, i int) any {
	size := elementSize(c.code)
	e := b[i*size : (i+1)*size]
	switch c.code {
	case 'L':
		switch e[0] {
		case 'T':
			return true
		case 'F':
			return false
		}
		return nil
	case 'E':
		if !c.scaled {
			return math.Float32frombits(binary.BigEndian.Uint32(e))
		}
	case 'D':
		if !c.scaled {
			return math.Float64frombits(binary.BigEndian.Uint64(e))
		}
	}
	if isFloatCode(c.code) {
		return rawFloat(c.code, e)*c.scale + c.zero
	}
	raw := rawInt(c.code, e)
	if c.hasNull && raw == c.tnull {
		return nil
	}
	switch {
	case c.scaled:
		return float64(raw)*c.scale + c.zero
	case c.unsigned && c.code == 'B':
		return int8(raw - 128)
	case c.unsigned && c.code == 'I':
		return int32(raw + 32768)
	case c.unsigned && c.code == 'J':
		return raw + 2147483648
	}
	switch c.code {
	case 'B', 'I':
		return int16(raw)
	case 'J':
		return int32(raw)
	}
	return raw
}

// decode converts the field bytes of one row to a cell value.
func (c *column) decode(b []byte) any {
	b = b[c.offset : c.offset+c.width]
	if c.code == 'A' {
		if !c.array {
			return trimString(b)
		}
		n := 0
		if c.strWidth > 0 {
			n = len(b) / c.strWidth
		}
		out := make([]string, n)
		for i := range out {
			if s, ok := trimString(b[i*c.strWidth : (i+1)*c.strWidth]).(string); ok {
				out[i] = s
			}
		}
		return out
	}
	if !c.array {
		return c.element(b, 0)
	}
	n := c.repeat
	switch c.info.Kind.Scalar() {
	case table.KindBool:
		out := make([]bool, n)
		for i := range out {
			out[i] = b[i] == 'T'
		}
		return out
	case table.KindInt8:
		out := make([]int8, n)
		for i := range out {
			out[i] = int8(b[i] ^ 0x80)
		}
		return out
	case table.KindInt16:
		out := make([]int16, n)
		for i := range out {
			out[i] = int16(rawInt(c.code, b[i*elementSize(c.code):]))
		}
		return out
	case table.KindInt32:
		out := make([]int32, n)
		for i := range out {
			v := rawInt(c.code, b[i*elementSize(c.code):])
			if c.unsigned {
				v += 32768
			}
			out[i] = int32(v)
		}
		return out
	case table.KindInt64:
		out := make([]int64, n)
		for i := range out {
			v := rawInt(c.code, b[i*elementSize(c.code):])
			if c.unsigned {
				v += 2147483648
			}
			out[i] = v
		}
		return out
	case table.KindFloat32:
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(binary.BigEndian.Uint32(b[i*4:]))
		}
		return out
	default:
		out := make([]float64, n)
		for i := range out {
			if v, ok := table.AsFloat64(c.element(b, i)); ok {
				out[i] = v
			} else {
				out[i] = math.NaN()
			}
		}
		return out
	}
}

// trimString decodes a character field, stopping at the first NUL and
// dropping trailing spaces. An empty result is a null cell.
func trimString(b []byte) any {
	for i, c := range b {
		if c == 0 {
			b = b[:i]
			break
		}
	}
	s := strings.TrimRight(string(b), " ")
	if s == "" {
		return nil
	}
	return s
}
