package arrayjoin

import (
	"math"
	"path"
	"strings"
	"unicode"

	"github.com/hupe1980/startable/table"
)

// arrayColumn turns one template column into an array column.
type arrayColumn struct {
	icol   int
	scalar table.ColumnInfo
	// pack builds the typed array from the column's cells.
	pack func(cells []any) any
}

func newArrayColumn(icol int, info table.ColumnInfo) (*arrayColumn, bool) {
	var pack func([]any) any
	switch info.Kind {
	case table.KindBool:
		pack = packer(false)
	case table.KindInt8:
		pack = packer[int8](0)
	case table.KindInt16:
		pack = packer[int16](0)
	case table.KindInt32:
		pack = packer[int32](0)
	case table.KindInt64:
		pack = packer[int64](0)
	case table.KindFloat32:
		pack = packer(float32(math.NaN()))
	case table.KindFloat64:
		pack = packer(math.NaN())
	case table.KindString:
		pack = packer("")
	default:
		return nil, false
	}
	return &arrayColumn{icol: icol, scalar: info, pack: pack}, true
}

// info describes the array column before any data has been seen.
func (c *arrayColumn) info() table.ColumnInfo {
	return c.scalar.WithKind(c.scalar.Kind.Array()).WithShape(table.VariableDim)
}

// packer returns a function collecting cells of type T. Cells of any other
// type, including nil, become null.
func packer[T any](null T) func(cells []any) any {
	return func(cells []any) any {
		out := make([]T, len(cells))
		for i, c := range cells {
			if v, ok := c.(T); ok {
				out[i] = v
			} else {
				out[i] = null
			}
		}
		return out
	}
}

// matchName reports whether name matches pattern, a list of glob items
// separated by commas or spaces. Matching ignores case; blank names never
// match.
func matchName(pattern, name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	lname := strings.ToLower(name)
	items := strings.FieldsFunc(pattern, func(r rune) bool { return r == ',' || unicode.IsSpace(r) })
	for _, item := range items {
		if strings.EqualFold(item, name) {
			return true
		}
		if ok, err := path.Match(strings.ToLower(item), lname); err == nil && ok {
			return true
		}
	}
	return false
}
