package tableio

import (
	"fmt"
	"math"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/hupe1980/startable/table"
)

// arrowColumn converts the cells of one arrow column.
type arrowColumn struct {
	info  table.ColumnInfo
	value func(a arrow.Array, i int) any
}

// kindOf maps an arrow type to a cell kind. Unsigned integers widen to the
// next signed kind, except uint64 which is reinterpreted as int64.
// Unsupported types map to KindInvalid.
func kindOf(dt arrow.DataType) (table.Kind, []int) {
	switch dt.ID() {
	case arrow.BOOL:
		return table.KindBool, nil
	case arrow.INT8:
		return table.KindInt8, nil
	case arrow.UINT8, arrow.INT16:
		return table.KindInt16, nil
	case arrow.UINT16, arrow.INT32:
		return table.KindInt32, nil
	case arrow.UINT32, arrow.INT64, arrow.UINT64:
		return table.KindInt64, nil
	case arrow.FLOAT32:
		return table.KindFloat32, nil
	case arrow.FLOAT64:
		return table.KindFloat64, nil
	case arrow.STRING, arrow.LARGE_STRING:
		return table.KindString, nil
	case arrow.LIST, arrow.LARGE_LIST:
		elem, _ := kindOf(dt.(arrow.ListLikeType).Elem())
		if elem.IsArray() {
			return table.KindInvalid, nil
		}
		return elem.Array(), []int{table.VariableDim}
	case arrow.FIXED_SIZE_LIST:
		fl := dt.(*arrow.FixedSizeListType)
		elem, _ := kindOf(fl.Elem())
		if elem.IsArray() {
			return table.KindInvalid, nil
		}
		return elem.Array(), []int{int(fl.Len())}
	}
	return table.KindInvalid, nil
}

func metaValue(md arrow.Metadata, key string) string {
	if i := md.FindKey(key); i >= 0 {
		return md.Values()[i]
	}
	return ""
}

// newArrowColumn describes a field. Fields of unsupported type are read as
// their string rendering.
func newArrowColumn(f arrow.Field) arrowColumn {
	kind, shape := kindOf(f.Type)
	info := table.ColumnInfo{
		Name:        f.Name,
		Kind:        kind,
		Shape:       shape,
		Unit:        metaValue(f.Metadata, "unit"),
		UCD:         metaValue(f.Metadata, "ucd"),
		Description: metaValue(f.Metadata, "description"),
		Nullable:    f.Nullable,
	}
	if kind == table.KindInvalid {
		info.Kind = table.KindString
		info.Aux = map[string]any{"arrowType": f.Type.String()}
		return arrowColumn{info: info, value: func(a arrow.Array, i int) any { return a.ValueStr(i) }}
	}
	return arrowColumn{info: info, value: cellValue}
}

// cellValue returns one cell of a supported arrow array, or nil for null.
func cellValue(a arrow.Array, i int) any {
	if a.IsNull(i) {
		return nil
	}
	switch a := a.(type) {
	case *array.Boolean:
		return a.Value(i)
	case *array.Int8:
		return a.Value(i)
	case *array.Uint8:
		return int16(a.Value(i))
	case *array.Int16:
		return a.Value(i)
	case *array.Uint16:
		return int32(a.Value(i))
	case *array.Int32:
		return a.Value(i)
	case *array.Uint32:
		return int64(a.Value(i))
	case *array.Int64:
		return a.Value(i)
	case *array.Uint64:
		return int64(a.Value(i))
	case *array.Float32:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case array.ListLike:
		start, end := a.ValueOffsets(i)
		return listValue(a.ListValues(), int(start), int(end))
	}
	return a.ValueStr(i)
}

// listValue packs elements [start,end) of vals into a typed slice. Null
// floating point elements become NaN, other null elements their zero value.
func listValue(vals arrow.Array, start, end int) any {
	switch v := vals.(type) {
	case *array.Boolean:
		return collect(v, start, end, v.Value, false)
	case *array.Int8:
		return collect(v, start, end, v.Value, 0)
	case *array.Uint8:
		return collect(v, start, end, func(i int) int16 { return int16(v.Value(i)) }, 0)
	case *array.Int16:
		return collect(v, start, end, v.Value, 0)
	case *array.Uint16:
		return collect(v, start, end, func(i int) int32 { return int32(v.Value(i)) }, 0)
	case *array.Int32:
		return collect(v, start, end, v.Value, 0)
	case *array.Uint32:
		return collect(v, start, end, func(i int) int64 { return int64(v.Value(i)) }, 0)
	case *array.Int64:
		return collect(v, start, end, v.Value, 0)
	case *array.Uint64:
		return collect(v, start, end, func(i int) int64 { return int64(v.Value(i)) }, 0)
	case *array.Float32:
		return collect(v, start, end, v.Value, float32(math.NaN()))
	case *array.Float64:
		return collect(v, start, end, v.Value, math.NaN())
	case *array.String:
		return collect(v, start, end, v.Value, "")
	case *array.LargeString:
		return collect(v, start, end, v.Value, "")
	}
	return nil
}

func collect[T any](a arrow.Array, start, end int, value func(int) T, null T) []T {
	out := make([]T, end-start)
	for k := range out {
		if a.IsNull(start + k) {
			out[k] = null
		} else {
			out[k] = value(start + k)
		}
	}
	return out
}

// arrowRecords is a source of record batches.
type arrowRecords interface {
	Next() bool
	Record() arrow.Record
	Err() error
}

// readArrow drains records into a memory table. Schema metadata other
// than arrow's own keys becomes string params.
func readArrow(name string, schema *arrow.Schema, rr arrowRecords) (*table.MemoryTable, error) {
	fields := schema.Fields()
	cols := make([]arrowColumn, len(fields))
	infos := make([]table.ColumnInfo, len(fields))
	for i, f := range fields {
		cols[i] = newArrowColumn(f)
		infos[i] = cols[i].info
	}
	var rows [][]any
	for rr.Next() {
		rec := rr.Record()
		n := int(rec.NumRows())
		for i := 0; i < n; i++ {
			row := make([]any, len(cols))
			for j, c := range cols {
				row[j] = c.value(rec.Column(j), i)
			}
			rows = append(rows, row)
		}
	}
	if err := rr.Err(); err != nil {
		return nil, err
	}
	md := schema.Metadata()
	params := make([]table.Param, 0, md.Len())
	for i, k := range md.Keys() {
		if strings.HasPrefix(k, "ARROW:") {
			continue
		}
		params = append(params, table.Param{
			Info:  table.ValueInfo{Name: k, Kind: table.KindString},
			Value: md.Values()[i],
		})
	}
	return table.NewMemoryTable(name, infos, rows, params...)
}

// arrowType maps a cell kind to the arrow type used when writing.
func arrowType(info table.ColumnInfo) (arrow.DataType, error) {
	var dt arrow.DataType
	switch info.Kind.Scalar() {
	case table.KindBool:
		dt = arrow.FixedWidthTypes.Boolean
	case table.KindInt8:
		dt = arrow.PrimitiveTypes.Int8
	case table.KindInt16:
		dt = arrow.PrimitiveTypes.Int16
	case table.KindInt32:
		dt = arrow.PrimitiveTypes.Int32
	case table.KindInt64:
		dt = arrow.PrimitiveTypes.Int64
	case table.KindFloat32:
		dt = arrow.PrimitiveTypes.Float32
	case table.KindFloat64:
		dt = arrow.PrimitiveTypes.Float64
	case table.KindString:
		dt = arrow.BinaryTypes.String
	default:
		return nil, fmt.Errorf("tableio: column %q has unsupported kind %s", info.Name, info.Kind)
	}
	if info.Kind.IsArray() {
		return arrow.ListOf(dt), nil
	}
	return dt, nil
}

// arrowSchema builds the schema for writing t.
func arrowSchema(t table.Table) (*arrow.Schema, error) {
	fields := make([]arrow.Field, t.ColumnCount())
	for i := range fields {
		info := t.ColumnInfo(i)
		dt, err := arrowType(info)
		if err != nil {
			return nil, err
		}
		var keys, vals []string
		for _, kv := range [][2]string{{"unit", info.Unit}, {"ucd", info.UCD}, {"description", info.Description}} {
			if kv[1] != "" {
				keys = append(keys, kv[0])
				vals = append(vals, kv[1])
			}
		}
		fields[i] = arrow.Field{Name: info.Name, Type: dt, Nullable: true}
		if len(keys) > 0 {
			fields[i].Metadata = arrow.NewMetadata(keys, vals)
		}
	}
	var keys, vals []string
	for _, p := range t.Params() {
		if s, ok := p.Value.(string); ok {
			keys = append(keys, p.Info.Name)
			vals = append(vals, s)
		}
	}
	md := arrow.NewMetadata(keys, vals)
	return arrow.NewSchema(fields, &md), nil
}

// appendCell appends v to a builder created for arrowType.
func appendCell(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	if lb, ok := b.(*array.ListBuilder); ok {
		lb.Append(true)
		vb := lb.ValueBuilder()
		switch x := v.(type) {
		case []bool:
			vb.(*array.BooleanBuilder).AppendValues(x, nil)
		case []int8:
			vb.(*array.Int8Builder).AppendValues(x, nil)
		case []int16:
			vb.(*array.Int16Builder).AppendValues(x, nil)
		case []int32:
			vb.(*array.Int32Builder).AppendValues(x, nil)
		case []int64:
			vb.(*array.Int64Builder).AppendValues(x, nil)
		case []float32:
			vb.(*array.Float32Builder).AppendValues(x, nil)
		case []float64:
			vb.(*array.Float64Builder).AppendValues(x, nil)
		case []string:
			vb.(*array.StringBuilder).AppendValues(x, nil)
		default:
			return fmt.Errorf("tableio: cannot write %T as list", v)
		}
		return nil
	}
	switch bb := b.(type) {
	case *array.BooleanBuilder:
		if x, ok := v.(bool); ok {
			bb.Append(x)
			return nil
		}
	case *array.Int8Builder:
		if x, ok := v.(int8); ok {
			bb.Append(x)
			return nil
		}
	case *array.Int16Builder:
		if x, ok := v.(int16); ok {
			bb.Append(x)
			return nil
		}
	case *array.Int32Builder:
		if x, ok := v.(int32); ok {
			bb.Append(x)
			return nil
		}
	case *array.Int64Builder:
		if x, ok := v.(int64); ok {
			bb.Append(x)
			return nil
		}
	case *array.Float32Builder:
		if x, ok := v.(float32); ok {
			bb.Append(x)
			return nil
		}
	case *array.Float64Builder:
		if x, ok := v.(float64); ok {
			bb.Append(x)
			return nil
		}
	case *array.StringBuilder:
		if x, ok := v.(string); ok {
			bb.Append(x)
			return nil
		}
	}
	return fmt.Errorf("tableio: cannot write %T to %s column", v, b.Type())
}

// newRecordBuilder returns a builder for schema.
func newRecordBuilder(schema *arrow.Schema) *array.RecordBuilder {
	return array.NewRecordBuilder(memory.DefaultAllocator, schema)
}
