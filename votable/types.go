package votable

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hupe1980/startable/table"
)

var datatypeKinds = map[string]table.Kind{
	"boolean":      table.KindBool,
	"bit":          table.KindBool,
	"unsignedByte": table.KindInt16,
	"short":        table.KindInt16,
	"int":          table.KindInt32,
	"long":         table.KindInt64,
	"float":        table.KindFloat32,
	"double":       table.KindFloat64,
	"char":         table.KindString,
	"unicodeChar":  table.KindString,
}

// parseArraysize decodes an arraysize attribute such as "3x4" or "5x*".
// Variable dimensions become table.VariableDim.
func parseArraysize(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "x")
	dims := make([]int, len(parts))
	for i, p := range parts {
		if strings.HasSuffix(p, "*") {
			dims[i] = table.VariableDim
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			dims[i] = table.VariableDim
			continue
		}
		dims[i] = n
	}
	return dims
}

func formatArraysize(dims []int) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		if d < 0 {
			parts[i] = "*"
		} else {
			parts[i] = strconv.Itoa(d)
		}
	}
	return strings.Join(parts, "x")
}

// decodeType maps datatype and arraysize to a kind and array shape.
// For character data the first dimension is the string length.
func decodeType(datatype, arraysize string) (table.Kind, []int) {
	kind, ok := datatypeKinds[datatype]
	if !ok {
		return table.KindInvalid, nil
	}
	dims := parseArraysize(arraysize)
	if kind == table.KindString {
		if len(dims) <= 1 {
			return table.KindString, nil
		}
		return table.KindStringArray, dims[1:]
	}
	if len(dims) == 0 || (len(dims) == 1 && dims[0] == 1 && arraysize == "1") {
		return kind, nil
	}
	return kind.Array(), dims
}

// encodeType maps a column kind and shape to datatype and arraysize.
// Signed bytes are widened to short, which has no signed byte counterpart.
func encodeType(info table.ColumnInfo) (datatype, arraysize string, err error) {
	switch info.Kind.Scalar() {
	case table.KindBool:
		datatype = "boolean"
	case table.KindInt8, table.KindInt16:
		datatype = "short"
	case table.KindInt32:
		datatype = "int"
	case table.KindInt64:
		datatype = "long"
	case table.KindFloat32:
		datatype = "float"
	case table.KindFloat64:
		datatype = "double"
	case table.KindString:
		datatype = "char"
	default:
		return "", "", fmt.Errorf("votable: unsupported kind %s for %q", info.Kind, info.Name)
	}
	var dims []int
	if info.Kind.IsArray() {
		dims = info.Shape
		if len(dims) == 0 {
			dims = []int{table.VariableDim}
		}
	}
	if info.Kind.Scalar() == table.KindString {
		dims = append([]int{table.VariableDim}, dims...)
	}
	return datatype, formatArraysize(dims), nil
}

// ParseValue decodes a PARAM value string according to info.
func ParseValue(info table.ColumnInfo, s string) (any, error) {
	if info.Kind == table.KindString {
		return s, nil
	}
	if !info.Kind.IsArray() {
		return parseScalar(info.Kind, strings.TrimSpace(s))
	}
	fields := strings.Fields(s)
	switch info.Kind.Scalar() {
	case table.KindBool:
		return parseSlice(fields, func(f string) (bool, error) { return parseBool(f) })
	case table.KindInt8:
		return parseSlice(fields, func(f string) (int8, error) { v, err := strconv.ParseInt(f, 10, 8); return int8(v), err })
	case table.KindInt16:
		return parseSlice(fields, func(f string) (int16, error) { v, err := strconv.ParseInt(f, 10, 16); return int16(v), err })
	case table.KindInt32:
		return parseSlice(fields, func(f string) (int32, error) { v, err := strconv.ParseInt(f, 10, 32); return int32(v), err })
	case table.KindInt64:
		return parseSlice(fields, func(f string) (int64, error) { return strconv.ParseInt(f, 10, 64) })
	case table.KindFloat32:
		return parseSlice(fields, func(f string) (float32, error) { v, err := strconv.ParseFloat(f, 32); return float32(v), err })
	case table.KindFloat64:
		return parseSlice(fields, func(f string) (float64, error) { return strconv.ParseFloat(f, 64) })
	case table.KindString:
		return fields, nil
	}
	return nil, fmt.Errorf("votable: cannot parse value of kind %s", info.Kind)
}

func parseSlice[T any](fields []string, parse func(string) (T, error)) ([]T, error) {
	out := make([]T, len(fields))
	for i, f := range fields {
		v, err := parse(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "t", "true", "1":
		return true, nil
	case "f", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("votable: bad boolean %q", s)
}

func parseScalar(k table.Kind, s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	switch k {
	case table.KindBool:
		return parseBool(s)
	case table.KindInt8:
		v, err := strconv.ParseInt(s, 10, 8)
		return int8(v), err
	case table.KindInt16:
		v, err := strconv.ParseInt(s, 10, 16)
		return int16(v), err
	case table.KindInt32:
		v, err := strconv.ParseInt(s, 10, 32)
		return int32(v), err
	case table.KindInt64:
		return strconv.ParseInt(s, 10, 64)
	case table.KindFloat32:
		v, err := strconv.ParseFloat(s, 32)
		return float32(v), err
	case table.KindFloat64:
		return strconv.ParseFloat(s, 64)
	}
	return nil, fmt.Errorf("votable: cannot parse value of kind %s", k)
}

// FormatValue renders a cell value as PARAM value text. Arrays are space
// separated.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "T"
		}
		return "F"
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case []bool:
		return joinValues(x)
	case []int8:
		return joinValues(x)
	case []int16:
		return joinValues(x)
	case []int32:
		return joinValues(x)
	case []int64:
		return joinValues(x)
	case []float32:
		return joinValues(x)
	case []float64:
		return joinValues(x)
	case []string:
		return strings.Join(x, " ")
	}
	return fmt.Sprint(v)
}

func joinValues[T any](xs []T) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = FormatValue(x)
	}
	return strings.Join(parts, " ")
}
