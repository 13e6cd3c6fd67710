package table

import "fmt"

// Kind identifies the content class of a column or parameter.
//
// Scalar kinds map to a single Go value per cell; each scalar kind has an
// array counterpart whose cells hold a slice of the scalar type.
type Kind uint8

const (
	// KindInvalid represents an unknown or unsupported content class.
	KindInvalid Kind = iota
	// KindBool holds bool cells.
	KindBool
	// KindInt8 holds int8 cells.
	KindInt8
	// KindInt16 holds int16 cells.
	KindInt16
	// KindInt32 holds int32 cells.
	KindInt32
	// KindInt64 holds int64 cells.
	KindInt64
	// KindFloat32 holds float32 cells.
	KindFloat32
	// KindFloat64 holds float64 cells.
	KindFloat64
	// KindString holds string cells.
	KindString

	// arrayBit marks the array form of a scalar kind.
	arrayBit Kind = 0x80
)

// Array form of each scalar kind.
const (
	KindBoolArray    = KindBool | arrayBit
	KindInt8Array    = KindInt8 | arrayBit
	KindInt16Array   = KindInt16 | arrayBit
	KindInt32Array   = KindInt32 | arrayBit
	KindInt64Array   = KindInt64 | arrayBit
	KindFloat32Array = KindFloat32 | arrayBit
	KindFloat64Array = KindFloat64 | arrayBit
	KindStringArray  = KindString | arrayBit
)

// IsArray reports whether k is an array kind.
func (k Kind) IsArray() bool { return k&arrayBit != 0 && k.Scalar().Valid() }

// Scalar returns the element kind of an array kind, or k itself.
func (k Kind) Scalar() Kind { return k &^ arrayBit }

// Array returns the array kind whose elements are of kind k.
func (k Kind) Array() Kind {
	if !k.Scalar().Valid() {
		return KindInvalid
	}
	return k.Scalar() | arrayBit
}

// Valid reports whether k (or its element kind) is a known content class.
func (k Kind) Valid() bool {
	s := k &^ arrayBit
	return s >= KindBool && s <= KindString
}

// IsNumeric reports whether k is an integer or floating point scalar kind.
func (k Kind) IsNumeric() bool {
	return k >= KindInt8 && k <= KindFloat64
}

// IsInteger reports whether k is an integer scalar kind.
func (k Kind) IsInteger() bool {
	return k >= KindInt8 && k <= KindInt64
}

func (k Kind) String() string {
	var name string
	switch k.Scalar() {
	case KindBool:
		name = "bool"
	case KindInt8:
		name = "int8"
	case KindInt16:
		name = "int16"
	case KindInt32:
		name = "int32"
	case KindInt64:
		name = "int64"
	case KindFloat32:
		name = "float32"
	case KindFloat64:
		name = "float64"
	case KindString:
		name = "string"
	default:
		return fmt.Sprintf("invalid(%d)", uint8(k))
	}
	if k.IsArray() {
		return "[]" + name
	}
	return name
}

// KindOf returns the kind of a cell value, or KindInvalid for nil and
// unsupported types.
func KindOf(v any) Kind {
	switch v.(type) {
	case bool:
		return KindBool
	case int8:
		return KindInt8
	case int16:
		return KindInt16
	case int32:
		return KindInt32
	case int64:
		return KindInt64
	case float32:
		return KindFloat32
	case float64:
		return KindFloat64
	case string:
		return KindString
	case []bool:
		return KindBoolArray
	case []int8:
		return KindInt8Array
	case []int16:
		return KindInt16Array
	case []int32:
		return KindInt32Array
	case []int64:
		return KindInt64Array
	case []float32:
		return KindFloat32Array
	case []float64:
		return KindFloat64Array
	case []string:
		return KindStringArray
	default:
		return KindInvalid
	}
}

// ArrayLen returns the length of an array cell value, or -1 if v is not
// an array value.
func ArrayLen(v any) int {
	switch a := v.(type) {
	case []bool:
		return len(a)
	case []int8:
		return len(a)
	case []int16:
		return len(a)
	case []int32:
		return len(a)
	case []int64:
		return len(a)
	case []float32:
		return len(a)
	case []float64:
		return len(a)
	case []string:
		return len(a)
	default:
		return -1
	}
}

// AsFloat64 converts a numeric scalar cell to float64.
// ok is false for nil, non-numeric and array values.
func AsFloat64(v any) (f float64, ok bool) {
	switch x := v.(type) {
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}

// AsInt64 converts an integer scalar cell to int64.
// Floating point values are truncated.
func AsInt64(v any) (i int64, ok bool) {
	switch x := v.(type) {
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case float32:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}
