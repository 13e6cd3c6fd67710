package table

import (
	"fmt"
	"maps"
	"slices"
)

// VariableDim marks an array dimension whose length differs between cells.
const VariableDim = -1

// ValueInfo describes a typed, named value: a table column or parameter.
//
// ValueInfo is treated as immutable once attached to a table. Use Clone or
// the With* helpers to derive an enhanced copy.
type ValueInfo struct {
	Name        string
	Kind        Kind
	Unit        string
	UCD         string
	Utype       string
	Description string

	// Shape gives array dimensions for array kinds; nil for scalars and for
	// arrays of unknown shape. The last element may be VariableDim.
	Shape []int

	// Nullable reports whether cells may be nil.
	Nullable bool

	// Aux holds auxiliary metadata such as a numeric converter.
	Aux map[string]any
}

// ColumnInfo describes a table column.
type ColumnInfo = ValueInfo

// Clone returns a deep copy of the info.
func (v ValueInfo) Clone() ValueInfo {
	c := v
	c.Shape = slices.Clone(v.Shape)
	c.Aux = maps.Clone(v.Aux)
	return c
}

// WithShape returns a copy of the info with the given array shape.
func (v ValueInfo) WithShape(shape ...int) ValueInfo {
	c := v.Clone()
	c.Shape = slices.Clone(shape)
	return c
}

// WithName returns a copy of the info with a new name.
func (v ValueInfo) WithName(name string) ValueInfo {
	c := v.Clone()
	c.Name = name
	return c
}

// WithKind returns a copy of the info with a new kind.
func (v ValueInfo) WithKind(k Kind) ValueInfo {
	c := v.Clone()
	c.Kind = k
	return c
}

// FixedLength returns the element count of a fixed-shape array, or -1 if
// the info is scalar or has unknown or variable shape.
func (v ValueInfo) FixedLength() int {
	if !v.Kind.IsArray() || len(v.Shape) == 0 {
		return -1
	}
	n := 1
	for _, d := range v.Shape {
		if d < 0 {
			return -1
		}
		n *= d
	}
	return n
}

func (v ValueInfo) String() string {
	s := v.Name + "(" + v.Kind.String()
	if len(v.Shape) > 0 {
		s += fmt.Sprint(v.Shape)
	}
	return s + ")"
}

// Param is a described value attached to a table.
type Param struct {
	Info  ValueInfo
	Value any
}

// NewColumn returns a ColumnInfo with the given name and kind.
func NewColumn(name string, kind Kind) ColumnInfo {
	return ColumnInfo{Name: name, Kind: kind}
}
