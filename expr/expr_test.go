package expr

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hupe1980/startable/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []table.ColumnInfo{
	{Name: "id", Kind: table.KindInt32},
	{Name: "ra", Kind: table.KindFloat64},
	{Name: "obs-name", Kind: table.KindString},
	{Name: "spec", Kind: table.KindFloat32Array},
	{Name: "len", Kind: table.KindBool},
}

func TestIdentifier(t *testing.T) {
	used := map[string]bool{"math": true}
	assert.Equal(t, "ra", Identifier("ra", used))
	assert.Equal(t, "obs_name", Identifier("obs-name", used))
	assert.Equal(t, "_2MASS_J", Identifier("2MASS J", used))
	assert.Equal(t, "type_", Identifier("type", used))
	assert.Equal(t, "len_", Identifier("len", used))
	assert.Equal(t, "math_2", Identifier("math", used))
	assert.Equal(t, "ra_2", Identifier("ra", used))
	assert.Equal(t, "_", Identifier("", used))
}

func TestEval(t *testing.T) {
	row := []any{int32(7), 12.5, "M31", []float32{1, 2}, true}

	tests := []struct {
		name string
		src  string
		want any
	}{
		{"arithmetic", "float64(id) * 2", 14.0},
		{"sanitized name", `obs_name + "!"`, "M31!"},
		{"raw cell", `col("obs-name")`, "M31"},
		{"array", "len(spec)", 2},
		{"renamed keyword", "len_ && ra > 10", true},
		{"fmt", `fmt.Sprintf("mem://spec_%03d.fits", id)`, "mem://spec_007.fits"},
		{"strings", `strings.ToLower(obs_name)`, "m31"},
		{"math", "math.Floor(ra)", 12.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Compile(columns, tt.src)
			require.NoError(t, err)
			got, err := e.Eval(row)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEval_Nulls(t *testing.T) {
	row := []any{nil, nil, nil, nil, nil}

	e, err := Compile(columns, "math.IsNaN(ra) && id == 0 && spec == nil && isNull(\"id\")")
	require.NoError(t, err)
	got, err := e.Eval(row)
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestCompile_Errors(t *testing.T) {
	_, err := Compile(columns, "")
	assert.ErrorIs(t, err, ErrCompile)

	_, err = Compile(columns, "ra +")
	assert.ErrorIs(t, err, ErrCompile)

	_, err = Compile(columns, "undefined * 2")
	assert.ErrorIs(t, err, ErrCompile)

	_, err = Compile(columns, "ra", WithImports("no/such/pkg"))
	assert.ErrorIs(t, err, ErrCompile)

	e, err := Compile(columns, "path.Base(obs_name)", WithImports("path"))
	require.NoError(t, err)
	got, err := e.Eval([]any{int32(1), 1.0, "a/b", nil, false})
	require.NoError(t, err)
	assert.Equal(t, "b", got)
}

func TestEval_Failures(t *testing.T) {
	ctx := context.Background()

	e, err := Compile(columns, `col("missing")`)
	require.NoError(t, err)
	_, err = e.Eval([]any{int32(1), 1.0, "x", nil, false})
	var evalErr *EvalError
	require.True(t, errors.As(err, &evalErr))
	assert.Contains(t, err.Error(), "missing")

	_, err = e.Eval([]any{1})
	assert.True(t, errors.As(err, &evalErr))

	num, err := Compile(columns, "ra")
	require.NoError(t, err)
	_, err = num.StringFunc()(ctx, []any{int32(1), 1.0, "x", nil, false})
	assert.True(t, errors.As(err, &evalErr))
	_, err = num.BoolFunc()(ctx, []any{int32(1), 1.0, "x", nil, false})
	assert.True(t, errors.As(err, &evalErr))
}

func TestAdapters(t *testing.T) {
	ctx := context.Background()
	row := []any{int32(3), 1.5, "", nil, false}

	loc, err := Compile(columns, `func() interface{} { if obs_name == "" { return nil }; return obs_name }()`)
	require.NoError(t, err)
	s, err := loc.StringFunc()(ctx, row)
	require.NoError(t, err)
	assert.Equal(t, "", s)

	pred, err := Compile(columns, "id > 2")
	require.NoError(t, err)
	ok, err := pred.BoolFunc()(ctx, row)
	require.NoError(t, err)
	assert.True(t, ok)

	f, err := Compile(columns, "ra * 2")
	require.NoError(t, err)
	v, err := f.Func()(ctx, row)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = f.Func()(cancelled, row)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEval_NaNResult(t *testing.T) {
	e, err := Compile(columns, "ra")
	require.NoError(t, err)
	v, err := e.Eval([]any{int32(0), nil, "", nil, false})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v.(float64)))
}
