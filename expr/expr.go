package expr

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"reflect"
	"strings"
	"sync"

	"github.com/hupe1980/startable/table"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// ErrCompile is returned when an expression cannot be compiled.
var ErrCompile = errors.New("expr: compile error")

// EvalError reports a failed evaluation: a runtime panic inside the
// expression or a result of the wrong type.
type EvalError struct {
	Expr  string
	cause error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("expr: evaluate %q: %v", e.Expr, e.cause)
}

func (e *EvalError) Unwrap() error { return e.cause }

// Options configures Compile.
type Options struct {
	// Imports lists extra standard library packages made available.
	Imports []string
}

// WithImports adds standard library packages to the expression scope.
func WithImports(pkgs ...string) func(o *Options) {
	return func(o *Options) {
		o.Imports = append(o.Imports, pkgs...)
	}
}

var baseImports = []string{"fmt", "math", "strconv", "strings"}

// reserved names cannot be used for column variables.
var reserved = map[string]bool{
	"row": true, "names": true, "col": true, "isNull": true, "v": true, "ok": true,
	"true": true, "false": true, "nil": true, "iota": true,
	"len": true, "cap": true, "append": true, "make": true, "new": true,
	"min": true, "max": true, "copy": true, "delete": true, "panic": true,
	"string": true, "int": true, "float64": true, "bool": true, "byte": true,
}

type evalFunc = func(row []interface{}, names map[string]int) interface{}

// Expr is a compiled row expression. It is safe for concurrent use;
// evaluations are serialized.
type Expr struct {
	src   string
	names map[string]int
	vars  []string

	mu sync.Mutex
	fn evalFunc
}

// Compile compiles src for rows described by columns.
func Compile(columns []table.ColumnInfo, src string, optFns ...func(o *Options)) (*Expr, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrCompile)
	}

	e := &Expr{src: src, names: make(map[string]int, len(columns))}
	used := make(map[string]bool)
	for _, p := range append(append([]string(nil), baseImports...), opts.Imports...) {
		used[p[strings.LastIndexByte(p, '/')+1:]] = true
	}
	for i, c := range columns {
		if _, dup := e.names[c.Name]; !dup {
			e.names[c.Name] = i
		}
		e.vars = append(e.vars, Identifier(c.Name, used))
	}

	code, err := e.generate(columns, opts.Imports)
	if err != nil {
		return nil, err
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, err
	}
	if _, err := i.Eval(code); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCompile, src, err)
	}
	v, err := i.Eval("rowexpr.Eval")
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCompile, src, err)
	}
	fn, ok := v.Interface().(evalFunc)
	if !ok {
		return nil, fmt.Errorf("%w: %q: unexpected function type %s", ErrCompile, src, v.Type())
	}
	e.fn = fn
	return e, nil
}

// Identifier derives a Go identifier from a column name. used records the
// identifiers already taken and is updated.
func Identifier(name string, used map[string]bool) string {
	var sb strings.Builder
	for _, r := range name {
		if r == '_' || r < 128 && (r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	id := sb.String()
	if id == "" || id[0] >= '0' && id[0] <= '9' {
		id = "_" + id
	}
	if token.IsKeyword(id) || reserved[id] {
		id += "_"
	}
	base := id
	for n := 2; used[id]; n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	used[id] = true
	return id
}

// goType returns the Go type of cells of kind k, and the value used for
// null cells.
func goType(k table.Kind) (typ, null string, ok bool) {
	switch k {
	case table.KindBool:
		return "bool", "false", true
	case table.KindInt8, table.KindInt16, table.KindInt32, table.KindInt64:
		return k.String(), "0", true
	case table.KindFloat32:
		return "float32", "float32(math.NaN())", true
	case table.KindFloat64:
		return "float64", "math.NaN()", true
	case table.KindString:
		return "string", `""`, true
	}
	if k.IsArray() {
		return k.String(), "nil", true
	}
	return "", "", false
}

func (e *Expr) generate(columns []table.ColumnInfo, extra []string) (string, error) {
	var sb strings.Builder
	sb.WriteString("package rowexpr\n\nimport (\n")
	for _, p := range append(append([]string(nil), baseImports...), extra...) {
		fmt.Fprintf(&sb, "\t%q\n", p)
	}
	sb.WriteString(")\n\n")
	for _, p := range append(append([]string(nil), baseImports...), extra...) {
		sym := anyFunc(p)
		if sym == "" {
			return "", fmt.Errorf("%w: package %q not available", ErrCompile, p)
		}
		fmt.Fprintf(&sb, "var _ = %s.%s\n", p[strings.LastIndexByte(p, '/')+1:], sym)
	}
	sb.WriteString(`
func Eval(row []interface{}, names map[string]int) interface{} {
	col := func(name string) interface{} {
		if i, ok := names[name]; ok {
			return row[i]
		}
		panic("no column " + strconv.Quote(name))
	}
	isNull := func(name string) bool { return col(name) == nil }
	_, _ = col, isNull
`)
	for i, c := range columns {
		typ, null, ok := goType(c.Kind)
		if !ok {
			typ, null = "interface{}", "nil"
		}
		id := e.vars[i]
		fmt.Fprintf(&sb, "\tvar %s %s = %s\n", id, typ, null)
		if typ == "interface{}" {
			fmt.Fprintf(&sb, "\t%s = row[%d]\n", id, i)
		} else {
			fmt.Fprintf(&sb, "\tif v, ok := row[%d].(%s); ok {\n\t\t%s = v\n\t}\n", i, typ, id)
		}
		fmt.Fprintf(&sb, "\t_ = %s\n", id)
	}
	fmt.Fprintf(&sb, "\treturn (%s)\n}\n", e.src)
	return sb.String(), nil
}

// anyFunc names an exported function of a standard package, so the
// import is always used. It returns "" for unknown packages.
func anyFunc(pkg string) string {
	best := ""
	for name, v := range stdlib.Symbols[pkg+"/"+pkg[strings.LastIndexByte(pkg, '/')+1:]] {
		if v.Kind() == reflect.Func && (best == "" || name < best) {
			best = name
		}
	}
	return best
}

// Source returns the expression text.
func (e *Expr) Source() string { return e.src }

// Variables returns the identifier bound to each column, in column order.
func (e *Expr) Variables() []string { return append([]string(nil), e.vars...) }

// Eval evaluates the expression for one row.
func (e *Expr) Eval(row []any) (result any, err error) {
	if len(row) != len(e.vars) {
		return nil, &EvalError{Expr: e.src, cause: &table.ErrRowArity{Expected: len(e.vars), Actual: len(row)}}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, &EvalError{Expr: e.src, cause: fmt.Errorf("panic: %v", r)}
		}
	}()
	return e.fn(row, e.names), nil
}

// Func adapts the expression to a table.RowFunc.
func (e *Expr) Func() table.RowFunc {
	return func(ctx context.Context, row []any) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return e.Eval(row)
	}
}

// StringFunc adapts a string-valued expression. A nil result yields "".
func (e *Expr) StringFunc() func(ctx context.Context, row []any) (string, error) {
	return func(ctx context.Context, row []any) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		v, err := e.Eval(row)
		if err != nil || v == nil {
			return "", err
		}
		s, ok := v.(string)
		if !ok {
			return "", &EvalError{Expr: e.src, cause: fmt.Errorf("result is %T, not string", v)}
		}
		return s, nil
	}
}

// BoolFunc adapts a boolean expression to a table.RowPredicate. A nil
// result counts as false.
func (e *Expr) BoolFunc() table.RowPredicate {
	return func(ctx context.Context, row []any) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		v, err := e.Eval(row)
		if err != nil || v == nil {
			return false, err
		}
		b, ok := v.(bool)
		if !ok {
			return false, &EvalError{Expr: e.src, cause: fmt.Errorf("result is %T, not bool", v)}
		}
		return b, nil
	}
}
