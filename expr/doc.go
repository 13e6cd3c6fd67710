// Package expr evaluates Go expressions against table rows.
//
// An expression is compiled once for a column list and then evaluated per
// row. Every column is visible as a typed variable named after the column,
// with characters outside [A-Za-z0-9_] replaced by '_'. Null numeric cells
// read as NaN for floating point columns and zero otherwise; use
// isNull("name") to tell them apart. col("name") returns the raw cell of any
// column, including those whose name is not a valid identifier.
//
//	e, err := expr.Compile(cols, `fmt.Sprintf("s3://spectra/%d.fits", id)`)
//	loc, err := e.StringFunc()(ctx, row)
//
// The packages fmt, math, strconv and strings are always imported.
// Expressions are interpreted with yaegi.
package expr
