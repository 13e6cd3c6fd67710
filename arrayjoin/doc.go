// Package arrayjoin adds array-valued columns to a table from external
// tables located per row.
//
// For every base row a LocationFunc names an external table, or none. The
// first external table that loads is the template: each of its scalar
// columns becomes an array column holding that column's values, and
// parameters matching Options.ParamPattern become scalar columns. Rows
// without data hold nil cells, or are dropped when KeepAll is false.
//
// Array lengths are tracked while reading. A column whose arrays all have
// the same length gets that length as its shape, but only once a complete
// pass has been made, which Cache mode does up front.
package arrayjoin
