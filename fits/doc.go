// Package fits reads and writes the parts of the FITS format needed to store
// tables: 80-byte header cards grouped into 2880-byte blocks, and BINTABLE
// extensions holding fixed-width big-endian rows.
//
// A BINTABLE can be opened for random access over an io.ReaderAt or streamed
// once over an io.Reader. Column formats L, B, I, J, K, E, D and A are
// supported, with repeat counts, TDIM shapes, TNULL integer nulls and
// TSCAL/TZERO scaling. Variable-length array descriptors, bit and complex
// columns are rejected as format errors.
package fits
