// Package tableio opens tables from locations.
//
// A location is a local path, a file:// URL or a scheme://bucket/key URL
// served by a mounted or dialed blob store, optionally followed by
// "#position" (an HDU index for FITS files). Gzip, zstd and LZ4 frame
// compression is detected from the leading bytes and removed
// transparently; compressed sources only support streaming reads.
//
// A Registry holds an ordered list of format Builders. Opening with
// AutoFormat tries each builder whose Looks method accepts the first
// decompressed bytes.
//
// # Built-in Builders
//
//   - FITSBuilder: BINTABLE extensions of FITS files
//   - ParquetBuilder: parquet files via arrow
//   - CSVBuilder: delimited text with a header line
package tableio
