// Package startable reads astronomical tables for streaming and random
// access.
//
// Tables are opened by location from local files, S3, MinIO or mounted
// in-memory stores, with gzip, zstd and LZ4 input decompressed on the fly.
// Formats are detected from the first bytes: fits-plus (FITS binary tables
// with embedded VOTable metadata), plain FITS BINTABLE, parquet and CSV.
//
// # Quick Start
//
//	ctx := context.Background()
//	t, _ := startable.Open(ctx, "cat.fits", startable.WithRandomAccess())
//	defer t.Close()
//	row, _ := t.Row(ctx, 0)
//
// # Array Join
//
// ArrayJoin turns per-row external tables into array columns. The location
// is a Go expression over the row's columns:
//
//	t, _ := startable.ArrayJoin(ctx, cat, `fmt.Sprintf("s3://spectra/%06d.fits", specid)`,
//	    startable.WithLoaderCache(64))
//
// # Histograms
//
//	data, _ := startable.Histogram(ctx, t, "mag", startable.Binning{
//	    Width:   0.5,
//	    Subsets: []string{"ra < 180", "ra >= 180"},
//	})
//	for b := range data.Bins(true) {
//	    fmt.Println(b.Low, b.High, b.Counts)
//	}
//
// # Packages
//
//   - table: the Table and RowSequence model and wrapper tables
//   - bin: binned data and bin mappers
//   - fits, votable, fitsplus: FITS and fits-plus codecs
//   - arrayjoin: the array-join table
//   - expr: row expressions
//   - tableio, blobstore: locations, stores and format detection
package startable
