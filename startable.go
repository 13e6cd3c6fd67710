package startable

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hupe1980/startable/arrayjoin"
	"github.com/hupe1980/startable/bin"
	"github.com/hupe1980/startable/blobstore"
	"github.com/hupe1980/startable/blobstore/minio"
	"github.com/hupe1980/startable/blobstore/s3"
	"github.com/hupe1980/startable/expr"
	"github.com/hupe1980/startable/fits"
	"github.com/hupe1980/startable/fitsplus"
	"github.com/hupe1980/startable/internal/cache"
	"github.com/hupe1980/startable/table"
	"github.com/hupe1980/startable/tableio"
)

// Format names accepted by WithFormat and Write.
const (
	FormatFitsPlus = "fits-plus"
	FormatFITS     = "fits"
	FormatParquet  = "parquet"
	FormatCSV      = "csv"
)

// DefaultBuilders returns the built-in format builders in detection order.
func DefaultBuilders() []tableio.Builder {
	return []tableio.Builder{
		fitsplus.Builder{},
		tableio.FITSBuilder{},
		tableio.ParquetBuilder{},
		tableio.CSVBuilder{},
	}
}

// NewRegistry returns a registry with the default builders, the mounted
// stores of WithStores and a dialer for s3:// and minio:// locations.
func NewRegistry(opts ...Option) *tableio.Registry {
	return newRegistry(applyOptions(opts))
}

func newRegistry(o options) *tableio.Registry {
	if o.registry != nil {
		return o.registry
	}
	res := tableio.NewResolver(dialer(o))
	for prefix, s := range o.stores {
		res.Mount(prefix, s)
	}
	return tableio.NewRegistry(res, DefaultBuilders(), tableio.WithLogger(o.logger.Logger))
}

// dialer connects remote stores on first use of a bucket.
func dialer(o options) tableio.DialFunc {
	return func(ctx context.Context, scheme, bucket string) (blobstore.BlobStore, error) {
		var store blobstore.BlobStore
		switch scheme {
		case "s3":
			s, err := s3.New(ctx, bucket, o.s3Options...)
			if err != nil {
				return nil, err
			}
			store = s
		case "minio":
			endpoint := o.minioEndpoint
			if endpoint == "" {
				endpoint = os.Getenv("MINIO_ENDPOINT")
			}
			if endpoint == "" {
				return nil, fmt.Errorf("%w: no MinIO endpoint for bucket %q", tableio.ErrNoStore, bucket)
			}
			var minioOpts []func(*minio.Options)
			if key := os.Getenv("MINIO_ACCESS_KEY"); key != "" {
				minioOpts = append(minioOpts, minio.WithCredentials(key, os.Getenv("MINIO_SECRET_KEY")))
			}
			s, err := minio.Dial(endpoint, bucket, append(minioOpts, o.minioOptions...)...)
			if err != nil {
				return nil, err
			}
			store = s
		default:
			return nil, fmt.Errorf("%w: scheme %q", tableio.ErrNoStore, scheme)
		}
		if o.blockCache > 0 {
			store = blobstore.NewCachingStore(store, cache.NewLRU(o.blockCache), o.blockSize)
		}
		o.logger.Debug("store connected", "scheme", scheme, "bucket", bucket)
		return store, nil
	}
}

// Open opens the table at location.
//
// Example:
//
//	t, err := startable.Open(ctx, "s3://survey/cat.fits.gz", startable.WithRandomAccess())
//	if err != nil {
//	    return err
//	}
//	defer t.Close()
func Open(ctx context.Context, location string, opts ...Option) (table.Table, error) {
	o := applyOptions(opts)
	reg := newRegistry(o)

	start := time.Now()
	t, err := reg.Open(ctx, location, o.format, o.random)
	o.metricsCollector.RecordLoad(o.format, time.Since(start), err)
	o.logger.LogLoad(ctx, location, o.format, err)
	if err != nil {
		return nil, &ErrOpen{Location: location, cause: translateError(err)}
	}
	if o.progress != nil {
		return table.NewProgressTable(t, o.progress), nil
	}
	return t, nil
}

// ArrayJoin adds array columns to base from the external tables named by
// the location expression, evaluated per row. An expression value of ""
// (or nil) means the row has no external table.
//
// ArrayJoin takes ownership of base; see arrayjoin.New.
//
// Example:
//
//	t, err := startable.ArrayJoin(ctx, cat, `fmt.Sprintf("s3://spectra/%d.fits", specid)`,
//	    startable.WithJoinOptions(arrayjoin.WithKeepAll(false)))
func ArrayJoin(ctx context.Context, base table.Table, location string, opts ...Option) (table.Table, error) {
	o := applyOptions(opts)
	name, ncol := base.Name(), base.ColumnCount()

	e, err := expr.Compile(table.Columns(base), location, o.exprOptions...)
	if err != nil {
		_ = base.Close()
		o.logger.LogJoin(ctx, name, 0, err)
		return nil, err
	}
	load := newRegistry(o).Loader(false)
	if o.loaderCache > 0 {
		load = tableio.NewCachedLoader(load, o.loaderCache).Loader()
	}
	joinOpts := append([]func(*arrayjoin.Options){arrayjoin.WithLogger(o.logger.Logger)}, o.joinOptions...)

	start := time.Now()
	t, err := arrayjoin.New(ctx, base, e.StringFunc(), load, joinOpts...)
	if err != nil {
		err = translateError(err)
		o.logger.LogJoin(ctx, name, 0, err)
		return nil, err
	}
	if n := t.RowCount(); n >= 0 {
		o.metricsCollector.RecordRows("arrayjoin", n, time.Since(start))
	}
	o.logger.LogJoin(ctx, name, t.ColumnCount()-ncol, nil)
	if o.progress != nil {
		return table.NewProgressTable(t, o.progress), nil
	}
	return t, nil
}

// Binning configures Histogram.
type Binning struct {
	// Width is the linear bin width.
	Width float64
	// ZeroMid centres a linear bin on zero.
	ZeroMid bool
	// LogFactor selects logarithmic bins of this ratio when > 1.
	LogFactor float64
	// Weight names a weight column; empty means unit weights.
	Weight string
	// Subsets are boolean expressions, one per subset. None means a
	// single subset holding every row.
	Subsets []string
}

// Histogram bins the values of column in t.
func Histogram(ctx context.Context, t table.Table, column string, b Binning, opts ...Option) (*bin.MapBinnedData, error) {
	o := applyOptions(opts)

	icol, err := table.ColumnIndex(t, column)
	if err != nil {
		return nil, &ErrColumn{Table: t.Name(), Column: column}
	}
	iw := -1
	if b.Weight != "" {
		if iw, err = table.ColumnIndex(t, b.Weight); err != nil {
			return nil, &ErrColumn{Table: t.Name(), Column: b.Weight}
		}
	}
	preds := make([]table.RowPredicate, len(b.Subsets))
	for i, src := range b.Subsets {
		e, err := expr.Compile(table.Columns(t), src, o.exprOptions...)
		if err != nil {
			return nil, err
		}
		preds[i] = e.BoolFunc()
	}

	var data *bin.MapBinnedData
	nset := max(len(b.Subsets), 1)
	if b.LogFactor > 1 {
		data, err = bin.NewLogBinnedData(nset, b.LogFactor)
	} else {
		data, err = bin.NewLinearBinnedData(nset, b.Width, b.ZeroMid)
	}
	if err != nil {
		return nil, err
	}

	var src table.Table = t
	if o.progress != nil {
		src = table.NewProgressTable(t, o.progress)
	}
	start := time.Now()
	n, err := bin.Fill(ctx, data, src, icol, func(fo *bin.FillOptions) {
		fo.WeightColumn = iw
		fo.Subsets = preds
	})
	o.metricsCollector.RecordRows("histogram", n, time.Since(start))
	o.logger.LogScan(ctx, t.Name(), n, err)
	if err != nil {
		return nil, translateError(err)
	}
	return data, nil
}

// Write writes t to w in the named format: fits-plus (the default), fits
// or parquet.
func Write(ctx context.Context, w io.Writer, t table.Table, format string) error {
	var err error
	switch strings.ToLower(format) {
	case "", FormatFitsPlus:
		_, err = fitsplus.Write(ctx, w, t)
	case FormatFITS:
		_, err = fits.Write(ctx, w, t)
	case FormatParquet:
		err = tableio.WriteParquet(ctx, w, t)
	default:
		return fmt.Errorf("%w: cannot write %q", ErrUnknownFormat, format)
	}
	return translateError(err)
}
