package startable

import (
	"log/slog"

	"github.com/hupe1980/startable/arrayjoin"
	"github.com/hupe1980/startable/blobstore"
	"github.com/hupe1980/startable/blobstore/minio"
	"github.com/hupe1980/startable/blobstore/s3"
	"github.com/hupe1980/startable/expr"
	"github.com/hupe1980/startable/table"
	"github.com/hupe1980/startable/tableio"
)

type options struct {
	registry         *tableio.Registry
	stores           map[string]blobstore.BlobStore
	metricsCollector MetricsCollector
	logger           *Logger
	progress         table.ProgressFunc
	format           string
	random           bool
	s3Options        []func(*s3.Options)
	minioEndpoint    string
	minioOptions     []func(*minio.Options)
	blockCache       int64
	blockSize        int64
	loaderCache      int
	joinOptions      []func(*arrayjoin.Options)
	exprOptions      []func(*expr.Options)
}

// Option configures Open, ArrayJoin, Histogram and NewRegistry.
type Option func(*options)

// WithRegistry uses an existing registry instead of building one from the
// store options.
func WithRegistry(r *tableio.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithStores mounts blob stores by location prefix, e.g.
// "mem://" or "s3://catalogues/". Longer prefixes win.
//
// Example:
//
//	store := blobstore.NewMemoryStore()
//	_ = store.Put(ctx, "spec_1.fits", data)
//	t, _ := startable.Open(ctx, "mem://spec_1.fits",
//	    startable.WithStores(map[string]blobstore.BlobStore{"mem://": store}))
func WithStores(stores map[string]blobstore.BlobStore) Option {
	return func(o *options) {
		if o.stores == nil {
			o.stores = make(map[string]blobstore.BlobStore, len(stores))
		}
		for prefix, s := range stores {
			o.stores[prefix] = s
		}
	}
}

// WithS3 configures the store dialed for s3:// locations.
func WithS3(optFns ...func(*s3.Options)) Option {
	return func(o *options) {
		o.s3Options = append(o.s3Options, optFns...)
	}
}

// WithMinIO serves minio://bucket/key locations from the MinIO server at
// endpoint. Without it the MINIO_ENDPOINT environment variable is used.
func WithMinIO(endpoint string, optFns ...func(*minio.Options)) Option {
	return func(o *options) {
		o.minioEndpoint = endpoint
		o.minioOptions = append(o.minioOptions, optFns...)
	}
}

// WithBlockCache caches reads from dialed remote stores in blocks of
// blockSize bytes, up to capacity bytes in total. blockSize <= 0 selects
// blobstore.DefaultBlockSize.
func WithBlockCache(capacity, blockSize int64) Option {
	return func(o *options) {
		o.blockCache = capacity
		o.blockSize = blockSize
	}
}

// WithFormat names the format builder to use instead of detection.
func WithFormat(format string) Option {
	return func(o *options) {
		o.format = format
	}
}

// WithRandomAccess requests a random-access table from Open, reading
// sequential content into memory if needed.
func WithRandomAccess() Option {
	return func(o *options) {
		o.random = true
	}
}

// WithProgress reports rows read by cursors of the returned table.
func WithProgress(fn table.ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithLoaderCache keeps up to size external tables in memory during
// ArrayJoin, so repeated locations are read once.
func WithLoaderCache(size int) Option {
	return func(o *options) {
		o.loaderCache = size
	}
}

// WithJoinOptions configures ArrayJoin.
//
// Example:
//
//	t, _ := startable.ArrayJoin(ctx, base, `"mem://" + specfile`,
//	    startable.WithJoinOptions(arrayjoin.WithKeepAll(false), arrayjoin.WithParams("EXPTIME")))
func WithJoinOptions(optFns ...func(*arrayjoin.Options)) Option {
	return func(o *options) {
		o.joinOptions = append(o.joinOptions, optFns...)
	}
}

// WithExprOptions configures expression compilation.
func WithExprOptions(optFns ...func(*expr.Options)) Option {
	return func(o *options) {
		o.exprOptions = append(o.exprOptions, optFns...)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &startable.BasicMetricsCollector{}
//	t, _ := startable.Open(ctx, "cat.fits", startable.WithMetricsCollector(metrics))
//	stats := metrics.GetStats()
//	fmt.Printf("Loads: %d, Avg latency: %dns\n", stats.LoadCount, stats.LoadAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := startable.NewJSONLogger(slog.LevelInfo)
//	t, _ := startable.Open(ctx, "cat.fits", startable.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
