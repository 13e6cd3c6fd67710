package tableio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hupe1980/startable/table"
)

// AutoFormat asks Registry.Open to detect the format from content.
const AutoFormat = ""

// ErrUnknownFormat is returned when a named format has no builder, or
// when no builder accepts the content.
var ErrUnknownFormat = errors.New("tableio: unknown table format")

// Builder turns a Source into a table.
type Builder interface {
	// Name is the format name, matched case-insensitively.
	Name() string
	// Looks reports whether intro plausibly starts this format.
	Looks(intro []byte) bool
	// Build reads the source. The returned table may keep reading from
	// src until it is closed; the caller closes src afterwards. A build
	// that fails with table.ErrFormat lets detection try the next builder.
	Build(ctx context.Context, src *Source, wantRandom bool) (table.Table, error)
}

// Loader opens a table by location.
type Loader func(ctx context.Context, location string) (table.Table, error)

// Options configures a Registry.
type Options struct {
	Logger *slog.Logger
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) func(o *Options) {
	return func(o *Options) {
		o.Logger = l
	}
}

// Registry is an ordered list of format builders plus a location resolver.
// Detection tries builders in registration order.
type Registry struct {
	resolver *Resolver
	builders []Builder
	logger   *slog.Logger
}

// NewRegistry creates a registry. A nil resolver serves local files only.
func NewRegistry(resolver *Resolver, builders []Builder, optFns ...func(o *Options)) *Registry {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if resolver == nil {
		resolver = NewResolver(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{resolver: resolver, builders: builders, logger: opts.Logger}
}

// Register appends a builder.
func (r *Registry) Register(b Builder) { r.builders = append(r.builders, b) }

// Resolver returns the location resolver.
func (r *Registry) Resolver() *Resolver { return r.resolver }

// Builders returns the registered builders in detection order.
func (r *Registry) Builders() []Builder { return r.builders }

// Builder returns the builder with the given name.
func (r *Registry) Builder(name string) (Builder, bool) {
	for _, b := range r.builders {
		if strings.EqualFold(b.Name(), name) {
			return b, true
		}
	}
	return nil, false
}

// Open resolves location and builds a table from it. format names a
// builder or is AutoFormat. With wantRandom the result supports random
// access, reading sequential content into memory if needed.
func (r *Registry) Open(ctx context.Context, location, format string, wantRandom bool) (table.Table, error) {
	src, err := r.resolver.OpenSource(ctx, location)
	if err != nil {
		return nil, err
	}
	return r.Build(ctx, src, format, wantRandom)
}

// Build builds a table from an opened source and takes ownership of src:
// it is closed on failure, or together with the returned table.
func (r *Registry) Build(ctx context.Context, src *Source, format string, wantRandom bool) (table.Table, error) {
	t, err := r.build(ctx, src, format, wantRandom)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	if wantRandom && !t.IsRandom() {
		rt, err := table.Random(ctx, t)
		_ = t.Close()
		_ = src.Close()
		if err != nil {
			return nil, err
		}
		return rt, nil
	}
	return &sourceTable{Wrapper: table.NewWrapper(t), src: src}, nil
}

func (r *Registry) build(ctx context.Context, src *Source, format string, wantRandom bool) (table.Table, error) {
	if format != AutoFormat {
		b, ok := r.Builder(format)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
		}
		return b.Build(ctx, src, wantRandom)
	}
	for _, b := range r.builders {
		if !b.Looks(src.Intro()) {
			continue
		}
		t, err := b.Build(ctx, src, wantRandom)
		if err == nil {
			r.logger.Debug("table format detected",
				slog.String("location", src.Location),
				slog.String("format", b.Name()),
				slog.String("codec", src.Codec().String()))
			return t, nil
		}
		if !errors.Is(err, table.ErrFormat) {
			return nil, err
		}
		r.logger.Debug("table format rejected",
			slog.String("location", src.Location),
			slog.String("format", b.Name()),
			slog.String("error", err.Error()))
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, src.Location)
}

// Loader returns a Loader opening tables with format detection.
func (r *Registry) Loader(wantRandom bool) Loader {
	return func(ctx context.Context, location string) (table.Table, error) {
		return r.Open(ctx, location, AutoFormat, wantRandom)
	}
}

// sourceTable closes its source together with the table.
type sourceTable struct {
	*table.Wrapper
	src *Source
}

func (t *sourceTable) Close() error {
	return errors.Join(t.Base.Close(), t.src.Close())
}
