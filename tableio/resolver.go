package tableio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/startable/blobstore"
	"golang.org/x/sync/singleflight"
)

// ErrNoStore is returned when no store serves a location.
var ErrNoStore = errors.New("tableio: no store for location")

// DialFunc connects a store for a remote bucket location such as
// "s3://bucket/". It returns ErrNoStore for schemes it does not handle.
type DialFunc func(ctx context.Context, scheme, bucket string) (blobstore.BlobStore, error)

type mount struct {
	prefix string
	store  blobstore.BlobStore
}

// Resolver maps location strings to blob stores.
//
// Locations are matched against mounted prefixes, longest first. Local
// paths and file:// URLs fall through to the local filesystem. Other
// scheme://bucket/key locations are handed to the dialer once per bucket;
// the dialed store is then mounted.
type Resolver struct {
	mu     sync.RWMutex
	mounts []mount
	local  blobstore.BlobStore
	dial   DialFunc
	group  singleflight.Group
}

// NewResolver creates a resolver serving local paths only. dial may be nil.
func NewResolver(dial DialFunc) *Resolver {
	return &Resolver{local: blobstore.NewLocalStore(""), dial: dial}
}

// Mount serves locations starting with prefix from store. The prefix is
// stripped to form the blob name.
func (r *Resolver) Mount(prefix string, store blobstore.BlobStore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.mounts {
		if m.prefix == prefix {
			r.mounts[i].store = store
			return
		}
	}
	r.mounts = append(r.mounts, mount{prefix: prefix, store: store})
	sort.SliceStable(r.mounts, func(i, j int) bool {
		return len(r.mounts[i].prefix) > len(r.mounts[j].prefix)
	})
}

func (r *Resolver) lookup(loc string) (blobstore.BlobStore, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.mounts {
		if strings.HasPrefix(loc, m.prefix) {
			return m.store, loc[len(m.prefix):], true
		}
	}
	return nil, "", false
}

// Resolve returns the store and blob name for a location. Any "#position"
// suffix must already be removed.
func (r *Resolver) Resolve(ctx context.Context, loc string) (blobstore.BlobStore, string, error) {
	if store, name, ok := r.lookup(loc); ok {
		return store, name, nil
	}
	scheme, rest, ok := strings.Cut(loc, "://")
	if !ok {
		return r.local, loc, nil
	}
	if scheme == "file" {
		return r.local, rest, nil
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if r.dial == nil || bucket == "" {
		return nil, "", fmt.Errorf("%w: %s", ErrNoStore, loc)
	}
	prefix := scheme + "://" + bucket + "/"
	v, err, _ := r.group.Do(prefix, func() (any, error) {
		if store, _, ok := r.lookup(prefix); ok {
			return store, nil
		}
		store, err := r.dial(ctx, scheme, bucket)
		if err != nil {
			return nil, err
		}
		r.Mount(prefix, store)
		return store, nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("tableio: connect %s: %w", prefix, err)
	}
	return v.(blobstore.BlobStore), key, nil
}

// OpenSource resolves location and opens it as a Source.
func (r *Resolver) OpenSource(ctx context.Context, location string) (*Source, error) {
	loc, _ := SplitLocation(location)
	store, name, err := r.Resolve(ctx, loc)
	if err != nil {
		return nil, err
	}
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("tableio: open %s: %w", loc, err)
	}
	return NewSource(ctx, location, blob)
}
