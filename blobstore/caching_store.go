package blobstore

import (
	"context"
	"errors"
	"io"

	"github.com/hupe1980/startable/internal/cache"
	"golang.org/x/sync/errgroup"
)

// DefaultBlockSize is the CachingStore block size when none is given.
const DefaultBlockSize = 64 * 1024

// CachingStore wraps a BlobStore and caches reads in fixed-size blocks.
// It suits remote stores serving random row reads of the same files.
type CachingStore struct {
	inner     BlobStore
	cache     cache.BlockCache
	blockSize int64
}

// NewCachingStore creates a CachingStore. blockSize defaults to
// DefaultBlockSize if <= 0.
func NewCachingStore(inner BlobStore, c cache.BlockCache, blockSize int64) *CachingStore {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &CachingStore{inner: inner, cache: c, blockSize: blockSize}
}

func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &CachingBlob{inner: b, cache: s.cache, name: name, blockSize: s.blockSize}, nil
}

// Put invalidates the cached blocks of name before writing through.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.invalidate(name)
	return s.inner.Put(ctx, name, data)
}

func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.invalidate(name)
	return s.inner.Delete(ctx, name)
}

func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

func (s *CachingStore) invalidate(name string) {
	s.cache.Invalidate(func(key cache.Key) bool { return key.Path == name })
}

// CachingBlob reads through the block cache.
type CachingBlob struct {
	inner     Blob
	cache     cache.BlockCache
	name      string
	blockSize int64
}

func (b *CachingBlob) Close() error { return b.inner.Close() }
func (b *CachingBlob) Size() int64  { return b.inner.Size() }

func (b *CachingBlob) key(blk int64) cache.Key {
	return cache.Key{Path: b.name, Block: blk}
}

func (b *CachingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	size := b.Size()
	if off >= size {
		return 0, io.EOF
	}

	end := min(off+int64(len(p)), size)
	first := off / b.blockSize
	last := (end - 1) / b.blockSize
	if err := b.fill(ctx, first, last); err != nil {
		return 0, err
	}

	total := 0
	for blk := first; blk <= last; blk++ {
		data, err := b.block(ctx, blk)
		if err != nil {
			return total, err
		}
		start := blk * b.blockSize
		lo := max(start, off)
		hi := min(start+int64(len(data)), end)
		if hi <= lo {
			break
		}
		total += copy(p[lo-off:hi-off], data[lo-start:hi-start])
	}
	if total < len(p) {
		return total, io.EOF
	}
	return total, nil
}

// fill loads the missing blocks in [first, last], fetching each contiguous
// run of misses with one backend read.
func (b *CachingBlob) fill(ctx context.Context, first, last int64) error {
	type run struct{ start, count int64 }
	var runs []run
	for blk := first; blk <= last; blk++ {
		if _, ok := b.cache.Get(b.key(blk)); ok {
			continue
		}
		if n := len(runs); n > 0 && runs[n-1].start+runs[n-1].count == blk {
			runs[n-1].count++
		} else {
			runs = append(runs, run{blk, 1})
		}
	}
	if len(runs) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for _, r := range runs {
		g.Go(func() error {
			start := r.start * b.blockSize
			length := min(r.count*b.blockSize, b.Size()-start)
			if length <= 0 {
				return nil
			}
			buf := make([]byte, length)
			n, err := b.inner.ReadAt(gctx, buf, start)
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			buf = buf[:n]
			for i := int64(0); i < r.count; i++ {
				lo := i * b.blockSize
				if lo >= int64(len(buf)) {
					break
				}
				hi := min(lo+b.blockSize, int64(len(buf)))
				// Copy so that one cached block does not pin the whole run.
				blk := make([]byte, hi-lo)
				copy(blk, buf[lo:hi])
				b.cache.Set(b.key(r.start+i), blk)
			}
			return nil
		})
	}
	return g.Wait()
}

// block returns one block, reading it directly if the cache evicted it
// between fill and use.
func (b *CachingBlob) block(ctx context.Context, blk int64) ([]byte, error) {
	if data, ok := b.cache.Get(b.key(blk)); ok {
		return data, nil
	}
	buf := make([]byte, b.blockSize)
	n, err := b.inner.ReadAt(ctx, buf, blk*b.blockSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if n > 0 {
		b.cache.Set(b.key(blk), buf[:n])
	}
	return buf[:n], nil
}

// ReadRange reads through the block cache.
func (b *CachingBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	return newSection(ctx, b, off, length), nil
}
