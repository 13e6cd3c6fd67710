package cache

// Key identifies one block of one source.
type Key struct {
	Path  string
	Block int64
}

// BlockCache is a byte-oriented cache for immutable blocks.
type BlockCache interface {
	// Get returns a cached block. ok is false if missing.
	Get(key Key) (b []byte, ok bool)
	// Set caches a block. The caller must not modify b afterwards.
	Set(key Key, b []byte)
	// Invalidate removes entries matching the predicate.
	Invalidate(match func(key Key) bool)
	// Stats returns hit and miss counts.
	Stats() (hits, misses int64)
}
