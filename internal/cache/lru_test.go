package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRU_GetSet(t *testing.T) {
	c := NewLRU(10)
	k := Key{Path: "a.fits", Block: 0}

	_, ok := c.Get(k)
	assert.False(t, ok)

	c.Set(k, []byte("abcd"))
	b, ok := c.Get(k)
	assert.True(t, ok)
	assert.Equal(t, "abcd", string(b))
	assert.Equal(t, int64(4), c.Size())

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestLRU_Eviction(t *testing.T) {
	c := NewLRU(8)
	c.Set(Key{Block: 0}, []byte("aaaa"))
	c.Set(Key{Block: 1}, []byte("bbbb"))

	// Touch block 0 so block 1 is the eviction candidate.
	_, _ = c.Get(Key{Block: 0})
	c.Set(Key{Block: 2}, []byte("cccc"))

	_, ok := c.Get(Key{Block: 1})
	assert.False(t, ok)
	_, ok = c.Get(Key{Block: 0})
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int64(8), c.Size())

	c.Set(Key{Block: 3}, make([]byte, 9))
	_, ok = c.Get(Key{Block: 3})
	assert.False(t, ok)
}

func TestLRU_Replace(t *testing.T) {
	c := NewLRU(8)
	c.Set(Key{Block: 0}, []byte("aa"))
	c.Set(Key{Block: 0}, []byte("aaaaaa"))
	assert.Equal(t, int64(6), c.Size())
	assert.Equal(t, 1, c.Len())
}

func TestLRU_Invalidate(t *testing.T) {
	c := NewLRU(100)
	c.Set(Key{Path: "a", Block: 0}, []byte("x"))
	c.Set(Key{Path: "a", Block: 1}, []byte("y"))
	c.Set(Key{Path: "b", Block: 0}, []byte("z"))

	c.Invalidate(func(k Key) bool { return k.Path == "a" })
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(1), c.Size())
}

func TestLRU_Concurrent(t *testing.T) {
	c := NewLRU(1 << 10)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				k := Key{Path: "p", Block: int64(i % 16)}
				c.Set(k, []byte{byte(g)})
				_, _ = c.Get(k)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 16)
}
