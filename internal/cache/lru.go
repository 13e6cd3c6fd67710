package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// LRU is a BlockCache bounded by total block bytes.
type LRU struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	items    map[Key]*list.Element
	order    *list.List

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	key   Key
	value []byte
}

// NewLRU returns a cache holding at most capacity bytes.
func NewLRU(capacity int64) *LRU {
	return &LRU{
		capacity: capacity,
		items:    make(map[Key]*list.Element),
		order:    list.New(),
	}
}

func (c *LRU) Get(key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.order.MoveToFront(e)
		return e.Value.(*entry).value, true
	}
	c.misses.Add(1)
	return nil, false
}

// Set caches b under key. Blocks larger than the capacity are not cached.
func (c *LRU) Set(key Key, b []byte) {
	n := int64(len(b))
	if n > c.capacity {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		ent := e.Value.(*entry)
		c.size += n - int64(len(ent.value))
		ent.value = b
		c.order.MoveToFront(e)
	} else {
		c.items[key] = c.order.PushFront(&entry{key: key, value: b})
		c.size += n
	}
	for c.size > c.capacity {
		c.remove(c.order.Back())
	}
}

func (c *LRU) Invalidate(match func(key Key) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.items {
		if match(key) {
			c.remove(e)
		}
	}
}

func (c *LRU) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Size returns the number of cached bytes.
func (c *LRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the number of cached blocks.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRU) remove(e *list.Element) {
	ent := c.order.Remove(e).(*entry)
	delete(c.items, ent.key)
	c.size -= int64(len(ent.value))
}
