package tableio

import (
	"container/list"
	"context"
	"sync"

	"github.com/hupe1980/startable/table"
	"golang.org/x/sync/singleflight"
)

// CachedLoader loads tables into memory and keeps the most recently used
// ones. Concurrent loads of the same location share one read.
//
// Returned tables are shared between callers and must be treated as
// read-only; closing them is a no-op.
type CachedLoader struct {
	load  Loader
	size  int
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
}

type cachedTable struct {
	location string
	table    *table.MemoryTable
}

// NewCachedLoader wraps load with a cache holding up to size tables.
func NewCachedLoader(load Loader, size int) *CachedLoader {
	if size < 1 {
		size = 1
	}
	return &CachedLoader{
		load:    load,
		size:    size,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

func (c *CachedLoader) get(location string) (*table.MemoryTable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[location]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(e)
	return e.Value.(*cachedTable).table, true
}

func (c *CachedLoader) put(location string, t *table.MemoryTable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[location]; ok {
		e.Value.(*cachedTable).table = t
		c.order.MoveToFront(e)
		return
	}
	c.entries[location] = c.order.PushFront(&cachedTable{location: location, table: t})
	for c.order.Len() > c.size {
		last := c.order.Back()
		c.order.Remove(last)
		delete(c.entries, last.Value.(*cachedTable).location)
	}
}

// Load returns the table at location, reading it on a cache miss. Load
// failures are not cached.
//
// The shared read is not tied to any one caller's ctx: a caller whose ctx
// ends stops waiting with ctx.Err(), while the read continues for the
// other callers and still fills the cache.
func (c *CachedLoader) Load(ctx context.Context, location string) (table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t, ok := c.get(location); ok {
		return t, nil
	}
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(location, func() (any, error) {
		if t, ok := c.get(location); ok {
			return t, nil
		}
		t, err := c.load(shared, location)
		if err != nil {
			return nil, err
		}
		defer t.Close()
		store := table.NewRowStore()
		if err := table.Copy(shared, t, store); err != nil {
			return nil, err
		}
		mt := store.Table()
		c.put(location, mt)
		return mt, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*table.MemoryTable), nil
	}
}

// Loader returns c.Load as a Loader.
func (c *CachedLoader) Loader() Loader { return c.Load }

// Len returns the number of cached tables.
func (c *CachedLoader) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
