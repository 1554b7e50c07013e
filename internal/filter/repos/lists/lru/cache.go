package lru

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/rr-filter/internal/filter/repos/lists"
)

// lookupCache is an LRU-backed lists.LookupCache with hit, miss and
// eviction counters.
type lookupCache struct {
	lru       *lru.Cache[lists.LookupKey, lists.LookupOutcome]
	size      int
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// disabledCache always misses.
type disabledCache struct{}

// New creates a LookupCache with the given capacity. If size <= 0, a
// disabled cache is returned that always misses and tracks no metrics.
func New(size int) (lists.LookupCache, error) {
	if size <= 0 {
		return &disabledCache{}, nil
	}
	c := &lookupCache{size: size}
	cache, err := lru.NewWithEvict(size, func(lists.LookupKey, lists.LookupOutcome) {
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	c.lru = cache
	return c, nil
}

func (c *lookupCache) Get(k lists.LookupKey) (lists.LookupOutcome, bool) {
	if v, ok := c.lru.Get(k); ok {
		c.hits.Add(1)
		return v, true
	}
	c.misses.Add(1)
	return lists.LookupOutcome{}, false
}

func (c *lookupCache) Put(k lists.LookupKey, o lists.LookupOutcome) { c.lru.Add(k, o) }

func (c *lookupCache) Len() int { return c.lru.Len() }

// Purge clears all entries. Evictions are counted via the eviction callback.
func (c *lookupCache) Purge() { c.lru.Purge() }

func (c *lookupCache) Stats() lists.CacheStats {
	return lists.CacheStats{
		Capacity:  c.size,
		Size:      c.lru.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (*disabledCache) Get(lists.LookupKey) (lists.LookupOutcome, bool) {
	return lists.LookupOutcome{}, false
}

func (*disabledCache) Put(lists.LookupKey, lists.LookupOutcome) {}

func (*disabledCache) Len() int { return 0 }

func (*disabledCache) Purge() {}

func (*disabledCache) Stats() lists.CacheStats { return lists.CacheStats{} }

var _ lists.LookupCache = (*lookupCache)(nil)
var _ lists.LookupCache = (*disabledCache)(nil)
