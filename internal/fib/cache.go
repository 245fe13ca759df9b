package fib

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LookupCache memoizes /32 lookup results in front of an Index. The index
// is immutable during a run, so entries never go stale; Purge is for callers
// that rebuild the index.
type LookupCache struct {
	cache  *lru.Cache[uint32, LookupResult]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewLookupCache returns a cache holding up to size destinations.
func NewLookupCache(size int) (*LookupCache, error) {
	c, err := lru.New[uint32, LookupResult](size)
	if err != nil {
		return nil, fmt.Errorf("creating lookup cache: %w", err)
	}
	return &LookupCache{cache: c}, nil
}

// Get returns the cached result for dst.
func (c *LookupCache) Get(dst uint32) (LookupResult, bool) {
	res, ok := c.cache.Get(dst)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return res, ok
}

// Add stores the result for dst, evicting the least recently used entry
// when full.
func (c *LookupCache) Add(dst uint32, res LookupResult) {
	c.cache.Add(dst, res)
}

// Purge clears all entries. Hit and miss counters are kept.
func (c *LookupCache) Purge() {
	c.cache.Purge()
}

// Len returns the number of cached destinations.
func (c *LookupCache) Len() int {
	return c.cache.Len()
}

// Counts returns the hit and miss totals.
func (c *LookupCache) Counts() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
