package lru

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/url-sentry/internal/sentry/repos/blocklist"
)

// decisionCache is an LRU-backed implementation of blocklist.DecisionCache.
// It tracks basic metrics: hits, misses, and evictions.
type decisionCache struct {
	lru       *lru.Cache[string, bool]
	capacity  int
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// disabledCache is a no-op DecisionCache used when size <= 0.
type disabledCache struct{}

// New creates a DecisionCache with the given capacity. If size <= 0, a
// disabled cache is returned that always misses.
func New(size int) (blocklist.DecisionCache, error) {
	if size <= 0 {
		return &disabledCache{}, nil
	}
	dc := &decisionCache{capacity: size}
	// NewWithEvict observes evictions, including Purge-induced ones.
	cache, err := lru.NewWithEvict(size, func(_ string, _ bool) {
		dc.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	dc.lru = cache
	return dc, nil
}

func (c *decisionCache) Get(name string) (bool, bool) {
	if val, ok := c.lru.Get(name); ok {
		c.hits.Add(1)
		return val, true
	}
	c.misses.Add(1)
	return false, false
}

func (c *decisionCache) Put(name string, blocked bool) { c.lru.Add(name, blocked) }

func (c *decisionCache) Len() int { return c.lru.Len() }

// Purge clears all entries. Evictions are counted via the eviction callback.
func (c *decisionCache) Purge() { c.lru.Purge() }

func (c *decisionCache) Stats() blocklist.CacheStats {
	return blocklist.CacheStats{
		Capacity:  c.capacity,
		Size:      c.lru.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (d *disabledCache) Get(string) (bool, bool)     { return false, false }
func (d *disabledCache) Put(string, bool)            {}
func (d *disabledCache) Len() int                    { return 0 }
func (d *disabledCache) Purge()                      {}
func (d *disabledCache) Stats() blocklist.CacheStats { return blocklist.CacheStats{} }

var _ blocklist.DecisionCache = (*decisionCache)(nil)
var _ blocklist.DecisionCache = (*disabledCache)(nil)
