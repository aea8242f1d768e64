// Package cache implements the Cacher capability described in spec.md §9:
// a TTL-memoized getOrCompute plus pattern invalidation, replacing the
// decorator-based memoize/invalidate helpers the source system expressed
// with reflective annotations.
package cache

import (
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cacher memoizes the result of an expensive, keyed computation (e.g. an
// embedding call, a tag lookup for re-ranking) for a bounded TTL, and lets
// callers invalidate every key sharing a prefix after a mutation.
type Cacher struct {
	inner *gocache.Cache
	mu    sync.RWMutex
	keys  map[string]struct{}
}

func New(defaultTTL, cleanupInterval time.Duration) *Cacher {
	return &Cacher{
		inner: gocache.New(defaultTTL, cleanupInterval),
		keys:  map[string]struct{}{},
	}
}

// GetOrCompute returns the cached value for key if present and unexpired;
// otherwise it calls factory, stores the result under ttl, and returns it.
// factory errors are never cached.
func (c *Cacher) GetOrCompute(key string, ttl time.Duration, factory func() (any, error)) (any, error) {
	if v, found := c.inner.Get(key); found {
		return v, nil
	}
	v, err := factory()
	if err != nil {
		return nil, err
	}
	c.inner.Set(key, v, ttl)
	c.mu.Lock()
	c.keys[key] = struct{}{}
	c.mu.Unlock()
	return v, nil
}

// InvalidateByPattern removes every cached key with the given prefix. Used
// e.g. after SimilarityIndex.deleteVideo to drop stale re-ranking lookups.
func (c *Cacher) InvalidateByPattern(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.keys {
		if strings.HasPrefix(k, prefix) {
			c.inner.Delete(k)
			delete(c.keys, k)
			n++
		}
	}
	return n
}

func (c *Cacher) ItemCount() int {
	return c.inner.ItemCount()
}
