// Package resultcache is the TTL- and size-bounded store for computed search
// result sets. Entries are immutable: they are dropped by TTL expiry or
// explicit invalidation, never overwritten in place.
package resultcache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Defaults per the ranking pipeline contract.
const (
	DefaultTTL  = 300 * time.Second
	DefaultSize = 1024
)

// Cache is an in-process expirable LRU keyed by query fingerprint.
type Cache[V any] struct {
	lru *expirable.LRU[string, V]
	// cacheTotal is a counter vec with label "result" ("hit"/"miss"). May be nil.
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a result cache. Non-positive size or ttl fall back to defaults.
func New[V any](size int, ttl time.Duration, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache[V] {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[V]{
		lru:        expirable.NewLRU[string, V](size, nil, ttl),
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Get returns the cached value for key, if present and unexpired.
func (c *Cache[V]) Get(key string) (V, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.inc("hit")
	} else {
		c.inc("miss")
	}
	return v, ok
}

// Put stores a value. The first writer for a key wins during concurrent
// identical requests; later writes of the same computation are harmless.
func (c *Cache[V]) Put(key string, value V) {
	c.lru.Add(key, value)
}

// Invalidate removes entries whose key starts with prefix and returns the
// number dropped. An empty prefix drops everything.
func (c *Cache[V]) Invalidate(prefix string) int {
	if prefix == "" {
		n := c.lru.Len()
		c.lru.Purge()
		c.logger.Info("Result cache purged", zap.Int("dropped", n))
		return n
	}
	dropped := 0
	for _, key := range c.lru.Keys() {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			if c.lru.Remove(key) {
				dropped++
			}
		}
	}
	if dropped > 0 {
		c.logger.Info("Result cache invalidated",
			zap.String("prefix", prefix), zap.Int("dropped", dropped))
	}
	return dropped
}

// Len returns the number of live entries.
func (c *Cache[V]) Len() int { return c.lru.Len() }

func (c *Cache[V]) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}
