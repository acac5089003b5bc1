// Package rewritecache caches raw rewrite-model output per query so repeated
// compound queries pay for one model call. Validation of the cached output
// still happens in the normalizer on every use.
package rewritecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ivanmandinski/aisearch-sub001/internal/usecase/normalize"
)

// DefaultSize is the rewrite cache capacity; oldest entries are evicted on
// overflow.
const DefaultSize = 1000

// CachedRewriter is a caching decorator over a Rewriter.
type CachedRewriter struct {
	inner normalize.Rewriter
	lru   *expirable.LRU[string, string]
	// cacheTotal is a counter vec with label "result" ("hit"/"miss"). May be nil.
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator. ttl <= 0 means entries live until evicted
// by capacity.
func New(
	inner normalize.Rewriter,
	size int,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedRewriter {
	if size <= 0 {
		size = DefaultSize
	}
	return &CachedRewriter{
		inner:      inner,
		lru:        expirable.NewLRU[string, string](size, nil, ttl),
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Rewrite returns cached model output or calls the inner rewriter. Failed
// calls are not cached; the next request retries the provider.
func (c *CachedRewriter) Rewrite(ctx context.Context, query string) (string, error) {
	key := cacheKey(query)

	if out, ok := c.lru.Get(key); ok {
		c.inc("hit")
		return out, nil
	}
	c.inc("miss")

	out, err := c.inner.Rewrite(ctx, query)
	if err != nil {
		return "", fmt.Errorf("rewrite query: %w", err)
	}

	c.lru.Add(key, out)
	return out, nil
}

func (c *CachedRewriter) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func cacheKey(query string) string {
	h := sha256.Sum256([]byte(query))
	return hex.EncodeToString(h[:])
}
