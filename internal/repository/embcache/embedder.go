// Package embcache caches query embeddings so repeated normalization work
// does not re-hit the provider.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ivanmandinski/aisearch-sub001/internal/domain"
)

// DefaultSize is the embedding cache capacity; oldest entries are evicted on
// overflow.
const DefaultSize = 1000

// CachedEmbedder is a caching decorator over an Embedder.
type CachedEmbedder struct {
	inner domain.Embedder
	lru   *expirable.LRU[string, []float32]
	// cacheTotal is a counter vec with label "result" ("hit"/"miss"). May be nil.
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator. ttl <= 0 means entries live until evicted
// by capacity.
func New(
	inner domain.Embedder,
	size int,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	if size <= 0 {
		size = DefaultSize
	}
	return &CachedEmbedder{
		inner:      inner,
		lru:        expirable.NewLRU[string, []float32](size, nil, ttl),
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed returns a cached embedding or calls the inner embedder.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := cacheKey(text)

	if vec, ok := c.lru.Get(key); ok {
		c.inc("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	c.inc("miss")

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.lru.Add(key, result.Embedding)
	return result, nil
}

func (c *CachedEmbedder) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
