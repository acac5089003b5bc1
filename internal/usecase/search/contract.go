package search

import (
	"context"

	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/candidate"
	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/filter"
	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/intent"
	"github.com/ivanmandinski/aisearch-sub001/internal/usecase/normalize"
)

// Repository defines the retrieval contract. Both legs are read-only and may
// run concurrently; filters are applied inside the index query, before any
// candidate cap.
type Repository interface {
	SearchLexical(
		ctx context.Context, query string, filters filter.Filter, limit int,
	) ([]candidate.Candidate, error)

	SearchSemantic(
		ctx context.Context, vector []float32, filters filter.Filter, limit int,
	) ([]candidate.Candidate, error)
}

// Normalizer canonicalizes and classifies the incoming query.
type Normalizer interface {
	Normalize(ctx context.Context, raw string) normalize.Result
}

// Reranker attaches AI scores to a capped candidate subset.
type Reranker interface {
	Rerank(
		ctx context.Context,
		query string,
		queryIntent intent.Intent,
		instructions string,
		candidates []candidate.Candidate,
	) ([]candidate.Candidate, bool)
}

// Cache stores computed result sets keyed by query fingerprint. Entries are
// immutable once put; eviction is TTL or explicit invalidation only.
type Cache interface {
	Get(key string) (Entry, bool)
	Put(key string, entry Entry)
	// Invalidate removes entries whose key starts with prefix (empty prefix
	// removes everything) and returns how many were dropped.
	Invalidate(prefix string) int
}
