package domain

import "errors"

var (
	// ErrInvalidQuery signals malformed search parameters.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrRetrievalUnavailable signals that no retrieval leg produced a usable result.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRewriteProviderError signals a query-rewrite provider failure.
	ErrRewriteProviderError = errors.New("rewrite provider error")
	// ErrRerankProviderError signals a rerank provider failure.
	ErrRerankProviderError = errors.New("rerank provider error")
)
