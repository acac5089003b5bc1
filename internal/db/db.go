// Package db defines the index store contract for the retrieval read path.
// Index creation and the document write path belong to the ingestion system,
// not this service.
package db

import (
	"context"
	"time"
)

// Store is the index store facade.
type Store interface {
	Pinger
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Searcher provides search operations over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchBM25(ctx context.Context, q *TextQuery) (*SearchResult, error)
}

// Condition is a pre-filter clause applied inside the index query, before
// any result cap. Tags build a tag union match; Min/Max build a numeric
// range (nil = open boundary).
type Condition struct {
	Field string
	Tags  []string
	Min   *float64
	Max   *float64
}

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	Conditions   []Condition
	ReturnFields []string
}

// TextQuery is the input for BM25 text search.
type TextQuery struct {
	IndexName    string
	Query        string
	TopK         int
	Conditions   []Condition
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
