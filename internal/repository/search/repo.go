// Package search adapts the index store to the retrieval contract of the
// ranking pipeline. It owns the document schema mapping and normalizes raw
// index scores into the 0-1 range the pipeline expects.
package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ivanmandinski/aisearch-sub001/internal/db"
	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/candidate"
	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/filter"
)

// Indexed document field names. The write path (external ingestion) and this
// read path must agree on these.
const (
	fieldTitle     = "title"
	fieldExcerpt   = "excerpt"
	fieldType      = "type"
	fieldPublished = "published"
)

var returnFields = []string{fieldTitle, fieldExcerpt, fieldType, fieldPublished, "__vector_score"}

// store is the consumer interface for retrieval operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Repo implements usecase/search.Repository.
type Repo struct {
	store     store
	indexName string
	keyPrefix string
}

// New creates a retrieval repository over the named FT index. Document keys
// are expected as keyPrefix + document id.
func New(s store, indexName, keyPrefix string) *Repo {
	return &Repo{store: s, indexName: indexName, keyPrefix: keyPrefix}
}

// SearchLexical performs a BM25 term search with filters applied inside the
// index query. Scores are squashed into [0,1).
func (r *Repo) SearchLexical(
	ctx context.Context, query string, filters filter.Filter, limit int,
) ([]candidate.Candidate, error) {
	q := &db.TextQuery{
		IndexName:    r.indexName,
		Query:        query,
		TopK:         limit,
		Conditions:   buildConditions(filters),
		ReturnFields: returnFields,
	}

	sr, err := r.store.SearchBM25(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search lexical: %w", err)
	}

	out := make([]candidate.Candidate, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		c, err := r.parseEntry(entry)
		if err != nil {
			continue
		}
		c, err = c.WithLexical(normalizeBM25(entry.Score))
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// SearchSemantic performs a KNN vector search with filters applied inside
// the index query. The store already converts cosine distance to a [0,1]
// similarity.
func (r *Repo) SearchSemantic(
	ctx context.Context, vector []float32, filters filter.Filter, limit int,
) ([]candidate.Candidate, error) {
	q := &db.KNNQuery{
		IndexName:    r.indexName,
		Vector:       vector,
		K:            limit,
		Conditions:   buildConditions(filters),
		ReturnFields: returnFields,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search semantic: %w", err)
	}

	out := make([]candidate.Candidate, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		c, err := r.parseEntry(entry)
		if err != nil {
			continue
		}
		c, err = c.WithSemantic(clamp01(entry.Score))
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *Repo) parseEntry(entry db.SearchEntry) (candidate.Candidate, error) {
	id := strings.TrimPrefix(entry.Key, r.keyPrefix)

	var publishedAt time.Time
	if raw, ok := entry.Fields[fieldPublished]; ok {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil && unix > 0 {
			publishedAt = time.Unix(unix, 0).UTC()
		}
	}

	return candidate.New(
		id,
		entry.Fields[fieldType],
		entry.Fields[fieldTitle],
		entry.Fields[fieldExcerpt],
		publishedAt,
	)
}

// buildConditions translates the domain filter into index pre-filter
// clauses. Applied before any cap, so the cap reflects the eligible
// population.
func buildConditions(f filter.Filter) []db.Condition {
	if f.IsEmpty() {
		return nil
	}
	var conditions []db.Condition
	if types := f.SourceTypes(); len(types) > 0 {
		conditions = append(conditions, db.Condition{Field: fieldType, Tags: types})
	}
	var minBound, maxBound *float64
	if after := f.PublishedAfter(); !after.IsZero() {
		v := float64(after.Unix())
		minBound = &v
	}
	if before := f.PublishedBefore(); !before.IsZero() {
		v := float64(before.Unix())
		maxBound = &v
	}
	if minBound != nil || maxBound != nil {
		conditions = append(conditions, db.Condition{Field: fieldPublished, Min: minBound, Max: maxBound})
	}
	return conditions
}

// normalizeBM25 squashes an unbounded BM25 score into [0,1) monotonically.
func normalizeBM25(score float64) float64 {
	if score <= 0 {
		return 0
	}
	return score / (score + 1)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
