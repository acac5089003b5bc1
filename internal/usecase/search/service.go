// Package search runs the hybrid ranking pipeline: normalize → retrieve
// (lexical + semantic, concurrent) → optional AI rerank → score fusion →
// cached, paginated result sets. A fingerprint's result set is computed at
// most once within its TTL; page requests only slice the cached set.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ivanmandinski/aisearch-sub001/internal/domain"
	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/candidate"
	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/intent"
	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/query"
	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/resultset"
	"github.com/ivanmandinski/aisearch-sub001/internal/usecase/rerank"
)

// Pipeline defaults.
const (
	// DefaultRetrievalLimit caps the merged candidate set before reranking.
	DefaultRetrievalLimit = 50
	// DefaultConfidenceThreshold is the top lexical score at or above which
	// reranking is skipped entirely.
	DefaultConfidenceThreshold = 0.85
	// DefaultLexicalWeight is the lexical contribution to the hybrid score.
	DefaultLexicalWeight = 0.3
)

// Config holds ranking pipeline tunables.
type Config struct {
	// RetrievalLimit caps the merged candidate set (default 50).
	RetrievalLimit int
	// ConfidenceThreshold short-circuits reranking (default 0.85).
	ConfidenceThreshold float64
	// LexicalWeight is the lexical share of the hybrid score (default 0.3).
	// The AI share comes from the query itself.
	LexicalWeight float64
	// SourcePriority overrides the intent-derived source-type preference
	// order when non-empty.
	SourcePriority []string
}

func (c Config) withDefaults() Config {
	if c.RetrievalLimit <= 0 {
		c.RetrievalLimit = DefaultRetrievalLimit
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if c.LexicalWeight <= 0 {
		c.LexicalWeight = DefaultLexicalWeight
	}
	return c
}

// Entry is one cached pipeline run: the immutable ranked set plus the
// metadata that must stay stable across page requests.
type Entry struct {
	Set           resultset.Set
	RerankOutcome rerank.Outcome
	Rewritten     bool
	Intent        intent.Intent
}

// Result is a single ranked hit exposed to callers.
type Result struct {
	ID          string
	SourceType  string
	Title       string
	Excerpt     string
	HybridScore float64
	PublishedAt time.Time
	// AIScore is the 0-100 model score, present only when reranking ran.
	AIScore *float64
}

// Pagination describes the served slice of the cached set.
type Pagination struct {
	Offset       int
	Limit        int
	HasMore      bool
	TotalResults int
}

// Metadata communicates partial degradation to the caller instead of errors.
type Metadata struct {
	RerankOutcome rerank.Outcome
	Rewritten     bool
	Intent        intent.Intent
	CacheHit      bool
}

// Response is a served result page.
type Response struct {
	Results    []Result
	Pagination Pagination
	Metadata   Metadata
}

// Service orchestrates the ranking pipeline.
type Service struct {
	repo     Repository
	embed    domain.Embedder
	norm     Normalizer
	reranker Reranker
	cache    Cache
	cfg      Config
	// rerankTotal counts rerank outcomes, label "outcome". May be nil.
	rerankTotal *prometheus.CounterVec
	logger      *zap.Logger
	group       singleflight.Group
}

// New creates the search pipeline service. embed may be nil to disable the
// semantic leg; reranker may be nil to disable AI scoring.
func New(
	repo Repository,
	embed domain.Embedder,
	norm Normalizer,
	reranker Reranker,
	cache Cache,
	cfg Config,
	rerankTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:        repo,
		embed:       embed,
		norm:        norm,
		reranker:    reranker,
		cache:       cache,
		cfg:         cfg.withDefaults(),
		rerankTotal: rerankTotal,
		logger:      logger,
	}
}

// Search serves one result page. The first request for a fingerprint runs
// the full pipeline; subsequent page requests within the TTL slice the
// cached set without re-invoking retrieval, reranking, or fusion.
func (s *Service) Search(ctx context.Context, q *query.Query) (Response, error) {
	norm := s.norm.Normalize(ctx, q.Text())
	key := Fingerprint(norm.Text, q)

	if entry, ok := s.cache.Get(key); ok {
		return s.respond(q, entry, true), nil
	}

	for {
		v, err, _ := s.group.Do(key, func() (any, error) {
			if entry, ok := s.cache.Get(key); ok {
				return entry, nil
			}
			entry, err := s.compute(ctx, q, norm.Text, norm.Rewritten)
			if err != nil {
				return Entry{}, err
			}
			// A cancelled request must not publish a partial set.
			if ctx.Err() != nil {
				return Entry{}, ctx.Err()
			}
			s.cache.Put(key, entry)
			return entry, nil
		})
		if err != nil {
			// A collapsed flight fails with the leader's context error even
			// when this caller's own context is still live; recompute rather
			// than surfacing someone else's cancellation.
			if ctx.Err() == nil &&
				(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
				continue
			}
			return Response{}, err
		}
		return s.respond(q, v.(Entry), false), nil
	}
}

// Invalidate drops cached result sets by fingerprint prefix; an empty prefix
// drops all of them. This is the hook for external reindex signals.
func (s *Service) Invalidate(prefix string) int {
	if prefix == "" {
		prefix = fingerprintPrefix
	}
	return s.cache.Invalidate(prefix)
}

// compute runs retrieval, reranking, and fusion for one fingerprint.
func (s *Service) compute(ctx context.Context, q *query.Query, normalized string, rewritten bool) (Entry, error) {
	queryIntent := intent.Detect(normalized)

	candidates, err := s.retrieve(ctx, normalized, q)
	if err != nil {
		return Entry{}, err
	}
	if len(candidates) > s.cfg.RetrievalLimit {
		candidates = candidates[:s.cfg.RetrievalLimit]
	}

	candidates, outcome := s.maybeRerank(ctx, q, queryIntent, normalized, candidates)
	s.incRerank(outcome)

	order := s.cfg.SourcePriority
	if len(order) == 0 {
		order = queryIntent.SourcePriority()
	}

	ranked := fuse(
		candidates,
		s.cfg.LexicalWeight, q.AIWeight(),
		order, q.Filters().Sort(),
		time.Now(),
	)

	set, err := resultset.New(ranked, time.Now())
	if err != nil {
		return Entry{}, fmt.Errorf("build result set: %w", err)
	}
	return Entry{Set: set, RerankOutcome: outcome, Rewritten: rewritten, Intent: queryIntent}, nil
}

// retrieve runs the lexical and semantic legs concurrently and merges hits
// by document id. Either leg may fail alone; the pipeline degrades to the
// remaining signal and only errors when nothing is available.
func (s *Service) retrieve(ctx context.Context, normalized string, q *query.Query) ([]candidate.Candidate, error) {
	var (
		lexical, semantic []candidate.Candidate
		lexErr, semErr    error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lexical, lexErr = s.repo.SearchLexical(gctx, normalized, q.Filters(), s.cfg.RetrievalLimit)
		return nil
	})
	g.Go(func() error {
		if s.embed == nil {
			return nil
		}
		emb, err := s.embed.Embed(gctx, normalized)
		if err != nil {
			semErr = err
			return nil
		}
		semantic, semErr = s.repo.SearchSemantic(gctx, emb.Embedding, q.Filters(), s.cfg.RetrievalLimit)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if lexErr != nil && semErr != nil {
		return nil, fmt.Errorf("%w: lexical: %v; semantic: %v", domain.ErrRetrievalUnavailable, lexErr, semErr)
	}
	if lexErr != nil {
		s.logger.Warn("Lexical retrieval failed, using semantic results only", zap.Error(lexErr))
	}
	if semErr != nil {
		s.logger.Warn("Semantic retrieval failed, using lexical results only", zap.Error(semErr))
	}

	return mergeCandidates(lexical, semantic), nil
}

// mergeCandidates joins the two legs by document id, attaching both scores
// to the same candidate when both legs returned it. Lexical order wins for
// positioning; semantic-only hits follow in their own order.
func mergeCandidates(lexical, semantic []candidate.Candidate) []candidate.Candidate {
	merged := make([]candidate.Candidate, 0, len(lexical)+len(semantic))
	index := make(map[string]int, len(lexical))

	for _, c := range lexical {
		index[c.ID()] = len(merged)
		merged = append(merged, c)
	}
	for _, c := range semantic {
		score, ok := c.Semantic()
		if !ok {
			continue
		}
		if i, dup := index[c.ID()]; dup {
			if joined, err := merged[i].WithSemantic(score); err == nil {
				merged[i] = joined
			}
			continue
		}
		index[c.ID()] = len(merged)
		merged = append(merged, c)
	}
	return merged
}

// maybeRerank decides whether the AI call happens at all, then delegates to
// the reranker. All skip/failure policy is visible in the returned outcome.
func (s *Service) maybeRerank(
	ctx context.Context,
	q *query.Query,
	queryIntent intent.Intent,
	normalized string,
	candidates []candidate.Candidate,
) ([]candidate.Candidate, rerank.Outcome) {
	if !q.AIEnabled() || s.reranker == nil {
		return candidates, rerank.OutcomeDisabled
	}
	if topLexical(candidates) >= s.cfg.ConfidenceThreshold {
		return candidates, rerank.OutcomeSkippedConfidence
	}

	scored, ok := s.reranker.Rerank(ctx, normalized, queryIntent, q.Instructions(), candidates)
	if !ok {
		return candidates, rerank.OutcomeFailed
	}
	return scored, rerank.OutcomeApplied
}

func topLexical(candidates []candidate.Candidate) float64 {
	top := 0.0
	for _, c := range candidates {
		if score, ok := c.Lexical(); ok && score > top {
			top = score
		}
	}
	return top
}

func (s *Service) respond(q *query.Query, entry Entry, cacheHit bool) Response {
	slice, hasMore := entry.Set.Page(q.Page(), q.PageSize())

	results := make([]Result, 0, len(slice))
	for i := range slice {
		c := &slice[i]
		r := Result{
			ID:          c.ID(),
			SourceType:  c.SourceType(),
			Title:       c.Title(),
			Excerpt:     c.Excerpt(),
			HybridScore: c.Hybrid(),
			PublishedAt: c.PublishedAt(),
		}
		if ai, ok := c.AIScore(); ok {
			score := ai
			r.AIScore = &score
		}
		results = append(results, r)
	}

	return Response{
		Results: results,
		Pagination: Pagination{
			Offset:       (q.Page() - 1) * q.PageSize(),
			Limit:        q.PageSize(),
			HasMore:      hasMore,
			TotalResults: entry.Set.Len(),
		},
		Metadata: Metadata{
			RerankOutcome: entry.RerankOutcome,
			Rewritten:     entry.Rewritten,
			Intent:        entry.Intent,
			CacheHit:      cacheHit,
		},
	}
}

func (s *Service) incRerank(outcome rerank.Outcome) {
	if s.rerankTotal != nil {
		s.rerankTotal.WithLabelValues(string(outcome)).Inc()
	}
}

// IsRetrievalUnavailable reports whether err is the retrieval-failure error
// callers must distinguish from a valid empty result.
func IsRetrievalUnavailable(err error) bool {
	return errors.Is(err, domain.ErrRetrievalUnavailable)
}
