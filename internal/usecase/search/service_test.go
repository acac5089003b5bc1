package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ivanmandinski/aisearch-sub001/internal/domain"
	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/candidate"
	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/filter"
	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/intent"
	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/query"
	"github.com/ivanmandinski/aisearch-sub001/internal/usecase/normalize"
	"github.com/ivanmandinski/aisearch-sub001/internal/usecase/rerank"
)

// --- Mocks ---

type mockRepo struct {
	lexical      []candidate.Candidate
	lexicalErr   error
	semantic     []candidate.Candidate
	semanticErr  error
	lexicalCalls int
}

func (m *mockRepo) SearchLexical(
	_ context.Context, _ string, _ filter.Filter, _ int,
) ([]candidate.Candidate, error) {
	m.lexicalCalls++
	return m.lexical, m.lexicalErr
}

func (m *mockRepo) SearchSemantic(
	_ context.Context, _ []float32, _ filter.Filter, _ int,
) ([]candidate.Candidate, error) {
	return m.semantic, m.semanticErr
}

// stalledRepo blocks the first lexical call until its context is cancelled;
// later calls return results immediately.
type stalledRepo struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	results []candidate.Candidate
}

func (m *stalledRepo) SearchLexical(
	ctx context.Context, _ string, _ filter.Filter, _ int,
) ([]candidate.Candidate, error) {
	m.mu.Lock()
	m.calls++
	first := m.calls == 1
	m.mu.Unlock()
	if first {
		close(m.entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.results, nil
}

func (m *stalledRepo) SearchSemantic(
	_ context.Context, _ []float32, _ filter.Filter, _ int,
) ([]candidate.Candidate, error) {
	return nil, nil
}

type mockEmbedder struct {
	err error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}, nil
}

type mockNormalizer struct{}

func (mockNormalizer) Normalize(_ context.Context, raw string) normalize.Result {
	return normalize.Result{Text: strings.Join(strings.Fields(raw), " "), Class: normalize.Compound}
}

type mockReranker struct {
	score float64
	fail  bool
	calls int
	seen  int
}

func (m *mockReranker) Rerank(
	_ context.Context, _ string, _ intent.Intent, _ string, candidates []candidate.Candidate,
) ([]candidate.Candidate, bool) {
	m.calls++
	m.seen = len(candidates)
	if m.fail {
		return candidates, false
	}
	out := make([]candidate.Candidate, len(candidates))
	for i, c := range candidates {
		scored, err := c.WithAIScore(m.score)
		if err != nil {
			return candidates, false
		}
		out[i] = scored
	}
	return out, true
}

type mockCache struct {
	entries map[string]Entry
	puts    int
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]Entry)}
}

func (m *mockCache) Get(key string) (Entry, bool) {
	e, ok := m.entries[key]
	return e, ok
}

func (m *mockCache) Put(key string, entry Entry) {
	m.puts++
	m.entries[key] = entry
}

func (m *mockCache) Invalidate(prefix string) int {
	n := 0
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

// --- Helpers ---

func lexCandidate(t *testing.T, id string, score float64) candidate.Candidate {
	t.Helper()
	c, err := candidate.New(id, "post", "title "+id, "excerpt", time.Time{})
	if err != nil {
		t.Fatalf("candidate.New: %v", err)
	}
	c, err = c.WithLexical(score)
	if err != nil {
		t.Fatalf("WithLexical: %v", err)
	}
	return c
}

func semCandidate(t *testing.T, id string, score float64) candidate.Candidate {
	t.Helper()
	c, err := candidate.New(id, "post", "title "+id, "excerpt", time.Time{})
	if err != nil {
		t.Fatalf("candidate.New: %v", err)
	}
	c, err = c.WithSemantic(score)
	if err != nil {
		t.Fatalf("WithSemantic: %v", err)
	}
	return c
}

func mustQuery(t *testing.T, text string, page, pageSize int, aiEnabled bool) *query.Query {
	t.Helper()
	q, err := query.New(text, page, pageSize, aiEnabled, nil, "", filter.Filter{})
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return &q
}

func newService(repo Repository, embed domain.Embedder, reranker Reranker, cache Cache) *Service {
	return New(repo, embed, mockNormalizer{}, reranker, cache, Config{}, nil, zap.NewNop())
}

// --- Tests ---

func TestSearch_MergesLegsAndRanks(t *testing.T) {
	repo := &mockRepo{
		lexical:  []candidate.Candidate{lexCandidate(t, "a", 0.4), lexCandidate(t, "b", 0.8)},
		semantic: []candidate.Candidate{semCandidate(t, "b", 0.9), semCandidate(t, "c", 0.7)},
	}
	svc := newService(repo, &mockEmbedder{}, nil, newMockCache())

	resp, err := svc.Search(context.Background(), mustQuery(t, "golang concurrency", 1, 10, false))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 merged results, got %d", len(resp.Results))
	}
	// Without AI: hybrid = retrieval score, so b (0.8) > c (0.7) > a (0.4).
	wantOrder := []string{"b", "c", "a"}
	for i, want := range wantOrder {
		if resp.Results[i].ID != want {
			t.Errorf("result[%d] = %q, want %q", i, resp.Results[i].ID, want)
		}
	}
	if resp.Metadata.RerankOutcome != rerank.OutcomeDisabled {
		t.Errorf("outcome = %q, want %q", resp.Metadata.RerankOutcome, rerank.OutcomeDisabled)
	}
}

func TestSearch_CacheHitSkipsPipeline(t *testing.T) {
	repo := &mockRepo{lexical: []candidate.Candidate{lexCandidate(t, "a", 0.4)}}
	svc := newService(repo, nil, nil, newMockCache())
	q := mustQuery(t, "golang concurrency", 1, 10, false)

	first, err := svc.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("first Search: %v", err)
	}
	if first.Metadata.CacheHit {
		t.Error("first request must be a cache miss")
	}

	second, err := svc.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("second Search: %v", err)
	}
	if !second.Metadata.CacheHit {
		t.Error("second request must be a cache hit")
	}
	if repo.lexicalCalls != 1 {
		t.Errorf("retrieval ran %d times, want 1", repo.lexicalCalls)
	}
}

func TestSearch_PageRequestsShareOneSet(t *testing.T) {
	cands := make([]candidate.Candidate, 0, 42)
	for i := 0; i < 42; i++ {
		cands = append(cands, lexCandidate(t, fmt.Sprintf("doc-%03d", i), 0.5))
	}
	repo := &mockRepo{lexical: cands}
	svc := newService(repo, nil, nil, newMockCache())

	page1, err := svc.Search(context.Background(), mustQuery(t, "golang concurrency", 1, 10, false))
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page1.Results) != 10 {
		t.Errorf("page 1 has %d results, want 10", len(page1.Results))
	}
	if !page1.Pagination.HasMore {
		t.Error("page 1 must report has_more=true")
	}
	if page1.Pagination.TotalResults != 42 {
		t.Errorf("total = %d, want 42", page1.Pagination.TotalResults)
	}

	page5, err := svc.Search(context.Background(), mustQuery(t, "golang concurrency", 5, 10, false))
	if err != nil {
		t.Fatalf("page 5: %v", err)
	}
	if len(page5.Results) != 2 {
		t.Errorf("page 5 has %d results, want 2", len(page5.Results))
	}
	if page5.Pagination.HasMore {
		t.Error("page 5 must report has_more=false")
	}
	if page5.Pagination.Offset != 40 {
		t.Errorf("page 5 offset = %d, want 40", page5.Pagination.Offset)
	}
	if repo.lexicalCalls != 1 {
		t.Errorf("retrieval ran %d times for two pages, want 1", repo.lexicalCalls)
	}
}

func TestSearch_ConfidenceSkipsRerank(t *testing.T) {
	repo := &mockRepo{lexical: []candidate.Candidate{lexCandidate(t, "a", 0.9)}}
	rr := &mockReranker{score: 50}
	svc := newService(repo, nil, rr, newMockCache())

	resp, err := svc.Search(context.Background(), mustQuery(t, "golang concurrency", 1, 10, true))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if rr.calls != 0 {
		t.Errorf("reranker called %d times despite confident lexical top hit", rr.calls)
	}
	if resp.Metadata.RerankOutcome != rerank.OutcomeSkippedConfidence {
		t.Errorf("outcome = %q, want %q", resp.Metadata.RerankOutcome, rerank.OutcomeSkippedConfidence)
	}
}

func TestSearch_CapsCandidatesBeforeRerank(t *testing.T) {
	cands := make([]candidate.Candidate, 0, 60)
	for i := 0; i < 60; i++ {
		cands = append(cands, lexCandidate(t, fmt.Sprintf("doc-%03d", i), 0.5))
	}
	repo := &mockRepo{lexical: cands}
	rr := &mockReranker{score: 50}
	svc := newService(repo, nil, rr, newMockCache())

	resp, err := svc.Search(context.Background(), mustQuery(t, "golang concurrency", 1, 50, true))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if rr.seen != 50 {
		t.Errorf("reranker saw %d candidates, want 50", rr.seen)
	}
	if resp.Pagination.TotalResults != 50 {
		t.Errorf("total = %d, want capped 50", resp.Pagination.TotalResults)
	}
}

func TestSearch_RerankFailureDegrades(t *testing.T) {
	repo := &mockRepo{
		lexical: []candidate.Candidate{lexCandidate(t, "a", 0.6), lexCandidate(t, "b", 0.3)},
	}
	rr := &mockReranker{fail: true}
	svc := newService(repo, nil, rr, newMockCache())

	resp, err := svc.Search(context.Background(), mustQuery(t, "golang concurrency", 1, 10, true))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if resp.Metadata.RerankOutcome != rerank.OutcomeFailed {
		t.Errorf("outcome = %q, want %q", resp.Metadata.RerankOutcome, rerank.OutcomeFailed)
	}
	if resp.Results[0].ID != "a" {
		t.Errorf("lexical ordering must survive rerank failure, top = %q", resp.Results[0].ID)
	}
	if resp.Results[0].AIScore != nil {
		t.Error("no AI score must be exposed after rerank failure")
	}
}

func TestSearch_RerankApplied(t *testing.T) {
	repo := &mockRepo{
		lexical: []candidate.Candidate{lexCandidate(t, "a", 0.6), lexCandidate(t, "b", 0.3)},
	}
	rr := &mockReranker{score: 80}
	svc := newService(repo, nil, rr, newMockCache())

	resp, err := svc.Search(context.Background(), mustQuery(t, "golang concurrency", 1, 10, true))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if resp.Metadata.RerankOutcome != rerank.OutcomeApplied {
		t.Errorf("outcome = %q, want %q", resp.Metadata.RerankOutcome, rerank.OutcomeApplied)
	}
	if resp.Results[0].AIScore == nil || *resp.Results[0].AIScore != 80 {
		t.Errorf("expected AI score 80 on top result, got %v", resp.Results[0].AIScore)
	}
}

func TestSearch_OneLegFailureDegrades(t *testing.T) {
	repo := &mockRepo{
		lexicalErr: errors.New("index offline"),
		semantic:   []candidate.Candidate{semCandidate(t, "c", 0.7)},
	}
	svc := newService(repo, &mockEmbedder{}, nil, newMockCache())

	resp, err := svc.Search(context.Background(), mustQuery(t, "golang concurrency", 1, 10, false))
	if err != nil {
		t.Fatalf("Search must degrade, got error: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "c" {
		t.Fatalf("expected the semantic hit to survive, got %+v", resp.Results)
	}
}

func TestSearch_EmbeddingFailureDegradesToLexical(t *testing.T) {
	repo := &mockRepo{lexical: []candidate.Candidate{lexCandidate(t, "a", 0.5)}}
	svc := newService(repo, &mockEmbedder{err: errors.New("provider down")}, nil, newMockCache())

	resp, err := svc.Search(context.Background(), mustQuery(t, "golang concurrency", 1, 10, false))
	if err != nil {
		t.Fatalf("Search must degrade, got error: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected the lexical hit to survive, got %d results", len(resp.Results))
	}
}

func TestSearch_BothLegsFailed(t *testing.T) {
	repo := &mockRepo{
		lexicalErr:  errors.New("index offline"),
		semanticErr: errors.New("index offline"),
	}
	svc := newService(repo, &mockEmbedder{}, nil, newMockCache())

	_, err := svc.Search(context.Background(), mustQuery(t, "golang concurrency", 1, 10, false))
	if !IsRetrievalUnavailable(err) {
		t.Fatalf("expected retrieval-unavailable error, got %v", err)
	}
}

func TestSearch_CancelledRequestNotCached(t *testing.T) {
	repo := &mockRepo{lexical: []candidate.Candidate{lexCandidate(t, "a", 0.5)}}
	cache := newMockCache()
	svc := newService(repo, nil, nil, cache)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Search(ctx, mustQuery(t, "golang concurrency", 1, 10, false))
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if cache.puts != 0 {
		t.Errorf("cancelled request published %d cache entries, want 0", cache.puts)
	}
}

func TestSearch_CollapsedWaiterSurvivesLeaderCancel(t *testing.T) {
	repo := &stalledRepo{
		entered: make(chan struct{}),
		results: []candidate.Candidate{lexCandidate(t, "a", 0.5)},
	}
	cache := newMockCache()
	svc := newService(repo, nil, nil, cache)

	leaderQuery := mustQuery(t, "golang concurrency", 1, 10, false)
	waiterQuery := mustQuery(t, "golang concurrency", 1, 10, false)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	defer cancelLeader()

	leaderErr := make(chan error, 1)
	go func() {
		_, err := svc.Search(leaderCtx, leaderQuery)
		leaderErr <- err
	}()
	<-repo.entered

	type waiterResult struct {
		resp Response
		err  error
	}
	waiterDone := make(chan waiterResult, 1)
	go func() {
		resp, err := svc.Search(context.Background(), waiterQuery)
		waiterDone <- waiterResult{resp: resp, err: err}
	}()

	// Give the second request time to join the in-flight computation.
	time.Sleep(50 * time.Millisecond)
	cancelLeader()

	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller got %v, want context.Canceled", err)
	}

	got := <-waiterDone
	if got.err != nil {
		t.Fatalf("caller with a live context got error: %v", got.err)
	}
	if len(got.resp.Results) != 1 || got.resp.Results[0].ID != "a" {
		t.Fatalf("caller with a live context got %+v, want the computed result", got.resp.Results)
	}
	if cache.puts != 1 {
		t.Errorf("cache published %d entries, want 1 from the surviving caller", cache.puts)
	}
}

func TestInvalidate(t *testing.T) {
	repo := &mockRepo{lexical: []candidate.Candidate{lexCandidate(t, "a", 0.5)}}
	cache := newMockCache()
	svc := newService(repo, nil, nil, cache)

	if _, err := svc.Search(context.Background(), mustQuery(t, "golang concurrency", 1, 10, false)); err != nil {
		t.Fatalf("Search: %v", err)
	}

	if n := svc.Invalidate(""); n != 1 {
		t.Errorf("Invalidate dropped %d entries, want 1", n)
	}

	resp, err := svc.Search(context.Background(), mustQuery(t, "golang concurrency", 1, 10, false))
	if err != nil {
		t.Fatalf("Search after invalidate: %v", err)
	}
	if resp.Metadata.CacheHit {
		t.Error("request after invalidation must recompute")
	}
	if repo.lexicalCalls != 2 {
		t.Errorf("retrieval ran %d times, want 2", repo.lexicalCalls)
	}
}
