package openai

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ivanmandinski/aisearch-sub001/internal/domain"
	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/candidate"
	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/intent"
	"github.com/ivanmandinski/aisearch-sub001/internal/metrics"
)

// excerptLimit bounds per-candidate excerpt text in the prompt.
const excerptLimit = 300

// Rubric is the 100-point scoring rubric rendered into the rerank prompt.
// The split is tunable policy, not a contract.
type Rubric struct {
	Semantic    int
	Intent      int
	Quality     int
	Specificity int
}

// DefaultRubric returns the default rubric split.
func DefaultRubric() Rubric {
	return Rubric{Semantic: 40, Intent: 30, Quality: 15, Specificity: 15}
}

// Reranker is a candidate-scoring provider using the OpenAI-compatible chat
// API. It returns the raw model output; coercion belongs to the rerank
// usecase.
type Reranker struct {
	client   *openai.Client
	model    string
	provider string
	rubric   Rubric
	logger   *zap.Logger
}

// RerankerConfig holds the rerank provider settings.
type RerankerConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Provider string
	Rubric   Rubric
	Logger   *zap.Logger
}

// NewReranker creates an OpenAI-compatible candidate reranker.
func NewReranker(cfg *RerankerConfig) *Reranker {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	rubric := cfg.Rubric
	if rubric == (Rubric{}) {
		rubric = DefaultRubric()
	}
	return &Reranker{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		provider: cfg.Provider,
		rubric:   rubric,
		logger:   cfg.Logger,
	}
}

// Score implements rerank.Scorer.
func (r *Reranker) Score(
	ctx context.Context,
	query string,
	queryIntent intent.Intent,
	instructions string,
	candidates []candidate.Candidate,
) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: r.systemPrompt(queryIntent, instructions)},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(query, candidates)},
		},
	}

	start := time.Now()
	resp, err := r.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.AIRequestsTotal.WithLabelValues(r.provider, r.model, opRerank, "error").Inc()
		return "", parseAPIError("rerank", err, domain.ErrRerankProviderError)
	}
	if len(resp.Choices) == 0 {
		metrics.AIRequestsTotal.WithLabelValues(r.provider, r.model, opRerank, "error").Inc()
		return "", fmt.Errorf("empty rerank response: %w", domain.ErrRerankProviderError)
	}

	metrics.AIRequestsTotal.WithLabelValues(r.provider, r.model, opRerank, "success").Inc()
	metrics.AIRequestDuration.WithLabelValues(r.provider, r.model, opRerank).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.AITokensTotal.WithLabelValues(r.provider, r.model, opRerank, "total").
			Add(float64(resp.Usage.TotalTokens))
	}

	return resp.Choices[0].Message.Content, nil
}

func (r *Reranker) systemPrompt(queryIntent intent.Intent, instructions string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You score search results for relevance to a user query on a 0-100 scale.
Scoring rubric:
- semantic/topical relevance to the query: up to %d points
- alignment with the detected user intent (%s): up to %d points
- content quality: up to %d points
- specificity (specific answers beat generic mentions): up to %d points
`, r.rubric.Semantic, queryIntent, r.rubric.Intent, r.rubric.Quality, r.rubric.Specificity)

	if queryIntent == intent.RoleLookup {
		b.WriteString("The query asks who holds a role. A profile document naming the current " +
			"holder must score far above an article that merely mentions the role.\n")
	}
	if instructions != "" {
		b.WriteString("Additional ranking instructions from the caller:\n")
		b.WriteString(instructions)
		b.WriteString("\n")
	}
	b.WriteString(`Respond with exactly one JSON array and nothing else:
[{"id": "<document id>", "score": <0-100>}, ...]`)
	return b.String()
}

func buildUserPrompt(query string, candidates []candidate.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nDocuments:\n", query)
	for i := range candidates {
		c := &candidates[i]
		fmt.Fprintf(&b, "- id=%s type=%s title=%q excerpt=%q\n",
			c.ID(), c.SourceType(), c.Title(), truncateExcerpt(c.Excerpt(), excerptLimit))
	}
	return b.String()
}

// truncateExcerpt cuts s to at most limit bytes without splitting a UTF-8
// rune mid-sequence.
func truncateExcerpt(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
