package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ivanmandinski/aisearch-sub001/internal/domain"
	"github.com/ivanmandinski/aisearch-sub001/internal/metrics"
)

const rewriteSystemPrompt = `You rewrite search queries for a website search engine.
Expand abbreviations, fix obvious typos, and add closely related terms, but keep the
user's intent unchanged. Respond with exactly one JSON object and nothing else:
{"rewritten_query": "<rewritten query>"}`

// Rewriter is a query-rewrite provider using the OpenAI-compatible chat API.
// It returns the raw model output; validation belongs to the normalizer.
type Rewriter struct {
	client   *openai.Client
	model    string
	provider string
	logger   *zap.Logger
}

// RewriterConfig holds the rewrite provider settings.
type RewriterConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Provider string
	Logger   *zap.Logger
}

// NewRewriter creates an OpenAI-compatible query rewriter.
func NewRewriter(cfg *RewriterConfig) *Rewriter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Rewriter{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		provider: cfg.Provider,
		logger:   cfg.Logger,
	}
}

// Rewrite implements normalize.Rewriter.
func (r *Rewriter) Rewrite(ctx context.Context, query string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: 0,
		MaxTokens:   200,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: rewriteSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
	}

	start := time.Now()
	resp, err := r.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		metrics.AIRequestsTotal.WithLabelValues(r.provider, r.model, opRewrite, "error").Inc()
		return "", parseAPIError("rewrite", err, domain.ErrRewriteProviderError)
	}
	if len(resp.Choices) == 0 {
		metrics.AIRequestsTotal.WithLabelValues(r.provider, r.model, opRewrite, "error").Inc()
		return "", fmt.Errorf("empty rewrite response: %w", domain.ErrRewriteProviderError)
	}

	metrics.AIRequestsTotal.WithLabelValues(r.provider, r.model, opRewrite, "success").Inc()
	metrics.AIRequestDuration.WithLabelValues(r.provider, r.model, opRewrite).Observe(duration.Seconds())
	if resp.Usage.TotalTokens > 0 {
		metrics.AITokensTotal.WithLabelValues(r.provider, r.model, opRewrite, "total").
			Add(float64(resp.Usage.TotalTokens))
	}

	return resp.Choices[0].Message.Content, nil
}
