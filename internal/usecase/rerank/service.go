// Package rerank scores a capped candidate subset against user intent with a
// language model. It is robust to non-JSON model output and degrades to
// lexical-only ordering per request; a rerank failure is never pipeline-fatal.
package rerank

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/candidate"
	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/intent"
)

// MaxCandidates is the hard cap on candidates sent to the model.
const MaxCandidates = 50

// DefaultTimeout bounds the single model call per request. A timed-out call
// degrades to lexical-only ordering; it is never retried.
const DefaultTimeout = 4 * time.Second

// Outcome describes what happened to reranking for one request. It is
// surfaced to callers as response metadata, not as an error.
type Outcome string

// Rerank outcomes.
const (
	// OutcomeApplied means AI scores were attached.
	OutcomeApplied Outcome = "applied"
	// OutcomeDisabled means the caller turned reranking off.
	OutcomeDisabled Outcome = "disabled"
	// OutcomeSkippedConfidence means the top lexical score cleared the
	// confidence threshold, so reranking was skipped to save the call.
	OutcomeSkippedConfidence Outcome = "skipped_high_confidence"
	// OutcomeFailed means the model call failed or returned unusable
	// output; ordering fell back to lexical signals.
	OutcomeFailed Outcome = "failed"
)

// Service is the AI reranker.
type Service struct {
	scorer  Scorer
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a reranker. A non-positive timeout falls back to DefaultTimeout.
func New(scorer Scorer, timeout time.Duration, logger *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{scorer: scorer, timeout: timeout, logger: logger}
}

// Rerank attaches 0-100 AI scores to up to MaxCandidates candidates and
// reports whether scoring succeeded. On any model error, timeout, or
// malformed output the input candidates are returned unchanged with ok=false.
func (s *Service) Rerank(
	ctx context.Context,
	query string,
	queryIntent intent.Intent,
	instructions string,
	candidates []candidate.Candidate,
) ([]candidate.Candidate, bool) {
	if s.scorer == nil || len(candidates) == 0 {
		return candidates, false
	}

	subset := candidates
	if len(subset) > MaxCandidates {
		subset = subset[:MaxCandidates]
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.scorer.Score(ctx, query, queryIntent, instructions, subset)
	if err != nil {
		s.logger.Warn("Rerank call failed, falling back to lexical ordering",
			zap.Error(err))
		return candidates, false
	}

	scores, parsed := parseScores(raw)
	if !parsed.OK() {
		s.logger.Warn("Rerank output unusable, falling back to lexical ordering",
			zap.String("reason", parsed.Reason()))
		return candidates, false
	}

	out := make([]candidate.Candidate, len(candidates))
	scoredAny := false
	for i, c := range candidates {
		if score, ok := scores[c.ID()]; ok {
			scored, err := c.WithAIScore(score)
			if err == nil {
				out[i] = scored
				scoredAny = true
				continue
			}
		}
		// The model omitted this id; the candidate keeps lexical-only
		// scoring during fusion.
		out[i] = c
	}
	if !scoredAny {
		s.logger.Warn("Rerank output matched no candidate ids, falling back to lexical ordering")
		return candidates, false
	}
	return out, true
}
