// Package normalize canonicalizes and classifies incoming search queries and
// applies an optional AI rewrite with strict output validation. All rewrite
// fallback policy lives here: a rejected rewrite always degrades to the
// original query text, never to a broken one.
package normalize

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// simpleMaxRunes is the length under which a query has no room for ambiguity.
const simpleMaxRunes = 5

// Class is the query classification.
type Class string

// Query classes.
const (
	// Simple queries skip rewriting entirely.
	Simple Class = "simple"
	// Compound queries are eligible for AI rewriting.
	Compound Class = "compound"
)

// Result is a normalized query.
type Result struct {
	// Text is the normalized (possibly rewritten) query text.
	Text string
	// Class is the simple/compound classification.
	Class Class
	// Rewritten reports whether an AI rewrite was applied.
	Rewritten bool
}

// Service is the query normalizer.
type Service struct {
	rewriter Rewriter
	logger   *zap.Logger
}

// New creates a normalizer. rewriter may be nil to disable rewriting.
func New(rewriter Rewriter, logger *zap.Logger) *Service {
	return &Service{rewriter: rewriter, logger: logger}
}

// Normalize canonicalizes raw query text and, for compound queries, attempts
// an AI rewrite. Any rewrite failure falls back to the canonicalized
// original.
func (s *Service) Normalize(ctx context.Context, raw string) Result {
	text := canonicalize(raw)
	class := Classify(text)

	res := Result{Text: text, Class: class}
	if class == Simple || s.rewriter == nil {
		return res
	}

	// A query that already looks like model output (fenced or a JSON blob)
	// is never sent to the model: echo it back annotated as not rewritten.
	if looksLikeModelOutput(text) {
		return res
	}

	out, err := s.rewriter.Rewrite(ctx, text)
	if err != nil {
		s.logger.Warn("Query rewrite failed, using original query", zap.Error(err))
		return res
	}

	parsed := ParseRewrite(out)
	if !parsed.OK() {
		s.logger.Warn("Query rewrite rejected, using original query",
			zap.String("reason", parsed.Reason()))
		return res
	}

	res.Text = canonicalize(parsed.Value())
	res.Rewritten = true
	return res
}

// Classify determines whether a query is simple or compound. A query is
// simple if it is a single token, shorter than simpleMaxRunes, or wrapped in
// quotation marks (an exact phrase).
func Classify(text string) Class {
	if utf8.RuneCountInString(text) < simpleMaxRunes {
		return Simple
	}
	if isQuoted(text) {
		return Simple
	}
	if !strings.ContainsAny(text, " \t") {
		return Simple
	}
	return Compound
}

// canonicalize trims and collapses internal whitespace.
func canonicalize(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

func isQuoted(text string) bool {
	if len(text) < 2 {
		return false
	}
	first, last := text[0], text[len(text)-1]
	return (first == '"' && last == '"') || (first == '\'' && last == '\'')
}

// looksLikeModelOutput detects query text that is itself a fenced block or a
// complete brace-delimited JSON blob.
func looksLikeModelOutput(text string) bool {
	if strings.HasPrefix(text, "```") {
		return true
	}
	return strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}")
}
