package candidate

import (
	"fmt"
	"time"
)

// Candidate is a single retrieval hit flowing through the ranking pipeline.
// Lexical and semantic scores are attached by the retriever; the AI score by
// the reranker; hybrid score, priority rank, and freshness by score fusion.
// A missing score is absent, not zero.
type Candidate struct {
	id          string
	sourceType  string
	title       string
	excerpt     string
	publishedAt time.Time

	lexical     float64
	hasLexical  bool
	semantic    float64
	hasSemantic bool
	aiScore     float64
	hasAIScore  bool

	hybrid       float64
	priorityRank int
	freshness    float64
}

// New creates a candidate without any retrieval scores attached.
func New(id, sourceType, title, excerpt string, publishedAt time.Time) (Candidate, error) {
	if id == "" {
		return Candidate{}, fmt.Errorf("candidate id is required")
	}
	return Candidate{
		id:          id,
		sourceType:  sourceType,
		title:       title,
		excerpt:     excerpt,
		publishedAt: publishedAt,
		freshness:   1.0,
	}, nil
}

// WithLexical returns a copy with the lexical score attached (0-1).
func (c Candidate) WithLexical(score float64) (Candidate, error) {
	if score < 0 || score > 1 {
		return Candidate{}, fmt.Errorf("lexical score %g out of range [0,1]", score)
	}
	c.lexical = score
	c.hasLexical = true
	return c, nil
}

// WithSemantic returns a copy with the semantic score attached (0-1).
func (c Candidate) WithSemantic(score float64) (Candidate, error) {
	if score < 0 || score > 1 {
		return Candidate{}, fmt.Errorf("semantic score %g out of range [0,1]", score)
	}
	c.semantic = score
	c.hasSemantic = true
	return c, nil
}

// WithAIScore returns a copy with the AI relevance score attached (0-100).
func (c Candidate) WithAIScore(score float64) (Candidate, error) {
	if score < 0 || score > 100 {
		return Candidate{}, fmt.Errorf("ai score %g out of range [0,100]", score)
	}
	c.aiScore = score
	c.hasAIScore = true
	return c, nil
}

// WithRanking returns a copy with the computed ordering fields attached.
// Called exactly once per candidate, by score fusion, before caching.
func (c Candidate) WithRanking(hybrid float64, priorityRank int, freshness float64) Candidate {
	c.hybrid = hybrid
	c.priorityRank = priorityRank
	c.freshness = freshness
	return c
}

// ID returns the document identifier.
func (c *Candidate) ID() string { return c.id }

// SourceType returns the document source type (post, page, profile, ...).
func (c *Candidate) SourceType() string { return c.sourceType }

// Title returns the document title.
func (c *Candidate) Title() string { return c.title }

// Excerpt returns the document excerpt.
func (c *Candidate) Excerpt() string { return c.excerpt }

// PublishedAt returns the publication timestamp.
func (c *Candidate) PublishedAt() time.Time { return c.publishedAt }

// Lexical returns the lexical score and whether it is present.
func (c *Candidate) Lexical() (float64, bool) { return c.lexical, c.hasLexical }

// Semantic returns the semantic score and whether it is present.
func (c *Candidate) Semantic() (float64, bool) { return c.semantic, c.hasSemantic }

// AIScore returns the AI relevance score and whether it is present.
func (c *Candidate) AIScore() (float64, bool) { return c.aiScore, c.hasAIScore }

// RetrievalScore returns the best available retrieval signal: the lexical
// score when present, the semantic score otherwise.
func (c *Candidate) RetrievalScore() float64 {
	if c.hasLexical {
		return c.lexical
	}
	if c.hasSemantic {
		return c.semantic
	}
	return 0
}

// Hybrid returns the fused score.
func (c *Candidate) Hybrid() float64 { return c.hybrid }

// PriorityRank returns the source-type priority (lower = higher priority).
func (c *Candidate) PriorityRank() int { return c.priorityRank }

// Freshness returns the age-based boost multiplier.
func (c *Candidate) Freshness() float64 { return c.freshness }
