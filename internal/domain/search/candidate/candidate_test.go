package candidate

import (
	"testing"
	"time"
)

func TestNew_RequiresID(t *testing.T) {
	if _, err := New("", "post", "title", "excerpt", time.Time{}); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestScoreRanges(t *testing.T) {
	c, err := New("doc-1", "post", "title", "excerpt", time.Time{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := c.WithLexical(1.5); err == nil {
		t.Error("lexical score above 1 must be rejected")
	}
	if _, err := c.WithSemantic(-0.1); err == nil {
		t.Error("negative semantic score must be rejected")
	}
	if _, err := c.WithAIScore(101); err == nil {
		t.Error("ai score above 100 must be rejected")
	}
	if _, err := c.WithAIScore(100); err != nil {
		t.Errorf("ai score 100 must be accepted: %v", err)
	}
}

func TestAbsentScoresAreAbsent(t *testing.T) {
	c, err := New("doc-1", "post", "title", "excerpt", time.Time{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, ok := c.Lexical(); ok {
		t.Error("fresh candidate must have no lexical score")
	}
	if _, ok := c.Semantic(); ok {
		t.Error("fresh candidate must have no semantic score")
	}
	if _, ok := c.AIScore(); ok {
		t.Error("fresh candidate must have no ai score")
	}
	if c.RetrievalScore() != 0 {
		t.Errorf("retrieval score without signals = %g, want 0", c.RetrievalScore())
	}
}

func TestRetrievalScore_PrefersLexical(t *testing.T) {
	c, err := New("doc-1", "post", "title", "excerpt", time.Time{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c, err = c.WithSemantic(0.9)
	if err != nil {
		t.Fatalf("WithSemantic: %v", err)
	}
	if c.RetrievalScore() != 0.9 {
		t.Errorf("semantic-only retrieval score = %g, want 0.9", c.RetrievalScore())
	}

	c, err = c.WithLexical(0.4)
	if err != nil {
		t.Fatalf("WithLexical: %v", err)
	}
	if c.RetrievalScore() != 0.4 {
		t.Errorf("retrieval score with both signals = %g, want lexical 0.4", c.RetrievalScore())
	}
}

func TestWithScores_CopiesNotMutates(t *testing.T) {
	base, err := New("doc-1", "post", "title", "excerpt", time.Time{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	scored, err := base.WithLexical(0.5)
	if err != nil {
		t.Fatalf("WithLexical: %v", err)
	}

	if _, ok := base.Lexical(); ok {
		t.Error("WithLexical must not mutate the receiver")
	}
	if score, ok := scored.Lexical(); !ok || score != 0.5 {
		t.Errorf("copy lexical = (%g, %v), want (0.5, true)", score, ok)
	}
}

func TestWithRanking(t *testing.T) {
	c, err := New("doc-1", "post", "title", "excerpt", time.Time{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ranked := c.WithRanking(0.73, 2, 1.5)

	if ranked.Hybrid() != 0.73 {
		t.Errorf("hybrid = %g, want 0.73", ranked.Hybrid())
	}
	if ranked.PriorityRank() != 2 {
		t.Errorf("priority rank = %d, want 2", ranked.PriorityRank())
	}
	if ranked.Freshness() != 1.5 {
		t.Errorf("freshness = %g, want 1.5", ranked.Freshness())
	}
}
