package search

import (
	"sort"
	"time"

	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/candidate"
	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/filter"
)

// freshnessSteps is the age → boost step function. Boosts apply to the
// retrieval score only, never to the AI score.
var freshnessSteps = []struct {
	maxAge time.Duration
	boost  float64
}{
	{7 * 24 * time.Hour, 2.0},
	{30 * 24 * time.Hour, 1.8},
	{90 * 24 * time.Hour, 1.5},
	{180 * 24 * time.Hour, 1.2},
}

// freshnessBoost returns the step-function multiplier for a publication date.
// Zero or future-dated timestamps get no boost.
func freshnessBoost(publishedAt, now time.Time) float64 {
	if publishedAt.IsZero() || publishedAt.After(now) {
		return 1.0
	}
	age := now.Sub(publishedAt)
	for _, step := range freshnessSteps {
		if age < step.maxAge {
			return step.boost
		}
	}
	return 1.0
}

// fuse computes hybrid score, priority rank, and freshness for every
// candidate and returns them in final order.
//
// Hybrid score: clamp₁(retrieval × freshness × lexWeight + ai/100 × aiWeight)
// when an AI score is present; clamp₁(retrieval × freshness) otherwise. A
// candidate the model skipped degrades to the no-AI formula individually.
//
// Ordering: hybrid score descending; priority rank breaks exact-score ties
// only and never overrides a strictly higher hybrid score; document id is
// the final tie-break so the order is deterministic.
func fuse(
	candidates []candidate.Candidate,
	lexWeight, aiWeight float64,
	priorityOrder []string,
	sortMode filter.Sort,
	now time.Time,
) []candidate.Candidate {
	priority := make(map[string]int, len(priorityOrder))
	for i, st := range priorityOrder {
		priority[st] = i
	}

	out := make([]candidate.Candidate, 0, len(candidates))
	for _, c := range candidates {
		fresh := freshnessBoost(c.PublishedAt(), now)
		base := c.RetrievalScore() * fresh

		var hybrid float64
		if ai, ok := c.AIScore(); ok {
			hybrid = clamp1(base*lexWeight + ai/100*aiWeight)
		} else {
			hybrid = clamp1(base)
		}

		rank, ok := priority[c.SourceType()]
		if !ok {
			rank = len(priorityOrder)
		}
		out = append(out, c.WithRanking(hybrid, rank, fresh))
	}

	if sortMode == filter.SortDate {
		sort.SliceStable(out, func(i, j int) bool {
			ti, tj := out[i].PublishedAt(), out[j].PublishedAt()
			if !ti.Equal(tj) {
				return ti.After(tj)
			}
			return out[i].ID() < out[j].ID()
		})
		return out
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Hybrid() != out[j].Hybrid() {
			return out[i].Hybrid() > out[j].Hybrid()
		}
		if out[i].PriorityRank() != out[j].PriorityRank() {
			return out[i].PriorityRank() < out[j].PriorityRank()
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

func clamp1(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
