package rerank

import (
	"encoding/json"
	"strings"

	"github.com/ivanmandinski/aisearch-sub001/internal/usecase/normalize"
)

// plainStringCeiling: raw output under this length with no JSON structure is
// treated as a plain-string refusal rather than a payload worth parsing.
const plainStringCeiling = 200

type scoredID struct {
	ID    string   `json:"id"`
	Score *float64 `json:"score"`
}

// parseScores coerces raw model output into id → score (0-100). Accepted
// shapes, after fence stripping: a bare JSON array of {id, score}, or an
// object wrapping it under "scores" or "results". Scores outside 0-100 are
// clamped.
func parseScores(raw string) (map[string]float64, normalize.ParseResult) {
	s := normalize.StripFences(strings.TrimSpace(raw))
	if s == "" {
		return nil, normalize.Malformed("empty output")
	}

	items, ok := decodeScoreList(s)
	if !ok {
		if isPlainString(s) {
			return nil, normalize.Malformed("plain text output")
		}
		return nil, normalize.Malformed("not valid json")
	}

	scores := make(map[string]float64, len(items))
	for _, it := range items {
		if it.ID == "" || it.Score == nil {
			continue
		}
		score := *it.Score
		if score < 0 {
			score = 0
		}
		if score > 100 {
			score = 100
		}
		scores[it.ID] = score
	}
	if len(scores) == 0 {
		return nil, normalize.Malformed("no usable scores")
	}
	return scores, normalize.Ok("")
}

func decodeScoreList(s string) ([]scoredID, bool) {
	var items []scoredID
	if err := json.Unmarshal([]byte(s), &items); err == nil {
		return items, true
	}

	var wrapped struct {
		Scores  []scoredID `json:"scores"`
		Results []scoredID `json:"results"`
	}
	if err := json.Unmarshal([]byte(s), &wrapped); err == nil {
		if len(wrapped.Scores) > 0 {
			return wrapped.Scores, true
		}
		if len(wrapped.Results) > 0 {
			return wrapped.Results, true
		}
	}
	return nil, false
}

func isPlainString(s string) bool {
	return len(s) < plainStringCeiling && !strings.ContainsAny(s, "{[")
}
