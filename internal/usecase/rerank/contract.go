package rerank

import (
	"context"

	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/candidate"
	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/intent"
)

// Scorer asks an external model to score candidates against the query. The
// returned string is raw model output: structured JSON when the model
// cooperates, arbitrary text when it does not. Coercion lives in this
// package, not in the transport.
type Scorer interface {
	Score(
		ctx context.Context,
		query string,
		queryIntent intent.Intent,
		instructions string,
		candidates []candidate.Candidate,
	) (string, error)
}
