package query

import (
	"fmt"
	"math"
	"strings"

	"github.com/ivanmandinski/aisearch-sub001/internal/domain"
	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/filter"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength  = 1024
	DefaultPageSize = 10
	MaxPageSize     = 50
	// DefaultAIWeight is the AI contribution to the hybrid score when the
	// caller does not specify one.
	DefaultAIWeight = 0.7
	// MaxInstructionsLength caps custom ranking instructions.
	MaxInstructionsLength = 512
)

// Query is a validated, immutable search request.
type Query struct {
	text         string
	page         int
	pageSize     int
	aiEnabled    bool
	aiWeight     float64
	instructions string
	filters      filter.Filter
}

// New validates and creates a Query.
// Defaults: page=1, pageSize=10, aiWeight=0.7. Out-of-range values are
// rejected rather than clamped so callers always get what they asked for.
func New(
	text string,
	page, pageSize int,
	aiEnabled bool,
	aiWeight *float64,
	instructions string,
	filters filter.Filter,
) (Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Query{}, fmt.Errorf("%w: query text is required", domain.ErrInvalidQuery)
	}
	if len(text) > MaxQueryLength {
		return Query{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidQuery, MaxQueryLength)
	}
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return Query{}, fmt.Errorf("%w: page must be positive, got %d", domain.ErrInvalidQuery, page)
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if pageSize < 0 {
		return Query{}, fmt.Errorf("%w: page_size must be positive, got %d", domain.ErrInvalidQuery, pageSize)
	}
	if pageSize > MaxPageSize {
		return Query{}, fmt.Errorf("%w: page_size exceeds maximum %d", domain.ErrInvalidQuery, MaxPageSize)
	}
	weight := DefaultAIWeight
	if aiWeight != nil {
		weight = *aiWeight
	}
	if math.IsNaN(weight) || weight < 0 || weight > 1 {
		return Query{}, fmt.Errorf("%w: ai_weight must be between 0.0 and 1.0", domain.ErrInvalidQuery)
	}
	if len(instructions) > MaxInstructionsLength {
		return Query{}, fmt.Errorf("%w: instructions too long (max %d chars)", domain.ErrInvalidQuery, MaxInstructionsLength)
	}

	return Query{
		text:         text,
		page:         page,
		pageSize:     pageSize,
		aiEnabled:    aiEnabled,
		aiWeight:     weight,
		instructions: instructions,
		filters:      filters,
	}, nil
}

// Text returns the raw query text.
func (q *Query) Text() string { return q.text }

// Page returns the requested page number (1-based).
func (q *Query) Page() int { return q.page }

// PageSize returns the requested page size.
func (q *Query) PageSize() int { return q.pageSize }

// AIEnabled reports whether AI reranking is requested.
func (q *Query) AIEnabled() bool { return q.aiEnabled }

// AIWeight returns the AI contribution weight for score fusion.
func (q *Query) AIWeight() float64 { return q.aiWeight }

// Instructions returns optional custom ranking instructions.
func (q *Query) Instructions() string { return q.instructions }

// Filters returns the retrieval filter.
func (q *Query) Filters() filter.Filter { return q.filters }
