package resultset

import (
	"fmt"
	"time"

	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/candidate"
)

// Set is the full ordered result list for one query fingerprint. It is
// immutable after construction; the paginator only reads slices of it.
type Set struct {
	candidates []candidate.Candidate
	createdAt  time.Time
}

// New creates a result set. Candidates must already be in final order and
// must have unique document identifiers.
func New(candidates []candidate.Candidate, createdAt time.Time) (Set, error) {
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.ID()]; dup {
			return Set{}, fmt.Errorf("duplicate candidate id %q", c.ID())
		}
		seen[c.ID()] = struct{}{}
	}
	owned := make([]candidate.Candidate, len(candidates))
	copy(owned, candidates)
	return Set{candidates: owned, createdAt: createdAt}, nil
}

// Len returns the total number of candidates.
func (s *Set) Len() int { return len(s.candidates) }

// CreatedAt returns when the set was computed.
func (s *Set) CreatedAt() time.Time { return s.createdAt }

// Candidates returns the full ordered list. Callers must not mutate it.
func (s *Set) Candidates() []candidate.Candidate { return s.candidates }

// Page returns the 1-based page slice [(page-1)*size, page*size) and whether
// further pages exist. hasMore derives from set length only, never from the
// slice length.
func (s *Set) Page(page, size int) ([]candidate.Candidate, bool) {
	if page < 1 || size < 1 {
		return nil, false
	}
	start := (page - 1) * size
	if start >= len(s.candidates) {
		return nil, false
	}
	end := start + size
	if end > len(s.candidates) {
		end = len(s.candidates)
	}
	return s.candidates[start:end], end < len(s.candidates)
}
