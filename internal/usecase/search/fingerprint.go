package search

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/query"
)

// fingerprintPrefix namespaces cache keys so external invalidation can drop
// all result sets with one prefix sweep.
const fingerprintPrefix = "q:"

// Fingerprint derives the stable cache key for one ranked result set from
// everything that affects its contents and order: the normalized query text,
// filters, AI weight, AI-enabled flag, and custom ranking instructions.
// The page number is excluded: pages are slices of one set.
func Fingerprint(normalized string, q *query.Query) string {
	h := sha256.New()
	io.WriteString(h, strings.ToLower(normalized))
	io.WriteString(h, "\x00")
	io.WriteString(h, q.Filters().Canonical())
	io.WriteString(h, "\x00")
	fmt.Fprintf(h, "ai=%t;w=%.4f", q.AIEnabled(), q.AIWeight())
	io.WriteString(h, "\x00")
	io.WriteString(h, q.Instructions())
	return fingerprintPrefix + hex.EncodeToString(h.Sum(nil))
}
