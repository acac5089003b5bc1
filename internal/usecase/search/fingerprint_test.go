package search

import (
	"strings"
	"testing"
	"time"

	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/filter"
	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/query"
)

func fpQuery(t *testing.T, page int, aiEnabled bool, aiWeight *float64, instructions string, f filter.Filter) *query.Query {
	t.Helper()
	q, err := query.New("golang concurrency", page, 10, aiEnabled, aiWeight, instructions, f)
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return &q
}

func TestFingerprint_PageExcluded(t *testing.T) {
	a := Fingerprint("golang concurrency", fpQuery(t, 1, true, nil, "", filter.Filter{}))
	b := Fingerprint("golang concurrency", fpQuery(t, 3, true, nil, "", filter.Filter{}))

	if a != b {
		t.Error("fingerprints for different pages of the same query must match")
	}
}

func TestFingerprint_CaseInsensitiveText(t *testing.T) {
	a := Fingerprint("Golang Concurrency", fpQuery(t, 1, true, nil, "", filter.Filter{}))
	b := Fingerprint("golang concurrency", fpQuery(t, 1, true, nil, "", filter.Filter{}))

	if a != b {
		t.Error("fingerprint must be case-insensitive over the query text")
	}
}

func TestFingerprint_DistinguishesInputs(t *testing.T) {
	base := Fingerprint("golang concurrency", fpQuery(t, 1, true, nil, "", filter.Filter{}))

	f, err := filter.New([]string{"post"}, time.Time{}, time.Time{}, filter.SortRelevance)
	if err != nil {
		t.Fatalf("filter.New: %v", err)
	}
	lowWeight := 0.2

	variants := map[string]string{
		"different text": Fingerprint("rust concurrency", fpQuery(t, 1, true, nil, "", filter.Filter{})),
		"ai disabled":    Fingerprint("golang concurrency", fpQuery(t, 1, false, nil, "", filter.Filter{})),
		"ai weight":      Fingerprint("golang concurrency", fpQuery(t, 1, true, &lowWeight, "", filter.Filter{})),
		"instructions":   Fingerprint("golang concurrency", fpQuery(t, 1, true, nil, "prefer recent posts", filter.Filter{})),
		"filters":        Fingerprint("golang concurrency", fpQuery(t, 1, true, nil, "", f)),
	}
	for name, fp := range variants {
		if fp == base {
			t.Errorf("%s must change the fingerprint", name)
		}
	}
}

func TestFingerprint_FilterOrderCanonical(t *testing.T) {
	f1, err := filter.New([]string{"post", "page"}, time.Time{}, time.Time{}, "")
	if err != nil {
		t.Fatalf("filter.New: %v", err)
	}
	f2, err := filter.New([]string{"page", "post"}, time.Time{}, time.Time{}, "")
	if err != nil {
		t.Fatalf("filter.New: %v", err)
	}

	a := Fingerprint("golang concurrency", fpQuery(t, 1, true, nil, "", f1))
	b := Fingerprint("golang concurrency", fpQuery(t, 1, true, nil, "", f2))

	if a != b {
		t.Error("source-type order must not affect the fingerprint")
	}
}

func TestFingerprint_Prefix(t *testing.T) {
	fp := Fingerprint("golang concurrency", fpQuery(t, 1, true, nil, "", filter.Filter{}))
	if !strings.HasPrefix(fp, "q:") {
		t.Errorf("fingerprint %q must carry the q: namespace prefix", fp)
	}
}
