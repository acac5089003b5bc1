package filter

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// MaxSourceTypes is the maximum number of source types in an allow-list.
const MaxSourceTypes = 16

// Sort is the requested result ordering.
type Sort string

// Sort modes.
const (
	// SortRelevance orders by hybrid score (the default).
	SortRelevance Sort = "relevance"
	// SortDate orders by publication date, newest first.
	SortDate Sort = "date"
)

// IsValid checks if the sort mode is one of the supported values.
func (s Sort) IsValid() bool {
	return s == SortRelevance || s == SortDate
}

// Filter narrows retrieval to a publication-date window and a source-type
// allow-list. The zero value matches everything with relevance ordering.
type Filter struct {
	sourceTypes     []string
	publishedAfter  time.Time
	publishedBefore time.Time
	sortMode        Sort
}

// New validates and creates a Filter. A zero time means an open boundary.
func New(sourceTypes []string, publishedAfter, publishedBefore time.Time, sortMode Sort) (Filter, error) {
	if len(sourceTypes) > MaxSourceTypes {
		return Filter{}, fmt.Errorf("too many source types (max %d)", MaxSourceTypes)
	}
	for _, st := range sourceTypes {
		if strings.TrimSpace(st) == "" {
			return Filter{}, fmt.Errorf("source type must not be empty")
		}
	}
	if !publishedAfter.IsZero() && !publishedBefore.IsZero() && publishedBefore.Before(publishedAfter) {
		return Filter{}, fmt.Errorf("published_before precedes published_after")
	}
	if sortMode == "" {
		sortMode = SortRelevance
	}
	if !sortMode.IsValid() {
		return Filter{}, fmt.Errorf("invalid sort mode: %q", sortMode)
	}

	// Keep the allow-list in canonical order so equal filters produce
	// equal fingerprints regardless of how the caller listed them.
	types := make([]string, len(sourceTypes))
	copy(types, sourceTypes)
	sort.Strings(types)

	return Filter{
		sourceTypes:     types,
		publishedAfter:  publishedAfter,
		publishedBefore: publishedBefore,
		sortMode:        sortMode,
	}, nil
}

// SourceTypes returns the source-type allow-list (empty = all types).
func (f Filter) SourceTypes() []string { return f.sourceTypes }

// PublishedAfter returns the lower publication-date bound (zero = open).
func (f Filter) PublishedAfter() time.Time { return f.publishedAfter }

// PublishedBefore returns the upper publication-date bound (zero = open).
func (f Filter) PublishedBefore() time.Time { return f.publishedBefore }

// Sort returns the requested result ordering.
func (f Filter) Sort() Sort {
	if f.sortMode == "" {
		return SortRelevance
	}
	return f.sortMode
}

// IsEmpty reports whether the filter matches everything.
func (f Filter) IsEmpty() bool {
	return len(f.sourceTypes) == 0 && f.publishedAfter.IsZero() && f.publishedBefore.IsZero()
}

// Canonical returns a stable textual form of the filter for fingerprinting.
func (f Filter) Canonical() string {
	var b strings.Builder
	b.WriteString("types=")
	b.WriteString(strings.Join(f.sourceTypes, ","))
	b.WriteString(";after=")
	if !f.publishedAfter.IsZero() {
		b.WriteString(f.publishedAfter.UTC().Format(time.RFC3339))
	}
	b.WriteString(";before=")
	if !f.publishedBefore.IsZero() {
		b.WriteString(f.publishedBefore.UTC().Format(time.RFC3339))
	}
	b.WriteString(";sort=")
	b.WriteString(string(f.Sort()))
	return b.String()
}
