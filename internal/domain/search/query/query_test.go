package query

import (
	"errors"
	"strings"
	"testing"

	"github.com/ivanmandinski/aisearch-sub001/internal/domain"
	"github.com/ivanmandinski/aisearch-sub001/internal/domain/search/filter"
)

func TestNew_Defaults(t *testing.T) {
	q, err := New("golang tutorial", 0, 0, true, nil, "", filter.Filter{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if q.Page() != 1 {
		t.Errorf("default page = %d, want 1", q.Page())
	}
	if q.PageSize() != DefaultPageSize {
		t.Errorf("default page size = %d, want %d", q.PageSize(), DefaultPageSize)
	}
	if q.AIWeight() != DefaultAIWeight {
		t.Errorf("default ai weight = %g, want %g", q.AIWeight(), DefaultAIWeight)
	}
	if !q.AIEnabled() {
		t.Error("expected AIEnabled=true")
	}
}

func TestNew_TrimsText(t *testing.T) {
	q, err := New("  golang tutorial  ", 1, 10, true, nil, "", filter.Filter{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if q.Text() != "golang tutorial" {
		t.Errorf("text = %q, want trimmed", q.Text())
	}
}

func TestNew_Rejections(t *testing.T) {
	negWeight := -0.1
	bigWeight := 1.1

	tests := []struct {
		name         string
		text         string
		page         int
		pageSize     int
		aiWeight     *float64
		instructions string
	}{
		{name: "empty text", text: ""},
		{name: "whitespace text", text: "   "},
		{name: "text too long", text: strings.Repeat("a", MaxQueryLength+1)},
		{name: "negative page", text: "ok query", page: -1},
		{name: "negative page size", text: "ok query", pageSize: -5},
		{name: "page size above max", text: "ok query", pageSize: MaxPageSize + 1},
		{name: "negative ai weight", text: "ok query", aiWeight: &negWeight},
		{name: "ai weight above one", text: "ok query", aiWeight: &bigWeight},
		{name: "instructions too long", text: "ok query", instructions: strings.Repeat("x", MaxInstructionsLength+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.text, tt.page, tt.pageSize, true, tt.aiWeight, tt.instructions, filter.Filter{})
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, domain.ErrInvalidQuery) {
				t.Errorf("error %v must wrap ErrInvalidQuery", err)
			}
		})
	}
}

func TestNew_ExplicitWeight(t *testing.T) {
	w := 0.25
	q, err := New("golang tutorial", 1, 10, true, &w, "", filter.Filter{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if q.AIWeight() != 0.25 {
		t.Errorf("ai weight = %g, want 0.25", q.AIWeight())
	}
}

func TestNew_BoundaryValues(t *testing.T) {
	zero := 0.0
	one := 1.0

	if _, err := New("ok query", 1, MaxPageSize, true, &zero, "", filter.Filter{}); err != nil {
		t.Errorf("weight 0.0 and max page size must be accepted: %v", err)
	}
	if _, err := New(strings.Repeat("a", MaxQueryLength), 1, 1, true, &one, "", filter.Filter{}); err != nil {
		t.Errorf("weight 1.0 and max-length text must be accepted: %v", err)
	}
}
