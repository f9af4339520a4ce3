package request

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/shelfsearch/internal/domain"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/filter"
)

func TestNew_Valid(t *testing.T) {
	d := 0.8
	q, err := New("red shoes", filter.Expression{}, &d, 2, 10, "stylist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Text() != "red shoes" || q.Agent() != "stylist" {
		t.Errorf("Text() = %q, Agent() = %q", q.Text(), q.Agent())
	}
	if q.MaxDistance() == nil || *q.MaxDistance() != 0.8 {
		t.Errorf("MaxDistance() = %v", q.MaxDistance())
	}
	if q.Offset() != 10 {
		t.Errorf("Offset() = %d, want 10", q.Offset())
	}
	if q.FetchSize(3) != 40 {
		t.Errorf("FetchSize(3) = %d, want 40", q.FetchSize(3))
	}
}

func TestNew_FirstPageFetchSize(t *testing.T) {
	q, err := New("mug", filter.Expression{}, nil, 1, 10, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.FetchSize(3) != 30 {
		t.Errorf("FetchSize(3) = %d, want 30", q.FetchSize(3))
	}
	if q.FetchSize(0) != 10 {
		t.Errorf("FetchSize(0) = %d, want 10", q.FetchSize(0))
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		page, limit int
		want        error
	}{
		{"empty query", "", 1, 10, domain.ErrInvalidQuery},
		{"blank query", "   ", 1, 10, domain.ErrInvalidQuery},
		{"too long", strings.Repeat("a", MaxQueryLength+1), 1, 10, domain.ErrInvalidQuery},
		{"page zero", "x", 0, 10, domain.ErrInvalidPagination},
		{"negative limit", "x", 1, -1, domain.ErrInvalidPagination},
		{"limit zero", "x", 1, 0, domain.ErrInvalidPagination},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.text, filter.Expression{}, nil, tt.page, tt.limit, "")
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
