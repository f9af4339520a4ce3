package keyword

import (
	"slices"
	"testing"

	"github.com/kailas-cloud/shelfsearch/internal/domain/search/filter"
)

func TestNewPredicate_Tokens(t *testing.T) {
	p := NewPredicate("  Red  red Shoes! ", filter.Expression{}, 1, 10)
	if !slices.Equal(p.Tokens, []string{"red", "shoes!"}) {
		t.Fatalf("tokens = %v", p.Tokens)
	}
	if p.IsEmpty() || p.Limit != 10 || p.Offset != 0 {
		t.Errorf("unexpected predicate: %+v", p)
	}
	if !NewPredicate(" \t ", filter.Expression{}, 1, 10).IsEmpty() {
		t.Error("blank query must yield no tokens")
	}
}

func TestNewPredicate_KeepsPunctuation(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"L'Oreal Paris", []string{"l'oreal", "paris"}},
		{"Cotton T-Shirt", []string{"cotton", "t-shirt"}},
		{"50% off", []string{"50%", "off"}},
	}
	for _, tt := range tests {
		if got := NewPredicate(tt.query, filter.Expression{}, 1, 10).Tokens; !slices.Equal(got, tt.want) {
			t.Errorf("Tokens(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestNewPredicate_Offset(t *testing.T) {
	tests := []struct {
		page, limit, want int
	}{
		{1, 10, 0},
		{2, 10, 10},
		{3, 5, 10},
		{0, 10, 0},
	}
	for _, tt := range tests {
		if got := NewPredicate("shoe", filter.Expression{}, tt.page, tt.limit).Offset; got != tt.want {
			t.Errorf("page %d limit %d: offset = %d, want %d", tt.page, tt.limit, got, tt.want)
		}
	}
}
