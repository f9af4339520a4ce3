package filter

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/shelfsearch/internal/domain"
	"github.com/kailas-cloud/shelfsearch/internal/domain/document"
)

func floatPtr(f float64) *float64 { return &f }

// --- Range tests ---

func TestNewRangeFilter_Valid(t *testing.T) {
	tests := []struct {
		name             string
		gt, gte, lt, lte *float64
	}{
		{"gt only", floatPtr(1), nil, nil, nil},
		{"lte only", nil, nil, nil, floatPtr(100)},
		{"gte+lt", nil, floatPtr(0), floatPtr(10), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRangeFilter(tt.gt, tt.gte, tt.lt, tt.lte)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (r.GT() == nil) != (tt.gt == nil) || (r.LTE() == nil) != (tt.lte == nil) {
				t.Error("boundary mismatch")
			}
		})
	}
}

func TestNewRangeFilter_Invalid(t *testing.T) {
	tests := []struct {
		name             string
		gt, gte, lt, lte *float64
		want             string
	}{
		{"no boundary", nil, nil, nil, nil, "at least one"},
		{"gt and gte", floatPtr(1), floatPtr(1), nil, nil, "gt and gte"},
		{"lt and lte", nil, nil, floatPtr(1), floatPtr(1), "lt and lte"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRangeFilter(tt.gt, tt.gte, tt.lt, tt.lte)
			if !errors.Is(err, domain.ErrInvalidFilter) {
				t.Fatalf("expected ErrInvalidFilter, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q", err)
			}
		})
	}
}

func TestRange_Contains(t *testing.T) {
	r, _ := NewRangeFilter(floatPtr(10), nil, nil, floatPtr(20))
	cases := map[float64]bool{10: false, 10.01: true, 20: true, 20.5: false}
	for v, want := range cases {
		if got := r.Contains(v); got != want {
			t.Errorf("Contains(%v) = %v, want %v", v, got, want)
		}
	}
}

// --- Condition tests ---

func TestNewMatch_Validation(t *testing.T) {
	tests := []struct {
		name, key, value string
		ok               bool
	}{
		{"tag", "brand", "Acme", true},
		{"bool", "in_stock", "TRUE", true},
		{"numeric", "price", "19.5", true},
		{"empty key", "", "x", false},
		{"unknown key", "color", "red", false},
		{"empty value", "brand", "", false},
		{"bad bool", "in_stock", "yes", false},
		{"bad number", "price", "cheap", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMatch(tt.key, tt.value)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, domain.ErrInvalidFilter) {
				t.Fatalf("expected ErrInvalidFilter, got %v", err)
			}
		})
	}
}

func TestNewMatch_NormalizesBool(t *testing.T) {
	c, err := NewMatch("in_stock", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Match() != "true" {
		t.Errorf("Match() = %q", c.Match())
	}
}

func TestNewRange_NonNumeric(t *testing.T) {
	r, _ := NewRangeFilter(floatPtr(1), nil, nil, nil)
	if _, err := NewRange("brand", r); !errors.Is(err, domain.ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
	c, err := NewRange("price", r)
	if err != nil || !c.IsRange() || c.IsMatch() {
		t.Fatalf("price range: %v", err)
	}
}

func TestExpression_Matches(t *testing.T) {
	m := document.Metadata{
		Brand: "Acme", Category: "Shoes", Tags: "running|Outdoor", Price: 50, InStock: true,
	}

	brand, _ := NewMatch("brand", "acme")
	tag, _ := NewMatch("tags", "outdoor")
	stock, _ := NewMatch("in_stock", "true")
	price, _ := NewMatch("price", "50")
	r, _ := NewRangeFilter(nil, floatPtr(40), floatPtr(60), nil)
	priceRange, _ := NewRange("price", r)

	e, err := NewExpression(brand, tag, stock, price, priceRange)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !e.Matches(m) {
		t.Error("expected metadata to match")
	}

	other, _ := NewMatch("category", "hats")
	e2, _ := NewExpression(brand, other)
	if e2.Matches(m) {
		t.Error("conjunction must fail when one condition fails")
	}

	if !(Expression{}).Matches(m) || !(Expression{}).IsEmpty() {
		t.Error("zero expression must match everything")
	}
}

func TestNewExpression_TooMany(t *testing.T) {
	c, _ := NewMatch("brand", "x")
	conds := make([]Condition, MaxConditions+1)
	for i := range conds {
		conds[i] = c
	}
	if _, err := NewExpression(conds...); !errors.Is(err, domain.ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}
