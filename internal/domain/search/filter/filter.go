// Package filter holds the validated attribute filter applied to retrieval.
package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/shelfsearch/internal/domain"
	"github.com/kailas-cloud/shelfsearch/internal/domain/document"
)

// MaxConditions is the maximum number of conditions in one expression.
const MaxConditions = 32

// Expression is a conjunction of conditions over record metadata.
// The zero value matches everything.
type Expression struct {
	conditions []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(conditions ...Condition) (Expression, error) {
	if len(conditions) > MaxConditions {
		return Expression{}, fmt.Errorf("too many conditions (max %d): %w", MaxConditions, domain.ErrInvalidFilter)
	}
	return Expression{conditions: conditions}, nil
}

// Conditions returns all conditions.
func (e Expression) Conditions() []Condition { return e.conditions }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.conditions) == 0 }

// Matches reports whether metadata satisfies every condition.
func (e Expression) Matches(m document.Metadata) bool {
	for _, c := range e.conditions {
		if !c.Matches(m) {
			return false
		}
	}
	return true
}

// Condition is a single filter clause: an equality match or a numeric range.
type Condition struct {
	key       string
	kind      document.Kind
	match     string
	number    float64
	rangeExpr *Range
}

// NewMatch creates an equality condition. Tag values compare case-insensitively,
// in_stock takes "true" or "false", price takes a number.
func NewMatch(key, value string) (Condition, error) {
	kind, err := lookup(key)
	if err != nil {
		return Condition{}, err
	}
	if value == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q: %w", key, domain.ErrInvalidFilter)
	}

	c := Condition{key: key, kind: kind, match: value}
	switch kind {
	case document.KindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return Condition{}, fmt.Errorf("key %q expects a boolean, got %q: %w", key, value, domain.ErrInvalidFilter)
		}
		c.match = strconv.FormatBool(b)
	case document.KindNumeric:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return Condition{}, fmt.Errorf("key %q expects a number, got %q: %w", key, value, domain.ErrInvalidFilter)
		}
		c.number = n
	case document.KindTag:
	}
	return c, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	kind, err := lookup(key)
	if err != nil {
		return Condition{}, err
	}
	if kind != document.KindNumeric {
		return Condition{}, fmt.Errorf("range on non-numeric key %q: %w", key, domain.ErrInvalidFilter)
	}
	return Condition{key: key, kind: kind, rangeExpr: &r}, nil
}

func lookup(key string) (document.Kind, error) {
	if key == "" {
		return 0, fmt.Errorf("filter key is required: %w", domain.ErrInvalidFilter)
	}
	kind, ok := document.AttrKind(key)
	if !ok {
		return 0, fmt.Errorf("unknown filter key %q: %w", key, domain.ErrInvalidFilter)
	}
	return kind, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Kind returns the attribute kind of the field.
func (c Condition) Kind() document.Kind { return c.kind }

// Match returns the equality value.
func (c Condition) Match() string { return c.match }

// Number returns the parsed equality value of a numeric match.
func (c Condition) Number() float64 { return c.number }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is an equality condition.
func (c Condition) IsMatch() bool { return c.rangeExpr == nil }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// Matches evaluates the condition against metadata.
func (c Condition) Matches(m document.Metadata) bool {
	if c.rangeExpr != nil {
		v, ok := m.Number(c.key)
		return ok && c.rangeExpr.Contains(v)
	}

	switch c.kind {
	case document.KindNumeric:
		v, ok := m.Number(c.key)
		return ok && v == c.number
	case document.KindBool:
		v, ok := m.Text(c.key)
		return ok && v == c.match
	default:
		if c.key == document.AttrTags {
			for _, tag := range m.TagList() {
				if strings.EqualFold(tag, c.match) {
					return true
				}
			}
			return false
		}
		v, ok := m.Text(c.key)
		return ok && strings.EqualFold(v, c.match)
	}
}

// Range is a numeric range with gt/gte/lt/lte boundaries.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeFilter validates and creates a Range.
// At least one boundary required. gt/gte and lt/lte are mutually exclusive.
func NewRangeFilter(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required: %w", domain.ErrInvalidFilter)
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte: %w", domain.ErrInvalidFilter)
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte: %w", domain.ErrInvalidFilter)
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// Contains reports whether v lies inside the range.
func (r Range) Contains(v float64) bool {
	switch {
	case r.gt != nil && v <= *r.gt:
		return false
	case r.gte != nil && v < *r.gte:
		return false
	case r.lt != nil && v >= *r.lt:
		return false
	case r.lte != nil && v > *r.lte:
		return false
	}
	return true
}
