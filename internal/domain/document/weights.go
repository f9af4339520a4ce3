package document

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/shelfsearch/internal/domain"
)

// Weighted text fields, in the order they are concatenated.
const (
	FieldName        = "name"
	FieldBrand       = "brand"
	FieldDescription = "description"
	FieldTags        = "tags"
	FieldCategory    = "category"
	FieldGender      = "gender"
	FieldPrice       = "price"
)

var fieldOrder = []string{
	FieldName, FieldBrand, FieldDescription, FieldTags, FieldCategory, FieldGender, FieldPrice,
}

// missingWeight applies to recognized fields absent from a configured table.
const missingWeight = 1.0

// DefaultWeights returns the built-in field weight table.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		FieldName:        4.0,
		FieldBrand:       3.0,
		FieldDescription: 2.5,
		FieldTags:        2.0,
		FieldCategory:    1.5,
		FieldGender:      1.0,
		FieldPrice:       0.5,
	}
}

// WeightTable is an immutable field -> weight mapping restricted to the weighted fields.
type WeightTable struct {
	weights map[string]float64
}

// NewWeightTable builds a table from configured weights.
// A nil map yields DefaultWeights. Otherwise unknown keys are ignored and
// recognized fields missing from the map weigh 1.0.
func NewWeightTable(configured map[string]float64) (WeightTable, error) {
	src := configured
	if src == nil {
		src = DefaultWeights()
	}

	weights := make(map[string]float64, len(fieldOrder))
	for _, f := range fieldOrder {
		w, ok := src[f]
		if !ok {
			w = missingWeight
		}
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return WeightTable{}, fmt.Errorf("weight for %q must be a finite non-negative number, got %v: %w",
				f, w, domain.ErrInvalidConfig)
		}
		weights[f] = w
	}

	return WeightTable{weights: weights}, nil
}

// MustWeightTable calls NewWeightTable and panics on error.
func MustWeightTable(configured map[string]float64) WeightTable {
	t, err := NewWeightTable(configured)
	if err != nil {
		panic(err)
	}
	return t
}

// Weight returns the weight of a field, 0 for fields outside the table.
func (t WeightTable) Weight(field string) float64 { return t.weights[field] }

// Repeats returns how many times the field's text is repeated: round(weight).
func (t WeightTable) Repeats(field string) int {
	return int(math.Round(t.weights[field]))
}

// Weights returns a copy of the table.
func (t WeightTable) Weights() map[string]float64 {
	out := make(map[string]float64, len(t.weights))
	for k, v := range t.weights {
		out[k] = v
	}
	return out
}
