// Package document turns catalog records into field-weighted text for embedding.
package document

import (
	"strconv"
	"strings"

	"github.com/kailas-cloud/shelfsearch/internal/domain/record"
)

// Weighted is the derived, ephemeral document built from a record.
type Weighted struct {
	ID       string
	Text     string
	Metadata Metadata
}

// Builder builds weighted documents with a fixed weight table. Safe for concurrent use.
type Builder struct {
	weights WeightTable
}

// NewBuilder creates a document builder.
func NewBuilder(weights WeightTable) *Builder {
	return &Builder{weights: weights}
}

// Weights returns the builder's weight table.
func (b *Builder) Weights() WeightTable { return b.weights }

// Build normalizes every weighted field, repeats it round(weight) times and
// concatenates the result in fixed field order. Pure: same record, same output.
func (b *Builder) Build(r record.Record) Weighted {
	parts := make([]string, 0, 16)
	for _, f := range fieldOrder {
		text := Normalize(fieldText(r, f))
		if text == "" {
			continue
		}
		for range b.weights.Repeats(f) {
			parts = append(parts, text)
		}
	}

	return Weighted{
		ID:       r.ID,
		Text:     strings.Join(parts, " "),
		Metadata: Snapshot(r),
	}
}

func fieldText(r record.Record, field string) string {
	switch field {
	case FieldName:
		return r.Name
	case FieldBrand:
		return r.Brand
	case FieldDescription:
		return r.Description
	case FieldTags:
		return strings.Join(r.Tags, " ")
	case FieldCategory:
		return r.Category.Name
	case FieldGender:
		return string(r.Gender)
	case FieldPrice:
		return strconv.FormatFloat(r.Price, 'f', -1, 64)
	default:
		return ""
	}
}

// Snapshot copies the filterable attributes of r.
func Snapshot(r record.Record) Metadata {
	tags := make([]string, 0, len(r.Tags))
	for _, t := range r.Tags {
		t = strings.TrimSpace(strings.ReplaceAll(t, TagSeparator, " "))
		if t != "" {
			tags = append(tags, t)
		}
	}

	return Metadata{
		Name:     r.Name,
		Brand:    r.Brand,
		Category: r.Category.Name,
		Gender:   string(r.Gender),
		Price:    r.Price,
		Tags:     strings.Join(tags, TagSeparator),
		InStock:  r.InStock,
	}
}
