// Package record defines the catalog item owned by the record store.
package record

import (
	"fmt"
	"time"
)

// Gender is the audience a catalog item targets.
type Gender string

// Gender values.
const (
	GenderMen    Gender = "men"
	GenderWomen  Gender = "women"
	GenderUnisex Gender = "unisex"
)

// ParseGender validates a gender string. Empty input yields an empty Gender.
func ParseGender(s string) (Gender, error) {
	switch g := Gender(s); g {
	case "", GenderMen, GenderWomen, GenderUnisex:
		return g, nil
	default:
		return "", fmt.Errorf("invalid gender %q", s)
	}
}

// Category is the nested category reference of a record.
type Category struct {
	ID   string
	Name string
}

// Record is an authoritative catalog item. The engine only reads it.
type Record struct {
	ID          string
	Name        string
	Brand       string
	Description string
	Category    Category
	Tags        []string
	Gender      Gender
	Price       float64
	InStock     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
