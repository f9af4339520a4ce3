package document

import (
	"strconv"
	"strings"
)

// Kind is the filterable type of a metadata attribute.
type Kind int

// Metadata attribute kinds.
const (
	KindTag Kind = iota
	KindNumeric
	KindBool
)

// Metadata attribute names. These are also the filter keys accepted by search.
const (
	AttrName     = "name"
	AttrBrand    = "brand"
	AttrCategory = "category"
	AttrGender   = "gender"
	AttrPrice    = "price"
	AttrTags     = "tags"
	AttrInStock  = "in_stock"
)

// TagSeparator joins record tags into the single tags attribute.
const TagSeparator = "|"

var attrKinds = map[string]Kind{
	AttrName:     KindTag,
	AttrBrand:    KindTag,
	AttrCategory: KindTag,
	AttrGender:   KindTag,
	AttrPrice:    KindNumeric,
	AttrTags:     KindTag,
	AttrInStock:  KindBool,
}

// AttrKind reports the kind of a metadata attribute and whether it exists.
func AttrKind(name string) (Kind, bool) {
	k, ok := attrKinds[name]
	return k, ok
}

// Attributes returns the metadata attribute names in storage order.
func Attributes() []string {
	return []string{AttrName, AttrBrand, AttrCategory, AttrGender, AttrPrice, AttrTags, AttrInStock}
}

// Metadata is the flat, filterable snapshot of a record stored next to its vector.
// Every attribute is a string, a number or a boolean.
type Metadata struct {
	Name     string
	Brand    string
	Category string
	Gender   string
	Price    float64
	Tags     string
	InStock  bool
}

// TagList splits the joined tags attribute.
func (m Metadata) TagList() []string {
	if m.Tags == "" {
		return nil
	}
	return strings.Split(m.Tags, TagSeparator)
}

// Text returns the string form of a tag or bool attribute.
func (m Metadata) Text(attr string) (string, bool) {
	switch attr {
	case AttrName:
		return m.Name, true
	case AttrBrand:
		return m.Brand, true
	case AttrCategory:
		return m.Category, true
	case AttrGender:
		return m.Gender, true
	case AttrTags:
		return m.Tags, true
	case AttrInStock:
		return strconv.FormatBool(m.InStock), true
	default:
		return "", false
	}
}

// Number returns the value of a numeric attribute.
func (m Metadata) Number(attr string) (float64, bool) {
	if attr == AttrPrice {
		return m.Price, true
	}
	return 0, false
}

// Fields flattens the snapshot into string fields for hash storage.
func (m Metadata) Fields() map[string]string {
	return map[string]string{
		AttrName:     m.Name,
		AttrBrand:    m.Brand,
		AttrCategory: m.Category,
		AttrGender:   m.Gender,
		AttrPrice:    strconv.FormatFloat(m.Price, 'f', -1, 64),
		AttrTags:     m.Tags,
		AttrInStock:  strconv.FormatBool(m.InStock),
	}
}

// ParseMetadata rebuilds a snapshot from stored string fields. Unknown keys are ignored,
// unparsable numbers and booleans become zero values.
func ParseMetadata(fields map[string]string) Metadata {
	price, _ := strconv.ParseFloat(fields[AttrPrice], 64)
	inStock, _ := strconv.ParseBool(fields[AttrInStock])
	return Metadata{
		Name:     fields[AttrName],
		Brand:    fields[AttrBrand],
		Category: fields[AttrCategory],
		Gender:   fields[AttrGender],
		Price:    price,
		Tags:     fields[AttrTags],
		InStock:  inStock,
	}
}
