// Package keyword describes the lexical predicate of the fallback search.
package keyword

import (
	"strings"

	"github.com/kailas-cloud/shelfsearch/internal/domain/record"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/filter"
)

// Predicate selects records whose name, brand or any tag contains at least one
// token, case-insensitively, and that satisfy Filters. Matches are ranked by
// distinct matched tokens, then recency, then id; Offset and Limit cut one page.
type Predicate struct {
	Tokens  []string
	Filters filter.Expression
	Offset  int
	Limit   int
}

// NewPredicate splits query on whitespace into distinct lowercase tokens.
// Punctuation is kept so "l'oreal" or "t-shirt" match the stored text literally.
func NewPredicate(query string, filters filter.Expression, page, limit int) Predicate {
	return Predicate{
		Tokens:  Tokens(query),
		Filters: filters,
		Offset:  max(page-1, 0) * limit,
		Limit:   limit,
	}
}

// Tokens lowercases s and splits it on whitespace, dropping repeats.
func Tokens(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// IsEmpty reports whether no token can match anything.
func (p Predicate) IsEmpty() bool { return len(p.Tokens) == 0 }

// Match is one ranked record with its distinct matched token count.
type Match struct {
	Record  record.Record
	Matched int
}

// Matches is one page of ranked matches plus the total across all pages.
type Matches struct {
	Hits  []Match
	Total int
}
