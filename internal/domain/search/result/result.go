// Package result holds scored candidates and paginated search output.
package result

import (
	"github.com/kailas-cloud/shelfsearch/internal/domain/document"
	"github.com/kailas-cloud/shelfsearch/internal/domain/record"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/filter"
)

// Source names the retrieval path that produced a page.
type Source string

// Retrieval sources.
const (
	SourceVector   Source = "vector"
	SourceFallback Source = "fallback"
)

// FallbackReason explains why keyword fallback served a query.
type FallbackReason string

// Fallback reasons.
const (
	ReasonNone             FallbackReason = ""
	ReasonNoCandidates     FallbackReason = "no_candidates"
	ReasonThreshold        FallbackReason = "threshold"
	ReasonHydrationEmpty   FallbackReason = "hydration_empty"
	ReasonIndexUnavailable FallbackReason = "index_unavailable"
	ReasonPageEmpty        FallbackReason = "page_empty"
)

// Candidate is a nearest-neighbour hit with its relevance score.
// Fallback hits carry no distance and score by matched token count.
type Candidate struct {
	ID       string
	Text     string
	Distance float64
	Score    float64
	Metadata document.Metadata
}

// Page is one page of hydrated search results.
type Page struct {
	Records        []record.Record
	Hits           []Candidate
	Total          int
	Page           int
	Limit          int
	Filters        filter.Expression
	Source         Source
	FallbackReason FallbackReason
}

// TotalPages returns ceil(Total/Limit).
func (p Page) TotalPages() int {
	if p.Limit <= 0 || p.Total <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// HasNext reports whether a later page exists.
func (p Page) HasNext() bool { return p.Page < p.TotalPages() }

// HasPrev reports whether an earlier page exists.
func (p Page) HasPrev() bool { return p.Page > 1 }

// IsEmpty reports whether the page holds no records.
func (p Page) IsEmpty() bool { return len(p.Records) == 0 }

// Window returns the [start, end) bounds of a page over n items.
func Window(n, page, limit int) (int, int) {
	start := (page - 1) * limit
	if start > n {
		start = n
	}
	end := start + limit
	if end > n {
		end = n
	}
	return start, end
}
