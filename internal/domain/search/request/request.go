// Package request holds the validated search query value object.
package request

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/shelfsearch/internal/domain"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/filter"
)

// MaxQueryLength is the maximum allowed search query length.
const MaxQueryLength = 4096

// Query is a validated search query.
type Query struct {
	text        string
	filters     filter.Expression
	maxDistance *float64
	page        int
	limit       int
	agent       string
}

// New validates search parameters. A nil maxDistance means the engine default applies.
// Pagination is checked here so invalid pages never reach a collaborator.
func New(
	text string,
	filters filter.Expression,
	maxDistance *float64,
	page, limit int,
	agent string,
) (Query, error) {
	if strings.TrimSpace(text) == "" {
		return Query{}, fmt.Errorf("query is required: %w", domain.ErrInvalidQuery)
	}
	if len(text) > MaxQueryLength {
		return Query{}, fmt.Errorf("query too long (max %d chars): %w", MaxQueryLength, domain.ErrInvalidQuery)
	}
	if page < 1 {
		return Query{}, fmt.Errorf("page must be >= 1, got %d: %w", page, domain.ErrInvalidPagination)
	}
	if limit < 1 {
		return Query{}, fmt.Errorf("limit must be >= 1, got %d: %w", limit, domain.ErrInvalidPagination)
	}

	return Query{
		text:        text,
		filters:     filters,
		maxDistance: maxDistance,
		page:        page,
		limit:       limit,
		agent:       agent,
	}, nil
}

// Text returns the raw query text.
func (q *Query) Text() string { return q.text }

// Filters returns the attribute filter.
func (q *Query) Filters() filter.Expression { return q.filters }

// MaxDistance returns the explicit distance threshold, nil when unset.
func (q *Query) MaxDistance() *float64 { return q.maxDistance }

// Page returns the 1-based page number.
func (q *Query) Page() int { return q.page }

// Limit returns the page size.
func (q *Query) Limit() int { return q.limit }

// Agent returns the optional responder persona key.
func (q *Query) Agent() string { return q.agent }

// Offset returns the index of the first hit on the requested page.
func (q *Query) Offset() int { return (q.page - 1) * q.limit }

// FetchSize returns how many nearest neighbours to request so the page can be
// filled after threshold pruning: the offset plus limit*overfetch.
func (q *Query) FetchSize(overfetch int) int {
	if overfetch < 1 {
		overfetch = 1
	}
	return q.Offset() + q.limit*overfetch
}
