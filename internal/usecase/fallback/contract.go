package fallback

import (
	"context"

	"github.com/kailas-cloud/shelfsearch/internal/domain/search/keyword"
)

// KeywordStore evaluates and ranks a keyword predicate natively in the record store.
type KeywordStore interface {
	Keyword(ctx context.Context, p keyword.Predicate) (keyword.Matches, error)
}
