package search

import (
	"context"

	"github.com/kailas-cloud/shelfsearch/internal/domain/record"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/request"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/result"
)

// VectorIndex answers filtered nearest-neighbour queries.
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, f filter.Expression, k int) ([]result.Candidate, error)
}

// RecordReader hydrates candidate ids into records.
type RecordReader interface {
	GetByIDs(ctx context.Context, ids []string) ([]record.Record, error)
}

// Fallback serves a query when the vector path produced an empty page.
type Fallback interface {
	Search(ctx context.Context, q request.Query) (result.Page, error)
}
