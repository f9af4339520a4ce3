package sync

import (
	"context"
	"iter"

	"github.com/kailas-cloud/shelfsearch/internal/domain/document"
	"github.com/kailas-cloud/shelfsearch/internal/domain/record"
)

// RecordStore reads authoritative catalog records.
type RecordStore interface {
	GetByID(ctx context.Context, id string) (record.Record, error)
	ListAll(ctx context.Context, batchSize int) iter.Seq2[[]record.Record, error]
	Count(ctx context.Context) (int, error)
}

// VectorIndex is the write side of the vector index.
type VectorIndex interface {
	Upsert(ctx context.Context, entries []document.Entry) error
	Remove(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}
