package stats

import "context"

// IndexCounter reports the vector index size and backend.
type IndexCounter interface {
	Count(ctx context.Context) (int, error)
	Driver() string
}

// RecordCounter reports the record store size.
type RecordCounter interface {
	Count(ctx context.Context) (int, error)
}
