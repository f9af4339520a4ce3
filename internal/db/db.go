// Package db defines the storage contracts behind the Redis-backed vector
// index and the embedding cache.
package db

import (
	"context"
	"time"
)

// Store is everything the redis driver offers. Repositories declare the
// narrow slice they need instead of depending on Store.
//
//nolint:interfacebloat // facade -- consumers use narrow sub-interfaces
type Store interface {
	Pinger
	EntryWriter
	Keyspace
	ByteCache
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem is one index entry written as a hash.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// EntryWriter writes index entries.
type EntryWriter interface {
	HSetMulti(ctx context.Context, items []HashSetItem) error
}

// Keyspace deletes keys and walks a key pattern one SCAN page at a time.
// ScanEach stops at the first error returned by fn.
type Keyspace interface {
	Del(ctx context.Context, keys ...string) (int, error)
	ScanEach(ctx context.Context, pattern string, fn func(keys []string) error) error
}

// ByteCache stores opaque values with an optional expiry.
type ByteCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher runs KNN and count queries against an FT index.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}
