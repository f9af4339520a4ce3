// Package index stores vector entries as hashes behind an FT vector index.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/shelfsearch/internal/db"
	"github.com/kailas-cloud/shelfsearch/internal/domain"
	"github.com/kailas-cloud/shelfsearch/internal/domain/document"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/result"
)

const vectorField = "vector"

// restoreTimeout bounds recreating the index after a failed clear.
const restoreTimeout = 5 * time.Second

// store is the consumer interface for the vector index (ISP).
type store interface {
	Ping(ctx context.Context) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, keys ...string) (int, error)
	ScanEach(ctx context.Context, pattern string, fn func(keys []string) error) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Config describes the index layout.
type Config struct {
	// KeyPrefix namespaces every key, e.g. "shelfsearch:".
	KeyPrefix      string
	Dimensions     int
	M              int
	EFConstruction int
}

// Repo implements the vector index over a Redis-compatible store.
type Repo struct {
	store     store
	cfg       Config
	indexName string
	keyPrefix string
}

// New creates a vector index repository.
func New(s store, cfg Config) *Repo {
	return &Repo{
		store:     s,
		cfg:       cfg,
		indexName: cfg.KeyPrefix + "items:idx",
		keyPrefix: cfg.KeyPrefix + "item:",
	}
}

// IndexName returns the FT index name.
func (r *Repo) IndexName() string { return r.indexName }

// Driver names the backend for stats output.
func (r *Repo) Driver() string { return "redis" }

// Definition returns the FT.CREATE schema for catalog entries.
func (r *Repo) Definition() *db.IndexDefinition {
	return db.NewIndex(r.indexName, r.keyPrefix).
		Tag(document.AttrName, document.TagSeparator).
		Tag(document.AttrBrand, document.TagSeparator).
		Tag(document.AttrCategory, document.TagSeparator).
		Tag(document.AttrGender, document.TagSeparator).
		Tag(document.AttrTags, document.TagSeparator).
		Tag(document.AttrInStock, document.TagSeparator).
		Numeric(document.AttrPrice).
		HNSW(vectorField, r.cfg.Dimensions, db.DistanceCosine, r.cfg.M, r.cfg.EFConstruction)
}

// EnsureIndex creates the FT index unless it already exists.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName)
	if err != nil {
		return domain.Unavailable(domain.ErrVectorIndexUnavailable, err)
	}
	if exists {
		return nil
	}
	if err := r.store.CreateIndex(ctx, r.Definition()); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return domain.Unavailable(domain.ErrVectorIndexUnavailable, fmt.Errorf("create index: %w", err))
	}
	return nil
}

// Upsert writes entries in one pipelined round-trip. Idempotent per id.
func (r *Repo) Upsert(ctx context.Context, entries []document.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, 0, len(entries))
	for _, e := range entries {
		if len(e.Vector) != r.cfg.Dimensions {
			return fmt.Errorf("entry %s: vector has %d dims, index expects %d: %w",
				e.ID, len(e.Vector), r.cfg.Dimensions, domain.ErrEmbeddingUnavailable)
		}
		fields := e.Metadata.Fields()
		fields[document.FieldText] = e.Text
		fields[vectorField] = string(db.EncodeVector(e.Vector))
		items = append(items, db.HashSetItem{Key: r.keyPrefix + e.ID, Fields: fields})
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return domain.Unavailable(domain.ErrVectorIndexUnavailable, fmt.Errorf("upsert %d entries: %w", len(items), err))
	}
	return nil
}

// Remove deletes an entry. Removing an absent id is not an error.
func (r *Repo) Remove(ctx context.Context, id string) error {
	if _, err := r.store.Del(ctx, r.keyPrefix+id); err != nil {
		return domain.Unavailable(domain.ErrVectorIndexUnavailable, fmt.Errorf("remove %s: %w", id, err))
	}
	return nil
}

// Clear drops the FT index and every entry, then recreates the index empty.
// Recreating picks up a changed embedding dimension. When deleting fails part
// way the index is still recreated over the remaining entries, on a context
// that outlives ctx, so queries keep working until the next rebuild.
func (r *Repo) Clear(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.indexName); err != nil && !db.IsMissing(err) {
		return domain.Unavailable(domain.ErrVectorIndexUnavailable, fmt.Errorf("drop index: %w", err))
	}

	removed := 0
	err := r.store.ScanEach(ctx, r.keyPrefix+"*", func(keys []string) error {
		n, err := r.store.Del(ctx, keys...)
		removed += n
		return err
	})
	if err != nil {
		err = fmt.Errorf("delete entries after %d removed: %w", removed, err)
		if rerr := r.restore(ctx); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return domain.Unavailable(domain.ErrVectorIndexUnavailable, err)
	}

	if err := r.store.CreateIndex(ctx, r.Definition()); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return domain.Unavailable(domain.ErrVectorIndexUnavailable, fmt.Errorf("create index: %w", err))
	}
	return nil
}

func (r *Repo) restore(ctx context.Context) error {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
	defer cancel()
	if err := r.store.CreateIndex(rctx, r.Definition()); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("recreate index: %w", err)
	}
	return nil
}

// Query returns up to k nearest entries satisfying f, nearest first.
func (r *Repo) Query(ctx context.Context, vector []float32, f filter.Expression, k int) ([]result.Candidate, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName,
		VectorField:  vectorField,
		Filters:      f,
		Vector:       vector,
		K:            k,
		ReturnFields: append(document.Attributes(), document.FieldText),
	})
	if err != nil {
		return nil, domain.Unavailable(domain.ErrVectorIndexUnavailable, fmt.Errorf("knn query: %w", err))
	}
	if sr == nil {
		return nil, nil
	}

	out := make([]result.Candidate, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		out = append(out, result.Candidate{
			ID:       strings.TrimPrefix(e.Key, r.keyPrefix),
			Text:     e.Fields[document.FieldText],
			Distance: e.Distance,
			Metadata: document.ParseMetadata(e.Fields),
		})
	}
	return out, nil
}

// Count returns the number of indexed entries.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, r.indexName, "*")
	if err != nil {
		return 0, domain.Unavailable(domain.ErrVectorIndexUnavailable, fmt.Errorf("count: %w", err))
	}
	return n, nil
}

// Ping checks backend connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	return domain.Unavailable(domain.ErrVectorIndexUnavailable, r.store.Ping(ctx))
}
