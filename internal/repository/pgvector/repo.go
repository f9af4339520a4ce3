// Package pgvector implements the vector index on PostgreSQL with the pgvector extension.
package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/shelfsearch/internal/db/postgres"
	"github.com/kailas-cloud/shelfsearch/internal/domain"
	"github.com/kailas-cloud/shelfsearch/internal/domain/document"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/result"
)

const schemaTemplate = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS %[1]s (
	id         TEXT PRIMARY KEY,
	embedding  vector(%[2]d) NOT NULL,
	document   TEXT NOT NULL DEFAULT '',
	name       TEXT NOT NULL DEFAULT '',
	brand      TEXT NOT NULL DEFAULT '',
	category   TEXT NOT NULL DEFAULT '',
	gender     TEXT NOT NULL DEFAULT '',
	price      DOUBLE PRECISION NOT NULL DEFAULT 0,
	tags       TEXT[] NOT NULL DEFAULT '{}',
	in_stock   BOOLEAN NOT NULL DEFAULT false,
	indexed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
ALTER TABLE %[1]s ADD COLUMN IF NOT EXISTS document TEXT NOT NULL DEFAULT '';
CREATE INDEX IF NOT EXISTS %[1]s_embedding_idx ON %[1]s USING hnsw (embedding vector_cosine_ops);
`

const selectColumns = "id, document, name, brand, category, gender, price, tags, in_stock"

var columns = postgres.Columns{
	document.AttrName:     "name",
	document.AttrBrand:    "brand",
	document.AttrCategory: "category",
	document.AttrGender:   "gender",
	document.AttrPrice:    "price",
	document.AttrTags:     "tags",
	document.AttrInStock:  "in_stock",
}

// DefaultTable is the vector table name.
const DefaultTable = "product_vectors"

// Repo implements the vector index over a pgvector table.
type Repo struct {
	db         *postgres.DB
	table      string
	dimensions int
}

// New creates a pgvector repository. An empty table uses DefaultTable.
func New(db *postgres.DB, table string, dimensions int) *Repo {
	if table == "" {
		table = DefaultTable
	}
	return &Repo{db: db, table: table, dimensions: dimensions}
}

// Driver names the backend for stats output.
func (r *Repo) Driver() string { return "pgvector" }

// EnsureIndex creates the extension, table and HNSW index when missing.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	if err := r.db.Exec(ctx, fmt.Sprintf(schemaTemplate, r.table, r.dimensions)); err != nil {
		return domain.Unavailable(domain.ErrVectorIndexUnavailable, err)
	}
	return nil
}

// Upsert writes entries in one transaction. Idempotent per id.
func (r *Repo) Upsert(ctx context.Context, entries []document.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if len(e.Vector) != r.dimensions {
			return fmt.Errorf("entry %s: vector has %d dims, index expects %d: %w",
				e.ID, len(e.Vector), r.dimensions, domain.ErrEmbeddingUnavailable)
		}
	}

	query := `INSERT INTO ` + r.table + ` (id, embedding, document, name, brand, category, gender, price, tags, in_stock, indexed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			document = EXCLUDED.document,
			name = EXCLUDED.name,
			brand = EXCLUDED.brand,
			category = EXCLUDED.category,
			gender = EXCLUDED.gender,
			price = EXCLUDED.price,
			tags = EXCLUDED.tags,
			in_stock = EXCLUDED.in_stock,
			indexed_at = EXCLUDED.indexed_at`

	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, e := range entries {
			m := e.Metadata
			_, err := stmt.ExecContext(ctx,
				e.ID,
				pgvector.NewVector(e.Vector),
				e.Text,
				m.Name, m.Brand, m.Category, m.Gender, m.Price,
				pq.Array(m.TagList()),
				m.InStock,
			)
			if err != nil {
				return fmt.Errorf("entry %s: %w", e.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Unavailable(domain.ErrVectorIndexUnavailable, fmt.Errorf("upsert %d entries: %w", len(entries), err))
	}
	return nil
}

// Remove deletes an entry. Removing an absent id is not an error.
func (r *Repo) Remove(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM `+r.table+` WHERE id = $1`, id); err != nil {
		return domain.Unavailable(domain.ErrVectorIndexUnavailable, fmt.Errorf("remove %s: %w", id, err))
	}
	return nil
}

// Clear removes every entry.
func (r *Repo) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `TRUNCATE `+r.table); err != nil {
		return domain.Unavailable(domain.ErrVectorIndexUnavailable, fmt.Errorf("truncate: %w", err))
	}
	return nil
}

// Query returns up to k nearest entries satisfying f by cosine distance, nearest first.
func (r *Repo) Query(ctx context.Context, vector []float32, f filter.Expression, k int) ([]result.Candidate, error) {
	var args postgres.Args
	vec := args.Add(pgvector.NewVector(vector))

	clauses, err := postgres.FilterClauses(f, columns, &args)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidFilter, err)
	}
	limit := args.Add(k)

	query := `SELECT ` + selectColumns + `, embedding <=> ` + vec + ` AS distance FROM ` + r.table +
		postgres.Where(clauses) + ` ORDER BY distance ASC, id ASC LIMIT ` + limit

	rows, err := r.db.QueryContext(ctx, query, args.Values()...)
	if err != nil {
		return nil, domain.Unavailable(domain.ErrVectorIndexUnavailable, fmt.Errorf("knn query: %w", err))
	}
	defer rows.Close()

	var out []result.Candidate
	for rows.Next() {
		var c result.Candidate
		var tags []string
		m := &c.Metadata
		if err := rows.Scan(&c.ID, &c.Text, &m.Name, &m.Brand, &m.Category, &m.Gender, &m.Price,
			pq.Array(&tags), &m.InStock, &c.Distance); err != nil {
			return nil, domain.Unavailable(domain.ErrVectorIndexUnavailable, fmt.Errorf("scan row: %w", err))
		}
		m.Tags = strings.Join(tags, document.TagSeparator)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable(domain.ErrVectorIndexUnavailable, fmt.Errorf("iterate rows: %w", err))
	}
	return out, nil
}

// Count returns the number of indexed entries.
func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM `+r.table).Scan(&n); err != nil {
		return 0, domain.Unavailable(domain.ErrVectorIndexUnavailable, fmt.Errorf("count: %w", err))
	}
	return n, nil
}

// Ping checks backend connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	return domain.Unavailable(domain.ErrVectorIndexUnavailable, r.db.Ping(ctx))
}
