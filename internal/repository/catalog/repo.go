// Package catalog reads catalog records from PostgreSQL.
package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/lib/pq"

	"github.com/kailas-cloud/shelfsearch/internal/db/postgres"
	"github.com/kailas-cloud/shelfsearch/internal/domain"
	"github.com/kailas-cloud/shelfsearch/internal/domain/document"
	"github.com/kailas-cloud/shelfsearch/internal/domain/record"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/keyword"
)

//go:embed schema.sql
var schema string

const recordColumnList = `id, name, brand, description, category_id, category_name,
	tags, gender, price, in_stock, created_at, updated_at`

const selectColumns = `SELECT ` + recordColumnList + ` FROM products`

var columns = postgres.Columns{
	document.AttrName:     "name",
	document.AttrBrand:    "brand",
	document.AttrCategory: "category_name",
	document.AttrGender:   "gender",
	document.AttrPrice:    "price",
	document.AttrTags:     "tags",
	document.AttrInStock:  "in_stock",
}

// Repo is the record store over the products table.
type Repo struct {
	db *postgres.DB
}

// New creates a catalog repository.
func New(db *postgres.DB) *Repo {
	return &Repo{db: db}
}

// InitSchema creates the products table. Idempotent.
func (r *Repo) InitSchema(ctx context.Context) error {
	return r.db.Exec(ctx, schema)
}

// Ping checks the database.
func (r *Repo) Ping(ctx context.Context) error {
	return domain.Unavailable(domain.ErrRecordStoreUnavailable, r.db.Ping(ctx))
}

// GetByID loads one record.
func (r *Repo) GetByID(ctx context.Context, id string) (record.Record, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Record{}, fmt.Errorf("record %s: %w", id, domain.ErrRecordNotFound)
	}
	if err != nil {
		return record.Record{}, domain.Unavailable(domain.ErrRecordStoreUnavailable, fmt.Errorf("get %s: %w", id, err))
	}
	return rec, nil
}

// GetByIDs loads the records that exist among ids, in no particular order.
func (r *Repo) GetByIDs(ctx context.Context, ids []string) ([]record.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, selectColumns+` WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, domain.Unavailable(domain.ErrRecordStoreUnavailable, fmt.Errorf("get %d records: %w", len(ids), err))
	}
	return collect(rows)
}

// ListAll streams every record in id order, batchSize at a time.
// Iteration stops after the first error.
func (r *Repo) ListAll(ctx context.Context, batchSize int) iter.Seq2[[]record.Record, error] {
	if batchSize < 1 {
		batchSize = 100
	}
	return func(yield func([]record.Record, error) bool) {
		after := ""
		for {
			rows, err := r.db.QueryContext(ctx,
				selectColumns+` WHERE id > $1 ORDER BY id ASC LIMIT $2`, after, batchSize)
			if err != nil {
				yield(nil, domain.Unavailable(domain.ErrRecordStoreUnavailable, fmt.Errorf("list after %q: %w", after, err)))
				return
			}
			batch, err := collect(rows)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(batch) == 0 {
				return
			}
			if !yield(batch, nil) {
				return
			}
			if len(batch) < batchSize {
				return
			}
			after = batch[len(batch)-1].ID
		}
	}
}

// Keyword ranks records matching the predicate in SQL: distinct matched tokens
// first, then most recently updated, then id. Total counts every match.
func (r *Repo) Keyword(ctx context.Context, p keyword.Predicate) (keyword.Matches, error) {
	if len(p.Tokens) == 0 {
		return keyword.Matches{}, nil
	}

	patterns := make([]string, len(p.Tokens))
	for i, tok := range p.Tokens {
		patterns[i] = postgres.LikePattern(tok)
	}

	var args postgres.Args
	pat := args.Add(pq.Array(patterns))
	filterClauses, err := postgres.FilterClauses(p.Filters, columns, &args)
	if err != nil {
		return keyword.Matches{}, fmt.Errorf("%w: %w", domain.ErrInvalidFilter, err)
	}
	filterArgs := len(args.Values())

	scored := `WITH scored AS (SELECT ` + recordColumnList + `,
		(SELECT count(*) FROM unnest(` + pat + `::text[]) AS p(pattern)
			WHERE name ILIKE p.pattern OR brand ILIKE p.pattern OR EXISTS (SELECT 1 FROM unnest(tags) AS t WHERE t ILIKE p.pattern)) AS matched
		FROM products` + postgres.Where(filterClauses) + `) `

	query := scored + `SELECT ` + recordColumnList + `, matched, count(*) OVER () AS total FROM scored
		WHERE matched > 0 ORDER BY matched DESC, updated_at DESC, id ASC`
	if p.Limit > 0 {
		query += ` LIMIT ` + args.Add(p.Limit)
	}
	if p.Offset > 0 {
		query += ` OFFSET ` + args.Add(p.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args.Values()...)
	if err != nil {
		return keyword.Matches{}, domain.Unavailable(domain.ErrRecordStoreUnavailable, fmt.Errorf("keyword query: %w", err))
	}
	out, err := collectMatches(rows)
	if err != nil {
		return keyword.Matches{}, err
	}
	if len(out.Hits) > 0 || p.Offset == 0 {
		return out, nil
	}

	// The window count is lost when the page is past the last match.
	countQuery := scored + `SELECT count(*) FROM scored WHERE matched > 0`
	if err := r.db.QueryRowContext(ctx, countQuery, args.Values()[:filterArgs]...).Scan(&out.Total); err != nil {
		return keyword.Matches{}, domain.Unavailable(domain.ErrRecordStoreUnavailable, fmt.Errorf("keyword count: %w", err))
	}
	return out, nil
}

// Count returns the number of catalog records.
func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM products`).Scan(&n); err != nil {
		return 0, domain.Unavailable(domain.ErrRecordStoreUnavailable, fmt.Errorf("count: %w", err))
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRecord reads the record columns followed by any extra destinations.
func scanRecord(s scanner, extra ...any) (record.Record, error) {
	var rec record.Record
	var gender string
	var tags []string
	dest := append([]any{
		&rec.ID, &rec.Name, &rec.Brand, &rec.Description,
		&rec.Category.ID, &rec.Category.Name,
		pq.Array(&tags), &gender, &rec.Price, &rec.InStock,
		&rec.CreatedAt, &rec.UpdatedAt,
	}, extra...)
	err := s.Scan(dest...)
	if err != nil {
		return record.Record{}, err
	}
	rec.Tags = tags
	rec.Gender = record.Gender(strings.ToLower(gender))
	return rec, nil
}

func collect(rows *sql.Rows) ([]record.Record, error) {
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, domain.Unavailable(domain.ErrRecordStoreUnavailable, fmt.Errorf("scan record: %w", err))
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable(domain.ErrRecordStoreUnavailable, fmt.Errorf("iterate records: %w", err))
	}
	return out, nil
}

func collectMatches(rows *sql.Rows) (keyword.Matches, error) {
	defer rows.Close()

	var out keyword.Matches
	for rows.Next() {
		var m keyword.Match
		rec, err := scanRecord(rows, &m.Matched, &out.Total)
		if err != nil {
			return keyword.Matches{}, domain.Unavailable(domain.ErrRecordStoreUnavailable, fmt.Errorf("scan match: %w", err))
		}
		m.Record = rec
		out.Hits = append(out.Hits, m)
	}
	if err := rows.Err(); err != nil {
		return keyword.Matches{}, domain.Unavailable(domain.ErrRecordStoreUnavailable, fmt.Errorf("iterate matches: %w", err))
	}
	return out, nil
}
