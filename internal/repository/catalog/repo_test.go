package catalog

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/kailas-cloud/shelfsearch/internal/db/postgres"
	"github.com/kailas-cloud/shelfsearch/internal/domain"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/keyword"
)

var recordColumns = []string{
	"id", "name", "brand", "description", "category_id", "category_name",
	"tags", "gender", "price", "in_stock", "created_at", "updated_at",
}

func newTestRepo(t *testing.T) (*Repo, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return New(postgres.Wrap(sqlDB)), mock
}

func tagsValue(t *testing.T, tags ...string) any {
	t.Helper()
	v, err := pq.Array(tags).Value()
	if err != nil {
		t.Fatalf("tags value: %v", err)
	}
	return v
}

func addRecord(t *testing.T, rows *sqlmock.Rows, id, name string) *sqlmock.Rows {
	t.Helper()
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return rows.AddRow(id, name, "Acme", "desc", "c-1", "Shoes",
		tagsValue(t, "run", "trail"), "Men", 49.0, true, ts, ts)
}

func TestInitSchema(t *testing.T) {
	repo, mock := newTestRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS products")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.InitSchema(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetByID(t *testing.T) {
	repo, mock := newTestRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = $1")).
		WithArgs("p-1").
		WillReturnRows(addRecord(t, sqlmock.NewRows(recordColumns), "p-1", "Runner"))

	rec, err := repo.GetByID(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Name != "Runner" || rec.Category.Name != "Shoes" || rec.Gender != "men" {
		t.Errorf("record = %+v", rec)
	}
	if len(rec.Tags) != 2 || rec.Tags[1] != "trail" {
		t.Errorf("tags = %v", rec.Tags)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)
	mock.ExpectQuery("FROM products").WillReturnRows(sqlmock.NewRows(recordColumns))

	if _, err := repo.GetByID(context.Background(), "nope"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestGetByID_Unavailable(t *testing.T) {
	repo, mock := newTestRepo(t)
	mock.ExpectQuery("FROM products").WillReturnError(errors.New("connection refused"))

	if _, err := repo.GetByID(context.Background(), "p"); !errors.Is(err, domain.ErrRecordStoreUnavailable) {
		t.Fatalf("expected ErrRecordStoreUnavailable, got %v", err)
	}
}

func TestGetByIDs(t *testing.T) {
	repo, mock := newTestRepo(t)
	rows := sqlmock.NewRows(recordColumns)
	addRecord(t, rows, "b", "B")
	addRecord(t, rows, "a", "A")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = ANY($1)")).WillReturnRows(rows)

	recs, err := repo.GetByIDs(context.Background(), []string{"a", "b", "missing"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}

	none, err := repo.GetByIDs(context.Background(), nil)
	if err != nil || none != nil {
		t.Errorf("GetByIDs(nil) = %v, %v", none, err)
	}
}

func TestListAll_KeysetPages(t *testing.T) {
	repo, mock := newTestRepo(t)
	query := regexp.QuoteMeta("WHERE id > $1 ORDER BY id ASC LIMIT $2")

	first := sqlmock.NewRows(recordColumns)
	addRecord(t, first, "a", "A")
	addRecord(t, first, "b", "B")
	mock.ExpectQuery(query).WithArgs("", 2).WillReturnRows(first)

	second := sqlmock.NewRows(recordColumns)
	addRecord(t, second, "c", "C")
	mock.ExpectQuery(query).WithArgs("b", 2).WillReturnRows(second)

	var ids []string
	for batch, err := range repo.ListAll(context.Background(), 2) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, r := range batch {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) != 3 || ids[2] != "c" {
		t.Errorf("ids = %v", ids)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestListAll_Error(t *testing.T) {
	repo, mock := newTestRepo(t)
	mock.ExpectQuery("FROM products").WillReturnError(errors.New("broken pipe"))

	var got error
	for _, err := range repo.ListAll(context.Background(), 10) {
		got = err
	}
	if !errors.Is(got, domain.ErrRecordStoreUnavailable) {
		t.Fatalf("expected ErrRecordStoreUnavailable, got %v", got)
	}
}

func addMatch(t *testing.T, rows *sqlmock.Rows, id, brand string, matched, total int) *sqlmock.Rows {
	t.Helper()
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return rows.AddRow(id, "Lip Balm", brand, "desc", "c-1", "Beauty",
		tagsValue(t, "balm"), "Women", 9.0, true, ts, ts, matched, total)
}

var matchColumns = append(slices.Clone(recordColumns), "matched", "total")

func TestKeyword(t *testing.T) {
	repo, mock := newTestRepo(t)

	stock, _ := filter.NewMatch("in_stock", "true")
	f, _ := filter.NewExpression(stock)

	rows := sqlmock.NewRows(matchColumns)
	addMatch(t, rows, "p-1", "L'Oreal Paris", 2, 1200)
	addMatch(t, rows, "p-2", "Acme", 1, 1200)
	mock.ExpectQuery(regexp.QuoteMeta("FROM unnest($1::text[]) AS p(pattern)") + ".*" +
		regexp.QuoteMeta("FROM products WHERE in_stock = $2) SELECT") + ".*" +
		regexp.QuoteMeta("WHERE matched > 0 ORDER BY matched DESC, updated_at DESC, id ASC LIMIT $3 OFFSET $4"),
	).
		WithArgs(tagsValue(t, "%l'oreal%", `%50\%%`), true, 10, 20).
		WillReturnRows(rows)

	got, err := repo.Keyword(context.Background(), keyword.Predicate{
		Tokens:  []string{"l'oreal", "50%"},
		Filters: f,
		Offset:  20,
		Limit:   10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Total != 1200 || len(got.Hits) != 2 {
		t.Fatalf("matches = %+v", got)
	}
	if got.Hits[0].Record.ID != "p-1" || got.Hits[0].Matched != 2 || got.Hits[1].Matched != 1 {
		t.Errorf("hits = %+v", got.Hits)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestKeyword_FirstPageSkipsOffset(t *testing.T) {
	repo, mock := newTestRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY matched DESC, updated_at DESC, id ASC LIMIT $2")).
		WithArgs(tagsValue(t, "%t-shirt%"), 10).
		WillReturnRows(sqlmock.NewRows(matchColumns))

	got, err := repo.Keyword(context.Background(), keyword.Predicate{Tokens: []string{"t-shirt"}, Limit: 10})
	if err != nil || got.Total != 0 || len(got.Hits) != 0 {
		t.Fatalf("Keyword() = %+v, %v", got, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestKeyword_PageBeyondLastCounts(t *testing.T) {
	repo, mock := newTestRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $2 OFFSET $3")).
		WithArgs(tagsValue(t, "%shoe%"), 10, 50).
		WillReturnRows(sqlmock.NewRows(matchColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM scored WHERE matched > 0")).
		WithArgs(tagsValue(t, "%shoe%")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	got, err := repo.Keyword(context.Background(), keyword.Predicate{Tokens: []string{"shoe"}, Offset: 50, Limit: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Total != 7 || len(got.Hits) != 0 {
		t.Errorf("matches = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestKeyword_Unavailable(t *testing.T) {
	repo, mock := newTestRepo(t)
	mock.ExpectQuery("WITH scored").WillReturnError(errors.New("connection reset"))

	_, err := repo.Keyword(context.Background(), keyword.Predicate{Tokens: []string{"shoe"}, Limit: 10})
	if !errors.Is(err, domain.ErrRecordStoreUnavailable) {
		t.Fatalf("expected ErrRecordStoreUnavailable, got %v", err)
	}
}

func TestKeyword_NoTokens(t *testing.T) {
	repo, _ := newTestRepo(t)
	got, err := repo.Keyword(context.Background(), keyword.Predicate{})
	if err != nil || got.Total != 0 || got.Hits != nil {
		t.Fatalf("Keyword() = %+v, %v", got, err)
	}
}

func TestCount(t *testing.T) {
	repo, mock := newTestRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM products")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := repo.Count(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("Count() = %d, %v", n, err)
	}
}
