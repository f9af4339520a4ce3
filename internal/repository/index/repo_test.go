package index

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/shelfsearch/internal/db"
	"github.com/kailas-cloud/shelfsearch/internal/domain"
	"github.com/kailas-cloud/shelfsearch/internal/domain/document"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/filter"
)

func TestNames(t *testing.T) {
	repo, _ := newTestRepo(t)
	if repo.IndexName() != "shop:items:idx" {
		t.Errorf("IndexName() = %q", repo.IndexName())
	}
	def := repo.Definition()
	if err := def.Validate(); err != nil {
		t.Fatalf("definition invalid: %v", err)
	}
	if def.Prefixes[0] != "shop:item:" {
		t.Errorf("prefix = %q", def.Prefixes[0])
	}
}

func TestEnsureIndex_CreatesWhenMissing(t *testing.T) {
	repo, ms := newTestRepo(t)
	created := false
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		created = def.Name == "shop:items:idx"
		return nil
	}

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected index creation")
	}
}

func TestEnsureIndex_ExistsSkipsCreate(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.indexExistsFn = func(context.Context, string) (bool, error) { return true, nil }
	ms.createIndexFn = func(context.Context, *db.IndexDefinition) error {
		t.Fatal("create must not be called")
		return nil
	}
	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureIndex_StoreDown(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.indexExistsFn = func(context.Context, string) (bool, error) { return false, errors.New("conn refused") }
	if err := repo.EnsureIndex(context.Background()); !errors.Is(err, domain.ErrVectorIndexUnavailable) {
		t.Fatalf("expected ErrVectorIndexUnavailable, got %v", err)
	}
}

func TestUpsert(t *testing.T) {
	repo, ms := newTestRepo(t)
	var got []db.HashSetItem
	ms.hsetMultiFn = func(_ context.Context, items []db.HashSetItem) error {
		got = items
		return nil
	}

	err := repo.Upsert(context.Background(), []document.Entry{{
		ID:       "p-1",
		Text:     "acme acme trail shoe",
		Vector:   testVector(),
		Metadata: document.Metadata{Brand: "Acme", Price: 9.5, InStock: true},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Key != "shop:item:p-1" {
		t.Fatalf("items = %+v", got)
	}
	f := got[0].Fields
	if f["brand"] != "Acme" || f["price"] != "9.5" || f["in_stock"] != "true" {
		t.Errorf("fields = %v", f)
	}
	if f["text"] != "acme acme trail shoe" {
		t.Errorf("text field = %q", f["text"])
	}
	if len(f["vector"]) != 16 {
		t.Errorf("vector bytes = %d, want 16", len(f["vector"]))
	}
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	repo, _ := newTestRepo(t)
	err := repo.Upsert(context.Background(), []document.Entry{{ID: "p", Vector: []float32{1}}})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestUpsert_StoreError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hsetMultiFn = func(context.Context, []db.HashSetItem) error { return context.DeadlineExceeded }
	err := repo.Upsert(context.Background(), []document.Entry{{ID: "p", Vector: testVector()}})
	if !errors.Is(err, domain.ErrVectorIndexUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected unavailable timeout, got %v", err)
	}
}

func TestRemove_Idempotent(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.delFn = func(_ context.Context, keys ...string) (int, error) {
		if keys[0] != "shop:item:gone" {
			t.Errorf("key = %q", keys[0])
		}
		return 0, nil
	}
	if err := repo.Remove(context.Background(), "gone"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClear(t *testing.T) {
	repo, ms := newTestRepo(t)

	var steps []string
	ms.dropIndexFn = func(context.Context, string) error {
		steps = append(steps, "drop")
		return db.ErrIndexNotFound
	}
	ms.scanEachFn = func(_ context.Context, pattern string, fn func([]string) error) error {
		if pattern != "shop:item:*" {
			t.Errorf("pattern = %q", pattern)
		}
		for _, page := range [][]string{{"shop:item:1", "shop:item:2"}, {"shop:item:3"}} {
			steps = append(steps, "scan")
			if err := fn(page); err != nil {
				return err
			}
		}
		return nil
	}
	ms.delFn = func(_ context.Context, k ...string) (int, error) {
		steps = append(steps, "del")
		return len(k), nil
	}
	ms.createIndexFn = func(context.Context, *db.IndexDefinition) error {
		steps = append(steps, "create")
		return nil
	}

	if err := repo.Clear(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"drop", "scan", "del", "scan", "del", "create"}
	if len(steps) != len(want) {
		t.Fatalf("steps = %v, want %v", steps, want)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Fatalf("steps = %v, want %v", steps, want)
		}
	}
}

func TestClear_DeadlineRecreatesIndex(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	var createErr error
	created := false
	ms.scanEachFn = func(ctx context.Context, _ string, _ func([]string) error) error {
		return ctx.Err()
	}
	ms.createIndexFn = func(ctx context.Context, def *db.IndexDefinition) error {
		created = true
		createErr = ctx.Err()
		if def.Name != "shop:items:idx" {
			t.Errorf("recreated %q", def.Name)
		}
		return nil
	}

	err := repo.Clear(ctx)
	if !errors.Is(err, domain.ErrVectorIndexUnavailable) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected unavailable deadline, got %v", err)
	}
	if !created || createErr != nil {
		t.Errorf("index must be recreated on a live context: created=%v err=%v", created, createErr)
	}
}

func TestClear_DeleteAndRestoreFail(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.scanEachFn = func(_ context.Context, _ string, fn func([]string) error) error {
		return fn([]string{"shop:item:1"})
	}
	ms.delFn = func(context.Context, ...string) (int, error) { return 0, errors.New("LOADING") }
	ms.createIndexFn = func(context.Context, *db.IndexDefinition) error { return errors.New("OOM") }

	err := repo.Clear(context.Background())
	if !errors.Is(err, domain.ErrVectorIndexUnavailable) {
		t.Fatalf("expected ErrVectorIndexUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "LOADING") || !strings.Contains(err.Error(), "recreate index") {
		t.Errorf("error must report both failures: %v", err)
	}
}

func TestClear_DropFails(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.dropIndexFn = func(context.Context, string) error { return errors.New("READONLY") }
	if err := repo.Clear(context.Background()); !errors.Is(err, domain.ErrVectorIndexUnavailable) {
		t.Fatalf("expected ErrVectorIndexUnavailable, got %v", err)
	}
}

func TestQuery(t *testing.T) {
	repo, ms := newTestRepo(t)
	brand, _ := filter.NewMatch("brand", "acme")
	f, _ := filter.NewExpression(brand)

	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.IndexName != "shop:items:idx" || q.K != 30 || q.VectorField != "vector" {
			t.Errorf("query = %+v", q)
		}
		if !slices.Contains(q.ReturnFields, "text") {
			t.Errorf("return fields = %v, want text", q.ReturnFields)
		}
		if len(q.Filters.Conditions()) != 1 {
			t.Errorf("filters not forwarded")
		}
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{{
			Key:      "shop:item:p-1",
			Distance: 0.25,
			Fields:   map[string]string{"text": "acme acme trail shoe", "brand": "Acme", "price": "12", "tags": "a|b", "in_stock": "true"},
		}}}, nil
	}

	got, err := repo.Query(context.Background(), testVector(), f, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "p-1" || got[0].Distance != 0.25 {
		t.Fatalf("candidates = %+v", got)
	}
	if got[0].Text != "acme acme trail shoe" {
		t.Errorf("text = %q", got[0].Text)
	}
	if got[0].Metadata.Price != 12 || !got[0].Metadata.InStock || got[0].Metadata.Tags != "a|b" {
		t.Errorf("metadata = %+v", got[0].Metadata)
	}
}

func TestQuery_Unavailable(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(context.Context, *db.KNNQuery) (*db.SearchResult, error) {
		return nil, errors.New("no such index")
	}
	if _, err := repo.Query(context.Background(), testVector(), filter.Expression{}, 10); !errors.Is(err, domain.ErrVectorIndexUnavailable) {
		t.Fatalf("expected ErrVectorIndexUnavailable, got %v", err)
	}
}

func TestCountAndPing(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchCountFn = func(_ context.Context, index, query string) (int, error) {
		if index != "shop:items:idx" || query != "*" {
			t.Errorf("count args = %q %q", index, query)
		}
		return 7, nil
	}
	n, err := repo.Count(context.Background())
	if err != nil || n != 7 {
		t.Fatalf("Count() = %d, %v", n, err)
	}

	ms.pingFn = func(context.Context) error { return errors.New("down") }
	if err := repo.Ping(context.Background()); !errors.Is(err, domain.ErrVectorIndexUnavailable) {
		t.Fatalf("expected ErrVectorIndexUnavailable, got %v", err)
	}
}
