package postgres

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/shelfsearch/internal/domain/search/filter"
)

var testColumns = Columns{
	"brand":    "brand",
	"category": "category_name",
	"tags":     "tags",
	"price":    "price",
	"in_stock": "in_stock",
}

func TestFilterClauses(t *testing.T) {
	lo := 10.0
	r, _ := filter.NewRangeFilter(nil, &lo, nil, nil)
	price, _ := filter.NewRange("price", r)
	brand, _ := filter.NewMatch("brand", "Acme")
	tag, _ := filter.NewMatch("tags", "running")
	stock, _ := filter.NewMatch("in_stock", "false")
	expr, _ := filter.NewExpression(price, brand, tag, stock)

	var args Args
	args.Add("already-bound")
	clauses, err := FilterClauses(expr, testColumns, &args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"price >= $2",
		"lower(brand) = lower($3)",
		"EXISTS (SELECT 1 FROM unnest(tags) AS t WHERE lower(t) = lower($4))",
		"in_stock = $5",
	}
	if strings.Join(clauses, "\n") != strings.Join(want, "\n") {
		t.Errorf("clauses =\n%s\nwant\n%s", strings.Join(clauses, "\n"), strings.Join(want, "\n"))
	}

	vals := args.Values()
	if len(vals) != 5 || vals[1] != 10.0 || vals[2] != "Acme" || vals[4] != false {
		t.Errorf("args = %v", vals)
	}
}

func TestFilterClauses_UnmappedColumn(t *testing.T) {
	gender, _ := filter.NewMatch("gender", "men")
	expr, _ := filter.NewExpression(gender)
	if _, err := FilterClauses(expr, testColumns, &Args{}); err == nil {
		t.Fatal("expected error for unmapped key")
	}
}

func TestWhere(t *testing.T) {
	if Where(nil) != "" {
		t.Error("expected empty where")
	}
	if got := Where([]string{"a = $1", "b = $2"}); got != " WHERE a = $1 AND b = $2" {
		t.Errorf("Where() = %q", got)
	}
}

func TestLikePattern(t *testing.T) {
	if got := LikePattern(`50%_off\`); got != `%50\%\_off\\%` {
		t.Errorf("LikePattern() = %q", got)
	}
}
