package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/shelfsearch/internal/domain/document"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/filter"
)

// Args accumulates positional query arguments.
type Args struct {
	values []any
}

// Add appends v and returns its $n placeholder.
func (a *Args) Add(v any) string {
	a.values = append(a.values, v)
	return "$" + strconv.Itoa(len(a.values))
}

// Values returns the accumulated arguments.
func (a *Args) Values() []any { return a.values }

// Columns maps metadata attributes to table columns.
// The tags attribute must map to a TEXT[] column.
type Columns map[string]string

// FilterClauses renders a filter conjunction as SQL predicates.
// Tag equality is case-insensitive; tags match when any element equals the value.
func FilterClauses(expr filter.Expression, cols Columns, args *Args) ([]string, error) {
	clauses := make([]string, 0, len(expr.Conditions()))
	for _, c := range expr.Conditions() {
		col, ok := cols[c.Key()]
		if !ok {
			return nil, fmt.Errorf("no column for filter key %q", c.Key())
		}
		clauses = append(clauses, clause(c, col, args)...)
	}
	return clauses, nil
}

func clause(c filter.Condition, col string, args *Args) []string {
	if r := c.Range(); r != nil {
		var out []string
		if r.GT() != nil {
			out = append(out, col+" > "+args.Add(*r.GT()))
		}
		if r.GTE() != nil {
			out = append(out, col+" >= "+args.Add(*r.GTE()))
		}
		if r.LT() != nil {
			out = append(out, col+" < "+args.Add(*r.LT()))
		}
		if r.LTE() != nil {
			out = append(out, col+" <= "+args.Add(*r.LTE()))
		}
		return out
	}

	switch c.Kind() {
	case document.KindNumeric:
		return []string{col + " = " + args.Add(c.Number())}
	case document.KindBool:
		return []string{col + " = " + args.Add(c.Match() == "true")}
	default:
		if c.Key() == document.AttrTags {
			return []string{fmt.Sprintf(
				"EXISTS (SELECT 1 FROM unnest(%s) AS t WHERE lower(t) = lower(%s))", col, args.Add(c.Match()),
			)}
		}
		return []string{fmt.Sprintf("lower(%s) = lower(%s)", col, args.Add(c.Match()))}
	}
}

// Where joins clauses with AND, returning "" when there are none.
func Where(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

// LikePattern escapes LIKE metacharacters in s and wraps it in %...%.
func LikePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
