package chi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/kailas-cloud/shelfsearch/internal/domain"
	"github.com/kailas-cloud/shelfsearch/internal/domain/record"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/result"
	dsync "github.com/kailas-cloud/shelfsearch/internal/domain/sync"
	statsuc "github.com/kailas-cloud/shelfsearch/internal/usecase/stats"
)

type searchRequest struct {
	Query       string                     `json:"query"`
	Agent       string                     `json:"agent"`
	Page        *int                       `json:"page"`
	Limit       *int                       `json:"limit"`
	MaxDistance *float64                   `json:"max_distance"`
	Filters     map[string]json.RawMessage `json:"filters"`
}

// rangeBody is a numeric range filter, e.g. {"price": {"gte": 10, "lt": 50}}.
type rangeBody struct {
	GT  *float64 `json:"gt"`
	GTE *float64 `json:"gte"`
	LT  *float64 `json:"lt"`
	LTE *float64 `json:"lte"`
}

type productRequest struct {
	ProductID string `json:"product_id"`
	ID        string `json:"id"`
}

func (p productRequest) id() string {
	if p.ProductID != "" {
		return p.ProductID
	}
	return p.ID
}

type categoryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type productResponse struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Brand       string           `json:"brand"`
	Description string           `json:"description"`
	Category    categoryResponse `json:"category"`
	Tags        []string         `json:"tags"`
	Gender      string           `json:"gender,omitempty"`
	Price       float64          `json:"price"`
	InStock     bool             `json:"in_stock"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type hitResponse struct {
	ID       string            `json:"id"`
	Document string            `json:"document,omitempty"`
	Distance *float64          `json:"distance,omitempty"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}

type paginationResponse struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

type searchResponse struct {
	Products       []productResponse          `json:"products"`
	HitsMeta       []hitResponse              `json:"hits_meta"`
	AIResponse     string                     `json:"ai_response"`
	AgentUsed      string                     `json:"agent_used"`
	UsedFallback   bool                       `json:"used_fallback"`
	Source         string                     `json:"source"`
	FallbackReason string                     `json:"fallback_reason,omitempty"`
	Pagination     paginationResponse         `json:"pagination"`
	FiltersApplied map[string]json.RawMessage `json:"filters_applied"`
}

type debugRequest struct {
	Query   string                     `json:"query"`
	Filters map[string]json.RawMessage `json:"filters"`
}

type debugResponse struct {
	Query          string                     `json:"query"`
	Filters        map[string]json.RawMessage `json:"filters"`
	ProductsFound  int                        `json:"products_found"`
	TotalAvailable int                        `json:"total_available"`
	Source         string                     `json:"source"`
	FallbackReason string                     `json:"fallback_reason,omitempty"`
	Products       []productResponse          `json:"products"`
	HitsMeta       []hitResponse              `json:"hits_meta"`
	Stats          statsResponse              `json:"stats"`
}

type productMessage struct {
	Message   string `json:"message"`
	ProductID string `json:"product_id"`
}

type failureResponse struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type syncResponse struct {
	Message    string            `json:"message"`
	Cleared    bool              `json:"cleared"`
	Indexed    int               `json:"indexed"`
	Failed     int               `json:"failed"`
	Failures   []failureResponse `json:"failures"`
	DurationMS int64             `json:"duration_ms"`
}

type statsResponse struct {
	Driver     string             `json:"driver"`
	Model      string             `json:"model"`
	Dimensions int                `json:"dimensions"`
	Indexed    int                `json:"indexed"`
	Records    int                `json:"records"`
	InSync     bool               `json:"in_sync"`
	Weights    map[string]float64 `json:"weights"`
	Errors     map[string]string  `json:"errors,omitempty"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// filtersFromRequest turns the filters object into an expression. Scalar
// values become equality conditions, objects become numeric ranges and
// nulls are ignored. Keys are read in sorted order.
func filtersFromRequest(raw map[string]json.RawMessage) (filter.Expression, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	conditions := make([]filter.Condition, 0, len(keys))
	for _, key := range keys {
		c, ok, err := conditionFromRequest(key, raw[key])
		if err != nil {
			return filter.Expression{}, err
		}
		if ok {
			conditions = append(conditions, c)
		}
	}

	expr, err := filter.NewExpression(conditions...)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("build filter expression: %w", err)
	}
	return expr, nil
}

func conditionFromRequest(key string, value json.RawMessage) (filter.Condition, bool, error) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var rb rangeBody
		if err := json.Unmarshal(trimmed, &rb); err != nil {
			return filter.Condition{}, false, fmt.Errorf("filter %q: %w", key, domain.ErrInvalidFilter)
		}
		rng, err := filter.NewRangeFilter(rb.GT, rb.GTE, rb.LT, rb.LTE)
		if err != nil {
			return filter.Condition{}, false, fmt.Errorf("filter %q: %w", key, err)
		}
		c, err := filter.NewRange(key, rng)
		if err != nil {
			return filter.Condition{}, false, fmt.Errorf("filter %q: %w", key, err)
		}
		return c, true, nil
	}

	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return filter.Condition{}, false, fmt.Errorf("filter %q: %w", key, domain.ErrInvalidFilter)
	}

	var match string
	switch t := v.(type) {
	case nil:
		return filter.Condition{}, false, nil
	case string:
		match = t
	case bool:
		match = strconv.FormatBool(t)
	case float64:
		match = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return filter.Condition{}, false, fmt.Errorf("filter %q must be a string, number, boolean or range: %w",
			key, domain.ErrInvalidFilter)
	}

	c, err := filter.NewMatch(key, match)
	if err != nil {
		return filter.Condition{}, false, fmt.Errorf("filter %q: %w", key, err)
	}
	return c, true, nil
}

func productToResponse(r record.Record) productResponse {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return productResponse{
		ID:          r.ID,
		Name:        r.Name,
		Brand:       r.Brand,
		Description: r.Description,
		Category:    categoryResponse{ID: r.Category.ID, Name: r.Category.Name},
		Tags:        tags,
		Gender:      string(r.Gender),
		Price:       r.Price,
		InStock:     r.InStock,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func hitToResponse(c result.Candidate, src result.Source) hitResponse {
	h := hitResponse{
		ID:       c.ID,
		Document: c.Text,
		Score:    c.Score,
		Metadata: c.Metadata.Fields(),
	}
	if src == result.SourceVector {
		d := c.Distance
		h.Distance = &d
	}
	return h
}

func pageToResponse(
	p result.Page, answer, agent string, filters map[string]json.RawMessage,
) searchResponse {
	products := make([]productResponse, len(p.Records))
	for i, r := range p.Records {
		products[i] = productToResponse(r)
	}
	hits := make([]hitResponse, len(p.Hits))
	for i, c := range p.Hits {
		hits[i] = hitToResponse(c, p.Source)
	}
	if filters == nil {
		filters = map[string]json.RawMessage{}
	}

	return searchResponse{
		Products:       products,
		HitsMeta:       hits,
		AIResponse:     answer,
		AgentUsed:      agent,
		UsedFallback:   p.Source == result.SourceFallback,
		Source:         string(p.Source),
		FallbackReason: string(p.FallbackReason),
		Pagination: paginationResponse{
			Page:       p.Page,
			Limit:      p.Limit,
			Total:      p.Total,
			TotalPages: p.TotalPages(),
			HasNext:    p.HasNext(),
			HasPrev:    p.HasPrev(),
		},
		FiltersApplied: filters,
	}
}

func reportToResponse(r dsync.Report, message string) syncResponse {
	failures := make([]failureResponse, len(r.Failures))
	for i, f := range r.Failures {
		failures[i] = failureResponse{ID: f.ID, Reason: f.Reason}
	}
	return syncResponse{
		Message:    message,
		Cleared:    r.Cleared,
		Indexed:    r.Indexed,
		Failed:     r.Failed,
		Failures:   failures,
		DurationMS: r.Duration.Milliseconds(),
	}
}

func statsToResponse(r statsuc.Report) statsResponse {
	resp := statsResponse{
		Driver:     r.Driver,
		Model:      r.Model,
		Dimensions: r.Dimensions,
		Indexed:    r.Indexed,
		Records:    r.Records,
		InSync:     r.InSync(),
		Weights:    r.Weights,
	}
	if len(r.Errors) > 0 {
		resp.Errors = r.Errors
	}
	return resp
}
