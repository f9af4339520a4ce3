package db

import "github.com/kailas-cloud/shelfsearch/internal/domain/search/filter"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string
	Filters      filter.Expression
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit. Distance is the raw metric value
// reported by the engine, smaller is closer.
type SearchEntry struct {
	Key      string
	Distance float64
	Fields   map[string]string
}
