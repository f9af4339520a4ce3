// Package stats reports index and catalog sizes.
package stats

import (
	"context"
	"time"

	"github.com/kailas-cloud/shelfsearch/internal/domain/document"
)

// Unknown marks a count that could not be read.
const Unknown = -1

// Report is a point-in-time summary of the engine's data.
type Report struct {
	Driver     string
	Model      string
	Dimensions int
	Indexed    int
	Records    int
	Weights    map[string]float64
	// Errors holds the failure message per component whose count is Unknown.
	Errors map[string]string
}

// InSync reports whether every catalog record has an index entry.
func (r Report) InSync() bool {
	return r.Indexed != Unknown && r.Indexed == r.Records
}

// Service builds stats reports.
type Service struct {
	index      IndexCounter
	records    RecordCounter
	weights    document.WeightTable
	model      string
	dimensions int
	timeout    time.Duration
}

// New creates a stats service.
func New(
	index IndexCounter, records RecordCounter, weights document.WeightTable,
	model string, dimensions int, timeout time.Duration,
) *Service {
	return &Service{
		index:      index,
		records:    records,
		weights:    weights,
		model:      model,
		dimensions: dimensions,
		timeout:    timeout,
	}
}

// GetReport counts both stores. Failures degrade the affected count to Unknown.
func (s *Service) GetReport(ctx context.Context) Report {
	r := Report{
		Driver:     s.index.Driver(),
		Model:      s.model,
		Dimensions: s.dimensions,
		Weights:    s.weights.Weights(),
		Errors:     map[string]string{},
	}
	r.Indexed = s.count(ctx, "vector_index", s.index.Count, r.Errors)
	r.Records = s.count(ctx, "record_store", s.records.Count, r.Errors)
	return r
}

func (s *Service) count(
	ctx context.Context, name string, fn func(context.Context) (int, error), errs map[string]string,
) int {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	n, err := fn(ctx)
	if err != nil {
		errs[name] = err.Error()
		return Unknown
	}
	return n
}
