// Package sync holds the outcome types of index synchronization.
package sync

import "time"

// Mode identifies a synchronization path.
type Mode string

// Synchronization modes.
const (
	ModeFull   Mode = "full"
	ModeOne    Mode = "one"
	ModeRemove Mode = "remove"
)

// Failure records one record that could not be indexed.
type Failure struct {
	ID     string
	Reason string
}

// Report summarizes a full synchronization run.
type Report struct {
	Cleared  bool
	Indexed  int
	Failed   int
	Failures []Failure
	Duration time.Duration
}

// MaxReportedFailures caps how many failures a report keeps in detail.
const MaxReportedFailures = 100

// Fail counts a failed record, keeping its detail while under the cap.
func (r *Report) Fail(id string, err error) {
	r.Failed++
	if len(r.Failures) < MaxReportedFailures {
		r.Failures = append(r.Failures, Failure{ID: id, Reason: err.Error()})
	}
}

// Total returns indexed plus failed.
func (r *Report) Total() int { return r.Indexed + r.Failed }
