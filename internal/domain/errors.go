package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidPagination signals page < 1, limit < 1 or limit above the configured maximum.
	ErrInvalidPagination = errors.New("invalid pagination")
	// ErrInvalidQuery signals an empty or oversized query text.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidFilter signals a filter on an unknown field or with a mismatched value type.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrInvalidConfig signals an engine configuration that failed validation.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrRecordNotFound signals a record id the record store cannot resolve.
	ErrRecordNotFound = errors.New("record not found")

	// ErrEmbeddingUnavailable signals an embedding provider failure or timeout.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrVectorIndexUnavailable signals a vector index failure or timeout.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")
	// ErrRecordStoreUnavailable signals a record store failure or timeout.
	ErrRecordStoreUnavailable = errors.New("record store unavailable")

	// ErrSyncFailed signals a retryable incremental sync failure.
	ErrSyncFailed = errors.New("sync failed")
)

// Unavailable wraps a collaborator error with the given *Unavailable sentinel.
// Returns nil for a nil err and leaves errors already carrying the sentinel untouched.
func Unavailable(sentinel, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: timeout: %w", sentinel, err)
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
