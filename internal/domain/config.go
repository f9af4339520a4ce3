package domain

import (
	"context"
	"fmt"
	"time"
)

// EngineConfig holds the tunables shared by the search engine and the sync controller.
// Built once at startup and passed by value; components never mutate it.
type EngineConfig struct {
	// FieldWeights overrides document field weights; nil means defaults.
	FieldWeights map[string]float64
	// DefaultMaxDistance applies when a query carries no threshold; <= 0 disables it.
	DefaultMaxDistance float64
	DefaultPage        int
	DefaultLimit       int
	MaxLimit           int
	// OverFetch multiplies the page size when asking the vector index for candidates.
	OverFetch     int
	SyncBatchSize int
	// CallTimeout bounds every embedding, vector index and record store call.
	CallTimeout time.Duration
	// ClearTimeout bounds emptying the vector index before a rebuild; it scales
	// with index size, so it is kept apart from CallTimeout.
	ClearTimeout time.Duration
}

// DefaultEngineConfig returns the defaults used when the config file leaves fields empty.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultMaxDistance: 1.2,
		DefaultPage:        1,
		DefaultLimit:       10,
		MaxLimit:           100,
		OverFetch:          3,
		SyncBatchSize:      100,
		CallTimeout:        5 * time.Second,
		ClearTimeout:       2 * time.Minute,
	}
}

// Validate checks the configuration for correctness.
func (c EngineConfig) Validate() error {
	if c.DefaultPage < 1 {
		return fmt.Errorf("default page must be >= 1, got %d: %w", c.DefaultPage, ErrInvalidConfig)
	}
	if c.DefaultLimit < 1 {
		return fmt.Errorf("default limit must be >= 1, got %d: %w", c.DefaultLimit, ErrInvalidConfig)
	}
	if c.MaxLimit < c.DefaultLimit {
		return fmt.Errorf("max limit %d is below default limit %d: %w", c.MaxLimit, c.DefaultLimit, ErrInvalidConfig)
	}
	if c.OverFetch < 1 {
		return fmt.Errorf("overfetch must be >= 1, got %d: %w", c.OverFetch, ErrInvalidConfig)
	}
	if c.SyncBatchSize < 1 {
		return fmt.Errorf("sync batch size must be >= 1, got %d: %w", c.SyncBatchSize, ErrInvalidConfig)
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("call timeout must not be negative: %w", ErrInvalidConfig)
	}
	if c.ClearTimeout < 0 {
		return fmt.Errorf("clear timeout must not be negative: %w", ErrInvalidConfig)
	}
	return nil
}

// CallContext derives the per-call context for a collaborator request.
func (c EngineConfig) CallContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.CallTimeout)
}

// ClearContext derives the context for emptying the vector index.
func (c EngineConfig) ClearContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.ClearTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.ClearTimeout)
}
