package health

import "context"

// Pinger is implemented by the vector index and the record store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker reports whether the embedding provider answers.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}
