package health

import "context"

// DBPinger checks store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks embedding provider availability.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}

// IndexChecker reports whether the passage search index is in place.
type IndexChecker interface {
	IndexReady(ctx context.Context) (bool, error)
}
