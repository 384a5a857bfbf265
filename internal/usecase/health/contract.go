package health

import "context"

// IndexPinger checks search index availability.
type IndexPinger interface {
	Ping(ctx context.Context) error
}

// RecordStorePinger checks record store availability.
type RecordStorePinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
