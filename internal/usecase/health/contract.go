package health

import "context"

// ModelChecker checks classifier availability.
type ModelChecker interface {
	HealthCheck(ctx context.Context) error
}

// JournalPinger checks the prediction journal database.
type JournalPinger interface {
	Ping(ctx context.Context) error
}
