package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// SourceChecker checks catalog sources one by one.
type SourceChecker interface {
	Sources() []string
	Test(ctx context.Context, sourceID string) error
}
