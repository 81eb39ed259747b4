package queue

import (
	"context"
	"time"

	"github.com/kailas-cloud/affilink/internal/domain/placement"
	"github.com/kailas-cloud/affilink/internal/domain/task"
)

// Repository is the durable FIFO plus lease and per-document markers.
type Repository interface {
	Push(ctx context.Context, t task.Task) error
	Peek(ctx context.Context, n int) ([]task.Entry, error)
	PopHead(ctx context.Context, e task.Entry) (bool, error)
	Len(ctx context.Context) (int, error)
	Clear(ctx context.Context) error

	AcquireLease(ctx context.Context, token string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, token string) (bool, error)

	MarkQueued(ctx context.Context, documentID string) (bool, error)
	SetMarker(ctx context.Context, documentID string, state task.State) error
	ClearMarker(ctx context.Context, documentID string) error
	Marker(ctx context.Context, documentID string) (task.State, error)
}

// PlacementReader lists documents with placements for the refresh sweep.
type PlacementReader interface {
	ListPlacementDocuments(ctx context.Context, limit int) ([]string, error)
	GetPlacements(ctx context.Context, documentID string) (placement.Set, error)
}

// Handler executes one task.
type Handler func(ctx context.Context, t task.Task) error

// Scheduler arranges a future drain.
type Scheduler interface {
	TriggerAfter(delay time.Duration)
}
