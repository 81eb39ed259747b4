package autolink

import (
	"context"

	domdoc "github.com/kailas-cloud/affilink/internal/domain/document"
	"github.com/kailas-cloud/affilink/internal/domain/keyword"
	"github.com/kailas-cloud/affilink/internal/domain/placement"
	"github.com/kailas-cloud/affilink/internal/domain/product"
	"github.com/kailas-cloud/affilink/internal/domain/task"
)

// ContentStore reads documents and keeps the linked flag.
type ContentStore interface {
	GetDocument(ctx context.Context, id string) (domdoc.Document, error)
	IsProcessed(ctx context.Context, id string) (bool, error)
	MarkProcessed(ctx context.Context, id string, processed bool) error
}

// Searcher finds scored product candidates for a keyword set.
type Searcher interface {
	SearchRelevant(ctx context.Context, keywords keyword.Set, maxResults int) []product.Candidate
}

// Placements stores placed products.
type Placements interface {
	Add(ctx context.Context, documentID string, items ...placement.Placed) ([]placement.Placed, error)
	RemoveAuto(ctx context.Context, documentID string) (int, error)
	Refresh(ctx context.Context, documentID, instanceID string) (placement.Placed, error)
}

// Queue enqueues auto-link tasks and tracks their per-document markers.
type Queue interface {
	EnqueueAutoLink(ctx context.Context, documentID string) (bool, error)
	State(ctx context.Context, documentID string) (task.State, error)
	ClearState(ctx context.Context, documentID string) error
}

// Trigger wakes the background worker.
type Trigger interface {
	Trigger()
}
