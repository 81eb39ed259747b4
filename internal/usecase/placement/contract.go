package placement

import (
	"context"

	domdoc "github.com/kailas-cloud/affilink/internal/domain/document"
	"github.com/kailas-cloud/affilink/internal/domain/placement"
	"github.com/kailas-cloud/affilink/internal/domain/product"
)

// Repository defines the content storage the manager needs.
type Repository interface {
	GetDocument(ctx context.Context, id string) (domdoc.Document, error)
	GetPlacements(ctx context.Context, documentID string) (placement.Set, error)
	SetPlacements(ctx context.Context, documentID string, set placement.Set) error
}

// Catalog re-fetches a product from its source, bypassing caches.
type Catalog interface {
	Refresh(ctx context.Context, sourceID, productID string) (product.Product, error)
}
