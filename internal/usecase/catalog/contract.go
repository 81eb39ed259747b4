package catalog

import (
	"context"

	"github.com/kailas-cloud/affilink/internal/domain/product"
)

// Source is one catalog provider behind a uniform search/fetch capability.
// Expected failures (credentials, HTTP status, payload) are returned as errors
// wrapping domain.ErrSourceUnavailable; a missing product as domain.ErrProductNotFound.
type Source interface {
	ID() string
	Search(ctx context.Context, query string, opts product.SearchOptions) ([]product.Product, error)
	Fetch(ctx context.Context, productID string) (product.Product, error)
}

// Refresher is implemented by caching sources that can bypass their cache.
type Refresher interface {
	Refresh(ctx context.Context, productID string) (product.Product, error)
}
