package catalog

import (
	"context"
	"sync"

	"github.com/kailas-cloud/affilink/internal/domain"
	"github.com/kailas-cloud/affilink/internal/domain/product"
)

// mockSource returns canned results per query and records calls.
type mockSource struct {
	id      string
	results map[string][]product.Product
	err     error

	mu      sync.Mutex
	queries []string
	opts    []product.SearchOptions
}

func (m *mockSource) ID() string { return m.id }

func (m *mockSource) Search(
	_ context.Context, query string, opts product.SearchOptions,
) ([]product.Product, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.opts = append(m.opts, opts)
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	return m.results[query], nil
}

func (m *mockSource) Fetch(_ context.Context, id string) (product.Product, error) {
	if m.err != nil {
		return product.Product{}, m.err
	}
	for _, ps := range m.results {
		for _, p := range ps {
			if p.ID == id {
				return p, nil
			}
		}
	}
	return product.Product{}, domain.ErrProductNotFound
}

func (m *mockSource) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

func prod(source, id, title string, available bool) product.Product {
	return product.Product{ID: id, Source: source, Title: title, Available: available}
}

// refreshingSource marks Refresh calls.
type refreshingSource struct {
	mockSource
	refreshed []string
}

func (r *refreshingSource) Refresh(_ context.Context, id string) (product.Product, error) {
	r.refreshed = append(r.refreshed, id)
	return product.Product{ID: id, Source: r.id, Title: "fresh"}, nil
}
