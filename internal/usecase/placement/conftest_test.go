package placement

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/kailas-cloud/affilink/internal/domain"
	domdoc "github.com/kailas-cloud/affilink/internal/domain/document"
	"github.com/kailas-cloud/affilink/internal/domain/placement"
	"github.com/kailas-cloud/affilink/internal/domain/product"
)

type mockRepo struct {
	mu         sync.Mutex
	docs       map[string]domdoc.Document
	placements map[string]placement.Set
	setErr     error
	sets       int
}

func newMockRepo(docs ...domdoc.Document) *mockRepo {
	r := &mockRepo{docs: map[string]domdoc.Document{}, placements: map[string]placement.Set{}}
	for _, d := range docs {
		r.docs[d.ID()] = d
	}
	return r
}

func (m *mockRepo) GetDocument(_ context.Context, id string) (domdoc.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return d, nil
}

func (m *mockRepo) GetPlacements(_ context.Context, id string) (placement.Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.placements[id]), nil
}

func (m *mockRepo) SetPlacements(_ context.Context, id string, set placement.Set) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.sets++
	m.placements[id] = maps.Clone(set)
	return nil
}

type mockCatalog struct {
	refreshFn func(ctx context.Context, sourceID, productID string) (product.Product, error)
}

func (m *mockCatalog) Refresh(ctx context.Context, sourceID, productID string) (product.Product, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, sourceID, productID)
	}
	return product.Product{}, domain.ErrProductNotFound
}

var fixedNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func doc(id, body string) domdoc.Document {
	return domdoc.Reconstruct(id, "Title", body, domdoc.DefaultType, nil, nil)
}

func prod(source, id, title string) product.Product {
	return product.Product{ID: id, Source: source, Title: title, Available: true}
}
