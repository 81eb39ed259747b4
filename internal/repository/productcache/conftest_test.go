package productcache

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/affilink/internal/db"
	"github.com/kailas-cloud/affilink/internal/domain"
	"github.com/kailas-cloud/affilink/internal/domain/product"
)

// mockSource counts calls to the inner source.
type mockSource struct {
	results     []product.Product
	product     product.Product
	err         error
	searchCalls int
	fetchCalls  int
}

func (m *mockSource) ID() string { return "feed" }

func (m *mockSource) Search(_ context.Context, _ string, _ product.SearchOptions) ([]product.Product, error) {
	m.searchCalls++
	return m.results, m.err
}

func (m *mockSource) Fetch(_ context.Context, id string) (product.Product, error) {
	m.fetchCalls++
	if m.err != nil {
		return product.Product{}, m.err
	}
	if m.product.ID != id {
		return product.Product{}, domain.ErrProductNotFound
	}
	return m.product, nil
}

// mockStore implements the consumer interface for tests.
type mockStore struct {
	data map[string][]byte
	ttls map[string]time.Duration
	err  error
}

func newMockStore() *mockStore {
	return &mockStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func newTestSource(t *testing.T, inner *mockSource) (*Source, *mockStore, *prometheus.CounterVec) {
	t.Helper()
	ms := newMockStore()
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "test_product_cache_total"},
		[]string{"op", "result"},
	)
	return New(inner, ms, counter, zap.NewNop()), ms, counter
}
