// Package placement plans, stores and renders product placements in documents.
package placement

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/affilink/internal/domain"
	"github.com/kailas-cloud/affilink/internal/domain/placement"
	"github.com/kailas-cloud/affilink/internal/domain/placement/patch"
)

// Manager handles placement CRUD for documents.
type Manager struct {
	repo    Repository
	catalog Catalog
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string

	// mu guards locks; each docLock serializes read-modify-write cycles on one
	// document's placement set.
	mu    sync.Mutex
	locks map[string]*docLock
}

type docLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager creates a placement manager.
func NewManager(repo Repository, catalog Catalog, logger *zap.Logger) *Manager {
	return &Manager{
		repo:    repo,
		catalog: catalog,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
		locks:   make(map[string]*docLock),
	}
}

// lock takes the placement lock of one document and returns its release func.
func (m *Manager) lock(documentID string) func() {
	m.mu.Lock()
	l, ok := m.locks[documentID]
	if !ok {
		l = &docLock{}
		m.locks[documentID] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, documentID)
		}
		m.mu.Unlock()
	}
}

// List returns the placements of a document, top to bottom.
func (m *Manager) List(ctx context.Context, documentID string) ([]placement.Placed, error) {
	if _, err := m.repo.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	set, err := m.repo.GetPlacements(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get placements: %w", err)
	}
	return sorted(set), nil
}

// Add stores new placements on a document. Each gets a fresh instance ID and AddedAt;
// an empty layout becomes the default card layout.
func (m *Manager) Add(ctx context.Context, documentID string, items ...placement.Placed) ([]placement.Placed, error) {
	for _, it := range items {
		if err := it.Point.Validate(); err != nil {
			return nil, err
		}
		if it.Product.ID == "" || it.Product.Source == "" {
			return nil, fmt.Errorf("product id and source are required: %w", domain.ErrInvalidInput)
		}
	}

	defer m.lock(documentID)()

	if _, err := m.repo.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	set, err := m.repo.GetPlacements(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get placements: %w", err)
	}
	if set == nil {
		set = placement.Set{}
	}

	now := m.now()
	added := make([]placement.Placed, 0, len(items))
	for _, it := range items {
		it.InstanceID = m.newID()
		it.AddedAt = now
		it.UpdatedAt = time.Time{}
		if it.Display.Layout == "" {
			it.Display.Layout = placement.DefaultLayout
		}
		set[it.InstanceID] = it
		added = append(added, it)
	}

	if err := m.repo.SetPlacements(ctx, documentID, set); err != nil {
		return nil, fmt.Errorf("set placements: %w", err)
	}
	return added, nil
}

// Update applies an operator patch to one placement.
func (m *Manager) Update(ctx context.Context, documentID, instanceID string, p patch.Patch) (placement.Placed, error) {
	var out placement.Placed
	err := m.modify(ctx, documentID, instanceID, func(cur placement.Placed) (placement.Placed, error) {
		out = p.Apply(cur)
		out.UpdatedAt = m.now()
		return out, nil
	})
	return out, err
}

// Refresh replaces the product snapshot of one placement with fresh source data,
// keeping every operator-owned field. The source is queried before the document
// lock is taken; the snapshot is merged into the record current at write time.
func (m *Manager) Refresh(ctx context.Context, documentID, instanceID string) (placement.Placed, error) {
	set, err := m.repo.GetPlacements(ctx, documentID)
	if err != nil {
		return placement.Placed{}, fmt.Errorf("get placements: %w", err)
	}
	cur, ok := set[instanceID]
	if !ok {
		return placement.Placed{}, domain.ErrPlacementNotFound
	}
	fresh, err := m.catalog.Refresh(ctx, cur.Product.Source, cur.Product.ID)
	if err != nil {
		return placement.Placed{}, fmt.Errorf("refresh %s: %w", cur.Product.Key(), err)
	}

	var out placement.Placed
	err = m.modify(ctx, documentID, instanceID, func(latest placement.Placed) (placement.Placed, error) {
		out = latest.Refreshed(fresh, m.now())
		return out, nil
	})
	return out, err
}

// Remove deletes one placement.
func (m *Manager) Remove(ctx context.Context, documentID, instanceID string) error {
	defer m.lock(documentID)()

	set, err := m.repo.GetPlacements(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get placements: %w", err)
	}
	if _, ok := set[instanceID]; !ok {
		return domain.ErrPlacementNotFound
	}
	delete(set, instanceID)
	if err := m.repo.SetPlacements(ctx, documentID, set); err != nil {
		return fmt.Errorf("set placements: %w", err)
	}
	return nil
}

// RemoveAuto deletes every auto-inserted placement of a document and keeps manual ones.
// Returns the number removed.
func (m *Manager) RemoveAuto(ctx context.Context, documentID string) (int, error) {
	defer m.lock(documentID)()

	set, err := m.repo.GetPlacements(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("get placements: %w", err)
	}
	removed := 0
	for id, p := range set {
		if p.AutoInserted {
			delete(set, id)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if err := m.repo.SetPlacements(ctx, documentID, set); err != nil {
		return 0, fmt.Errorf("set placements: %w", err)
	}
	return removed, nil
}

// Render returns the document body with its placements injected.
func (m *Manager) Render(ctx context.Context, documentID string, render Renderer) (string, error) {
	doc, err := m.repo.GetDocument(ctx, documentID)
	if err != nil {
		return "", err
	}
	set, err := m.repo.GetPlacements(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("get placements: %w", err)
	}
	if render == nil {
		render = RenderCard
	}
	return Inject(doc.Body(), sorted(set), render), nil
}

func (m *Manager) modify(
	ctx context.Context,
	documentID, instanceID string,
	fn func(placement.Placed) (placement.Placed, error),
) error {
	defer m.lock(documentID)()

	set, err := m.repo.GetPlacements(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get placements: %w", err)
	}
	cur, ok := set[instanceID]
	if !ok {
		return domain.ErrPlacementNotFound
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	set[instanceID] = next
	if err := m.repo.SetPlacements(ctx, documentID, set); err != nil {
		return fmt.Errorf("set placements: %w", err)
	}
	m.logger.Debug("Placement updated",
		zap.String("document_id", documentID),
		zap.String("instance_id", instanceID),
	)
	return nil
}

// sorted orders placements top to bottom, then by age, then by instance ID.
func sorted(set placement.Set) []placement.Placed {
	out := make([]placement.Placed, 0, len(set))
	for _, p := range set {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b placement.Placed) int {
		switch {
		case a.Point.Less(b.Point):
			return -1
		case b.Point.Less(a.Point):
			return 1
		}
		if c := a.AddedAt.Compare(b.AddedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.InstanceID, b.InstanceID)
	})
	return out
}
