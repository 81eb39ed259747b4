package autolink

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/kailas-cloud/affilink/internal/domain"
	domdoc "github.com/kailas-cloud/affilink/internal/domain/document"
	"github.com/kailas-cloud/affilink/internal/domain/keyword"
	"github.com/kailas-cloud/affilink/internal/domain/placement"
	"github.com/kailas-cloud/affilink/internal/domain/product"
	"github.com/kailas-cloud/affilink/internal/domain/task"
)

type mockContent struct {
	docs    map[string]domdoc.Document
	linked  map[string]bool
	markErr error
}

func newMockContent(docs ...domdoc.Document) *mockContent {
	m := &mockContent{docs: map[string]domdoc.Document{}, linked: map[string]bool{}}
	for _, d := range docs {
		m.docs[d.ID()] = d
	}
	return m
}

func (m *mockContent) GetDocument(_ context.Context, id string) (domdoc.Document, error) {
	d, ok := m.docs[id]
	if !ok {
		return domdoc.Document{}, domain.ErrDocumentNotFound
	}
	return d, nil
}

func (m *mockContent) IsProcessed(_ context.Context, id string) (bool, error) {
	return m.linked[id], nil
}

func (m *mockContent) MarkProcessed(_ context.Context, id string, processed bool) error {
	if m.markErr != nil {
		return m.markErr
	}
	if processed {
		m.linked[id] = true
	} else {
		delete(m.linked, id)
	}
	return nil
}

type mockSearcher struct {
	searchFn func(keywords keyword.Set, maxResults int) []product.Candidate
	calls    int
}

func (m *mockSearcher) SearchRelevant(_ context.Context, keywords keyword.Set, maxResults int) []product.Candidate {
	m.calls++
	if m.searchFn == nil {
		return nil
	}
	return m.searchFn(keywords, maxResults)
}

func candidates(n int) []product.Candidate {
	out := make([]product.Candidate, n)
	for i := range out {
		id := fmt.Sprintf("p%d", i+1)
		out[i] = product.Candidate{
			Product: product.Product{ID: id, Source: "feed", Title: "Product " + id},
			Score:   float64(n - i),
		}
	}
	return out
}

type mockPlacements struct {
	sets      map[string]placement.Set
	next      int
	refreshFn func(documentID, instanceID string) (placement.Placed, error)
}

func newMockPlacements() *mockPlacements {
	return &mockPlacements{sets: map[string]placement.Set{}}
}

func (m *mockPlacements) Add(_ context.Context, id string, items ...placement.Placed) ([]placement.Placed, error) {
	if m.sets[id] == nil {
		m.sets[id] = placement.Set{}
	}
	out := make([]placement.Placed, 0, len(items))
	for _, it := range items {
		m.next++
		it.InstanceID = fmt.Sprintf("inst-%d", m.next)
		m.sets[id][it.InstanceID] = it
		out = append(out, it)
	}
	return out, nil
}

func (m *mockPlacements) RemoveAuto(_ context.Context, id string) (int, error) {
	n := 0
	maps.DeleteFunc(m.sets[id], func(_ string, p placement.Placed) bool {
		if p.AutoInserted {
			n++
			return true
		}
		return false
	})
	return n, nil
}

func (m *mockPlacements) Refresh(_ context.Context, id, inst string) (placement.Placed, error) {
	if m.refreshFn != nil {
		return m.refreshFn(id, inst)
	}
	return placement.Placed{}, domain.ErrPlacementNotFound
}

func (m *mockPlacements) sorted(id string) []placement.Placed {
	out := slices.Collect(maps.Values(m.sets[id]))
	slices.SortFunc(out, func(a, b placement.Placed) int {
		switch {
		case a.Point.Less(b.Point):
			return -1
		case b.Point.Less(a.Point):
			return 1
		}
		return 0
	})
	return out
}

type mockQueue struct {
	markers map[string]task.State
	tasks   []string
}

func newMockQueue() *mockQueue { return &mockQueue{markers: map[string]task.State{}} }

func (m *mockQueue) EnqueueAutoLink(_ context.Context, id string) (bool, error) {
	if _, ok := m.markers[id]; ok {
		return false, nil
	}
	m.markers[id] = task.StateQueued
	m.tasks = append(m.tasks, id)
	return true, nil
}

func (m *mockQueue) State(_ context.Context, id string) (task.State, error) {
	if st, ok := m.markers[id]; ok {
		return st, nil
	}
	return task.StateUnlinked, nil
}

func (m *mockQueue) ClearState(_ context.Context, id string) error {
	delete(m.markers, id)
	return nil
}

type mockTrigger struct{ n int }

func (m *mockTrigger) Trigger() { m.n++ }

func post(id string, paragraphs int, categories ...int) domdoc.Document {
	body := ""
	for i := range paragraphs {
		body += fmt.Sprintf("<p>Paragraph %d about hiking boots.</p>\n", i)
	}
	return domdoc.Reconstruct(id, "Best hiking boots", body, domdoc.DefaultType, []string{"outdoor"}, categories)
}
