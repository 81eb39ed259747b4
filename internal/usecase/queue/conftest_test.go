package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/affilink/internal/domain/placement"
	"github.com/kailas-cloud/affilink/internal/domain/task"
	"github.com/kailas-cloud/affilink/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterQueueMetrics()
	os.Exit(m.Run())
}

// mockRepo is an in-memory Repository.
type mockRepo struct {
	mu      sync.Mutex
	tasks   []task.Entry
	lease   string
	markers map[string]task.State
	popErr  error
	pushErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{markers: map[string]task.State{}}
}

func (m *mockRepo) Push(_ context.Context, t task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pushErr != nil {
		return m.pushErr
	}
	raw, _ := json.Marshal(t)
	m.tasks = append(m.tasks, task.Entry{Task: t, Raw: raw})
	return nil
}

func (m *mockRepo) Peek(_ context.Context, n int) ([]task.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n = min(n, len(m.tasks))
	out := make([]task.Entry, n)
	copy(out, m.tasks[:n])
	return out, nil
}

func (m *mockRepo) PopHead(_ context.Context, e task.Entry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.popErr != nil {
		return false, m.popErr
	}
	if len(m.tasks) == 0 || !bytes.Equal(m.tasks[0].Raw, e.Raw) {
		return false, nil
	}
	m.tasks = m.tasks[1:]
	return true, nil
}

func (m *mockRepo) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks), nil
}

func (m *mockRepo) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = nil
	m.markers = map[string]task.State{}
	return nil
}

func (m *mockRepo) AcquireLease(_ context.Context, token string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lease != "" {
		return false, nil
	}
	m.lease = token
	return true, nil
}

func (m *mockRepo) ReleaseLease(_ context.Context, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lease != token {
		return false, nil
	}
	m.lease = ""
	return true, nil
}

func (m *mockRepo) MarkQueued(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.markers[id]; ok {
		return false, nil
	}
	m.markers[id] = task.StateQueued
	return true, nil
}

func (m *mockRepo) SetMarker(_ context.Context, id string, st task.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers[id] = st
	return nil
}

func (m *mockRepo) ClearMarker(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.markers, id)
	return nil
}

func (m *mockRepo) Marker(_ context.Context, id string) (task.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.markers[id]; ok {
		return st, nil
	}
	return task.StateUnlinked, nil
}

func (m *mockRepo) leaseHeld() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lease != ""
}

// mockScheduler records follow-up requests.
type mockScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (m *mockScheduler) TriggerAfter(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays = append(m.delays, d)
}

// mockPlacements serves fixed placement sets.
type mockPlacements struct {
	docs map[string]placement.Set
	ids  []string
	err  error
}

func (m *mockPlacements) ListPlacementDocuments(_ context.Context, _ int) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.ids, nil
}

func (m *mockPlacements) GetPlacements(_ context.Context, id string) (placement.Set, error) {
	set, ok := m.docs[id]
	if !ok {
		return nil, errors.New("boom")
	}
	return set, nil
}
