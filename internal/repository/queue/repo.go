// Package queue persists the task FIFO, the drain lease and per-document markers.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/affilink/internal/db"
	"github.com/kailas-cloud/affilink/internal/domain"
	"github.com/kailas-cloud/affilink/internal/domain/task"
)

// DefaultMarkerTTL bounds how long a queued/processing marker survives a lost task.
const DefaultMarkerTTL = 24 * time.Hour

// store is the consumer interface for the queue (ISP).
type store interface {
	RPush(ctx context.Context, key string, values ...[]byte) error
	LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)
	LPopIfEqual(ctx context.Context, key string, value []byte) (bool, error)
	LLen(ctx context.Context, key string) (int64, error)
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	DelIfEqual(ctx context.Context, key string, value []byte) (bool, error)
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo stores tasks as a list (oldest at the head), the lease as a SET NX PX key,
// and one marker key per document with an outstanding auto-link task.
type Repo struct {
	store     store
	prefix    string
	markerTTL time.Duration
	logger    *zap.Logger
}

// New creates a queue repository.
func New(s store, logger *zap.Logger) *Repo {
	return &Repo{store: s, prefix: domain.KeyPrefix, markerTTL: DefaultMarkerTTL, logger: logger}
}

// WithPrefix overrides the key namespace.
func (r *Repo) WithPrefix(prefix string) *Repo {
	if prefix != "" {
		r.prefix = prefix
	}
	return r
}

// WithMarkerTTL overrides the marker expiry.
func (r *Repo) WithMarkerTTL(ttl time.Duration) *Repo {
	if ttl > 0 {
		r.markerTTL = ttl
	}
	return r
}

// Push appends a task to the tail.
func (r *Repo) Push(ctx context.Context, t task.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := r.store.RPush(ctx, r.listKey(), data); err != nil {
		return fmt.Errorf("rpush %s: %w", r.listKey(), err)
	}
	return nil
}

// Peek returns up to n oldest entries without removing them. Entries that cannot be
// decoded come back with a zero task and their raw encoding.
func (r *Repo) Peek(ctx context.Context, n int) ([]task.Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	items, err := r.store.LRange(ctx, r.listKey(), 0, int64(n-1))
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", r.listKey(), err)
	}

	entries := make([]task.Entry, len(items))
	for i, raw := range items {
		entries[i].Raw = raw
		if err := json.Unmarshal(raw, &entries[i].Task); err != nil {
			r.logger.Warn("Undecodable queue entry", zap.Int("position", i), zap.Error(err))
			entries[i].Task = task.Task{}
		}
	}
	return entries, nil
}

// PopHead removes e from the head of the queue. Reports false, leaving the queue
// untouched, when the head is no longer e (the queue was cleared or reordered).
func (r *Repo) PopHead(ctx context.Context, e task.Entry) (bool, error) {
	ok, err := r.store.LPopIfEqual(ctx, r.listKey(), e.Raw)
	if err != nil {
		return false, fmt.Errorf("pop %s: %w", r.listKey(), err)
	}
	return ok, nil
}

// Len returns the number of queued tasks.
func (r *Repo) Len(ctx context.Context) (int, error) {
	n, err := r.store.LLen(ctx, r.listKey())
	if err != nil {
		return 0, fmt.Errorf("llen %s: %w", r.listKey(), err)
	}
	return int(n), nil
}

// Clear drops every task and every document marker. The drain lease is left to its
// holder; callers clear under the lease.
func (r *Repo) Clear(ctx context.Context) error {
	if err := r.store.Del(ctx, r.listKey()); err != nil {
		return fmt.Errorf("del %s: %w", r.listKey(), err)
	}
	markers, err := r.store.Scan(ctx, r.markerKey("*"))
	if err != nil {
		return fmt.Errorf("scan markers: %w", err)
	}
	for _, k := range markers {
		if err := r.store.Del(ctx, k); err != nil {
			return fmt.Errorf("del %s: %w", k, err)
		}
	}
	return nil
}

// AcquireLease takes the drain lease for ttl. Reports false if another holder has it.
func (r *Repo) AcquireLease(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	ok, err := r.store.SetNX(ctx, r.leaseKey(), []byte(token), ttl)
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	return ok, nil
}

// ReleaseLease drops the lease only while token still holds it.
func (r *Repo) ReleaseLease(ctx context.Context, token string) (bool, error) {
	ok, err := r.store.DelIfEqual(ctx, r.leaseKey(), []byte(token))
	if err != nil {
		return false, fmt.Errorf("release lease: %w", err)
	}
	return ok, nil
}

// MarkQueued sets the document marker to queued unless one exists. Reports whether it was set.
func (r *Repo) MarkQueued(ctx context.Context, documentID string) (bool, error) {
	ok, err := r.store.SetNX(ctx, r.markerKey(documentID), []byte(task.StateQueued), r.markerTTL)
	if err != nil {
		return false, fmt.Errorf("mark queued %s: %w", documentID, err)
	}
	return ok, nil
}

// SetMarker overwrites the document marker.
func (r *Repo) SetMarker(ctx context.Context, documentID string, state task.State) error {
	if err := r.store.SetWithTTL(ctx, r.markerKey(documentID), []byte(state), r.markerTTL); err != nil {
		return fmt.Errorf("set marker %s: %w", documentID, err)
	}
	return nil
}

// ClearMarker removes the document marker.
func (r *Repo) ClearMarker(ctx context.Context, documentID string) error {
	if err := r.store.Del(ctx, r.markerKey(documentID)); err != nil {
		return fmt.Errorf("clear marker %s: %w", documentID, err)
	}
	return nil
}

// Marker returns the pending state of a document, or StateUnlinked without a marker.
func (r *Repo) Marker(ctx context.Context, documentID string) (task.State, error) {
	data, err := r.store.Get(ctx, r.markerKey(documentID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return task.StateUnlinked, nil
		}
		return "", fmt.Errorf("get marker %s: %w", documentID, err)
	}
	return task.State(data), nil
}

func (r *Repo) listKey() string            { return r.prefix + "queue" }
func (r *Repo) leaseKey() string           { return r.prefix + "queue:lease" }
func (r *Repo) markerKey(id string) string { return r.prefix + "marker:" + id }
