// Package content persists documents, their placements and the processed flag.
package content

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/affilink/internal/db"
	"github.com/kailas-cloud/affilink/internal/domain"
	domdoc "github.com/kailas-cloud/affilink/internal/domain/document"
	"github.com/kailas-cloud/affilink/internal/domain/placement"
)

// store is the consumer interface for content (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo is the content store: documents, placements per document, linked flags.
type Repo struct {
	store  store
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

// New creates a content repository.
func New(s store, logger *zap.Logger) *Repo {
	return &Repo{store: s, prefix: domain.KeyPrefix, logger: logger, now: time.Now}
}

// WithPrefix overrides the key namespace.
func (r *Repo) WithPrefix(prefix string) *Repo {
	if prefix != "" {
		r.prefix = prefix
	}
	return r
}

// SaveDocument creates or replaces a document. Returns true if created.
func (r *Repo) SaveDocument(ctx context.Context, doc domdoc.Document) (bool, error) {
	key := r.docKey(doc.ID())
	data, err := encodeDocument(doc)
	if err != nil {
		return false, err
	}

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check exists %s: %w", key, err)
	}
	if err := r.store.Set(ctx, key, data); err != nil {
		return false, fmt.Errorf("set %s: %w", key, err)
	}
	return !exists, nil
}

// GetDocument returns a document by ID.
func (r *Repo) GetDocument(ctx context.Context, id string) (domdoc.Document, error) {
	key := r.docKey(id)
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domdoc.Document{}, domain.ErrDocumentNotFound
		}
		return domdoc.Document{}, fmt.Errorf("get %s: %w", key, err)
	}
	return decodeDocument(data)
}

// GetPlacements returns every placement of a document keyed by instance ID.
func (r *Repo) GetPlacements(ctx context.Context, id string) (placement.Set, error) {
	key := r.placementsKey(id)
	fields, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", key, err)
	}

	set, bad := parsePlacementFields(fields)
	if len(bad) > 0 {
		r.logger.Warn("Skipping undecodable placements",
			zap.String("document_id", id),
			zap.Strings("instance_ids", bad),
		)
	}
	return set, nil
}

// SetPlacements replaces the placement mapping of a document.
func (r *Repo) SetPlacements(ctx context.Context, id string, set placement.Set) error {
	key := r.placementsKey(id)

	current, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return fmt.Errorf("hgetall %s: %w", key, err)
	}
	var stale []string
	for field := range current {
		if _, keep := set[field]; !keep {
			stale = append(stale, field)
		}
	}
	slices.Sort(stale)

	fields, err := buildPlacementFields(set)
	if err != nil {
		return err
	}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	if err := r.store.HDel(ctx, key, stale...); err != nil {
		return fmt.Errorf("hdel %s: %w", key, err)
	}
	return nil
}

// MarkProcessed sets or clears the linked flag of a document.
func (r *Repo) MarkProcessed(ctx context.Context, id string, processed bool) error {
	key := r.linkedKey(id)
	if !processed {
		if err := r.store.Del(ctx, key); err != nil {
			return fmt.Errorf("del %s: %w", key, err)
		}
		return nil
	}

	stamp := r.now().UTC().Format(time.RFC3339)
	if err := r.store.Set(ctx, key, []byte(stamp)); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// IsProcessed reports whether the document carries the linked flag.
func (r *Repo) IsProcessed(ctx context.Context, id string) (bool, error) {
	key := r.linkedKey(id)
	ok, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", key, err)
	}
	return ok, nil
}

// LinkedAt returns when the document was auto-linked (zero when never).
func (r *Repo) LinkedAt(ctx context.Context, id string) (time.Time, error) {
	key := r.linkedKey(id)
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("get %s: %w", key, err)
	}
	t, err := time.Parse(time.RFC3339, string(data))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", key, err)
	}
	return t, nil
}

// ListPlacementDocuments returns up to limit IDs of documents holding placements, sorted.
func (r *Repo) ListPlacementDocuments(ctx context.Context, limit int) ([]string, error) {
	prefix := r.placementsKey("")
	keys, err := r.store.Scan(ctx, prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan %s*: %w", prefix, err)
	}

	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, prefix))
	}
	slices.Sort(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *Repo) docKey(id string) string        { return r.prefix + "doc:" + id }
func (r *Repo) placementsKey(id string) string { return r.prefix + "placements:" + id }
func (r *Repo) linkedKey(id string) string     { return r.prefix + "linked:" + id }
