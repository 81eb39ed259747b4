package affilink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/affilink/internal/db"
	"github.com/kailas-cloud/affilink/internal/db/memory"
	dbRedis "github.com/kailas-cloud/affilink/internal/db/redis"
	"github.com/kailas-cloud/affilink/internal/domain"
	domdoc "github.com/kailas-cloud/affilink/internal/domain/document"
	"github.com/kailas-cloud/affilink/internal/domain/task"
	"github.com/kailas-cloud/affilink/internal/metrics"
	"github.com/kailas-cloud/affilink/internal/repository/content"
	"github.com/kailas-cloud/affilink/internal/repository/productcache"
	queuerepo "github.com/kailas-cloud/affilink/internal/repository/queue"
	"github.com/kailas-cloud/affilink/internal/transport/feed"
	autolinkuc "github.com/kailas-cloud/affilink/internal/usecase/autolink"
	cataloguc "github.com/kailas-cloud/affilink/internal/usecase/catalog"
	placementuc "github.com/kailas-cloud/affilink/internal/usecase/placement"
	queueuc "github.com/kailas-cloud/affilink/internal/usecase/queue"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the affilink entry point.
type Client struct {
	store      db.Store
	docs       *content.Repo
	catalog    *cataloguc.Aggregator
	placements *placementuc.Manager
	queue      *queueuc.Service
	autolink   *autolinkuc.Service
	worker     *queueuc.Worker
	stopWorker context.CancelFunc
	logger     *zap.Logger
}

// New creates a Client and connects to the database.
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("affilink: storage required (use WithMemory, WithValkey or WithRedis)")
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("affilink: database not ready: %w", err)
	}

	c := wireClient(store, cfg)
	if cfg.background {
		if err := c.startWorker(); err != nil {
			store.Close()
			return nil, err
		}
	}
	return c, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "memory":
		return memory.NewStore(), nil
	case "valkey", "redis":
		if len(cfg.addrs) == 0 {
			return nil, fmt.Errorf("affilink: %s address required", cfg.driver)
		}
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("affilink: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("affilink: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, cfg *clientConfig) *Client {
	logger := cfg.logger
	prefix := cfg.keyPrefix
	if prefix == "" {
		prefix = domain.KeyPrefix
	}

	sources := make([]cataloguc.Source, 0, len(cfg.sources)+len(cfg.feeds))
	sources = append(sources, cfg.sources...)
	for _, fc := range cfg.feeds {
		fc.Logger = logger
		sources = append(sources, feed.New(fc))
	}
	for i, s := range sources {
		sources[i] = productcache.New(s, store, metrics.ProductCacheTotal, logger).
			WithPrefix(prefix).
			WithTTL(cfg.cacheTTL, cfg.searchTTL)
	}

	docs := content.New(store, logger).WithPrefix(prefix)
	catalog := cataloguc.New(sources, logger)
	placements := placementuc.NewManager(docs, catalog, logger)
	queue := queueuc.New(queuerepo.New(store, logger).WithPrefix(prefix), cfg.queue, logger)
	autolink := autolinkuc.New(docs, catalog, placements, queue, cfg.autolink, logger)
	queue.Handle(task.ActionAutoLink, autolink.HandleAutoLink)
	queue.Handle(task.ActionRefreshProduct, autolink.HandleRefresh)

	return &Client{
		store:      store,
		docs:       docs,
		catalog:    catalog,
		placements: placements,
		queue:      queue,
		autolink:   autolink,
		logger:     logger,
	}
}

func (c *Client) startWorker() error {
	c.worker = queueuc.NewWorker(c.queue, c.docs, queueuc.DefaultWorkerConfig(), c.logger)
	ctx, cancel := context.WithCancel(context.Background())
	if err := c.worker.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("affilink: start worker: %w", err)
	}
	c.stopWorker = cancel
	c.autolink.WithTrigger(c.worker)
	return nil
}

// Close stops the background worker, if any, and releases all resources.
func (c *Client) Close() {
	if c.worker != nil {
		c.worker.Stop()
		c.stopWorker()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// SaveDocument creates or replaces a document. Returns true if it was created.
func (c *Client) SaveDocument(ctx context.Context, d Document) (bool, error) {
	doc, err := domdoc.New(d.ID, d.Title, d.Body, d.Type, d.Tags, d.Categories)
	if err != nil {
		return false, err
	}
	return c.docs.SaveDocument(ctx, doc)
}

// Publish queues a saved document for auto-linking when it is eligible.
func (c *Client) Publish(ctx context.Context, documentID string) (PublishResult, error) {
	return c.autolink.OnDocumentPublished(ctx, documentID)
}

// State returns the auto-link state of a document.
func (c *Client) State(ctx context.Context, documentID string) (State, error) {
	return c.autolink.State(ctx, documentID)
}

// Reset removes the auto-inserted placements of a document so it can be linked again.
// Returns the number of placements removed.
func (c *Client) Reset(ctx context.Context, documentID string) (int, error) {
	return c.autolink.Reset(ctx, documentID)
}

// Drain runs one batch of queued tasks. A drain already running elsewhere yields
// DrainResult{Busy: true}.
func (c *Client) Drain(ctx context.Context) (DrainResult, error) {
	return c.queue.Drain(ctx, 0)
}

// QueueSize returns the number of queued tasks.
func (c *Client) QueueSize(ctx context.Context) (int, error) {
	return c.queue.Size(ctx)
}

// Placements returns the products placed in a document, in render order.
func (c *Client) Placements(ctx context.Context, documentID string) ([]Placement, error) {
	return c.placements.List(ctx, documentID)
}

// Render returns the document body with product cards injected at their placement points.
func (c *Client) Render(ctx context.Context, documentID string) (string, error) {
	return c.placements.Render(ctx, documentID, nil)
}

// Search runs a manual search against one source.
func (c *Client) Search(ctx context.Context, sourceID, query string, opts SearchOptions) ([]Product, error) {
	return c.catalog.Search(ctx, sourceID, query, opts)
}
