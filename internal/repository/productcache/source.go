// Package productcache is a read-through cache decorator for catalog sources.
package productcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/affilink/internal/db"
	"github.com/kailas-cloud/affilink/internal/domain"
	"github.com/kailas-cloud/affilink/internal/domain/product"
)

// Default TTLs.
const (
	DefaultProductTTL = 24 * time.Hour
	DefaultSearchTTL  = 12 * time.Hour
)

// store is the consumer interface for the product cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// source mirrors catalog.Source.
type source interface {
	ID() string
	Search(ctx context.Context, query string, opts product.SearchOptions) ([]product.Product, error)
	Fetch(ctx context.Context, productID string) (product.Product, error)
}

// Source caches fetched products and search results of an inner source.
// Errors and empty search results are never cached.
type Source struct {
	inner      source
	store      store
	prefix     string
	productTTL time.Duration
	searchTTL  time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with labels "op" and "result" ("hit"/"miss"), passed explicitly.
func New(inner source, s store, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Source {
	return &Source{
		inner:      inner,
		store:      s,
		prefix:     domain.KeyPrefix,
		productTTL: DefaultProductTTL,
		searchTTL:  DefaultSearchTTL,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// WithTTL overrides the product and search TTLs; non-positive values keep defaults.
func (c *Source) WithTTL(productTTL, searchTTL time.Duration) *Source {
	if productTTL > 0 {
		c.productTTL = productTTL
	}
	if searchTTL > 0 {
		c.searchTTL = searchTTL
	}
	return c
}

// WithPrefix overrides the key namespace.
func (c *Source) WithPrefix(prefix string) *Source {
	if prefix != "" {
		c.prefix = prefix
	}
	return c
}

// ID returns the inner source ID.
func (c *Source) ID() string { return c.inner.ID() }

// Search returns cached results or queries the inner source, caching every returned product.
func (c *Source) Search(
	ctx context.Context, query string, opts product.SearchOptions,
) ([]product.Product, error) {
	key := c.searchKey(query, opts)

	var cached []product.Product
	if c.get(ctx, key, &cached) {
		c.incCache("search", "hit")
		return cached, nil
	}
	c.incCache("search", "miss")

	results, err := c.inner.Search(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", c.ID(), err)
	}
	if len(results) == 0 {
		return results, nil
	}

	c.put(ctx, key, results, c.searchTTL)
	for _, p := range results {
		c.put(ctx, c.productKey(p.ID), p, c.productTTL)
	}
	return results, nil
}

// Fetch returns a cached product or loads it from the inner source.
func (c *Source) Fetch(ctx context.Context, productID string) (product.Product, error) {
	key := c.productKey(productID)

	var cached product.Product
	if c.get(ctx, key, &cached) {
		c.incCache("fetch", "hit")
		return cached, nil
	}
	c.incCache("fetch", "miss")

	p, err := c.inner.Fetch(ctx, productID)
	if err != nil {
		return product.Product{}, fmt.Errorf("fetch %s: %w", c.ID(), err)
	}

	c.put(ctx, key, p, c.productTTL)
	return p, nil
}

// Refresh bypasses the cache, fetches from the inner source, and stores the result.
func (c *Source) Refresh(ctx context.Context, productID string) (product.Product, error) {
	p, err := c.inner.Fetch(ctx, productID)
	if err != nil {
		return product.Product{}, fmt.Errorf("fetch %s: %w", c.ID(), err)
	}
	c.put(ctx, c.productKey(productID), p, c.productTTL)
	return p, nil
}

func (c *Source) incCache(op, result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(op, result).Inc()
	}
}

func (c *Source) productKey(id string) string {
	return c.prefix + "product:" + c.ID() + ":" + id
}

func (c *Source) searchKey(query string, opts product.SearchOptions) string {
	h := sha256.Sum256([]byte(query + "\x00" + strconv.Itoa(opts.Limit) + "\x00" + opts.Country))
	return c.prefix + "search:" + c.ID() + ":" + hex.EncodeToString(h[:])
}

func (c *Source) get(ctx context.Context, key string, dst any) bool {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to read product cache", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if len(data) == 0 {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Warn("Failed to parse cached product data", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *Source) put(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("Failed to encode product cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, ttl); err != nil {
		c.logger.Warn("Failed to cache product data", zap.String("key", key), zap.Error(err))
	}
}
