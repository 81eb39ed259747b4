// Package catalog fans keyword queries out across enabled catalog sources.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/affilink/internal/domain"
	"github.com/kailas-cloud/affilink/internal/domain/keyword"
	"github.com/kailas-cloud/affilink/internal/domain/product"
	"github.com/kailas-cloud/affilink/internal/metrics"
	"github.com/kailas-cloud/affilink/internal/usecase/relevance"
)

const (
	// DefaultQueryKeywords is how many leading keywords are sent as queries.
	DefaultQueryKeywords = 3
	// DefaultPerCallLimit is the result limit of one source search call.
	DefaultPerCallLimit = 3
	// DefaultCallTimeout bounds one source call.
	DefaultCallTimeout = 10 * time.Second

	testQuery = "test"
)

// Aggregator queries every enabled source and ranks the merged results.
type Aggregator struct {
	sources       []Source
	byID          map[string]Source
	logger        *zap.Logger
	queryKeywords int
	perCallLimit  int
	callTimeout   time.Duration
	country       string
}

// New creates an aggregator over sources in registration order.
// Sources sharing an ID keep the first registration.
func New(sources []Source, logger *zap.Logger) *Aggregator {
	a := &Aggregator{
		byID:          make(map[string]Source, len(sources)),
		logger:        logger,
		queryKeywords: DefaultQueryKeywords,
		perCallLimit:  DefaultPerCallLimit,
		callTimeout:   DefaultCallTimeout,
	}
	for _, s := range sources {
		if _, dup := a.byID[s.ID()]; dup {
			logger.Warn("Duplicate catalog source ignored", zap.String("source", s.ID()))
			continue
		}
		a.sources = append(a.sources, s)
		a.byID[s.ID()] = s
	}
	return a
}

// WithCallTimeout overrides the per-call timeout.
func (a *Aggregator) WithCallTimeout(d time.Duration) *Aggregator {
	if d > 0 {
		a.callTimeout = d
	}
	return a
}

// WithCountry sets the country hint passed to every search.
func (a *Aggregator) WithCountry(country string) *Aggregator {
	a.country = country
	return a
}

// Sources returns the enabled source IDs in registration order.
func (a *Aggregator) Sources() []string {
	ids := make([]string, len(a.sources))
	for i, s := range a.sources {
		ids[i] = s.ID()
	}
	return ids
}

type call struct {
	keyword string
	source  Source
	results []product.Product
}

// SearchRelevant queries the top keywords against every source, scores each hit
// against the full keyword list, and returns at most maxResults candidates by
// descending score. Ties keep retrieval order; duplicates are kept. Failing or
// empty sources are skipped.
func (a *Aggregator) SearchRelevant(
	ctx context.Context, keywords keyword.Set, maxResults int,
) []product.Candidate {
	if maxResults <= 0 || len(a.sources) == 0 {
		return nil
	}

	var calls []*call
	for _, kw := range keywords.Top(a.queryKeywords) {
		if strings.TrimSpace(kw.Term) == "" {
			continue
		}
		for _, src := range a.sources {
			calls = append(calls, &call{keyword: kw.Term, source: src})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(a.sources))
	for _, c := range calls {
		g.Go(func() error {
			c.results = a.searchOne(gctx, c.source, c.keyword)
			return nil
		})
	}
	_ = g.Wait() // calls never fail the group

	var candidates []product.Candidate
	for _, c := range calls {
		for _, p := range c.results {
			candidates = append(candidates, product.Candidate{
				Product: p,
				Score:   relevance.Score(p, keywords),
				Keyword: c.keyword,
			})
		}
	}

	slices.SortStableFunc(candidates, func(x, y product.Candidate) int {
		switch {
		case x.Score > y.Score:
			return -1
		case x.Score < y.Score:
			return 1
		default:
			return 0
		}
	})

	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}
	return candidates
}

func (a *Aggregator) searchOne(ctx context.Context, src Source, query string) []product.Product {
	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	results, err := src.Search(ctx, query, product.SearchOptions{
		Limit:   a.perCallLimit,
		Country: a.country,
	})
	if err != nil {
		a.logger.Warn("Catalog source skipped",
			zap.String("source", src.ID()),
			zap.String("keyword", query),
			zap.Error(err),
		)
		metrics.AggregationSkipsTotal.WithLabelValues(src.ID(), "error").Inc()
		return nil
	}
	if len(results) == 0 {
		metrics.AggregationSkipsTotal.WithLabelValues(src.ID(), "empty").Inc()
		return nil
	}
	if len(results) > a.perCallLimit {
		results = results[:a.perCallLimit]
	}
	return results
}

// Search runs a manual search against one source.
func (a *Aggregator) Search(
	ctx context.Context, sourceID, query string, opts product.SearchOptions,
) ([]product.Product, error) {
	src, err := a.source(sourceID)
	if err != nil {
		return nil, err
	}
	if opts.Country == "" {
		opts.Country = a.country
	}

	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	results, err := src.Search(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", sourceID, err)
	}
	return results, nil
}

// Fetch loads one product from one source.
func (a *Aggregator) Fetch(ctx context.Context, sourceID, productID string) (product.Product, error) {
	src, err := a.source(sourceID)
	if err != nil {
		return product.Product{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	p, err := src.Fetch(ctx, productID)
	if err != nil {
		return product.Product{}, fmt.Errorf("fetch %s/%s: %w", sourceID, productID, err)
	}
	return p, nil
}

// Refresh loads the current version of a product, bypassing any cache the source
// keeps. Sources without a cache are fetched normally.
func (a *Aggregator) Refresh(ctx context.Context, sourceID, productID string) (product.Product, error) {
	src, err := a.source(sourceID)
	if err != nil {
		return product.Product{}, err
	}
	r, ok := src.(Refresher)
	if !ok {
		return a.Fetch(ctx, sourceID, productID)
	}

	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	p, err := r.Refresh(ctx, productID)
	if err != nil {
		return product.Product{}, fmt.Errorf("refresh %s/%s: %w", sourceID, productID, err)
	}
	return p, nil
}

// Test checks a source with a one-result search.
func (a *Aggregator) Test(ctx context.Context, sourceID string) error {
	_, err := a.Search(ctx, sourceID, testQuery, product.SearchOptions{Limit: 1})
	return err
}

// HealthCheck checks every source and fails if all of them are unreachable.
func (a *Aggregator) HealthCheck(ctx context.Context) error {
	if len(a.sources) == 0 {
		return nil
	}
	var errs []error
	for _, s := range a.sources {
		if err := a.Test(ctx, s.ID()); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(a.sources) {
		return errors.Join(errs...)
	}
	return nil
}

func (a *Aggregator) source(id string) (Source, error) {
	src, ok := a.byID[id]
	if !ok {
		return nil, fmt.Errorf("source %q: %w", id, domain.ErrSourceNotFound)
	}
	return src, nil
}
