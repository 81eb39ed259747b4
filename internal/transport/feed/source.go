package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/affilink/internal/domain"
	"github.com/kailas-cloud/affilink/internal/domain/product"
	"github.com/kailas-cloud/affilink/internal/metrics"
)

// Source is a throttled, circuit-broken client of one product feed.
type Source struct {
	cfg     Config
	base    string
	client  *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]product.Product]
	logger  *zap.Logger
}

// New creates a feed source.
func New(cfg Config) *Source {
	cfg = cfg.withDefaults()
	s := &Source{
		cfg:     cfg,
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		logger:  cfg.Logger.With(zap.String("source", cfg.ID)),
	}

	metrics.SourceBreakerState.WithLabelValues(cfg.ID).Set(float64(gobreaker.StateClosed))
	s.cb = gobreaker.NewCircuitBreaker[[]product.Product](gobreaker.Settings{
		Name:        cfg.ID,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrProductNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("Circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.SourceBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return s
}

// WithHTTPClient replaces the HTTP client.
func (s *Source) WithHTTPClient(c *http.Client) *Source {
	if c != nil {
		s.client = c
	}
	return s
}

// ID returns the source identifier.
func (s *Source) ID() string { return s.cfg.ID }

// Search queries the feed for products matching query.
func (s *Source) Search(ctx context.Context, query string, opts product.SearchOptions) ([]product.Product, error) {
	params := url.Values{}
	params.Set("q", query)
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	country := opts.Country
	if country == "" {
		country = s.cfg.Country
	}
	if country != "" {
		params.Set("country", country)
	}

	products, err := s.call(ctx, "search", s.base+"/products?"+params.Encode())
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(products) > opts.Limit {
		products = products[:opts.Limit]
	}
	return products, nil
}

// Fetch returns one product by ID.
func (s *Source) Fetch(ctx context.Context, productID string) (product.Product, error) {
	if productID == "" {
		return product.Product{}, fmt.Errorf("%s: empty product id: %w", s.cfg.ID, domain.ErrProductNotFound)
	}
	products, err := s.call(ctx, "fetch", s.base+"/products/"+url.PathEscape(productID))
	if err != nil {
		return product.Product{}, err
	}
	if len(products) == 0 {
		return product.Product{}, fmt.Errorf("%s/%s: %w", s.cfg.ID, productID, domain.ErrProductNotFound)
	}
	return products[0], nil
}

func (s *Source) call(ctx context.Context, op, endpoint string) ([]product.Product, error) {
	if s.cfg.Token == "" {
		metrics.SourceRequestsTotal.WithLabelValues(s.cfg.ID, op, "unconfigured").Inc()
		return nil, fmt.Errorf("%s: missing api token: %w", s.cfg.ID, domain.ErrSourceUnavailable)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		metrics.SourceRequestsTotal.WithLabelValues(s.cfg.ID, op, "throttled").Inc()
		return nil, fmt.Errorf("%s: rate limit wait: %v: %w", s.cfg.ID, err, domain.ErrSourceUnavailable)
	}

	start := time.Now()
	products, err := s.cb.Execute(func() ([]product.Product, error) {
		return s.do(ctx, endpoint)
	})
	metrics.SourceRequestDuration.WithLabelValues(s.cfg.ID, op).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.SourceRequestsTotal.WithLabelValues(s.cfg.ID, op, "success").Inc()
		return products, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.SourceRequestsTotal.WithLabelValues(s.cfg.ID, op, "rejected").Inc()
		return nil, fmt.Errorf("%s: %v: %w", s.cfg.ID, err, domain.ErrSourceUnavailable)
	case errors.Is(err, domain.ErrProductNotFound):
		metrics.SourceRequestsTotal.WithLabelValues(s.cfg.ID, op, "not_found").Inc()
		return nil, err
	default:
		metrics.SourceRequestsTotal.WithLabelValues(s.cfg.ID, op, "error").Inc()
		s.logger.Debug("Feed request failed", zap.String("op", op), zap.Error(err))
		return nil, err
	}
}

func (s *Source) do(ctx context.Context, endpoint string) ([]product.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %v: %w", s.cfg.ID, err, domain.ErrSourceUnavailable)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: request: %v: %w", s.cfg.ID, err, domain.ErrSourceUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %v: %w", s.cfg.ID, err, domain.ErrSourceUnavailable)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", s.cfg.ID, domain.ErrProductNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s: status %d: %s: %w",
			s.cfg.ID, resp.StatusCode, snippet(body), domain.ErrSourceUnavailable)
	}

	var parsed feedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%s: decode response: %v: %w", s.cfg.ID, err, domain.ErrSourceUnavailable)
	}

	out := make([]product.Product, 0, len(parsed.Products))
	for _, fp := range parsed.Products {
		p := fp.toDomain(s.cfg.ID)
		if p.ID == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// snippet shortens an error body for messages.
func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
