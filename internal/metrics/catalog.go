package metrics

import "github.com/prometheus/client_golang/prometheus"

// Catalog source Prometheus metrics.
var (
	SourceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "source_requests_total",
			Help:      "Total number of catalog source requests",
		},
		[]string{"source", "op", "status"},
	)

	SourceRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Catalog source request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source", "op"},
	)

	SourceBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "source_breaker_state",
			Help:      "Circuit breaker state per source (0 closed, 1 half-open, 2 open)",
		},
		[]string{"source"},
	)

	AggregationSkipsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "aggregation_skips_total",
			Help:      "Source calls skipped during aggregation",
		},
		[]string{"source", "reason"}, // "error" / "empty"
	)

	ProductCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "product_cache_total",
			Help:      "Product cache hits and misses",
		},
		[]string{"op", "result"}, // op: "search" / "fetch", result: "hit" / "miss"
	)
)

var catalogMetricsRegistered bool

// RegisterCatalogMetrics registers catalog source metrics. Must be called once from main.
func RegisterCatalogMetrics() {
	if catalogMetricsRegistered {
		return
	}
	prometheus.MustRegister(SourceRequestsTotal)
	prometheus.MustRegister(SourceRequestDuration)
	prometheus.MustRegister(SourceBreakerState)
	prometheus.MustRegister(AggregationSkipsTotal)
	prometheus.MustRegister(ProductCacheTotal)
	catalogMetricsRegistered = true
}
