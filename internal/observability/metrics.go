package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream calls by endpoint (weather, geocode, air_pollution, style) and status class.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream latency. Watch for: p95 > 2s on weather (slow dashboards).
	UpstreamDuration *prometheus.HistogramVec

	// Upstream failures by endpoint and category (see client.CategorizeError).
	UpstreamErrorsTotal *prometheus.CounterVec

	// Responses rejected by schema validation. Any increase means the upstream contract changed.
	SchemaFailuresTotal *prometheus.CounterVec

	// Cache hits and misses by cache (weather, geocode, air_pollution).
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Map style lifecycle transitions.
	MapLayerTransitionsTotal *prometheus.CounterVec

	// Styled layers currently attached across live map sessions.
	MapLayersAttached prometheus.Gauge

	// Style fetch breaker state: 0 closed, 1 open, 2 half-open.
	StyleBreakerState prometheus.Gauge

	// Rate limit denials.
	RateLimitDeniedTotal prometheus.Counter

	// Cache warming runs and failures.
	CacheWarmingTotal       prometheus.Counter
	CacheWarmingErrorsTotal prometheus.Counter

	registerOnce sync.Once
)

func init() {
	registerOnce.Do(register)
}

func register() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of upstream API calls",
		},
		[]string{"endpoint", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Upstream API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "status"},
	)
	UpstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamErrorsTotal",
			Help: "Upstream failures by endpoint and error category",
		},
		[]string{"endpoint", "category"},
	)
	SchemaFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schemaFailuresTotal",
			Help: "Upstream responses rejected by schema validation",
		},
		[]string{"schema"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of cache hits",
		},
		[]string{"cacheType"},
	)
	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheMissesTotal",
			Help: "Total number of cache misses",
		},
		[]string{"cacheType"},
	)
	MapLayerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mapLayerTransitionsTotal",
			Help: "Map style layer lifecycle transitions",
		},
		[]string{"from", "to"},
	)
	MapLayersAttached = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mapLayersAttached",
			Help: "Styled map layers currently attached",
		},
	)
	StyleBreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "styleBreakerState",
			Help: "Style fetch circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Cache warming runs",
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Cache warming runs with at least one failed location",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamDuration, UpstreamErrorsTotal,
		SchemaFailuresTotal,
		CacheHitsTotal, CacheMissesTotal,
		MapLayerTransitionsTotal, MapLayersAttached,
		StyleBreakerState,
		RateLimitDeniedTotal,
		CacheWarmingTotal, CacheWarmingErrorsTotal,
	)
}

// RecordMapTransition counts a style lifecycle transition and keeps the
// attached-layer gauge in step with entries into and out of "attached".
func RecordMapTransition(from, to string) {
	MapLayerTransitionsTotal.WithLabelValues(from, to).Inc()
	if to == "attached" {
		MapLayersAttached.Inc()
	}
	if from == "attached" {
		MapLayersAttached.Dec()
	}
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
