package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache metrics, labelled by cache namespace
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"namespace"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses (absent or expired)",
		},
		[]string{"namespace"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of entries removed by LRU eviction or expiry sweeps",
		},
		[]string{"namespace"},
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidations_total",
			Help: "Total number of entries removed by tag invalidation",
		},
		[]string{"namespace"},
	)

	CacheFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_fetch_errors_total",
			Help: "Total number of failed fetches through the cache",
		},
		[]string{"namespace"},
	)

	CacheFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_fetch_duration_seconds",
			Help:    "Duration of fetches performed on cache misses",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"namespace"},
	)

	CachePersistErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_persist_errors_total",
			Help: "Total number of failed snapshot loads or writes",
		},
		[]string{"namespace", "op"}, // op: load, save
	)

	// Gauges published by the Collector
	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of live entries in the cache",
		},
		[]string{"namespace"},
	)

	CacheHitRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_hit_rate",
			Help: "Cache hit rate since the last clear (0.0 to 1.0)",
		},
		[]string{"namespace"},
	)

	// Preloader metrics
	PreloadRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preload_requests_total",
			Help: "Total number of speculative page loads",
		},
		[]string{"status"}, // status: success, failed, stale
	)

	PreloadInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "preload_in_flight",
			Help: "Number of page preloads currently running",
		},
	)

	// Recorder mirrors
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "operation_duration_seconds",
			Help:    "Duration of measured operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"name"},
	)

	NetworkRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "network_request_duration_seconds",
			Help:    "Duration of outbound requests made by data sources",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"method", "status"},
	)

	PaginationRenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagination_render_duration_seconds",
			Help:    "Time spent recomputing a paginated view",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"component"},
	)

	// Outbound HTTP client metrics
	HTTPClientRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_client_requests_total",
			Help: "Total number of outbound HTTP requests made to data sources",
		},
		[]string{"status"}, // status: success, retry, failure, error
	)

	HTTPClientRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "http_client_retries_total",
			Help: "Total number of outbound HTTP request retries",
		},
	)

	HTTPClientRetryAfterWaits = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "http_client_retry_after_wait_seconds",
			Help:    "Duration of Retry-After waits in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"component"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_trips_total",
			Help: "Total number of circuit breaker trips",
		},
		[]string{"component"},
	)

	// API request metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"endpoint", "method", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	APIRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limited_total",
			Help: "Total number of API requests rejected by the rate limiter",
		},
		[]string{"scope"}, // scope: global, ip
	)

	// Metrics collection error tracking
	MetricsCollectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metrics_collection_errors_total",
			Help: "Total number of errors during metrics collection",
		},
		[]string{"collector"},
	)

	MetricsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "metrics_pruned_total",
			Help: "Total number of recorder entries dropped by retention pruning",
		},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	WebSocketMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent to clients",
		},
	)

	// Scheduled refresh metrics
	ScheduledRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_job_runs_total",
			Help: "Total number of scheduled job runs",
		},
		[]string{"job", "status"},
	)

	ScheduledRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduled_job_duration_seconds",
			Help:    "Duration of scheduled job runs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)
)
