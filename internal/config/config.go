package config

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/utils"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	// HTTP host
	ListenAddr     string
	UserAgent      string
	HTTPMaxRetries int
	HTTPRetryBase  time.Duration
	HTTPTimeout    time.Duration
	LogHTTPRetries bool
	// Collection catalogue (YAML)
	CollectionsFile string
	// Cache defaults, overridable per collection
	CacheTTL             time.Duration
	CacheMaxSize         int
	CachePersist         bool
	CacheAutoCleanup     bool
	CacheCleanupInterval time.Duration
	CacheDeduplicate     bool
	// Persistence backend: none, memory, file, ristretto, postgres
	CacheBackend        string
	CacheFileDir        string
	CacheCompress       bool
	CacheRistrettoMaxMB int64
	DatabaseURL         string
	// Pagination
	PageSizeDefault int
	PageSizeOptions []int
	SearchDebounce  time.Duration
	// Virtual window
	VirtualItemHeight   float64
	VirtualOverscan     int
	VirtualEndThreshold float64
	// Preloading
	PreloadEnabled   bool
	PreloadThreshold int
	PreloadMaxPages  int
	PreloadRPS       float64 // 0 disables rate limiting
	PreloadBurst     int
	// Metrics recorder
	MetricsMaxPerformance int
	MetricsMaxNetwork     int
	MetricsMaxPagination  int
	MetricsStatsWindow    time.Duration
	MetricsRetention      time.Duration
	MetricsPruneInterval  time.Duration
	CollectorInterval     time.Duration
	MetricsStreamInterval time.Duration
	// API rate limiting
	RateLimitEnabled     bool
	RateLimitGlobal      float64
	RateLimitGlobalBurst int
	RateLimitPerIP       float64
	RateLimitPerIPBurst  int
	// Observability settings
	LogLevel          string  // log level: debug, info, warn, error
	OTELEnabled       bool    // enable OpenTelemetry tracing
	OTELEndpoint      string  // OpenTelemetry collector endpoint
	OTELSampleRate    float64 // trace sampling rate (0.0 to 1.0)
	SentryDSN         string  // Sentry DSN for error reporting
	SentryEnvironment string  // Sentry environment (dev, staging, production)
	SentryRelease     string  // Sentry release version
	SentrySampleRate  float64 // Sentry error sampling rate (0.0 to 1.0)
}

var (
	mu     sync.Mutex
	cached *Config
)

// Load reads env vars once and caches them.
func Load() *Config {
	mu.Lock()
	defer mu.Unlock()
	if cached != nil {
		return cached
	}
	cached = &Config{
		ListenAddr:      utils.GetEnvAsString("LISTEN_ADDR", ":8000"),
		UserAgent:       utils.GetEnvAsString("HTTP_USER_AGENT", "clinic-dataview/0.1"),
		HTTPMaxRetries:  utils.GetEnvAsInt("HTTP_MAX_RETRIES", 3),
		HTTPRetryBase:   time.Duration(utils.GetEnvAsInt("HTTP_RETRY_BASE_MS", 300)) * time.Millisecond,
		HTTPTimeout:     time.Duration(utils.GetEnvAsInt("HTTP_TIMEOUT_MS", 15000)) * time.Millisecond,
		LogHTTPRetries:  utils.GetEnvAsBool("LOG_HTTP_RETRIES", false),
		CollectionsFile: strings.TrimSpace(os.Getenv("COLLECTIONS_FILE")),

		CacheTTL:             utils.GetEnvAsDuration("CACHE_TTL", 5*time.Minute),
		CacheMaxSize:         utils.GetEnvAsInt("CACHE_MAX_SIZE", 100),
		CachePersist:         utils.GetEnvAsBool("CACHE_PERSIST", false),
		CacheAutoCleanup:     utils.GetEnvAsBool("CACHE_AUTO_CLEANUP", true),
		CacheCleanupInterval: utils.GetEnvAsDuration("CACHE_CLEANUP_INTERVAL", 2*time.Minute),
		CacheDeduplicate:     utils.GetEnvAsBool("CACHE_DEDUPLICATE_FETCHES", false),
		CacheBackend:         strings.ToLower(utils.GetEnvAsString("CACHE_BACKEND", "memory")),
		CacheFileDir:         utils.GetEnvAsString("CACHE_FILE_DIR", "data/cache"),
		CacheCompress:        utils.GetEnvAsBool("CACHE_COMPRESS", false),
		CacheRistrettoMaxMB:  int64(utils.GetEnvAsInt("CACHE_RISTRETTO_MAX_MB", 16)),
		DatabaseURL:          strings.TrimSpace(os.Getenv("DATABASE_URL")),

		PageSizeDefault: utils.GetEnvAsInt("PAGE_SIZE_DEFAULT", 20),
		PageSizeOptions: utils.GetEnvAsIntSlice("PAGE_SIZE_OPTIONS", []int{10, 20, 50, 100}, ","),
		SearchDebounce:  utils.GetEnvAsDuration("SEARCH_DEBOUNCE", 300*time.Millisecond),

		VirtualItemHeight:   utils.GetEnvAsFloat("VIRTUAL_ITEM_HEIGHT", 48),
		VirtualOverscan:     utils.GetEnvAsInt("VIRTUAL_OVERSCAN", 5),
		VirtualEndThreshold: utils.GetEnvAsFloat("VIRTUAL_END_THRESHOLD", 0.8),

		PreloadEnabled:   utils.GetEnvAsBool("PRELOAD_ENABLED", true),
		PreloadThreshold: utils.GetEnvAsInt("PRELOAD_THRESHOLD", 2),
		PreloadMaxPages:  utils.GetEnvAsInt("PRELOAD_MAX_PAGES", 2),
		PreloadRPS:       utils.GetEnvAsFloat("PRELOAD_RPS", 0),
		PreloadBurst:     utils.GetEnvAsInt("PRELOAD_BURST", 1),

		MetricsMaxPerformance: utils.GetEnvAsInt("METRICS_MAX_PERFORMANCE", 100),
		MetricsMaxNetwork:     utils.GetEnvAsInt("METRICS_MAX_NETWORK", 100),
		MetricsMaxPagination:  utils.GetEnvAsInt("METRICS_MAX_PAGINATION", 50),
		MetricsStatsWindow:    utils.GetEnvAsDuration("METRICS_STATS_WINDOW", 5*time.Minute),
		MetricsRetention:      utils.GetEnvAsDuration("METRICS_RETENTION", 10*time.Minute),
		MetricsPruneInterval:  utils.GetEnvAsDuration("METRICS_PRUNE_INTERVAL", time.Minute),
		CollectorInterval:     utils.GetEnvAsDuration("METRICS_COLLECTOR_INTERVAL", 30*time.Second),
		MetricsStreamInterval: utils.GetEnvAsDuration("METRICS_STREAM_INTERVAL", 2*time.Second),

		RateLimitEnabled:     utils.GetEnvAsBool("RATE_LIMIT_ENABLED", true),
		RateLimitGlobal:      utils.GetEnvAsFloat("RATE_LIMIT_GLOBAL", 100),
		RateLimitGlobalBurst: utils.GetEnvAsInt("RATE_LIMIT_GLOBAL_BURST", 200),
		RateLimitPerIP:       utils.GetEnvAsFloat("RATE_LIMIT_PER_IP", 20),
		RateLimitPerIPBurst:  utils.GetEnvAsInt("RATE_LIMIT_PER_IP_BURST", 40),

		// Observability settings
		LogLevel:          strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),
		OTELEnabled:       utils.GetEnvAsBool("OTEL_ENABLED", false),
		OTELEndpoint:      strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTELSampleRate:    utils.GetEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),
		SentryDSN:         strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		SentryEnvironment: strings.TrimSpace(os.Getenv("SENTRY_ENVIRONMENT")),
		SentryRelease:     strings.TrimSpace(os.Getenv("SENTRY_RELEASE")),
		SentrySampleRate:  utils.GetEnvAsFloat("SENTRY_SAMPLE_RATE", 1.0),
	}
	if cached.LogLevel == "" {
		cached.LogLevel = "info"
	}
	if cached.SentryEnvironment == "" {
		if env := os.Getenv("ENV"); env != "" {
			cached.SentryEnvironment = env
		} else {
			cached.SentryEnvironment = "development"
		}
	}
	if cached.PageSizeDefault <= 0 {
		cached.PageSizeDefault = 20
	}
	if cached.VirtualEndThreshold <= 0 || cached.VirtualEndThreshold > 1 {
		cached.VirtualEndThreshold = 0.8
	}
	if cached.VirtualOverscan < 0 {
		cached.VirtualOverscan = 0
	}

	return cached
}

// ResetForTest clears cached config; for use in tests only.
func ResetForTest() {
	mu.Lock()
	cached = nil
	mu.Unlock()
}

// GetEnvBool reads a boolean environment variable with a default.
// Use this when you need to check a flag not present in the cached config.
func (c *Config) GetEnvBool(key string, def bool) bool {
	return utils.GetEnvAsBool(key, def)
}
