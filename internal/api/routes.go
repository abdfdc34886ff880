package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/api/handlers"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/catalog"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/metrics"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/middleware"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/scheduler"
)

// Deps are the services the router exposes.
type Deps struct {
	Catalog  *catalog.Service
	Recorder *metrics.Recorder
	// Hub streams metrics over websockets; nil disables the stream.
	Hub *handlers.Hub
	// Scheduler runs background refreshes; nil hides its status route.
	Scheduler *scheduler.Service
	// RateLimiter guards /api; nil disables limiting.
	RateLimiter *middleware.RateLimiter
	// ETagMaxAge is advertised on collection responses.
	ETagMaxAge time.Duration
}

func NewRouter(d Deps) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestID, middleware.RecoverWithSentry, middleware.Instrument)

	r.HandleFunc("/health", handlers.Health).Methods(http.MethodGet)
	// promhttp compresses on its own
	r.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		DisableCompression: true,
	})).Methods(http.MethodGet)

	apiR := r.PathPrefix("/api").Subrouter()
	if d.RateLimiter != nil {
		apiR.Use(d.RateLimiter.Limit)
	}
	apiR.Use(middleware.Compress)

	// Collections
	coll := handlers.NewCollectionsHandler(d.Catalog)
	etag := middleware.ETag(d.ETagMaxAge)
	apiR.Handle("/collections", etag(http.HandlerFunc(coll.List))).Methods(http.MethodGet)
	apiR.Handle("/collections/{name}", etag(http.HandlerFunc(coll.Query))).Methods(http.MethodGet)
	apiR.Handle("/collections/{name}/window", etag(http.HandlerFunc(coll.Window))).Methods(http.MethodGet)
	apiR.Handle("/collections/{name}/pages/{page:[0-9]+}", etag(http.HandlerFunc(coll.Page))).Methods(http.MethodGet)

	// Cache administration
	admin := handlers.NewCacheAdminHandler(d.Catalog)
	apiR.HandleFunc("/admin/cache/stats", admin.GetCacheStats).Methods(http.MethodGet)
	apiR.HandleFunc("/admin/cache/invalidate", admin.InvalidateCache).Methods(http.MethodPost)
	apiR.HandleFunc("/admin/cache/cleanup", admin.CleanupCache).Methods(http.MethodPost)
	if d.Scheduler != nil {
		apiR.HandleFunc("/admin/refresh", handlers.RefreshStatus(d.Scheduler)).Methods(http.MethodGet)
	}

	// Metrics
	snapshots := handlers.NewSnapshotSource(d.Recorder, d.Catalog)
	apiR.HandleFunc("/metrics/stats", snapshots.GetStats).Methods(http.MethodGet)
	if d.Hub != nil {
		apiR.HandleFunc("/ws/metrics", handlers.NewWebSocketHandler(d.Hub).HandleWebSocket).Methods(http.MethodGet)
	}

	return r
}
