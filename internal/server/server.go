// Package server wires the catalogue, metrics and HTTP API into one
// process and runs them until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/api"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/api/handlers"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/catalog"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/circuitbreaker"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/config"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/kvstore"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/logger"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/metrics"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/middleware"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/scheduler"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/secrets"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/source"
)

const shutdownTimeout = 10 * time.Second

// Server owns every long-lived component of the process.
type Server struct {
	cfg       *config.Config
	Catalog   *catalog.Service
	Recorder  *metrics.Recorder
	collector *metrics.Collector
	hub       *handlers.Hub
	scheduler *scheduler.Service
	limiter   *middleware.RateLimiter
	store     io.Closer
	http      *http.Server

	closeOnce sync.Once
}

// Option customises New.
type Option func(*options)

type options struct {
	fetcher catalog.Fetcher
	lookup  func(string) (string, bool)
}

// WithFetcher replaces the HTTP source client.
func WithFetcher(f catalog.Fetcher) Option { return func(o *options) { o.fetcher = f } }

// WithEnvLookup replaces os.LookupEnv for required-setting checks.
func WithEnvLookup(fn func(string) (string, bool)) Option {
	return func(o *options) { o.lookup = fn }
}

func recorderConfig(cfg *config.Config) metrics.RecorderConfig {
	return metrics.RecorderConfig{
		MaxPerformance: cfg.MetricsMaxPerformance,
		MaxNetwork:     cfg.MetricsMaxNetwork,
		MaxPagination:  cfg.MetricsMaxPagination,
		StatsWindow:    cfg.MetricsStatsWindow,
		Retention:      cfg.MetricsRetention,
		PruneInterval:  cfg.MetricsPruneInterval,
	}
}

// New opens the persistence backend and builds the catalogue and API.
func New(ctx context.Context, cfg *config.Config, defs []config.Collection, opts ...Option) (*Server, error) {
	o := options{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg.CacheBackend == "postgres" {
		if err := secrets.ValidateRequired(o.lookup, "DATABASE_URL"); err != nil {
			return nil, err
		}
	}
	store, closer, err := kvstore.Open(ctx, kvstore.Options{
		Backend:     cfg.CacheBackend,
		FileDir:     cfg.CacheFileDir,
		RistrettoMB: cfg.CacheRistrettoMaxMB,
		DatabaseURL: cfg.DatabaseURL,
		Compress:    cfg.CacheCompress,
	})
	if err != nil {
		return nil, fmt.Errorf("open cache backend: %w", err)
	}
	if cfg.CacheBackend == "postgres" {
		logger.Info("Cache persistence on postgres", "database", secrets.MaskURL(cfg.DatabaseURL))
	}

	rec := metrics.NewRecorder(recorderConfig(cfg))
	fetcher := o.fetcher
	if fetcher == nil {
		breaker := circuitbreaker.New(circuitbreaker.Config{Name: "source"})
		fetcher = source.New(source.WithRecorder(rec), source.WithCircuitBreaker(breaker))
	}
	for _, d := range defs {
		logger.Debug("Collection configured", "name", d.Name,
			"url", secrets.MaskURL(d.URL), "page_url", secrets.MaskURL(d.PageURL), "refresh", d.Refresh)
	}
	svc := catalog.New(cfg, defs, fetcher, catalog.WithBackingStore(store), catalog.WithRecorder(rec))

	sched, err := scheduler.NewService(svc.RefreshJobs())
	if err != nil {
		svc.Close()
		closer.Close()
		return nil, fmt.Errorf("refresh schedules: %w", err)
	}

	snapshots := handlers.NewSnapshotSource(rec, svc)
	hub := handlers.NewHub(func() any { return snapshots.Snapshot() }, cfg.MetricsStreamInterval)

	var limiter *middleware.RateLimiter
	if cfg.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(middleware.RateLimitConfig{
			GlobalRate:  cfg.RateLimitGlobal,
			GlobalBurst: cfg.RateLimitGlobalBurst,
			IPRate:      cfg.RateLimitPerIP,
			IPBurst:     cfg.RateLimitPerIPBurst,
		})
	}

	router := api.NewRouter(api.Deps{
		Catalog:     svc,
		Recorder:    rec,
		Hub:         hub,
		Scheduler:   sched,
		RateLimiter: limiter,
		ETagMaxAge:  cfg.CacheTTL,
	})

	return &Server{
		cfg:       cfg,
		Catalog:   svc,
		Recorder:  rec,
		collector: metrics.NewCollector(rec, cfg.CollectorInterval, svc.StatsProviders()...),
		hub:       hub,
		scheduler: sched,
		limiter:   limiter,
		store:     closer,
		http: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Start launches the background loops. They end when ctx is done.
func (s *Server) Start(ctx context.Context) {
	s.Recorder.Start(ctx)
	go s.collector.Start(ctx)
	go s.hub.Run(ctx)
	go s.scheduler.Start(ctx)
}

// Run serves HTTP until ctx is done, then shuts down gracefully and
// releases every component.
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.Start(runCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down server")
	case serveErr = <-errCh:
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
	cancel()
	s.Close()
	return serveErr
}

// Close stops background loops and writes final cache snapshots.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.scheduler.Stop()
		s.collector.Stop()
		if s.limiter != nil {
			s.limiter.Stop()
		}
		s.Catalog.Close()
		s.Recorder.Close()
		if err := s.store.Close(); err != nil {
			logger.Warn("Failed to close cache backend", "error", err)
		}
	})
}
