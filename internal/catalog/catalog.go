// Package catalog serves the configured remote collections through the
// cache, the collection view, the virtual window and the preloader.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/cache"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/config"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/kvstore"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/logger"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/metrics"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/preload"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/scheduler"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/source"
)

var (
	ErrNotFound = errors.New("collection not found")
	// ErrNoURL is returned by whole-collection reads on a page-only collection.
	ErrNoURL    = errors.New("collection has no url")
	ErrNotPaged = errors.New("collection has no page_url")
)

// allKey is the cache key of a whole collection inside its namespace.
const allKey = "all"

// Fetcher loads records from a remote source. *source.Client implements it.
type Fetcher interface {
	FetchAll(ctx context.Context, url string) ([]source.Record, error)
	FetchPage(ctx context.Context, pageURL string, page int) ([]source.Record, error)
}

// Option configures a Service.
type Option func(*Service)

// WithBackingStore persists cache snapshots to s.
func WithBackingStore(s kvstore.Store) Option {
	return func(svc *Service) { svc.backing = s }
}

// WithRecorder feeds view, preload and cache timings into r.
func WithRecorder(r *metrics.Recorder) Option {
	return func(svc *Service) { svc.rec = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(svc *Service) { svc.log = l }
}

// WithCacheOptions appends options to every cache store, mostly a clock in tests.
func WithCacheOptions(opts ...cache.Option) Option {
	return func(svc *Service) { svc.cacheOpts = append(svc.cacheOpts, opts...) }
}

// Service holds one Collection per catalogue entry.
type Service struct {
	cfg         *config.Config
	src         Fetcher
	backing     kvstore.Store
	rec         *metrics.Recorder
	log         *slog.Logger
	cacheOpts   []cache.Option
	order       []string
	collections map[string]*Collection
}

// New builds the service. Definitions are assumed validated by
// config.ParseCollections.
func New(cfg *config.Config, defs []config.Collection, src Fetcher, opts ...Option) *Service {
	s := &Service{
		cfg:         cfg,
		src:         src,
		log:         logger.WithComponent("catalog"),
		collections: make(map[string]*Collection, len(defs)),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, def := range defs {
		s.collections[def.Name] = s.newCollection(def)
		s.order = append(s.order, def.Name)
	}
	s.log.Info("catalog ready", "collections", len(s.order), "persist", cfg.CachePersist && s.backing != nil)
	return s
}

func (s *Service) newCollection(def config.Collection) *Collection {
	prio := cache.PriorityMedium
	if def.Priority != "" {
		p, err := cache.ParsePriority(def.Priority)
		if err != nil {
			s.log.Warn("ignoring collection priority", "collection", def.Name, "error", err)
		} else {
			prio = p
		}
	}
	base := cache.Config{
		TTL:             firstPositive(def.TTL, s.cfg.CacheTTL),
		Persist:         s.cfg.CachePersist,
		MaxSize:         firstPositive(def.MaxSize, s.cfg.CacheMaxSize),
		Tags:            append([]string{def.Name}, def.Tags...),
		Priority:        prio,
		AutoCleanup:     s.cfg.CacheAutoCleanup,
		CleanupInterval: s.cfg.CacheCleanupInterval,
	}
	opts := append([]cache.Option{cache.WithLogger(s.log.With("collection", def.Name))}, s.cacheOpts...)
	if s.backing != nil {
		opts = append(opts, cache.WithBackingStore(s.backing))
	}
	if s.cfg.CacheDeduplicate {
		opts = append(opts, cache.WithDeduplication())
	}

	c := &Collection{def: def, cfg: s.cfg, src: s.src, rec: s.rec}
	if def.URL != "" {
		itemsCfg := base
		itemsCfg.Key = def.Name
		c.items = cache.New[[]source.Record](itemsCfg, opts...)
	}
	if def.PageURL != "" {
		pagesCfg := base
		pagesCfg.Key = def.Name + ":pages"
		c.pages = cache.New[[]source.Record](pagesCfg, opts...)
		load := preload.CachePageLoader(c.pages, pageKey, func(ctx context.Context, page int) ([]source.Record, error) {
			return s.src.FetchPage(ctx, def.PageURL, page)
		})
		c.preloader = preload.New(load, preload.Config{
			Enabled:         s.cfg.PreloadEnabled,
			Threshold:       s.cfg.PreloadThreshold,
			MaxPreloadPages: s.cfg.PreloadMaxPages,
			RatePerSecond:   s.cfg.PreloadRPS,
			Burst:           s.cfg.PreloadBurst,
		}, preload.WithName(def.Name),
			preload.WithLogger(s.log.With("collection", def.Name)), preload.WithRecorder(s.rec))
	}
	return c
}

func pageKey(page int) string { return "page:" + strconv.Itoa(page) }

func firstPositive[T ~int | ~int64 | ~float64](vals ...T) T {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

// Names lists the collections in catalogue order.
func (s *Service) Names() []string { return slices.Clone(s.order) }

// Get returns the named collection.
func (s *Service) Get(name string) (*Collection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return c, nil
}

// Definitions returns the catalogue entries in order.
func (s *Service) Definitions() []config.Collection {
	out := make([]config.Collection, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.collections[name].def)
	}
	return out
}

// NamespaceStats is the cache statistics of one namespace.
type NamespaceStats struct {
	Namespace string `json:"namespace"`
	cache.Stats
}

func (s *Service) eachStore(fn func(*cache.Store[[]source.Record])) {
	for _, name := range s.order {
		c := s.collections[name]
		for _, st := range []*cache.Store[[]source.Record]{c.items, c.pages} {
			if st != nil {
				fn(st)
			}
		}
	}
}

// CacheStats reports every cache namespace.
func (s *Service) CacheStats() []NamespaceStats {
	var out []NamespaceStats
	s.eachStore(func(st *cache.Store[[]source.Record]) {
		out = append(out, NamespaceStats{Namespace: st.Namespace(), Stats: st.Stats()})
	})
	return out
}

// StatsProviders exposes the stores to the metrics collector.
func (s *Service) StatsProviders() []metrics.CacheStatsProvider {
	var out []metrics.CacheStatsProvider
	s.eachStore(func(st *cache.Store[[]source.Record]) { out = append(out, st) })
	return out
}

// InvalidateTags removes entries carrying any of tags across all
// collections. Every entry carries its collection name as a tag.
func (s *Service) InvalidateTags(tags ...string) int {
	n := 0
	s.eachStore(func(st *cache.Store[[]source.Record]) {
		n += st.InvalidateByTags(tags...)
	})
	s.log.Info("invalidated cache by tags", "tags", tags, "removed", n)
	s.resetPreloaders()
	return n
}

// InvalidateAll empties every cache and returns how many entries were dropped.
func (s *Service) InvalidateAll() int {
	n := 0
	s.eachStore(func(st *cache.Store[[]source.Record]) {
		n += st.Len()
		st.Clear()
	})
	s.log.Info("cleared all caches", "removed", n)
	s.resetPreloaders()
	return n
}

// Cleanup drops expired entries everywhere.
func (s *Service) Cleanup() int {
	n := 0
	s.eachStore(func(st *cache.Store[[]source.Record]) { n += st.Cleanup() })
	return n
}

func (s *Service) resetPreloaders() {
	for _, c := range s.collections {
		if c.preloader != nil {
			c.preloader.Reset()
		}
	}
}

// RefreshJobs returns a scheduler job for each collection declaring a
// refresh schedule.
func (s *Service) RefreshJobs() []scheduler.Job {
	var jobs []scheduler.Job
	for _, name := range s.order {
		c := s.collections[name]
		if c.def.Refresh == "" {
			continue
		}
		jobs = append(jobs, scheduler.Job{
			Name:     "refresh:" + name,
			Schedule: c.def.Refresh,
			Run:      c.Refresh,
		})
	}
	return jobs
}

// Close stops preloads and cleanup loops and writes final snapshots.
func (s *Service) Close() {
	for _, name := range s.order {
		c := s.collections[name]
		if c.preloader != nil {
			c.preloader.Close()
		}
	}
	s.eachStore(func(st *cache.Store[[]source.Record]) { st.Close() })
}
