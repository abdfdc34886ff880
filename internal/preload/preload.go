// Package preload speculatively loads the pages following the current one.
package preload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/getsentry/sentry-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/cache"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/circuitbreaker"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/errorreporting"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/logger"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/metrics"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/tracing"
)

// PreloadFunc loads one page. Its result is expected to land in a cache.
type PreloadFunc func(ctx context.Context, page int) error

// Config controls when and how much to preload.
type Config struct {
	Enabled bool
	// Threshold is how close to the last page the current page must be.
	Threshold       int
	MaxPreloadPages int
	// RatePerSecond limits page loads; 0 means unlimited.
	RatePerSecond float64
	Burst         int
}

// DefaultConfig enables preloading two pages ahead once within two pages of
// the end.
func DefaultConfig() Config {
	return Config{Enabled: true, Threshold: 2, MaxPreloadPages: 2, Burst: 1}
}

// Option customises a Preloader.
type Option func(*Preloader)

func WithLogger(l *slog.Logger) Option {
	return func(p *Preloader) { p.log = l }
}

// WithName scopes recorder span names, so preloaders sharing a recorder do
// not overwrite each other's open spans.
func WithName(name string) Option {
	return func(p *Preloader) { p.name = name }
}

// WithRecorder times every page load.
func WithRecorder(r *metrics.Recorder) Option {
	return func(p *Preloader) { p.rec = r }
}

// WithCircuitBreaker routes page loads through cb so a failing source is not
// hammered.
func WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(p *Preloader) { p.breaker = cb }
}

// Preloader tracks which pages are loading or loaded and never requests the
// same page twice concurrently.
type Preloader struct {
	mu        sync.Mutex
	fn        PreloadFunc
	name      string
	cfg       Config
	log       *slog.Logger
	rec       *metrics.Recorder
	breaker   *circuitbreaker.CircuitBreaker
	limiter   *rate.Limiter
	current   int
	total     int
	inFlight  map[int]struct{}
	preloaded map[int]struct{}
	gen       uint64

	wg       sync.WaitGroup
	closeCtx context.Context
	closeFn  context.CancelFunc
}

// New creates a preloader calling fn for each page.
func New(fn PreloadFunc, cfg Config, opts ...Option) *Preloader {
	if cfg.Threshold < 0 {
		cfg.Threshold = 0
	}
	if cfg.MaxPreloadPages <= 0 {
		cfg.MaxPreloadPages = DefaultConfig().MaxPreloadPages
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Preloader{
		fn:        fn,
		cfg:       cfg,
		log:       logger.WithComponent("preload"),
		current:   1,
		inFlight:  make(map[int]struct{}),
		preloaded: make(map[int]struct{}),
		closeCtx:  ctx,
		closeFn:   cancel,
	}
	if cfg.RatePerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetPosition records the page being viewed and the page count.
func (p *Preloader) SetPosition(currentPage, totalPages int) {
	p.mu.Lock()
	p.current = max(currentPage, 1)
	p.total = max(totalPages, 0)
	p.mu.Unlock()
}

// ShouldPreload reports whether the current page is within Threshold of the end.
func (p *Preloader) ShouldPreload() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shouldPreloadLocked()
}

func (p *Preloader) shouldPreloadLocked() bool {
	return p.cfg.Enabled && p.current+p.cfg.Threshold >= p.total
}

// PreloadNextPages starts loading the next MaxPreloadPages pages that are
// neither loaded nor loading, and returns the pages it started. Loads run in
// the background; use Wait to block on them.
func (p *Preloader) PreloadNextPages(ctx context.Context) []int {
	p.mu.Lock()
	if !p.shouldPreloadLocked() {
		p.mu.Unlock()
		return nil
	}
	var started []int
	for i := 1; i <= p.cfg.MaxPreloadPages; i++ {
		page := p.current + i
		if p.total > 0 && page > p.total {
			break
		}
		if _, ok := p.inFlight[page]; ok {
			continue
		}
		if _, ok := p.preloaded[page]; ok {
			continue
		}
		p.inFlight[page] = struct{}{}
		started = append(started, page)
	}
	gen := p.gen
	p.wg.Add(len(started))
	p.mu.Unlock()

	for _, page := range started {
		metrics.PreloadInFlight.Inc()
		go p.load(ctx, gen, page)
	}
	if len(started) > 0 {
		p.log.Debug("preloading pages", "pages", started)
	}
	return started
}

func (p *Preloader) load(parent context.Context, gen uint64, page int) {
	defer p.wg.Done()
	defer metrics.PreloadInFlight.Dec()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	stop := context.AfterFunc(p.closeCtx, cancel)
	defer stop()

	ctx, span := tracing.StartSpan(ctx, "preload.page", trace.WithAttributes(attribute.Int("preload.page", page)))
	defer span.End()

	var err error
	if p.limiter != nil {
		err = p.limiter.Wait(ctx)
	}
	if err == nil {
		err = p.rec.Measure(p.spanName(gen, page), func() error {
			if p.breaker != nil {
				return p.breaker.Call(ctx, func(ctx context.Context) error {
					return p.fn(ctx, page)
				})
			}
			return p.fn(ctx, page)
		}, map[string]any{"page": page})
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	p.finish(gen, page, err)
}

// spanName is unique per preloader, dataset generation and page.
func (p *Preloader) spanName(gen uint64, page int) string {
	name := "preload:"
	if p.name != "" {
		name += p.name + ":"
	}
	name += "page:" + strconv.Itoa(page)
	if gen > 0 {
		name += "#" + strconv.FormatUint(gen, 10)
	}
	return name
}

func (p *Preloader) finish(gen uint64, page int, err error) {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		metrics.PreloadRequests.WithLabelValues("stale").Inc()
		p.log.Debug("discarding preload from previous dataset", "page", page)
		return
	}
	delete(p.inFlight, page)
	if err == nil {
		p.preloaded[page] = struct{}{}
	}
	p.mu.Unlock()

	if err == nil {
		metrics.PreloadRequests.WithLabelValues("success").Inc()
		return
	}
	metrics.PreloadRequests.WithLabelValues("failed").Inc()
	p.log.Warn("page preload failed", "page", page, "error", err)
	if errors.Is(err, context.Canceled) || errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return
	}
	errorreporting.AddBreadcrumb("preload", fmt.Sprintf("page %d failed", page), sentry.LevelWarning)
	errorreporting.CaptureErrorWithContext(err,
		map[string]string{"component": "preload"},
		map[string]interface{}{"page": page})
}

// Reset forgets every page, for a new dataset. Loads still running from
// before the reset are discarded when they finish.
func (p *Preloader) Reset() {
	p.mu.Lock()
	p.gen++
	p.inFlight = make(map[int]struct{})
	p.preloaded = make(map[int]struct{})
	p.mu.Unlock()
}

// Wait blocks until every started load has finished.
func (p *Preloader) Wait() { p.wg.Wait() }

// Close cancels running loads and waits for them.
func (p *Preloader) Close() {
	p.closeFn()
	p.wg.Wait()
}

func (p *Preloader) IsPreloaded(page int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.preloaded[page]
	return ok
}

// InFlight returns the pages currently loading, ascending.
func (p *Preloader) InFlight() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return sortedKeys(p.inFlight)
}

// Preloaded returns the pages loaded successfully, ascending.
func (p *Preloader) Preloaded() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return sortedKeys(p.preloaded)
}

func sortedKeys(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// CachePageLoader preloads through store so warmed pages are served from the
// same keys as regular reads.
func CachePageLoader[T any](store *cache.Store[T], key func(page int) string,
	fetch func(ctx context.Context, page int) (T, error), opts ...cache.EntryOption) PreloadFunc {
	return func(ctx context.Context, page int) error {
		_, err := store.FetchWithCache(ctx, key(page), func(ctx context.Context) (T, error) {
			return fetch(ctx, page)
		}, opts...)
		return err
	}
}
