// Package cache implements a generic in-memory TTL cache with LRU eviction,
// priority exemption, tag invalidation and optional snapshot persistence.
package cache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/kvstore"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/logger"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/metrics"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/tracing"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/utils"
)

// ErrCapacityExceeded is returned by Set when the store is full and every
// remaining entry is high priority.
var ErrCapacityExceeded = errors.New("cache: capacity exceeded, all entries are high priority")

// Stats reports cumulative counters since creation or the last Clear.
type Stats struct {
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	Evictions  uint64  `json:"evictions"`
	TotalSize  int     `json:"total_size"`
	HitRate    float64 `json:"hit_rate"`
	Efficiency string  `json:"efficiency"`
}

type item[T any] struct {
	key   string
	entry Entry[T]
}

// Store is a bounded TTL cache. The zero value is not usable; call New.
type Store[T any] struct {
	mu      sync.Mutex
	cfg     Config
	now     func() time.Time
	log     *slog.Logger
	backing kvstore.Store

	entries map[string]*list.Element
	order   *list.List // front = most recently used

	hits, misses, evictions uint64

	dedupe bool
	group  singleflight.Group

	cleanupStop chan struct{}
	cleanupDone chan struct{}
	closed      bool

	persistMu  sync.Mutex
	persistSeq uint64
	written    uint64
}

// New creates a store. When cfg.Persist is set the previous snapshot for
// cfg.Key is loaded from the backing store (an in-memory store when none is
// given) and expired entries are dropped.
func New[T any](cfg Config, opts ...Option) *Store[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	cfg = cfg.withDefaults()
	if o.log == nil {
		o.log = logger.WithComponent("cache")
	}
	if cfg.Persist && o.backing == nil {
		o.backing = kvstore.NewMemory()
	}

	s := &Store[T]{
		cfg:     cfg,
		now:     o.now,
		log:     o.log.With("namespace", cfg.Key),
		backing: o.backing,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		dedupe:  o.dedupe,
	}
	if cfg.Persist {
		s.load()
	}
	if cfg.AutoCleanup {
		s.SetAutoCleanup(true)
	}
	return s
}

// Namespace returns the store's key.
func (s *Store[T]) Namespace() string { return s.cfg.Key }

// Config returns the effective configuration.
func (s *Store[T]) Config() Config { return s.cfg }

// Get returns the value for key. A hit refreshes recency; an expired entry is
// removed and counted as a miss.
func (s *Store[T]) Get(key string) (T, bool) {
	var zero T
	s.mu.Lock()
	el, ok := s.entries[key]
	if !ok {
		s.misses++
		s.mu.Unlock()
		metrics.CacheMisses.WithLabelValues(s.cfg.Key).Inc()
		return zero, false
	}
	it := el.Value.(*item[T])
	now := s.now()
	if it.entry.Expired(now) {
		s.removeElement(el)
		s.misses++
		s.mu.Unlock()
		metrics.CacheMisses.WithLabelValues(s.cfg.Key).Inc()
		return zero, false
	}
	it.entry.AccessCount++
	it.entry.LastAccessedAt = now
	s.order.MoveToFront(el)
	s.hits++
	v := it.entry.Data
	s.mu.Unlock()
	metrics.CacheHits.WithLabelValues(s.cfg.Key).Inc()
	return v, true
}

// Peek returns the live entry for key without touching recency or counters.
func (s *Store[T]) Peek(key string) (Entry[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.entries[key]
	if !ok {
		return Entry[T]{}, false
	}
	e := el.Value.(*item[T]).entry
	if e.Expired(s.now()) {
		return Entry[T]{}, false
	}
	e.Tags = append([]string(nil), e.Tags...)
	return e, true
}

// Set stores value under key. A non-positive ttl falls back to WithTTL and
// then to Config.TTL. Inserting a new key into a full store evicts first.
func (s *Store[T]) Set(key string, value T, ttl time.Duration, opts ...EntryOption) error {
	o := collectEntryOptions(opts)
	if ttl <= 0 {
		ttl = o.ttl
	}
	if ttl <= 0 {
		ttl = s.cfg.TTL
	}
	prio := o.priority
	if prio == 0 {
		prio = s.cfg.Priority
	}
	tags := utils.UniqueStrings(utils.MergeStrings(s.cfg.Tags, o.tags))

	s.mu.Lock()
	now := s.now()
	entry := Entry[T]{
		Data:           value,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		LastAccessedAt: now,
		Tags:           tags,
		Priority:       prio,
	}
	if el, ok := s.entries[key]; ok {
		el.Value.(*item[T]).entry = entry
		s.order.MoveToFront(el)
	} else {
		if len(s.entries) >= s.cfg.MaxSize {
			if !s.evictLocked(now) {
				s.mu.Unlock()
				return fmt.Errorf("set %q: %w", key, ErrCapacityExceeded)
			}
		}
		s.entries[key] = s.order.PushFront(&item[T]{key: key, entry: entry})
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snap)
	return nil
}

// evictLocked frees one slot: expired entries are swept first, then the least
// recently used entry that is not high priority is dropped. It reports false
// when no slot could be freed.
func (s *Store[T]) evictLocked(now time.Time) bool {
	swept := s.sweepLocked(now)
	if swept > 0 && len(s.entries) < s.cfg.MaxSize {
		return true
	}
	for el := s.order.Back(); el != nil; el = el.Prev() {
		it := el.Value.(*item[T])
		if it.entry.Priority == PriorityHigh {
			continue
		}
		s.removeElement(el)
		s.evictions++
		metrics.CacheEvictions.WithLabelValues(s.cfg.Key).Inc()
		s.log.Debug("evicted cache entry", "key", it.key, "priority", it.entry.Priority.String())
		return len(s.entries) < s.cfg.MaxSize
	}
	return false
}

func (s *Store[T]) sweepLocked(now time.Time) int {
	n := 0
	for el := s.order.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*item[T]).entry.Expired(now) {
			s.removeElement(el)
			n++
		}
		el = prev
	}
	if n > 0 {
		s.evictions += uint64(n)
		metrics.CacheEvictions.WithLabelValues(s.cfg.Key).Add(float64(n))
	}
	return n
}

func (s *Store[T]) removeElement(el *list.Element) {
	it := el.Value.(*item[T])
	delete(s.entries, it.key)
	s.order.Remove(el)
}

// Remove deletes key and reports whether it was present.
func (s *Store[T]) Remove(key string) bool {
	s.mu.Lock()
	el, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.removeElement(el)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snap)
	return true
}

// Clear drops every entry and resets the counters.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]*list.Element)
	s.order.Init()
	s.hits, s.misses, s.evictions = 0, 0, 0
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(snap)
}

// InvalidateByTags removes every entry carrying at least one of tags and
// returns how many were removed.
func (s *Store[T]) InvalidateByTags(tags ...string) int {
	if len(tags) == 0 {
		return 0
	}
	s.mu.Lock()
	n := 0
	for el := s.order.Front(); el != nil; {
		next := el.Next()
		if utils.Intersects(el.Value.(*item[T]).entry.Tags, tags) {
			s.removeElement(el)
			n++
		}
		el = next
	}
	var snap *snapshot[T]
	if n > 0 {
		snap = s.snapshotLocked()
	}
	s.mu.Unlock()

	if n > 0 {
		metrics.CacheInvalidations.WithLabelValues(s.cfg.Key).Add(float64(n))
		s.log.Info("invalidated cache entries", "tags", tags, "count", n)
		s.persist(snap)
	}
	return n
}

// Cleanup removes expired entries and returns how many were removed.
func (s *Store[T]) Cleanup() int {
	s.mu.Lock()
	n := s.sweepLocked(s.now())
	var snap *snapshot[T]
	if n > 0 {
		snap = s.snapshotLocked()
	}
	s.mu.Unlock()

	if n > 0 {
		s.log.Debug("cleaned up expired entries", "count", n)
		s.persist(snap)
	}
	return n
}

// Keys lists the stored keys, most recently used first. Expired entries not
// yet swept are included.
func (s *Store[T]) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for el := s.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*item[T]).key)
	}
	return keys
}

func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stats returns the counters and derived hit rate.
func (s *Store[T]) Stats() Stats {
	s.mu.Lock()
	st := Stats{
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evictions,
		TotalSize: len(s.entries),
	}
	s.mu.Unlock()

	if lookups := st.Hits + st.Misses; lookups > 0 {
		st.HitRate = float64(st.Hits) / float64(lookups)
		st.Efficiency = efficiencyLabel(st.HitRate)
	} else {
		st.Efficiency = "idle"
	}
	return st
}

func efficiencyLabel(rate float64) string {
	switch {
	case rate >= 0.8:
		return "excellent"
	case rate >= 0.6:
		return "good"
	case rate >= 0.4:
		return "fair"
	default:
		return "poor"
	}
}

// StatsSnapshot implements metrics.CacheStatsProvider.
func (s *Store[T]) StatsSnapshot() metrics.CacheSnapshot {
	st := s.Stats()
	return metrics.CacheSnapshot{Namespace: s.cfg.Key, Entries: st.TotalSize, HitRate: st.HitRate}
}

// FetchWithCache returns the cached value for key, or calls fetch on a miss
// (or when ForceRefresh is given) and caches its result. Fetch errors are
// returned wrapped and nothing is cached.
func (s *Store[T]) FetchWithCache(ctx context.Context, key string, fetch FetchFunc[T], opts ...EntryOption) (T, error) {
	o := collectEntryOptions(opts)
	if !o.forceRefresh {
		if v, ok := s.Get(key); ok {
			return v, nil
		}
	}

	load := func() (T, error) {
		ctx, span := tracing.StartSpan(ctx, "cache.fetch", trace.WithAttributes(
			attribute.String("cache.namespace", s.cfg.Key),
			attribute.String("cache.key", key),
			attribute.Bool("cache.force_refresh", o.forceRefresh),
		))
		defer span.End()

		start := time.Now()
		v, err := fetch(ctx)
		metrics.CacheFetchDuration.WithLabelValues(s.cfg.Key).Observe(time.Since(start).Seconds())
		if err != nil {
			var zero T
			metrics.CacheFetchErrors.WithLabelValues(s.cfg.Key).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return zero, fmt.Errorf("cache fetch %q: %w", key, err)
		}
		if err := s.Set(key, v, 0, opts...); err != nil {
			// the caller still gets the fresh value
			s.log.Warn("fetched value not cached", "key", key, "error", err)
		}
		return v, nil
	}

	if !s.dedupe {
		return load()
	}
	res, err, shared := s.group.Do(key, func() (any, error) { return load() })
	if shared {
		s.log.Debug("deduplicated cache fetch", "key", key)
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// SetAutoCleanup starts or stops the periodic expiry sweep. Entries are kept
// either way.
func (s *Store[T]) SetAutoCleanup(enabled bool) {
	s.mu.Lock()
	if s.closed && enabled {
		s.mu.Unlock()
		return
	}
	if enabled == (s.cleanupStop != nil) {
		s.mu.Unlock()
		return
	}
	if !enabled {
		stop, done := s.cleanupStop, s.cleanupDone
		s.cleanupStop, s.cleanupDone = nil, nil
		s.mu.Unlock()
		close(stop)
		<-done
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	s.cleanupStop, s.cleanupDone = stop, done
	interval := s.cfg.CleanupInterval
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}

// Close stops background cleanup and writes a final snapshot. The store
// remains readable afterwards.
func (s *Store[T]) Close() {
	s.SetAutoCleanup(false)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.persist(snap)
}
