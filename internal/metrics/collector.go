package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/logger"
)

// CacheSnapshot is the subset of cache statistics the collector publishes.
type CacheSnapshot struct {
	Namespace string
	Entries   int
	HitRate   float64
}

// CacheStatsProvider is implemented by cache stores.
type CacheStatsProvider interface {
	StatsSnapshot() CacheSnapshot
}

// Collector periodically publishes cache gauges and prunes the recorder.
type Collector struct {
	caches   []CacheStatsProvider
	recorder *Recorder
	interval time.Duration
	stop     chan struct{}
	once     sync.Once
}

// NewCollector creates a new metrics collector.
func NewCollector(recorder *Recorder, interval time.Duration, caches ...CacheStatsProvider) *Collector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Collector{
		caches:   caches,
		recorder: recorder,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start begins the metrics collection loop; it blocks until stopped.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Collect initial metrics
	c.Collect()

	for {
		select {
		case <-ticker.C:
			c.Collect()
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the metrics collector.
func (c *Collector) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// Collect runs one collection pass.
func (c *Collector) Collect() {
	c.collectCacheMetrics()
	c.pruneRecorder()
}

func (c *Collector) collectCacheMetrics() {
	for _, p := range c.caches {
		if p == nil {
			MetricsCollectionErrors.WithLabelValues("cache").Inc()
			continue
		}
		snap := p.StatsSnapshot()
		CacheEntries.WithLabelValues(snap.Namespace).Set(float64(snap.Entries))
		CacheHitRate.WithLabelValues(snap.Namespace).Set(snap.HitRate)
	}
}

func (c *Collector) pruneRecorder() {
	if c.recorder == nil {
		return
	}
	if n := c.recorder.ClearOldMetrics(); n > 0 {
		logger.Debug("pruned old metrics", "count", n)
	}
}
