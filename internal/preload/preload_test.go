package preload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/cache"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/circuitbreaker"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/logger"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/metrics"
)

type pageCounter struct {
	mu    sync.Mutex
	calls map[int]int
}

func (c *pageCounter) fn(release <-chan struct{}, fail map[int]bool) PreloadFunc {
	return func(ctx context.Context, page int) error {
		c.mu.Lock()
		if c.calls == nil {
			c.calls = make(map[int]int)
		}
		c.calls[page]++
		c.mu.Unlock()
		if release != nil {
			select {
			case <-release:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if fail[page] {
			return fmt.Errorf("page %d unavailable", page)
		}
		return nil
	}
}

func (c *pageCounter) count(page int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[page]
}

func newTestPreloader(fn PreloadFunc, cfg Config, opts ...Option) *Preloader {
	opts = append([]Option{WithLogger(logger.Discard())}, opts...)
	return New(fn, cfg, opts...)
}

func TestShouldPreload(t *testing.T) {
	p := newTestPreloader(func(context.Context, int) error { return nil }, DefaultConfig())
	defer p.Close()

	p.SetPosition(1, 10)
	assert.False(t, p.ShouldPreload())
	p.SetPosition(8, 10)
	assert.True(t, p.ShouldPreload())

	disabled := newTestPreloader(func(context.Context, int) error { return nil }, Config{Threshold: 2})
	defer disabled.Close()
	disabled.SetPosition(9, 10)
	assert.False(t, disabled.ShouldPreload())
	assert.Nil(t, disabled.PreloadNextPages(context.Background()))
}

func TestPreloadNextPagesIsCappedAtLastPage(t *testing.T) {
	var c pageCounter
	p := newTestPreloader(c.fn(nil, nil), Config{Enabled: true, Threshold: 2, MaxPreloadPages: 3})
	defer p.Close()

	p.SetPosition(9, 10)
	started := p.PreloadNextPages(context.Background())
	assert.Equal(t, []int{10}, started)
	p.Wait()
	assert.True(t, p.IsPreloaded(10))
	assert.Equal(t, []int{10}, p.Preloaded())
	assert.Empty(t, p.InFlight())
}

func TestPreloadIsIdempotentWhileInFlight(t *testing.T) {
	var c pageCounter
	release := make(chan struct{})
	p := newTestPreloader(c.fn(release, nil), DefaultConfig())
	defer p.Close()

	p.SetPosition(8, 10)
	first := p.PreloadNextPages(context.Background())
	assert.Equal(t, []int{9, 10}, first)
	assert.Equal(t, []int{9, 10}, p.InFlight())

	second := p.PreloadNextPages(context.Background())
	assert.Empty(t, second)

	close(release)
	p.Wait()

	third := p.PreloadNextPages(context.Background())
	assert.Empty(t, third, "loaded pages are not requested again")
	assert.Equal(t, 1, c.count(9))
	assert.Equal(t, 1, c.count(10))
}

func TestFailedPageCanBeRetried(t *testing.T) {
	var c pageCounter
	p := newTestPreloader(c.fn(nil, map[int]bool{10: true}), DefaultConfig())
	defer p.Close()

	p.SetPosition(8, 10)
	p.PreloadNextPages(context.Background())
	p.Wait()
	assert.Equal(t, []int{9}, p.Preloaded())
	assert.Empty(t, p.InFlight())

	assert.Equal(t, []int{10}, p.PreloadNextPages(context.Background()))
	p.Wait()
	assert.Equal(t, 2, c.count(10))
}

func TestResetDiscardsStaleLoads(t *testing.T) {
	var c pageCounter
	release := make(chan struct{})
	p := newTestPreloader(c.fn(release, nil), DefaultConfig())
	defer p.Close()

	p.SetPosition(9, 10)
	p.PreloadNextPages(context.Background())
	p.Reset()
	assert.Empty(t, p.InFlight())

	close(release)
	p.Wait()
	assert.False(t, p.IsPreloaded(10))
}

func spanNames(rec *metrics.Recorder) []string {
	var names []string
	for _, m := range rec.PerformanceMetrics() {
		names = append(names, m.Name)
	}
	return names
}

func TestSharedRecorderKeepsSpansApart(t *testing.T) {
	rec := metrics.NewRecorder(metrics.DefaultRecorderConfig())
	defer rec.Close()

	var patients, rdv pageCounter
	release := make(chan struct{})
	cfg := Config{Enabled: true, Threshold: 5, MaxPreloadPages: 1}
	p1 := newTestPreloader(patients.fn(release, nil), cfg, WithName("patients"), WithRecorder(rec))
	defer p1.Close()
	p2 := newTestPreloader(rdv.fn(release, nil), cfg, WithName("rdv"), WithRecorder(rec))
	defer p2.Close()

	p1.SetPosition(1, 2)
	p2.SetPosition(1, 2)
	require.Equal(t, []int{2}, p1.PreloadNextPages(context.Background()))
	require.Equal(t, []int{2}, p2.PreloadNextPages(context.Background()))
	require.Eventually(t, func() bool {
		return patients.count(2) == 1 && rdv.count(2) == 1
	}, 2*time.Second, 5*time.Millisecond)

	close(release)
	p1.Wait()
	p2.Wait()
	assert.ElementsMatch(t, []string{"preload:patients:page:2", "preload:rdv:page:2"}, spanNames(rec))
}

func TestResetKeepsStaleSpanApart(t *testing.T) {
	rec := metrics.NewRecorder(metrics.DefaultRecorderConfig())
	defer rec.Close()

	var c pageCounter
	release := make(chan struct{})
	p := newTestPreloader(c.fn(release, nil), Config{Enabled: true, Threshold: 5, MaxPreloadPages: 1},
		WithName("soins"), WithRecorder(rec))
	defer p.Close()

	p.SetPosition(1, 2)
	require.Equal(t, []int{2}, p.PreloadNextPages(context.Background()))
	require.Eventually(t, func() bool { return c.count(2) == 1 }, 2*time.Second, 5*time.Millisecond)

	p.Reset()
	require.Equal(t, []int{2}, p.PreloadNextPages(context.Background()))
	require.Eventually(t, func() bool { return c.count(2) == 2 }, 2*time.Second, 5*time.Millisecond)

	close(release)
	p.Wait()
	assert.ElementsMatch(t, []string{"preload:soins:page:2", "preload:soins:page:2#1"}, spanNames(rec))
	assert.True(t, p.IsPreloaded(2))
}

func TestCloseCancelsRunningLoads(t *testing.T) {
	var c pageCounter
	p := newTestPreloader(c.fn(make(chan struct{}), nil), DefaultConfig())

	p.SetPosition(9, 10)
	require.Equal(t, []int{10}, p.PreloadNextPages(context.Background()))

	done := make(chan struct{})
	go func() {
		p.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not cancel the running load")
	}
	assert.False(t, p.IsPreloaded(10))
}

func TestCircuitBreakerShortCircuits(t *testing.T) {
	var calls atomic.Int32
	fn := func(context.Context, int) error {
		calls.Add(1)
		return errors.New("source down")
	}
	cb := circuitbreaker.New(circuitbreaker.Config{Name: "preload-test", FailureThreshold: 1, Timeout: time.Hour})
	p := newTestPreloader(fn, Config{Enabled: true, Threshold: 5, MaxPreloadPages: 1}, WithCircuitBreaker(cb))
	defer p.Close()

	p.SetPosition(1, 5)
	p.PreloadNextPages(context.Background())
	p.Wait()
	assert.Equal(t, circuitbreaker.StateOpen, cb.GetState())

	p.PreloadNextPages(context.Background())
	p.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestCachePageLoader(t *testing.T) {
	store := cache.New[[]string](cache.Config{Key: "preload-test"}, cache.WithLogger(logger.Discard()))
	defer store.Close()

	var fetches atomic.Int32
	load := CachePageLoader(store, func(page int) string { return fmt.Sprintf("soins:page:%d", page) },
		func(ctx context.Context, page int) ([]string, error) {
			fetches.Add(1)
			return []string{fmt.Sprintf("soin-%d", page)}, nil
		}, cache.WithTags("soins"))

	p := newTestPreloader(load, DefaultConfig())
	defer p.Close()
	p.SetPosition(3, 4)
	p.PreloadNextPages(context.Background())
	p.Wait()

	v, ok := store.Get("soins:page:4")
	require.True(t, ok)
	assert.Equal(t, []string{"soin-4"}, v)
	assert.Equal(t, int32(1), fetches.Load())
}
