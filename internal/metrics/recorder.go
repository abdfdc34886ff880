package metrics

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// PerformanceMetric is a completed timing span.
type PerformanceMetric struct {
	Name      string         `json:"name"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	Duration  time.Duration  `json:"duration"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NetworkMetric describes one outbound request. Status 0 means the request
// failed before a response was received; Size 0 means unknown.
type NetworkMetric struct {
	URL       string        `json:"url"`
	Method    string        `json:"method"`
	Duration  time.Duration `json:"duration"`
	Status    int           `json:"status"`
	Size      int64         `json:"size"`
	Timestamp time.Time     `json:"timestamp"`
}

// PaginationMetric describes one recompute of a paginated view.
type PaginationMetric struct {
	Component   string        `json:"component"`
	TotalItems  int           `json:"total_items"`
	PageSize    int           `json:"page_size"`
	CurrentPage int           `json:"current_page"`
	SearchTerm  string        `json:"search_term,omitempty"`
	RenderTime  time.Duration `json:"render_time"`
	Timestamp   time.Time     `json:"timestamp"`
}

// Operation names a span and its average duration.
type Operation struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
}

// Stats summarises the trailing StatsWindow.
type Stats struct {
	Window                 time.Duration            `json:"window"`
	Spans                  int                      `json:"spans"`
	AverageDuration        time.Duration            `json:"average_duration"`
	Slowest                *Operation               `json:"slowest,omitempty"`
	Fastest                *Operation               `json:"fastest,omitempty"`
	Requests               int                      `json:"requests"`
	ErrorRate              float64                  `json:"error_rate"`
	TotalBytes             int64                    `json:"total_bytes"`
	AverageNetworkDuration time.Duration            `json:"average_network_duration"`
	Renders                int                      `json:"renders"`
	AverageRenderTime      map[string]time.Duration `json:"average_render_time"`
}

// RecorderConfig bounds the recorder's buffers.
type RecorderConfig struct {
	MaxPerformance int
	MaxNetwork     int
	MaxPagination  int
	StatsWindow    time.Duration
	Retention      time.Duration
	// PruneInterval enables periodic ClearOldMetrics once Start is called; 0 disables it.
	PruneInterval time.Duration
}

// DefaultRecorderConfig returns the standard buffer sizes and windows.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		MaxPerformance: 100,
		MaxNetwork:     100,
		MaxPagination:  50,
		StatsWindow:    5 * time.Minute,
		Retention:      10 * time.Minute,
	}
}

// RecorderOption customises a Recorder.
type RecorderOption func(*Recorder)

// WithRecorderClock replaces time.Now, mainly for tests.
func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

type activeSpan struct {
	start    time.Time
	metadata map[string]any
}

// Recorder collects performance spans, network requests and pagination
// renders into bounded buffers. A nil *Recorder is a valid no-op recorder.
type Recorder struct {
	mu     sync.Mutex
	cfg    RecorderConfig
	now    func() time.Time
	active map[string]activeSpan
	perf   *ring[PerformanceMetric]
	net    *ring[NetworkMetric]
	pag    *ring[PaginationMetric]

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRecorder creates a recorder; zero config fields take their defaults.
func NewRecorder(cfg RecorderConfig, opts ...RecorderOption) *Recorder {
	def := DefaultRecorderConfig()
	if cfg.MaxPerformance <= 0 {
		cfg.MaxPerformance = def.MaxPerformance
	}
	if cfg.MaxNetwork <= 0 {
		cfg.MaxNetwork = def.MaxNetwork
	}
	if cfg.MaxPagination <= 0 {
		cfg.MaxPagination = def.MaxPagination
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = def.StatsWindow
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	r := &Recorder{
		cfg:    cfg,
		now:    time.Now,
		active: make(map[string]activeSpan),
		perf:   newRing[PerformanceMetric](cfg.MaxPerformance),
		net:    newRing[NetworkMetric](cfg.MaxNetwork),
		pag:    newRing[PaginationMetric](cfg.MaxPagination),
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StartMetric opens a span. Starting a name that is already open restarts it.
func (r *Recorder) StartMetric(name string, metadata map[string]any) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.active[name] = activeSpan{start: r.now(), metadata: metadata}
	r.mu.Unlock()
}

// EndMetric closes the span and records it. Ending an unknown name is a no-op
// returning false.
func (r *Recorder) EndMetric(name string) (time.Duration, bool) {
	if r == nil {
		return 0, false
	}
	r.mu.Lock()
	span, ok := r.active[name]
	if !ok {
		r.mu.Unlock()
		return 0, false
	}
	delete(r.active, name)
	end := r.now()
	d := end.Sub(span.start)
	r.perf.push(PerformanceMetric{
		Name:      name,
		StartTime: span.start,
		EndTime:   end,
		Duration:  d,
		Metadata:  span.metadata,
	})
	r.mu.Unlock()

	OperationDuration.WithLabelValues(name).Observe(d.Seconds())
	return d, true
}

// Measure times fn. The span is recorded even when fn fails.
func (r *Recorder) Measure(name string, fn func() error, metadata map[string]any) error {
	r.StartMetric(name, metadata)
	defer r.EndMetric(name)
	return fn()
}

// MeasureValue is Measure for functions returning a value.
func MeasureValue[T any](r *Recorder, name string, fn func() (T, error), metadata map[string]any) (T, error) {
	r.StartMetric(name, metadata)
	defer r.EndMetric(name)
	return fn()
}

// RecordNetworkMetric appends m, stamping it when Timestamp is zero.
func (r *Recorder) RecordNetworkMetric(m NetworkMetric) {
	if r == nil {
		return
	}
	r.mu.Lock()
	if m.Timestamp.IsZero() {
		m.Timestamp = r.now()
	}
	r.net.push(m)
	r.mu.Unlock()

	NetworkRequestDuration.WithLabelValues(m.Method, strconv.Itoa(m.Status)).Observe(m.Duration.Seconds())
}

// RecordPaginationMetric appends m, stamping it when Timestamp is zero.
func (r *Recorder) RecordPaginationMetric(m PaginationMetric) {
	if r == nil {
		return
	}
	r.mu.Lock()
	if m.Timestamp.IsZero() {
		m.Timestamp = r.now()
	}
	r.pag.push(m)
	r.mu.Unlock()

	PaginationRenderDuration.WithLabelValues(m.Component).Observe(m.RenderTime.Seconds())
}

// PerformanceMetrics returns the recorded spans, oldest first.
func (r *Recorder) PerformanceMetrics() []PerformanceMetric {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.perf.items()
}

// NetworkMetrics returns the recorded requests, oldest first.
func (r *Recorder) NetworkMetrics() []NetworkMetric {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.net.items()
}

// PaginationMetrics returns the recorded renders, oldest first.
func (r *Recorder) PaginationMetrics() []PaginationMetric {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pag.items()
}

// Stats aggregates the entries recorded within StatsWindow.
func (r *Recorder) Stats() Stats {
	if r == nil {
		return Stats{AverageRenderTime: map[string]time.Duration{}}
	}
	r.mu.Lock()
	cutoff := r.now().Add(-r.cfg.StatsWindow)
	perf := r.perf.items()
	netm := r.net.items()
	pag := r.pag.items()
	window := r.cfg.StatsWindow
	r.mu.Unlock()

	st := Stats{Window: window, AverageRenderTime: map[string]time.Duration{}}

	type agg struct {
		total time.Duration
		n     int
	}
	byName := map[string]*agg{}
	var order []string
	var total time.Duration
	for _, m := range perf {
		if m.EndTime.Before(cutoff) {
			continue
		}
		st.Spans++
		total += m.Duration
		a, ok := byName[m.Name]
		if !ok {
			a = &agg{}
			byName[m.Name] = a
			order = append(order, m.Name)
		}
		a.total += m.Duration
		a.n++
	}
	if st.Spans > 0 {
		st.AverageDuration = total / time.Duration(st.Spans)
	}
	for _, name := range order {
		a := byName[name]
		op := Operation{Name: name, Duration: a.total / time.Duration(a.n)}
		if st.Slowest == nil || op.Duration > st.Slowest.Duration {
			s := op
			st.Slowest = &s
		}
		if st.Fastest == nil || op.Duration < st.Fastest.Duration {
			f := op
			st.Fastest = &f
		}
	}

	var netTotal time.Duration
	failed := 0
	for _, m := range netm {
		if m.Timestamp.Before(cutoff) {
			continue
		}
		st.Requests++
		netTotal += m.Duration
		st.TotalBytes += m.Size
		if m.Status == 0 || m.Status >= 400 {
			failed++
		}
	}
	if st.Requests > 0 {
		st.AverageNetworkDuration = netTotal / time.Duration(st.Requests)
		st.ErrorRate = float64(failed) / float64(st.Requests)
	}

	renders := map[string]*agg{}
	for _, m := range pag {
		if m.Timestamp.Before(cutoff) {
			continue
		}
		st.Renders++
		a, ok := renders[m.Component]
		if !ok {
			a = &agg{}
			renders[m.Component] = a
		}
		a.total += m.RenderTime
		a.n++
	}
	for comp, a := range renders {
		st.AverageRenderTime[comp] = a.total / time.Duration(a.n)
	}
	return st
}

// ClearOldMetrics drops entries older than Retention and returns how many
// were removed.
func (r *Recorder) ClearOldMetrics() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	cutoff := r.now().Add(-r.cfg.Retention)
	n := r.perf.retain(func(m PerformanceMetric) bool { return !m.EndTime.Before(cutoff) })
	n += r.net.retain(func(m NetworkMetric) bool { return !m.Timestamp.Before(cutoff) })
	n += r.pag.retain(func(m PaginationMetric) bool { return !m.Timestamp.Before(cutoff) })
	r.mu.Unlock()

	if n > 0 {
		MetricsPruned.Add(float64(n))
	}
	return n
}

// Reset empties every buffer and drops open spans.
func (r *Recorder) Reset() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.perf.reset()
	r.net.reset()
	r.pag.reset()
	r.active = make(map[string]activeSpan)
	r.mu.Unlock()
}

// Start runs ClearOldMetrics every PruneInterval until ctx is done or Close
// is called. It returns immediately when pruning is disabled.
func (r *Recorder) Start(ctx context.Context) {
	if r == nil || r.cfg.PruneInterval <= 0 {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.cfg.PruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.ClearOldMetrics()
			case <-r.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close stops the pruning loop. Safe to call more than once.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.stopOnce.Do(func() { close(r.stop) })
	r.wg.Wait()
}
