package virtual

import "sync"

// Config sizes a Window.
type Config struct {
	ItemHeight      float64 // used when no HeightFunc is given
	ContainerHeight float64
	Overscan        int
	// EndReachedThreshold is the scrolled fraction of TotalHeight that fires
	// OnEndReached, in (0, 1].
	EndReachedThreshold float64
}

// DefaultConfig returns the standard overscan and threshold.
func DefaultConfig() Config {
	return Config{ItemHeight: 50, Overscan: 5, EndReachedThreshold: 0.8}
}

// Mode tells the renderer what to draw.
type Mode int

const (
	ModeItems Mode = iota
	ModeLoading
	ModeEmpty
)

func (m Mode) String() string {
	switch m {
	case ModeLoading:
		return "loading"
	case ModeEmpty:
		return "empty"
	default:
		return "items"
	}
}

// Positioned is a visible item with its absolute placement.
type Positioned[T any] struct {
	Index  int     `json:"index"`
	Item   T       `json:"item"`
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// ItemRenderer turns an item into output of type R.
type ItemRenderer[T, R any] func(item T, index int) R

// Rendered is one rendered item with its placement.
type Rendered[R any] struct {
	Index  int     `json:"index"`
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
	Value  R       `json:"value"`
}

// Option customises a Window.
type Option[T any] func(*Window[T])

func WithHeightFunc[T any](fn HeightFunc[T]) Option[T] {
	return func(w *Window[T]) { w.height = fn }
}

// WithOnScroll registers a callback run after every OnScroll.
func WithOnScroll[T any](fn func(scrollTop float64)) Option[T] {
	return func(w *Window[T]) { w.onScroll = fn }
}

// WithOnEndReached registers a callback fired once each time scrolling
// crosses the end threshold from below.
func WithOnEndReached[T any](fn func()) Option[T] {
	return func(w *Window[T]) { w.onEndReached = fn }
}

// Window tracks the visible range of a scrolling collection. Callbacks run
// after the window's lock is released.
type Window[T any] struct {
	mu           sync.Mutex
	cfg          Config
	items        []T
	height       HeightFunc[T]
	layout       Layout
	scrollTop    float64
	rng          Range
	loading      bool
	armed        bool
	onScroll     func(float64)
	onEndReached func()
}

// NewWindow creates a window over items.
func NewWindow[T any](items []T, cfg Config, opts ...Option[T]) *Window[T] {
	def := DefaultConfig()
	if cfg.ItemHeight <= 0 {
		cfg.ItemHeight = def.ItemHeight
	}
	if cfg.Overscan < 0 {
		cfg.Overscan = 0
	}
	if cfg.EndReachedThreshold <= 0 || cfg.EndReachedThreshold > 1 {
		cfg.EndReachedThreshold = def.EndReachedThreshold
	}
	if cfg.ContainerHeight < 0 {
		cfg.ContainerHeight = 0
	}
	w := &Window[T]{cfg: cfg, items: items, armed: true}
	for _, opt := range opts {
		opt(w)
	}
	if w.height == nil {
		w.height = FixedHeight[T](cfg.ItemHeight)
	}
	w.mu.Lock()
	w.relayoutLocked()
	w.mu.Unlock()
	return w
}

// SetItems replaces the collection and re-arms the end-reached callback.
func (w *Window[T]) SetItems(items []T) {
	w.mu.Lock()
	w.items = items
	w.armed = true
	w.relayoutLocked()
	w.mu.Unlock()
}

func (w *Window[T]) SetContainerHeight(h float64) {
	if h < 0 {
		h = 0
	}
	w.mu.Lock()
	w.cfg.ContainerHeight = h
	w.rangeLocked()
	w.mu.Unlock()
}

func (w *Window[T]) SetHeightFunc(fn HeightFunc[T]) {
	if fn == nil {
		fn = FixedHeight[T](w.cfg.ItemHeight)
	}
	w.mu.Lock()
	w.height = fn
	w.relayoutLocked()
	w.mu.Unlock()
}

// Recompute rebuilds the layout, for items mutated in place.
func (w *Window[T]) Recompute() {
	w.mu.Lock()
	w.relayoutLocked()
	w.mu.Unlock()
}

// OnScroll moves the viewport and fires the scroll and end-reached callbacks.
func (w *Window[T]) OnScroll(scrollTop float64) {
	if scrollTop < 0 {
		scrollTop = 0
	}
	w.mu.Lock()
	w.scrollTop = scrollTop
	w.rangeLocked()
	fire := false
	if w.layout.TotalHeight > 0 {
		ratio := (scrollTop + w.cfg.ContainerHeight) / w.layout.TotalHeight
		if ratio >= w.cfg.EndReachedThreshold {
			fire = w.armed
			w.armed = false
		} else {
			w.armed = true
		}
	}
	onScroll, onEnd := w.onScroll, w.onEndReached
	w.mu.Unlock()

	if onScroll != nil {
		onScroll(scrollTop)
	}
	if fire && onEnd != nil {
		onEnd()
	}
}

func (w *Window[T]) relayoutLocked() {
	w.layout = BuildLayout(w.items, w.height)
	w.rangeLocked()
}

func (w *Window[T]) rangeLocked() {
	w.rng = w.layout.VisibleRange(w.scrollTop, w.cfg.ContainerHeight, w.cfg.Overscan)
}

func (w *Window[T]) Range() Range {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rng
}

func (w *Window[T]) TotalHeight() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.layout.TotalHeight
}

func (w *Window[T]) ScrollTop() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.scrollTop
}

// Visible returns the items in the current range with their placement.
func (w *Window[T]) Visible() []Positioned[T] {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.rng.Empty() {
		return nil
	}
	out := make([]Positioned[T], 0, w.rng.Len())
	for i := w.rng.Start; i <= w.rng.End; i++ {
		out = append(out, Positioned[T]{
			Index:  i,
			Item:   w.items[i],
			Top:    w.layout.Positions[i],
			Height: w.layout.Heights[i],
		})
	}
	return out
}

// SetLoading switches the window into or out of the loading mode.
func (w *Window[T]) SetLoading(loading bool) {
	w.mu.Lock()
	w.loading = loading
	w.mu.Unlock()
}

func (w *Window[T]) Mode() Mode {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case w.loading:
		return ModeLoading
	case len(w.items) == 0:
		return ModeEmpty
	}
	return ModeItems
}

// Render applies r to every visible item. Nothing is rendered outside
// ModeItems.
func Render[T, R any](w *Window[T], r ItemRenderer[T, R]) []Rendered[R] {
	if w.Mode() != ModeItems {
		return nil
	}
	visible := w.Visible()
	out := make([]Rendered[R], len(visible))
	for i, p := range visible {
		out[i] = Rendered[R]{Index: p.Index, Top: p.Top, Height: p.Height, Value: r(p.Item, p.Index)}
	}
	return out
}
