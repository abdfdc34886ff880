package collection

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/debounce"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/metrics"
)

// ViewConfig configures a View.
type ViewConfig[T any] struct {
	// Field reads item fields for search, filters and sorting. Defaults to
	// Lookup, which handles maps and structs.
	Field        FieldFunc[T]
	SearchFields []string
	SortKey      string
	SortDir      SortDirection
	// Compare replaces the SortKey comparison when set.
	Compare        func(a, b T) int
	Pagination     PaginationConfig
	SearchDebounce time.Duration
	// OnChange runs after a debounced search term has been applied.
	OnChange func(Info)

	Recorder  *metrics.Recorder
	Component string
}

// View runs filter, stable sort and paginate over an in-memory collection.
// Every mutator recomputes synchronously; Recompute is only needed when the
// caller changed items in place.
type View[T any] struct {
	mu  sync.Mutex
	cfg ViewConfig[T]

	items      []T
	searchTerm string
	filters    map[string]any
	sortKey    string
	sortDir    SortDirection
	pager      *Paginator
	filtered   []T
	page       []T

	debouncer *debounce.Debouncer
}

// NewView creates a view over items.
func NewView[T any](items []T, cfg ViewConfig[T]) *View[T] {
	if cfg.Field == nil {
		cfg.Field = func(item T, field string) any { return Lookup(item, field) }
	}
	if cfg.Component == "" {
		cfg.Component = "view"
	}
	v := &View[T]{
		cfg:       cfg,
		items:     items,
		filters:   make(map[string]any),
		sortKey:   cfg.SortKey,
		sortDir:   cfg.SortDir,
		pager:     NewPaginator(cfg.Pagination),
		debouncer: debounce.New(cfg.SearchDebounce),
	}
	v.mu.Lock()
	v.recomputeLocked()
	if cfg.Pagination.InitialPage > 1 {
		v.pager.SetPage(cfg.Pagination.InitialPage)
		v.repageLocked()
	}
	v.mu.Unlock()
	return v
}

// SetItems replaces the collection. The current page is kept when still valid.
func (v *View[T]) SetItems(items []T) {
	v.mu.Lock()
	v.items = items
	v.recomputeLocked()
	v.mu.Unlock()
}

// SetSearchTerm applies term immediately. A changed term returns to page 1.
func (v *View[T]) SetSearchTerm(term string) {
	v.mu.Lock()
	v.setSearchTermLocked(term)
	v.mu.Unlock()
}

func (v *View[T]) setSearchTermLocked(term string) {
	if term == v.searchTerm {
		return
	}
	v.searchTerm = term
	v.pager.Reset()
	v.recomputeLocked()
}

// SetSearchTermDebounced applies term once it has been stable for the
// configured delay, then calls OnChange.
func (v *View[T]) SetSearchTermDebounced(term string) {
	v.debouncer.Trigger(func() {
		v.mu.Lock()
		v.setSearchTermLocked(term)
		info := v.pager.Info()
		onChange := v.cfg.OnChange
		v.mu.Unlock()
		if onChange != nil {
			onChange(info)
		}
	})
}

// SetFilter sets an equality filter on field, or a membership filter when
// value is a slice. nil, "" and "all" remove the filter.
func (v *View[T]) SetFilter(field string, value any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if isNoopFilter(value) {
		if _, ok := v.filters[field]; !ok {
			return
		}
		delete(v.filters, field)
	} else {
		v.filters[field] = value
	}
	v.pager.Reset()
	v.recomputeLocked()
}

// ClearFilters removes every filter and returns to page 1.
func (v *View[T]) ClearFilters() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.filters) == 0 {
		return
	}
	v.filters = make(map[string]any)
	v.pager.Reset()
	v.recomputeLocked()
}

// SetSort orders by key. An empty key keeps input order.
func (v *View[T]) SetSort(key string, dir SortDirection) {
	v.mu.Lock()
	v.sortKey, v.sortDir = key, dir
	v.recomputeLocked()
	v.mu.Unlock()
}

func (v *View[T]) SetPage(page int)     { v.pageOp(func() { v.pager.SetPage(page) }) }
func (v *View[T]) SetPageSize(size int) { v.pageOp(func() { v.pager.SetPageSize(size) }) }
func (v *View[T]) NextPage()            { v.pageOp(v.pager.NextPage) }
func (v *View[T]) PrevPage()            { v.pageOp(v.pager.PrevPage) }
func (v *View[T]) GoToFirstPage()       { v.pageOp(v.pager.GoToFirstPage) }
func (v *View[T]) GoToLastPage()        { v.pageOp(v.pager.GoToLastPage) }

func (v *View[T]) pageOp(op func()) {
	v.mu.Lock()
	op()
	v.repageLocked()
	v.mu.Unlock()
}

// Recompute reruns the whole pipeline.
func (v *View[T]) Recompute() {
	v.mu.Lock()
	v.recomputeLocked()
	v.mu.Unlock()
}

// Page returns the items of the current page.
func (v *View[T]) Page() []T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.page)
}

// Filtered returns every item passing the filters, sorted.
func (v *View[T]) Filtered() []T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.filtered)
}

func (v *View[T]) Info() Info { return v.pager.Info() }

func (v *View[T]) PageSizeOptions() []int { return v.pager.PageSizeOptions() }

func (v *View[T]) SearchTerm() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.searchTerm
}

// Close drops any pending debounced search.
func (v *View[T]) Close() {
	v.debouncer.Cancel()
}

func (v *View[T]) recomputeLocked() {
	start := time.Now()
	term := strings.ToLower(v.searchTerm)

	filtered := make([]T, 0, len(v.items))
	for _, item := range v.items {
		if v.matchesSearch(item, term) && v.matchesFilters(item) {
			filtered = append(filtered, item)
		}
	}

	if cmp := v.comparator(); cmp != nil {
		slices.SortStableFunc(filtered, cmp)
	}

	v.filtered = filtered
	v.pager.SetTotalItems(len(filtered))
	v.sliceLocked()
	v.record(time.Since(start))
}

func (v *View[T]) repageLocked() {
	start := time.Now()
	v.sliceLocked()
	v.record(time.Since(start))
}

func (v *View[T]) sliceLocked() {
	lo, hi := v.pager.Bounds()
	v.page = v.filtered[lo:hi]
}

func (v *View[T]) record(d time.Duration) {
	if v.cfg.Recorder == nil {
		return
	}
	s := v.pager.State()
	v.cfg.Recorder.RecordPaginationMetric(metrics.PaginationMetric{
		Component:   v.cfg.Component,
		TotalItems:  s.TotalItems,
		PageSize:    s.PageSize,
		CurrentPage: s.CurrentPage,
		SearchTerm:  v.searchTerm,
		RenderTime:  d,
	})
}

// matchesSearch keeps items where any search field contains term. With no
// search fields configured the term is ignored.
func (v *View[T]) matchesSearch(item T, term string) bool {
	if term == "" {
		return true
	}
	for _, f := range v.cfg.SearchFields {
		val := v.cfg.Field(item, f)
		if val == nil {
			continue
		}
		if strings.Contains(strings.ToLower(fmt.Sprint(val)), term) {
			return true
		}
	}
	return false
}

func (v *View[T]) matchesFilters(item T) bool {
	for field, want := range v.filters {
		got := v.cfg.Field(item, field)
		if !filterMatches(got, want) {
			return false
		}
	}
	return true
}

func (v *View[T]) comparator() func(a, b T) int {
	var base func(a, b T) int
	switch {
	case v.cfg.Compare != nil:
		base = v.cfg.Compare
	case v.sortKey != "":
		key := v.sortKey
		base = func(a, b T) int { return CompareValues(v.cfg.Field(a, key), v.cfg.Field(b, key)) }
	default:
		return nil
	}
	if v.sortDir == SortDesc {
		return func(a, b T) int { return -base(a, b) }
	}
	return base
}

func isNoopFilter(value any) bool {
	switch x := value.(type) {
	case nil:
		return true
	case string:
		return x == "" || x == "all"
	}
	return false
}

func filterMatches(got, want any) bool {
	rv := reflect.ValueOf(want)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		for i := 0; i < rv.Len(); i++ {
			if valuesEqual(got, rv.Index(i).Interface()) {
				return true
			}
		}
		return false
	}
	return valuesEqual(got, want)
}
