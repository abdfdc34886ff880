package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/cache"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/collection"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/config"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/metrics"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/preload"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/source"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/virtual"
)

// Collection is one catalogue entry with its caches.
type Collection struct {
	def       config.Collection
	cfg       *config.Config
	src       Fetcher
	rec       *metrics.Recorder
	items     *cache.Store[[]source.Record] // nil without URL
	pages     *cache.Store[[]source.Record] // nil without PageURL
	preloader *preload.Preloader
}

func (c *Collection) Name() string                  { return c.def.Name }
func (c *Collection) Definition() config.Collection { return c.def }
func (c *Collection) Paged() bool                   { return c.pages != nil }

// Items returns the whole collection, from cache unless refresh is set.
func (c *Collection) Items(ctx context.Context, refresh bool) ([]source.Record, error) {
	if c.items == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoURL, c.def.Name)
	}
	var opts []cache.EntryOption
	if refresh {
		opts = append(opts, cache.ForceRefresh())
	}
	return c.items.FetchWithCache(ctx, allKey, func(ctx context.Context) ([]source.Record, error) {
		return c.src.FetchAll(ctx, c.def.URL)
	}, opts...)
}

// Query filters, sorts and paginates the whole collection.
type Query struct {
	Search   string
	SortKey  string // empty means the collection default
	SortDir  collection.SortDirection
	Page     int
	PageSize int
	Filters  map[string]any
	Refresh  bool
}

// QueryResult is one page of a query.
type QueryResult struct {
	Collection      string          `json:"collection"`
	Items           []source.Record `json:"items"`
	Pagination      collection.Info `json:"pagination"`
	PageSizeOptions []int           `json:"page_size_options"`
	Search          string          `json:"search,omitempty"`
	SortKey         string          `json:"sort_key,omitempty"`
	SortDir         string          `json:"sort_dir"`
	Filters         map[string]any  `json:"filters,omitempty"`
}

func (c *Collection) view(items []source.Record, q Query) *collection.View[source.Record] {
	sortKey, sortDir := q.SortKey, q.SortDir
	if sortKey == "" {
		sortKey = c.def.SortKey
		if c.def.SortDesc {
			sortDir = collection.SortDesc
		}
	}
	v := collection.NewView(items, collection.ViewConfig[source.Record]{
		SearchFields: c.def.SearchFields,
		SortKey:      sortKey,
		SortDir:      sortDir,
		Pagination: collection.PaginationConfig{
			InitialPageSize: firstPositive(q.PageSize, c.def.PageSize, c.cfg.PageSizeDefault),
			PageSizeOptions: c.cfg.PageSizeOptions,
		},
		Recorder:  c.rec,
		Component: "collection:" + c.def.Name,
	})
	v.SetSearchTerm(q.Search)
	for field, value := range q.Filters {
		v.SetFilter(field, value)
	}
	return v
}

// Query runs q over the cached collection.
func (c *Collection) Query(ctx context.Context, q Query) (QueryResult, error) {
	items, err := c.Items(ctx, q.Refresh)
	if err != nil {
		return QueryResult{}, err
	}
	v := c.view(items, q)
	defer v.Close()
	if q.Page > 0 {
		v.SetPage(q.Page)
	}
	page := v.Page()
	if page == nil {
		page = []source.Record{}
	}
	res := QueryResult{
		Collection:      c.def.Name,
		Items:           page,
		Pagination:      v.Info(),
		PageSizeOptions: v.PageSizeOptions(),
		Search:          v.SearchTerm(),
		SortKey:         q.SortKey,
		SortDir:         q.SortDir.String(),
		Filters:         q.Filters,
	}
	if res.SortKey == "" {
		res.SortKey = c.def.SortKey
	}
	return res, nil
}

// WindowQuery positions a virtual window over the filtered collection.
type WindowQuery struct {
	Query
	ScrollTop       float64
	ContainerHeight float64
	ItemHeight      float64 // 0 means the collection or global default
	Overscan        int     // negative means the global default
}

// WindowResult is what a scrolling client renders.
type WindowResult struct {
	Collection  string                              `json:"collection"`
	Range       virtual.Range                       `json:"range"`
	TotalItems  int                                 `json:"total_items"`
	TotalHeight float64                             `json:"total_height"`
	ScrollTop   float64                             `json:"scroll_top"`
	Mode        string                              `json:"mode"`
	EndReached  bool                                `json:"end_reached"`
	Items       []virtual.Positioned[source.Record] `json:"items"`
}

// Window returns the visible slice of the filtered, sorted collection at
// q.ScrollTop. EndReached reports whether scrolling there from the top
// crosses the end threshold.
func (c *Collection) Window(ctx context.Context, q WindowQuery) (WindowResult, error) {
	items, err := c.Items(ctx, q.Refresh)
	if err != nil {
		return WindowResult{}, err
	}
	v := c.view(items, q.Query)
	filtered := v.Filtered()
	v.Close()

	overscan := q.Overscan
	if overscan < 0 {
		overscan = c.cfg.VirtualOverscan
	}
	var endReached bool
	w := virtual.NewWindow(filtered, virtual.Config{
		ItemHeight:          firstPositive(q.ItemHeight, c.def.ItemHeight, c.cfg.VirtualItemHeight),
		ContainerHeight:     q.ContainerHeight,
		Overscan:            overscan,
		EndReachedThreshold: c.cfg.VirtualEndThreshold,
	}, virtual.WithOnEndReached[source.Record](func() { endReached = true }))
	w.OnScroll(q.ScrollTop)

	visible := w.Visible()
	if visible == nil {
		visible = []virtual.Positioned[source.Record]{}
	}
	return WindowResult{
		Collection:  c.def.Name,
		Range:       w.Range(),
		TotalItems:  len(filtered),
		TotalHeight: w.TotalHeight(),
		ScrollTop:   w.ScrollTop(),
		Mode:        w.Mode().String(),
		EndReached:  endReached,
		Items:       visible,
	}, nil
}

// PageResult is one remotely fetched page.
type PageResult struct {
	Collection string          `json:"collection"`
	Page       int             `json:"page"`
	TotalPages int             `json:"total_pages,omitempty"`
	Items      []source.Record `json:"items"`
	// Preloaded is true when the page had been warmed before this request.
	Preloaded  bool  `json:"preloaded"`
	Preloading []int `json:"preloading,omitempty"`
}

// Page returns one remote page through the page cache and starts preloading
// the pages that follow it.
func (c *Collection) Page(ctx context.Context, page int, refresh bool) (PageResult, error) {
	if c.pages == nil {
		return PageResult{}, fmt.Errorf("%w: %s", ErrNotPaged, c.def.Name)
	}
	page = max(page, 1)
	if c.def.TotalPages > 0 {
		page = min(page, c.def.TotalPages)
	}
	warmed := c.preloader.IsPreloaded(page)

	var opts []cache.EntryOption
	if refresh {
		opts = append(opts, cache.ForceRefresh())
	}
	items, err := c.pages.FetchWithCache(ctx, pageKey(page), func(ctx context.Context) ([]source.Record, error) {
		return c.src.FetchPage(ctx, c.def.PageURL, page)
	}, opts...)
	if err != nil {
		return PageResult{}, err
	}

	c.preloader.SetPosition(page, c.def.TotalPages)
	// preloads outlive the request
	started := c.preloader.PreloadNextPages(context.WithoutCancel(ctx))

	if items == nil {
		items = []source.Record{}
	}
	return PageResult{
		Collection: c.def.Name,
		Page:       page,
		TotalPages: c.def.TotalPages,
		Items:      items,
		Preloaded:  warmed,
		Preloading: started,
	}, nil
}

// WaitPreloads blocks until running preloads finish.
func (c *Collection) WaitPreloads() {
	if c.preloader != nil {
		c.preloader.Wait()
	}
}

// Refresh re-fetches the whole collection and the first remote page,
// replacing what the caches hold.
func (c *Collection) Refresh(ctx context.Context) error {
	var errs []error
	if c.items != nil {
		if _, err := c.Items(ctx, true); err != nil {
			errs = append(errs, err)
		}
	}
	if c.pages != nil {
		_, err := c.pages.FetchWithCache(ctx, pageKey(1), func(ctx context.Context) ([]source.Record, error) {
			return c.src.FetchPage(ctx, c.def.PageURL, 1)
		}, cache.ForceRefresh())
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
