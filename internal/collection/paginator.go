// Package collection implements the filter, sort and paginate pipeline over
// in-memory collections.
package collection

import (
	"sync"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/utils"
)

// PaginationConfig seeds a Paginator. Zero fields take the defaults
// (page 1, 20 per page, options 10/20/50/100).
type PaginationConfig struct {
	InitialPage     int
	InitialPageSize int
	PageSizeOptions []int
}

// DefaultPageSizeOptions are offered when none are configured.
var DefaultPageSizeOptions = []int{10, 20, 50, 100}

const DefaultPageSize = 20

// State is the mutable pagination state.
type State struct {
	CurrentPage int `json:"current_page"`
	PageSize    int `json:"page_size"`
	TotalItems  int `json:"total_items"`
}

// Info is State plus the values derived from it. StartIndex and EndIndex are
// 1-based and inclusive; both are 0 for an empty collection.
type Info struct {
	State
	TotalPages int  `json:"total_pages"`
	StartIndex int  `json:"start_index"`
	EndIndex   int  `json:"end_index"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
	IsFirst    bool `json:"is_first"`
	IsLast     bool `json:"is_last"`
}

// Paginator is the page state machine. Out-of-range input is clamped, never
// rejected. Safe for concurrent use.
type Paginator struct {
	mu      sync.Mutex
	state   State
	options []int
}

// NewPaginator creates a paginator with no items.
func NewPaginator(cfg PaginationConfig) *Paginator {
	if cfg.InitialPageSize <= 0 {
		cfg.InitialPageSize = DefaultPageSize
	}
	if cfg.InitialPage <= 0 {
		cfg.InitialPage = 1
	}
	options := cfg.PageSizeOptions
	if len(options) == 0 {
		options = DefaultPageSizeOptions
	}
	p := &Paginator{
		state:   State{CurrentPage: 1, PageSize: cfg.InitialPageSize},
		options: append([]int(nil), options...),
	}
	// with no items yet the initial page clamps to 1
	p.SetPage(cfg.InitialPage)
	return p
}

// NewPaginatorWithTotal creates a paginator that already knows its item count,
// so InitialPage can land past page 1.
func NewPaginatorWithTotal(cfg PaginationConfig, totalItems int) *Paginator {
	p := NewPaginator(cfg)
	p.SetTotalItems(totalItems)
	if cfg.InitialPage > 1 {
		p.SetPage(cfg.InitialPage)
	}
	return p
}

func totalPages(s State) int {
	if s.TotalItems <= 0 || s.PageSize <= 0 {
		return 0
	}
	return (s.TotalItems + s.PageSize - 1) / s.PageSize
}

func (p *Paginator) clampLocked(page int) int {
	return utils.ClampInt(page, 1, max(totalPages(p.state), 1))
}

// SetPage moves to page, clamped into [1, max(TotalPages, 1)].
func (p *Paginator) SetPage(page int) {
	p.mu.Lock()
	p.state.CurrentPage = p.clampLocked(page)
	p.mu.Unlock()
}

func (p *Paginator) NextPage() {
	p.mu.Lock()
	p.state.CurrentPage = p.clampLocked(p.state.CurrentPage + 1)
	p.mu.Unlock()
}

func (p *Paginator) PrevPage() {
	p.mu.Lock()
	p.state.CurrentPage = p.clampLocked(p.state.CurrentPage - 1)
	p.mu.Unlock()
}

func (p *Paginator) GoToFirstPage() { p.SetPage(1) }

func (p *Paginator) GoToLastPage() {
	p.mu.Lock()
	p.state.CurrentPage = max(totalPages(p.state), 1)
	p.mu.Unlock()
}

// SetPageSize changes the page size and returns to page 1. Non-positive
// sizes are ignored.
func (p *Paginator) SetPageSize(size int) {
	if size <= 0 {
		return
	}
	p.mu.Lock()
	p.state.PageSize = size
	p.state.CurrentPage = 1
	p.mu.Unlock()
}

// SetTotalItems updates the item count and re-clamps the current page.
func (p *Paginator) SetTotalItems(n int) {
	if n < 0 {
		n = 0
	}
	p.mu.Lock()
	p.state.TotalItems = n
	p.state.CurrentPage = p.clampLocked(p.state.CurrentPage)
	p.mu.Unlock()
}

// Reset returns to page 1 without touching size or count.
func (p *Paginator) Reset() { p.SetPage(1) }

func (p *Paginator) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Paginator) Info() Info {
	p.mu.Lock()
	s := p.state
	p.mu.Unlock()
	return infoFor(s)
}

func infoFor(s State) Info {
	tp := totalPages(s)
	info := Info{
		State:      s,
		TotalPages: tp,
		HasNext:    s.CurrentPage < tp,
		HasPrev:    s.CurrentPage > 1,
		IsFirst:    s.CurrentPage == 1,
		IsLast:     s.CurrentPage >= max(tp, 1),
	}
	if s.TotalItems > 0 {
		info.StartIndex = (s.CurrentPage-1)*s.PageSize + 1
		info.EndIndex = min(s.CurrentPage*s.PageSize, s.TotalItems)
	}
	return info
}

// Bounds returns the half-open slice bounds [lo, hi) of the current page.
func (p *Paginator) Bounds() (lo, hi int) {
	p.mu.Lock()
	s := p.state
	p.mu.Unlock()
	return boundsFor(s)
}

func boundsFor(s State) (lo, hi int) {
	if s.TotalItems == 0 {
		return 0, 0
	}
	lo = min((s.CurrentPage-1)*s.PageSize, s.TotalItems)
	hi = min(s.CurrentPage*s.PageSize, s.TotalItems)
	return lo, hi
}

// PageSizeOptions returns the sizes offered to users.
func (p *Paginator) PageSizeOptions() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.options...)
}
