package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/apierr"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/cache"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/catalog"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/collection"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/errorreporting"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/logger"
)

// filterPrefix marks query parameters that become equality filters, e.g.
// filter.ville=Lyon. Repeated or comma separated values become a membership
// filter.
const filterPrefix = "filter."

// CollectionsHandler serves the configured collections.
type CollectionsHandler struct {
	svc *catalog.Service
}

func NewCollectionsHandler(svc *catalog.Service) *CollectionsHandler {
	return &CollectionsHandler{svc: svc}
}

type collectionSummary struct {
	Name         string   `json:"name"`
	Whole        bool     `json:"whole"`
	Paged        bool     `json:"paged"`
	TotalPages   int      `json:"total_pages,omitempty"`
	SearchFields []string `json:"search_fields,omitempty"`
	SortKey      string   `json:"sort_key,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// List returns the configured collections.
// GET /api/collections
func (h *CollectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	defs := h.svc.Definitions()
	out := make([]collectionSummary, 0, len(defs))
	for _, d := range defs {
		out = append(out, collectionSummary{
			Name:         d.Name,
			Whole:        d.URL != "",
			Paged:        d.PageURL != "",
			TotalPages:   d.TotalPages,
			SearchFields: d.SearchFields,
			SortKey:      d.SortKey,
			Tags:         d.Tags,
		})
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"collections": out})
}

func (h *CollectionsHandler) lookup(w http.ResponseWriter, r *http.Request) (*catalog.Collection, bool) {
	name := mux.Vars(r)["name"]
	c, err := h.svc.Get(name)
	if err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.CollectionNotFound(name))
		return nil, false
	}
	return c, true
}

func parseQuery(w http.ResponseWriter, r *http.Request) (catalog.Query, bool) {
	q := r.URL.Query()
	page, ok := intParam(r, "page", 1)
	if !ok {
		apierr.WriteErrorWithContext(w, r, apierr.PaginationInvalid("page"))
		return catalog.Query{}, false
	}
	size, ok := intParam(r, "page_size", 0)
	if !ok || size < 0 {
		apierr.WriteErrorWithContext(w, r, apierr.PaginationInvalid("page_size"))
		return catalog.Query{}, false
	}
	out := catalog.Query{
		Search:   q.Get("q"),
		SortKey:  q.Get("sort"),
		SortDir:  collection.ParseSortDirection(q.Get("dir")),
		Page:     page,
		PageSize: size,
		Refresh:  boolParam(r, "refresh"),
	}
	for key, values := range q {
		field, ok := strings.CutPrefix(key, filterPrefix)
		if !ok || field == "" {
			continue
		}
		var members []string
		for _, v := range values {
			for _, part := range strings.Split(v, ",") {
				if part = strings.TrimSpace(part); part != "" {
					members = append(members, part)
				}
			}
		}
		switch len(members) {
		case 0:
		case 1:
			out.Filters = setFilter(out.Filters, field, members[0])
		default:
			out.Filters = setFilter(out.Filters, field, members)
		}
	}
	return out, true
}

func setFilter(m map[string]any, field string, value any) map[string]any {
	if m == nil {
		m = make(map[string]any)
	}
	m[field] = value
	return m
}

// writeFetchError maps catalogue and upstream failures to API errors.
func writeFetchError(w http.ResponseWriter, r *http.Request, c *catalog.Collection, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotPaged), errors.Is(err, catalog.ErrNoURL):
		apierr.WriteErrorWithContext(w, r, apierr.CollectionNotPaged(c.Name()))
	case errors.Is(err, cache.ErrCapacityExceeded):
		apierr.WriteErrorWithContext(w, r, apierr.CacheFull())
	default:
		logger.ErrorContext(r.Context(), "collection fetch failed", "collection", c.Name(), "error", err)
		errorreporting.CaptureErrorWithContext(err, map[string]string{"collection": c.Name()}, nil)
		apierr.WriteErrorWithContext(w, r, apierr.CollectionFetchFailed(""))
	}
}

// Query returns one page of the filtered, sorted collection.
// GET /api/collections/{name}?q=&sort=&dir=&page=&page_size=&filter.<field>=&refresh=
func (h *CollectionsHandler) Query(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}
	q, ok := parseQuery(w, r)
	if !ok {
		return
	}
	res, err := c.Query(r.Context(), q)
	if err != nil {
		writeFetchError(w, r, c, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// Window returns the virtual window at a scroll position.
// GET /api/collections/{name}/window?scroll_top=&container_height=&item_height=&overscan=&q=
func (h *CollectionsHandler) Window(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}
	q, ok := parseQuery(w, r)
	if !ok {
		return
	}
	wq := catalog.WindowQuery{Query: q}
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"scroll_top", &wq.ScrollTop},
		{"container_height", &wq.ContainerHeight},
		{"item_height", &wq.ItemHeight},
	} {
		v, ok := floatParam(r, p.name, 0)
		if !ok {
			apierr.WriteErrorWithContext(w, r, apierr.WindowInvalid(p.name))
			return
		}
		*p.dst = v
	}
	overscan, ok := intParam(r, "overscan", -1)
	if !ok || overscan < -1 {
		apierr.WriteErrorWithContext(w, r, apierr.WindowInvalid("overscan"))
		return
	}
	wq.Overscan = overscan

	res, err := c.Window(r.Context(), wq)
	if err != nil {
		writeFetchError(w, r, c, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// Page returns one remote page and warms the following ones.
// GET /api/collections/{name}/pages/{page}
func (h *CollectionsHandler) Page(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if !c.Paged() {
		apierr.WriteErrorWithContext(w, r, apierr.CollectionNotPaged(c.Name()))
		return
	}
	page, err := parsePositive(mux.Vars(r)["page"])
	if err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.PaginationInvalid("page"))
		return
	}
	res, err := c.Page(r.Context(), page, boolParam(r, "refresh"))
	if err != nil {
		writeFetchError(w, r, c, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}
