package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/apierr"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/catalog"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/logger"
)

// CacheAdmin is the cache surface the admin endpoints drive.
type CacheAdmin interface {
	CacheStats() []catalog.NamespaceStats
	InvalidateTags(tags ...string) int
	InvalidateAll() int
	Cleanup() int
}

// CacheAdminHandler handles cache administration endpoints.
type CacheAdminHandler struct {
	cache CacheAdmin
}

// NewCacheAdminHandler creates a new cache admin handler.
func NewCacheAdminHandler(c CacheAdmin) *CacheAdminHandler {
	return &CacheAdminHandler{cache: c}
}

type cacheTotals struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	TotalSize int     `json:"total_size"`
	HitRate   float64 `json:"hit_rate"`
}

func totals(stats []catalog.NamespaceStats) cacheTotals {
	var t cacheTotals
	for _, s := range stats {
		t.Hits += s.Hits
		t.Misses += s.Misses
		t.Evictions += s.Evictions
		t.TotalSize += s.TotalSize
	}
	if n := t.Hits + t.Misses; n > 0 {
		t.HitRate = float64(t.Hits) / float64(n) * 100
	}
	return t
}

// GetCacheStats returns per-namespace cache statistics and their totals.
// GET /api/admin/cache/stats
func (h *CacheAdminHandler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	stats := h.cache.CacheStats()
	if stats == nil {
		stats = []catalog.NamespaceStats{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"namespaces": stats,
		"totals":     totals(stats),
	})
}

type invalidateRequest struct {
	Tags []string `json:"tags"`
}

// InvalidateCache removes entries carrying any of the given tags, or every
// entry when no tags are given.
// POST /api/admin/cache/invalidate
func (h *CacheAdminHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if r.Body != nil {
		err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidJSON())
			return
		}
	}

	var removed int
	if len(req.Tags) == 0 {
		removed = h.cache.InvalidateAll()
	} else {
		removed = h.cache.InvalidateTags(req.Tags...)
	}
	logger.InfoContext(r.Context(), "cache invalidated", "tags", req.Tags, "removed", removed)
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":  "ok",
		"removed": removed,
		"tags":    req.Tags,
	})
}

// CleanupCache drops expired entries.
// POST /api/admin/cache/cleanup
func (h *CacheAdminHandler) CleanupCache(w http.ResponseWriter, r *http.Request) {
	removed := h.cache.Cleanup()
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":  "ok",
		"removed": removed,
	})
}
