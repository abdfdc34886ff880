package handlers

import (
	"net/http"
	"time"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/catalog"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/metrics"
)

// MetricsSnapshot is the payload of the stats endpoint and of each
// websocket frame.
type MetricsSnapshot struct {
	Timestamp   time.Time                `json:"timestamp"`
	Performance metrics.Stats            `json:"performance"`
	Caches      []catalog.NamespaceStats `json:"caches"`
}

// SnapshotSource builds metrics snapshots from a recorder and the caches.
type SnapshotSource struct {
	rec    *metrics.Recorder
	caches CacheAdmin
	now    func() time.Time
}

func NewSnapshotSource(rec *metrics.Recorder, caches CacheAdmin) *SnapshotSource {
	return &SnapshotSource{rec: rec, caches: caches, now: time.Now}
}

// Snapshot captures the current recorder and cache statistics.
func (s *SnapshotSource) Snapshot() MetricsSnapshot {
	out := MetricsSnapshot{
		Timestamp:   s.now().UTC(),
		Performance: s.rec.Stats(),
		Caches:      []catalog.NamespaceStats{},
	}
	if s.caches != nil {
		if c := s.caches.CacheStats(); c != nil {
			out.Caches = c
		}
	}
	return out
}

// GetStats returns a metrics snapshot.
// GET /api/metrics/stats
func (s *SnapshotSource) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.Snapshot())
}
