package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/cache"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/catalog"
	"github.com/douania/lovable-github-friendship-flow-sub001/internal/metrics"
)

func TestMetricsStats(t *testing.T) {
	rec := metrics.NewRecorder(metrics.DefaultRecorderConfig())
	rec.RecordNetworkMetric(metrics.NetworkMetric{URL: "https://api.test/patients", Method: http.MethodGet, Status: 200, Size: 128})
	admin := &fakeCacheAdmin{stats: []catalog.NamespaceStats{{Namespace: "patients", Stats: cache.Stats{Hits: 1}}}}

	src := NewSnapshotSource(rec, admin)
	src.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	rr := httptest.NewRecorder()
	src.GetStats(rr, httptest.NewRequest(http.MethodGet, "/api/metrics/stats", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var out MetricsSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, 1, out.Performance.Requests)
	assert.Equal(t, int64(128), out.Performance.TotalBytes)
	require.Len(t, out.Caches, 1)
	assert.Equal(t, "patients", out.Caches[0].Namespace)
	assert.True(t, out.Timestamp.Equal(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))
}

func TestSnapshotWithoutSources(t *testing.T) {
	snap := NewSnapshotSource(nil, nil).Snapshot()
	assert.NotNil(t, snap.Caches)
	assert.Zero(t, snap.Performance.Requests)
}
