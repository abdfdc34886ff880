package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/scheduler"
)

type staticStatus []scheduler.JobStatus

func (s staticStatus) Status() []scheduler.JobStatus { return s }

func TestRefreshStatus(t *testing.T) {
	next := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	h := RefreshStatus(staticStatus{{Name: "refresh:patients", Schedule: "@every 5m", NextRun: next, Runs: 3}})

	rr := httptest.NewRecorder()
	h(rr, httptest.NewRequest(http.MethodGet, "/api/admin/refresh", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var out struct {
		Jobs []scheduler.JobStatus `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out.Jobs, 1)
	assert.Equal(t, "refresh:patients", out.Jobs[0].Name)
	assert.Equal(t, 3, out.Jobs[0].Runs)
	assert.True(t, out.Jobs[0].NextRun.Equal(next))
	assert.NotContains(t, rr.Body.String(), "last_run", "zero last run is omitted")

	rr = httptest.NewRecorder()
	RefreshStatus(staticStatus(nil))(rr, httptest.NewRequest(http.MethodGet, "/api/admin/refresh", nil))
	assert.JSONEq(t, `{"jobs":[]}`, rr.Body.String())
}
