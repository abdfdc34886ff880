package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/apierr"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

type fakeServer struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (f *fakeServer) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	f := &fakeServer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{r.Method, r.URL.Path, r.URL.RawQuery, string(body)})
		f.mu.Unlock()

		if r.URL.Path == "/api/collections/absent" {
			apierr.WriteError(w, apierr.CollectionNotFound("absent"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","removed":2}`))
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--server", srv.URL))
	err := cmd.Execute()
	return out.String(), err
}

func TestStatsCommand(t *testing.T) {
	f, srv := newFakeServer(t)
	out, err := run(t, srv, "stats")
	require.NoError(t, err)
	assert.Equal(t, "/api/admin/cache/stats", f.last().Path)
	assert.Contains(t, out, `"removed": 2`, "output is indented")
}

func TestInvalidateCommand(t *testing.T) {
	f, srv := newFakeServer(t)

	_, err := run(t, srv, "invalidate", "--tag", "patients", "--tag", "rdv")
	require.NoError(t, err)
	req := f.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/admin/cache/invalidate", req.Path)
	var body map[string][]string
	require.NoError(t, json.Unmarshal([]byte(req.Body), &body))
	assert.Equal(t, []string{"patients", "rdv"}, body["tags"])

	_, err = run(t, srv, "invalidate")
	require.NoError(t, err)
	assert.JSONEq(t, `{"tags":null}`, f.last().Body)
}

func TestCleanupAndMetricsCommands(t *testing.T) {
	f, srv := newFakeServer(t)

	_, err := run(t, srv, "cleanup")
	require.NoError(t, err)
	assert.Equal(t, "/api/admin/cache/cleanup", f.last().Path)
	assert.Equal(t, http.MethodPost, f.last().Method)

	_, err = run(t, srv, "metrics")
	require.NoError(t, err)
	assert.Equal(t, "/api/metrics/stats", f.last().Path)
}

func TestPageCommand(t *testing.T) {
	f, srv := newFakeServer(t)

	_, err := run(t, srv, "page", "patients", "--page", "2", "--q", "dur", "--sort", "nom", "--desc")
	require.NoError(t, err)
	req := f.last()
	assert.Equal(t, "/api/collections/patients", req.Path)
	assert.Equal(t, "dir=desc&page=2&q=dur&sort=nom", req.Query)

	_, err = run(t, srv, "page", "rdv", "--remote", "--page", "3")
	require.NoError(t, err)
	assert.Equal(t, "/api/collections/rdv/pages/3", f.last().Path)

	_, err = run(t, srv, "page", "rdv", "--page", "0")
	assert.Error(t, err)

	_, err = run(t, srv, "page")
	assert.Error(t, err, "collection argument is required")
}

func TestAPIErrorSurfaced(t *testing.T) {
	_, srv := newFakeServer(t)
	_, err := run(t, srv, "page", "absent")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, apierr.ErrCollectionNotFound, apiErr.Code)
}
