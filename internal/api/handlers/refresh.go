package handlers

import (
	"net/http"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/scheduler"
)

// RefreshStatuser reports scheduled refresh jobs.
type RefreshStatuser interface {
	Status() []scheduler.JobStatus
}

// RefreshStatus lists the background refresh jobs and their next runs.
// GET /api/admin/refresh
func RefreshStatus(s RefreshStatuser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs := s.Status()
		if jobs == nil {
			jobs = []scheduler.JobStatus{}
		}
		writeJSON(w, r, http.StatusOK, map[string]any{"jobs": jobs})
	}
}
