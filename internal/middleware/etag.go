package middleware

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// etagResponseWriter captures response body to generate ETag.
type etagResponseWriter struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (w *etagResponseWriter) WriteHeader(status int) {
	w.status = status
}

func (w *etagResponseWriter) Write(b []byte) (int, error) {
	return w.buf.Write(b)
}

// ETag buffers GET responses, tags successful ones with a content hash and
// answers 304 when If-None-Match matches. maxAge is advertised in
// Cache-Control, typically the TTL of the cache serving the data.
func ETag(maxAge time.Duration) func(http.Handler) http.Handler {
	cacheControl := fmt.Sprintf("private, max-age=%d", int(maxAge.Seconds()))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			etw := &etagResponseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(etw, r)

			if etw.status != http.StatusOK {
				w.WriteHeader(etw.status)
				w.Write(etw.buf.Bytes())
				return
			}

			hash := sha256.Sum256(etw.buf.Bytes())
			etag := fmt.Sprintf(`"%x"`, hash[:16])
			w.Header().Set("ETag", etag)
			if w.Header().Get("Cache-Control") == "" {
				w.Header().Set("Cache-Control", cacheControl)
			}
			if etagMatches(r.Header.Get("If-None-Match"), etag) {
				w.WriteHeader(http.StatusNotModified)
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write(etw.buf.Bytes())
		})
	}
}

// etagMatches applies the weak comparison of If-None-Match against a list
// of tags or "*".
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
