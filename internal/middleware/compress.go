package middleware

import (
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
)

type compressResponseWriter struct {
	http.ResponseWriter
	w           io.Writer
	wroteHeader bool
}

func (w *compressResponseWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.ResponseWriter.Header().Del("Content-Length")
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *compressResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.w.Write(b)
}

// Compress negotiates br or gzip from Accept-Encoding and
// compresses the response body. Requests without an acceptable encoding
// pass through untouched.
func Compress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept-Encoding") == "" || r.Header.Get("Upgrade") != "" {
			next.ServeHTTP(w, r)
			return
		}
		// HTTPCompressor sets Content-Encoding and Vary itself
		cw := brotli.HTTPCompressor(w, r)
		defer cw.Close()
		next.ServeHTTP(&compressResponseWriter{ResponseWriter: w, w: cw}, r)
	})
}
