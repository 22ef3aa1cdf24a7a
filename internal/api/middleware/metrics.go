package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/blasperez/Private-Chat/internal/metrics"
)

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Metrics records request counts and latency per normalized route.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		metrics.HTTPRequestsTotal.WithLabelValues(
			r.Method, path, strconv.Itoa(wrapped.status),
		).Inc()

		metrics.HTTPRequestDuration.WithLabelValues(
			r.Method, path,
		).Observe(duration)
	})
}

// normalizePath collapses identifiers so metric label cardinality stays
// bounded.
func normalizePath(path string) string {
	if strings.HasPrefix(path, "/api/resolve/") {
		return "/api/resolve/:token"
	}
	if strings.HasPrefix(path, "/api/rooms/") {
		rest := strings.TrimPrefix(path, "/api/rooms/")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) == 1 {
			return "/api/rooms/:id"
		}
		switch {
		case parts[1] == "join":
			return "/api/rooms/:id/join"
		case parts[1] == "upload":
			return "/api/rooms/:id/upload"
		case strings.HasPrefix(parts[1], "media/"):
			return "/api/rooms/:id/media/:name"
		default:
			return "/api/rooms/:id"
		}
	}
	return path
}
