package observability

import (
	"net/http"
	"strconv"
	"strings"
)

// MetricsMiddleware records mcp_fleet_http_requests_total for every request
// and tracks open SSE streams in mcp_fleet_sse_connections_active.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
			SSEConnections.Inc()
			defer SSEConnections.Dec()
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		HTTPRequestsTotal.WithLabelValues(routeLabel(r.URL.Path), strconv.Itoa(sw.status/100)+"xx").Inc()
	})
}

// routeLabel keeps label cardinality bounded.
func routeLabel(path string) string {
	switch {
	case path == "/", path == "/mcp", path == "/sse", path == "/healthz", path == "/metrics":
		return path
	case strings.HasPrefix(path, "/messages"):
		return "/messages/"
	case strings.HasPrefix(path, "/.well-known/"):
		return "/.well-known"
	default:
		return "other"
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}

// Flush delegates to the underlying writer. SSE needs it.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the original writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
