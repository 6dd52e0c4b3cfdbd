package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsMiddlewareCountsStatusClass(t *testing.T) {
	h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ok"))
	}))

	before2xx := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("/healthz", "2xx"))
	before4xx := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("other", "4xx"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/healthz", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/missing", nil))

	assert.Equal(t, before2xx+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("/healthz", "2xx")))
	assert.Equal(t, before4xx+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("other", "4xx")))
}

func TestMetricsMiddlewareTracksSSE(t *testing.T) {
	var during float64
	h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = testutil.ToFloat64(SSEConnections)
		w.(http.Flusher).Flush()
	}))

	before := testutil.ToFloat64(SSEConnections)
	req := httptest.NewRequest("GET", "/sse", nil)
	req.Header.Set("Accept", "text/event-stream")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, before+1, during)
	assert.Equal(t, before, testutil.ToFloat64(SSEConnections))
}

func TestRouteLabel(t *testing.T) {
	cases := map[string]string{
		"/":                                     "/",
		"/mcp":                                  "/mcp",
		"/messages/":                            "/messages/",
		"/messages/abc":                         "/messages/",
		"/.well-known/oauth-protected-resource": "/.well-known",
		"/random/path":                          "other",
	}
	for in, want := range cases {
		assert.Equal(t, want, routeLabel(in), in)
	}
}

func TestHandlerExposesFleetMetrics(t *testing.T) {
	ToolCallsTotal.WithLabelValues("test", "ping", "ok").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "mcp_fleet_tool_calls_total"))
}
