// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring mcp-fleet vendor servers.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UpstreamBuckets covers vendor API latencies from 50ms to 60s.
var UpstreamBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

var (
	// ToolCallsTotal counts tool invocations by server, tool and outcome (ok, error).
	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_fleet_tool_calls_total",
			Help: "Tool calls",
		},
		[]string{"server", "tool", "outcome"},
	)

	// ToolCallDuration records tool call duration in seconds.
	ToolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcp_fleet_tool_call_duration_seconds",
			Help:    "Tool call duration",
			Buckets: UpstreamBuckets,
		},
		[]string{"server", "tool"},
	)

	// UpstreamRequestsTotal counts outbound vendor requests by status code
	// ("error" when no response was received).
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_fleet_upstream_requests_total",
			Help: "Upstream vendor requests",
		},
		[]string{"vendor", "status"},
	)

	// UpstreamRetriesTotal counts retries triggered by HTTP 429.
	UpstreamRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_fleet_upstream_retries_total",
			Help: "Upstream retries after rate limiting",
		},
		[]string{"vendor"},
	)

	// UpstreamLatency records vendor response latency in seconds.
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcp_fleet_upstream_latency_seconds",
			Help:    "Upstream latency",
			Buckets: UpstreamBuckets,
		},
		[]string{"vendor"},
	)

	// CacheLookupsTotal counts response cache lookups by result (hit, miss).
	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_fleet_cache_lookups_total",
			Help: "Response cache lookups",
		},
		[]string{"vendor", "result"},
	)

	// HTTPRequestsTotal counts inbound HTTP requests by route and status class.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcp_fleet_http_requests_total",
			Help: "Inbound HTTP requests",
		},
		[]string{"path", "status"},
	)

	// SSEConnections tracks open SSE streams.
	SSEConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mcp_fleet_sse_connections_active",
			Help: "Active SSE connections",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ToolCallsTotal,
		ToolCallDuration,
		UpstreamRequestsTotal,
		UpstreamRetriesTotal,
		UpstreamLatency,
		CacheLookupsTotal,
		HTTPRequestsTotal,
		SSEConnections,
	)
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
