package upstream

import (
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"mcp-fleet/internal/observability"
)

// meteredTransport applies the vendor rate limit and records upstream
// metrics for every request, including those sent by third-party SDKs
// through HTTPClient.
type meteredTransport struct {
	vendor  string
	limiter *rate.Limiter
	base    http.RoundTripper
}

func (t *meteredTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(r.Context()); err != nil {
			if r.Body != nil {
				r.Body.Close()
			}
			observability.UpstreamRequestsTotal.WithLabelValues(t.vendor, "rate_limited").Inc()
			return nil, err
		}
	}
	start := time.Now()
	resp, err := t.base.RoundTrip(r)
	observability.UpstreamLatency.WithLabelValues(t.vendor).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.UpstreamRequestsTotal.WithLabelValues(t.vendor, "error").Inc()
		return nil, err
	}
	observability.UpstreamRequestsTotal.WithLabelValues(t.vendor, strconv.Itoa(resp.StatusCode)).Inc()
	return resp, nil
}

// metered returns a copy of hc whose transport goes through the limiter.
func metered(hc *http.Client, vendor string, limiter *rate.Limiter) *http.Client {
	if _, ok := hc.Transport.(*meteredTransport); ok {
		return hc
	}
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *hc
	wrapped.Transport = &meteredTransport{vendor: vendor, limiter: limiter, base: base}
	return &wrapped
}
