package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-fleet/internal/cache"
	"mcp-fleet/internal/config"
	"mcp-fleet/internal/credentials"
	"mcp-fleet/internal/observability"
)

func testConfig(baseURL string) Config {
	return Config{
		Vendor:       "acme",
		BaseURL:      baseURL,
		Timeout:      5 * time.Second,
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
		UserAgent:    "mcp-fleet-test",
	}
}

func withToken(tok string) context.Context {
	return credentials.WithCredentials(context.Background(), credentials.Credentials{Token: tok})
}

func TestDoSendsHeadersAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/items", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "mcp-fleet-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "2024-10-15", r.Header.Get("Revision"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		w.Write([]byte(`{"items":[{"id":"a"}]}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL+"/v1/"), Bearer(""), WithHeader("Revision", "2024-10-15"))
	var out struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	err := c.Get(withToken("tok"), "/items", url.Values{"limit": {"5"}}, &out)
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "a", out.Items[0].ID)
}

func TestDoEncodesBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch r.URL.Path {
		case "/json":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.JSONEq(t, `{"name":"x"}`, string(body))
		case "/form":
			assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
			assert.Equal(t, "email=a%40b.test", string(body))
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), nil)
	require.NoError(t, c.Post(context.Background(), "/json", map[string]string{"name": "x"}, nil))

	out := map[string]any{"untouched": true}
	status, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/form", Form: url.Values{"email": {"a@b.test"}}}, &out)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, status)
	assert.Equal(t, map[string]any{"untouched": true}, out)
}

func TestRetryOnceOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), nil)
	var out map[string]bool
	require.NoError(t, c.Get(context.Background(), "/", nil, &out))
	assert.True(t, out["ok"])
	assert.Equal(t, int32(2), calls.Load())
}

func TestPersistent429Surfaces(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"slow down"}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), nil)
	err := c.Get(context.Background(), "/", nil, nil)
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.Contains(t, err.Error(), "slow down")
	assert.Equal(t, int32(2), calls.Load())
}

func TestNoRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), nil)
	err := c.Get(context.Background(), "/", nil, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, StatusCode(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryBackoffHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.RetryBackoff = time.Hour
	c := New(cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Get(ctx, "/", nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNotFoundAndVendorDecoder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"Fault":{"Error":[{"Detail":"Object Not Found"}]}}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), nil, WithErrorDecoder(func(status int, body []byte) string {
		var f struct {
			Fault struct {
				Error []struct{ Detail string } `json:"Error"`
			} `json:"Fault"`
		}
		if json.Unmarshal(body, &f) == nil && len(f.Fault.Error) > 0 {
			return f.Fault.Error[0].Detail
		}
		return ""
	}))
	err := c.Get(context.Background(), "/thing/1", nil, nil)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var ue *Error
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "Object Not Found", ue.Message)
	assert.Equal(t, "acme", ue.Vendor)
}

func TestDefaultErrorMessage(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"error":{"message":"No such customer","type":"invalid_request_error"}}`, "No such customer"},
		{`{"error":"invalid_grant","error_description":"Token expired"}`, "Token expired"},
		{`{"message":"Bad request"}`, "Bad request"},
		{`{"errors":[{"detail":"Profile already exists"}]}`, "Profile already exists"},
		{`{"errors":["first problem"]}`, "first problem"},
		{`<html>gateway</html>`, "<html>gateway</html>"},
		{``, "Bad Request"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DefaultErrorMessage(http.StatusBadRequest, []byte(tc.body)), tc.body)
	}
}

func TestMissingCredentials(t *testing.T) {
	t.Setenv("ACME_TEST_TOKEN", "")
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), Bearer("ACME_TEST_TOKEN"))
	err := c.Get(context.Background(), "/", nil, nil)
	assert.ErrorIs(t, err, credentials.ErrMissing)
	assert.Equal(t, int32(0), calls.Load())
}

func TestAuthorizers(t *testing.T) {
	ctx := credentials.WithCredentials(context.Background(), credentials.Credentials{
		Data: map[string]any{"access_key": "ak", "secret": "sk", "api_key": "pk_1"},
	})

	r := httptest.NewRequest("GET", "/", nil)
	require.NoError(t, Basic("access_key", "", "secret", "")(ctx, r))
	user, pass, ok := r.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "ak", user)
	assert.Equal(t, "sk", pass)

	r = httptest.NewRequest("GET", "/", nil)
	require.NoError(t, Header("Authorization", "Klaviyo-API-Key ", "", "api_key")(ctx, r))
	assert.Equal(t, "Klaviyo-API-Key pk_1", r.Header.Get("Authorization"))

	r = httptest.NewRequest("GET", "/", nil)
	require.NoError(t, None()(ctx, r))
	assert.Empty(t, r.Header.Get("Authorization"))
}

func TestCachedGetIsPerCaller(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"who":"` + r.Header.Get("Authorization") + `"}`))
	}))
	defer srv.Close()

	mc := cache.NewMemoryCache(time.Hour)
	defer mc.Close()
	cfg := testConfig(srv.URL)
	cfg.Cache = mc
	cfg.CacheTTL = time.Minute
	c := New(cfg, Bearer(""))

	var out map[string]string
	require.NoError(t, c.GetCached(withToken("a"), "/me", nil, &out))
	require.NoError(t, c.GetCached(withToken("a"), "/me", nil, &out))
	assert.Equal(t, "Bearer a", out["who"])
	assert.Equal(t, int32(1), calls.Load())

	require.NoError(t, c.GetCached(withToken("b"), "/me", nil, &out))
	assert.Equal(t, "Bearer b", out["who"])
	assert.Equal(t, int32(2), calls.Load())

	require.NoError(t, c.Get(withToken("a"), "/me", nil, &out))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRawBodyAndAbsolutePath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain text"))
	}))
	defer srv.Close()

	c := New(testConfig("https://unused.invalid"), nil)
	var raw []byte
	require.NoError(t, c.Get(context.Background(), srv.URL+"/file", nil, &raw))
	assert.Equal(t, "plain text", string(raw))
}

func TestNoBaseURL(t *testing.T) {
	c := New(Config{Vendor: "acme"}, nil)
	err := c.Get(context.Background(), "/x", nil, nil)
	assert.Error(t, err)
}

func TestConfigFrom(t *testing.T) {
	cfg := config.Defaults()
	cfg.Vendors["acme"] = config.VendorConfig{BaseURL: "http://sandbox"}
	cfg.Upstream.RateLimit = 2

	uc := ConfigFrom("acme", &cfg, nil)
	assert.Equal(t, "http://sandbox", uc.BaseURL)
	assert.Equal(t, 1, uc.MaxRetries)
	assert.Equal(t, 2.0, uc.RateLimit)
	assert.Equal(t, "http://sandbox", uc.WithBaseURL("https://prod").BaseURL)

	uc = ConfigFrom("other", &cfg, nil)
	assert.Equal(t, "https://prod", uc.WithBaseURL("https://prod").BaseURL)
}

func TestRateLimitCoversSDKClient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Vendor = "ratelimited"
	cfg.RateLimit = 0.001
	cfg.Burst = 1
	c := New(cfg, nil)
	before := testutil.ToFloat64(observability.UpstreamRequestsTotal.WithLabelValues("ratelimited", "200"))

	require.NoError(t, c.Get(context.Background(), "/a", nil, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/b", nil)
	require.NoError(t, err)
	_, err = c.HTTPClient().Do(req)
	require.Error(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, before+1, testutil.ToFloat64(observability.UpstreamRequestsTotal.WithLabelValues("ratelimited", "200")))
}

func TestHTTPClientRecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Vendor = "sdkmetered"
	hc := New(cfg, nil, WithHTTPClient(&http.Client{Timeout: time.Second})).HTTPClient()
	resp, err := hc.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, float64(1), testutil.ToFloat64(observability.UpstreamRequestsTotal.WithLabelValues("sdkmetered", "202")))
}
