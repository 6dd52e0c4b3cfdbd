// Package upstream is the HTTP client every vendor server uses to reach its
// SaaS API. It adds credentials, request IDs, rate limiting, a single retry
// on HTTP 429 and read-through caching of GET responses.
package upstream

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"mcp-fleet/internal/cache"
	"mcp-fleet/internal/config"
	"mcp-fleet/internal/credentials"
	"mcp-fleet/internal/observability"
)

const maxBodyBytes = 10 << 20

// Config controls one vendor's client.
type Config struct {
	Vendor       string
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	RateLimit    float64
	Burst        int
	UserAgent    string
	Cache        cache.Cache
	CacheTTL     time.Duration
}

// ConfigFrom builds a Config from the process configuration.
func ConfigFrom(vendor string, cfg *config.Config, c cache.Cache) Config {
	return Config{
		Vendor:       vendor,
		BaseURL:      cfg.Vendor(vendor).BaseURL,
		Timeout:      cfg.Upstream.Timeout,
		MaxRetries:   cfg.Upstream.MaxRetries,
		RetryBackoff: cfg.Upstream.RetryBackoff,
		RateLimit:    cfg.Upstream.RateLimit,
		Burst:        cfg.Upstream.Burst,
		UserAgent:    cfg.Upstream.UserAgent,
		Cache:        c,
		CacheTTL:     cfg.Cache.TTL,
	}
}

// WithBaseURL returns a copy of c with BaseURL set when it is still empty.
func (c Config) WithBaseURL(fallback string) Config {
	if c.BaseURL == "" {
		c.BaseURL = fallback
	}
	return c
}

// Option customizes a Client.
type Option func(*Client)

// WithErrorDecoder sets the vendor specific error message extractor.
func WithErrorDecoder(d ErrorDecoder) Option {
	return func(c *Client) { c.decode = d }
}

// WithHeader adds a static header to every request.
func WithHeader(name, value string) Option {
	return func(c *Client) { c.headers.Set(name, value) }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for retries and failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client talks to one vendor API.
type Client struct {
	cfg     Config
	auth    Authorizer
	http    *http.Client
	limiter *rate.Limiter
	decode  ErrorDecoder
	headers http.Header
	logger  *slog.Logger
}

// New creates a client. A nil auth sends anonymous requests.
func New(cfg Config, auth Authorizer, opts ...Option) *Client {
	if auth == nil {
		auth = None()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := &Client{
		cfg:     cfg,
		auth:    auth,
		http:    &http.Client{Timeout: cfg.Timeout},
		headers: http.Header{},
		logger:  slog.Default(),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, o := range opts {
		o(c)
	}
	c.http = metered(c.http, cfg.Vendor, c.limiter)
	return c
}

// Vendor returns the vendor name the client reports errors under.
func (c *Client) Vendor() string { return c.cfg.Vendor }

// BaseURL returns the resolved API root.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// HTTPClient exposes the underlying client for SDKs that build their own
// requests. It shares the client's rate limiter and metrics.
func (c *Client) HTTPClient() *http.Client { return c.http }

// Request describes one API call. Path is joined to the base URL unless it
// is already absolute.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	JSON   any
	Form   url.Values
	Header http.Header
	// Cache marks a GET as safe to serve from the response cache.
	Cache bool
}

// Do sends req and decodes a JSON response into out (which may be nil or a
// *[]byte for the raw body). It returns the final HTTP status.
func (c *Client) Do(ctx context.Context, req Request, out any) (int, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	target, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return 0, err
	}

	var (
		body        []byte
		contentType string
	)
	switch {
	case req.JSON != nil:
		body, err = json.Marshal(req.JSON)
		if err != nil {
			return 0, fmt.Errorf("encode request body: %w", err)
		}
		contentType = "application/json"
	case req.Form != nil:
		body = []byte(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	cacheable := req.Cache && req.Method == http.MethodGet && c.cfg.Cache != nil && c.cfg.CacheTTL > 0
	var key string
	if cacheable {
		key = c.cacheKey(ctx, target)
		if hit, err := c.cfg.Cache.Get(ctx, key); err == nil && hit != nil {
			observability.CacheLookupsTotal.WithLabelValues(c.cfg.Vendor, "hit").Inc()
			return http.StatusOK, decodeInto(hit, out)
		}
		observability.CacheLookupsTotal.WithLabelValues(c.cfg.Vendor, "miss").Inc()
	}

	for attempt := 0; ; attempt++ {
		status, respBody, err := c.send(ctx, req, target, body, contentType)
		if err != nil {
			return status, err
		}

		if status == http.StatusTooManyRequests && attempt < c.cfg.MaxRetries {
			observability.UpstreamRetriesTotal.WithLabelValues(c.cfg.Vendor).Inc()
			c.logger.Info("rate limited, retrying",
				"vendor", c.cfg.Vendor, "path", req.Path, "attempt", attempt+1, "backoff", c.cfg.RetryBackoff)
			if err := sleep(ctx, c.cfg.RetryBackoff); err != nil {
				return status, err
			}
			continue
		}

		if status < 200 || status > 299 {
			msg := ""
			if c.decode != nil {
				msg = c.decode(status, respBody)
			}
			if msg == "" {
				msg = DefaultErrorMessage(status, respBody)
			}
			c.logger.Warn("upstream request failed",
				"vendor", c.cfg.Vendor, "method", req.Method, "path", req.Path, "status", status)
			return status, &Error{
				Vendor:     c.cfg.Vendor,
				StatusCode: status,
				Message:    msg,
				Body:       string(respBody),
			}
		}

		if cacheable && len(bytes.TrimSpace(respBody)) > 0 {
			if err := c.cfg.Cache.Set(ctx, key, respBody, c.cfg.CacheTTL); err != nil {
				c.logger.Warn("cache write failed", "vendor", c.cfg.Vendor, "error", err)
			}
		}
		return status, decodeInto(respBody, out)
	}
}

func (c *Client) send(ctx context.Context, req Request, target string, body []byte, contentType string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	hr, err := http.NewRequestWithContext(ctx, req.Method, target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range c.headers {
		hr.Header[k] = vs
	}
	for k, vs := range req.Header {
		hr.Header[k] = vs
	}
	if hr.Header.Get("Accept") == "" {
		hr.Header.Set("Accept", "application/json")
	}
	if contentType != "" && hr.Header.Get("Content-Type") == "" {
		hr.Header.Set("Content-Type", contentType)
	}
	if c.cfg.UserAgent != "" && hr.Header.Get("User-Agent") == "" {
		hr.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	hr.Header.Set("X-Request-Id", uuid.NewString())

	if err := c.auth(ctx, hr); err != nil {
		return 0, nil, err
	}

	resp, err := c.http.Do(hr)
	if err != nil {
		c.logger.Warn("upstream request failed",
			"vendor", c.cfg.Vendor, "method", req.Method, "path", req.Path, "error", err)
		return 0, nil, fmt.Errorf("%s request: %w", c.cfg.Vendor, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read %s response: %w", c.cfg.Vendor, err)
	}
	return resp.StatusCode, respBody, nil
}

func (c *Client) resolve(path string, query url.Values) (string, error) {
	raw := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		if c.cfg.BaseURL == "" {
			return "", fmt.Errorf("%s: no base URL configured", c.cfg.Vendor)
		}
		raw = strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// cacheKey binds a cached response to the caller so one tenant never reads
// another tenant's data.
func (c *Client) cacheKey(ctx context.Context, target string) string {
	creds := credentials.FromContext(ctx)
	data, _ := json.Marshal(creds.Data)
	h := sha256.New()
	h.Write([]byte(c.cfg.Vendor))
	h.Write([]byte{0})
	h.Write([]byte(target))
	h.Write([]byte{0})
	h.Write([]byte(creds.Token))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func decodeInto(body []byte, out any) error {
	if out == nil {
		return nil
	}
	if raw, ok := out.(*[]byte); ok {
		*raw = append((*raw)[:0], body...)
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ---------------------------------------------------------------------------
// Shorthands
// ---------------------------------------------------------------------------

// Get issues a GET with query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	_, err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
	return err
}

// GetCached issues a GET that may be served from the response cache.
func (c *Client) GetCached(ctx context.Context, path string, query url.Values, out any) error {
	_, err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query, Cache: true}, out)
	return err
}

// Post sends body as JSON.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	_, err := c.Do(ctx, Request{Method: http.MethodPost, Path: path, JSON: body}, out)
	return err
}

// Patch sends body as JSON.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	_, err := c.Do(ctx, Request{Method: http.MethodPatch, Path: path, JSON: body}, out)
	return err
}

// Put sends body as JSON.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	_, err := c.Do(ctx, Request{Method: http.MethodPut, Path: path, JSON: body}, out)
	return err
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	_, err := c.Do(ctx, Request{Method: http.MethodDelete, Path: path}, out)
	return err
}
