// Package gworkspace holds what the Google Workspace vendors share: per-request
// OAuth credentials for google.golang.org/api clients, rate limit retries and
// error translation.
//
// Credentials: an access token as x-auth-token or access_token, or the
// vendor's token env var; otherwise refresh_token, client_id and
// client_secret (GOOGLE_REFRESH_TOKEN, GOOGLE_CLIENT_ID,
// GOOGLE_CLIENT_SECRET) refreshed against the Google token endpoint.
package gworkspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"mcp-fleet/internal/credentials"
	"mcp-fleet/internal/toolkit"
	"mcp-fleet/internal/upstream"
)

const (
	DefaultTokenURL = "https://oauth2.googleapis.com/token"

	envRefreshToken = "GOOGLE_REFRESH_TOKEN"
	envClientID     = "GOOGLE_CLIENT_ID"
	envClientSecret = "GOOGLE_CLIENT_SECRET"
)

// Auth builds authorized Google API client options for the caller of a
// request.
type Auth struct {
	vendor   string
	env      string
	endpoint string
	tokenURL string
	http     *http.Client
	retries  int
	backoff  time.Duration
	logger   *slog.Logger
	tokens   upstream.TokenCache
}

// NewAuth reads access tokens from env. A configured base URL replaces the
// API endpoint.
func NewAuth(vendor, env string, deps toolkit.Deps) *Auth {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &Auth{
		vendor:   vendor,
		env:      env,
		endpoint: deps.Upstream.BaseURL,
		tokenURL: deps.Vendor.TokenURL,
		http:     upstream.New(deps.Upstream, nil).HTTPClient(),
		retries:  deps.Upstream.MaxRetries,
		backoff:  deps.Upstream.RetryBackoff,
		logger:   logger,
	}
	if a.tokenURL == "" {
		a.tokenURL = DefaultTokenURL
	}
	return a
}

// Endpoint is the configured API root, or "" for the library default.
func (a *Auth) Endpoint() string { return a.endpoint }

// Client returns an HTTP client that authorizes every request as the caller.
func (a *Auth) Client(ctx context.Context) (*http.Client, error) {
	c := credentials.FromContext(ctx)
	var ts oauth2.TokenSource
	if tok := c.BearerToken(a.env); tok != "" {
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok, TokenType: "Bearer"})
	} else {
		refresh := c.Lookup("refresh_token", envRefreshToken)
		id := c.Lookup("client_id", envClientID)
		secret := c.Lookup("client_secret", envClientSecret)
		if refresh == "" || id == "" || secret == "" {
			return nil, fmt.Errorf("%w: provide access_token (or %s), or refresh_token, client_id and client_secret",
				credentials.ErrMissing, a.env)
		}
		ts = a.tokens.Source(func() oauth2.TokenSource {
			conf := &oauth2.Config{
				ClientID:     id,
				ClientSecret: secret,
				Endpoint:     oauth2.Endpoint{TokenURL: a.tokenURL, AuthStyle: oauth2.AuthStyleInParams},
			}
			return conf.TokenSource(upstream.TokenContext(a.http), &oauth2.Token{RefreshToken: refresh})
		}, id, secret, refresh)
	}
	return &http.Client{
		Timeout:   a.http.Timeout,
		Transport: &oauth2.Transport{Source: ts, Base: a.http.Transport},
	}, nil
}

// Options returns client options for a service rooted at endpoint, or at
// the library default when endpoint is "".
func (a *Auth) Options(ctx context.Context, endpoint string) ([]option.ClientOption, error) {
	hc, err := a.Client(ctx)
	if err != nil {
		return nil, err
	}
	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return opts, nil
}

// Do runs fn, retrying after the fixed backoff while Google answers 429.
// The returned error is translated with Translate for resource.
func (a *Auth) Do(ctx context.Context, resource string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		var ge *googleapi.Error
		if !errors.As(err, &ge) || ge.Code != http.StatusTooManyRequests || attempt >= a.retries {
			return Translate(a.vendor, resource, err)
		}
		a.logger.Info("rate limited, retrying", "vendor", a.vendor, "resource", resource, "attempt", attempt+1)
		t := time.NewTimer(a.backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Translate maps a googleapi.Error onto the shared error types. A 404
// becomes a not-found for resource.
func Translate(vendor, resource string, err error) error {
	if err == nil {
		return nil
	}
	var ge *googleapi.Error
	if !errors.As(err, &ge) {
		return err
	}
	if ge.Code == http.StatusNotFound {
		return toolkit.NotFound(resource)
	}
	msg := ge.Message
	if msg == "" {
		msg = http.StatusText(ge.Code)
	}
	return &upstream.Error{Vendor: vendor, StatusCode: ge.Code, Message: msg, Body: ge.Body}
}
