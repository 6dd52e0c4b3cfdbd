// Package gong exposes Gong call recordings and transcripts as MCP tools.
//
// Credentials: access_key and access_key_secret in x-auth-data (basic auth),
// or an OAuth access token as x-auth-token. Env fallbacks are GONG_ACCESS_KEY,
// GONG_ACCESS_KEY_SECRET and GONG_ACCESS_TOKEN.
package gong

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"mcp-fleet/internal/credentials"
	"mcp-fleet/internal/toolkit"
	"mcp-fleet/internal/upstream"
)

const (
	Name           = "gong"
	DefaultBaseURL = "https://api.gong.io/v2"

	envAccessKey    = "GONG_ACCESS_KEY"
	envAccessSecret = "GONG_ACCESS_KEY_SECRET"
	envAccessToken  = "GONG_ACCESS_TOKEN"
)

var Factory = toolkit.Factory{
	Name:        Name,
	Title:       "Gong",
	DefaultPort: 5003,
	New:         New,
}

type Vendor struct {
	api *upstream.Client
}

func New(deps toolkit.Deps) (toolkit.Vendor, error) {
	cfg := deps.Upstream.WithBaseURL(DefaultBaseURL)
	return &Vendor{api: upstream.New(cfg, authorize, upstream.WithLogger(deps.Logger))}, nil
}

func (v *Vendor) Name() string { return Name }

func (v *Vendor) Tools() []server.ServerTool { return v.tools() }

// authorize prefers an access key pair and falls back to a bearer token.
func authorize(ctx context.Context, r *http.Request) error {
	c := credentials.FromContext(ctx)
	key, secret := c.Lookup("access_key", envAccessKey), c.Lookup("access_key_secret", envAccessSecret)
	if key != "" && secret != "" {
		r.SetBasicAuth(key, secret)
		return nil
	}
	return upstream.Bearer(envAccessToken)(ctx, r)
}

// isoTime accepts RFC3339 or a bare date, which is taken as midnight UTC.
func isoTime(s string, endOfDay bool) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC().Format(time.RFC3339), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return "", toolkit.Invalid("%q is not an ISO 8601 date or timestamp", s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t.Format(time.RFC3339), nil
}
