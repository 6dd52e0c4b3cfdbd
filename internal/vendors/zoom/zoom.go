// Package zoom exposes Zoom meetings and recordings as MCP tools.
//
// Credentials: an OAuth access token (x-auth-token, access_token, or
// ZOOM_ACCESS_TOKEN), or Server-to-Server OAuth app credentials account_id,
// client_id and client_secret (ZOOM_ACCOUNT_ID, ZOOM_CLIENT_ID,
// ZOOM_CLIENT_SECRET).
package zoom

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"mcp-fleet/internal/credentials"
	"mcp-fleet/internal/toolkit"
	"mcp-fleet/internal/upstream"
)

const (
	Name            = "zoom"
	DefaultBaseURL  = "https://api.zoom.us/v2"
	DefaultTokenURL = "https://zoom.us/oauth/token"

	envAccessToken  = "ZOOM_ACCESS_TOKEN"
	envAccountID    = "ZOOM_ACCOUNT_ID"
	envClientID     = "ZOOM_CLIENT_ID"
	envClientSecret = "ZOOM_CLIENT_SECRET"
)

var Factory = toolkit.Factory{
	Name:        Name,
	Title:       "Zoom",
	DefaultPort: 5006,
	New:         New,
}

type Vendor struct {
	api      *upstream.Client
	tokenURL string
	tokens   upstream.TokenCache
}

func New(deps toolkit.Deps) (toolkit.Vendor, error) {
	v := &Vendor{tokenURL: deps.Vendor.TokenURL}
	if v.tokenURL == "" {
		v.tokenURL = DefaultTokenURL
	}
	v.api = upstream.New(deps.Upstream.WithBaseURL(DefaultBaseURL), v.authorize,
		upstream.WithLogger(deps.Logger))
	return v, nil
}

func (v *Vendor) Name() string { return Name }

func (v *Vendor) Tools() []server.ServerTool { return v.tools() }

func (v *Vendor) authorize(ctx context.Context, r *http.Request) error {
	c := credentials.FromContext(ctx)
	if tok := c.BearerToken(envAccessToken); tok != "" {
		r.Header.Set("Authorization", "Bearer "+tok)
		return nil
	}
	account := c.Lookup("account_id", envAccountID)
	id := c.Lookup("client_id", envClientID)
	secret := c.Lookup("client_secret", envClientSecret)
	if account == "" || id == "" || secret == "" {
		return fmt.Errorf("%w: provide access_token, or account_id, client_id and client_secret", credentials.ErrMissing)
	}

	ts := v.tokens.Source(func() oauth2.TokenSource {
		conf := &clientcredentials.Config{
			ClientID:     id,
			ClientSecret: secret,
			TokenURL:     v.tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
			EndpointParams: url.Values{
				"grant_type": {"account_credentials"},
				"account_id": {account},
			},
		}
		return conf.TokenSource(upstream.TokenContext(v.api.HTTPClient()))
	}, account, id, secret)

	tok, err := ts.Token()
	if err != nil {
		return fmt.Errorf("zoom account credentials: %w", err)
	}
	tok.SetAuthHeader(r)
	return nil
}
