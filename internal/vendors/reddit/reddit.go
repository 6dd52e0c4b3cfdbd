// Package reddit exposes Reddit search, listings and posting as MCP tools.
//
// Read tools work with app-only OAuth (client_id and client_secret, or
// REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET). Posting and commenting need a
// user access token as x-auth-token or access_token.
package reddit

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"mcp-fleet/internal/credentials"
	"mcp-fleet/internal/toolkit"
	"mcp-fleet/internal/upstream"
)

const (
	Name            = "reddit"
	DefaultBaseURL  = "https://oauth.reddit.com"
	DefaultTokenURL = "https://www.reddit.com/api/v1/access_token"

	envAccessToken  = "REDDIT_ACCESS_TOKEN"
	envClientID     = "REDDIT_CLIENT_ID"
	envClientSecret = "REDDIT_CLIENT_SECRET"
	envUserAgent    = "REDDIT_USER_AGENT"
)

var Factory = toolkit.Factory{
	Name:        Name,
	Title:       "Reddit",
	DefaultPort: 5007,
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

// authorize sends a user token when given and otherwise an app-only token.
// Reddit throttles requests without a descriptive User-Agent.
func (v *Vendor) authorize(ctx context.Context, r *http.Request) error {
	c := credentials.FromContext(ctx)
	if ua := c.Lookup("user_agent", envUserAgent); ua != "" {
		r.Header.Set("User-Agent", ua)
	}
	if tok := c.BearerToken(envAccessToken); tok != "" {
		r.Header.Set("Authorization", "Bearer "+tok)
		return nil
	}
	id := c.Lookup("client_id", envClientID)
	secret := c.Lookup("client_secret", envClientSecret)
	if id == "" || secret == "" {
		return fmt.Errorf("%w: provide access_token, or client_id and client_secret", credentials.ErrMissing)
	}
	ts := v.tokens.Source(func() oauth2.TokenSource {
		conf := &clientcredentials.Config{
			ClientID:     id,
			ClientSecret: secret,
			TokenURL:     v.tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		return conf.TokenSource(upstream.TokenContext(v.api.HTTPClient()))
	}, id, secret)
	tok, err := ts.Token()
	if err != nil {
		return fmt.Errorf("reddit app token: %w", err)
	}
	tok.SetAuthHeader(r)
	return nil
}

// listing is Reddit's paginated container.
type listing struct {
	Data struct {
		After    string  `json:"after"`
		Children []thing `json:"children"`
	} `json:"data"`
}

type thing struct {
	Kind string         `json:"kind"`
	Data map[string]any `json:"data"`
}
