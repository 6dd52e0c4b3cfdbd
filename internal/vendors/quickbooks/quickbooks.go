// Package quickbooks exposes QuickBooks Online accounting data as MCP tools.
//
// Credentials come from x-auth-data (or env):
//
//	realm_id       QUICKBOOKS_REALM_ID      company ID, required
//	environment    QUICKBOOKS_ENVIRONMENT   "sandbox" or "production" (default)
//	access_token   QUICKBOOKS_ACCESS_TOKEN  used as is when present
//	refresh_token  QUICKBOOKS_REFRESH_TOKEN exchanged for access tokens
//	client_id      QUICKBOOKS_CLIENT_ID     with client_secret, for the exchange
//	client_secret  QUICKBOOKS_CLIENT_SECRET
package quickbooks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/oauth2"

	"mcp-fleet/internal/credentials"
	"mcp-fleet/internal/shape"
	"mcp-fleet/internal/toolkit"
	"mcp-fleet/internal/upstream"
)

const (
	Name = "quickbooks"

	ProductionBaseURL = "https://quickbooks.api.intuit.com"
	SandboxBaseURL    = "https://sandbox-quickbooks.api.intuit.com"
	DefaultTokenURL   = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"
	minorVersion      = "75"

	envRealmID      = "QUICKBOOKS_REALM_ID"
	envEnvironment  = "QUICKBOOKS_ENVIRONMENT"
	envAccessToken  = "QUICKBOOKS_ACCESS_TOKEN"
	envRefreshToken = "QUICKBOOKS_REFRESH_TOKEN"
	envClientID     = "QUICKBOOKS_CLIENT_ID"
	envClientSecret = "QUICKBOOKS_CLIENT_SECRET"
)

var Factory = toolkit.Factory{
	Name:        Name,
	Title:       "QuickBooks Online",
	DefaultPort: 5005,
	New:         New,
}

type Vendor struct {
	api      *upstream.Client
	baseURL  string // fixed override, ignores environment
	tokenURL string
	tokens   upstream.TokenCache
}

func New(deps toolkit.Deps) (toolkit.Vendor, error) {
	v := &Vendor{
		baseURL:  strings.TrimRight(deps.Upstream.BaseURL, "/"),
		tokenURL: deps.Vendor.TokenURL,
	}
	if v.tokenURL == "" {
		v.tokenURL = DefaultTokenURL
	}
	v.api = upstream.New(deps.Upstream, v.authorize,
		upstream.WithErrorDecoder(decodeFault),
		upstream.WithLogger(deps.Logger),
	)
	return v, nil
}

func (v *Vendor) Name() string { return Name }

func (v *Vendor) Tools() []server.ServerTool { return v.tools() }

// company returns the API root for the caller's realm.
func (v *Vendor) company(ctx context.Context) (string, error) {
	c := credentials.FromContext(ctx)
	realm, err := c.Require("realm_id", envRealmID)
	if err != nil {
		return "", err
	}
	base := v.baseURL
	if base == "" {
		base = ProductionBaseURL
		if strings.EqualFold(c.Lookup("environment", envEnvironment), "sandbox") {
			base = SandboxBaseURL
		}
	}
	return base + "/v3/company/" + url.PathEscape(realm), nil
}

// authorize uses a caller supplied access token or refreshes one. Token
// sources are cached per client and refresh token so access tokens are
// reused until they expire.
func (v *Vendor) authorize(ctx context.Context, r *http.Request) error {
	c := credentials.FromContext(ctx)
	if tok := c.BearerToken(envAccessToken); tok != "" {
		r.Header.Set("Authorization", "Bearer "+tok)
		return nil
	}
	refresh := c.Lookup("refresh_token", envRefreshToken)
	if refresh == "" {
		return fmt.Errorf("%w: provide access_token, or refresh_token with client_id and client_secret", credentials.ErrMissing)
	}
	id, err := c.Require("client_id", envClientID)
	if err != nil {
		return err
	}
	secret, err := c.Require("client_secret", envClientSecret)
	if err != nil {
		return err
	}
	tok, err := v.source(id, secret, refresh).Token()
	if err != nil {
		return fmt.Errorf("refresh QuickBooks token: %w", err)
	}
	tok.SetAuthHeader(r)
	return nil
}

func (v *Vendor) source(id, secret, refresh string) oauth2.TokenSource {
	return v.tokens.Source(func() oauth2.TokenSource {
		conf := &oauth2.Config{
			ClientID:     id,
			ClientSecret: secret,
			Endpoint:     oauth2.Endpoint{TokenURL: v.tokenURL, AuthStyle: oauth2.AuthStyleInHeader},
		}
		return conf.TokenSource(upstream.TokenContext(v.api.HTTPClient()), &oauth2.Token{RefreshToken: refresh})
	}, id, secret, refresh)
}

// decodeFault reads QuickBooks' Fault envelope, which comes in two casings.
func decodeFault(_ int, body []byte) string {
	doc, err := shape.Decode(body)
	if err != nil {
		return ""
	}
	for _, p := range []string{
		"Fault.Error[0].Detail", "Fault.Error[0].Message",
		"fault.error[0].detail", "fault.error[0].message",
	} {
		if s := shape.String(shape.Path(doc, p)); s != "" {
			return s
		}
	}
	return ""
}

var queryEscaper = strings.NewReplacer(`\`, `\\`, "'", `\'`)

// escape quotes a value for the QuickBooks query language.
func escape(s string) string {
	return queryEscaper.Replace(s)
}
