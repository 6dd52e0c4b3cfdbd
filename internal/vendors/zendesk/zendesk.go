// Package zendesk exposes Zendesk Support tickets and users as MCP tools.
//
// Credentials: subdomain plus either email and api_token (basic auth as
// "email/token") or an OAuth access token as x-auth-token. Env fallbacks are
// ZENDESK_SUBDOMAIN, ZENDESK_EMAIL, ZENDESK_API_TOKEN and
// ZENDESK_ACCESS_TOKEN.
package zendesk

import (
	"context"
	"maps"
	"net/http"
	"regexp"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/server"

	"mcp-fleet/internal/credentials"
	"mcp-fleet/internal/shape"
	"mcp-fleet/internal/toolkit"
	"mcp-fleet/internal/upstream"
)

const (
	Name = "zendesk"

	envSubdomain   = "ZENDESK_SUBDOMAIN"
	envEmail       = "ZENDESK_EMAIL"
	envAPIToken    = "ZENDESK_API_TOKEN"
	envAccessToken = "ZENDESK_ACCESS_TOKEN"
)

var Factory = toolkit.Factory{
	Name:        Name,
	Title:       "Zendesk",
	DefaultPort: 5012,
	New:         New,
}

type Vendor struct {
	api *upstream.Client
	// base overrides the per-subdomain API root when configured.
	base string
}

func New(deps toolkit.Deps) (toolkit.Vendor, error) {
	return &Vendor{
		api: upstream.New(deps.Upstream, authorize,
			upstream.WithErrorDecoder(decodeError),
			upstream.WithLogger(deps.Logger),
		),
		base: strings.TrimRight(deps.Upstream.BaseURL, "/"),
	}, nil
}

func (v *Vendor) Name() string { return Name }

func (v *Vendor) Tools() []server.ServerTool { return v.tools() }

var subdomainRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)

// subdomain accepts "acme", "acme.zendesk.com" or "https://acme.zendesk.com".
func subdomain(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(strings.TrimPrefix(s, "https://"), "http://")
	s = strings.TrimSuffix(strings.TrimSuffix(s, "/"), ".zendesk.com")
	if !subdomainRe.MatchString(s) {
		return "", toolkit.Invalid("invalid Zendesk subdomain %q", s)
	}
	return s, nil
}

// endpoint returns the absolute URL of an API path for the caller's account.
func (v *Vendor) endpoint(ctx context.Context, path string) (string, error) {
	if v.base != "" {
		return v.base + path, nil
	}
	raw, err := credentials.FromContext(ctx).Require("subdomain", envSubdomain)
	if err != nil {
		return "", err
	}
	sub, err := subdomain(raw)
	if err != nil {
		return "", err
	}
	return "https://" + sub + ".zendesk.com/api/v2" + path, nil
}

// authorize uses an API token pair when present, else a bearer token.
func authorize(ctx context.Context, r *http.Request) error {
	c := credentials.FromContext(ctx)
	email, tok := c.Lookup("email", envEmail), c.Lookup("api_token", envAPIToken)
	if email != "" && tok != "" {
		r.SetBasicAuth(email+"/token", tok)
		return nil
	}
	return upstream.Bearer(envAccessToken)(ctx, r)
}

// decodeError reads Zendesk's validation details, which carry the useful
// text for 422 responses.
func decodeError(_ int, body []byte) string {
	doc, err := shape.Decode(body)
	if err != nil {
		return ""
	}
	details, _ := shape.Path(doc, "details").(map[string]any)
	var parts []string
	for _, field := range slices.Sorted(maps.Keys(details)) {
		for _, d := range shape.Items(details[field]) {
			if s := shape.String(shape.Path(d, "description")); s != "" {
				parts = append(parts, s)
			}
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, "; ")
	}
	if s := shape.String(shape.Path(doc, "error.message")); s != "" {
		return s
	}
	if s := shape.String(shape.Path(doc, "description")); s != "" {
		return s
	}
	return ""
}

var ticketFields = map[string]string{
	"id":           "id",
	"subject":      "subject",
	"description":  "description",
	"status":       "status",
	"priority":     "priority",
	"type":         "type",
	"requester_id": "requester_id",
	"assignee_id":  "assignee_id",
	"group_id":     "group_id",
	"tags":         "tags",
	"created_at":   "created_at",
	"updated_at":   "updated_at",
}

func ticketOut(doc any) map[string]any {
	t := shape.Compact(shape.Pick(doc, ticketFields))
	if d, ok := t["description"].(string); ok {
		t["description"] = shape.Truncate(d, 1000)
	}
	return t
}

var userFields = map[string]string{
	"id":         "id",
	"name":       "name",
	"email":      "email",
	"role":       "role",
	"active":     "active",
	"suspended":  "suspended",
	"time_zone":  "time_zone",
	"created_at": "created_at",
}

func userOut(doc any) map[string]any { return shape.Compact(shape.Pick(doc, userFields)) }

var commentFields = map[string]string{
	"id":         "id",
	"author_id":  "author_id",
	"body":       "body",
	"public":     "public",
	"created_at": "created_at",
}
