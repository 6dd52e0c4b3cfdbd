// Package klaviyo exposes the Klaviyo JSON:API as MCP tools.
//
// Credentials: a private API key as x-auth-token, as api_key in
// x-auth-data, or via KLAVIYO_API_KEY.
package klaviyo

import (
	"errors"
	"net/url"

	"github.com/mark3labs/mcp-go/server"

	"mcp-fleet/internal/shape"
	"mcp-fleet/internal/toolkit"
	"mcp-fleet/internal/upstream"
)

const (
	Name           = "klaviyo"
	DefaultBaseURL = "https://a.klaviyo.com/api"
	Revision       = "2024-10-15"
	envAPIKey      = "KLAVIYO_API_KEY"
	mediaType      = "application/vnd.api+json"
)

var Factory = toolkit.Factory{
	Name:        Name,
	Title:       "Klaviyo",
	DefaultPort: 5004,
	New:         New,
}

type Vendor struct {
	api *upstream.Client
}

func New(deps toolkit.Deps) (toolkit.Vendor, error) {
	cfg := deps.Upstream.WithBaseURL(DefaultBaseURL)
	return &Vendor{
		api: upstream.New(cfg,
			upstream.Header("Authorization", "Klaviyo-API-Key ", envAPIKey, "api_key", "private_key"),
			upstream.WithHeader("revision", Revision),
			upstream.WithHeader("Accept", mediaType),
			upstream.WithHeader("Content-Type", mediaType),
			upstream.WithLogger(deps.Logger),
		),
	}, nil
}

func (v *Vendor) Name() string { return Name }

func (v *Vendor) Tools() []server.ServerTool { return v.tools() }

// resource is one JSON:API resource object.
type resource struct {
	Type          string         `json:"type"`
	ID            string         `json:"id"`
	Attributes    map[string]any `json:"attributes"`
	Relationships map[string]any `json:"relationships,omitempty"`
}

type document struct {
	Data  []resource `json:"data"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

// flatten merges a resource's id into its attributes.
func flatten(r resource) map[string]any {
	out := make(map[string]any, len(r.Attributes)+1)
	for k, val := range r.Attributes {
		out[k] = val
	}
	out["id"] = r.ID
	return out
}

func flattenAll(rs []resource) []map[string]any {
	out := make([]map[string]any, 0, len(rs))
	for _, r := range rs {
		out = append(out, flatten(r))
	}
	return out
}

// nextCursor extracts page[cursor] from a links.next URL.
func nextCursor(next string) string {
	if next == "" {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil {
		return ""
	}
	return u.Query().Get("page[cursor]")
}

// duplicateProfileID returns the existing profile ID reported by a 409.
func duplicateProfileID(err error) string {
	var ue *upstream.Error
	if !errors.As(err, &ue) || ue.StatusCode != 409 {
		return ""
	}
	doc, derr := shape.Decode([]byte(ue.Body))
	if derr != nil {
		return ""
	}
	if shape.String(shape.Path(doc, "errors[0].code")) != "duplicate_profile" {
		return ""
	}
	return shape.String(shape.Path(doc, "errors[0].meta.duplicate_profile_id"))
}
