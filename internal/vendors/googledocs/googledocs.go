// Package googledocs exposes Google Docs as MCP tools that read and write
// markdown. Documents are listed through the Drive API.
//
// Credentials are resolved by gworkspace; the access token env var is
// GOOGLE_DOCS_ACCESS_TOKEN.
package googledocs

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"google.golang.org/api/docs/v1"
	"google.golang.org/api/drive/v3"

	"mcp-fleet/internal/toolkit"
	"mcp-fleet/internal/vendors/gworkspace"
)

const (
	Name           = "googledocs"
	envAccessToken = "GOOGLE_DOCS_ACCESS_TOKEN"

	documentMime = "application/vnd.google-apps.document"
)

var Factory = toolkit.Factory{
	Name:        Name,
	Title:       "Google Docs",
	DefaultPort: 5010,
	New:         New,
}

type Vendor struct {
	auth *gworkspace.Auth

	// Both empty unless a base URL is configured; Drive then lives under
	// drive/v3/ of the same root.
	docsEndpoint  string
	driveEndpoint string
}

func New(deps toolkit.Deps) (toolkit.Vendor, error) {
	v := &Vendor{auth: gworkspace.NewAuth(Name, envAccessToken, deps)}
	if base := v.auth.Endpoint(); base != "" {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		v.docsEndpoint = base
		v.driveEndpoint = base + "drive/v3/"
	}
	return v, nil
}

func (v *Vendor) Name() string { return Name }

func (v *Vendor) Tools() []server.ServerTool { return v.tools() }

func (v *Vendor) docs(ctx context.Context) (*docs.Service, error) {
	opts, err := v.auth.Options(ctx, v.docsEndpoint)
	if err != nil {
		return nil, err
	}
	return docs.NewService(ctx, opts...)
}

func (v *Vendor) drive(ctx context.Context) (*drive.Service, error) {
	opts, err := v.auth.Options(ctx, v.driveEndpoint)
	if err != nil {
		return nil, err
	}
	return drive.NewService(ctx, opts...)
}

func documentURL(id string) string {
	return "https://docs.google.com/document/d/" + id + "/edit"
}

// endIndex is where appended content goes: before the final newline every
// document body ends with.
func endIndex(d *docs.Document) int64 {
	if d.Body == nil || len(d.Body.Content) == 0 {
		return 1
	}
	end := d.Body.Content[len(d.Body.Content)-1].EndIndex - 1
	if end < 1 {
		return 1
	}
	return end
}

// lastParagraphEmpty reports whether the body ends in a paragraph holding
// only its newline.
func lastParagraphEmpty(d *docs.Document) bool {
	if d.Body == nil || len(d.Body.Content) == 0 {
		return true
	}
	last := d.Body.Content[len(d.Body.Content)-1]
	return last.EndIndex-last.StartIndex <= 1
}
