// Package googletasks exposes Google Tasks lists and tasks as MCP tools.
//
// Credentials are resolved by gworkspace; the access token env var is
// GOOGLE_TASKS_ACCESS_TOKEN.
package googletasks

import (
	"context"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"google.golang.org/api/tasks/v1"

	"mcp-fleet/internal/shape"
	"mcp-fleet/internal/toolkit"
	"mcp-fleet/internal/vendors/gworkspace"
)

const (
	Name           = "googletasks"
	envAccessToken = "GOOGLE_TASKS_ACCESS_TOKEN"

	defaultList = "@default"
)

var Factory = toolkit.Factory{
	Name:        Name,
	Title:       "Google Tasks",
	DefaultPort: 5009,
	New:         New,
}

type Vendor struct {
	auth *gworkspace.Auth
}

func New(deps toolkit.Deps) (toolkit.Vendor, error) {
	return &Vendor{auth: gworkspace.NewAuth(Name, envAccessToken, deps)}, nil
}

func (v *Vendor) Name() string { return Name }

func (v *Vendor) Tools() []server.ServerTool { return v.tools() }

func (v *Vendor) service(ctx context.Context) (*tasks.Service, error) {
	opts, err := v.auth.Options(ctx, v.auth.Endpoint())
	if err != nil {
		return nil, err
	}
	return tasks.NewService(ctx, opts...)
}

// due normalizes a date or RFC 3339 timestamp. Google Tasks keeps only the
// date part of due.
func due(s string) (string, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.Format(time.RFC3339), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return "", toolkit.Invalid("due must be YYYY-MM-DD or RFC 3339, got %q", s)
	}
	return t.UTC().Format(time.RFC3339), nil
}

func taskListOut(l *tasks.TaskList) map[string]any {
	return map[string]any{"id": l.Id, "title": l.Title, "updated": l.Updated}
}

func taskOut(t *tasks.Task) map[string]any {
	out := map[string]any{
		"id":       t.Id,
		"title":    t.Title,
		"notes":    t.Notes,
		"status":   t.Status,
		"due":      t.Due,
		"parent":   t.Parent,
		"position": t.Position,
		"updated":  t.Updated,
		"link":     t.WebViewLink,
	}
	if t.Completed != nil {
		out["completed"] = *t.Completed
	}
	return shape.Compact(out)
}
