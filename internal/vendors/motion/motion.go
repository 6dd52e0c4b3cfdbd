// Package motion exposes the Motion task manager API as MCP tools.
//
// Credentials: an API key as x-auth-token, as api_key in x-auth-data, or via
// MOTION_API_KEY. It is sent in the X-API-Key header.
package motion

import (
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"mcp-fleet/internal/shape"
	"mcp-fleet/internal/toolkit"
	"mcp-fleet/internal/upstream"
)

const (
	Name           = "motion"
	DefaultBaseURL = "https://api.usemotion.com/v1"
	envAPIKey      = "MOTION_API_KEY"

	defaultSchedule = "Work Hours"
)

var Factory = toolkit.Factory{
	Name:        Name,
	Title:       "Motion",
	DefaultPort: 5011,
	New:         New,
}

type Vendor struct {
	api *upstream.Client
}

func New(deps toolkit.Deps) (toolkit.Vendor, error) {
	cfg := deps.Upstream.WithBaseURL(DefaultBaseURL)
	return &Vendor{
		api: upstream.New(cfg,
			upstream.Header("X-API-Key", "", envAPIKey, "api_key"),
			upstream.WithLogger(deps.Logger),
		),
	}, nil
}

func (v *Vendor) Name() string { return Name }

func (v *Vendor) Tools() []server.ServerTool { return v.tools() }

var priorities = map[string]string{
	"asap":   "ASAP",
	"urgent": "ASAP",
	"high":   "HIGH",
	"medium": "MEDIUM",
	"normal": "MEDIUM",
	"low":    "LOW",
}

// priority maps a case-insensitive level onto Motion's enum.
func priority(s string) (string, error) {
	p, ok := priorities[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", toolkit.Invalid("priority %q must be one of ASAP, HIGH, MEDIUM, LOW", s)
	}
	return p, nil
}

// duration accepts NONE, REMINDER, whole minutes or a Go duration such as
// "1h30m". Minutes are returned as an integer.
func duration(v any) (any, error) {
	switch t := v.(type) {
	case float64:
		if t <= 0 || t != float64(int(t)) {
			return nil, toolkit.Invalid("duration must be a positive whole number of minutes")
		}
		return int(t), nil
	case string:
		s := strings.TrimSpace(t)
		switch strings.ToUpper(s) {
		case "NONE", "REMINDER":
			return strings.ToUpper(s), nil
		}
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n, nil
		}
		if d, err := time.ParseDuration(s); err == nil && d >= time.Minute {
			return int(d / time.Minute), nil
		}
		return nil, toolkit.Invalid("duration %q must be NONE, REMINDER or a number of minutes", s)
	default:
		return nil, toolkit.Invalid("duration must be a string or number")
	}
}

// date normalizes a date or timestamp to RFC3339 UTC. A bare date is taken
// as the end of that day, which is how Motion treats deadlines.
func date(s string) (string, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC().Format(time.RFC3339), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return "", toolkit.Invalid("%q is not an ISO 8601 date or timestamp", s)
	}
	return t.Add(24*time.Hour - time.Minute).Format(time.RFC3339), nil
}

// calendarDay returns the YYYY-MM-DD part of a date or timestamp as written,
// in the timestamp's own offset.
func calendarDay(s string) (string, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(time.DateOnly), nil
	}
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		return "", toolkit.Invalid("%q is not an ISO 8601 date or timestamp", s)
	}
	return s, nil
}

// labels trims, drops empties and removes duplicates, keeping order.
func labels(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, l := range in {
		l = strings.TrimSpace(l)
		if l == "" || seen[strings.ToLower(l)] {
			continue
		}
		seen[strings.ToLower(l)] = true
		out = append(out, l)
	}
	return out
}

var taskFields = map[string]string{
	"id":              "id",
	"name":            "name",
	"description":     "description",
	"status":          "status.name",
	"completed":       "completed",
	"priority":        "priority",
	"duration":        "duration",
	"due_date":        "dueDate",
	"deadline_type":   "deadlineType",
	"scheduled_start": "scheduledStart",
	"scheduled_end":   "scheduledEnd",
	"labels":          "labels[*].name",
	"assignees":       "assignees[*].name",
	"project_id":      "project.id",
	"project":         "project.name",
	"workspace_id":    "workspace.id",
	"created_time":    "createdTime",
}

func taskOut(doc any) map[string]any {
	return shape.Compact(shape.Pick(doc, taskFields))
}

func tasksOut(items any) []map[string]any {
	list := shape.Items(items)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		out = append(out, taskOut(item))
	}
	return out
}
