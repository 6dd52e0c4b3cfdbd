package klaviyo

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"mcp-fleet/internal/toolkit"
)

func (v *Vendor) tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("klaviyo_get_profiles",
				mcp.WithDescription("List profiles, optionally matching an exact email."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("email", mcp.Description("Exact email address")),
				mcp.WithNumber("page_size", mcp.Description("Profiles per page (default 20, max 100)")),
				mcp.WithString("cursor", mcp.Description("Cursor from a previous page")),
			),
			Handler: toolkit.Handle(v.handleGetProfiles),
		},
		{
			Tool: mcp.NewTool("klaviyo_get_profile",
				mcp.WithDescription("Get one profile by ID."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("profile_id", mcp.Required(), mcp.Description("Profile ID")),
			),
			Handler: toolkit.Handle(v.handleGetProfile),
		},
		{
			Tool: mcp.NewTool("klaviyo_create_profile",
				mcp.WithDescription("Create a profile. When one already exists for the email or phone, its ID is returned instead."),
				mcp.WithString("email", mcp.Description("Email address")),
				mcp.WithString("phone_number", mcp.Description("E.164 phone number")),
				mcp.WithString("first_name", mcp.Description("First name")),
				mcp.WithString("last_name", mcp.Description("Last name")),
				mcp.WithObject("properties", mcp.Description("Custom properties")),
			),
			Handler: toolkit.Handle(v.handleCreateProfile),
		},
		{
			Tool: mcp.NewTool("klaviyo_get_lists",
				mcp.WithDescription("List subscriber lists."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("cursor", mcp.Description("Cursor from a previous page")),
			),
			Handler: toolkit.Handle(v.handleGetLists),
		},
		{
			Tool: mcp.NewTool("klaviyo_add_profiles_to_list",
				mcp.WithDescription("Add existing profiles to a list."),
				mcp.WithString("list_id", mcp.Required(), mcp.Description("List ID")),
				mcp.WithArray("profile_ids", mcp.Required(), mcp.WithStringItems(), mcp.Description("Profile IDs (max 1000)")),
			),
			Handler: toolkit.Handle(v.handleAddToList),
		},
		{
			Tool: mcp.NewTool("klaviyo_get_campaigns",
				mcp.WithDescription("List campaigns of one channel."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("channel", mcp.Enum("email", "sms", "mobile_push"), mcp.Description("Message channel (default email)")),
				mcp.WithString("cursor", mcp.Description("Cursor from a previous page")),
			),
			Handler: toolkit.Handle(v.handleGetCampaigns),
		},
		{
			Tool: mcp.NewTool("klaviyo_get_metrics",
				mcp.WithDescription("List metrics (event types) of the account."),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: toolkit.Handle(v.handleGetMetrics),
		},
		{
			Tool: mcp.NewTool("klaviyo_create_event",
				mcp.WithDescription("Track an event for a profile identified by email."),
				mcp.WithString("metric_name", mcp.Required(), mcp.Description("Metric name, e.g. Placed Order")),
				mcp.WithString("email", mcp.Required(), mcp.Description("Profile email")),
				mcp.WithObject("properties", mcp.Description("Event properties")),
				mcp.WithNumber("value", mcp.Description("Monetary value")),
				mcp.WithString("time", mcp.Description("ISO 8601 timestamp (default now)")),
			),
			Handler: toolkit.Handle(v.handleCreateEvent),
		},
	}
}

func cursorQuery(req mcp.CallToolRequest, q url.Values) url.Values {
	if q == nil {
		q = url.Values{}
	}
	if c := toolkit.OptionalString(req, "cursor"); c != "" {
		q.Set("page[cursor]", c)
	}
	return q
}

func (v *Vendor) page(ctx context.Context, path, key string, q url.Values) (map[string]any, error) {
	var doc document
	if err := v.api.Get(ctx, path, q, &doc); err != nil {
		return nil, err
	}
	items := flattenAll(doc.Data)
	return map[string]any{key: items, "count": len(items), "next_cursor": nextCursor(doc.Links.Next)}, nil
}

// quote escapes a value for Klaviyo's filter syntax.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func (v *Vendor) handleGetProfiles(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	size, err := toolkit.IntArg(req, "page_size", 20, 1, 100)
	if err != nil {
		return nil, err
	}
	q := cursorQuery(req, url.Values{"page[size]": {strconv.Itoa(size)}})
	if email := toolkit.OptionalString(req, "email"); email != "" {
		q.Set("filter", "equals(email,"+quote(email)+")")
	}
	return v.page(ctx, "/profiles", "profiles", q)
}

func (v *Vendor) handleGetProfile(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := toolkit.RequireString(req, "profile_id")
	if err != nil {
		return nil, err
	}
	var doc struct {
		Data resource `json:"data"`
	}
	if err := toolkit.Lookup("profile "+id, v.api.Get(ctx, "/profiles/"+url.PathEscape(id), nil, &doc)); err != nil {
		return nil, err
	}
	return flatten(doc.Data), nil
}

func (v *Vendor) handleCreateProfile(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	attrs := map[string]any{}
	for _, f := range []string{"email", "phone_number", "first_name", "last_name"} {
		if s := toolkit.OptionalString(req, f); s != "" {
			attrs[f] = s
		}
	}
	if attrs["email"] == nil && attrs["phone_number"] == nil {
		return nil, toolkit.Invalid("email or phone_number is required")
	}
	props, err := toolkit.ObjectArg(req, "properties")
	if err != nil {
		return nil, err
	}
	if len(props) > 0 {
		attrs["properties"] = props
	}

	body := map[string]any{"data": map[string]any{"type": "profile", "attributes": attrs}}
	var doc struct {
		Data resource `json:"data"`
	}
	err = v.api.Post(ctx, "/profiles", body, &doc)
	if id := duplicateProfileID(err); id != "" {
		return map[string]any{"id": id, "created": false, "duplicate": true}, nil
	}
	if err != nil {
		return nil, err
	}
	out := flatten(doc.Data)
	out["created"] = true
	return out, nil
}

func (v *Vendor) handleGetLists(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	return v.page(ctx, "/lists", "lists", cursorQuery(req, nil))
}

func (v *Vendor) handleAddToList(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	listID, err := toolkit.RequireString(req, "list_id")
	if err != nil {
		return nil, err
	}
	ids := toolkit.StringList(req, "profile_ids")
	if len(ids) == 0 {
		return nil, toolkit.Invalid("profile_ids is required")
	}
	if len(ids) > 1000 {
		return nil, toolkit.Invalid("at most 1000 profile_ids per call, got %d", len(ids))
	}
	data := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		data = append(data, map[string]string{"type": "profile", "id": id})
	}
	path := fmt.Sprintf("/lists/%s/relationships/profiles", url.PathEscape(listID))
	if err := toolkit.Lookup("list "+listID, v.api.Post(ctx, path, map[string]any{"data": data}, nil)); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "list_id": listID, "added": len(ids)}, nil
}

func (v *Vendor) handleGetCampaigns(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	channel := toolkit.OptionalString(req, "channel")
	if channel == "" {
		channel = "email"
	}
	q := cursorQuery(req, url.Values{"filter": {"equals(messages.channel," + quote(channel) + ")"}})
	return v.page(ctx, "/campaigns", "campaigns", q)
}

func (v *Vendor) handleGetMetrics(ctx context.Context, _ mcp.CallToolRequest) (any, error) {
	var doc document
	if err := v.api.GetCached(ctx, "/metrics", nil, &doc); err != nil {
		return nil, err
	}
	metrics := make([]map[string]any, 0, len(doc.Data))
	for _, r := range doc.Data {
		m := map[string]any{"id": r.ID, "name": r.Attributes["name"]}
		if integ, ok := r.Attributes["integration"].(map[string]any); ok {
			m["integration"] = integ["name"]
		}
		metrics = append(metrics, m)
	}
	return map[string]any{"metrics": metrics, "count": len(metrics)}, nil
}

func (v *Vendor) handleCreateEvent(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	metric, err := toolkit.RequireString(req, "metric_name")
	if err != nil {
		return nil, err
	}
	email, err := toolkit.RequireString(req, "email")
	if err != nil {
		return nil, err
	}
	props, err := toolkit.ObjectArg(req, "properties")
	if err != nil {
		return nil, err
	}
	if props == nil {
		props = map[string]any{}
	}
	attrs := map[string]any{
		"properties": props,
		"metric": map[string]any{"data": map[string]any{
			"type": "metric", "attributes": map[string]any{"name": metric},
		}},
		"profile": map[string]any{"data": map[string]any{
			"type": "profile", "attributes": map[string]any{"email": email},
		}},
	}
	if value, ok, err := toolkit.OptionalFloat(req, "value"); err != nil {
		return nil, err
	} else if ok {
		attrs["value"] = value
	}
	if ts := toolkit.OptionalString(req, "time"); ts != "" {
		attrs["time"] = ts
	}
	body := map[string]any{"data": map[string]any{"type": "event", "attributes": attrs}}
	if err := v.api.Post(ctx, "/events", body, nil); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "metric": metric, "email": email}, nil
}
