package zendesk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"mcp-fleet/internal/shape"
	"mcp-fleet/internal/toolkit"
	"mcp-fleet/internal/upstream"
)

var (
	statuses   = []string{"new", "open", "pending", "hold", "solved", "closed"}
	priorities = []string{"low", "normal", "high", "urgent"}
	types      = []string{"problem", "incident", "question", "task"}
)

func (v *Vendor) tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("zendesk_list_tickets",
				mcp.WithDescription("Tickets, most recently updated first. A status narrows the list through search."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("status", mcp.Description("Ticket status"), mcp.Enum(statuses...)),
				mcp.WithNumber("limit", mcp.Description("Max tickets (default 25, max 100)")),
				mcp.WithString("cursor", mcp.Description("Cursor from a previous page")),
			),
			Handler: toolkit.Handle(v.handleListTickets),
		},
		{
			Tool: mcp.NewTool("zendesk_get_ticket",
				mcp.WithDescription("Retrieve one ticket."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithNumber("ticket_id", mcp.Required(), mcp.Description("Ticket ID")),
			),
			Handler: toolkit.Handle(v.handleGetTicket),
		},
		{
			Tool: mcp.NewTool("zendesk_create_ticket",
				mcp.WithDescription("Open a ticket. The description becomes its first comment."),
				mcp.WithString("subject", mcp.Required(), mcp.Description("Ticket subject")),
				mcp.WithString("description", mcp.Required(), mcp.Description("First comment")),
				mcp.WithString("priority", mcp.Enum(priorities...)),
				mcp.WithString("type", mcp.Enum(types...)),
				mcp.WithString("requester_email", mcp.Description("Requester email; created as an end user when unknown")),
				mcp.WithString("requester_name", mcp.Description("Requester name for new end users")),
				mcp.WithNumber("assignee_id", mcp.Description("Agent user ID")),
				mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Tags")),
			),
			Handler: toolkit.Handle(v.handleCreateTicket),
		},
		{
			Tool: mcp.NewTool("zendesk_update_ticket",
				mcp.WithDescription("Update status, priority, type, assignee, subject or tags of a ticket."),
				mcp.WithNumber("ticket_id", mcp.Required(), mcp.Description("Ticket ID")),
				mcp.WithString("status", mcp.Enum(statuses...)),
				mcp.WithString("priority", mcp.Enum(priorities...)),
				mcp.WithString("type", mcp.Enum(types...)),
				mcp.WithString("subject", mcp.Description("New subject")),
				mcp.WithNumber("assignee_id", mcp.Description("Agent user ID")),
				mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Replaces all tags")),
			),
			Handler: toolkit.Handle(v.handleUpdateTicket),
		},
		{
			Tool: mcp.NewTool("zendesk_add_comment",
				mcp.WithDescription("Add a public reply or an internal note to a ticket."),
				mcp.WithNumber("ticket_id", mcp.Required(), mcp.Description("Ticket ID")),
				mcp.WithString("body", mcp.Required(), mcp.Description("Comment text")),
				mcp.WithBoolean("public", mcp.Description("Visible to the requester (default true)")),
			),
			Handler: toolkit.Handle(v.handleAddComment),
		},
		{
			Tool: mcp.NewTool("zendesk_list_ticket_comments",
				mcp.WithDescription("The conversation on a ticket, oldest first."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithNumber("ticket_id", mcp.Required(), mcp.Description("Ticket ID")),
			),
			Handler: toolkit.Handle(v.handleListComments),
		},
		{
			Tool: mcp.NewTool("zendesk_search",
				mcp.WithDescription("Search tickets, users and organizations with Zendesk query syntax, e.g. \"type:ticket status:open printer\"."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
				mcp.WithString("sort_by", mcp.Enum("updated_at", "created_at", "priority", "status", "ticket_type")),
				mcp.WithString("sort_order", mcp.Enum("asc", "desc")),
				mcp.WithNumber("page", mcp.Description("Result page, 1-based")),
			),
			Handler: toolkit.Handle(v.handleSearch),
		},
		{
			Tool: mcp.NewTool("zendesk_list_users",
				mcp.WithDescription("Users of the account, optionally by role."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("role", mcp.Enum("end-user", "agent", "admin")),
				mcp.WithNumber("limit", mcp.Description("Max users (default 25, max 100)")),
				mcp.WithString("cursor", mcp.Description("Cursor from a previous page")),
			),
			Handler: toolkit.Handle(v.handleListUsers),
		},
	}
}

func (v *Vendor) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target, err := v.endpoint(ctx, path)
	if err != nil {
		return err
	}
	_, err = v.api.Do(ctx, upstream.Request{Method: method, Path: target, Query: query, JSON: body}, out)
	return err
}

func ticketID(req mcp.CallToolRequest) (string, error) {
	id, ok, err := toolkit.OptionalInt(req, "ticket_id")
	if err != nil {
		return "", err
	}
	if !ok || id <= 0 {
		return "", toolkit.Invalid("ticket_id is required")
	}
	return strconv.Itoa(id), nil
}

func oneOf(req mcp.CallToolRequest, name string, allowed []string) (string, error) {
	s := strings.ToLower(toolkit.OptionalString(req, name))
	if s == "" {
		return "", nil
	}
	for _, a := range allowed {
		if s == a {
			return s, nil
		}
	}
	return "", toolkit.Invalid("%s must be one of %s", name, strings.Join(allowed, ", "))
}

type cursorPage struct {
	Meta struct {
		HasMore     bool   `json:"has_more"`
		AfterCursor string `json:"after_cursor"`
	} `json:"meta"`
}

func (p cursorPage) next() string {
	if !p.Meta.HasMore {
		return ""
	}
	return p.Meta.AfterCursor
}

func pageQuery(req mcp.CallToolRequest) (url.Values, error) {
	limit, err := toolkit.IntArg(req, "limit", 25, 1, 100)
	if err != nil {
		return nil, err
	}
	q := url.Values{"page[size]": {strconv.Itoa(limit)}}
	if c := toolkit.OptionalString(req, "cursor"); c != "" {
		q.Set("page[after]", c)
	}
	return q, nil
}

func (v *Vendor) handleListTickets(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	status, err := oneOf(req, "status", statuses)
	if err != nil {
		return nil, err
	}
	if status != "" {
		limit, err := toolkit.IntArg(req, "limit", 25, 1, 100)
		if err != nil {
			return nil, err
		}
		q := url.Values{
			"query":      {"type:ticket status:" + status},
			"sort_by":    {"updated_at"},
			"sort_order": {"desc"},
			"per_page":   {strconv.Itoa(limit)},
		}
		var resp struct {
			Results []any `json:"results"`
			Count   int   `json:"count"`
		}
		if err := v.do(ctx, http.MethodGet, "/search.json", q, nil, &resp); err != nil {
			return nil, err
		}
		tickets := make([]map[string]any, 0, len(resp.Results))
		for _, r := range resp.Results {
			tickets = append(tickets, ticketOut(r))
		}
		return map[string]any{"tickets": tickets, "count": len(tickets), "total": resp.Count}, nil
	}

	q, err := pageQuery(req)
	if err != nil {
		return nil, err
	}
	q.Set("sort", "-updated_at")
	var resp struct {
		Tickets []any `json:"tickets"`
		cursorPage
	}
	if err := v.do(ctx, http.MethodGet, "/tickets.json", q, nil, &resp); err != nil {
		return nil, err
	}
	tickets := make([]map[string]any, 0, len(resp.Tickets))
	for _, t := range resp.Tickets {
		tickets = append(tickets, ticketOut(t))
	}
	return map[string]any{"tickets": tickets, "count": len(tickets), "next_cursor": resp.next()}, nil
}

func (v *Vendor) handleGetTicket(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := ticketID(req)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Ticket any `json:"ticket"`
	}
	err = v.do(ctx, http.MethodGet, "/tickets/"+id+".json", nil, nil, &resp)
	if err = toolkit.Lookup("ticket "+id, err); err != nil {
		return nil, err
	}
	return ticketOut(resp.Ticket), nil
}

// ticketAttrs collects the optional attributes shared by create and update.
func ticketAttrs(req mcp.CallToolRequest) (map[string]any, error) {
	t := map[string]any{}
	for name, allowed := range map[string][]string{"status": statuses, "priority": priorities, "type": types} {
		s, err := oneOf(req, name, allowed)
		if err != nil {
			return nil, err
		}
		if s != "" {
			t[name] = s
		}
	}
	if s := toolkit.OptionalString(req, "subject"); s != "" {
		t["subject"] = s
	}
	if id, ok, err := toolkit.OptionalInt(req, "assignee_id"); err != nil {
		return nil, err
	} else if ok {
		t["assignee_id"] = id
	}
	if _, ok := req.GetArguments()["tags"]; ok {
		t["tags"] = toolkit.StringList(req, "tags")
	}
	return t, nil
}

func (v *Vendor) handleCreateTicket(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	if _, err := toolkit.RequireString(req, "subject"); err != nil {
		return nil, err
	}
	desc, err := toolkit.RequireString(req, "description")
	if err != nil {
		return nil, err
	}
	t, err := ticketAttrs(req)
	if err != nil {
		return nil, err
	}
	t["comment"] = map[string]any{"body": desc}
	if email := toolkit.OptionalString(req, "requester_email"); email != "" {
		requester := map[string]any{"email": email}
		name := toolkit.OptionalString(req, "requester_name")
		if name == "" {
			name, _, _ = strings.Cut(email, "@")
		}
		requester["name"] = name
		t["requester"] = requester
	}
	var resp struct {
		Ticket any `json:"ticket"`
	}
	if err := v.do(ctx, http.MethodPost, "/tickets.json", nil, map[string]any{"ticket": t}, &resp); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "ticket": ticketOut(resp.Ticket)}, nil
}

func (v *Vendor) updateTicket(ctx context.Context, id string, t map[string]any) (any, error) {
	var resp struct {
		Ticket any `json:"ticket"`
	}
	err := v.do(ctx, http.MethodPut, "/tickets/"+id+".json", nil, map[string]any{"ticket": t}, &resp)
	if err = toolkit.Lookup("ticket "+id, err); err != nil {
		return nil, err
	}
	return resp.Ticket, nil
}

func (v *Vendor) handleUpdateTicket(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := ticketID(req)
	if err != nil {
		return nil, err
	}
	t, err := ticketAttrs(req)
	if err != nil {
		return nil, err
	}
	if len(t) == 0 {
		return nil, toolkit.Invalid("nothing to update")
	}
	updated, err := v.updateTicket(ctx, id, t)
	if err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "ticket": ticketOut(updated)}, nil
}

func (v *Vendor) handleAddComment(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := ticketID(req)
	if err != nil {
		return nil, err
	}
	body, err := toolkit.RequireString(req, "body")
	if err != nil {
		return nil, err
	}
	public := toolkit.BoolArg(req, "public", true)
	updated, err := v.updateTicket(ctx, id, map[string]any{
		"comment": map[string]any{"body": body, "public": public},
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":   true,
		"ticket_id": shape.Path(updated, "id"),
		"status":    shape.Path(updated, "status"),
		"public":    public,
	}, nil
}

func (v *Vendor) handleListComments(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := ticketID(req)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Comments []any `json:"comments"`
	}
	err = v.do(ctx, http.MethodGet, "/tickets/"+id+"/comments.json", nil, nil, &resp)
	if err = toolkit.Lookup("ticket "+id, err); err != nil {
		return nil, err
	}
	comments := shape.PickEach(resp.Comments, commentFields)
	return map[string]any{"ticket_id": id, "comments": comments, "count": len(comments)}, nil
}

func searchResult(doc any) map[string]any {
	kind := shape.String(shape.Path(doc, "result_type"))
	var out map[string]any
	switch kind {
	case "ticket":
		out = ticketOut(doc)
	case "user":
		out = userOut(doc)
	default:
		out = shape.Compact(shape.Pick(doc, map[string]string{"id": "id", "name": "name", "url": "url"}))
	}
	out["result_type"] = kind
	return out
}

func (v *Vendor) handleSearch(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	query, err := toolkit.RequireString(req, "query")
	if err != nil {
		return nil, err
	}
	page, err := toolkit.IntArg(req, "page", 1, 1, 0)
	if err != nil {
		return nil, err
	}
	q := url.Values{"query": {query}, "page": {strconv.Itoa(page)}}
	if s := toolkit.OptionalString(req, "sort_by"); s != "" {
		q.Set("sort_by", s)
	}
	if s := toolkit.OptionalString(req, "sort_order"); s != "" {
		q.Set("sort_order", s)
	}
	var resp struct {
		Results  []any  `json:"results"`
		Count    int    `json:"count"`
		NextPage string `json:"next_page"`
	}
	if err := v.do(ctx, http.MethodGet, "/search.json", q, nil, &resp); err != nil {
		return nil, err
	}
	results := make([]map[string]any, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, searchResult(r))
	}
	return map[string]any{
		"results":  results,
		"count":    len(results),
		"total":    resp.Count,
		"has_more": resp.NextPage != "",
	}, nil
}

func (v *Vendor) handleListUsers(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	role, err := oneOf(req, "role", []string{"end-user", "agent", "admin"})
	if err != nil {
		return nil, err
	}
	q, err := pageQuery(req)
	if err != nil {
		return nil, err
	}
	if role != "" {
		q.Set("role", role)
	}
	var resp struct {
		Users []any `json:"users"`
		cursorPage
	}
	if err := v.do(ctx, http.MethodGet, "/users.json", q, nil, &resp); err != nil {
		return nil, err
	}
	users := make([]map[string]any, 0, len(resp.Users))
	for _, u := range resp.Users {
		users = append(users, userOut(u))
	}
	return map[string]any{"users": users, "count": len(users), "next_cursor": resp.next()}, nil
}
