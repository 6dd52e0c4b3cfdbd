package zoom

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"mcp-fleet/internal/shape"
	"mcp-fleet/internal/toolkit"
)

func (v *Vendor) tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("zoom_list_meetings",
				mcp.WithDescription("List a user's meetings."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("user_id", mcp.Description("User ID or email (default me)")),
				mcp.WithString("type", mcp.Enum("scheduled", "live", "upcoming", "upcoming_meetings", "previous_meetings")),
				mcp.WithNumber("page_size", mcp.Description("Meetings per page (default 30, max 300)")),
				mcp.WithString("next_page_token", mcp.Description("Token from a previous page")),
			),
			Handler: toolkit.Handle(v.handleListMeetings),
		},
		{
			Tool: mcp.NewTool("zoom_get_meeting",
				mcp.WithDescription("Details of one meeting."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("meeting_id", mcp.Required(), mcp.Description("Meeting ID")),
			),
			Handler: toolkit.Handle(v.handleGetMeeting),
		},
		{
			Tool: mcp.NewTool("zoom_create_meeting",
				mcp.WithDescription("Schedule a meeting. Without start_time an instant meeting is created."),
				mcp.WithString("topic", mcp.Required(), mcp.Description("Meeting topic")),
				mcp.WithString("start_time", mcp.Description("RFC 3339 start, e.g. 2024-05-01T15:00:00Z")),
				mcp.WithNumber("duration", mcp.Description("Minutes (default 60)")),
				mcp.WithString("timezone", mcp.Description("IANA time zone, e.g. Europe/Berlin")),
				mcp.WithString("agenda", mcp.Description("Agenda")),
				mcp.WithString("password", mcp.Description("Passcode")),
				mcp.WithBoolean("waiting_room", mcp.Description("Enable the waiting room")),
				mcp.WithString("user_id", mcp.Description("Host user ID or email (default me)")),
			),
			Handler: toolkit.Handle(v.handleCreateMeeting),
		},
		{
			Tool: mcp.NewTool("zoom_update_meeting",
				mcp.WithDescription("Change a meeting. Only provided fields change."),
				mcp.WithString("meeting_id", mcp.Required(), mcp.Description("Meeting ID")),
				mcp.WithString("topic", mcp.Description("New topic")),
				mcp.WithString("start_time", mcp.Description("New RFC 3339 start")),
				mcp.WithNumber("duration", mcp.Description("New duration in minutes")),
				mcp.WithString("timezone", mcp.Description("New time zone")),
				mcp.WithString("agenda", mcp.Description("New agenda")),
			),
			Handler: toolkit.Handle(v.handleUpdateMeeting),
		},
		{
			Tool: mcp.NewTool("zoom_delete_meeting",
				mcp.WithDescription("Delete a meeting."),
				mcp.WithDestructiveHintAnnotation(true),
				mcp.WithString("meeting_id", mcp.Required(), mcp.Description("Meeting ID")),
				mcp.WithBoolean("notify_hosts", mcp.Description("Email the host and alternative hosts")),
			),
			Handler: toolkit.Handle(v.handleDeleteMeeting),
		},
		{
			Tool: mcp.NewTool("zoom_get_user",
				mcp.WithDescription("Profile of a user."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("user_id", mcp.Description("User ID or email (default me)")),
			),
			Handler: toolkit.Handle(v.handleGetUser),
		},
		{
			Tool: mcp.NewTool("zoom_list_recordings",
				mcp.WithDescription("Cloud recordings of a user in a date range (at most one month)."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("user_id", mcp.Description("User ID or email (default me)")),
				mcp.WithString("from", mcp.Description("Start date YYYY-MM-DD (default 30 days ago)")),
				mcp.WithString("to", mcp.Description("End date YYYY-MM-DD (default today)")),
				mcp.WithNumber("page_size", mcp.Description("Meetings per page (default 30, max 300)")),
			),
			Handler: toolkit.Handle(v.handleListRecordings),
		},
	}
}

var meetingFields = map[string]string{
	"id":         "id",
	"uuid":       "uuid",
	"topic":      "topic",
	"type":       "type",
	"status":     "status",
	"start_time": "start_time",
	"duration":   "duration",
	"timezone":   "timezone",
	"agenda":     "agenda",
	"join_url":   "join_url",
	"host_id":    "host_id",
}

func userID(req mcp.CallToolRequest) string {
	if id := toolkit.OptionalString(req, "user_id"); id != "" {
		return url.PathEscape(id)
	}
	return "me"
}

func startTime(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return s, nil
	}
	// Zoom accepts local times without an offset when timezone is set.
	if _, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return s, nil
	}
	return "", toolkit.Invalid("start_time %q is not RFC 3339", s)
}

func (v *Vendor) handleListMeetings(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	size, err := toolkit.IntArg(req, "page_size", 30, 1, 300)
	if err != nil {
		return nil, err
	}
	q := url.Values{"page_size": {strconv.Itoa(size)}}
	if t := toolkit.OptionalString(req, "type"); t != "" {
		q.Set("type", t)
	}
	if tok := toolkit.OptionalString(req, "next_page_token"); tok != "" {
		q.Set("next_page_token", tok)
	}
	var resp struct {
		Meetings      []any  `json:"meetings"`
		NextPageToken string `json:"next_page_token"`
		TotalRecords  int    `json:"total_records"`
	}
	if err := toolkit.Lookup("user", v.api.Get(ctx, "/users/"+userID(req)+"/meetings", q, &resp)); err != nil {
		return nil, err
	}
	meetings := shape.PickEach(resp.Meetings, meetingFields)
	return map[string]any{
		"meetings":        meetings,
		"count":           len(meetings),
		"total_records":   resp.TotalRecords,
		"next_page_token": resp.NextPageToken,
	}, nil
}

func (v *Vendor) getMeeting(ctx context.Context, id string) (map[string]any, error) {
	var m map[string]any
	if err := toolkit.Lookup("meeting "+id, v.api.Get(ctx, "/meetings/"+url.PathEscape(id), nil, &m)); err != nil {
		return nil, err
	}
	out := shape.Pick(m, meetingFields)
	out["password"] = m["password"]
	out["settings"] = shape.Pick(m["settings"], map[string]string{
		"waiting_room":     "waiting_room",
		"join_before_host": "join_before_host",
		"mute_upon_entry":  "mute_upon_entry",
		"auto_recording":   "auto_recording",
	})
	return out, nil
}

func (v *Vendor) handleGetMeeting(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := toolkit.RequireString(req, "meeting_id")
	if err != nil {
		return nil, err
	}
	return v.getMeeting(ctx, id)
}

// meetingBody collects the writable fields present in req.
func meetingBody(req mcp.CallToolRequest) (map[string]any, error) {
	body := map[string]any{}
	for _, f := range []string{"topic", "timezone", "agenda", "password"} {
		if s := toolkit.OptionalString(req, f); s != "" {
			body[f] = s
		}
	}
	st, err := startTime(toolkit.OptionalString(req, "start_time"))
	if err != nil {
		return nil, err
	}
	if st != "" {
		body["start_time"] = st
	}
	if d, ok, err := toolkit.OptionalInt(req, "duration"); err != nil {
		return nil, err
	} else if ok {
		if d <= 0 {
			return nil, toolkit.Invalid("duration must be positive")
		}
		body["duration"] = d
	}
	return body, nil
}

func (v *Vendor) handleCreateMeeting(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	if _, err := toolkit.RequireString(req, "topic"); err != nil {
		return nil, err
	}
	body, err := meetingBody(req)
	if err != nil {
		return nil, err
	}
	body["type"] = 1
	if _, ok := body["start_time"]; ok {
		body["type"] = 2
	}
	if _, ok := body["duration"]; !ok {
		body["duration"] = 60
	}
	if wr, ok := toolkit.OptionalBool(req, "waiting_room"); ok {
		body["settings"] = map[string]any{"waiting_room": wr}
	}

	var m map[string]any
	if err := v.api.Post(ctx, "/users/"+userID(req)+"/meetings", body, &m); err != nil {
		return nil, err
	}
	out := shape.Pick(m, meetingFields)
	out["password"] = m["password"]
	out["start_url"] = m["start_url"]
	return out, nil
}

func (v *Vendor) handleUpdateMeeting(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := toolkit.RequireString(req, "meeting_id")
	if err != nil {
		return nil, err
	}
	body, err := meetingBody(req)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, toolkit.Invalid("nothing to update")
	}
	if err := toolkit.Lookup("meeting "+id, v.api.Patch(ctx, "/meetings/"+url.PathEscape(id), body, nil)); err != nil {
		return nil, err
	}
	return v.getMeeting(ctx, id)
}

func (v *Vendor) handleDeleteMeeting(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := toolkit.RequireString(req, "meeting_id")
	if err != nil {
		return nil, err
	}
	path := "/meetings/" + url.PathEscape(id)
	if toolkit.BoolArg(req, "notify_hosts", false) {
		path += "?schedule_for_reminder=true"
	}
	if err := toolkit.Lookup("meeting "+id, v.api.Delete(ctx, path, nil)); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "deleted": id}, nil
}

func (v *Vendor) handleGetUser(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	var u map[string]any
	if err := toolkit.Lookup("user", v.api.GetCached(ctx, "/users/"+userID(req), nil, &u)); err != nil {
		return nil, err
	}
	return shape.Pick(u, map[string]string{
		"id":         "id",
		"email":      "email",
		"first_name": "first_name",
		"last_name":  "last_name",
		"display":    "display_name",
		"type":       "type",
		"timezone":   "timezone",
		"pmi":        "pmi",
		"status":     "status",
		"account_id": "account_id",
	}), nil
}

func (v *Vendor) handleListRecordings(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	size, err := toolkit.IntArg(req, "page_size", 30, 1, 300)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	from := toolkit.OptionalString(req, "from")
	if from == "" {
		from = now.AddDate(0, 0, -30).Format(time.DateOnly)
	}
	to := toolkit.OptionalString(req, "to")
	if to == "" {
		to = now.Format(time.DateOnly)
	}
	for _, d := range []string{from, to} {
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return nil, toolkit.Invalid("%q is not a YYYY-MM-DD date", d)
		}
	}
	q := url.Values{"from": {from}, "to": {to}, "page_size": {strconv.Itoa(size)}}

	var resp struct {
		Meetings []map[string]any `json:"meetings"`
	}
	if err := toolkit.Lookup("user", v.api.Get(ctx, "/users/"+userID(req)+"/recordings", q, &resp)); err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(resp.Meetings))
	for _, m := range resp.Meetings {
		rec := shape.Pick(m, map[string]string{
			"id":         "id",
			"uuid":       "uuid",
			"topic":      "topic",
			"start_time": "start_time",
			"duration":   "duration",
			"total_size": "total_size",
			"share_url":  "share_url",
		})
		rec["files"] = shape.PickEach(m["recording_files"], map[string]string{
			"id":             "id",
			"file_type":      "file_type",
			"recording_type": "recording_type",
			"file_size":      "file_size",
			"play_url":       "play_url",
			"download_url":   "download_url",
			"status":         "status",
		})
		out = append(out, rec)
	}
	return map[string]any{"recordings": out, "count": len(out), "from": from, "to": to}, nil
}
