package gong

import (
	"context"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"mcp-fleet/internal/shape"
	"mcp-fleet/internal/toolkit"
	"mcp-fleet/internal/upstream"
)

func (v *Vendor) tools() []server.ServerTool {
	return []server.ServerTool{
		{
			Tool: mcp.NewTool("gong_list_calls",
				mcp.WithDescription("List recorded calls in a date range."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("from_date", mcp.Description("Start, ISO 8601 date or timestamp")),
				mcp.WithString("to_date", mcp.Description("End, ISO 8601 date or timestamp")),
				mcp.WithString("cursor", mcp.Description("Cursor from a previous page")),
			),
			Handler: toolkit.Handle(v.handleListCalls),
		},
		{
			Tool: mcp.NewTool("gong_get_call_transcript",
				mcp.WithDescription("Transcript of a call as speaker turns."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("call_id", mcp.Required(), mcp.Description("Gong call ID")),
			),
			Handler: toolkit.Handle(v.handleTranscript),
		},
		{
			Tool: mcp.NewTool("gong_get_call_details",
				mcp.WithDescription("Participants, topics, trackers and brief of one or more calls."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithArray("call_ids", mcp.Required(), mcp.WithStringItems(), mcp.Description("Gong call IDs")),
			),
			Handler: toolkit.Handle(v.handleCallDetails),
		},
		{
			Tool: mcp.NewTool("gong_list_users",
				mcp.WithDescription("List Gong users."),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("cursor", mcp.Description("Cursor from a previous page")),
			),
			Handler: toolkit.Handle(v.handleListUsers),
		},
	}
}

type records struct {
	TotalRecords int    `json:"totalRecords"`
	Cursor       string `json:"cursor"`
}

var callFields = map[string]string{
	"id":        "id",
	"title":     "title",
	"started":   "started",
	"duration":  "duration",
	"direction": "direction",
	"scope":     "scope",
	"url":       "url",
	"language":  "language",
	"system":    "system",
}

func (v *Vendor) handleListCalls(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	from, err := isoTime(toolkit.OptionalString(req, "from_date"), false)
	if err != nil {
		return nil, err
	}
	to, err := isoTime(toolkit.OptionalString(req, "to_date"), true)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	if from != "" {
		q.Set("fromDateTime", from)
	}
	if to != "" {
		q.Set("toDateTime", to)
	}
	if c := toolkit.OptionalString(req, "cursor"); c != "" {
		q.Set("cursor", c)
	}

	var resp struct {
		Calls   []any   `json:"calls"`
		Records records `json:"records"`
	}
	err = v.api.Get(ctx, "/calls", q, &resp)
	if upstream.IsNotFound(err) {
		// Gong answers 404 when no call matches the filter.
		return map[string]any{"calls": []map[string]any{}, "count": 0}, nil
	}
	if err != nil {
		return nil, err
	}
	calls := shape.PickEach(resp.Calls, callFields)
	return map[string]any{
		"calls":  calls,
		"count":  len(calls),
		"total":  resp.Records.TotalRecords,
		"cursor": resp.Records.Cursor,
	}, nil
}

type party struct {
	SpeakerID    string `json:"speakerId"`
	Name         string `json:"name"`
	EmailAddress string `json:"emailAddress"`
	Affiliation  string `json:"affiliation"`
	Title        string `json:"title"`
}

type extensiveCall struct {
	MetaData map[string]any `json:"metaData"`
	Parties  []party        `json:"parties"`
	Content  struct {
		Brief    string           `json:"brief"`
		Topics   []map[string]any `json:"topics"`
		Trackers []map[string]any `json:"trackers"`
	} `json:"content"`
}

func (v *Vendor) extensive(ctx context.Context, ids []string) ([]extensiveCall, error) {
	body := map[string]any{
		"filter": map[string]any{"callIds": ids},
		"contentSelector": map[string]any{
			"exposedFields": map[string]any{
				"parties": true,
				"content": map[string]any{"brief": true, "topics": true, "trackers": true},
			},
		},
	}
	var resp struct {
		Calls []extensiveCall `json:"calls"`
	}
	if err := v.api.Post(ctx, "/calls/extensive", body, &resp); err != nil {
		return nil, err
	}
	return resp.Calls, nil
}

type sentence struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

type monologue struct {
	SpeakerID string     `json:"speakerId"`
	Topic     string     `json:"topic"`
	Sentences []sentence `json:"sentences"`
}

// turns joins each monologue's sentences into one speaker turn.
func turns(mono []monologue, names map[string]string) []map[string]any {
	out := make([]map[string]any, 0, len(mono))
	for _, m := range mono {
		texts := make([]string, 0, len(m.Sentences))
		for _, s := range m.Sentences {
			if t := strings.TrimSpace(s.Text); t != "" {
				texts = append(texts, t)
			}
		}
		if len(texts) == 0 {
			continue
		}
		speaker := names[m.SpeakerID]
		if speaker == "" {
			speaker = m.SpeakerID
		}
		turn := map[string]any{
			"speaker":  speaker,
			"start_ms": m.Sentences[0].Start,
			"text":     strings.Join(texts, " "),
		}
		if m.Topic != "" {
			turn["topic"] = m.Topic
		}
		out = append(out, turn)
	}
	return out
}

func (v *Vendor) handleTranscript(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	id, err := toolkit.RequireString(req, "call_id")
	if err != nil {
		return nil, err
	}
	var resp struct {
		CallTranscripts []struct {
			CallID     string      `json:"callId"`
			Transcript []monologue `json:"transcript"`
		} `json:"callTranscripts"`
	}
	body := map[string]any{"filter": map[string]any{"callIds": []string{id}}}
	if err := toolkit.Lookup("call "+id, v.api.Post(ctx, "/calls/transcript", body, &resp)); err != nil {
		return nil, err
	}
	if len(resp.CallTranscripts) == 0 {
		return nil, toolkit.NotFound("transcript for call " + id)
	}

	// Speaker names are best effort: a transcript without them is still useful.
	names := map[string]string{}
	if calls, err := v.extensive(ctx, []string{id}); err == nil && len(calls) > 0 {
		for _, p := range calls[0].Parties {
			if p.SpeakerID != "" && p.Name != "" {
				names[p.SpeakerID] = p.Name
			}
		}
	}

	t := turns(resp.CallTranscripts[0].Transcript, names)
	return map[string]any{"call_id": id, "turns": t, "count": len(t)}, nil
}

func (v *Vendor) handleCallDetails(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	ids := toolkit.StringList(req, "call_ids")
	if len(ids) == 0 {
		return nil, toolkit.Invalid("call_ids is required")
	}
	calls, err := v.extensive(ctx, ids)
	if err != nil {
		return nil, toolkit.Lookup("calls", err)
	}
	out := make([]map[string]any, 0, len(calls))
	for _, c := range calls {
		parties := make([]map[string]any, 0, len(c.Parties))
		for _, p := range c.Parties {
			parties = append(parties, shape.Compact(map[string]any{
				"name":        p.Name,
				"email":       p.EmailAddress,
				"affiliation": p.Affiliation,
				"title":       p.Title,
			}))
		}
		topics := make([]string, 0, len(c.Content.Topics))
		for _, tp := range c.Content.Topics {
			if n := shape.String(tp["name"]); n != "" {
				topics = append(topics, n)
			}
		}
		trackers := make([]map[string]any, 0, len(c.Content.Trackers))
		for _, tr := range c.Content.Trackers {
			trackers = append(trackers, map[string]any{"name": tr["name"], "count": tr["count"]})
		}
		details := shape.Pick(c.MetaData, callFields)
		details["parties"] = parties
		details["topics"] = topics
		details["trackers"] = trackers
		details["brief"] = c.Content.Brief
		out = append(out, details)
	}
	return map[string]any{"calls": out, "count": len(out)}, nil
}

func (v *Vendor) handleListUsers(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	q := url.Values{}
	if c := toolkit.OptionalString(req, "cursor"); c != "" {
		q.Set("cursor", c)
	}
	var resp struct {
		Users   []any   `json:"users"`
		Records records `json:"records"`
	}
	if err := v.api.Get(ctx, "/users", q, &resp); err != nil {
		return nil, err
	}
	users := shape.PickEach(resp.Users, map[string]string{
		"id":         "id",
		"email":      "emailAddress",
		"first_name": "firstName",
		"last_name":  "lastName",
		"title":      "title",
		"active":     "active",
	})
	return map[string]any{"users": users, "count": len(users), "cursor": resp.Records.Cursor}, nil
}
