package slack

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-fleet/internal/toolkit/tooltest"
)

// newFake serves Slack Web API methods by name.
func newFake(t *testing.T, methods map[string]http.HandlerFunc) *Vendor {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		auth := r.Header.Get("Authorization")
		if auth != "Bearer xoxb-test" && r.Form.Get("token") != "xoxb-test" {
			w.Write([]byte(`{"ok":false,"error":"invalid_auth"}`))
			return
		}
		h, ok := methods[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			w.Write([]byte(`{"ok":false,"error":"unknown_method"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	v, err := New(tooltest.Deps(Name, srv.URL))
	require.NoError(t, err)
	return v.(*Vendor)
}

func reply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte(body)) }
}

func TestListChannels(t *testing.T) {
	v := newFake(t, map[string]http.HandlerFunc{
		"conversations.list": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "public_channel,private_channel", r.Form.Get("types"))
			w.Write([]byte(`{"ok":true,"channels":[
				{"id":"C1","name":"general","is_member":true,"num_members":12,"created":1700000000,
				 "topic":{"value":"Company news"},"purpose":{"value":"All hands"}}
			],"response_metadata":{"next_cursor":"abc"}}`))
		},
	})
	var out struct {
		Channels   []map[string]any `json:"channels"`
		NextCursor string           `json:"next_cursor"`
	}
	tooltest.Decode(t, tooltest.WithToken("xoxb-test"), v, "slack_list_channels",
		map[string]any{"types": "public_channel, private_channel"}, &out)

	require.Len(t, out.Channels, 1)
	assert.Equal(t, "general", out.Channels[0]["name"])
	assert.Equal(t, "Company news", out.Channels[0]["topic"])
	assert.Equal(t, "2023-11-14T22:13:20Z", out.Channels[0]["created"])
	assert.Equal(t, "abc", out.NextCursor)
}

func TestReplyToThread(t *testing.T) {
	v := newFake(t, map[string]http.HandlerFunc{
		"chat.postMessage": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "C1", r.Form.Get("channel"))
			assert.Equal(t, "1700000000.000100", r.Form.Get("thread_ts"))
			assert.Equal(t, "on it", r.Form.Get("text"))
			w.Write([]byte(`{"ok":true,"channel":"C1","ts":"1700000001.000200"}`))
		},
	})
	var out map[string]any
	tooltest.Decode(t, tooltest.WithData(map[string]any{"bot_token": "xoxb-test"}), v, "slack_reply_to_thread", map[string]any{
		"channel_id": "C1", "thread_ts": "1700000000.000100", "text": "on it",
	}, &out)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "1700000001.000200", out["ts"])
}

func TestHistoryUnknownChannelIsNotFound(t *testing.T) {
	v := newFake(t, map[string]http.HandlerFunc{
		"conversations.history": reply(`{"ok":false,"error":"channel_not_found"}`),
	})
	res := tooltest.Call(t, tooltest.WithToken("xoxb-test"), v, "slack_get_channel_history", map[string]any{"channel_id": "C404"})
	assert.False(t, res.IsError)
	assert.Contains(t, tooltest.Text(t, res), "channel not found")
}

func TestHistoryMessages(t *testing.T) {
	v := newFake(t, map[string]http.HandlerFunc{
		"conversations.history": reply(`{"ok":true,"has_more":false,"messages":[
			{"type":"message","user":"U1","text":"ship it","ts":"1700000000.000100","reply_count":2,
			 "reactions":[{"name":"rocket","count":3,"users":["U2"]}]}
		]}`),
	})
	var out struct {
		Messages []map[string]any `json:"messages"`
	}
	tooltest.Decode(t, tooltest.WithToken("xoxb-test"), v, "slack_get_channel_history", map[string]any{"channel_id": "C1"}, &out)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "ship it", out.Messages[0]["text"])
	assert.Equal(t, "2023-11-14T22:13:20Z", out.Messages[0]["time"])
	assert.Len(t, out.Messages[0]["reactions"], 1)
}

func TestSlackErrorIsReported(t *testing.T) {
	v := newFake(t, map[string]http.HandlerFunc{
		"reactions.add": reply(`{"ok":false,"error":"already_reacted"}`),
	})
	res := tooltest.Call(t, tooltest.WithToken("xoxb-test"), v, "slack_add_reaction", map[string]any{
		"channel_id": "C1", "timestamp": "1.2", "reaction": ":tada:",
	})
	assert.True(t, res.IsError)
	assert.Contains(t, tooltest.Text(t, res), "already_reacted")
}

func TestRateLimitedRetriesOnce(t *testing.T) {
	var calls atomic.Int32
	v := newFake(t, map[string]http.HandlerFunc{
		"users.info": func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Write([]byte(`{"ok":true,"user":{"id":"U1","name":"ada","real_name":"Ada L","profile":{"email":"ada@example.com","title":"Eng"}}}`))
		},
	})
	var out map[string]any
	tooltest.Decode(t, tooltest.WithToken("xoxb-test"), v, "slack_get_user_profile", map[string]any{"user_id": "U1"}, &out)
	assert.Equal(t, "ada@example.com", out["email"])
	assert.Equal(t, int32(2), calls.Load())
}

func TestListUsersSkipsBots(t *testing.T) {
	v := newFake(t, map[string]http.HandlerFunc{
		"users.list": reply(`{"ok":true,"members":[
			{"id":"U1","name":"ada"},
			{"id":"B1","name":"deploybot","is_bot":true},
			{"id":"U2","name":"gone","deleted":true},
			{"id":"USLACKBOT","name":"slackbot"}
		],"response_metadata":{"next_cursor":""}}`),
	})
	var out struct {
		Users []map[string]any `json:"users"`
	}
	tooltest.Decode(t, tooltest.WithToken("xoxb-test"), v, "slack_list_users", nil, &out)
	require.Len(t, out.Users, 1)
	assert.Equal(t, "ada", out.Users[0]["name"])
}

func TestSearchMessages(t *testing.T) {
	v := newFake(t, map[string]http.HandlerFunc{
		"search.messages": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "deploy in:#ops", r.Form.Get("query"))
			w.Write([]byte(`{"ok":true,"query":"deploy","messages":{"total":1,"matches":[
				{"channel":{"id":"C9","name":"ops"},"user":"U1","username":"ada","ts":"1700000000.000100","text":"deploy done","permalink":"https://x.slack.com/p1"}
			]}}`))
		},
	})
	var out struct {
		Matches []map[string]any `json:"matches"`
		Total   float64          `json:"total"`
	}
	tooltest.Decode(t, tooltest.WithToken("xoxb-test"), v, "slack_search_messages", map[string]any{"query": "deploy in:#ops"}, &out)
	require.Len(t, out.Matches, 1)
	assert.Equal(t, "ops", out.Matches[0]["channel_name"])
	assert.Equal(t, float64(1), out.Total)
}

func TestMissingToken(t *testing.T) {
	t.Setenv(envToken, "")
	v := newFake(t, nil)
	res := tooltest.Call(t, tooltest.WithToken(""), v, "slack_list_channels", nil)
	assert.True(t, res.IsError)
	assert.Contains(t, tooltest.Text(t, res), envToken)
}
