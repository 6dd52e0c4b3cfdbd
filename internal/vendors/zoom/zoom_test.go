package zoom

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-fleet/internal/toolkit/tooltest"
)

func newVendor(t *testing.T, api http.HandlerFunc) (*Vendor, *atomic.Int32) {
	t.Helper()
	var grants atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "account_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "acct-1", r.PostForm.Get("account_id"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "cid", user)
		assert.Equal(t, "csecret", pass)
		grants.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"s2s-token","token_type":"bearer","expires_in":3599}`))
	})
	mux.HandleFunc("/v2/", api)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	deps := tooltest.Deps(Name, srv.URL+"/v2")
	deps.Vendor.TokenURL = srv.URL + "/oauth/token"
	v, err := New(deps)
	require.NoError(t, err)
	return v.(*Vendor), &grants
}

var s2s = map[string]any{"account_id": "acct-1", "client_id": "cid", "client_secret": "csecret"}

func TestAccountCredentialsGrant(t *testing.T) {
	t.Setenv(envAccessToken, "")
	v, grants := newVendor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer s2s-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/v2/users/me/meetings", r.URL.Path)
		w.Write([]byte(`{"total_records":1,"next_page_token":"","meetings":[
			{"id":85746065432,"uuid":"u==","topic":"Standup","type":8,"start_time":"2024-05-01T09:00:00Z","duration":15,"join_url":"https://zoom.us/j/85746065432"}
		]}`))
	})
	ctx := tooltest.WithData(s2s)
	var out struct {
		Meetings []map[string]any `json:"meetings"`
	}
	tooltest.Decode(t, ctx, v, "zoom_list_meetings", nil, &out)
	tooltest.Decode(t, ctx, v, "zoom_list_meetings", map[string]any{"type": "upcoming"}, &out)

	require.Len(t, out.Meetings, 1)
	assert.Equal(t, "Standup", out.Meetings[0]["topic"])
	assert.Equal(t, float64(85746065432), out.Meetings[0]["id"])
	assert.Equal(t, int32(1), grants.Load())
}

func TestCreateMeetingTypes(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []map[string]any
	)
	v, _ := newVendor(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":1,"topic":"Review","join_url":"https://zoom.us/j/1","start_url":"https://zoom.us/s/1","password":"abc"}`))
	})
	ctx := tooltest.WithToken("tok")
	var out map[string]any
	tooltest.Decode(t, ctx, v, "zoom_create_meeting", map[string]any{"topic": "Review"}, &out)
	tooltest.Decode(t, ctx, v, "zoom_create_meeting", map[string]any{
		"topic": "Review", "start_time": "2024-05-01T15:00:00Z", "duration": 30, "waiting_room": true,
	}, &out)
	assert.Equal(t, "abc", out["password"])

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	assert.Equal(t, float64(1), bodies[0]["type"])
	assert.Equal(t, float64(60), bodies[0]["duration"])
	assert.Equal(t, float64(2), bodies[1]["type"])
	assert.Equal(t, map[string]any{"waiting_room": true}, bodies[1]["settings"])

	fail := tooltest.Failure(t, ctx, v, "zoom_create_meeting", map[string]any{"topic": "x", "start_time": "tomorrow"})
	assert.Contains(t, fail["error"], "RFC 3339")
}

func TestUpdateThenFetch(t *testing.T) {
	v, _ := newVendor(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPatch:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			w.Write([]byte(`{"id":42,"topic":"Renamed","settings":{"waiting_room":false}}`))
		}
	})
	var out map[string]any
	tooltest.Decode(t, tooltest.WithToken("tok"), v, "zoom_update_meeting", map[string]any{"meeting_id": 42, "topic": "Renamed"}, &out)
	assert.Equal(t, "Renamed", out["topic"])
	assert.Equal(t, false, out["settings"].(map[string]any)["waiting_room"])
}

func TestDeleteMissingMeeting(t *testing.T) {
	v, _ := newVendor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":3001,"message":"Meeting does not exist: 404."}`))
	})
	out := tooltest.Failure(t, tooltest.WithToken("tok"), v, "zoom_delete_meeting", map[string]any{"meeting_id": "404"})
	assert.Equal(t, "meeting 404 not found", out["error"])
}

func TestRecordingsDateValidation(t *testing.T) {
	v, _ := newVendor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2024-04-01", r.URL.Query().Get("from"))
		w.Write([]byte(`{"meetings":[{"uuid":"r1","topic":"Demo","recording_files":[{"id":"f1","file_type":"MP4","play_url":"https://zoom.us/rec/play/1"}]}]}`))
	})
	ctx := tooltest.WithToken("tok")
	var out struct {
		Recordings []map[string]any `json:"recordings"`
	}
	tooltest.Decode(t, ctx, v, "zoom_list_recordings", map[string]any{"from": "2024-04-01", "to": "2024-04-30"}, &out)
	require.Len(t, out.Recordings, 1)
	assert.Len(t, out.Recordings[0]["files"], 1)

	fail := tooltest.Failure(t, ctx, v, "zoom_list_recordings", map[string]any{"from": "April"})
	assert.Contains(t, fail["error"], "YYYY-MM-DD")
}

func TestMissingCredentials(t *testing.T) {
	for _, env := range []string{envAccessToken, envAccountID, envClientID, envClientSecret} {
		t.Setenv(env, "")
	}
	v, _ := newVendor(t, func(w http.ResponseWriter, r *http.Request) {})
	res := tooltest.Call(t, tooltest.WithData(map[string]any{"account_id": "a"}), v, "zoom_get_user", nil)
	assert.True(t, res.IsError)
	assert.Contains(t, tooltest.Text(t, res), "client_secret")
}
