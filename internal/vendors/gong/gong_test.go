package gong

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-fleet/internal/toolkit/tooltest"
)

func newVendor(t *testing.T, h http.HandlerFunc) *Vendor {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	v, err := New(tooltest.Deps(Name, srv.URL))
	require.NoError(t, err)
	return v.(*Vendor)
}

var keyPair = map[string]any{"access_key": "AK", "access_key_secret": "SK"}

func TestIsoTime(t *testing.T) {
	got, err := isoTime("2024-03-01", false)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T00:00:00Z", got)

	got, err = isoTime("2024-03-01", true)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T23:59:59Z", got)

	got, err = isoTime("2024-03-01T10:00:00+02:00", false)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T08:00:00Z", got)

	_, err = isoTime("last tuesday", false)
	assert.Error(t, err)
}

func TestListCallsUsesBasicAuth(t *testing.T) {
	v := newVendor(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "AK", user)
		assert.Equal(t, "SK", pass)
		assert.Equal(t, "/calls", r.URL.Path)
		assert.Equal(t, "2024-03-01T00:00:00Z", r.URL.Query().Get("fromDateTime"))
		w.Write([]byte(`{"records":{"totalRecords":1,"cursor":"next"},"calls":[
			{"id":"c1","title":"Discovery","started":"2024-03-01T09:00:00Z","duration":1800,"url":"https://app.gong.io/call?id=c1"}
		]}`))
	})
	var out struct {
		Calls  []map[string]any `json:"calls"`
		Cursor string           `json:"cursor"`
	}
	tooltest.Decode(t, tooltest.WithData(keyPair), v, "gong_list_calls", map[string]any{"from_date": "2024-03-01"}, &out)
	require.Len(t, out.Calls, 1)
	assert.Equal(t, "Discovery", out.Calls[0]["title"])
	assert.Nil(t, out.Calls[0]["scope"])
	assert.Equal(t, "next", out.Cursor)
}

func TestListCallsNoMatchesIsEmpty(t *testing.T) {
	v := newVendor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errors":["No calls found corresponding to the provided filters"]}`))
	})
	res := tooltest.Call(t, tooltest.WithToken("tok"), v, "gong_list_calls", nil)
	assert.False(t, res.IsError)
	assert.Contains(t, tooltest.Text(t, res), `"calls": []`)
}

func TestTranscriptJoinsTurnsWithSpeakerNames(t *testing.T) {
	v := newVendor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch r.URL.Path {
		case "/calls/transcript":
			w.Write([]byte(`{"callTranscripts":[{"callId":"c1","transcript":[
				{"speakerId":"s1","topic":"Intro","sentences":[{"start":0,"end":900,"text":"Hi all."},{"start":900,"end":1800,"text":"Thanks for joining."}]},
				{"speakerId":"s2","sentences":[{"start":2000,"end":2500,"text":"Happy to be here."}]},
				{"speakerId":"s3","sentences":[{"start":3000,"end":3100,"text":"  "}]}
			]}]}`))
		case "/calls/extensive":
			w.Write([]byte(`{"calls":[{"metaData":{"id":"c1"},"parties":[{"speakerId":"s1","name":"Ada"}]}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	var out struct {
		Turns []map[string]any `json:"turns"`
	}
	tooltest.Decode(t, tooltest.WithToken("tok"), v, "gong_get_call_transcript", map[string]any{"call_id": "c1"}, &out)
	require.Len(t, out.Turns, 2)
	assert.Equal(t, "Ada", out.Turns[0]["speaker"])
	assert.Equal(t, "Hi all. Thanks for joining.", out.Turns[0]["text"])
	assert.Equal(t, "Intro", out.Turns[0]["topic"])
	assert.Equal(t, "s2", out.Turns[1]["speaker"])
	assert.Equal(t, float64(2000), out.Turns[1]["start_ms"])
}

func TestTranscriptMissing(t *testing.T) {
	v := newVendor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"callTranscripts":[]}`))
	})
	out := tooltest.Failure(t, tooltest.WithToken("tok"), v, "gong_get_call_transcript", map[string]any{"call_id": "c9"})
	assert.Equal(t, "transcript for call c9 not found", out["error"])
}

func TestCallDetails(t *testing.T) {
	v := newVendor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"calls":[{"metaData":{"id":"c1","title":"QBR"},
			"parties":[{"name":"Ada","emailAddress":"ada@example.com","affiliation":"Internal"}],
			"content":{"brief":"Renewal discussed","topics":[{"name":"Pricing","duration":120}],"trackers":[{"name":"Competitors","count":2}]}}]}`))
	})
	var out struct {
		Calls []map[string]any `json:"calls"`
	}
	tooltest.Decode(t, tooltest.WithToken("tok"), v, "gong_get_call_details", map[string]any{"call_ids": []any{"c1"}}, &out)
	require.Len(t, out.Calls, 1)
	assert.Equal(t, "QBR", out.Calls[0]["title"])
	assert.Equal(t, []any{"Pricing"}, out.Calls[0]["topics"])
	assert.Equal(t, "Renewal discussed", out.Calls[0]["brief"])
}

func TestMissingCredentials(t *testing.T) {
	t.Setenv(envAccessToken, "")
	t.Setenv(envAccessKey, "")
	t.Setenv(envAccessSecret, "")
	v := newVendor(t, func(w http.ResponseWriter, r *http.Request) {})
	res := tooltest.Call(t, tooltest.WithToken(""), v, "gong_list_users", nil)
	assert.True(t, res.IsError)
	assert.Contains(t, tooltest.Text(t, res), envAccessToken)
}
