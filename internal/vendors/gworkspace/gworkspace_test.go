package gworkspace

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"mcp-fleet/internal/credentials"
	"mcp-fleet/internal/toolkit"
	"mcp-fleet/internal/toolkit/tooltest"
	"mcp-fleet/internal/upstream"
)

func TestTranslate(t *testing.T) {
	assert.NoError(t, Translate("googletasks", "task x", nil))

	var nf *toolkit.NotFoundError
	require.ErrorAs(t, Translate("googletasks", "task x", &googleapi.Error{Code: 404}), &nf)
	assert.Equal(t, "task x", nf.Resource)

	err := Translate("googletasks", "task x", &googleapi.Error{Code: 403, Message: "Insufficient Permission"})
	assert.Equal(t, http.StatusForbidden, upstream.StatusCode(err))
	var ue *upstream.Error
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "Insufficient Permission", ue.Message)

	err = Translate("googletasks", "task x", &googleapi.Error{Code: 500})
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "Internal Server Error", ue.Message)

	plain := errors.New("dial failed")
	assert.Equal(t, plain, Translate("googletasks", "task x", plain))
}

func TestDoRetriesRateLimits(t *testing.T) {
	a := NewAuth("googletasks", "GOOGLE_TASKS_ACCESS_TOKEN", tooltest.Deps("googletasks", ""))
	calls := 0
	err := a.Do(context.Background(), "tasks", func() error {
		calls++
		if calls == 1 {
			return &googleapi.Error{Code: http.StatusTooManyRequests}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = a.Do(context.Background(), "tasks", func() error {
		calls++
		return &googleapi.Error{Code: http.StatusTooManyRequests, Message: "slow down"}
	})
	assert.True(t, upstream.IsRateLimited(err))
	assert.Equal(t, 2, calls)
}

func TestClientRequiresCredentials(t *testing.T) {
	t.Setenv("GOOGLE_TASKS_ACCESS_TOKEN", "")
	t.Setenv(envRefreshToken, "")
	a := NewAuth("googletasks", "GOOGLE_TASKS_ACCESS_TOKEN", tooltest.Deps("googletasks", ""))

	_, err := a.Client(context.Background())
	assert.ErrorIs(t, err, credentials.ErrMissing)

	hc, err := a.Client(tooltest.WithToken("tok"))
	require.NoError(t, err)
	assert.NotNil(t, hc.Transport)
}
