// Package tooltest drives vendor tools in tests.
package tooltest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"mcp-fleet/internal/credentials"
	"mcp-fleet/internal/toolkit"
	"mcp-fleet/internal/upstream"
)

// Deps returns vendor dependencies pointing at baseURL.
func Deps(vendor, baseURL string) toolkit.Deps {
	return toolkit.Deps{
		Upstream: upstream.Config{
			Vendor:       vendor,
			BaseURL:      baseURL,
			Timeout:      5 * time.Second,
			MaxRetries:   1,
			RetryBackoff: time.Millisecond,
			UserAgent:    "mcp-fleet-test",
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithToken returns a context carrying an x-auth-token value.
func WithToken(tok string) context.Context {
	return credentials.WithCredentials(context.Background(), credentials.Credentials{Token: tok})
}

// WithData returns a context carrying x-auth-data values.
func WithData(data map[string]any) context.Context {
	return credentials.WithCredentials(context.Background(), credentials.Credentials{Data: data})
}

// Call invokes the named tool of v.
func Call(t *testing.T, ctx context.Context, v toolkit.Vendor, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	for _, st := range v.Tools() {
		if st.Tool.Name != name {
			continue
		}
		var req mcp.CallToolRequest
		req.Params.Name = name
		req.Params.Arguments = args
		res, err := st.Handler(ctx, req)
		require.NoError(t, err)
		require.NotNil(t, res)
		return res
	}
	t.Fatalf("tool %q not registered by %s", name, v.Name())
	return nil
}

// Text returns the first text content of res.
func Text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

// Decode calls the tool, requires success, and decodes the JSON result.
func Decode(t *testing.T, ctx context.Context, v toolkit.Vendor, name string, args map[string]any, out any) {
	t.Helper()
	res := Call(t, ctx, v, name, args)
	require.False(t, res.IsError, "tool %s failed: %s", name, Text(t, res))
	require.NoError(t, json.Unmarshal([]byte(Text(t, res)), out))
}

// Failure calls the tool and decodes the failure envelope.
func Failure(t *testing.T, ctx context.Context, v toolkit.Vendor, name string, args map[string]any) map[string]any {
	t.Helper()
	res := Call(t, ctx, v, name, args)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(Text(t, res)), &out))
	require.Equal(t, false, out["success"], "expected failure, got %s", Text(t, res))
	return out
}
