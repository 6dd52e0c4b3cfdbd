package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-fleet/internal/config"
	"mcp-fleet/internal/gate"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("MCP_FLEET_CONFIG", "")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, sub := range newRootCmd().Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"serve", "list", "tools", "token", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestServeFlags(t *testing.T) {
	cmd := serveCmd()
	for _, flag := range []string{"config", "host", "port", "transport"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "missing --%s", flag)
	}
}

func TestList(t *testing.T) {
	out, err := run(t, "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 13)
	assert.Contains(t, lines[0], "VENDOR")
	assert.Regexp(t, `^stripe\s+Stripe\s+5001\s+13$`, lines[1])
	assert.Regexp(t, `^zendesk\s+Zendesk\s+5012\s+8$`, lines[12])
}

func TestTools(t *testing.T) {
	out, err := run(t, "tools", "zendesk")
	require.NoError(t, err)
	assert.Contains(t, out, "zendesk_search")
	assert.Contains(t, out, "zendesk_create_ticket")
	first := strings.SplitN(out, "\n", 2)[0]
	assert.True(t, strings.HasPrefix(first, "zendesk_add_comment"), first)
}

func TestToolsJSONSchemas(t *testing.T) {
	out, err := run(t, "tools", "motion", "--json")
	require.NoError(t, err)
	var doc struct {
		Tools []struct {
			Name        string `json:"name"`
			InputSchema struct {
				Required   []string       `json:"required"`
				Properties map[string]any `json:"properties"`
			} `json:"inputSchema"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Tools, 11)
	assert.Equal(t, "motion_add_comment", doc.Tools[0].Name)
	for _, tool := range doc.Tools {
		if tool.Name == "motion_create_task" {
			assert.ElementsMatch(t, []string{"workspace_id", "name"}, tool.InputSchema.Required)
			assert.Contains(t, tool.InputSchema.Properties, "auto_schedule")
		}
	}
}

func TestToolsUnknownVendor(t *testing.T) {
	_, err := run(t, "tools", "myspace")
	assert.ErrorContains(t, err, `unknown vendor "myspace"`)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "mcp-fleet "), out)
}

func TestServeRejectsBadTransport(t *testing.T) {
	_, err := run(t, "serve", "stripe", "--transport", "carrier-pigeon")
	assert.ErrorContains(t, err, "server.transport")
}

func TestServeRejectsInvalidConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  type: memcached\n"), 0o600))
	_, err := run(t, "serve", "slack", "--config", path)
	assert.ErrorContains(t, err, "cache.type")
}

func TestServeNeedsVendor(t *testing.T) {
	_, err := run(t, "serve")
	assert.Error(t, err)
}

func TestTokenIssuesValidJWT(t *testing.T) {
	t.Setenv("MCP_FLEET_JWT_SECRET", "s3cret")
	out, err := run(t, "token", "--subject", "ops", "--ttl", "1h",
		"--auth-data", `{"subdomain":"acme"}`, "--vendor-token", "zt")
	require.NoError(t, err)

	claims, err := gate.New(config.AuthConfig{JWTSecret: "s3cret"}, nil).Validate(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, "zt", claims.Token)
	assert.Equal(t, map[string]any{"subdomain": "acme"}, claims.AuthData)
}

func TestTokenNeedsSecret(t *testing.T) {
	t.Setenv("MCP_FLEET_JWT_SECRET", "")
	_, err := run(t, "token", "--subject", "ops")
	assert.ErrorContains(t, err, "auth.jwt_secret")
}

func TestTokenRejectsBadAuthData(t *testing.T) {
	t.Setenv("MCP_FLEET_JWT_SECRET", "s3cret")
	_, err := run(t, "token", "--subject", "ops", "--auth-data", "[1]")
	assert.ErrorContains(t, err, "--auth-data")
}
