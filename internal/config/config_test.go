package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, pattern, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), pattern)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "HOST", "MCP_FLEET_CONFIG", "MCP_FLEET_TRANSPORT", "MCP_FLEET_LOG_LEVEL",
		"MCP_FLEET_LOG_FORMAT", "MCP_FLEET_CACHE", "MCP_FLEET_REDIS_ADDR",
		"MCP_FLEET_JWT_SECRET", "MCP_FLEET_RATE_LIMIT",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 0, cfg.Server.Port)
	assert.Equal(t, TransportBoth, cfg.Server.Transport)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 1, cfg.Upstream.MaxRetries)
	assert.Equal(t, time.Second, cfg.Upstream.RetryBackoff)
	assert.Equal(t, "none", cfg.Cache.Type)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	clearEnv(t)
	path := writeTemp(t, "cfg-*.yaml", `
server:
  port: 7001
  transport: sse
  cors:
    enabled: true
    allowed_origins: ["https://app.example.com"]
log:
  level: debug
  format: json
upstream:
  timeout: 5s
  max_retries: 2
  retry_backoff: 250ms
  rate_limit: 10
  burst: 20
cache:
  type: memory
  ttl: 2m
vendors:
  stripe:
    base_url: http://localhost:12111/v1
    port: 6100
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7001, cfg.Server.Port)
	assert.Equal(t, TransportSSE, cfg.Server.Transport)
	assert.True(t, cfg.Server.CORS.Enabled)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.CORS.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 5*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, 2, cfg.Upstream.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Upstream.RetryBackoff)
	assert.Equal(t, 10.0, cfg.Upstream.RateLimit)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "http://localhost:12111/v1", cfg.Vendor("stripe").BaseURL)
	assert.Equal(t, VendorConfig{}, cfg.Vendor("slack"))

	// Defaults survive for untouched fields.
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9123")
	t.Setenv("MCP_FLEET_TRANSPORT", "streamable-http")
	t.Setenv("MCP_FLEET_CACHE", "redis")
	t.Setenv("MCP_FLEET_REDIS_ADDR", "localhost:6379")
	t.Setenv("MCP_FLEET_RATE_LIMIT", "2.5")

	cfg, err := Load(writeTemp(t, "cfg-*.yaml", "server:\n  port: 7001\n"))
	require.NoError(t, err)

	assert.Equal(t, 9123, cfg.Server.Port)
	assert.Equal(t, TransportStreamable, cfg.Server.Transport)
	assert.Equal(t, "redis", cfg.Cache.Type)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, 2.5, cfg.Upstream.RateLimit)
}

func TestConfigFileFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MCP_FLEET_CONFIG", writeTemp(t, "cfg-*.yaml", "log:\n  level: warn\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestFileReferences(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	secret := filepath.Join(dir, "jwt")
	require.NoError(t, os.WriteFile(secret, []byte("  s3cret\n"), 0o600))

	path := writeTemp(t, "cfg-*.yaml", "auth:\n  jwt_secret_file: "+secret+"\n  required: true\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestFileReferenceMissing(t *testing.T) {
	clearEnv(t)
	path := writeTemp(t, "cfg-*.yaml", "auth:\n  jwt_secret_file: /nonexistent/secret\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.jwt_secret_file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad transport", func(c *Config) { c.Server.Transport = "websocket" }, "server.transport"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"negative retries", func(c *Config) { c.Upstream.MaxRetries = -1 }, "upstream.max_retries"},
		{"burst without limit", func(c *Config) { c.Upstream.RateLimit = 1; c.Upstream.Burst = 0 }, "upstream.burst"},
		{"redis without addr", func(c *Config) { c.Cache.Type = "redis" }, "cache.redis_addr"},
		{"unknown cache", func(c *Config) { c.Cache.Type = "memcached" }, "cache.type"},
		{"required without secret", func(c *Config) { c.Auth.Required = true }, "auth.jwt_secret"},
		{"metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, "metrics.path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestListenPort(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 5000, cfg.ListenPort("stripe", 5000))

	cfg.Vendors["stripe"] = VendorConfig{Port: 6000}
	assert.Equal(t, 6000, cfg.ListenPort("stripe", 5000))

	cfg.Server.Port = 7000
	assert.Equal(t, 7000, cfg.ListenPort("stripe", 5000))
}

func TestTransportSwitches(t *testing.T) {
	s := ServerConfig{Transport: TransportBoth}
	assert.True(t, s.SSEEnabled())
	assert.True(t, s.StreamableEnabled())

	s.Transport = TransportSSE
	assert.True(t, s.SSEEnabled())
	assert.False(t, s.StreamableEnabled())

	s.Transport = TransportStreamable
	assert.False(t, s.SSEEnabled())
	assert.True(t, s.StreamableEnabled())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}
