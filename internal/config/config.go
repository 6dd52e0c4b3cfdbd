// Package config provides configuration for a single mcp-fleet vendor server.
//
// Configuration is loaded in layers:
//  1. Built-in defaults
//  2. YAML config file (explicit path, MCP_FLEET_CONFIG, ./mcp-fleet.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Transport names accepted by server.transport.
const (
	TransportSSE        = "sse"
	TransportStreamable = "streamable-http"
	TransportBoth       = "both"
)

// Config holds all configuration for one vendor server process.
type Config struct {
	Server   ServerConfig            `yaml:"server"`
	Log      LogConfig               `yaml:"log"`
	Upstream UpstreamConfig          `yaml:"upstream"`
	Cache    CacheConfig             `yaml:"cache"`
	Auth     AuthConfig              `yaml:"auth"`
	Metrics  MetricsConfig           `yaml:"metrics"`
	Vendors  map[string]VendorConfig `yaml:"vendors"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `yaml:"host"`             // default: "0.0.0.0"
	Port            int           `yaml:"port"`             // 0 selects the vendor default port
	Transport       string        `yaml:"transport"`        // "sse", "streamable-http" or "both"
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // 0 keeps SSE streams open
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 10s
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig controls cross-origin access for browser based MCP clients.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"` // default: ["*"]
}

// LogConfig holds slog settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// UpstreamConfig holds settings shared by every outbound vendor call.
type UpstreamConfig struct {
	Timeout      time.Duration `yaml:"timeout"`       // default: 30s
	MaxRetries   int           `yaml:"max_retries"`   // retries on HTTP 429, default: 1
	RetryBackoff time.Duration `yaml:"retry_backoff"` // fixed wait before a retry, default: 1s
	RateLimit    float64       `yaml:"rate_limit"`    // requests per second, 0 disables
	Burst        int           `yaml:"burst"`         // default: 5
	UserAgent    string        `yaml:"user_agent"`
}

// CacheConfig selects the response cache used for cacheable GET requests.
type CacheConfig struct {
	Type              string        `yaml:"type"` // none, memory, sqlite, redis
	TTL               time.Duration `yaml:"ttl"`  // default: 60s
	SQLitePath        string        `yaml:"sqlite_path"`
	RedisAddr         string        `yaml:"redis_addr"`
	RedisPassword     string        `yaml:"redis_password"`
	RedisPasswordFile string        `yaml:"redis_password_file"`
	RedisDB           int           `yaml:"redis_db"`
}

// AuthConfig configures the optional bearer gate in front of the MCP endpoints.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	JWTSecretFile string `yaml:"jwt_secret_file"`
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
	Required      bool   `yaml:"required"`
}

// MetricsConfig holds Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// VendorConfig overrides per-vendor endpoints, mostly for sandboxes and tests.
type VendorConfig struct {
	BaseURL  string `yaml:"base_url"`
	TokenURL string `yaml:"token_url"`
	Port     int    `yaml:"port"`
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Transport:       TransportBoth,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORS: CORSConfig{
				AllowedOrigins: []string{"*"},
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Upstream: UpstreamConfig{
			Timeout:      30 * time.Second,
			MaxRetries:   1,
			RetryBackoff: time.Second,
			Burst:        5,
			UserAgent:    "mcp-fleet/1.0",
		},
		Cache: CacheConfig{
			Type:       "none",
			TTL:        60 * time.Second,
			SQLitePath: "mcp-fleet-cache.db",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Vendors: map[string]VendorConfig{},
	}
}

// Vendor returns the overrides for the named vendor, or the zero value.
func (c *Config) Vendor(name string) VendorConfig {
	if c.Vendors == nil {
		return VendorConfig{}
	}
	return c.Vendors[name]
}

// ListenPort resolves the port for a vendor: explicit server.port wins,
// then vendors.<name>.port, then the vendor's built-in default.
func (c *Config) ListenPort(vendor string, fallback int) int {
	if c.Server.Port != 0 {
		return c.Server.Port
	}
	if p := c.Vendor(vendor).Port; p != 0 {
		return p
	}
	return fallback
}

// SSEEnabled reports whether the /sse and /messages/ endpoints are served.
func (s ServerConfig) SSEEnabled() bool {
	return s.Transport == TransportSSE || s.Transport == TransportBoth
}

// StreamableEnabled reports whether the /mcp endpoint is served.
func (s ServerConfig) StreamableEnabled() bool {
	return s.Transport == TransportStreamable || s.Transport == TransportBoth
}
