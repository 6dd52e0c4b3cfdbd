package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 0 and 65535, got %d", c.Server.Port))
	}
	switch c.Server.Transport {
	case TransportSSE, TransportStreamable, TransportBoth:
	default:
		errs = append(errs, fmt.Errorf("server.transport must be %q, %q or %q, got %q",
			TransportSSE, TransportStreamable, TransportBoth, c.Server.Transport))
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format))
	}

	if c.Upstream.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("upstream.max_retries must be >= 0, got %d", c.Upstream.MaxRetries))
	}
	if c.Upstream.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("upstream.rate_limit must be >= 0, got %v", c.Upstream.RateLimit))
	}
	if c.Upstream.RateLimit > 0 && c.Upstream.Burst < 1 {
		errs = append(errs, fmt.Errorf("upstream.burst must be >= 1 when rate_limit is set, got %d", c.Upstream.Burst))
	}

	switch c.Cache.Type {
	case "none", "", "memory":
	case "sqlite":
		if c.Cache.SQLitePath == "" {
			errs = append(errs, errors.New("cache.sqlite_path is required when cache.type is \"sqlite\""))
		}
	case "redis":
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("cache.redis_addr is required when cache.type is \"redis\""))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.type must be none, memory, sqlite or redis, got %q", c.Cache.Type))
	}
	if c.Cache.Type != "none" && c.Cache.Type != "" && c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must be positive, got %v", c.Cache.TTL))
	}

	if c.Auth.Required && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required when auth.required is true"))
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path))
	}

	return errors.Join(errs...)
}

// ParseLevel maps a log level name onto a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level must be debug, info, warn or error, got %q", s)
	}
}
