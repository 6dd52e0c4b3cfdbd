package cache

import (
	"context"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"

	"mcp-fleet/internal/config"
)

// NewFromConfig builds the backend selected by cfg.Type. Type "none" (or
// empty) returns a nil Cache and a no-op closer.
func NewFromConfig(ctx context.Context, cfg config.CacheConfig, namespace string) (Cache, io.Closer, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nopCloser{}, nil
	case "memory":
		mc := NewMemoryCache(cfg.TTL)
		return mc, mc, nil
	case "sqlite":
		sc, err := NewSQLiteCache(cfg.SQLitePath, cfg.TTL)
		if err != nil {
			return nil, nil, err
		}
		return sc, sc, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		rc := NewRedisCache(client, "mcp-fleet:"+namespace+":")
		return rc, rc, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
