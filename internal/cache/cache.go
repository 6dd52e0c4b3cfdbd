// Package cache stores short-lived upstream GET responses.
package cache

import (
	"context"
	"time"
)

// Cache defines the interface for all cache backends. A miss returns nil, nil.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
