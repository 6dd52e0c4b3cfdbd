package upstream

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/oauth2"
)

// DefaultMaxTokenSources bounds a TokenCache when Max is unset.
const DefaultMaxTokenSources = 1024

// TokenCache keeps one reusable oauth2.TokenSource per credential set, so
// vendors exchanging client credentials or refresh tokens reuse access
// tokens until they expire. When full, the least recently used source is
// evicted. The zero value is ready to use.
type TokenCache struct {
	// Max caps the number of cached sources.
	Max int

	mu      sync.Mutex
	sources map[string]*tokenEntry
	tick    uint64
}

type tokenEntry struct {
	ts   oauth2.TokenSource
	used uint64
}

// Source returns the cached source for parts, building it on first use.
func (c *TokenCache) Source(build func() oauth2.TokenSource, parts ...string) oauth2.TokenSource {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	key := hex.EncodeToString(sum[:])

	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick++
	if e, ok := c.sources[key]; ok {
		e.used = c.tick
		return e.ts
	}
	if c.sources == nil {
		c.sources = map[string]*tokenEntry{}
	}
	limit := c.Max
	if limit <= 0 {
		limit = DefaultMaxTokenSources
	}
	for len(c.sources) >= limit {
		c.evictOldest()
	}
	ts := build()
	c.sources[key] = &tokenEntry{ts: ts, used: c.tick}
	return ts
}

func (c *TokenCache) evictOldest() {
	var (
		oldest string
		first  uint64
	)
	for k, e := range c.sources {
		if oldest == "" || e.used < first {
			oldest, first = k, e.used
		}
	}
	delete(c.sources, oldest)
}

// Len reports how many sources are cached.
func (c *TokenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sources)
}

// TokenContext returns a context for token sources that outlive a request.
// Token endpoint calls go through hc.
func TokenContext(hc *http.Client) context.Context {
	return context.WithValue(context.Background(), oauth2.HTTPClient, hc)
}
