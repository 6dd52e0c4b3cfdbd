package upstream

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestTokenCacheReusesSources(t *testing.T) {
	var c TokenCache
	builds := 0
	build := func() oauth2.TokenSource {
		builds++
		return oauth2.ReuseTokenSource(nil, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t"}))
	}

	a := c.Source(build, "client", "secret")
	b := c.Source(build, "client", "secret")
	c.Source(build, "client", "other")

	assert.Same(t, a, b)
	assert.Equal(t, 2, builds)
	assert.Equal(t, 2, c.Len())

	tok, err := a.Token()
	require.NoError(t, err)
	assert.Equal(t, "t", tok.AccessToken)
}

func TestTokenCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := TokenCache{Max: 2}
	builds := 0
	build := func() oauth2.TokenSource {
		builds++
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t"})
	}

	c.Source(build, "a")
	c.Source(build, "b")
	c.Source(build, "a")
	c.Source(build, "c")
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 3, builds)

	c.Source(build, "a")
	assert.Equal(t, 3, builds, "a was used recently and must survive")
	c.Source(build, "b")
	assert.Equal(t, 4, builds, "b was evicted")
}

func TestTokenContextCarriesClient(t *testing.T) {
	hc := &http.Client{}
	ctx := TokenContext(hc)
	assert.Same(t, hc, ctx.Value(oauth2.HTTPClient))
}
