// Package credentials carries per-request caller credentials from the
// incoming HTTP request to the vendor call that needs them.
//
// Credentials arrive in the x-auth-token header (a raw token) and the
// x-auth-data header (base64 encoded JSON object). Environment variables act
// as a fallback for local development.
package credentials

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Header names read from incoming MCP requests.
const (
	TokenHeader = "x-auth-token"
	DataHeader  = "x-auth-data"
)

// EnvAuthData names the environment variable holding a raw JSON auth object
// used when a request carries no x-auth-data header.
const EnvAuthData = "AUTH_DATA"

// ErrMissing is returned when a required credential is absent from the
// request and the environment.
var ErrMissing = errors.New("missing credentials")

// Credentials is the set of values a caller sent with one request.
type Credentials struct {
	Token string
	Data  map[string]any
}

type contextKey struct{}

// FromRequest extracts credentials from request headers. Malformed
// x-auth-data is ignored.
func FromRequest(r *http.Request) Credentials {
	c := Credentials{Token: strings.TrimSpace(r.Header.Get(TokenHeader))}
	if raw := strings.TrimSpace(r.Header.Get(DataHeader)); raw != "" {
		if data, err := DecodeAuthData(raw); err == nil {
			c.Data = data
		}
	}
	return c
}

// DecodeAuthData decodes a base64 JSON object. Standard and URL alphabets
// are accepted, with or without padding. A bare JSON object is accepted too.
func DecodeAuthData(raw string) (map[string]any, error) {
	decoded := []byte(raw)
	if !strings.HasPrefix(raw, "{") {
		var err error
		for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
			decoded, err = enc.DecodeString(raw)
			if err == nil {
				break
			}
		}
		if err != nil {
			return nil, fmt.Errorf("decode auth data: %w", err)
		}
	}
	var data map[string]any
	if err := json.Unmarshal(decoded, &data); err != nil {
		return nil, fmt.Errorf("parse auth data: %w", err)
	}
	return data, nil
}

// HTTPContextFunc stores the request's credentials in ctx, layered over any
// credentials already present (for example from a bearer token).
func HTTPContextFunc(ctx context.Context, r *http.Request) context.Context {
	return WithCredentials(ctx, Merge(FromContext(ctx), FromRequest(r)))
}

// WithCredentials returns a copy of ctx carrying c.
func WithCredentials(ctx context.Context, c Credentials) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the credentials stored in ctx. When no request data
// is present, AUTH_DATA from the environment fills Data.
func FromContext(ctx context.Context) Credentials {
	c, _ := ctx.Value(contextKey{}).(Credentials)
	if len(c.Data) == 0 {
		if raw := os.Getenv(EnvAuthData); raw != "" {
			var data map[string]any
			if err := json.Unmarshal([]byte(raw), &data); err == nil {
				c.Data = data
			}
		}
	}
	return c
}

// Merge layers over on top of base. Non-empty values in over win.
func Merge(base, over Credentials) Credentials {
	out := Credentials{Token: base.Token}
	if over.Token != "" {
		out.Token = over.Token
	}
	if len(base.Data)+len(over.Data) > 0 {
		out.Data = make(map[string]any, len(base.Data)+len(over.Data))
		for k, v := range base.Data {
			out.Data[k] = v
		}
		for k, v := range over.Data {
			out.Data[k] = v
		}
	}
	return out
}

// Value returns Data[key] as a string. Numbers and booleans are formatted.
func (c Credentials) Value(key string) string {
	v, ok := c.Data[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Lookup resolves a named field from auth data, falling back to env.
func (c Credentials) Lookup(key, env string) string {
	if v := c.Value(key); v != "" {
		return v
	}
	if env != "" {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

// Require is Lookup that fails with ErrMissing when nothing is found.
func (c Credentials) Require(key, env string) (string, error) {
	if v := c.Lookup(key, env); v != "" {
		return v, nil
	}
	return "", missing(key, env)
}

// BearerToken resolves a bearer-style token: the x-auth-token header, then
// the given auth data keys, then access_token, then env.
func (c Credentials) BearerToken(env string, keys ...string) string {
	if c.Token != "" {
		return c.Token
	}
	candidates := append(append([]string{}, keys...), "access_token", "token")
	for _, k := range candidates {
		if v := c.Value(k); v != "" {
			return v
		}
	}
	if env != "" {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

// RequireToken is BearerToken that fails with ErrMissing when nothing is found.
func (c Credentials) RequireToken(env string, keys ...string) (string, error) {
	if v := c.BearerToken(env, keys...); v != "" {
		return v, nil
	}
	name := "access_token"
	if len(keys) > 0 {
		name = keys[0]
	}
	return "", missing(name, env)
}

func missing(key, env string) error {
	if env == "" {
		return fmt.Errorf("%w: %s", ErrMissing, key)
	}
	return fmt.Errorf("%w: provide %s via %s/%s headers or the %s environment variable",
		ErrMissing, key, TokenHeader, DataHeader, env)
}
