package upstream

import (
	"context"
	"net/http"

	"mcp-fleet/internal/credentials"
)

// Authorizer decorates an outbound request with the caller's credentials.
type Authorizer func(ctx context.Context, r *http.Request) error

// None sends requests without credentials.
func None() Authorizer {
	return func(context.Context, *http.Request) error { return nil }
}

// Bearer sets "Authorization: Bearer <token>" from the x-auth-token header,
// the given auth data keys, or env.
func Bearer(env string, keys ...string) Authorizer {
	return func(ctx context.Context, r *http.Request) error {
		tok, err := credentials.FromContext(ctx).RequireToken(env, keys...)
		if err != nil {
			return err
		}
		r.Header.Set("Authorization", "Bearer "+tok)
		return nil
	}
}

// Basic sets HTTP basic auth from two auth data fields.
func Basic(userKey, userEnv, passKey, passEnv string) Authorizer {
	return func(ctx context.Context, r *http.Request) error {
		c := credentials.FromContext(ctx)
		user, err := c.Require(userKey, userEnv)
		if err != nil {
			return err
		}
		pass, err := c.Require(passKey, passEnv)
		if err != nil {
			return err
		}
		r.SetBasicAuth(user, pass)
		return nil
	}
}

// Header sets name to prefix+token, for vendors with custom key headers.
func Header(name, prefix, env string, keys ...string) Authorizer {
	return func(ctx context.Context, r *http.Request) error {
		tok, err := credentials.FromContext(ctx).RequireToken(env, keys...)
		if err != nil {
			return err
		}
		r.Header.Set(name, prefix+tok)
		return nil
	}
}
