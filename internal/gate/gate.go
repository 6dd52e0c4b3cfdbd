// Package gate puts an optional HS256 bearer check in front of the MCP
// endpoints. A valid token may carry vendor credentials in its auth_data
// claim so clients only need to hold one secret.
package gate

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mcp-fleet/internal/config"
	"mcp-fleet/internal/credentials"
)

// MetadataPath is where protected resource metadata is served.
const MetadataPath = "/.well-known/oauth-protected-resource"

// Claims are the JWT claims understood by the gate.
type Claims struct {
	// Token becomes the request's vendor token unless x-auth-token overrides it.
	Token string `json:"token,omitempty"`
	// AuthData becomes the request's auth data; x-auth-data keys override it.
	AuthData map[string]any `json:"auth_data,omitempty"`
	jwt.RegisteredClaims
}

// Gate validates bearer tokens.
type Gate struct {
	secret   []byte
	issuer   string
	audience string
	required bool
	logger   *slog.Logger
}

// New creates a gate from cfg. It returns nil when no secret is configured;
// a nil *Gate passes every request through.
func New(cfg config.AuthConfig, logger *slog.Logger) *Gate {
	if cfg.JWTSecret == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		required: cfg.Required,
		logger:   logger,
	}
}

// Issue signs a token for subject carrying data, valid for ttl.
func (g *Gate) Issue(subject string, token string, data map[string]any, ttl time.Duration) (string, error) {
	if g == nil {
		return "", errors.New("gate is not configured")
	}
	now := time.Now()
	claims := Claims{
		Token:    token,
		AuthData: data,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    g.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if g.audience != "" {
		claims.Audience = jwt.ClaimStrings{g.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}

// Validate parses and verifies tokenStr.
func (g *Gate) Validate(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	}
	if g.issuer != "" {
		opts = append(opts, jwt.WithIssuer(g.issuer))
	}
	if g.audience != "" {
		opts = append(opts, jwt.WithAudience(g.audience))
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (any, error) {
		return g.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Middleware checks Authorization: Bearer on every request it wraps. With
// required unset, requests without a bearer token pass through; a bearer
// token that fails validation is always rejected.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	if g == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearer(r)
		if !ok {
			if g.required {
				g.challenge(w, r, "missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		claims, err := g.Validate(raw)
		if err != nil {
			g.logger.Info("rejected bearer token", "error", err, "remote", r.RemoteAddr)
			g.challenge(w, r, "invalid bearer token")
			return
		}

		base := credentials.Credentials{Token: claims.Token, Data: claims.AuthData}
		ctx := credentials.WithCredentials(r.Context(), base)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MetadataHandler serves RFC 9728 protected resource metadata.
func (g *Gate) MetadataHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	base := BaseURL(r)
	meta := map[string]any{
		"resource":                 base,
		"bearer_methods_supported": []string{"header"},
	}
	if g != nil && g.issuer != "" {
		meta["authorization_servers"] = []string{g.issuer}
	}
	writeJSON(w, http.StatusOK, meta)
}

func (g *Gate) challenge(w http.ResponseWriter, r *http.Request, desc string) {
	w.Header().Set("WWW-Authenticate",
		fmt.Sprintf(`Bearer error="invalid_token", resource_metadata="%s%s"`, BaseURL(r), MetadataPath))
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "invalid_token",
		"error_description": desc,
	})
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(h[7:])
	return tok, tok != ""
}

// BaseURL reconstructs the externally visible origin of r.
func BaseURL(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		host := r.Host
		if strings.HasPrefix(host, "localhost") || strings.HasPrefix(host, "127.0.0.1") || strings.HasPrefix(host, "[::1]") {
			scheme = "http"
		} else if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	return scheme + "://" + r.Host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
