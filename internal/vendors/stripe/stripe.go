// Package stripe exposes the Stripe REST API as MCP tools.
//
// Credentials: the secret key arrives as x-auth-token, as api_key in
// x-auth-data, or via STRIPE_SECRET_KEY.
package stripe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"

	"mcp-fleet/internal/toolkit"
	"mcp-fleet/internal/upstream"
)

const (
	Name           = "stripe"
	DefaultBaseURL = "https://api.stripe.com/v1"
	envSecretKey   = "STRIPE_SECRET_KEY"
)

// Factory registers the Stripe server.
var Factory = toolkit.Factory{
	Name:        Name,
	Title:       "Stripe",
	DefaultPort: 5001,
	New:         New,
}

// Vendor is the Stripe integration.
type Vendor struct {
	api *upstream.Client
}

// New builds the Stripe vendor.
func New(deps toolkit.Deps) (toolkit.Vendor, error) {
	cfg := deps.Upstream.WithBaseURL(DefaultBaseURL)
	return &Vendor{
		api: upstream.New(cfg, upstream.Bearer(envSecretKey, "api_key", "secret_key"),
			upstream.WithLogger(deps.Logger)),
	}, nil
}

func (v *Vendor) Name() string { return Name }

func (v *Vendor) Tools() []server.ServerTool { return v.tools() }

// post sends a form encoded POST with a fresh Idempotency-Key so a retried
// request after HTTP 429 never creates a duplicate.
func (v *Vendor) post(ctx context.Context, path string, form url.Values, out any) error {
	_, err := v.api.Do(ctx, upstream.Request{
		Method: http.MethodPost,
		Path:   path,
		Form:   form,
		Header: http.Header{"Idempotency-Key": {uuid.NewString()}},
	}, out)
	return err
}

// list fetches a Stripe list object and returns its data array.
func (v *Vendor) list(ctx context.Context, path string, query url.Values) (page, error) {
	var p page
	err := v.api.Get(ctx, path, query, &p)
	if p.Data == nil {
		p.Data = []map[string]any{}
	}
	return p, err
}

type page struct {
	Data    []map[string]any `json:"data"`
	HasMore bool             `json:"has_more"`
}

// zeroDecimal lists currencies whose amounts are already in whole units.
var zeroDecimal = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// AmountDisplay renders a minor-unit amount as "12.34 USD".
func AmountDisplay(amount int64, currency string) string {
	cur := strings.ToLower(currency)
	if zeroDecimal[cur] {
		return fmt.Sprintf("%d %s", amount, strings.ToUpper(cur))
	}
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, strings.ToUpper(cur))
}

// setMetadata encodes an object as metadata[key]=value pairs.
func setMetadata(form url.Values, meta map[string]any) {
	for k, val := range meta {
		form.Set("metadata["+k+"]", fmt.Sprint(val))
	}
}

func setIf(form url.Values, key, value string) {
	if value != "" {
		form.Set(key, value)
	}
}

func limitQuery(limit int) url.Values {
	return url.Values{"limit": {strconv.Itoa(limit)}}
}
