// Package catalog lists every vendor server and builds one from the process
// configuration.
package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"mcp-fleet/internal/cache"
	"mcp-fleet/internal/config"
	"mcp-fleet/internal/toolkit"
	"mcp-fleet/internal/upstream"
	"mcp-fleet/internal/vendors/gong"
	"mcp-fleet/internal/vendors/googledocs"
	"mcp-fleet/internal/vendors/googletasks"
	"mcp-fleet/internal/vendors/klaviyo"
	"mcp-fleet/internal/vendors/motion"
	"mcp-fleet/internal/vendors/quickbooks"
	"mcp-fleet/internal/vendors/reddit"
	"mcp-fleet/internal/vendors/slack"
	"mcp-fleet/internal/vendors/stripe"
	"mcp-fleet/internal/vendors/yahoofinance"
	"mcp-fleet/internal/vendors/zendesk"
	"mcp-fleet/internal/vendors/zoom"
)

var factories = []toolkit.Factory{
	stripe.Factory,
	slack.Factory,
	gong.Factory,
	klaviyo.Factory,
	quickbooks.Factory,
	zoom.Factory,
	reddit.Factory,
	yahoofinance.Factory,
	googletasks.Factory,
	googledocs.Factory,
	motion.Factory,
	zendesk.Factory,
}

// All returns every vendor ordered by default port.
func All() []toolkit.Factory {
	out := append([]toolkit.Factory(nil), factories...)
	sort.Slice(out, func(i, j int) bool { return out[i].DefaultPort < out[j].DefaultPort })
	return out
}

// Names returns the vendor names ordered by default port.
func Names() []string {
	all := All()
	names := make([]string, len(all))
	for i, f := range all {
		names[i] = f.Name
	}
	return names
}

// Lookup finds a vendor by name, ignoring case.
func Lookup(name string) (toolkit.Factory, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, f := range factories {
		if f.Name == name {
			return f, nil
		}
	}
	return toolkit.Factory{}, fmt.Errorf("unknown vendor %q (available: %s)", name, strings.Join(Names(), ", "))
}

// Build constructs the vendor with its response cache. The returned closer
// releases the cache and must be called on shutdown.
func Build(ctx context.Context, f toolkit.Factory, cfg *config.Config, logger *slog.Logger) (toolkit.Vendor, io.Closer, error) {
	c, closer, err := cache.NewFromConfig(ctx, cfg.Cache, f.Name)
	if err != nil {
		return nil, nil, fmt.Errorf("cache: %w", err)
	}
	v, err := f.New(toolkit.Deps{
		Upstream: upstream.ConfigFrom(f.Name, cfg, c),
		Vendor:   cfg.Vendor(f.Name),
		Logger:   logger.With("vendor", f.Name),
	})
	if err != nil {
		closer.Close()
		return nil, nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	return v, closer, nil
}
