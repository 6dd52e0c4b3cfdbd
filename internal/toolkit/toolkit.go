// Package toolkit holds what every vendor server shares: the vendor
// contract, MCP server construction, tool result rendering and argument
// parsing.
package toolkit

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"mcp-fleet/internal/config"
	"mcp-fleet/internal/observability"
	"mcp-fleet/internal/upstream"
)

// Vendor is one SaaS integration exposed as MCP tools.
type Vendor interface {
	Name() string
	Tools() []server.ServerTool
}

// Deps is what a vendor needs to build its clients.
type Deps struct {
	Upstream upstream.Config
	Vendor   config.VendorConfig
	Logger   *slog.Logger
}

// Factory describes a vendor and builds it.
type Factory struct {
	Name        string
	Title       string
	DefaultPort int
	New         func(Deps) (Vendor, error)
}

// NewServer builds an MCP server for vendor with panic recovery and a
// middleware recording per-tool metrics and logs.
func NewServer(vendor Vendor, version string, logger *slog.Logger) *server.MCPServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := server.NewMCPServer(
		"mcp-fleet-"+vendor.Name(),
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(instrument(vendor.Name(), logger)),
	)
	s.AddTools(vendor.Tools()...)
	return s
}

func instrument(name string, logger *slog.Logger) server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			start := time.Now()
			res, err := next(ctx, req)
			elapsed := time.Since(start)

			outcome := "ok"
			if err != nil || (res != nil && res.IsError) {
				outcome = "error"
			}
			tool := req.Params.Name
			observability.ToolCallsTotal.WithLabelValues(name, tool, outcome).Inc()
			observability.ToolCallDuration.WithLabelValues(name, tool).Observe(elapsed.Seconds())
			logger.Info("tool call", "tool", tool, "outcome", outcome, "duration", elapsed)
			return res, err
		}
	}
}

// ToolNames lists a vendor's tool names in sorted order.
func ToolNames(v Vendor) []string {
	tools := v.Tools()
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Tool.Name)
	}
	sort.Strings(names)
	return names
}
