// Package cli is the mcp-fleet command line: one binary that serves any of
// the vendor MCP servers.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"mcp-fleet/internal/buildinfo"
	"mcp-fleet/internal/catalog"
	"mcp-fleet/internal/config"
	"mcp-fleet/internal/gate"
	"mcp-fleet/internal/toolkit"
	"mcp-fleet/internal/transport"
)

func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "mcp-fleet",
		Short:        "MCP servers for SaaS APIs",
		SilenceUsage: true,
	}
	cmd.AddCommand(serveCmd(), listCmd(), toolsCmd(), tokenCmd(), versionCmd())
	return cmd
}

func serveCmd() *cobra.Command {
	var (
		configPath string
		host       string
		port       int
		transp     string
	)
	cmd := &cobra.Command{
		Use:       "serve <vendor>",
		Short:     "Serve one vendor's tools over MCP",
		Args:      cobra.ExactArgs(1),
		ValidArgs: catalog.Names(),
		RunE: func(c *cobra.Command, args []string) error {
			f, err := catalog.Lookup(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			flags := c.Flags()
			if flags.Changed("host") {
				cfg.Server.Host = host
			}
			if flags.Changed("port") {
				cfg.Server.Port = port
			}
			if flags.Changed("transport") {
				cfg.Server.Transport = transp
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := config.NewLogger(cfg.Log, c.ErrOrStderr())
			v, closer, err := catalog.Build(c.Context(), f, cfg, logger)
			if err != nil {
				return err
			}
			defer closer.Close()

			return transport.Run(c.Context(), transport.Options{
				Config:  cfg,
				Vendor:  v,
				Title:   f.Title,
				Version: buildinfo.Version,
				Logger:  logger,
			}, cfg.ListenPort(f.Name, f.DefaultPort))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default $MCP_FLEET_CONFIG or ./mcp-fleet.yaml)")
	cmd.Flags().StringVar(&host, "host", "", "Listen address")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (default: the vendor's port)")
	cmd.Flags().StringVarP(&transp, "transport", "t", "", "sse, streamable-http or both")
	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available vendors",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg := config.Defaults()
			logger := config.NewLogger(cfg.Log, io.Discard)
			tw := tabwriter.NewWriter(c.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "VENDOR\tTITLE\tPORT\tTOOLS")
			for _, f := range catalog.All() {
				v, closer, err := catalog.Build(c.Context(), f, &cfg, logger)
				if err != nil {
					return err
				}
				closer.Close()
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", f.Name, f.Title, f.DefaultPort, len(v.Tools()))
			}
			return tw.Flush()
		},
	}
}

func toolsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:       "tools <vendor>",
		Short:     "List a vendor's tools",
		Args:      cobra.ExactArgs(1),
		ValidArgs: catalog.Names(),
		RunE: func(c *cobra.Command, args []string) error {
			f, err := catalog.Lookup(args[0])
			if err != nil {
				return err
			}
			cfg := config.Defaults()
			v, closer, err := catalog.Build(c.Context(), f, &cfg, config.NewLogger(cfg.Log, io.Discard))
			if err != nil {
				return err
			}
			defer closer.Close()
			if asJSON {
				return printSchemas(c.OutOrStdout(), v)
			}
			printTools(c.OutOrStdout(), v)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the tools/list schemas as JSON")
	return cmd
}

func printTools(w io.Writer, v toolkit.Vendor) {
	desc := map[string]string{}
	for _, st := range v.Tools() {
		first, _, _ := strings.Cut(st.Tool.Description, "\n")
		desc[st.Tool.Name] = first
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, name := range toolkit.ToolNames(v) {
		fmt.Fprintf(tw, "%s\t%s\n", name, desc[name])
	}
	tw.Flush()
}

// printSchemas writes the tool definitions as a tools/list result would
// carry them, sorted by name.
func printSchemas(w io.Writer, v toolkit.Vendor) error {
	byName := map[string]mcp.Tool{}
	for _, st := range v.Tools() {
		byName[st.Tool.Name] = st.Tool
	}
	list := make([]mcp.Tool, 0, len(byName))
	for _, name := range toolkit.ToolNames(v) {
		list = append(list, byName[name])
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"tools": list})
}

func tokenCmd() *cobra.Command {
	var (
		configPath  string
		subject     string
		ttl         time.Duration
		authData    string
		vendorToken string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the auth gate",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			g := gate.New(cfg.Auth, config.NewLogger(cfg.Log, c.ErrOrStderr()))
			if g == nil {
				return errors.New("auth.jwt_secret is not configured")
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}
			var data map[string]any
			if authData != "" {
				if err := json.Unmarshal([]byte(authData), &data); err != nil {
					return fmt.Errorf("--auth-data must be a JSON object: %w", err)
				}
			}
			tok, err := g.Issue(subject, vendorToken, data, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default $MCP_FLEET_CONFIG or ./mcp-fleet.yaml)")
	cmd.Flags().StringVar(&subject, "subject", "", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	cmd.Flags().StringVar(&authData, "auth-data", "", "Vendor credentials as a JSON object")
	cmd.Flags().StringVar(&vendorToken, "vendor-token", "", "Vendor token carried in the token claim")
	cmd.MarkFlagRequired("subject")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			fmt.Fprintln(c.OutOrStdout(), buildinfo.String())
		},
	}
}
