// Package transport serves one vendor's MCP server over HTTP: streamable
// HTTP on /mcp, Server-Sent Events on /sse and /messages/, plus a landing
// page, health and metrics endpoints.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/mark3labs/mcp-go/server"

	"mcp-fleet/internal/config"
	"mcp-fleet/internal/credentials"
	"mcp-fleet/internal/gate"
	"mcp-fleet/internal/observability"
	"mcp-fleet/internal/toolkit"
)

// Options configures a Server.
type Options struct {
	Config  *config.Config
	Vendor  toolkit.Vendor
	Title   string
	Version string
	Logger  *slog.Logger
}

// Server is the HTTP surface of one vendor server.
type Server struct {
	cfg     *config.Config
	vendor  toolkit.Vendor
	title   string
	version string
	logger  *slog.Logger
	gated   bool

	mcp    *server.MCPServer
	sse    *server.SSEServer
	router chi.Router
}

// New wires the MCP server and all routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	title := opts.Title
	if title == "" {
		title = opts.Vendor.Name()
	}
	s := &Server{
		cfg:     opts.Config,
		vendor:  opts.Vendor,
		title:   title,
		version: opts.Version,
		logger:  logger,
		mcp:     toolkit.NewServer(opts.Vendor, opts.Version, logger),
	}

	g := gate.New(opts.Config.Auth, logger)
	s.gated = g != nil

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(observability.MetricsMiddleware)
	if opts.Config.Server.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.Config.Server.CORS.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"*"},
			ExposedHeaders: []string{"Mcp-Session-Id", "WWW-Authenticate"},
			MaxAge:         300,
		}))
	}

	r.Get("/", s.handleLanding)
	r.Get("/favicon.svg", handleFavicon)
	r.Get("/favicon.ico", handleFavicon)
	r.Get("/healthz", s.handleHealth)
	r.Get(gate.MetadataPath, g.MetadataHandler)
	if opts.Config.Metrics.Enabled {
		r.Handle(opts.Config.Metrics.Path, observability.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(g.Middleware)

		if opts.Config.Server.StreamableEnabled() {
			r.Handle("/mcp", server.NewStreamableHTTPServer(s.mcp,
				server.WithEndpointPath("/mcp"),
				server.WithStateLess(true),
				server.WithHTTPContextFunc(credentials.HTTPContextFunc),
			))
		}
		if opts.Config.Server.SSEEnabled() {
			s.sse = server.NewSSEServer(s.mcp,
				server.WithSSEEndpoint("/sse"),
				server.WithMessageEndpoint("/messages/"),
				server.WithSSEContextFunc(credentials.HTTPContextFunc),
			)
			r.Handle("/sse", s.sse.SSEHandler())
			r.Handle("/messages/", s.sse.MessageHandler())
			r.Handle("/messages", s.sse.MessageHandler())
		}
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// MCP returns the underlying MCP server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","server":%q,"tools":%d}`, s.vendor.Name(), len(s.vendor.Tools()))
}

// Shutdown closes open SSE sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.sse == nil {
		return nil
	}
	return s.sse.Shutdown(ctx)
}

// Run listens on addr until ctx is cancelled or SIGINT/SIGTERM arrives,
// then shuts down gracefully.
func Run(ctx context.Context, opts Options, port int) error {
	s := New(opts)
	cfg := opts.Config

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			"addr", addr, "transport", cfg.Server.Transport, "tools", len(opts.Vendor.Tools()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("closing SSE sessions", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.Server.ShutdownTimeout > 0 {
		return cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}

func baseURL(r *http.Request) string {
	return gate.BaseURL(r)
}
