package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxbridge/internal/config"
	"github.com/teemow/inboxbridge/internal/instrumentation"
	"github.com/teemow/inboxbridge/internal/logging"
	"github.com/teemow/inboxbridge/internal/resources"
	"github.com/teemow/inboxbridge/internal/server"
	"github.com/teemow/inboxbridge/internal/tools/calendar_tools"
	"github.com/teemow/inboxbridge/internal/tools/gmail_tools"
)

// metricsStartupTimeout bounds how long serve waits for the metrics
// listener before giving up.
const metricsStartupTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server to expose Gmail and Google Calendar to AI assistants.

Supports multiple transport types:
  - stdio: Standard input/output (default, what MCP hosts spawn)
  - streamable-http: Streamable HTTP on a loopback address

The server needs a stored credential. When none is present the first tool
call starts the browser authorization flow; run "inboxbridge auth login"
beforehand to avoid that.

Use --read-only to hide the tools that send email or create events.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringP("transport", "t", config.TransportStdio, "Transport type: stdio or streamable-http (env: INBOXBRIDGE_TRANSPORT)")
	cmd.Flags().String("http-addr", config.DefaultHTTPAddr, "Loopback address for the streamable-http transport (env: INBOXBRIDGE_HTTP_ADDR)")
	cmd.Flags().Bool("read-only", false, "Only register tools that do not modify mail or calendars (env: INBOXBRIDGE_READ_ONLY)")
	cmd.Flags().Bool("watch-token", true, "Reload credentials when the token file changes (env: INBOXBRIDGE_WATCH_TOKEN)")
	cmd.Flags().Bool("metrics-enabled", true, "Serve Prometheus metrics in streamable-http mode (env: METRICS_ENABLED)")
	cmd.Flags().String("metrics-addr", config.DefaultMetricsAddr, "Metrics server address (env: METRICS_ADDR)")

	return cmd
}

func runServe(cfg *config.Config) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	// Initialize instrumentation provider
	instrConfig := cfg.Instrumentation.Settings(version)

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("Error during instrumentation shutdown", logging.Err(err))
		}
	}()

	metricsServer, err := startMetricsServer(cfg, provider, logger)
	if err != nil {
		return err
	}
	defer func() {
		if metricsServer == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Warn("Error during metrics server shutdown", logging.Err(err))
		}
	}()

	manager, err := newCredentialManager(cfg, logger, provider.Metrics())
	if err != nil {
		return fmt.Errorf("failed to create credential manager: %w", err)
	}
	logStartupDiagnostics(logger, cfg)

	serverContext, err := server.NewServerContext(shutdownCtx, server.Options{
		Manager:  manager,
		Logger:   logger,
		ReadOnly: cfg.Server.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Warn("Error during server context shutdown", logging.Err(err))
		}
	}()

	// Set metrics and audit logger on server context for tool instrumentation
	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
		serverContext.SetAuditLogger(instrumentation.NewAuditLogger(logger, instrConfig.Audit))
	}

	if cfg.Server.WatchToken {
		startTokenWatcher(shutdownCtx, cfg.Auth.TokenFile, serverContext, logger)
	}

	mcpSrv := newMCPServer()

	if cfg.Server.ReadOnly {
		logger.Info("Starting server in READ-ONLY mode; send_email and create_event are not registered")
	}

	// Register all tools and resources
	if err := registerAllTools(mcpSrv, serverContext, cfg.Server.ReadOnly); err != nil {
		return err
	}

	// Start the appropriate server based on transport type
	switch cfg.Server.Transport {
	case config.TransportStdio:
		return runStdioServer(mcpSrv)
	case config.TransportStreamableHTTP:
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, serverContext, cfg.Server.HTTPAddr, provider, logger)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", cfg.Server.Transport)
	}
}

func newMCPServer() *mcpserver.MCPServer {
	return mcpserver.NewMCPServer("inboxbridge", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
	)
}

// startMetricsServer starts the Prometheus endpoint for the HTTP
// transport. In stdio mode the process lives only as long as the host
// session, so nothing is served.
func startMetricsServer(cfg *config.Config, provider *instrumentation.Provider, logger *slog.Logger) (*server.MetricsServer, error) {
	if cfg.Server.Transport == config.TransportStdio || !cfg.Metrics.Enabled {
		return nil, nil
	}
	handler := provider.MetricsHandler()
	if handler == nil {
		return nil, nil
	}

	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:    cfg.Metrics.Addr,
		Handler: handler,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	// Use ready channel to confirm metrics server started successfully
	metricsReady := make(chan struct{})
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	select {
	case <-metricsReady:
		logger.Info("Metrics server started", slog.String("addr", metricsServer.Addr()))
		return metricsServer, nil
	case err := <-metricsErr:
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(metricsStartupTimeout):
		return nil, fmt.Errorf("metrics server startup timed out")
	}
}

func logStartupDiagnostics(logger *slog.Logger, cfg *config.Config) {
	logger.Info("Credential files",
		slog.String("token_file", cfg.Auth.TokenFile),
		slog.Bool("token_file_exists", fileExists(cfg.Auth.TokenFile)),
		slog.String("credentials_file", cfg.Auth.CredentialsFile),
		slog.Bool("credentials_file_exists", fileExists(cfg.Auth.CredentialsFile)))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func startTokenWatcher(ctx context.Context, tokenFile string, sc *server.ServerContext, logger *slog.Logger) {
	watcher, err := server.NewTokenWatcher(tokenFile, func() {
		sc.ReloadCredentials(ctx, instrumentation.ReloadTriggerWatch)
	}, logger)
	if err != nil {
		logger.Warn("Token file watching disabled", logging.Path(tokenFile), logging.Err(err))
		return
	}
	go watcher.Run(ctx)
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// registerAllTools registers all MCP tools and resources
func registerAllTools(mcpSrv *mcpserver.MCPServer, ctx *server.ServerContext, readOnly bool) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Gmail",
			register: func() error {
				return gmail_tools.RegisterGmailTools(mcpSrv, ctx, readOnly)
			},
		},
		{
			name: "Calendar",
			register: func() error {
				return calendar_tools.RegisterCalendarTools(mcpSrv, ctx, readOnly)
			},
		},
		{
			name: "Auth Resources",
			register: func() error {
				return resources.RegisterAuthResources(mcpSrv, ctx)
			},
		},
		{
			name: "User Resources",
			register: func() error {
				return resources.RegisterUserResources(mcpSrv, ctx)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s: %w", reg.name, err)
		}
	}

	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, addr string, provider *instrumentation.Provider, logger *slog.Logger) error {
	health := server.NewHealthChecker(sc)
	httpServer := server.NewHTTPServer(mcpSrv, health, logger)
	if provider.Enabled() {
		httpServer.SetMetrics(provider.Metrics())
	}

	if err := httpServer.Listen(addr); err != nil {
		return err
	}
	logger.Info("Starting inboxbridge MCP server",
		slog.String("transport", config.TransportStreamableHTTP),
		slog.String("endpoint", "http://"+httpServer.Addr()+server.MCPEndpointPath))

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Serve(); err != nil {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
		return nil
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	}
}
