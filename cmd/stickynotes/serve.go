package main

// file: cmd/stickynotes/serve.go

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/stickynotes/internal/auth"
	"github.com/dkoosis/stickynotes/internal/config"
	"github.com/dkoosis/stickynotes/internal/logging"
	"github.com/dkoosis/stickynotes/internal/mcp"
	"github.com/dkoosis/stickynotes/internal/notes"
	"github.com/dkoosis/stickynotes/internal/profile"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	requestTimeout  time.Duration
	shutdownTimeout time.Duration
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over stdin and stdout",
		Long: `Serve the Model Context Protocol over stdin and stdout until the host closes the
connection or the process receives SIGINT or SIGTERM. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context(), root, opts)
		},
	}
	cmd.Flags().DurationVar(&opts.requestTimeout, "request-timeout", 0, "Maximum time to handle one request (default from config)")
	cmd.Flags().DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 5*time.Second, "Maximum time to wait for a graceful shutdown")
	return cmd
}

// runServer starts the MCP server on stdio and blocks until it stops.
func runServer(ctx context.Context, root *rootOptions, opts serveOptions) error {
	startTime := time.Now()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, cfg, err := setupLoggingAndConfig(root, "server_runner")
	if err != nil {
		logger.Error("Failed during logging/config setup.", "error", fmt.Sprintf("%+v", err))
		return err
	}

	logger.Info("Starting stickynotes server.",
		"version", version,
		"config_path", root.configPath,
		"notes_path", cfg.Notes.Path,
		"request_timeout", opts.requestTimeout,
		"shutdown_timeout", opts.shutdownTimeout,
		"debug_mode", root.debug)

	deps, err := initializeServices(cfg, logger)
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(cfg, mcp.ServerOptions{
		RequestTimeout:  opts.requestTimeout,
		ShutdownTimeout: opts.shutdownTimeout,
		Debug:           root.debug,
		Version:         version,
	}, deps, logger)
	if err != nil {
		logger.Error("Failed to create MCP server.", "error", err.Error())
		return errors.Wrap(err, "failed to create MCP server")
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ServeSTDIO(ctx) }()

	logger.Info("Server startup complete and ready to process requests.",
		"startup_time_ms", time.Since(startTime).Milliseconds())

	select {
	case err := <-serveErr:
		return reportServeExit(err, startTime, logger)
	case <-ctx.Done():
		logger.Info("Received termination signal.")
	}
	return performGracefulShutdown(opts.shutdownTimeout, server, serveErr, startTime, logger)
}

// initializeServices builds the note store and the profile client.
func initializeServices(cfg *config.Config, logger logging.Logger) (mcp.Dependencies, error) {
	store := notes.NewStore(cfg.Notes.Path, logging.GetLogger("notes"))
	if err := store.EnsureFile(); err != nil {
		logger.Error("Failed to prepare note file.", "path", cfg.Notes.Path, "error", err.Error())
		return mcp.Dependencies{}, errors.Wrap(err, "failed to prepare note file")
	}

	tokenStore, err := auth.NewTokenStore(cfg.Auth, logging.GetLogger("auth"))
	if err != nil {
		// Lookups still run; the service decides what an empty bearer value means.
		logger.Warn("Token store unavailable.", "error", err.Error())
		tokenStore = nil
	}
	token, source, err := auth.ResolveBearerToken(cfg.Profile, tokenStore, logger)
	if err != nil {
		logger.Warn("Could not read bearer token, profile lookups will be unauthenticated.", "error", err.Error())
	}
	logger.Info("Profile client configured.", "base_url", cfg.Profile.BaseURL, "token_source", source)

	client := profile.NewClient(profile.Options{
		BaseURL:              cfg.Profile.BaseURL,
		Token:                token,
		Timeout:              cfg.Profile.Timeout,
		ShowInactiveProfiles: cfg.Profile.ShowInactiveProfiles,
	}, logging.GetLogger("profile"))

	return mcp.Dependencies{Notes: store, Profiles: client}, nil
}

// reportServeExit logs why the server stopped on its own.
func reportServeExit(err error, startTime time.Time, logger logging.Logger) error {
	uptime := time.Since(startTime).Round(time.Millisecond)
	if err != nil {
		logger.Error("Server error.", "error", fmt.Sprintf("%+v", err), "uptime", uptime)
		return err
	}
	logger.Info("Server stopped normally.", "uptime", uptime)
	return nil
}

// performGracefulShutdown asks the server to stop and waits for Serve to return.
func performGracefulShutdown(timeout time.Duration, server *mcp.Server, serveErr <-chan error, startTime time.Time, logger logging.Logger) error {
	logger.Info("Shutting down server gracefully.", "timeout", timeout)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Error during server shutdown.", "error", fmt.Sprintf("%+v", err))
		return errors.Wrap(err, "server shutdown failed")
	}

	select {
	case err := <-serveErr:
		return reportServeExit(err, startTime, logger)
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "server did not stop in time")
	}
}
