// Package main provides the MCP server entry point for docchat. It ingests
// the configured folder at startup and serves one conversation.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mike-a-ellis/docchat/internal/app"
	"github.com/mike-a-ellis/docchat/internal/config"
	mcpserver "github.com/mike-a-ellis/docchat/internal/mcp"
)

var version = "dev"

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:   "docchat-mcp",
	Short: "Serve a docchat session over the Model Context Protocol",
	Long: `Ingests the configured folder at startup and exposes the conversation as
MCP tools: ask, get_session_status and get_chat_history.

With SERVER_MODE=true the tools are served over Streamable HTTP at /mcp;
otherwise over stdio, with /health still available on PORT.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(configPath, envFile)
	},
}

func main() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (default docchat.yaml if present)")
	rootCmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Server exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}

	// stdout carries the stdio transport, so logs always go to stderr
	logger, err := app.NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// Ingest in the background; ask answers with a not-ready error until done.
	// The pipeline must stop before Close removes its temp dir and index.
	var ingest sync.WaitGroup
	ingest.Add(1)
	go func() {
		defer ingest.Done()
		_, _ = a.Session.Ingest(ctx)
	}()
	defer func() {
		cancel()
		ingest.Wait()
	}()

	server, err := mcpserver.NewServer(a.Session, version)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", mcpserver.NewHealthHandler(a.Index, a.Session))
	mux.Handle("/mcp", server.HTTPHandler(nil))
	mux.HandleFunc("/", mcpserver.NewLandingHandler(a.Session))

	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	if cfg.Server.ServerMode {
		// HTTP mode: serve MCP over HTTP for remote clients
		logger.Info("Starting HTTP server", "addr", httpServer.Addr, "mcp", "/mcp", "health", "/health")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	// Stdio mode: MCP over stdin/stdout, health endpoint in the background
	go func() {
		logger.Info("Starting health server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Health server error", "error", err)
		}
	}()

	logger.Info("Starting docchat MCP server (stdio mode)", "session", a.Session.ID())
	if err := server.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
