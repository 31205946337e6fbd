package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fileplacer/internal/config"
	"fileplacer/internal/reportstore"
	"fileplacer/internal/server"
)

type serveFlags struct {
	clientOverrides
	port string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	var flags serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the placement scan HTTP API",
		Long: `Serve exposes scans over HTTP (h2c):

  POST /v1/scans          run a scan, returns the archived report
  GET  /v1/scans          list archived report IDs, newest first
  GET  /v1/scans/{id}     fetch one archived report
  GET  /v1/scans/watch    websocket; streams verdicts while a scan runs

Local repo_path values must lie under FILEPLACER_REPOS_DIR (default ./repos).
Browsers may call the API cross-origin only from FILEPLACER_ALLOWED_ORIGINS.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, root.logger, flags)
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.port, "port", "", "Listen address (default: $PORT or :8081)")
	f.StringVar(&flags.provider, "provider", "", "Model provider: openai, groq, gemini or fake")
	f.StringVar(&flags.apiKey, "api-key", "", "API key (default: provider environment variable)")
	f.StringVar(&flags.model, "model", "", "Model name")
	f.StringVar(&flags.conventions, "conventions", "", "YAML file with folder conventions")
	f.IntVar(&flags.concurrency, "concurrency", 0, "Adjudications in flight per scan")
	return cmd
}

func runServe(cmd *cobra.Command, logger *zap.Logger, flags serveFlags) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flags.clientOverrides.apply(cfg)
	if flags.port != "" {
		cfg.Port = flags.port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.Scan.ReposDir = cfg.ServeReposDir()
	logger.Info("local scans confined", zap.String("repos_dir", cfg.Scan.ReposDir))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := reportstore.Open(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	sc, closeClient, err := buildScanner(ctx, cfg, store, logger)
	if err != nil {
		return err
	}
	defer closeClient()

	srv := server.New(cfg.Port, server.NewMux(server.NewHandler(sc, store, logger), cfg.AllowedOrigins), logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("server exiting")
	return <-errCh
}
