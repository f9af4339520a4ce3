package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shelfsearch/internal/config"
	logpkg "github.com/kailas-cloud/shelfsearch/internal/logger"
	"github.com/kailas-cloud/shelfsearch/internal/metrics"
	chiTransport "github.com/kailas-cloud/shelfsearch/internal/transport/chi"
	"github.com/kailas-cloud/shelfsearch/internal/version"
)

const usage = `usage: shelfsearch [serve|sync|version]

  serve    run the HTTP API (default)
  sync     rebuild the vector index from the catalog and exit
  version  print build metadata`

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "serve", "sync":
	case "version", "-version", "--version":
		fmt.Println(version.String())
		return
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	// .env is optional; real environment variables win.
	envFileErr := godotenv.Load()

	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	if cfg.Logging.File != "" {
		var closer io.Closer
		logger, closer = logpkg.WithFile(logger, logpkg.FileConfig{
			Path:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		})
		defer func() { _ = closer.Close() }()
	}
	defer func() { _ = logger.Sync() }()

	if envFileErr != nil && !errors.Is(envFileErr, os.ErrNotExist) {
		logger.Warn("Failed to read .env", zap.Error(envFileErr))
	}

	logger.Info("Starting shelfsearch",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("command", cmd),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("index_driver", cfg.Index.Driver),
		zap.String("embedding_model", cfg.Embedding.Model),
	)

	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build application", zap.Error(err))
	}
	defer a.close()

	if cmd == "sync" {
		if err := runSync(ctx, a, logger); err != nil {
			logger.Error("Full sync failed", zap.Error(err))
			_ = logger.Sync()
			a.close()
			os.Exit(1)
		}
		return
	}

	serve(ctx, cfg, a, logger)
}

func runSync(ctx context.Context, a *app, logger *zap.Logger) error {
	report, err := a.sync.FullSync(ctx)
	logger.Info("Full sync finished",
		zap.Bool("cleared", report.Cleared),
		zap.Int("indexed", report.Indexed),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration),
	)
	for _, f := range report.Failures {
		logger.Warn("Record failed", zap.String("id", f.ID), zap.String("reason", f.Reason))
	}
	if err != nil {
		return fmt.Errorf("full sync: %w", err)
	}
	return nil
}

func serve(ctx context.Context, cfg config.Config, a *app, logger *zap.Logger) {
	if a.events != nil {
		if err := a.events.Start(ctx); err != nil {
			logger.Fatal("Failed to start record event consumer", zap.Error(err))
		}
	}

	server := chiTransport.NewServer(a.search, a.sync, a.respond, a.health, a.stats, a.engine, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
