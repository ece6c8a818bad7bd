package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	circleciadapter "github.com/embedlab/powergate/internal/adapter/driven/circleci"
	githubadapter "github.com/embedlab/powergate/internal/adapter/driven/github"
	s3adapter "github.com/embedlab/powergate/internal/adapter/driven/s3"
	sqliteadapter "github.com/embedlab/powergate/internal/adapter/driven/sqlite"
	"github.com/embedlab/powergate/internal/adapter/driven/toolrunner"
	httphandler "github.com/embedlab/powergate/internal/adapter/driving/http"
	"github.com/embedlab/powergate/internal/application"
	"github.com/embedlab/powergate/internal/config"
	"github.com/embedlab/powergate/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"repo", cfg.GitHubRepo,
		"check_name", cfg.CheckName,
		"threshold_amps", cfg.ThresholdAmps,
		"pack_job", cfg.PackJobName,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Prepare the working directory for artifacts and result files.
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return err
	}

	// 4. Open database and run migrations.
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("database ready", "path", cfg.DBPath)

	// 5. Wire driven adapters.
	runStore := sqliteadapter.NewRunRepo(db)
	reporter := githubadapter.NewReporter(cfg.GitHubToken, cfg.CheckName)
	provider := circleciadapter.NewClient(cfg.CircleCIToken, cfg.CircleCIProject)

	runner := toolrunner.NewRunner(cfg.ToolTimeout, slog.Default())
	flasher := toolrunner.NewFlasher(runner, cfg.FlashCmd)
	meter := toolrunner.NewPowerMeter(runner, cfg.MeasureCmd)

	var publisher driven.ResultPublisher
	if cfg.PublishingEnabled() {
		p, err := s3adapter.NewPublisher(ctx, cfg.S3Bucket, cfg.S3Region)
		if err != nil {
			return err
		}
		publisher = p
		slog.Info("result publishing enabled", "bucket", cfg.S3Bucket, "region", cfg.S3Region)
	} else {
		publisher = s3adapter.Disabled{}
		slog.Info("result publishing disabled, reports will omit links")
	}

	// 6. Assemble the application core.
	fetcher := application.NewArtifactFetcher(
		provider, cfg.PackJobName, cfg.ArtifactPaths, cfg.WorkDir,
		cfg.MaxWait, cfg.RetryPeriod, slog.Default(),
	)
	pipeline := application.NewDevicePipeline(flasher, meter, cfg.CaptureSeconds, cfg.SampleHz, slog.Default())
	history := application.NewHistoryWindow(filepath.Join(cfg.WorkDir, "first_few_seconds.csv"))

	controller := application.NewController(
		reporter, fetcher, pipeline, publisher, runStore,
		application.NewRunLock(), history,
		cfg.WorkDir, cfg.GitHubAppID, cfg.ThresholdAmps, cfg.QueueDepth,
		slog.Default(),
	)
	go controller.Start(ctx)

	// 7. HTTP server: webhook receiver plus the run-history API.
	handler := httphandler.NewHandler(controller, runStore, cfg.WebhookSecret, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(handler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("powergate started", "addr", cfg.ListenAddr)

	// 8. Wait for shutdown signal. A pipeline run in flight keeps the rig
	// until its own context notices the cancellation.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
