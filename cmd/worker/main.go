package main

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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/zzkuner/fileonline/internal/capability"
	"github.com/zzkuner/fileonline/internal/config"
	"github.com/zzkuner/fileonline/internal/domain/repository"
	"github.com/zzkuner/fileonline/internal/infrastructure/cache"
	"github.com/zzkuner/fileonline/internal/infrastructure/postgres"
	"github.com/zzkuner/fileonline/internal/infrastructure/queue"
	"github.com/zzkuner/fileonline/internal/infrastructure/settings"
	"github.com/zzkuner/fileonline/internal/infrastructure/storage"
	"github.com/zzkuner/fileonline/internal/transcoder"
	"github.com/zzkuner/fileonline/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	pgClient, err := postgres.NewClient(ctx, postgres.DefaultClientConfig(cfg.Database.DSN(), "fileonline-worker"))
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pgClient.Close()
	if err := pgClient.Migrate(ctx); err != nil {
		return err
	}
	if err := pgClient.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("failed to register pool metrics: %w", err)
	}
	logger.Info("connected to PostgreSQL")

	// Redis is only used to invalidate cached job status.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis")

	queueCfg := queue.DefaultClientConfig(cfg.RabbitMQ.URL())
	queueCfg.Prefetch = cfg.Worker.Concurrency
	queueClient, err := queue.NewClient(ctx, queueCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer queueClient.Close()
	logger.Info("connected to RabbitMQ")

	// The worker never verifies tokens, so no denylist is attached.
	signer, err := capability.New(cfg.Signing.Secret, cfg.Storage.PublicBaseURL)
	if err != nil {
		return fmt.Errorf("failed to create token signer: %w", err)
	}

	var settingsStore repository.BackendProvider
	if cfg.Storage.SettingsSource == settings.SourcePostgres {
		settingsStore = postgres.NewSettingsRepository(pgClient.Pool())
	}
	provider, err := settings.Build(cfg, settingsStore)
	if err != nil {
		return err
	}
	store := storage.NewAdapter(provider, signer)

	tc := transcoder.NewFFmpegTranscoder(transcoder.DefaultFFmpegConfig())

	transcodeSvc := usecase.NewTranscodeService(
		postgres.NewJobRepository(pgClient.Pool()),
		store,
		tc,
		cache.NewRedisJobCache(redisClient),
		usecase.TranscodeServiceConfig{
			TempDir:         cfg.Worker.TempDir,
			Timeout:         cfg.Worker.TranscodeTimeout,
			TransferTimeout: cfg.Worker.TransferTimeout,
			StaleGrace:      cfg.Worker.StaleGrace,
		},
	)

	// Leftovers from a previous crash: workspaces on disk and jobs stuck in
	// PROCESSING past their deadline.
	removed, err := transcodeSvc.SweepWorkspaces()
	if err != nil {
		logger.Warn("workspace sweep incomplete", slog.Int("removed", removed), slog.String("error", err.Error()))
	} else if removed > 0 {
		logger.Info("removed stale workspaces", slog.Int("removed", removed))
	}
	recovered, err := transcodeSvc.RecoverStale(ctx)
	if err != nil {
		logger.Warn("stale job recovery failed", slog.String("error", err.Error()))
	} else if recovered > 0 {
		logger.Info("failed stale jobs", slog.Int64("count", recovered))
	}

	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Worker.MetricsPort),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// done is closed once the consumer has returned, which happens only after
	// every in-flight handler has finished.
	errCh := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("starting worker, consuming transcode tasks",
			slog.Int("concurrency", cfg.Worker.Concurrency),
		)
		err := queueClient.ConsumeTranscodeTasks(ctx, func(ctx context.Context, task repository.TranscodeTask) error {
			logger.Info("processing task",
				slog.String("job_id", task.JobID.String()),
				slog.String("file_id", task.FileID.String()),
			)
			return transcodeSvc.ProcessTask(ctx, task)
		})
		if err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("consumer error: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	// Stop taking new deliveries. Running jobs are detached from ctx and keep
	// going until they commit or the shutdown deadline passes.
	cancel()

	select {
	case <-done:
		logger.Info("all in-flight tasks completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, unfinished jobs will be failed by stale recovery")
	}

	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("worker stopped")
	return nil
}
