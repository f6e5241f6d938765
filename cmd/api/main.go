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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/zzkuner/fileonline/internal/api"
	"github.com/zzkuner/fileonline/internal/api/handler"
	"github.com/zzkuner/fileonline/internal/capability"
	"github.com/zzkuner/fileonline/internal/config"
	"github.com/zzkuner/fileonline/internal/delivery"
	"github.com/zzkuner/fileonline/internal/domain/repository"
	"github.com/zzkuner/fileonline/internal/infrastructure/cache"
	"github.com/zzkuner/fileonline/internal/infrastructure/postgres"
	"github.com/zzkuner/fileonline/internal/infrastructure/queue"
	"github.com/zzkuner/fileonline/internal/infrastructure/settings"
	"github.com/zzkuner/fileonline/internal/infrastructure/storage"
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

	pgClient, err := postgres.NewClient(ctx, postgres.DefaultClientConfig(cfg.Database.DSN(), "fileonline-api"))
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

	queueClient, err := queue.NewClient(ctx, queue.DefaultClientConfig(cfg.RabbitMQ.URL()))
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer queueClient.Close()
	logger.Info("connected to RabbitMQ")

	signer, err := capability.New(cfg.Signing.Secret, cfg.Storage.PublicBaseURL,
		capability.WithDenylist(cache.NewRedisDenylist(redisClient)),
	)
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

	jobRepo := postgres.NewJobRepository(pgClient.Pool())
	fileSvc := usecase.NewCachedFileService(
		usecase.NewFileService(jobRepo, store, queueClient, signer, usecase.FileServiceConfig{
			DefaultLinkTTL: cfg.Signing.DefaultTTL,
			MaxLinkTTL:     cfg.Signing.MaxTTL,
		}),
		cache.NewRedisJobCache(redisClient),
		usecase.CachedFileServiceConfig{StatusTTL: cfg.Server.StatusCacheTTL},
	)

	gateway := delivery.New(store, signer, delivery.Config{
		PresignTTL:            cfg.Server.PresignedTTL,
		UpstreamHeaderTimeout: cfg.Server.UpstreamTimeout,
	})

	if cfg.Server.APIKey == "" {
		logger.Warn("API_KEY is not set, the /v1 API rejects every request")
	}

	r := api.NewRouter(logger, gateway, fileSvc, api.RouterConfig{
		APIKey:         cfg.Server.APIKey,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		ReadyChecks: map[string]handler.Check{
			"postgres": pgClient.Ping,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
