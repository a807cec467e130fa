package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/leftcoastfs/bridge-backend/internal/cron"
	"github.com/leftcoastfs/bridge-backend/internal/directory"
	"github.com/leftcoastfs/bridge-backend/pkg/books"
	"github.com/leftcoastfs/bridge-backend/pkg/config"
	"github.com/leftcoastfs/bridge-backend/pkg/db"
	"github.com/leftcoastfs/bridge-backend/pkg/logger"
	"github.com/leftcoastfs/bridge-backend/pkg/metrics"
	"github.com/leftcoastfs/bridge-backend/pkg/migrate"
	"github.com/leftcoastfs/bridge-backend/pkg/redis"
)

const lockKeyFormat = "bridge:cron-worker:lock:%s"

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient))

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer redisClient.Close()

	booksClient, err := books.NewClient(context.Background(), cfg.Books, logg)
	requireResource(ctx, logg, "books client", err)

	directoryService, err := directory.NewService(directory.ServiceParams{
		Repo: directory.NewRepository(dbClient.DB()),
	})
	requireResource(ctx, logg, "directory service", err)

	tokenRefreshJob, err := cron.NewTokenRefreshJob(cron.TokenRefreshJobParams{
		Books:     booksClient,
		Directory: directoryService,
		Logger:    logg,
	})
	requireResource(ctx, logg, "token refresh job", err)

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	requireResource(ctx, logg, "cron lock", err)

	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(tokenRefreshJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Cron.Interval,
	})
	requireResource(ctx, logg, "cron service", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"env":         cfg.App.Env,
	})
	logg.Info(runCtx, "cron worker ready")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "cron worker not working", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
