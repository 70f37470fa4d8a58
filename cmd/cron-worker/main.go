package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/entrega-app/entrega-backend/internal/cron"
	"github.com/entrega-app/entrega-backend/internal/dispatch"
	"github.com/entrega-app/entrega-backend/internal/idempotency"
	"github.com/entrega-app/entrega-backend/internal/notifications"
	"github.com/entrega-app/entrega-backend/internal/orders"
	"github.com/entrega-app/entrega-backend/pkg/cache"
	"github.com/entrega-app/entrega-backend/pkg/config"
	"github.com/entrega-app/entrega-backend/pkg/db"
	"github.com/entrega-app/entrega-backend/pkg/logger"
	"github.com/entrega-app/entrega-backend/pkg/metrics"
	"github.com/entrega-app/entrega-backend/pkg/pubsub"
	"github.com/entrega-app/entrega-backend/pkg/redis"
)

const metricsShutdownTimeout = 5 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	var notifier notifications.Notifier = notifications.NewLogNotifier(logg)
	if cfg.PubSub.Enabled() {
		psClient, err := pubsub.NewClient(context.Background(), cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := psClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		notifier = notifications.NewPubSubNotifier(psClient.OrderEventsPublisher(), logg)
	}

	cacheLayer := cache.New(redisClient, logg, cfg.Cache)

	coordinator, err := dispatch.NewCoordinator(dispatch.Params{
		Repo:             orders.NewRepository(dbClient.DB()),
		Tx:               dbClient,
		Cache:            cacheLayer,
		Notifier:         notifier,
		Logger:           logg,
		AssignmentExpiry: cfg.Dispatch.AssignmentExpiry,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch coordinator", err)
		os.Exit(1)
	}

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)

	reclaimJob, err := cron.NewReclaimAssignmentsJob(cron.ReclaimAssignmentsJobParams{
		Logger:    logg,
		Reclaimer: coordinator,
		Metrics:   jobMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reclaim job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewIdempotencyRetentionJob(cron.IdempotencyRetentionJobParams{
		Logger:    logg,
		Store:     idempotency.NewStore(dbClient.DB()),
		Retention: cfg.Idempotency.Retention,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cfg.Cron.LockKey), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(reclaimJob, retentionJob),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting cron worker")

	// The worker is its own deployment, so it reuses the app port for the
	// metrics listener.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: ":" + cfg.App.Port, Handler: mux}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := service.Run(gctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}
