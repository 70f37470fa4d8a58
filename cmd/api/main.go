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
	"golang.org/x/sync/errgroup"

	"github.com/entrega-app/entrega-backend/api/routes"
	"github.com/entrega-app/entrega-backend/internal/dispatch"
	"github.com/entrega-app/entrega-backend/internal/idempotency"
	"github.com/entrega-app/entrega-backend/internal/notifications"
	"github.com/entrega-app/entrega-backend/internal/orders"
	"github.com/entrega-app/entrega-backend/internal/products"
	"github.com/entrega-app/entrega-backend/internal/stores"
	"github.com/entrega-app/entrega-backend/internal/users"
	"github.com/entrega-app/entrega-backend/pkg/cache"
	"github.com/entrega-app/entrega-backend/pkg/config"
	"github.com/entrega-app/entrega-backend/pkg/db"
	"github.com/entrega-app/entrega-backend/pkg/logger"
	"github.com/entrega-app/entrega-backend/pkg/pubsub"
	"github.com/entrega-app/entrega-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	orderRepo := orders.NewRepository(dbClient.DB())

	guard, err := idempotency.NewGuard(idempotency.GuardParams{
		Store:  idempotency.NewStore(dbClient.DB()),
		Logger: logg,
		TTL:    cfg.Idempotency.TTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency guard", err)
		os.Exit(1)
	}

	composer, err := orders.NewComposer(orderRepo, dbClient, cacheLayer, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order composer", err)
		os.Exit(1)
	}

	state, err := orders.NewStateMachine(orderRepo, dbClient, cacheLayer, notifier, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order state machine", err)
		os.Exit(1)
	}

	storeSvc, err := stores.NewService(stores.NewRepository(dbClient.DB()), cacheLayer, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create store service", err)
		os.Exit(1)
	}

	reader, err := orders.NewReader(orderRepo, storeSvc, cacheLayer, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order reader", err)
		os.Exit(1)
	}

	coordinator, err := dispatch.NewCoordinator(dispatch.Params{
		Repo:             orderRepo,
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

	userSvc, err := users.NewService(users.NewRepository(dbClient.DB()), cacheLayer, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create user service", err)
		os.Exit(1)
	}

	productSvc, err := products.NewService(products.NewRepository(dbClient.DB()), dbClient, cacheLayer, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Guard:    guard,
			Composer: composer,
			State:    state,
			Reader:   reader,
			Dispatch: coordinator,
			Users:    userSvc,
			Stores:   storeSvc,
			Products: productSvc,
		}),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
