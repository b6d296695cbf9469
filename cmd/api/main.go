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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/orderdesk-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/orderdesk-backend/api/controllers/orders"
	"github.com/angelmondragon/orderdesk-backend/api/routes"
	"github.com/angelmondragon/orderdesk-backend/internal/cartrules"
	"github.com/angelmondragon/orderdesk-backend/internal/catalog"
	"github.com/angelmondragon/orderdesk-backend/internal/deferred"
	"github.com/angelmondragon/orderdesk-backend/internal/orders"
	"github.com/angelmondragon/orderdesk-backend/internal/pricing"
	"github.com/angelmondragon/orderdesk-backend/internal/shipping"
	"github.com/angelmondragon/orderdesk-backend/internal/tax"
	"github.com/angelmondragon/orderdesk-backend/pkg/config"
	"github.com/angelmondragon/orderdesk-backend/pkg/db"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
	"github.com/angelmondragon/orderdesk-backend/pkg/metrics"
	"github.com/angelmondragon/orderdesk-backend/pkg/migrate"
	"github.com/angelmondragon/orderdesk-backend/pkg/redis"
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

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	repo := orders.NewRepository(dbClient.DB())

	var (
		store       deferred.Store
		redisPinger controllers.Pinger
		locker      ordercontrollers.Locker
	)
	if cfg.FeatureFlags.UseRedisSessions() {
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
		store = deferred.NewRedisStore(redisClient, cfg.Pricing.SessionTTL)
		redisPinger = redisClient
		locker = redisClient
	} else {
		logg.Warn(context.Background(), "edit sessions kept in memory, run a single api instance")
		store = deferred.NewMemoryStore(cfg.Pricing.SessionTTL)
	}

	sessions, err := deferred.NewService(deferred.ServiceParams{
		Store:    store,
		Items:    repo,
		Products: repo,
		Pricer:   catalog.NewPricing(),
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create deferred session service", err)
		os.Exit(1)
	}

	rates, err := cfg.Pricing.Rates()
	if err != nil {
		logg.Error(context.Background(), "invalid tax rates", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pricingService, err := pricing.NewService(pricing.ServiceParams{
		Tx:       dbClient,
		Repo:     repo,
		Sessions: sessions,
		Shipping: shipping.NewTableProvider(repo),
		Tax:      tax.NewRateTable(rates, cfg.Pricing.TaxBucket, cfg.Pricing.ShippingTaxable),
		Rules:    cartrules.NewCouponEngine(repo),
		Logger:   logg,
		Metrics:  metrics.NewPricingMetrics(registry),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pricing service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":            cfg.App.Env,
		"addr":           addr,
		"deferred_store": cfg.FeatureFlags.DeferredStore,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisPinger, registry, ordercontrollers.Deps{
			Pricing:  pricingService,
			Sessions: sessions,
			Items:    repo,
			Locker:   locker,
			LockTTL:  cfg.Pricing.SaveLockTTL,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stop:
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}
