package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tajerhq/tajer-backend/api/routes"
	"github.com/tajerhq/tajer-backend/internal/cart"
	"github.com/tajerhq/tajer-backend/internal/catalog"
	"github.com/tajerhq/tajer-backend/internal/coupons"
	"github.com/tajerhq/tajer-backend/internal/cron"
	"github.com/tajerhq/tajer-backend/internal/orders"
	"github.com/tajerhq/tajer-backend/pkg/cache"
	"github.com/tajerhq/tajer-backend/pkg/config"
	"github.com/tajerhq/tajer-backend/pkg/db"
	"github.com/tajerhq/tajer-backend/pkg/env"
	"github.com/tajerhq/tajer-backend/pkg/logger"
	"github.com/tajerhq/tajer-backend/pkg/metrics"
	"github.com/tajerhq/tajer-backend/pkg/migrate"
)

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

	redisClient, err := cache.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	invalidator := cache.NewInvalidator(redisClient, logg)

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	orderRepo := orders.NewRepository(dbClient.DB())

	couponService, err := coupons.NewService(coupons.NewRepository(dbClient.DB()), orderRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create coupon service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(
		cart.NewRepository(dbClient.DB()),
		catalogService,
		couponService,
		dbClient,
		cfg.Pricing,
		cfg.Carts.TTL,
		invalidator,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	orderService, err := orders.NewService(
		orderRepo,
		cartService,
		catalogService,
		couponService,
		dbClient,
		cfg.Pricing,
		invalidator,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCartSweeper(ctx, cfg, logg, redisClient, cartService)

	port := env.Get("PORT", cfg.App.Port)
	addr := ":" + port
	serveCtx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(serveCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg, logg, dbClient, redisClient,
			catalogService, couponService, cartService, orderService,
		),
	}

	go func() {
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			logg.Error(serveCtx, "server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(serveCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(serveCtx, "api server stopped")
}

// startCartSweeper runs the cart expiry sweep in the background so stale
// carts release their stock holds without operator action.
func startCartSweeper(ctx context.Context, cfg *config.Config, logg *logger.Logger, redisClient *cache.Client, cartService cart.Service) {
	job, err := cron.NewCartExpiryJob(cartService, logg)
	if err != nil {
		logg.Error(ctx, "failed to create cart expiry job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, "tajer:lock:cart_expiry", cfg.Carts.SweepInterval*2)
	if err != nil {
		logg.Error(ctx, "failed to create sweep lock", err)
		os.Exit(1)
	}

	sweeper, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(job),
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Carts.SweepInterval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create sweep loop", err)
		os.Exit(1)
	}

	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "cart sweep loop stopped", err)
		}
	}()
}
