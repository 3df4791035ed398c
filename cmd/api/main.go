package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/omarvaldez/threadline-backend/api/routes"
	"github.com/omarvaldez/threadline-backend/internal/catalog"
	"github.com/omarvaldez/threadline-backend/internal/dashboard"
	"github.com/omarvaldez/threadline-backend/internal/inventory"
	"github.com/omarvaldez/threadline-backend/internal/orders"
	"github.com/omarvaldez/threadline-backend/internal/payments"
	"github.com/omarvaldez/threadline-backend/internal/pricing"
	stripewebhook "github.com/omarvaldez/threadline-backend/internal/webhooks/stripe"
	"github.com/omarvaldez/threadline-backend/pkg/config"
	"github.com/omarvaldez/threadline-backend/pkg/db"
	"github.com/omarvaldez/threadline-backend/pkg/env"
	"github.com/omarvaldez/threadline-backend/pkg/logger"
	"github.com/omarvaldez/threadline-backend/pkg/metrics"
	"github.com/omarvaldez/threadline-backend/pkg/migrate"
	"github.com/omarvaldez/threadline-backend/pkg/redis"
	"github.com/omarvaldez/threadline-backend/pkg/stripe"
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

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	policy, err := pricing.PolicyFromConfig(cfg.Pricing)
	if err != nil {
		logg.Error(context.Background(), "failed to build pricing policy", err)
		os.Exit(1)
	}

	catalogRepo := catalog.NewRepository(dbClient.DB())
	catalogService, err := catalog.NewService(catalogRepo, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	dashboardService, err := dashboard.NewService(dashboard.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create dashboard service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		catalogRepo,
		inventory.NewAllocator(dbClient.DB()),
		dbClient,
		policy,
		cfg.Orders,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(ordersService, payments.NewStripeClient(stripeClient), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Ledger:  ordersService,
		Logger:  logg,
		Metrics: metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookDedupe, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Orders.WebhookDedupTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook dedup guard", err)
		os.Exit(1)
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Catalog:       catalogService,
			Dashboard:     dashboardService,
			Orders:        ordersService,
			Payments:      paymentsService,
			Stripe:        stripeClient,
			WebhookSvc:    webhookService,
			WebhookDedupe: webhookDedupe,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
