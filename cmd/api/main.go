package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cardhaus/cardhaus-backend/api/routes"
	"github.com/cardhaus/cardhaus-backend/internal/cards"
	"github.com/cardhaus/cardhaus-backend/internal/checkout"
	"github.com/cardhaus/cardhaus-backend/internal/notifications"
	"github.com/cardhaus/cardhaus-backend/internal/orders"
	"github.com/cardhaus/cardhaus-backend/internal/sellers"
	"github.com/cardhaus/cardhaus-backend/internal/settlement"
	"github.com/cardhaus/cardhaus-backend/internal/shipping"
	stripewebhook "github.com/cardhaus/cardhaus-backend/internal/webhooks/stripe"
	"github.com/cardhaus/cardhaus-backend/pkg/config"
	"github.com/cardhaus/cardhaus-backend/pkg/db"
	"github.com/cardhaus/cardhaus-backend/pkg/logger"
	"github.com/cardhaus/cardhaus-backend/pkg/metrics"
	"github.com/cardhaus/cardhaus-backend/pkg/migrate"
	"github.com/cardhaus/cardhaus-backend/pkg/outbox"
	"github.com/cardhaus/cardhaus-backend/pkg/redis"
	"github.com/cardhaus/cardhaus-backend/pkg/stripe"
)

// Stripe retries events for up to three days; keep markers past that window.
const stripeEventTTL = 7 * 24 * time.Hour

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

	stripeClient, err := stripe.NewClient(context.Background(), cfg.App, cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	ordersRepo := orders.NewRepository(gormDB)
	cardsRepo := cards.NewRepository(gormDB)
	sellersRepo := sellers.NewRepository(gormDB)
	transferLedger := settlement.NewRepository(gormDB)
	notificationsRepo := notifications.NewRepository(gormDB)
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	ordersService, err := orders.NewService(ordersRepo, dbClient, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(
		ordersRepo,
		cardsRepo,
		sellersRepo,
		transferLedger,
		checkout.NewStripeClient(stripeClient),
		stripeClient,
		shipping.NewCalculator(cfg.Shipping),
		dbClient,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notificationsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	orchestrator, err := settlement.NewOrchestrator(
		transferLedger,
		settlement.NewStripeClient(),
		dbClient,
		outboxService,
		metrics.NewSettlementMetrics(prometheus.DefaultRegisterer),
		logg,
		cfg.Settlement,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement orchestrator", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Orders:            ordersService,
		OrdersRepo:        ordersRepo,
		CardsRepo:         cardsRepo,
		Settler:           orchestrator,
		Outbox:            outboxService,
		TransactionRunner: dbClient,
		Metrics:           metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, stripeEventTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			checkoutService,
			ordersService,
			notificationsService,
			transferLedger,
			stripeClient,
			webhookService,
			webhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
