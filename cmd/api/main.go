package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/norwoodlabs/storefront-gateway/api/routes"
	cartsvc "github.com/norwoodlabs/storefront-gateway/internal/cart"
	checkoutsvc "github.com/norwoodlabs/storefront-gateway/internal/checkout"
	"github.com/norwoodlabs/storefront-gateway/internal/journal"
	ordersvc "github.com/norwoodlabs/storefront-gateway/internal/orders"
	paymentsvc "github.com/norwoodlabs/storefront-gateway/internal/payments"
	"github.com/norwoodlabs/storefront-gateway/internal/reconcile"
	"github.com/norwoodlabs/storefront-gateway/pkg/commerce"
	"github.com/norwoodlabs/storefront-gateway/pkg/config"
	"github.com/norwoodlabs/storefront-gateway/pkg/logger"
	"github.com/norwoodlabs/storefront-gateway/pkg/metrics"
	"github.com/norwoodlabs/storefront-gateway/pkg/paypal"
	"github.com/norwoodlabs/storefront-gateway/pkg/redis"
	"github.com/norwoodlabs/storefront-gateway/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "gateway"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "gateway",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

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

	discrepancyJournal, err := journal.Open(cfg.Journal, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to open discrepancy journal", err)
		os.Exit(1)
	}

	commerceClient, err := commerce.NewClient(cfg.Commerce, logg, checkoutMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to build commerce client", err)
		os.Exit(1)
	}

	// Direct provider clients are optional: without credentials the gateway
	// still runs, it just loses the degraded-mode fallbacks.
	var stripeVerifier checkoutsvc.SessionVerifier
	if cfg.Stripe.APIKey != "" {
		stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to build stripe client", err)
			os.Exit(1)
		}
		stripeVerifier = stripeClient
	} else {
		logg.Warn(context.Background(), "stripe credentials absent, session verification disabled")
	}

	var paypalMinter paymentsvc.ProviderOrderMinter
	var paypalCapturer checkoutsvc.OrderCapturer
	if cfg.PayPal.ClientID != "" {
		paypalClient, err := paypal.NewClient(context.Background(), cfg.PayPal, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to build paypal client", err)
			os.Exit(1)
		}
		paypalMinter = paypalClient
		paypalCapturer = paypalClient
	} else {
		logg.Warn(context.Background(), "paypal credentials absent, direct creation will synthesize placeholders")
	}

	cartService, err := cartsvc.NewService(commerceClient, cfg.Pricing, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build cart service", err)
		os.Exit(1)
	}

	ordersService, err := ordersvc.NewService(commerceClient, cartService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build orders service", err)
		os.Exit(1)
	}

	paymentsService, err := paymentsvc.NewService(
		commerceClient, paypalMinter, redisClient,
		cfg.Checkout, cfg.Stripe, cfg.PayPal,
		checkoutMetrics, logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to build payments service", err)
		os.Exit(1)
	}

	adapterRegistry, err := checkoutsvc.NewRegistry(
		checkoutsvc.NewStripeAdapter(paymentsService, stripeVerifier, logg),
		checkoutsvc.NewPayPalAdapter(commerceClient, paymentsService, paypalCapturer, discrepancyJournal, logg),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to build adapter registry", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(adapterRegistry, ordersService, cartService, checkoutMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build checkout service", err)
		os.Exit(1)
	}

	reconcileService, err := reconcile.NewService(
		checkoutService, cartService, paymentsService, commerceClient,
		redisClient, discrepancyJournal, checkoutMetrics, logg,
		cfg.Checkout.SessionTTL,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to build reconcile service", err)
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
	logg.Info(ctx, "starting checkout gateway")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:    cfg,
			Logger:    logg,
			Redis:     redisClient,
			Registry:  registry,
			Cart:      cartService,
			Orders:    ordersService,
			Payments:  paymentsService,
			Checkout:  checkoutService,
			Reconcile: reconcileService,
			Journal:   discrepancyJournal,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "gateway stopped unexpectedly", err)
		os.Exit(1)
	}
}
