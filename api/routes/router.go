package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/norwoodlabs/storefront-gateway/api/controllers"
	"github.com/norwoodlabs/storefront-gateway/api/middleware"
	cartsvc "github.com/norwoodlabs/storefront-gateway/internal/cart"
	checkoutsvc "github.com/norwoodlabs/storefront-gateway/internal/checkout"
	"github.com/norwoodlabs/storefront-gateway/internal/journal"
	ordersvc "github.com/norwoodlabs/storefront-gateway/internal/orders"
	paymentsvc "github.com/norwoodlabs/storefront-gateway/internal/payments"
	"github.com/norwoodlabs/storefront-gateway/internal/reconcile"
	"github.com/norwoodlabs/storefront-gateway/pkg/config"
	"github.com/norwoodlabs/storefront-gateway/pkg/logger"
	pkgredis "github.com/norwoodlabs/storefront-gateway/pkg/redis"
)

// Deps gathers everything the router mounts. The redis client serves double
// duty as readiness pinger and idempotency store; either may be nil in tests.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	Redis     *pkgredis.Client
	Registry  *prometheus.Registry
	Cart      cartsvc.Service
	Orders    ordersvc.Service
	Payments  paymentsvc.Service
	Checkout  checkoutsvc.Service
	Reconcile reconcile.Service
	Journal   journal.Reader
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(d.Logger),
		middleware.RequestID(d.Logger),
		middleware.Logging(d.Logger),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(d.Config))
		r.Get("/ready", controllers.HealthReady(d.Config, d.Logger, readyPinger(d.Redis)))
	})

	if d.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Use(middleware.CORS(d.Config.CORS))
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			middleware.CORS(d.Config.CORS),
			middleware.Auth(d.Config.JWT, d.Logger),
			middleware.Idempotency(idempotencyStore(d.Redis), d.Logger),
		)

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(d.Cart, d.Logger))
			r.Post("/items", controllers.CartAddItem(d.Cart, d.Logger))
			r.Patch("/items/{itemId}", controllers.CartUpdateItem(d.Cart, d.Logger))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(d.Cart, d.Logger))
			r.Delete("/", controllers.CartClear(d.Cart, d.Logger))
		})

		r.Post("/checkout", controllers.CheckoutPlaceOrder(d.Checkout, d.Logger))
		r.Post("/checkout/paypal/approve", controllers.CheckoutPayPalApprove(d.Checkout, d.Logger))
		r.Get("/checkout/success", controllers.CheckoutSuccess(d.Reconcile, d.Logger))
		r.Get("/checkout/cancel", controllers.CheckoutCancel(d.Checkout, d.Logger))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(d.Orders, d.Logger))
			r.Get("/{orderId}", controllers.OrdersGet(d.Orders, d.Logger))
			r.Post("/{orderId}/cancel", controllers.OrdersCancel(d.Orders, d.Logger))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Get("/config", controllers.PaymentsConfig(d.Payments, d.Logger))
			r.Get("/order/{orderId}", controllers.PaymentsByOrder(d.Payments, d.Logger))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(
			middleware.Auth(d.Config.JWT, d.Logger),
			middleware.RequireRole("admin", d.Logger),
		)

		r.Get("/ping", controllers.AdminPing())

		r.Route("/v1/discrepancies", func(r chi.Router) {
			r.Get("/", controllers.AdminDiscrepancies(d.Journal, d.Logger))
			r.Get("/orders/{orderId}", controllers.AdminOrderDiscrepancyCount(d.Journal, d.Logger))
		})
	})

	return r
}

func readyPinger(client *pkgredis.Client) pkgredis.Pinger {
	if client == nil {
		return nil
	}
	return client
}

func idempotencyStore(client *pkgredis.Client) pkgredis.IdempotencyStore {
	if client == nil {
		return nil
	}
	return client
}
