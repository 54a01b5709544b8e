package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cardhaus/cardhaus-backend/api/controllers"
	webhookcontrollers "github.com/cardhaus/cardhaus-backend/api/controllers/webhooks"
	"github.com/cardhaus/cardhaus-backend/api/middleware"
	checkoutsvc "github.com/cardhaus/cardhaus-backend/internal/checkout"
	"github.com/cardhaus/cardhaus-backend/internal/notifications"
	"github.com/cardhaus/cardhaus-backend/internal/orders"
	"github.com/cardhaus/cardhaus-backend/internal/settlement"
	stripewebhook "github.com/cardhaus/cardhaus-backend/internal/webhooks/stripe"
	"github.com/cardhaus/cardhaus-backend/pkg/config"
	"github.com/cardhaus/cardhaus-backend/pkg/db"
	"github.com/cardhaus/cardhaus-backend/pkg/logger"
	"github.com/cardhaus/cardhaus-backend/pkg/redis"
	"github.com/cardhaus/cardhaus-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	checkoutService checkoutsvc.Service,
	ordersService orders.Service,
	notificationsService notifications.Service,
	transferLedger settlement.Repository,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))
	})

	// Quote lookups do not require a signed-in buyer.
	r.Get("/api/v1/shipping/quote", controllers.ShippingQuote(logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Post("/checkout", controllers.Checkout(checkoutService, logg))
		r.Post("/checkout/shipping", controllers.CheckoutShipping(checkoutService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(ordersService, logg))
			r.Get("/stored", controllers.ListStoredOrders(ordersService, logg))
			r.Get("/{orderId}", controllers.GetOrder(ordersService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole("admin", logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminListOrders(ordersService, logg))
			r.Get("/{orderId}/transfers", controllers.AdminOrderTransfers(transferLedger, logg))
			r.Post("/{orderId}/ship", controllers.AdminShipOrder(ordersService, logg))
		})
	})

	return r
}
