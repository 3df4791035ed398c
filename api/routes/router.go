package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omarvaldez/threadline-backend/api/controllers"
	webhookcontrollers "github.com/omarvaldez/threadline-backend/api/controllers/webhooks"
	"github.com/omarvaldez/threadline-backend/api/middleware"
	"github.com/omarvaldez/threadline-backend/internal/catalog"
	"github.com/omarvaldez/threadline-backend/internal/dashboard"
	"github.com/omarvaldez/threadline-backend/internal/orders"
	"github.com/omarvaldez/threadline-backend/internal/payments"
	stripewebhook "github.com/omarvaldez/threadline-backend/internal/webhooks/stripe"
	"github.com/omarvaldez/threadline-backend/pkg/config"
	"github.com/omarvaldez/threadline-backend/pkg/db"
	"github.com/omarvaldez/threadline-backend/pkg/enums"
	"github.com/omarvaldez/threadline-backend/pkg/logger"
	"github.com/omarvaldez/threadline-backend/pkg/redis"
	"github.com/omarvaldez/threadline-backend/pkg/stripe"
)

// RouterParams collects everything the HTTP surface depends on.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         *redis.Client
	Catalog       catalog.Service
	Dashboard     dashboard.Service
	Orders        orders.Service
	Payments      payments.Service
	Stripe        *stripe.Client
	WebhookSvc    *stripewebhook.Service
	WebhookDedupe *stripewebhook.IdempotencyGuard
}

// NewRouter assembles the storefront API: public catalog, authenticated
// customer orders and payments, the staff surface, and the gateway webhook.
func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.WebhookSvc, p.Stripe, p.WebhookDedupe, logg))
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(p.Catalog, logg))
		r.Get("/{idOrSlug}", controllers.GetProduct(p.Catalog, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(p.Redis, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(p.Orders, logg))
			r.Get("/", controllers.ListOrders(p.Orders, logg))
			r.Get("/{orderID}", controllers.GetOrder(p.Orders, logg))
			r.Post("/{orderID}/payments/intent", controllers.CreatePaymentIntent(p.Payments, logg))
			r.Post("/{orderID}/payments/confirm", controllers.ConfirmPayment(p.Payments, logg))
		})

		r.Get("/payments/methods", controllers.ListPaymentMethods(p.Payments, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
		r.Use(middleware.Idempotency(p.Redis, logg))

		r.Get("/dashboard", controllers.AdminDashboard(p.Dashboard, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.AdminListProducts(p.Catalog, logg))
			r.Post("/", controllers.AdminCreateProduct(p.Catalog, logg))
			r.Get("/{productID}", controllers.AdminGetProduct(p.Catalog, logg))
			r.Patch("/{productID}", controllers.AdminUpdateProduct(p.Catalog, logg))
			r.Delete("/{productID}", controllers.AdminDeleteProduct(p.Catalog, logg))
			r.Put("/{productID}/pricing", controllers.AdminUpdatePricing(p.Catalog, logg))
			r.Post("/{productID}/stock", controllers.AdminRestock(p.Catalog, logg))
			r.Put("/{productID}/active", controllers.AdminSetActive(p.Catalog, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminListOrders(p.Orders, logg))
			r.Put("/{orderID}/status", controllers.AdminUpdateOrderStatus(p.Orders, logg))
		})
	})

	return r
}
