package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	admincontrollers "github.com/angelmondragon/storefront-backend/api/controllers/admin"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/stores"
	stripewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

// Dependencies collects everything the HTTP surface is wired to. Redis,
// WebhookGuard and Gatherer are optional.
type Dependencies struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           db.Pinger
	Redis        *redis.Client
	Gatherer     prometheus.Gatherer
	Stores       stores.Service
	Products     products.Service
	Checkout     checkout.Service
	Orders       orders.Service
	Payments     payments.Service
	Stripe       *stripe.Client
	Webhooks     *stripewebhook.Service
	WebhookGuard *stripewebhook.IdempotencyGuard
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	var idempotencyStore redis.IdempotencyStore
	readiness := map[string]controllers.Pinger{"db": deps.DB}
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
		readiness["redis"] = deps.Redis
	}
	var guard webhookcontrollers.EventGuard
	if deps.WebhookGuard != nil {
		guard = deps.WebhookGuard
	}
	idempotent := middleware.Idempotency(idempotencyStore, logg)

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Post("/webhooks/stripe", webhookcontrollers.StripeWebhook(deps.Webhooks, deps.Stripe, guard, logg))

	r.Route("/stores/{slug}", func(r chi.Router) {
		r.Use(middleware.StoreResolver(deps.Stores, logg))
		r.Get("/", controllers.StoreDetail(logg))
		r.Get("/products", controllers.ListProducts(deps.Products, logg))
		r.Get("/products/{idOrSlug}", controllers.GetProduct(deps.Products, logg))
		r.With(idempotent).Post("/checkout", controllers.CreateCheckout(deps.Checkout, logg))
		r.Post("/orders/confirm", controllers.ConfirmOrder(deps.Orders, logg))
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.Admin.Token, logg))

		r.Get("/stores", admincontrollers.ListStores(deps.Stores, logg))
		r.With(idempotent).Post("/stores", admincontrollers.CreateStore(deps.Stores, logg))

		r.Route("/stores/{storeId}", func(r chi.Router) {
			r.Use(middleware.AdminStoreScope(deps.Stores, logg))
			r.Get("/", admincontrollers.GetStore(logg))
			r.Patch("/", admincontrollers.UpdateStore(deps.Stores, logg))

			r.Route("/products", func(r chi.Router) {
				r.Get("/", admincontrollers.ListProducts(deps.Products, logg))
				r.With(idempotent).Post("/", admincontrollers.CreateProduct(deps.Products, logg))
				r.Get("/{productId}", admincontrollers.GetProduct(deps.Products, logg))
				r.Patch("/{productId}", admincontrollers.UpdateProduct(deps.Products, logg))
				r.Delete("/{productId}", admincontrollers.DeleteProduct(deps.Products, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", admincontrollers.ListOrders(deps.Orders, logg))
				r.Get("/{orderId}", admincontrollers.GetOrder(deps.Orders, logg))
				r.Patch("/{orderId}", admincontrollers.UpdateOrder(deps.Orders, logg))
				r.Delete("/{orderId}", admincontrollers.DeleteOrder(deps.Orders, logg))
			})

			r.Route("/payments", func(r chi.Router) {
				r.Get("/", admincontrollers.ListPayments(deps.Payments, logg))
				r.With(idempotent).Post("/", admincontrollers.CreatePayment(deps.Payments, logg))
				r.Get("/{paymentId}", admincontrollers.GetPayment(deps.Payments, logg))
				r.Patch("/{paymentId}", admincontrollers.UpdatePayment(deps.Payments, logg))
				r.Delete("/{paymentId}", admincontrollers.DeletePayment(deps.Payments, logg))
			})
		})
	})

	return r
}
