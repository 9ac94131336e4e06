package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tajerhq/tajer-backend/api/controllers"
	"github.com/tajerhq/tajer-backend/api/middleware"
	"github.com/tajerhq/tajer-backend/internal/cart"
	"github.com/tajerhq/tajer-backend/internal/catalog"
	"github.com/tajerhq/tajer-backend/internal/coupons"
	"github.com/tajerhq/tajer-backend/internal/orders"
	"github.com/tajerhq/tajer-backend/pkg/cache"
	"github.com/tajerhq/tajer-backend/pkg/config"
	"github.com/tajerhq/tajer-backend/pkg/db"
	"github.com/tajerhq/tajer-backend/pkg/logger"
)

// NewRouter wires the HTTP surface over the domain services.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	cacheP cache.Pinger,
	catalogService catalog.Service,
	couponService coupons.Service,
	cartService cart.Service,
	orderService orders.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, cacheP))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.CreateProduct(catalogService, logg))
			r.Get("/{productId}", controllers.ProductDetail(catalogService, logg))
			r.Get("/sku/{sku}", controllers.ProductBySKU(catalogService, logg))
			r.Post("/{productId}/stock", controllers.AddStock(catalogService, logg))
		})

		r.Route("/coupons", func(r chi.Router) {
			r.Post("/", controllers.CreateCoupon(couponService, logg))
			r.Get("/{code}", controllers.CouponByCode(couponService, logg))
		})

		r.Route("/carts", func(r chi.Router) {
			r.Post("/", controllers.OpenCart(cartService, logg))
			r.Route("/{cartId}", func(r chi.Router) {
				r.Get("/", controllers.CartDetail(cartService, logg))
				r.Post("/items", controllers.AddCartItem(cartService, logg))
				r.Put("/items/{productId}", controllers.UpdateCartItem(cartService, logg))
				r.Delete("/items/{productId}", controllers.RemoveCartItem(cartService, logg))
				r.Post("/coupons", controllers.ApplyCoupon(cartService, logg))
				r.Delete("/coupons/{code}", controllers.RemoveCoupon(cartService, logg))
				r.Get("/stock", controllers.ValidateCartStock(cartService, logg))
				r.Post("/merge", controllers.MergeCarts(cartService, logg))
			})
		})

		r.Post("/checkout", controllers.Checkout(orderService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(orderService, logg))
			r.Get("/number/{orderNumber}", controllers.OrderByNumber(orderService, logg))
			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", controllers.OrderDetail(orderService, logg))
				r.Post("/confirm", controllers.OrderTransition(orderService, logg, "confirm"))
				r.Post("/process", controllers.OrderTransition(orderService, logg, "process"))
				r.Post("/ship", controllers.ShipOrder(orderService, logg))
				r.Post("/deliver", controllers.OrderTransition(orderService, logg, "deliver"))
				r.Post("/cancel", controllers.OrderTransition(orderService, logg, "cancel"))
				r.Post("/refund", controllers.OrderTransition(orderService, logg, "refund"))
				r.Post("/payments", controllers.RecordPayment(orderService, logg))
				r.Post("/payments/fail", controllers.FailPayment(orderService, logg))
			})
		})
	})

	return r
}
