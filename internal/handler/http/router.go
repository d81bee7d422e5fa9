package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/furnishop/internal/domain"
	"github.com/utafrali/furnishop/internal/service"
	"github.com/utafrali/furnishop/pkg/health"
	"github.com/utafrali/furnishop/pkg/middleware"
)

const serviceName = "furnishop"

// RouterConfig carries everything NewRouter mounts.
type RouterConfig struct {
	Catalog  *service.CatalogService
	Cart     *service.CartService
	Checkout *service.CheckoutService
	Contact  *service.ContactService
	Orders   *service.OrderService
	Auth     *service.AuthService

	// TokenValidator guards the admin order endpoints.
	TokenValidator middleware.TokenValidator

	// SubmitLimiter throttles checkout, contact and admin login per client IP.
	// Nil disables throttling.
	SubmitLimiter *middleware.RateLimiter

	Session    SessionConfig
	CORS       middleware.CORSConfig
	Health     *health.Handler
	PprofCIDRs []string
	Logger     *slog.Logger
}

// NewRouter creates a chi router with all shop routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.LivenessHandler())
		r.Get("/health/ready", cfg.Health.ReadinessHandler())
	}
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	throttle := func(next http.Handler) http.Handler {
		if cfg.SubmitLimiter == nil {
			return next
		}
		return cfg.SubmitLimiter.Middleware(next)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		if cfg.Catalog != nil {
			catalogHandler := NewCatalogHandler(cfg.Catalog, logger)
			r.Get("/products", catalogHandler.ListProducts)
			r.Get("/categories", catalogHandler.ListCategories)
		}

		if cfg.Cart != nil {
			cartHandler := NewCartHandler(cfg.Cart, logger)
			r.Route("/cart", func(r chi.Router) {
				r.Use(CartSession(cfg.Session))

				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)

				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{productId}", cartHandler.UpdateItemQuantity)
				r.Delete("/items/{productId}", cartHandler.RemoveItem)
			})
		}

		if cfg.Checkout != nil {
			checkoutHandler := NewCheckoutHandler(cfg.Checkout, logger)
			r.With(throttle, CartSession(cfg.Session)).Post("/checkout", checkoutHandler.Submit)
		}

		if cfg.Contact != nil {
			contactHandler := NewContactHandler(cfg.Contact, logger)
			r.With(throttle).Post("/contact", contactHandler.Submit)
		}

		if cfg.Auth != nil && cfg.Orders != nil {
			adminHandler := NewAdminHandler(cfg.Auth, cfg.Orders, logger)
			r.Route("/admin", func(r chi.Router) {
				r.With(throttle).Post("/login", adminHandler.Login)

				r.Group(func(r chi.Router) {
					r.Use(middleware.Auth(cfg.TokenValidator))
					r.Use(middleware.RequireRole(domain.RoleAdmin))

					r.Get("/orders", adminHandler.ListOrders)
					r.Get("/orders/{id}", adminHandler.GetOrder)
					r.Patch("/orders/{id}/status", adminHandler.UpdateOrderStatus)
				})
			})
		}
	})

	return r
}
