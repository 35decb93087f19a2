package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/giftcart/pkg/auth"
	"github.com/utafrali/giftcart/pkg/health"
	"github.com/utafrali/giftcart/pkg/middleware"
	"github.com/utafrali/giftcart/services/cart/internal/service"
)

// RouterConfig holds the HTTP-level policies of the cart API.
type RouterConfig struct {
	RateLimit  middleware.RateLimitConfig
	CORS       middleware.CORSConfig
	PprofCIDRs []string
}

// NewRouter creates a chi router with all cart service routes registered.
// ctx bounds background work started by middleware such as the rate
// limiter's eviction loop.
func NewRouter(
	ctx context.Context,
	cartService *service.CartService,
	healthHandler *health.Handler,
	tokens middleware.TokenValidator,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("cart"))
	r.Use(middleware.Tracing("cart"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	// Cart API endpoints
	cartHandler := NewCartHandler(cartService, logger)

	r.Route("/api/cart", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(requireJSON)
		r.Use(middleware.Auth(tokens))
		r.Use(middleware.RateLimit(ctx, cfg.RateLimit, logger))

		r.Get("/", cartHandler.GetCart)
		r.Post("/", cartHandler.AddItem)
		r.Delete("/", cartHandler.ClearCart)

		r.Delete("/cleanup/expired", cartHandler.CleanupExpired)

		r.Put("/{giftCardId}", cartHandler.UpdateItem)
		r.Delete("/{giftCardId}", cartHandler.RemoveItem)

		r.With(middleware.RequireRole(auth.RoleAdmin)).Delete("/user/{userId}", cartHandler.ClearUserCart)
	})

	return r
}
