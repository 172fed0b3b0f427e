package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fundacjapwm/paw-aid-cart/internal/engine"
	"github.com/fundacjapwm/paw-aid-cart/pkg/health"
	"github.com/fundacjapwm/paw-aid-cart/pkg/middleware"
)

// NewRouter creates a chi router with all cart service routes registered.
func NewRouter(
	manager *engine.Manager,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("cart"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	// Cart API endpoints
	cartHandler := NewCartHandler(manager, logger)

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(SessionIDFromHeader)

		r.Get("/", cartHandler.GetCart)
		r.Delete("/", cartHandler.ClearCart)

		r.Post("/lines", cartHandler.AddLine)
		r.Post("/lines/bulk", cartHandler.BulkAddLines)
		r.Put("/lines/{productId}", cartHandler.UpdateLineQuantity)
		r.Delete("/lines/{productId}", cartHandler.RemoveLine)

		r.Delete("/groups/{groupId}", cartHandler.RemoveGroup)
		r.Get("/groups/{groupId}/added", cartHandler.GroupAddedStatus)
		r.Post("/groups/{groupId}/added", cartHandler.MarkGroupAdded)

		r.Post("/checkout", cartHandler.Checkout)

		r.Post("/identity", cartHandler.SetIdentity)
		r.Delete("/identity", cartHandler.ClearIdentity)
	})

	return r
}
