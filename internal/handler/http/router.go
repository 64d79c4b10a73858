package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/review-service/internal/service"
	"github.com/utafrali/review-service/pkg/health"
	"github.com/utafrali/review-service/pkg/middleware"
)

// NewRouter creates a chi router with all review service routes registered.
func NewRouter(
	reviewService *service.ReviewService,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("review"))
	r.Use(middleware.RequestLogger(logger))
	r.Use(CORS)

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	reviewHandler := NewReviewHandler(reviewService, logger)
	statsHandler := NewStatsHandler(reviewService, logger)

	// Admin API endpoints
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Route("/reviews", func(r chi.Router) {
			r.Post("/", reviewHandler.CreateReview)
			r.Post("/bulk", reviewHandler.BulkCreateReviews)
			r.Get("/", reviewHandler.ListReviews)
			r.Get("/{id}", reviewHandler.GetReview)
			r.Put("/{id}/status", reviewHandler.UpdateReviewStatus)
			r.Post("/{id}/response", reviewHandler.RespondToReview)
			r.Delete("/{id}", reviewHandler.DeleteReview)
		})

		r.Route("/review-stats", func(r chi.Router) {
			r.Get("/", statsHandler.ListStats)
			r.Post("/refresh", statsHandler.RefreshStats)
		})
	})

	// Store API endpoints
	r.Route("/api/v1/products/{product_id}", func(r chi.Router) {
		r.Get("/reviews", reviewHandler.ListProductReviews)
		r.Get("/review-stats", statsHandler.GetProductStats)
	})

	return r
}
