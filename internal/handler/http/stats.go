package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/review-service/internal/repository"
	"github.com/utafrali/review-service/internal/service"
	"github.com/utafrali/review-service/pkg/httputil"
	"github.com/utafrali/review-service/pkg/validator"
)

// StatsHandler handles HTTP requests for review stats endpoints.
type StatsHandler struct {
	service *service.ReviewService
	logger  *slog.Logger
}

// NewStatsHandler creates a new stats HTTP handler.
func NewStatsHandler(svc *service.ReviewService, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		service: svc,
		logger:  logger,
	}
}

// RefreshStatsRequest is the JSON request body for a manual stats refresh.
type RefreshStatsRequest struct {
	ProductIDs []string `json:"product_ids" validate:"required,min=1,dive,required"`
}

// GetProductStats handles GET /api/v1/products/{product_id}/review-stats
func (h *StatsHandler) GetProductStats(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "product id is required"},
		})
		return
	}

	stats, err := h.service.GetStats(r.Context(), productID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: stats})
}

// ListStats handles GET /api/v1/admin/review-stats
func (h *StatsHandler) ListStats(w http.ResponseWriter, r *http.Request) {
	filter := repository.StatsFilter{
		Page:    1,
		PerPage: 20,
	}

	page, perPage, ok := parsePagination(w, r)
	if !ok {
		return
	}
	filter.Page = page
	filter.PerPage = perPage

	if v := r.URL.Query().Get("product_id"); v != "" {
		filter.ProductID = &v
	}

	stats, total, err := h.service.ListStats(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(stats, total, filter.Page, filter.PerPage))
}

// RefreshStats handles POST /api/v1/admin/review-stats/refresh
func (h *StatsHandler) RefreshStats(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req RefreshStatsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.service.RefreshStats(r.Context(), req.ProductIDs); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"refreshed": len(req.ProductIDs)}})
}
