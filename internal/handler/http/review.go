// Package http exposes the review service API over HTTP: admin endpoints for
// ingestion and moderation, store endpoints for approved reviews and stats.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/review-service/internal/domain"
	"github.com/utafrali/review-service/internal/repository"
	"github.com/utafrali/review-service/internal/service"
	"github.com/utafrali/review-service/pkg/httputil"
	"github.com/utafrali/review-service/pkg/validator"
)

// ReviewHandler handles HTTP requests for review endpoints.
type ReviewHandler struct {
	service *service.ReviewService
	logger  *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(svc *service.ReviewService, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// ReviewRequest is the JSON request body for a single review submission.
type ReviewRequest struct {
	ProductID       string   `json:"product_id" validate:"omitempty,max=255"`
	OrderID         string   `json:"order_id" validate:"omitempty,max=255"`
	OrderLineItemID string   `json:"order_line_item_id" validate:"omitempty,max=255"`
	Username        string   `json:"username" validate:"required,max=255"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Rating          int      `json:"rating" validate:"required,min=1,max=5"`
	Content         string   `json:"content" validate:"required"`
	Images          []string `json:"images" validate:"omitempty,dive,required,url"`
	Status          string   `json:"status" validate:"omitempty,oneof=pending approved flagged"`
}

// BulkCreateRequest is the JSON request body for bulk review ingestion.
type BulkCreateRequest struct {
	Reviews []ReviewRequest `json:"reviews" validate:"required,min=1,dive"`
}

// UpdateStatusRequest is the JSON request body for moderating a review.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending approved flagged"`
}

// RespondRequest is the JSON request body for a merchant response.
type RespondRequest struct {
	Content string `json:"content" validate:"required"`
}

// reviewDetail is a review with its merchant response, if one exists.
type reviewDetail struct {
	*domain.Review
	Response *domain.ReviewResponse `json:"response,omitempty"`
}

func toInput(req ReviewRequest) service.ReviewInput {
	return service.ReviewInput{
		ProductID:       req.ProductID,
		OrderID:         req.OrderID,
		OrderLineItemID: req.OrderLineItemID,
		Username:        req.Username,
		Email:           req.Email,
		Rating:          req.Rating,
		Content:         req.Content,
		Images:          req.Images,
		Status:          req.Status,
	}
}

// --- Handlers ---

// BulkCreateReviews handles POST /api/v1/admin/reviews/bulk
func (h *ReviewHandler) BulkCreateReviews(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req BulkCreateRequest
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

	inputs := make([]service.ReviewInput, len(req.Reviews))
	for i, rv := range req.Reviews {
		inputs[i] = toInput(rv)
	}

	reviews, err := h.service.BulkCreateReviews(r.Context(), inputs)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: reviews})
}

// CreateReview handles POST /api/v1/admin/reviews
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req ReviewRequest
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

	review, err := h.service.CreateReview(r.Context(), toInput(req))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: review})
}

// ListReviews handles GET /api/v1/admin/reviews
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	filter := repository.ReviewFilter{
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
	if v := r.URL.Query().Get("order_id"); v != "" {
		filter.OrderID = &v
	}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = &v
	}
	if v := r.URL.Query().Get("rating"); v != "" {
		rating, err := strconv.Atoi(v)
		if err != nil || rating < 1 || rating > 5 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "rating must be an integer between 1 and 5"},
			})
			return
		}
		filter.Rating = &rating
	}

	reviews, total, err := h.service.ListReviews(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(reviews, total, filter.Page, filter.PerPage))
}

// GetReview handles GET /api/v1/admin/reviews/{id}
func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "review id is required"},
		})
		return
	}

	review, response, err := h.service.GetReview(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: reviewDetail{Review: review, Response: response}})
}

// UpdateReviewStatus handles PUT /api/v1/admin/reviews/{id}/status
func (h *ReviewHandler) UpdateReviewStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "review id is required"},
		})
		return
	}

	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req UpdateStatusRequest
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

	review, err := h.service.ModerateReview(r.Context(), id, req.Status)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: review})
}

// RespondToReview handles POST /api/v1/admin/reviews/{id}/response
func (h *ReviewHandler) RespondToReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "review id is required"},
		})
		return
	}

	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req RespondRequest
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

	response, err := h.service.RespondToReview(r.Context(), id, service.RespondInput{Content: req.Content})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: response})
}

// DeleteReview handles DELETE /api/v1/admin/reviews/{id}
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "review id is required"},
		})
		return
	}

	if err := h.service.DeleteReview(r.Context(), id); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{"id": id, "status": "deleted"}})
}

// ListProductReviews handles GET /api/v1/products/{product_id}/reviews
// Only approved reviews are exposed on the store surface.
func (h *ReviewHandler) ListProductReviews(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "product id is required"},
		})
		return
	}

	page, perPage, ok := parsePagination(w, r)
	if !ok {
		return
	}

	reviews, total, err := h.service.ListApprovedReviews(r.Context(), productID, page, perPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(reviews, total, page, perPage))
}

// parsePagination reads and validates the page and per_page query parameters,
// writing a 400 response and returning ok=false on invalid values.
func parsePagination(w http.ResponseWriter, r *http.Request) (page, perPage int, ok bool) {
	page, perPage = 1, 20

	if v := r.URL.Query().Get("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 1 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "page must be a valid positive integer"},
			})
			return 0, 0, false
		}
		page = p
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		pp, err := strconv.Atoi(v)
		if err != nil || pp < 1 || pp > 100 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "per_page must be a valid integer between 1 and 100"},
			})
			return 0, 0, false
		}
		perPage = pp
	}

	return page, perPage, true
}
