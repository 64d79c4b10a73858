package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/review-service/internal/domain"
	"github.com/utafrali/review-service/internal/event"
	"github.com/utafrali/review-service/internal/repository"
	"github.com/utafrali/review-service/internal/service"
	apperrors "github.com/utafrali/review-service/pkg/errors"
	"github.com/utafrali/review-service/pkg/httputil"
	pkgkafka "github.com/utafrali/review-service/pkg/kafka"
)

// --- Mock ReviewRepository ---

type mockReviewRepository struct {
	mock.Mock
}

func (m *mockReviewRepository) CreateReviews(ctx context.Context, reviews []domain.Review) error {
	args := m.Called(ctx, reviews)
	return args.Error(0)
}

func (m *mockReviewRepository) CreateImages(ctx context.Context, images []domain.ReviewImage) error {
	args := m.Called(ctx, images)
	return args.Error(0)
}

func (m *mockReviewRepository) DeleteReviews(ctx context.Context, ids []string) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

func (m *mockReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Review, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Review), args.Error(1)
}

func (m *mockReviewRepository) List(ctx context.Context, filter repository.ReviewFilter) ([]domain.Review, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Review), args.Int(1), args.Error(2)
}

func (m *mockReviewRepository) UpdateStatus(ctx context.Context, id, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockReviewRepository) UpsertResponse(ctx context.Context, response *domain.ReviewResponse) error {
	args := m.Called(ctx, response)
	return args.Error(0)
}

func (m *mockReviewRepository) GetResponse(ctx context.Context, reviewID string) (*domain.ReviewResponse, error) {
	args := m.Called(ctx, reviewID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReviewResponse), args.Error(1)
}

func (m *mockReviewRepository) RefreshStats(ctx context.Context, productIDs []string) error {
	args := m.Called(ctx, productIDs)
	return args.Error(0)
}

func (m *mockReviewRepository) GetStats(ctx context.Context, productID string) (*domain.ProductReviewStats, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProductReviewStats), args.Error(1)
}

func (m *mockReviewRepository) ListStats(ctx context.Context, filter repository.StatsFilter) ([]domain.ProductReviewStats, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.ProductReviewStats), args.Int(1), args.Error(2)
}

// --- Test Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testEventProducer() *event.Producer {
	logger := testLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:19092"})
	kafkaProducer := pkgkafka.NewProducer(kafkaCfg, logger)
	return event.NewProducer(kafkaProducer, logger)
}

func testReviewService(repo *mockReviewRepository) *service.ReviewService {
	return service.NewReviewService(repo, testEventProducer(), nil, testLogger())
}

// setupRouter creates a chi router matching the production route layout.
func setupRouter(repo *mockReviewRepository) *chi.Mux {
	svc := testReviewService(repo)
	reviewHandler := NewReviewHandler(svc, testLogger())
	statsHandler := NewStatsHandler(svc, testLogger())

	r := chi.NewRouter()
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
	r.Route("/api/v1/products/{product_id}", func(r chi.Router) {
		r.Get("/reviews", reviewHandler.ListProductReviews)
		r.Get("/review-stats", statsHandler.GetProductStats)
	})
	return r
}

// decodeResponse reads the response body into the httputil.Response struct.
func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	return resp
}

func doJSON(t *testing.T, router *chi.Mux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func sampleReview() *domain.Review {
	now := time.Now().UTC()
	pid := "prod-001"
	return &domain.Review{
		ID:        "550e8400-e29b-41d4-a716-446655440001",
		ProductID: &pid,
		Name:      "alice",
		Rating:    5,
		Content:   "Excellent quality",
		Status:    domain.StatusApproved,
		Images:    []domain.ReviewImage{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// --- Bulk Create ---

func TestBulkCreateReviews_Created(t *testing.T) {
	repo := new(mockReviewRepository)
	router := setupRouter(repo)

	repo.On("CreateReviews", mock.Anything, mock.Anything).Return(nil)
	repo.On("CreateImages", mock.Anything, mock.Anything).Return(nil)
	repo.On("RefreshStats", mock.Anything, []string{"prod-001"}).Return(nil)

	body := map[string]any{
		"reviews": []map[string]any{
			{
				"product_id": "prod-001",
				"username":   "alice",
				"rating":     5,
				"content":    "Excellent quality",
				"images":     []string{"https://img.example.com/a.jpg"},
			},
			{
				"product_id": "prod-001",
				"username":   "bob",
				"rating":     2,
				"content":    "Broke after a week",
			},
		},
	}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/admin/reviews/bulk", body)

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	data, ok := resp.Data.([]any)
	require.True(t, ok)
	assert.Len(t, data, 2)
	repo.AssertExpectations(t)
}

func TestBulkCreateReviews_EmptyBatchRejected(t *testing.T) {
	repo := new(mockReviewRepository)
	router := setupRouter(repo)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/admin/reviews/bulk", map[string]any{
		"reviews": []map[string]any{},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	repo.AssertNotCalled(t, "CreateReviews", mock.Anything, mock.Anything)
}

func TestBulkCreateReviews_InvalidRating(t *testing.T) {
	repo := new(mockReviewRepository)
	router := setupRouter(repo)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/admin/reviews/bulk", map[string]any{
		"reviews": []map[string]any{
			{"product_id": "prod-001", "username": "alice", "rating": 9, "content": "x"},
		},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
}

func TestBulkCreateReviews_MalformedBody(t *testing.T) {
	repo := new(mockReviewRepository)
	router := setupRouter(repo)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/reviews/bulk", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBulkCreateReviews_UnsupportedMediaType(t *testing.T) {
	repo := new(mockReviewRepository)
	router := setupRouter(repo)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/reviews/bulk", bytes.NewBufferString("reviews"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

// --- Single Create ---

func TestCreateReview_Created(t *testing.T) {
	repo := new(mockReviewRepository)
	router := setupRouter(repo)

	repo.On("CreateReviews", mock.Anything, mock.Anything).Return(nil)
	repo.On("RefreshStats", mock.Anything, []string{"prod-001"}).Return(nil)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/admin/reviews", map[string]any{
		"product_id": "prod-001",
		"username":   "alice",
		"rating":     4,
		"content":    "Good product",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	repo.AssertExpectations(t)
}

// --- List ---

func TestListReviews_WithFilters(t *testing.T) {
	repo := new(mockReviewRepository)
	router := setupRouter(repo)

	repo.On("List", mock.Anything, mock.MatchedBy(func(f repository.ReviewFilter) bool {
		return f.ProductID != nil && *f.ProductID == "prod-001" &&
			f.Status != nil && *f.Status == domain.StatusApproved &&
			f.Rating != nil && *f.Rating == 5 &&
			f.Page == 2 && f.PerPage == 10
	})).Return([]domain.Review{*sampleReview()}, 11, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/reviews?product_id=prod-001&status=approved&rating=5&page=2&per_page=10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp httputil.PaginatedResponse[domain.Review]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 11, resp.TotalCount)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 2, resp.TotalPages)
	repo.AssertExpectations(t)
}

func TestListReviews_InvalidRatingParam(t *testing.T) {
	repo := new(mockReviewRepository)
	router := setupRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/reviews?rating=ten", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	repo.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

// --- Get ---

func TestGetReview_WithResponse(t *testing.T) {
	repo := new(mockReviewRepository)
	router := setupRouter(repo)

	rv := sampleReview()
	repo.On("GetByID", mock.Anything, rv.ID).Return(rv, nil)
	repo.On("GetResponse", mock.Anything, rv.ID).Return(&domain.ReviewResponse{
		ID: "resp-001", ReviewID: rv.ID, Content: "Thanks",
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/reviews/"+rv.ID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, rv.ID, data["id"])
	response, ok := data["response"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Thanks", response["content"])
}

func TestGetReview_NotFound(t *testing.T) {
	repo := new(mockReviewRepository)
	router := setupRouter(repo)

	repo.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.NotFound("review", "missing"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/reviews/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

// --- Moderation ---

func TestUpdateReviewStatus_Success(t *testing.T) {
	repo := new(mockReviewRepository)
	router := setupRouter(repo)

	rv := sampleReview()
	rv.Status = domain.StatusFlagged
	repo.On("UpdateStatus", mock.Anything, rv.ID, domain.StatusFlagged).Return(nil)
	repo.On("GetByID", mock.Anything, rv.ID).Return(rv, nil)

	rec := doJSON(t, router, http.MethodPut, "/api/v1/admin/reviews/"+rv.ID+"/status", map[string]any{
		"status": "flagged",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "flagged", data["status"])
	repo.AssertExpectations(t)
}

func TestUpdateReviewStatus_UnknownStatus(t *testing.T) {
	repo := new(mockReviewRepository)
	router := setupRouter(repo)

	rec := doJSON(t, router, http.MethodPut, "/api/v1/admin/reviews/rev-001/status", map[string]any{
		"status": "archived",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

// --- Responses ---

func TestRespondToReview_Success(t *testing.T) {
	repo := new(mockReviewRepository)
	router := setupRouter(repo)

	rv := sampleReview()
	repo.On("GetByID", mock.Anything, rv.ID).Return(rv, nil)
	repo.On("UpsertResponse", mock.Anything, mock.Anything).Return(nil)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/admin/reviews/"+rv.ID+"/response", map[string]any{
		"content": "Thanks for the feedback",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

func TestRespondToReview_MissingContent(t *testing.T) {
	repo := new(mockReviewRepository)
	router := setupRouter(repo)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/admin/reviews/rev-001/response", map[string]any{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	repo.AssertNotCalled(t, "UpsertResponse", mock.Anything, mock.Anything)
}

// --- Deletion ---

func TestDeleteReview_Success(t *testing.T) {
	repo := new(mockReviewRepository)
	router := setupRouter(repo)

	rv := sampleReview()
	repo.On("ListByIDs", mock.Anything, []string{rv.ID}).Return([]domain.Review{*rv}, nil)
	repo.On("DeleteReviews", mock.Anything, []string{rv.ID}).Return(nil)
	repo.On("RefreshStats", mock.Anything, []string{"prod-001"}).Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/reviews/"+rv.ID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "deleted", data["status"])
	repo.AssertExpectations(t)
}

// --- Store surface ---

func TestListProductReviews_OnlyApproved(t *testing.T) {
	repo := new(mockReviewRepository)
	router := setupRouter(repo)

	repo.On("List", mock.Anything, mock.MatchedBy(func(f repository.ReviewFilter) bool {
		return f.ProductID != nil && *f.ProductID == "prod-001" &&
			f.Status != nil && *f.Status == domain.StatusApproved
	})).Return([]domain.Review{*sampleReview()}, 1, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/prod-001/reviews", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}
