package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/review-service/internal/domain"
	"github.com/utafrali/review-service/internal/repository"
	apperrors "github.com/utafrali/review-service/pkg/errors"
	"github.com/utafrali/review-service/pkg/httputil"
)

func sampleStats() *domain.ProductReviewStats {
	now := time.Now().UTC()
	return &domain.ProductReviewStats{
		ID:            "stats-001",
		ProductID:     "prod-001",
		AverageRating: 3.5,
		ReviewCount:   2,
		RatingCount2:  1,
		RatingCount5:  1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestGetProductStats_Success(t *testing.T) {
	repo := new(mockReviewRepository)
	router := setupRouter(repo)

	repo.On("GetStats", mock.Anything, "prod-001").Return(sampleStats(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/prod-001/review-stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3.5, data["average_rating"])
	assert.Equal(t, float64(2), data["review_count"])
	repo.AssertExpectations(t)
}

func TestGetProductStats_NotFound(t *testing.T) {
	repo := new(mockReviewRepository)
	router := setupRouter(repo)

	repo.On("GetStats", mock.Anything, "missing").
		Return(nil, apperrors.NotFound("product review stats", "missing"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/missing/review-stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListStats_Success(t *testing.T) {
	repo := new(mockReviewRepository)
	router := setupRouter(repo)

	repo.On("ListStats", mock.Anything, mock.MatchedBy(func(f repository.StatsFilter) bool {
		return f.ProductID != nil && *f.ProductID == "prod-001" && f.Page == 1 && f.PerPage == 20
	})).Return([]domain.ProductReviewStats{*sampleStats()}, 1, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/review-stats?product_id=prod-001", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp httputil.PaginatedResponse[domain.ProductReviewStats]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "prod-001", resp.Data[0].ProductID)
	repo.AssertExpectations(t)
}

func TestRefreshStats_Success(t *testing.T) {
	repo := new(mockReviewRepository)
	router := setupRouter(repo)

	repo.On("RefreshStats", mock.Anything, []string{"prod-001", "prod-002"}).Return(nil)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/admin/review-stats/refresh", map[string]any{
		"product_ids": []string{"prod-001", "prod-002"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

func TestRefreshStats_EmptyProductIDs(t *testing.T) {
	repo := new(mockReviewRepository)
	router := setupRouter(repo)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/admin/review-stats/refresh", map[string]any{
		"product_ids": []string{},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	repo.AssertNotCalled(t, "RefreshStats", mock.Anything, mock.Anything)
}
