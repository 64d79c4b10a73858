package repository

import (
	"context"

	"github.com/utafrali/review-service/internal/domain"
)

// ReviewFilter defines filter criteria for listing reviews.
type ReviewFilter struct {
	ProductID *string
	OrderID   *string
	Status    *string
	Rating    *int
	Page      int
	PerPage   int
}

// StatsFilter defines filter criteria for listing review stats.
type StatsFilter struct {
	ProductID *string
	Page      int
	PerPage   int
}

// ReviewRepository defines the persistence operations for reviews, their
// images and responses, and the derived per-product rating aggregates.
type ReviewRepository interface {
	// CreateReviews inserts the given reviews in one batch. The write is
	// all-or-nothing: either every row is inserted or none are.
	CreateReviews(ctx context.Context, reviews []domain.Review) error

	// CreateImages inserts the given review images in one batch. Every
	// image must reference an existing review.
	CreateImages(ctx context.Context, images []domain.ReviewImage) error

	// DeleteReviews removes the given reviews. Their images are removed by
	// the store's cascade.
	DeleteReviews(ctx context.Context, ids []string) error

	// GetByID retrieves a review with its images.
	GetByID(ctx context.Context, id string) (*domain.Review, error)

	// ListByIDs retrieves the given reviews (without pagination), with
	// images attached.
	ListByIDs(ctx context.Context, ids []string) ([]domain.Review, error)

	// List returns reviews matching the filter along with the total count.
	List(ctx context.Context, filter ReviewFilter) ([]domain.Review, int, error)

	// UpdateStatus changes a review's moderation status.
	UpdateStatus(ctx context.Context, id, status string) error

	// UpsertResponse creates or replaces the merchant response for a review.
	UpsertResponse(ctx context.Context, response *domain.ReviewResponse) error

	// GetResponse retrieves the merchant response for a review, or
	// ErrNotFound if none exists.
	GetResponse(ctx context.Context, reviewID string) (*domain.ReviewResponse, error)

	// RefreshStats recomputes the rating aggregates for each given product
	// id from the full current review set. Safe on an empty slice and
	// idempotent; a product with zero reviews gets a zero-count stats row.
	RefreshStats(ctx context.Context, productIDs []string) error

	// GetStats retrieves the rating aggregates for a product.
	GetStats(ctx context.Context, productID string) (*domain.ProductReviewStats, error)

	// ListStats returns stats rows matching the filter with the total count.
	ListStats(ctx context.Context, filter StatsFilter) ([]domain.ProductReviewStats, int, error)
}
