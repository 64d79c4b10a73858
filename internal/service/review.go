// Package service implements the review business logic: bulk ingestion with
// compensation, moderation, merchant responses, and derived rating stats.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/review-service/internal/domain"
	"github.com/utafrali/review-service/internal/event"
	"github.com/utafrali/review-service/internal/repository"
	"github.com/utafrali/review-service/internal/saga"
	apperrors "github.com/utafrali/review-service/pkg/errors"
)

const (
	defaultPage    = 1
	defaultPerPage = 20
	maxPerPage     = 100
)

// ReviewInput carries one review submission. ProductID and OrderID are
// optional; Status defaults to approved when empty.
type ReviewInput struct {
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

// RespondInput carries a merchant response to a review.
type RespondInput struct {
	Content string `json:"content" validate:"required"`
}

// StatsCache caches per-product stats. Get returns (nil, nil) on a miss.
type StatsCache interface {
	Get(ctx context.Context, productID string) (*domain.ProductReviewStats, error)
	Set(ctx context.Context, stats *domain.ProductReviewStats) error
	Invalidate(ctx context.Context, productIDs ...string) error
}

// ReviewService coordinates review persistence, stats recomputation, caching
// and event publication.
type ReviewService struct {
	repo     repository.ReviewRepository
	producer *event.Producer
	cache    StatsCache
	logger   *slog.Logger
}

// NewReviewService creates a review service. cache may be nil, in which case
// stats reads always hit the store.
func NewReviewService(repo repository.ReviewRepository, producer *event.Producer, cache StatsCache, logger *slog.Logger) *ReviewService {
	return &ReviewService{
		repo:     repo,
		producer: producer,
		cache:    cache,
		logger:   logger,
	}
}

// imageRef pairs a submitted image URL with the index of its review in the
// batch, so images stay attached to the right review.
type imageRef struct {
	reviewIndex int
	url         string
}

// BulkCreateReviews ingests a batch of reviews atomically. The batch is
// written in one shot, the rating stats of every referenced product are
// recomputed, and a bulk_created event is published. If the stats refresh
// fails, the just-created reviews are deleted and the stats recomputed again
// so neither the review set nor the aggregates reflect the failed batch.
func (s *ReviewService) BulkCreateReviews(ctx context.Context, inputs []ReviewInput) ([]domain.Review, error) {
	if len(inputs) == 0 {
		return []domain.Review{}, nil
	}

	now := time.Now().UTC()
	reviews := make([]domain.Review, len(inputs))
	var refs []imageRef

	for i, in := range inputs {
		status := in.Status
		if status == "" {
			status = domain.DefaultStatus
		}
		if !domain.ValidStatus(status) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("review %d: unknown status %q", i, in.Status))
		}
		if in.Rating < 1 || in.Rating > 5 {
			return nil, apperrors.InvalidInput(fmt.Sprintf("review %d: rating must be between 1 and 5", i))
		}

		reviews[i] = domain.Review{
			ID:              uuid.New().String(),
			ProductID:       optional(in.ProductID),
			OrderID:         optional(in.OrderID),
			OrderLineItemID: optional(in.OrderLineItemID),
			Name:            in.Username,
			Email:           optional(in.Email),
			Rating:          in.Rating,
			Content:         in.Content,
			Status:          status,
			Images:          []domain.ReviewImage{},
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		for _, url := range in.Images {
			refs = append(refs, imageRef{reviewIndex: i, url: url})
		}
	}

	productIDs := domain.DistinctProductIDs(reviews)

	// Recorded only once the whole ingest step succeeds; the compensation is
	// a no-op when the step never completed.
	var createdIDs []string

	sg := saga.New("bulk_create_reviews", s.logger)

	sg.AddStep(&saga.Step{
		Name: "ingest_reviews",
		Run: func(ctx context.Context) error {
			if err := s.repo.CreateReviews(ctx, reviews); err != nil {
				return err
			}

			if len(refs) > 0 {
				images := make([]domain.ReviewImage, len(refs))
				for j, ref := range refs {
					images[j] = domain.ReviewImage{
						ID:        uuid.New().String(),
						ReviewID:  reviews[ref.reviewIndex].ID,
						URL:       ref.url,
						CreatedAt: now,
					}
				}
				if err := s.repo.CreateImages(ctx, images); err != nil {
					return err
				}
				for _, img := range images {
					for i := range reviews {
						if reviews[i].ID == img.ReviewID {
							reviews[i].Images = append(reviews[i].Images, img)
						}
					}
				}
			}

			createdIDs = make([]string, len(reviews))
			for i := range reviews {
				createdIDs[i] = reviews[i].ID
			}
			return nil
		},
		Compensate: func(ctx context.Context) error {
			if len(createdIDs) == 0 {
				return nil
			}
			if err := s.repo.DeleteReviews(ctx, createdIDs); err != nil {
				return fmt.Errorf("delete reviews: %w", err)
			}
			// The aggregates may already include the deleted reviews; bring
			// them back in line with the store.
			if err := s.repo.RefreshStats(ctx, productIDs); err != nil {
				return fmt.Errorf("restore stats: %w", err)
			}
			s.invalidateStats(ctx, productIDs)
			return nil
		},
	})

	sg.AddStep(&saga.Step{
		Name: "refresh_stats",
		Run: func(ctx context.Context) error {
			if err := s.repo.RefreshStats(ctx, productIDs); err != nil {
				return err
			}
			s.invalidateStats(ctx, productIDs)
			return nil
		},
		// The recompute is idempotent and derives from the review set; the
		// ingest compensation already restores it.
	})

	sg.AddStep(&saga.Step{
		Name: "emit_event",
		Run: func(ctx context.Context) error {
			if err := s.producer.PublishBulkCreated(ctx, reviews); err != nil {
				s.logger.WarnContext(ctx, "failed to publish bulk_created event",
					slog.Int("count", len(reviews)),
					slog.String("error", err.Error()),
				)
			}
			return nil
		},
	})

	if err := sg.Execute(ctx); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "bulk created reviews",
		slog.Int("count", len(reviews)),
		slog.Int("products", len(productIDs)),
	)

	return reviews, nil
}

// CreateReview ingests a single review through the bulk path.
func (s *ReviewService) CreateReview(ctx context.Context, input ReviewInput) (*domain.Review, error) {
	reviews, err := s.BulkCreateReviews(ctx, []ReviewInput{input})
	if err != nil {
		return nil, err
	}
	return &reviews[0], nil
}

// GetReview retrieves a review with its images and merchant response.
func (s *ReviewService) GetReview(ctx context.Context, id string) (*domain.Review, *domain.ReviewResponse, error) {
	review, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	response, err := s.repo.GetResponse(ctx, id)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, err
		}
		response = nil
	}

	return review, response, nil
}

// ListReviews returns reviews matching the filter with the total count.
func (s *ReviewService) ListReviews(ctx context.Context, filter repository.ReviewFilter) ([]domain.Review, int, error) {
	filter.Page, filter.PerPage = clampPagination(filter.Page, filter.PerPage)

	if filter.Status != nil && !domain.ValidStatus(*filter.Status) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("unknown status %q", *filter.Status))
	}
	if filter.Rating != nil && (*filter.Rating < 1 || *filter.Rating > 5) {
		return nil, 0, apperrors.InvalidInput("rating must be between 1 and 5")
	}

	return s.repo.List(ctx, filter)
}

// ListApprovedReviews returns approved reviews for a product, for the
// storefront surface.
func (s *ReviewService) ListApprovedReviews(ctx context.Context, productID string, page, perPage int) ([]domain.Review, int, error) {
	status := domain.StatusApproved
	filter := repository.ReviewFilter{
		ProductID: &productID,
		Status:    &status,
	}
	filter.Page, filter.PerPage = clampPagination(page, perPage)
	return s.repo.List(ctx, filter)
}

// ModerateReview changes a review's moderation status and republishes it to
// downstream consumers. The product's stats are unaffected: aggregates cover
// the full stored review set regardless of status.
func (s *ReviewService) ModerateReview(ctx context.Context, id, status string) (*domain.Review, error) {
	if !domain.ValidStatus(status) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown status %q", status))
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}

	review, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.producer.PublishStatusChanged(ctx, review); err != nil {
		s.logger.WarnContext(ctx, "failed to publish status_changed event",
			slog.String("review_id", id),
			slog.String("error", err.Error()),
		)
	}

	return review, nil
}

// RespondToReview creates or replaces the merchant response for a review.
func (s *ReviewService) RespondToReview(ctx context.Context, reviewID string, input RespondInput) (*domain.ReviewResponse, error) {
	if _, err := s.repo.GetByID(ctx, reviewID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	response := &domain.ReviewResponse{
		ID:        uuid.New().String(),
		ReviewID:  reviewID,
		Content:   input.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.UpsertResponse(ctx, response); err != nil {
		return nil, err
	}

	return response, nil
}

// DeleteReview removes a review, recomputes its product's stats and publishes
// a deleted event.
func (s *ReviewService) DeleteReview(ctx context.Context, id string) error {
	return s.DeleteReviews(ctx, []string{id})
}

// DeleteReviews removes the given reviews and recomputes the stats of every
// product they referenced.
func (s *ReviewService) DeleteReviews(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	reviews, err := s.repo.ListByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(reviews) != len(ids) {
		found := make(map[string]struct{}, len(reviews))
		for i := range reviews {
			found[reviews[i].ID] = struct{}{}
		}
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				return apperrors.NotFound("product review", id)
			}
		}
	}

	productIDs := domain.DistinctProductIDs(reviews)

	if err := s.repo.DeleteReviews(ctx, ids); err != nil {
		return err
	}

	if err := s.repo.RefreshStats(ctx, productIDs); err != nil {
		return err
	}
	s.invalidateStats(ctx, productIDs)

	if err := s.producer.PublishDeleted(ctx, ids, productIDs); err != nil {
		s.logger.WarnContext(ctx, "failed to publish deleted event",
			slog.Int("count", len(ids)),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// GetStats retrieves the rating aggregates for a product, going through the
// cache when one is configured.
func (s *ReviewService) GetStats(ctx context.Context, productID string) (*domain.ProductReviewStats, error) {
	if s.cache != nil {
		stats, err := s.cache.Get(ctx, productID)
		if err != nil {
			s.logger.WarnContext(ctx, "stats cache read failed",
				slog.String("product_id", productID),
				slog.String("error", err.Error()),
			)
		} else if stats != nil {
			return stats, nil
		}
	}

	stats, err := s.repo.GetStats(ctx, productID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, stats); err != nil {
			s.logger.WarnContext(ctx, "stats cache write failed",
				slog.String("product_id", productID),
				slog.String("error", err.Error()),
			)
		}
	}

	return stats, nil
}

// ListStats returns paginated stats rows matching the filter.
func (s *ReviewService) ListStats(ctx context.Context, filter repository.StatsFilter) ([]domain.ProductReviewStats, int, error) {
	filter.Page, filter.PerPage = clampPagination(filter.Page, filter.PerPage)
	return s.repo.ListStats(ctx, filter)
}

// RefreshStats recomputes the rating aggregates for the given products.
func (s *ReviewService) RefreshStats(ctx context.Context, productIDs []string) error {
	distinct := make([]string, 0, len(productIDs))
	seen := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		distinct = append(distinct, id)
	}

	if err := s.repo.RefreshStats(ctx, distinct); err != nil {
		return err
	}
	s.invalidateStats(ctx, distinct)
	return nil
}

func (s *ReviewService) invalidateStats(ctx context.Context, productIDs []string) {
	if s.cache == nil || len(productIDs) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, productIDs...); err != nil {
		s.logger.WarnContext(ctx, "stats cache invalidation failed",
			slog.Int("products", len(productIDs)),
			slog.String("error", err.Error()),
		)
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func clampPagination(page, perPage int) (int, int) {
	if page < 1 {
		page = defaultPage
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}
