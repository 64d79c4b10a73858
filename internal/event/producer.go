package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/review-service/internal/domain"
	pkgkafka "github.com/utafrali/review-service/pkg/kafka"
)

// Kafka topic constants for review domain events.
const (
	TopicReviewBulkCreated   = "ecommerce.product_review.bulk_created"
	TopicReviewDeleted       = "ecommerce.product_review.deleted"
	TopicReviewStatusChanged = "ecommerce.product_review.status_changed"
)

// EventNameBulkCreated is the event name carried in bulk_created payloads,
// kept stable for downstream consumers.
const EventNameBulkCreated = "product_review.bulk_created"

// Aggregate type constant.
const AggregateTypeReview = "product_review"

// Source identifier for events originating from this service.
const SourceReviewService = "review-service"

// BulkCreatedData is the payload for a product_review.bulk_created event.
type BulkCreatedData struct {
	EventName string   `json:"event_name"`
	ReviewIDs []string `json:"review_ids"`
	Count     int      `json:"count"`
}

// DeletedData is the payload for a product_review.deleted event.
type DeletedData struct {
	ReviewIDs  []string `json:"review_ids"`
	ProductIDs []string `json:"product_ids,omitempty"`
}

// StatusChangedData is the payload for a product_review.status_changed event.
type StatusChangedData struct {
	ReviewID  string `json:"review_id"`
	ProductID string `json:"product_id,omitempty"`
	Status    string `json:"status"`
}

// Producer publishes review domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the review service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishBulkCreated publishes a product_review.bulk_created event carrying
// the ids of all reviews created by one batch.
func (p *Producer) PublishBulkCreated(ctx context.Context, reviews []domain.Review) error {
	ids := make([]string, len(reviews))
	for i := range reviews {
		ids[i] = reviews[i].ID
	}

	data := BulkCreatedData{
		EventName: EventNameBulkCreated,
		ReviewIDs: ids,
		Count:     len(ids),
	}

	aggregateID := ""
	if len(ids) > 0 {
		aggregateID = ids[0]
	}

	event, err := pkgkafka.NewEvent(TopicReviewBulkCreated, aggregateID, AggregateTypeReview, SourceReviewService, data)
	if err != nil {
		return fmt.Errorf("create bulk_created event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicReviewBulkCreated, event); err != nil {
		return fmt.Errorf("publish bulk_created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published product_review.bulk_created event",
		slog.Int("count", len(ids)),
	)

	return nil
}

// PublishDeleted publishes a product_review.deleted event.
func (p *Producer) PublishDeleted(ctx context.Context, reviewIDs, productIDs []string) error {
	data := DeletedData{
		ReviewIDs:  reviewIDs,
		ProductIDs: productIDs,
	}

	aggregateID := ""
	if len(reviewIDs) > 0 {
		aggregateID = reviewIDs[0]
	}

	event, err := pkgkafka.NewEvent(TopicReviewDeleted, aggregateID, AggregateTypeReview, SourceReviewService, data)
	if err != nil {
		return fmt.Errorf("create deleted event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicReviewDeleted, event); err != nil {
		return fmt.Errorf("publish deleted event: %w", err)
	}

	return nil
}

// PublishStatusChanged publishes a product_review.status_changed event.
func (p *Producer) PublishStatusChanged(ctx context.Context, review *domain.Review) error {
	data := StatusChangedData{
		ReviewID: review.ID,
		Status:   review.Status,
	}
	if review.HasProduct() {
		data.ProductID = *review.ProductID
	}

	event, err := pkgkafka.NewEvent(TopicReviewStatusChanged, review.ID, AggregateTypeReview, SourceReviewService, data)
	if err != nil {
		return fmt.Errorf("create status_changed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicReviewStatusChanged, event); err != nil {
		return fmt.Errorf("publish status_changed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published product_review.status_changed event",
		slog.String("review_id", review.ID),
		slog.String("status", review.Status),
	)

	return nil
}
