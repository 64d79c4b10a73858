package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/review-service/internal/domain"
	"github.com/utafrali/review-service/internal/repository"
	"github.com/utafrali/review-service/pkg/database"
	apperrors "github.com/utafrali/review-service/pkg/errors"
)

// ReviewRepository implements review persistence using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

const reviewColumns = `id, product_id, order_id, order_line_item_id, name, email, rating, content, status, created_at, updated_at`

// CreateReviews inserts all reviews in a single multi-row INSERT so the
// batch is atomic: a constraint violation on any row fails the whole call.
func (r *ReviewRepository) CreateReviews(ctx context.Context, reviews []domain.Review) error {
	if len(reviews) == 0 {
		return nil
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`
		INSERT INTO product_reviews (` + reviewColumns + `)
		VALUES `)

	for i, rv := range reviews {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 11
		sb.WriteString(placeholders(base, 11))
		args = append(args,
			rv.ID,
			rv.ProductID,
			rv.OrderID,
			rv.OrderLineItemID,
			rv.Name,
			rv.Email,
			rv.Rating,
			rv.Content,
			rv.Status,
			rv.CreatedAt,
			rv.UpdatedAt,
		)
	}

	if _, err := r.pool.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert reviews: %w", err)
	}

	return nil
}

// CreateImages inserts all review images in a single multi-row INSERT.
func (r *ReviewRepository) CreateImages(ctx context.Context, images []domain.ReviewImage) error {
	if len(images) == 0 {
		return nil
	}

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`
		INSERT INTO product_review_images (id, review_id, url, created_at)
		VALUES `)

	for i, img := range images {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(placeholders(i*4, 4))
		args = append(args, img.ID, img.ReviewID, img.URL, img.CreatedAt)
	}

	if _, err := r.pool.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert review images: %w", err)
	}

	return nil
}

// DeleteReviews removes the given reviews. Images are removed by the
// ON DELETE CASCADE constraint on product_review_images.
func (r *ReviewRepository) DeleteReviews(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if _, err := r.pool.Exec(ctx,
		`DELETE FROM product_reviews WHERE id = ANY($1)`, ids,
	); err != nil {
		return fmt.Errorf("delete reviews: %w", err)
	}

	return nil
}

// GetByID retrieves a review and its images.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	query := `
		SELECT ` + reviewColumns + `
		FROM product_reviews
		WHERE id = $1`

	var rv domain.Review
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&rv.ID,
		&rv.ProductID,
		&rv.OrderID,
		&rv.OrderLineItemID,
		&rv.Name,
		&rv.Email,
		&rv.Rating,
		&rv.Content,
		&rv.Status,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("get review: %w", err)
	}

	images, err := r.imagesByReviewIDs(ctx, []string{rv.ID})
	if err != nil {
		return nil, err
	}
	rv.Images = images[rv.ID]
	if rv.Images == nil {
		rv.Images = []domain.ReviewImage{}
	}

	return &rv, nil
}

// ListByIDs retrieves the given reviews with their images, in creation order.
func (r *ReviewRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Review, error) {
	if len(ids) == 0 {
		return []domain.Review{}, nil
	}

	query := `
		SELECT ` + reviewColumns + `
		FROM product_reviews
		WHERE id = ANY($1)
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("list reviews by ids: %w", err)
	}
	defer rows.Close()

	reviews, err := scanReviews(rows)
	if err != nil {
		return nil, err
	}

	if err := r.attachImages(ctx, reviews); err != nil {
		return nil, err
	}

	return reviews, nil
}

// List returns paginated reviews matching the filter along with the total count.
func (r *ReviewRepository) List(ctx context.Context, filter repository.ReviewFilter) ([]domain.Review, int, error) {
	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}

	var (
		conditions []string
		args       []any
	)
	if filter.ProductID != nil {
		args = append(args, *filter.ProductID)
		conditions = append(conditions, fmt.Sprintf("product_id = $%d", len(args)))
	}
	if filter.OrderID != nil {
		args = append(args, *filter.OrderID)
		conditions = append(conditions, fmt.Sprintf("order_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Rating != nil {
		args = append(args, *filter.Rating)
		conditions = append(conditions, fmt.Sprintf("rating = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT `+reviewColumns+`,
		       count(*) OVER() AS total_count
		FROM product_reviews
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var (
		reviews    []domain.Review
		totalCount int
	)

	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(
			&rv.ID,
			&rv.ProductID,
			&rv.OrderID,
			&rv.OrderLineItemID,
			&rv.Name,
			&rv.Email,
			&rv.Rating,
			&rv.Content,
			&rv.Status,
			&rv.CreatedAt,
			&rv.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	if reviews == nil {
		reviews = []domain.Review{}
	}

	if err := r.attachImages(ctx, reviews); err != nil {
		return nil, 0, err
	}

	return reviews, totalCount, nil
}

// UpdateStatus changes a review's moderation status.
func (r *ReviewRepository) UpdateStatus(ctx context.Context, id, status string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE product_reviews
		SET status = $2, updated_at = now()
		WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update review status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("review", id)
	}
	return nil
}

// UpsertResponse creates or replaces the merchant response for a review.
// On conflict the stored row keeps its original id and created_at, so the
// persisted values are scanned back into response.
func (r *ReviewRepository) UpsertResponse(ctx context.Context, response *domain.ReviewResponse) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO product_review_responses (id, review_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (review_id) DO UPDATE
		SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at`,
		response.ID,
		response.ReviewID,
		response.Content,
		response.CreatedAt,
		response.UpdatedAt,
	).Scan(
		&response.ID,
		&response.CreatedAt,
		&response.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert review response: %w", err)
	}
	return nil
}

// GetResponse retrieves the merchant response for a review.
func (r *ReviewRepository) GetResponse(ctx context.Context, reviewID string) (*domain.ReviewResponse, error) {
	var resp domain.ReviewResponse
	err := r.pool.QueryRow(ctx, `
		SELECT id, review_id, content, created_at, updated_at
		FROM product_review_responses
		WHERE review_id = $1`, reviewID).Scan(
		&resp.ID,
		&resp.ReviewID,
		&resp.Content,
		&resp.CreatedAt,
		&resp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review response", reviewID)
		}
		return nil, fmt.Errorf("get review response: %w", err)
	}
	return &resp, nil
}

// attachImages loads the images for the given reviews and attaches them in place.
func (r *ReviewRepository) attachImages(ctx context.Context, reviews []domain.Review) error {
	if len(reviews) == 0 {
		return nil
	}

	ids := make([]string, len(reviews))
	for i := range reviews {
		ids[i] = reviews[i].ID
	}

	byReview, err := r.imagesByReviewIDs(ctx, ids)
	if err != nil {
		return err
	}

	for i := range reviews {
		imgs := byReview[reviews[i].ID]
		if imgs == nil {
			imgs = []domain.ReviewImage{}
		}
		reviews[i].Images = imgs
	}

	return nil
}

func (r *ReviewRepository) imagesByReviewIDs(ctx context.Context, ids []string) (map[string][]domain.ReviewImage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, review_id, url, created_at
		FROM product_review_images
		WHERE review_id = ANY($1)
		ORDER BY created_at`, ids)
	if err != nil {
		return nil, fmt.Errorf("list review images: %w", err)
	}
	defer rows.Close()

	byReview := make(map[string][]domain.ReviewImage)
	for rows.Next() {
		var img domain.ReviewImage
		if err := rows.Scan(&img.ID, &img.ReviewID, &img.URL, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review image row: %w", err)
		}
		byReview[img.ReviewID] = append(byReview[img.ReviewID], img)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review image rows: %w", err)
	}

	return byReview, nil
}

func scanReviews(rows pgx.Rows) ([]domain.Review, error) {
	var reviews []domain.Review
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(
			&rv.ID,
			&rv.ProductID,
			&rv.OrderID,
			&rv.OrderLineItemID,
			&rv.Name,
			&rv.Email,
			&rv.Rating,
			&rv.Content,
			&rv.Status,
			&rv.CreatedAt,
			&rv.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review rows: %w", err)
	}

	if reviews == nil {
		reviews = []domain.Review{}
	}

	return reviews, nil
}

// placeholders renders "($n, $n+1, ...)" for a multi-row VALUES clause.
func placeholders(base, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("$%d", base+i+1)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
