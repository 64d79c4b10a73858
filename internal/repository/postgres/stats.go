package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/review-service/internal/domain"
	"github.com/utafrali/review-service/internal/repository"
	apperrors "github.com/utafrali/review-service/pkg/errors"
)

const statsColumns = `id, product_id, average_rating, review_count,
		rating_count_1, rating_count_2, rating_count_3, rating_count_4, rating_count_5,
		created_at, updated_at`

// refreshStatsQuery recomputes the aggregates for one product from the full
// current review set. A product with zero reviews gets a zero-count row
// rather than a stale one. The upsert makes repeated refreshes idempotent.
const refreshStatsQuery = `
	INSERT INTO product_review_stats (
		id, product_id, average_rating, review_count,
		rating_count_1, rating_count_2, rating_count_3, rating_count_4, rating_count_5,
		created_at, updated_at
	)
	SELECT
		gen_random_uuid(),
		$1,
		COALESCE(AVG(rating), 0),
		COUNT(*),
		COUNT(*) FILTER (WHERE rating = 1),
		COUNT(*) FILTER (WHERE rating = 2),
		COUNT(*) FILTER (WHERE rating = 3),
		COUNT(*) FILTER (WHERE rating = 4),
		COUNT(*) FILTER (WHERE rating = 5),
		now(),
		now()
	FROM product_reviews
	WHERE product_id = $1
	ON CONFLICT (product_id) DO UPDATE SET
		average_rating = EXCLUDED.average_rating,
		review_count   = EXCLUDED.review_count,
		rating_count_1 = EXCLUDED.rating_count_1,
		rating_count_2 = EXCLUDED.rating_count_2,
		rating_count_3 = EXCLUDED.rating_count_3,
		rating_count_4 = EXCLUDED.rating_count_4,
		rating_count_5 = EXCLUDED.rating_count_5,
		updated_at     = now()`

// RefreshStats fully recomputes the rating aggregates for each given product.
func (r *ReviewRepository) RefreshStats(ctx context.Context, productIDs []string) error {
	for _, productID := range productIDs {
		if productID == "" {
			continue
		}
		if _, err := r.pool.Exec(ctx, refreshStatsQuery, productID); err != nil {
			return fmt.Errorf("refresh stats for product %s: %w", productID, err)
		}
	}
	return nil
}

// GetStats retrieves the rating aggregates for a product.
func (r *ReviewRepository) GetStats(ctx context.Context, productID string) (*domain.ProductReviewStats, error) {
	query := `
		SELECT ` + statsColumns + `
		FROM product_review_stats
		WHERE product_id = $1`

	var st domain.ProductReviewStats
	err := r.pool.QueryRow(ctx, query, productID).Scan(
		&st.ID,
		&st.ProductID,
		&st.AverageRating,
		&st.ReviewCount,
		&st.RatingCount1,
		&st.RatingCount2,
		&st.RatingCount3,
		&st.RatingCount4,
		&st.RatingCount5,
		&st.CreatedAt,
		&st.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product review stats", productID)
		}
		return nil, fmt.Errorf("get review stats: %w", err)
	}

	return &st, nil
}

// ListStats returns paginated stats rows matching the filter.
func (r *ReviewRepository) ListStats(ctx context.Context, filter repository.StatsFilter) ([]domain.ProductReviewStats, int, error) {
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

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT `+statsColumns+`,
		       count(*) OVER() AS total_count
		FROM product_review_stats
		%s
		ORDER BY updated_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list review stats: %w", err)
	}
	defer rows.Close()

	var (
		stats      []domain.ProductReviewStats
		totalCount int
	)

	for rows.Next() {
		var st domain.ProductReviewStats
		if err := rows.Scan(
			&st.ID,
			&st.ProductID,
			&st.AverageRating,
			&st.ReviewCount,
			&st.RatingCount1,
			&st.RatingCount2,
			&st.RatingCount3,
			&st.RatingCount4,
			&st.RatingCount5,
			&st.CreatedAt,
			&st.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan review stats row: %w", err)
		}
		stats = append(stats, st)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review stats rows: %w", err)
	}

	if stats == nil {
		stats = []domain.ProductReviewStats{}
	}

	return stats, totalCount, nil
}
