package domain

import (
	"time"
)

// ProductReviewStats holds the derived rating aggregates for one product.
// Stats are always recomputed from the full review set, never patched
// incrementally, so a refresh with the same underlying reviews is idempotent.
type ProductReviewStats struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`
	AverageRating float64   `json:"average_rating"`
	ReviewCount   int       `json:"review_count"`
	RatingCount1  int       `json:"rating_count_1"`
	RatingCount2  int       `json:"rating_count_2"`
	RatingCount3  int       `json:"rating_count_3"`
	RatingCount4  int       `json:"rating_count_4"`
	RatingCount5  int       `json:"rating_count_5"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
