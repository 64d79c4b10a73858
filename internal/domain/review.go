package domain

import (
	"time"
)

// Review status constants. A review starts as pending or approved and can be
// flagged by moderation.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusFlagged  = "flagged"
)

// DefaultStatus is applied when a review is submitted without a status.
const DefaultStatus = StatusApproved

// ValidStatus reports whether s is a known review status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusFlagged:
		return true
	}
	return false
}

// Review represents a user-submitted product review. Product and order
// references are optional: a review imported from an external source may not
// be tied to either.
type Review struct {
	ID              string        `json:"id"`
	ProductID       *string       `json:"product_id"`
	OrderID         *string       `json:"order_id"`
	OrderLineItemID *string       `json:"order_line_item_id"`
	Name            string        `json:"name"`
	Email           *string       `json:"email"`
	Rating          int           `json:"rating"`
	Content         string        `json:"content"`
	Status          string        `json:"status"`
	Images          []ReviewImage `json:"images"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// HasProduct reports whether the review references a product.
func (r *Review) HasProduct() bool {
	return r.ProductID != nil && *r.ProductID != ""
}

// ReviewImage is an image attached to a review. Images are removed together
// with their owning review.
type ReviewImage struct {
	ID        string    `json:"id"`
	ReviewID  string    `json:"review_id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// ReviewResponse is a merchant reply to a review. At most one response
// exists per review.
type ReviewResponse struct {
	ID        string    `json:"id"`
	ReviewID  string    `json:"review_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DistinctProductIDs returns the distinct non-empty product ids referenced
// by the given reviews, preserving first-seen order.
func DistinctProductIDs(reviews []Review) []string {
	seen := make(map[string]struct{}, len(reviews))
	var ids []string
	for i := range reviews {
		if !reviews[i].HasProduct() {
			continue
		}
		id := *reviews[i].ProductID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
