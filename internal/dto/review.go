package dto

import "github.com/ndip-rw/data-portal-api/internal/models"

// ReviewDecisionRequest records a reviewer's verdict on their assignment.
type ReviewDecisionRequest struct {
	Decision models.ReviewStatus `json:"decision" validate:"required,oneof=in_progress approved rejected changes_requested"`
	Notes    string              `json:"notes"`
}

// ReviewItem is a review row enriched with request context for the reviewer
// work queue. Actionable is false until every earlier level has resolved.
type ReviewItem struct {
	models.RequestReview
	RequestNumber   string                 `db:"request_number" json:"request_number"`
	RequestTitle    string                 `db:"request_title" json:"request_title"`
	RequestPriority models.RequestPriority `db:"request_priority" json:"request_priority"`
	RequesterName   string                 `db:"requester_name" json:"requester_name"`
	Actionable      bool                   `db:"-" json:"actionable"`
}

// ReviewFilter narrows the reviewer work queue.
type ReviewFilter struct {
	Status   *models.ReviewStatus
	Page     int
	PageSize int
}
