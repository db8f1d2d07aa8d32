package models

import "time"

// ReviewStatus tracks a single reviewer's assignment.
type ReviewStatus string

const (
	ReviewStatusPending          ReviewStatus = "pending"
	ReviewStatusInProgress       ReviewStatus = "in_progress"
	ReviewStatusApproved         ReviewStatus = "approved"
	ReviewStatusRejected         ReviewStatus = "rejected"
	ReviewStatusChangesRequested ReviewStatus = "changes_requested"
	// Cancelled marks rows reaped by a short-circuited parent outcome or a
	// removed dataset selection; cancelled rows never count toward aggregation.
	ReviewStatusCancelled ReviewStatus = "cancelled"
)

// Resolved reports whether the reviewer has reached a terminal decision.
func (s ReviewStatus) Resolved() bool {
	switch s {
	case ReviewStatusApproved, ReviewStatusRejected, ReviewStatusChangesRequested, ReviewStatusCancelled:
		return true
	}
	return false
}

// Actionable reports whether a reviewer may still act on the row.
func (s ReviewStatus) Actionable() bool {
	return s == ReviewStatusPending || s == ReviewStatusInProgress
}

// RequestReview is one reviewer's assignment and decision against a request.
type RequestReview struct {
	ID               string       `db:"id" json:"id"`
	RequestID        string       `db:"request_id" json:"request_id"`
	RequestDatasetID *string      `db:"request_dataset_id" json:"request_dataset_id,omitempty"`
	ReviewerUserID   string       `db:"reviewer_user_id" json:"reviewer_user_id"`
	ReviewLevel      int          `db:"review_level" json:"review_level"`
	ReviewOrder      int          `db:"review_order" json:"review_order"`
	ReviewStatus     ReviewStatus `db:"review_status" json:"review_status"`
	ReviewNotes      string       `db:"review_notes" json:"review_notes,omitempty"`
	AssignedAt       time.Time    `db:"assigned_at" json:"assigned_at"`
	DecidedAt        *time.Time   `db:"decided_at" json:"decided_at,omitempty"`
}

// ReviewerAssignment is the roster entry handed to the engine by the external
// assignment policy: who reviews, at which level, in which order.
type ReviewerAssignment struct {
	UserID string `json:"user_id" validate:"required"`
	Level  int    `json:"level" validate:"required,min=1"`
	Order  int    `json:"order"`
}

// ActiveReviewLevel returns the lowest level that still has unresolved rows,
// or 0 when every row is resolved. Rows above the active level are not yet
// actionable.
func ActiveReviewLevel(reviews []RequestReview) int {
	levels := map[int]bool{}
	for _, r := range reviews {
		if r.ReviewStatus == ReviewStatusCancelled {
			continue
		}
		if !r.ReviewStatus.Resolved() {
			if !levels[r.ReviewLevel] {
				levels[r.ReviewLevel] = true
			}
		}
	}
	active := 0
	for level := range levels {
		if active == 0 || level < active {
			active = level
		}
	}
	return active
}

// AggregateReviewStatus recomputes the parent request status as a pure fold
// over all review rows. It is idempotent: feeding the same rows always yields
// the same answer, so it is safe to rerun after every decision regardless of
// ordering.
//
// With shortCircuit, a single rejection (or changes request) anywhere decides
// the outcome immediately; rejection dominates. Without it, a level must fully
// resolve before its outcome is applied and later levels are consulted.
func AggregateReviewStatus(reviews []RequestReview, shortCircuit bool) RequestStatus {
	counted := make([]RequestReview, 0, len(reviews))
	for _, r := range reviews {
		if r.ReviewStatus == ReviewStatusCancelled {
			continue
		}
		counted = append(counted, r)
	}
	if len(counted) == 0 {
		return RequestStatusInReview
	}

	if shortCircuit {
		sawChanges := false
		allApproved := true
		for _, r := range counted {
			switch r.ReviewStatus {
			case ReviewStatusRejected:
				return RequestStatusRejected
			case ReviewStatusChangesRequested:
				sawChanges = true
				allApproved = false
			case ReviewStatusApproved:
			default:
				allApproved = false
			}
		}
		if sawChanges {
			return RequestStatusChangesRequested
		}
		if allApproved {
			return RequestStatusApproved
		}
		return RequestStatusInReview
	}

	byLevel := map[int][]RequestReview{}
	maxLevel := 0
	for _, r := range counted {
		byLevel[r.ReviewLevel] = append(byLevel[r.ReviewLevel], r)
		if r.ReviewLevel > maxLevel {
			maxLevel = r.ReviewLevel
		}
	}
	for level := 1; level <= maxLevel; level++ {
		rows := byLevel[level]
		if len(rows) == 0 {
			continue
		}
		rejected := false
		changes := false
		for _, r := range rows {
			switch r.ReviewStatus {
			case ReviewStatusRejected:
				rejected = true
			case ReviewStatusChangesRequested:
				changes = true
			case ReviewStatusApproved:
			default:
				return RequestStatusInReview
			}
		}
		if rejected {
			return RequestStatusRejected
		}
		if changes {
			return RequestStatusChangesRequested
		}
	}
	return RequestStatusApproved
}
