package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ndip-rw/data-portal-api/internal/dto"
	"github.com/ndip-rw/data-portal-api/internal/models"
)

const reviewColumns = `id, request_id, request_dataset_id, reviewer_user_id,
	review_level, review_order, review_status, review_notes, assigned_at, decided_at`

// ReviewRepository persists reviewer assignments and decisions.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// CreateBatch inserts a full assignment roster in one transaction.
func (r *ReviewRepository) CreateBatch(ctx context.Context, reviews []models.RequestReview) error {
	if len(reviews) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create reviews: %w", err)
	}
	defer tx.Rollback()

	const query = `INSERT INTO request_reviews (id, request_id, request_dataset_id, reviewer_user_id,
	review_level, review_order, review_status, review_notes, assigned_at)
VALUES (:id, :request_id, :request_dataset_id, :reviewer_user_id,
	:review_level, :review_order, :review_status, :review_notes, :assigned_at)`
	now := time.Now().UTC()
	for i := range reviews {
		if reviews[i].ID == "" {
			reviews[i].ID = uuid.NewString()
		}
		if reviews[i].AssignedAt.IsZero() {
			reviews[i].AssignedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, query, reviews[i]); err != nil {
			return fmt.Errorf("insert review: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create reviews: %w", err)
	}
	return nil
}

// FindByID loads a single review row.
func (r *ReviewRepository) FindByID(ctx context.Context, id string) (*models.RequestReview, error) {
	query := fmt.Sprintf(`SELECT %s FROM request_reviews WHERE id = $1`, reviewColumns)
	var review models.RequestReview
	if err := r.db.GetContext(ctx, &review, query, id); err != nil {
		return nil, err
	}
	return &review, nil
}

// ListByRequest returns every review row of a request, ordered by level then
// reviewer order, which is the order the aggregation walks them in.
func (r *ReviewRepository) ListByRequest(ctx context.Context, requestID string) ([]models.RequestReview, error) {
	query := fmt.Sprintf(`SELECT %s FROM request_reviews WHERE request_id = $1 ORDER BY review_level ASC, review_order ASC`,
		reviewColumns)
	var reviews []models.RequestReview
	if err := r.db.SelectContext(ctx, &reviews, query, requestID); err != nil {
		return nil, fmt.Errorf("list reviews by request: %w", err)
	}
	return reviews, nil
}

// ListByReviewer returns a reviewer's work queue enriched with request context.
func (r *ReviewRepository) ListByReviewer(ctx context.Context, reviewerID string, filter dto.ReviewFilter) ([]dto.ReviewItem, int, error) {
	conditions := []string{"rr.reviewer_user_id = $1"}
	args := []interface{}{reviewerID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("rr.review_status = $%d", len(args)))
	}
	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM request_reviews rr WHERE %s`, where)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count reviewer queue: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	args = append(args, pageSize, (page-1)*pageSize)
	query := fmt.Sprintf(`SELECT rr.id, rr.request_id, rr.request_dataset_id, rr.reviewer_user_id,
	rr.review_level, rr.review_order, rr.review_status, rr.review_notes, rr.assigned_at, rr.decided_at,
	req.request_number, req.title AS request_title, req.priority AS request_priority,
	u.full_name AS requester_name
FROM request_reviews rr
JOIN requests req ON req.id = rr.request_id
JOIN users u ON u.id = req.user_id
WHERE %s
ORDER BY rr.assigned_at DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	var items []dto.ReviewItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list reviewer queue: %w", err)
	}
	return items, total, nil
}

// UpdateDecision records a reviewer's verdict. Terminal decisions stamp the
// decision time; moving to in_progress does not.
func (r *ReviewRepository) UpdateDecision(ctx context.Context, id string, status models.ReviewStatus, notes string) error {
	var decidedAt *time.Time
	if status.Resolved() {
		now := time.Now().UTC()
		decidedAt = &now
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE request_reviews SET review_status = $1, review_notes = $2, decided_at = $3 WHERE id = $4`,
		status, notes, decidedAt, id)
	if err != nil {
		return fmt.Errorf("update review decision: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("review %s not found", id)
	}
	return nil
}

// CancelPending cancels every unresolved review of a request, used when a
// short-circuited outcome makes the remaining assignments moot.
func (r *ReviewRepository) CancelPending(ctx context.Context, requestID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE request_reviews SET review_status = $1, decided_at = $2
WHERE request_id = $3 AND review_status IN ($4, $5)`,
		models.ReviewStatusCancelled, time.Now().UTC(), requestID,
		models.ReviewStatusPending, models.ReviewStatusInProgress)
	if err != nil {
		return fmt.Errorf("cancel pending reviews: %w", err)
	}
	return nil
}

// CancelPendingForDatasets cancels unresolved reviews scoped to dataset
// selections that were removed from a resubmitted request.
func (r *ReviewRepository) CancelPendingForDatasets(ctx context.Context, requestID string, requestDatasetIDs []string) error {
	if len(requestDatasetIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(
		`UPDATE request_reviews SET review_status = ?, decided_at = ?
WHERE request_id = ? AND request_dataset_id IN (?) AND review_status IN (?, ?)`,
		models.ReviewStatusCancelled, time.Now().UTC(), requestID, requestDatasetIDs,
		models.ReviewStatusPending, models.ReviewStatusInProgress)
	if err != nil {
		return fmt.Errorf("build cancel query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("cancel dataset reviews: %w", err)
	}
	return nil
}

// CountResolved reports how many non-cancelled rows of a request have reached
// a terminal decision.
func (r *ReviewRepository) CountResolved(ctx context.Context, requestID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM request_reviews
WHERE request_id = $1 AND review_status IN ($2, $3, $4)`,
		requestID, models.ReviewStatusApproved, models.ReviewStatusRejected, models.ReviewStatusChangesRequested)
	if err != nil {
		return 0, fmt.Errorf("count resolved reviews: %w", err)
	}
	return count, nil
}
