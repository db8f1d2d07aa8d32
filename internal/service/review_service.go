package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ndip-rw/data-portal-api/internal/dto"
	"github.com/ndip-rw/data-portal-api/internal/models"
	appErrors "github.com/ndip-rw/data-portal-api/pkg/errors"
)

type reviewRepository interface {
	CreateBatch(ctx context.Context, reviews []models.RequestReview) error
	FindByID(ctx context.Context, id string) (*models.RequestReview, error)
	ListByRequest(ctx context.Context, requestID string) ([]models.RequestReview, error)
	ListByReviewer(ctx context.Context, reviewerID string, filter dto.ReviewFilter) ([]dto.ReviewItem, int, error)
	UpdateDecision(ctx context.Context, id string, status models.ReviewStatus, notes string) error
	CancelPending(ctx context.Context, requestID string) error
}

type reviewRequestRepository interface {
	FindByID(ctx context.Context, id string) (*models.Request, error)
	UpdateStatus(ctx context.Context, id string, status models.RequestStatus) error
}

// AssignmentPolicy produces the reviewer roster for a submitted request. The
// engine consumes the roster as given; how reviewers are chosen is not its
// concern.
type AssignmentPolicy interface {
	Assignments(ctx context.Context, request *models.Request) ([]models.ReviewerAssignment, error)
}

type reviewerLister interface {
	ListReviewers(ctx context.Context) ([]models.User, error)
}

// PoolAssignmentPolicy assigns every provisioned reviewer at level 1, ordered
// deterministically by account id.
type PoolAssignmentPolicy struct {
	users reviewerLister
}

// NewPoolAssignmentPolicy constructs the default roster policy.
func NewPoolAssignmentPolicy(users reviewerLister) *PoolAssignmentPolicy {
	return &PoolAssignmentPolicy{users: users}
}

// Assignments returns one level-1 assignment per active reviewer account.
func (p *PoolAssignmentPolicy) Assignments(ctx context.Context, request *models.Request) ([]models.ReviewerAssignment, error) {
	reviewers, err := p.users.ListReviewers(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(reviewers, func(i, j int) bool { return reviewers[i].ID < reviewers[j].ID })

	assignments := make([]models.ReviewerAssignment, 0, len(reviewers))
	order := 0
	for _, reviewer := range reviewers {
		// A requester never reviews their own request.
		if reviewer.ID == request.UserID {
			continue
		}
		order++
		assignments = append(assignments, models.ReviewerAssignment{
			UserID: reviewer.ID,
			Level:  1,
			Order:  order,
		})
	}
	return assignments, nil
}

// ReviewConfig governs the aggregation policy.
type ReviewConfig struct {
	ShortCircuit bool
}

// ReviewService consumes assignment rosters, records reviewer decisions and
// recomputes the parent request status after every decision.
type ReviewService struct {
	reviews   reviewRepository
	requests  reviewRequestRepository
	audit     auditWriter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    ReviewConfig
}

// NewReviewService constructs a ReviewService.
func NewReviewService(reviews reviewRepository, requests reviewRequestRepository, audit auditWriter, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config ReviewConfig) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReviewService{reviews: reviews, requests: requests, audit: audit, metrics: metrics, validator: validate, logger: logger, config: config}
}

// StartReview materialises the assignment roster as pending review rows.
// Returns false when the roster is empty and the request should stay pending.
func (s *ReviewService) StartReview(ctx context.Context, request *models.Request, assignments []models.ReviewerAssignment) (bool, error) {
	if len(assignments) == 0 {
		return false, nil
	}
	rows := make([]models.RequestReview, 0, len(assignments))
	now := time.Now().UTC()
	for _, a := range assignments {
		rows = append(rows, models.RequestReview{
			RequestID:      request.ID,
			ReviewerUserID: a.UserID,
			ReviewLevel:    a.Level,
			ReviewOrder:    a.Order,
			ReviewStatus:   models.ReviewStatusPending,
			AssignedAt:     now,
		})
	}
	if err := s.reviews.CreateBatch(ctx, rows); err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create review assignments")
	}
	return true, nil
}

// CancelOpenReviews voids every unresolved review row of a request, used on
// resubmission so a stale verdict can never count against the new cycle.
func (s *ReviewService) CancelOpenReviews(ctx context.Context, requestID string) error {
	if err := s.reviews.CancelPending(ctx, requestID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel open reviews")
	}
	return nil
}

// MyReviews returns the caller's work queue. Actionable is computed against the
// active level of each request: a level-2 row stays locked until level 1 fully
// resolves.
func (s *ReviewService) MyReviews(ctx context.Context, claims *models.JWTClaims, filter dto.ReviewFilter) ([]dto.ReviewItem, int, error) {
	items, total, err := s.reviews.ListByReviewer(ctx, claims.UserID, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}

	activeLevels := make(map[string]int)
	for i := range items {
		requestID := items[i].RequestID
		active, ok := activeLevels[requestID]
		if !ok {
			all, err := s.reviews.ListByRequest(ctx, requestID)
			if err != nil {
				return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request reviews")
			}
			active = models.ActiveReviewLevel(all)
			activeLevels[requestID] = active
		}
		items[i].Actionable = items[i].ReviewStatus.Actionable() && items[i].ReviewLevel == active
	}
	return items, total, nil
}

// Decide records the caller's verdict on one review row and folds the full row
// set into a fresh request status. The fold is idempotent, so re-running it
// after any decision ordering converges on the same outcome.
func (s *ReviewService) Decide(ctx context.Context, claims *models.JWTClaims, reviewID string, req dto.ReviewDecisionRequest) (*models.RequestReview, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}

	review, err := s.reviews.FindByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "review not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review")
	}

	if review.ReviewerUserID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "review is assigned to another reviewer")
	}
	if !review.ReviewStatus.Actionable() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "review is already resolved")
	}

	all, err := s.reviews.ListByRequest(ctx, review.RequestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request reviews")
	}
	if active := models.ActiveReviewLevel(all); active != 0 && review.ReviewLevel != active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "earlier review levels have not resolved yet")
	}

	if err := s.reviews.UpdateDecision(ctx, reviewID, req.Decision, req.Notes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}
	s.metrics.RecordReviewDecision(req.Decision)
	s.recordDecisionAudit(ctx, claims, review, req)

	review.ReviewStatus = req.Decision
	review.ReviewNotes = req.Notes

	if req.Decision.Resolved() {
		if err := s.recomputeRequestStatus(ctx, review.RequestID); err != nil {
			return nil, err
		}
	}
	return review, nil
}

// recomputeRequestStatus reloads all rows, folds them into a request status and
// applies it when the workflow permits. A settled outcome cancels every row
// still open.
func (s *ReviewService) recomputeRequestStatus(ctx context.Context, requestID string) error {
	all, err := s.reviews.ListByRequest(ctx, requestID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload reviews")
	}

	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}

	next := models.AggregateReviewStatus(all, s.config.ShortCircuit)
	if next == request.Status {
		return nil
	}
	if !models.CanTransition(request.Status, next) {
		s.logger.Warn("aggregated status not reachable from current status",
			zap.String("request_id", requestID),
			zap.String("from", string(request.Status)),
			zap.String("to", string(next)))
		return nil
	}

	if err := s.requests.UpdateStatus(ctx, requestID, next); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request status")
	}

	if next != models.RequestStatusInReview {
		if err := s.reviews.CancelPending(ctx, requestID); err != nil {
			s.logger.Warn("failed to cancel remaining reviews", zap.String("request_id", requestID), zap.Error(err))
		}
	}
	return nil
}

func (s *ReviewService) recordDecisionAudit(ctx context.Context, claims *models.JWTClaims, review *models.RequestReview, req dto.ReviewDecisionRequest) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"request_id": review.RequestID,
		"level":      review.ReviewLevel,
		"decision":   req.Decision,
	})
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionReviewDecision,
		Resource:   "review",
		ResourceID: &review.ID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record review audit log", zap.Error(err))
	}
}
