package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndip-rw/data-portal-api/internal/dto"
	"github.com/ndip-rw/data-portal-api/internal/models"
	appErrors "github.com/ndip-rw/data-portal-api/pkg/errors"
)

type fakeReviewRepo struct {
	reviews   map[string]*models.RequestReview
	cancelled []string
}

func newFakeReviewRepo(rows ...models.RequestReview) *fakeReviewRepo {
	repo := &fakeReviewRepo{reviews: map[string]*models.RequestReview{}}
	for i := range rows {
		row := rows[i]
		repo.reviews[row.ID] = &row
	}
	return repo
}

func (f *fakeReviewRepo) CreateBatch(_ context.Context, rows []models.RequestReview) error {
	for i := range rows {
		row := rows[i]
		if row.ID == "" {
			row.ID = row.ReviewerUserID
		}
		f.reviews[row.ID] = &row
	}
	return nil
}

func (f *fakeReviewRepo) FindByID(_ context.Context, id string) (*models.RequestReview, error) {
	review, ok := f.reviews[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *review
	return &clone, nil
}

func (f *fakeReviewRepo) ListByRequest(_ context.Context, requestID string) ([]models.RequestReview, error) {
	var rows []models.RequestReview
	for _, review := range f.reviews {
		if review.RequestID == requestID {
			rows = append(rows, *review)
		}
	}
	return rows, nil
}

func (f *fakeReviewRepo) ListByReviewer(_ context.Context, reviewerID string, _ dto.ReviewFilter) ([]dto.ReviewItem, int, error) {
	var items []dto.ReviewItem
	for _, review := range f.reviews {
		if review.ReviewerUserID == reviewerID {
			items = append(items, dto.ReviewItem{RequestReview: *review})
		}
	}
	return items, len(items), nil
}

func (f *fakeReviewRepo) UpdateDecision(_ context.Context, id string, status models.ReviewStatus, notes string) error {
	review, ok := f.reviews[id]
	if !ok {
		return sql.ErrNoRows
	}
	review.ReviewStatus = status
	review.ReviewNotes = notes
	return nil
}

func (f *fakeReviewRepo) CancelPending(_ context.Context, requestID string) error {
	f.cancelled = append(f.cancelled, requestID)
	for _, review := range f.reviews {
		if review.RequestID == requestID && review.ReviewStatus.Actionable() {
			review.ReviewStatus = models.ReviewStatusCancelled
		}
	}
	return nil
}

type fakeReviewRequestRepo struct {
	request  *models.Request
	statuses []models.RequestStatus
}

func (f *fakeReviewRequestRepo) FindByID(context.Context, string) (*models.Request, error) {
	clone := *f.request
	return &clone, nil
}

func (f *fakeReviewRequestRepo) UpdateStatus(_ context.Context, _ string, status models.RequestStatus) error {
	f.statuses = append(f.statuses, status)
	f.request.Status = status
	return nil
}

type fakeReviewerLister struct {
	users []models.User
}

func (f *fakeReviewerLister) ListReviewers(context.Context) ([]models.User, error) {
	return f.users, nil
}

func pendingReview(id, requestID, reviewerID string, level int) models.RequestReview {
	return models.RequestReview{
		ID:             id,
		RequestID:      requestID,
		ReviewerUserID: reviewerID,
		ReviewLevel:    level,
		ReviewStatus:   models.ReviewStatusPending,
	}
}

func newReviewService(reviews *fakeReviewRepo, requests *fakeReviewRequestRepo, shortCircuit bool) *ReviewService {
	return NewReviewService(reviews, requests, &stubAuditWriter{}, nil, nil, nil, ReviewConfig{ShortCircuit: shortCircuit})
}

func reviewerClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Permissions: models.Permissions{IsReviewer: true}}
}

func TestPoolAssignmentPolicy_SkipsRequesterAndOrders(t *testing.T) {
	users := &fakeReviewerLister{users: []models.User{
		{ID: "user-c"},
		{ID: "user-a"},
		{ID: "user-b"},
	}}
	policy := NewPoolAssignmentPolicy(users)

	assignments, err := policy.Assignments(context.Background(), &models.Request{UserID: "user-b"})
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.Equal(t, "user-a", assignments[0].UserID)
	assert.Equal(t, "user-c", assignments[1].UserID)
	assert.Equal(t, 1, assignments[0].Level)
	assert.Equal(t, 1, assignments[0].Order)
	assert.Equal(t, 2, assignments[1].Order)
}

func TestReviewServiceStartReview_EmptyRosterDoesNotStart(t *testing.T) {
	reviews := newFakeReviewRepo()
	svc := newReviewService(reviews, &fakeReviewRequestRepo{}, true)

	started, err := svc.StartReview(context.Background(), &models.Request{ID: "req-1"}, nil)
	require.NoError(t, err)
	assert.False(t, started)
	assert.Empty(t, reviews.reviews)
}

func TestReviewServiceDecide_RejectsForeignReview(t *testing.T) {
	reviews := newFakeReviewRepo(pendingReview("rev-1", "req-1", "user-a", 1))
	svc := newReviewService(reviews, &fakeReviewRequestRepo{request: &models.Request{ID: "req-1", Status: models.RequestStatusInReview}}, true)

	_, err := svc.Decide(context.Background(), reviewerClaims("user-b"), "rev-1", dto.ReviewDecisionRequest{Decision: models.ReviewStatusApproved})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReviewServiceDecide_RefusesResolvedReview(t *testing.T) {
	row := pendingReview("rev-1", "req-1", "user-a", 1)
	row.ReviewStatus = models.ReviewStatusApproved
	reviews := newFakeReviewRepo(row)
	svc := newReviewService(reviews, &fakeReviewRequestRepo{request: &models.Request{ID: "req-1", Status: models.RequestStatusInReview}}, true)

	_, err := svc.Decide(context.Background(), reviewerClaims("user-a"), "rev-1", dto.ReviewDecisionRequest{Decision: models.ReviewStatusRejected})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestReviewServiceDecide_LocksLaterLevelsUntilEarlierResolve(t *testing.T) {
	reviews := newFakeReviewRepo(
		pendingReview("rev-1", "req-1", "user-a", 1),
		pendingReview("rev-2", "req-1", "user-b", 2),
	)
	svc := newReviewService(reviews, &fakeReviewRequestRepo{request: &models.Request{ID: "req-1", Status: models.RequestStatusInReview}}, true)

	_, err := svc.Decide(context.Background(), reviewerClaims("user-b"), "rev-2", dto.ReviewDecisionRequest{Decision: models.ReviewStatusApproved})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestReviewServiceDecide_AllApprovalsApproveRequest(t *testing.T) {
	reviews := newFakeReviewRepo(
		pendingReview("rev-1", "req-1", "user-a", 1),
		pendingReview("rev-2", "req-1", "user-b", 1),
	)
	requests := &fakeReviewRequestRepo{request: &models.Request{ID: "req-1", Status: models.RequestStatusInReview}}
	svc := newReviewService(reviews, requests, true)

	_, err := svc.Decide(context.Background(), reviewerClaims("user-a"), "rev-1", dto.ReviewDecisionRequest{Decision: models.ReviewStatusApproved})
	require.NoError(t, err)
	// One approval of two: the request stays in review.
	assert.Empty(t, requests.statuses)

	_, err = svc.Decide(context.Background(), reviewerClaims("user-b"), "rev-2", dto.ReviewDecisionRequest{Decision: models.ReviewStatusApproved})
	require.NoError(t, err)
	assert.Equal(t, []models.RequestStatus{models.RequestStatusApproved}, requests.statuses)
}

func TestReviewServiceDecide_ShortCircuitRejectionSettlesImmediately(t *testing.T) {
	reviews := newFakeReviewRepo(
		pendingReview("rev-1", "req-1", "user-a", 1),
		pendingReview("rev-2", "req-1", "user-b", 1),
	)
	requests := &fakeReviewRequestRepo{request: &models.Request{ID: "req-1", Status: models.RequestStatusInReview}}
	svc := newReviewService(reviews, requests, true)

	_, err := svc.Decide(context.Background(), reviewerClaims("user-a"), "rev-1", dto.ReviewDecisionRequest{Decision: models.ReviewStatusRejected, Notes: "out of scope"})
	require.NoError(t, err)

	assert.Equal(t, []models.RequestStatus{models.RequestStatusRejected}, requests.statuses)
	// The sibling's open row is reaped once the outcome settles.
	assert.Equal(t, []string{"req-1"}, reviews.cancelled)
	assert.Equal(t, models.ReviewStatusCancelled, reviews.reviews["rev-2"].ReviewStatus)
}

func TestReviewServiceDecide_WithoutShortCircuitWaitsForFullLevel(t *testing.T) {
	reviews := newFakeReviewRepo(
		pendingReview("rev-1", "req-1", "user-a", 1),
		pendingReview("rev-2", "req-1", "user-b", 1),
	)
	requests := &fakeReviewRequestRepo{request: &models.Request{ID: "req-1", Status: models.RequestStatusInReview}}
	svc := newReviewService(reviews, requests, false)

	_, err := svc.Decide(context.Background(), reviewerClaims("user-a"), "rev-1", dto.ReviewDecisionRequest{Decision: models.ReviewStatusRejected})
	require.NoError(t, err)
	// Without short-circuit the level must fully resolve first.
	assert.Empty(t, requests.statuses)

	_, err = svc.Decide(context.Background(), reviewerClaims("user-b"), "rev-2", dto.ReviewDecisionRequest{Decision: models.ReviewStatusApproved})
	require.NoError(t, err)
	assert.Equal(t, []models.RequestStatus{models.RequestStatusRejected}, requests.statuses)
}

func TestReviewServiceDecide_ChangesRequestedReopensForRequester(t *testing.T) {
	reviews := newFakeReviewRepo(pendingReview("rev-1", "req-1", "user-a", 1))
	requests := &fakeReviewRequestRepo{request: &models.Request{ID: "req-1", Status: models.RequestStatusInReview}}
	svc := newReviewService(reviews, requests, true)

	_, err := svc.Decide(context.Background(), reviewerClaims("user-a"), "rev-1", dto.ReviewDecisionRequest{Decision: models.ReviewStatusChangesRequested, Notes: "narrow the period"})
	require.NoError(t, err)
	assert.Equal(t, []models.RequestStatus{models.RequestStatusChangesRequested}, requests.statuses)
}

func TestReviewServiceDecide_InProgressDoesNotRecompute(t *testing.T) {
	reviews := newFakeReviewRepo(pendingReview("rev-1", "req-1", "user-a", 1))
	requests := &fakeReviewRequestRepo{request: &models.Request{ID: "req-1", Status: models.RequestStatusInReview}}
	svc := newReviewService(reviews, requests, true)

	review, err := svc.Decide(context.Background(), reviewerClaims("user-a"), "rev-1", dto.ReviewDecisionRequest{Decision: models.ReviewStatusInProgress})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusInProgress, review.ReviewStatus)
	assert.Empty(t, requests.statuses)
}

func TestReviewServiceMyReviews_FlagsActionableByActiveLevel(t *testing.T) {
	level1 := pendingReview("rev-1", "req-1", "user-a", 1)
	level2 := pendingReview("rev-2", "req-1", "user-a", 2)
	reviews := newFakeReviewRepo(level1, level2)
	svc := newReviewService(reviews, &fakeReviewRequestRepo{request: &models.Request{ID: "req-1", Status: models.RequestStatusInReview}}, true)

	items, total, err := svc.MyReviews(context.Background(), reviewerClaims("user-a"), dto.ReviewFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	actionable := map[string]bool{}
	for _, item := range items {
		actionable[item.ID] = item.Actionable
	}
	assert.True(t, actionable["rev-1"])
	assert.False(t, actionable["rev-2"])
}

func TestAggregateReviewStatus_IsIdempotent(t *testing.T) {
	rows := []models.RequestReview{
		{ReviewStatus: models.ReviewStatusApproved, ReviewLevel: 1},
		{ReviewStatus: models.ReviewStatusRejected, ReviewLevel: 1},
		{ReviewStatus: models.ReviewStatusPending, ReviewLevel: 2},
	}
	first := models.AggregateReviewStatus(rows, true)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, models.AggregateReviewStatus(rows, true))
	}
	assert.Equal(t, models.RequestStatusRejected, first)
}
