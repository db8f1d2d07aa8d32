package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ndip-rw/data-portal-api/internal/dto"
	"github.com/ndip-rw/data-portal-api/internal/models"
	appErrors "github.com/ndip-rw/data-portal-api/pkg/errors"
)

type requestRepository interface {
	NextRequestNumber(ctx context.Context) (string, error)
	Create(ctx context.Context, request *models.Request) error
	FindByID(ctx context.Context, id string) (*models.Request, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.Request, int, error)
	Update(ctx context.Context, request *models.Request) error
	UpdateStatus(ctx context.Context, id string, status models.RequestStatus) error
	Delete(ctx context.Context, id string) error
}

type requestDatasetReader interface {
	FindByID(ctx context.Context, id string) (*models.Dataset, error)
}

type reviewStarter interface {
	StartReview(ctx context.Context, request *models.Request, assignments []models.ReviewerAssignment) (bool, error)
	CancelOpenReviews(ctx context.Context, requestID string) error
}

type resolvedReviewCounter interface {
	CountResolved(ctx context.Context, requestID string) (int, error)
}

// RequestService drives a request through its lifecycle: creation, editing,
// submission, deletion. Submission is guarded server-side against double
// triggering; client state is never trusted for that.
type RequestService struct {
	repo      requestRepository
	datasets  requestDatasetReader
	reviews   reviewStarter
	resolved  resolvedReviewCounter
	policy    AssignmentPolicy
	audit     auditWriter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewRequestService constructs a RequestService.
func NewRequestService(repo requestRepository, datasets requestDatasetReader, reviews reviewStarter, resolved resolvedReviewCounter, policy AssignmentPolicy, audit auditWriter, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RequestService{
		repo:      repo,
		datasets:  datasets,
		reviews:   reviews,
		resolved:  resolved,
		policy:    policy,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		inFlight:  make(map[string]struct{}),
	}
}

// Create opens a new request. With draft=true incomplete criteria are saved
// as-is; otherwise every required criteria field must be complete and the
// request lands in pending.
func (s *RequestService) Create(ctx context.Context, claims *models.JWTClaims, req dto.CreateRequestRequest) (*models.Request, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	if !models.ValidPriority(priority) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown priority")
	}

	selections, err := s.resolveSelections(ctx, req.Datasets, req.Recurring, !req.Draft)
	if err != nil {
		return nil, err
	}

	number, err := s.repo.NextRequestNumber(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate request number")
	}

	status := models.RequestStatusPending
	if req.Draft {
		status = models.RequestStatusDraft
	}
	request := &models.Request{
		RequestNumber: number,
		Title:         req.Title,
		Description:   req.Description,
		Priority:      priority,
		UserID:        claims.UserID,
		Status:        status,
		Recurring:     req.Recurring,
		Datasets:      selections,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}

	s.recordAudit(ctx, claims, models.AuditActionRequestCreate, request.ID, nil, request)
	return request, nil
}

// Get loads a request, enforcing visibility: owners always see their own,
// everyone else needs viewAllRequests.
func (s *RequestService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Request, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanViewRequest(claims.UserID, claims.Permissions, request) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no access to this request")
	}
	return request, nil
}

// List returns the caller's own requests, or all requests when the caller has
// the viewAllRequests flag and did not scope the filter to themselves.
func (s *RequestService) List(ctx context.Context, claims *models.JWTClaims, filter models.RequestFilter) ([]models.Request, int, error) {
	if !claims.Permissions.Can(models.ActionViewAllRequests) {
		filter.UserID = claims.UserID
	}
	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return requests, total, nil
}

// Update patches an editable request. A non-nil dataset slice replaces the
// selection wholesale; reviews opened for the previous selection are voided on
// the next submission.
func (s *RequestService) Update(ctx context.Context, claims *models.JWTClaims, id string, req dto.UpdateRequestRequest) (*models.Request, error) {
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanEditRequest(claims.UserID, request) {
		return nil, appErrors.ErrNotEditable
	}

	before := *request
	if req.Title != nil {
		request.Title = *req.Title
	}
	if req.Description != nil {
		request.Description = *req.Description
	}
	if req.Priority != nil {
		if !models.ValidPriority(*req.Priority) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown priority")
		}
		request.Priority = *req.Priority
	}
	if req.Recurring != nil {
		request.Recurring = *req.Recurring
	}
	if req.Datasets != nil {
		selections, err := s.resolveSelections(ctx, req.Datasets, request.Recurring, request.Status != models.RequestStatusDraft)
		if err != nil {
			return nil, err
		}
		request.Datasets = selections
	}

	if err := s.repo.Update(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request")
	}

	s.recordAudit(ctx, claims, models.AuditActionRequestUpdate, request.ID, &before, request)
	return request, nil
}

// Delete removes a request that never entered review: owner only, draft or
// pending, zero resolved reviews.
func (s *RequestService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	request, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if request.UserID != claims.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the owner may delete a request")
	}
	if request.Status != models.RequestStatusDraft && request.Status != models.RequestStatusPending {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "only draft or pending requests can be deleted")
	}
	if s.resolved != nil {
		count, err := s.resolved.CountResolved(ctx, id)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check reviews")
		}
		if count > 0 {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "request already has recorded review decisions")
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete request")
	}
	s.recordAudit(ctx, claims, models.AuditActionRequestDelete, id, request, nil)
	return nil
}

// Submit moves a request into the review workflow. Auto-approval applies only
// when every selected dataset waives review for this requester; otherwise a
// fresh reviewer roster is consumed and the request enters in_review. A second
// submission while one is being processed is refused, regardless of what the
// client believes the current state is.
func (s *RequestService) Submit(ctx context.Context, claims *models.JWTClaims, id string) (*models.Request, error) {
	if !s.beginSubmission(id) {
		return nil, appErrors.ErrSubmissionInFlight
	}
	defer s.endSubmission(id)

	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanEditRequest(claims.UserID, request) {
		return nil, appErrors.ErrNotEditable
	}
	if len(request.Datasets) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "request has no dataset selections")
	}

	autoApprove := true
	missingByDataset := map[string]interface{}{}
	for _, selection := range request.Datasets {
		dataset, err := s.datasets.FindByID(ctx, selection.DatasetID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "request references an unknown dataset")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dataset")
		}
		if !dataset.Active() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "request references a deactivated dataset")
		}
		schema := models.BuildCriteriaSchema(dataset.CriteriaFlags)
		if result := models.ValidateCriteriaValues(schema, selection.Criteria); !result.OK {
			missingByDataset[selection.DatasetID] = result.MissingKeys
		}
		if dataset.RequiresApproval && !dataset.AutoApprovesRole(claims.Role) {
			autoApprove = false
		}
	}
	if len(missingByDataset) > 0 {
		return nil, appErrors.WithMeta(appErrors.ErrIncompleteCriteria, map[string]interface{}{
			"missing_keys": missingByDataset,
		})
	}

	// Resubmission voids any verdicts left over from the previous cycle.
	if request.Status == models.RequestStatusRejected || request.Status == models.RequestStatusChangesRequested {
		if err := s.reviews.CancelOpenReviews(ctx, request.ID); err != nil {
			return nil, err
		}
	}
	if request.Status != models.RequestStatusPending {
		if !models.CanTransition(request.Status, models.RequestStatusPending) {
			return nil, appErrors.ErrNotEditable
		}
		if err := s.repo.UpdateStatus(ctx, request.ID, models.RequestStatusPending); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request status")
		}
		request.Status = models.RequestStatusPending
	}

	final := models.RequestStatusPending
	if autoApprove {
		final = models.RequestStatusApproved
		if err := s.repo.UpdateStatus(ctx, request.ID, final); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve request")
		}
	} else {
		assignments, err := s.policy.Assignments(ctx, request)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve reviewer roster")
		}
		started, err := s.reviews.StartReview(ctx, request, assignments)
		if err != nil {
			return nil, err
		}
		if started {
			final = models.RequestStatusInReview
			if err := s.repo.UpdateStatus(ctx, request.ID, final); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request status")
			}
		}
	}
	request.Status = final

	s.metrics.RecordSubmission(final)
	s.recordAudit(ctx, claims, models.AuditActionRequestSubmit, request.ID, nil, map[string]interface{}{"status": final})
	return request, nil
}

func (s *RequestService) beginSubmission(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *RequestService) endSubmission(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}

// resolveSelections verifies dataset references and, when strict, criteria
// completeness. Incomplete criteria on a draft is fine; on anything else it is
// reported per dataset.
func (s *RequestService) resolveSelections(ctx context.Context, selections []dto.DatasetSelection, recurring, strict bool) ([]models.RequestDataset, error) {
	resolved := make([]models.RequestDataset, 0, len(selections))
	missingByDataset := map[string]interface{}{}
	for _, selection := range selections {
		dataset, err := s.datasets.FindByID(ctx, selection.DatasetID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "unknown dataset in selection")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dataset")
		}
		if !dataset.Active() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "dataset is no longer available")
		}
		if recurring && !dataset.AllowsRecurring {
			return nil, appErrors.Clone(appErrors.ErrValidation, "dataset does not allow recurring requests")
		}
		if strict {
			schema := models.BuildCriteriaSchema(dataset.CriteriaFlags)
			if result := models.ValidateCriteriaValues(schema, selection.Criteria); !result.OK {
				missingByDataset[selection.DatasetID] = result.MissingKeys
			}
		}
		criteria := selection.Criteria
		if criteria == nil {
			criteria = models.CriteriaValues{}
		}
		resolved = append(resolved, models.RequestDataset{
			DatasetID: selection.DatasetID,
			Criteria:  criteria,
		})
	}
	if len(missingByDataset) > 0 {
		return nil, appErrors.WithMeta(appErrors.ErrIncompleteCriteria, map[string]interface{}{
			"missing_keys": missingByDataset,
		})
	}
	return resolved, nil
}

func (s *RequestService) load(ctx context.Context, id string) (*models.Request, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return request, nil
}

func (s *RequestService) recordAudit(ctx context.Context, claims *models.JWTClaims, action, resourceID string, oldValue, newValue interface{}) {
	if s.audit == nil {
		return
	}
	var oldRaw, newRaw []byte
	if oldValue != nil {
		oldRaw, _ = json.Marshal(oldValue)
	}
	if newValue != nil {
		newRaw, _ = json.Marshal(newValue)
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     action,
		Resource:   "request",
		ResourceID: &resourceID,
		OldValues:  oldRaw,
		NewValues:  newRaw,
	}); err != nil {
		s.logger.Warn("failed to record request audit log", zap.String("action", action), zap.Error(err))
	}
}
