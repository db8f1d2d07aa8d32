package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ndip-rw/data-portal-api/internal/dto"
	"github.com/ndip-rw/data-portal-api/internal/models"
	appErrors "github.com/ndip-rw/data-portal-api/pkg/errors"
)

type datasetRepository interface {
	FindByID(ctx context.Context, id string) (*models.Dataset, error)
	List(ctx context.Context, filter models.DatasetFilter) ([]models.Dataset, int, error)
	Create(ctx context.Context, dataset *models.Dataset) error
	Update(ctx context.Context, dataset *models.Dataset) error
	Deactivate(ctx context.Context, id string, at time.Time) error
	ListCategories(ctx context.Context) ([]models.DatasetCategory, error)
}

// DatasetService manages the dataset catalog. Mutations are gated at the route
// level by the configureDatasets flag and audited here.
type DatasetService struct {
	repo      datasetRepository
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDatasetService constructs a DatasetService.
func NewDatasetService(repo datasetRepository, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *DatasetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DatasetService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns catalog entries. Deactivated datasets are only included when
// the caller may configure datasets.
func (s *DatasetService) List(ctx context.Context, filter models.DatasetFilter, claims *models.JWTClaims) ([]models.Dataset, int, error) {
	if filter.IncludeInactive && (claims == nil || !claims.Permissions.Can(models.ActionConfigureDatasets)) {
		filter.IncludeInactive = false
	}
	datasets, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list datasets")
	}
	return datasets, total, nil
}

// Get loads one dataset.
func (s *DatasetService) Get(ctx context.Context, id string) (*models.Dataset, error) {
	dataset, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "dataset not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dataset")
	}
	return dataset, nil
}

// Categories lists the browsing categories.
func (s *DatasetService) Categories(ctx context.Context) ([]models.DatasetCategory, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list categories")
	}
	return categories, nil
}

// Create registers a new dataset definition.
func (s *DatasetService) Create(ctx context.Context, claims *models.JWTClaims, req dto.UpsertDatasetRequest) (*models.Dataset, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid dataset payload")
	}

	dataset := req.ToModel()
	if err := s.repo.Create(ctx, dataset); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create dataset")
	}

	s.recordAudit(ctx, claims, models.AuditActionDatasetCreate, dataset.ID, nil, dataset)
	return dataset, nil
}

// Update rewrites a dataset definition. Flag changes affect only future
// schema reads; stored request criteria keep the values they were captured with.
func (s *DatasetService) Update(ctx context.Context, claims *models.JWTClaims, id string, req dto.UpsertDatasetRequest) (*models.Dataset, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid dataset payload")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "dataset not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dataset")
	}

	dataset := req.ToModel()
	dataset.ID = existing.ID
	dataset.CreatedAt = existing.CreatedAt
	dataset.DeactivatedAt = existing.DeactivatedAt
	if err := s.repo.Update(ctx, dataset); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update dataset")
	}

	s.recordAudit(ctx, claims, models.AuditActionDatasetUpdate, dataset.ID, existing, dataset)
	return dataset, nil
}

// Deactivate soft-deletes a dataset. Existing requests keep referencing it;
// new requests and previews no longer see it.
func (s *DatasetService) Deactivate(ctx context.Context, claims *models.JWTClaims, id string) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "dataset not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dataset")
	}
	if !existing.Active() {
		return appErrors.Clone(appErrors.ErrConflict, "dataset is already deactivated")
	}

	if err := s.repo.Deactivate(ctx, id, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate dataset")
	}

	s.recordAudit(ctx, claims, models.AuditActionDatasetDeactivate, id, existing, nil)
	return nil
}

func (s *DatasetService) recordAudit(ctx context.Context, claims *models.JWTClaims, action, resourceID string, oldValue, newValue interface{}) {
	if s.audit == nil {
		return
	}
	var userID *string
	if claims != nil {
		userID = &claims.UserID
	}
	var oldRaw, newRaw []byte
	if oldValue != nil {
		oldRaw, _ = json.Marshal(oldValue)
	}
	if newValue != nil {
		newRaw, _ = json.Marshal(newValue)
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   "dataset",
		ResourceID: &resourceID,
		OldValues:  oldRaw,
		NewValues:  newRaw,
	}); err != nil {
		s.logger.Warn("failed to record dataset audit log", zap.String("action", action), zap.Error(err))
	}
}
