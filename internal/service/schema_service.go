package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/ndip-rw/data-portal-api/internal/models"
	appErrors "github.com/ndip-rw/data-portal-api/pkg/errors"
)

type schemaDatasetRepository interface {
	FindByID(ctx context.Context, id string) (*models.Dataset, error)
	ListAdminAreas(ctx context.Context, level models.AdminLevel, parentIDs []string) ([]models.AdminArea, error)
}

// Static option sets resolved in-process. Administrative areas are the only
// source that needs the database (the hierarchy is large and cascaded).
var (
	userLevelOptions = []models.Option{
		{Value: "citizen", Label: "Citizen"},
		{Value: "notary", Label: "Notary"},
		{Value: "institution", Label: "Institution"},
		{Value: "government", Label: "Government agency"},
	}
	transactionTypeOptions = []models.Option{
		{Value: "transfer", Label: "Transfer"},
		{Value: "mortgage", Label: "Mortgage"},
		{Value: "subdivision", Label: "Subdivision"},
		{Value: "merge", Label: "Merge"},
		{Value: "succession", Label: "Succession"},
	}
	landUseOptions = []models.Option{
		{Value: "residential", Label: "Residential"},
		{Value: "agricultural", Label: "Agricultural"},
		{Value: "commercial", Label: "Commercial"},
		{Value: "industrial", Label: "Industrial"},
		{Value: "forestry", Label: "Forestry"},
	}
)

// SchemaService serves per-dataset criteria schemas and the cascading
// administrative-area options.
type SchemaService struct {
	datasets schemaDatasetRepository
	logger   *zap.Logger
}

// NewSchemaService constructs a SchemaService.
func NewSchemaService(datasets schemaDatasetRepository, logger *zap.Logger) *SchemaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaService{datasets: datasets, logger: logger}
}

// GetCriteriaSchema derives the criteria form schema from the dataset's flags
// and resolves static option sets inline. Admin-area options stay behind their
// own endpoint because they cascade.
func (s *SchemaService) GetCriteriaSchema(ctx context.Context, datasetID string) ([]models.CriteriaField, error) {
	dataset, err := s.datasets.FindByID(ctx, datasetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "dataset not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dataset")
	}
	if !dataset.Active() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "dataset is no longer available")
	}

	schema := models.BuildCriteriaSchema(dataset.CriteriaFlags)
	for i := range schema {
		switch schema[i].OptionsSource {
		case models.OptionsSourceUserLevels:
			schema[i].Options = userLevelOptions
		case models.OptionsSourceTransactionTypes:
			schema[i].Options = transactionTypeOptions
		case models.OptionsSourceLandUses:
			schema[i].Options = landUseOptions
		}
	}
	return schema, nil
}

// AdminAreaOptions lists areas at one level, scoped by the parents selected at
// the level above. Selecting new parents re-queries with the narrowed scope, so
// stale child options never survive a parent change.
func (s *SchemaService) AdminAreaOptions(ctx context.Context, level models.AdminLevel, parentIDs []string) ([]models.AdminArea, error) {
	if !models.ValidAdminLevel(level) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown administrative level")
	}
	areas, err := s.datasets.ListAdminAreas(ctx, level, parentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list administrative areas")
	}
	return areas, nil
}
