package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ndip-rw/data-portal-api/internal/models"
	appErrors "github.com/ndip-rw/data-portal-api/pkg/errors"
)

type previewDatasetRepository interface {
	FindByID(ctx context.Context, id string) (*models.Dataset, error)
}

type previewCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type previewBackend interface {
	Preview(ctx context.Context, datasetID string, criteria models.CriteriaValues, limit int) (*models.PreviewResult, error)
}

// PreviewConfig tunes the bounded sample behaviour.
type PreviewConfig struct {
	SampleSize int
	CacheTTL   time.Duration
}

// PreviewService validates criteria and serves bounded data samples from the
// query backend, caching results per exact criteria set.
type PreviewService struct {
	datasets previewDatasetRepository
	cache    previewCache
	backend  previewBackend
	metrics  *MetricsService
	logger   *zap.Logger
	config   PreviewConfig
}

// NewPreviewService constructs a PreviewService.
func NewPreviewService(datasets previewDatasetRepository, cache previewCache, backend previewBackend, metrics *MetricsService, logger *zap.Logger, config PreviewConfig) *PreviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.SampleSize <= 0 {
		config.SampleSize = 5
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 2 * time.Minute
	}
	return &PreviewService{datasets: datasets, cache: cache, backend: backend, metrics: metrics, logger: logger, config: config}
}

// Preview re-validates the supplied criteria against the dataset's schema and
// returns a bounded sample. Incomplete criteria is an expected outcome and maps
// to INCOMPLETE_CRITERIA with the missing keys in the error metadata. The cache
// key covers the full criteria payload, so any edited value produces a fresh
// sample. The bool result reports whether the sample came from cache.
func (s *PreviewService) Preview(ctx context.Context, datasetID string, criteria models.CriteriaValues) (*models.PreviewResult, bool, error) {
	dataset, err := s.datasets.FindByID(ctx, datasetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "dataset not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dataset")
	}
	if !dataset.Active() {
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, "dataset is no longer available")
	}

	schema := models.BuildCriteriaSchema(dataset.CriteriaFlags)
	validation := models.ValidateCriteriaValues(schema, criteria)
	if !validation.OK {
		s.metrics.RecordPreview("rejected")
		return nil, false, appErrors.WithMeta(appErrors.ErrIncompleteCriteria, map[string]interface{}{
			"missing_keys": validation.MissingKeys,
		})
	}

	key, err := s.cacheKey(datasetID, criteria)
	if err == nil && s.cache != nil {
		start := time.Now()
		var cached models.PreviewResult
		if cacheErr := s.cache.Get(ctx, key, &cached); cacheErr == nil {
			s.metrics.RecordCacheOperation(true, time.Since(start))
			s.metrics.RecordPreview("cached")
			return &cached, true, nil
		}
		s.metrics.RecordCacheOperation(false, time.Since(start))
	}

	result, err := s.backend.Preview(ctx, datasetID, criteria, s.config.SampleSize)
	if err != nil {
		s.metrics.RecordPreview("failed")
		return nil, false, err
	}

	if len(result.PreviewRows) > s.config.SampleSize {
		result.PreviewRows = result.PreviewRows[:s.config.SampleSize]
	}

	if s.cache != nil && key != "" {
		if cacheErr := s.cache.Set(ctx, key, result, s.config.CacheTTL); cacheErr != nil {
			s.logger.Warn("failed to cache preview", zap.String("dataset_id", datasetID), zap.Error(cacheErr))
		}
	}

	s.metrics.RecordPreview("served")
	return result, false, nil
}

func (s *PreviewService) cacheKey(datasetID string, criteria models.CriteriaValues) (string, error) {
	payload, err := json.Marshal(criteria)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("preview:%s:%s", datasetID, hex.EncodeToString(sum[:])), nil
}
