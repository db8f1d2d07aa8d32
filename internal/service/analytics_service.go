package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ndip-rw/data-portal-api/internal/models"
	appErrors "github.com/ndip-rw/data-portal-api/pkg/errors"
)

type analyticsRepository interface {
	StatusCounts(ctx context.Context) (map[models.RequestStatus]int, error)
	PriorityCounts(ctx context.Context) (map[models.RequestPriority]int, error)
	DatasetDemand(ctx context.Context, limit int) ([]models.DatasetDemand, error)
	AutoApprovedCount(ctx context.Context) (int, error)
	ApprovedCount(ctx context.Context) (int, error)
}

type analyticsDatasetLister interface {
	List(ctx context.Context, filter models.DatasetFilter) ([]models.Dataset, int, error)
}

const analyticsCacheKey = "analytics:requests"

// AnalyticsConfig governs feature flagging and cache behaviour.
type AnalyticsConfig struct {
	Enabled  bool
	CacheTTL time.Duration
}

// AnalyticsService summarises workflow demand. Criteria-flag usage is derived
// from the same catalog the form engine renders from, so the two can never
// drift apart.
type AnalyticsService struct {
	repo     analyticsRepository
	datasets analyticsDatasetLister
	cache    previewCache
	metrics  *MetricsService
	logger   *zap.Logger
	config   AnalyticsConfig
}

// NewAnalyticsService constructs an AnalyticsService.
func NewAnalyticsService(repo analyticsRepository, datasets analyticsDatasetLister, cache previewCache, metrics *MetricsService, logger *zap.Logger, config AnalyticsConfig) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 10 * time.Minute
	}
	return &AnalyticsService{repo: repo, datasets: datasets, cache: cache, metrics: metrics, logger: logger, config: config}
}

// Enabled reports whether the analytics feature is switched on.
func (s *AnalyticsService) Enabled() bool {
	return s.config.Enabled
}

// RequestAnalytics builds (or serves from cache) the request workload summary.
func (s *AnalyticsService) RequestAnalytics(ctx context.Context) (*models.RequestAnalytics, error) {
	if !s.config.Enabled {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "analytics is disabled")
	}

	if s.cache != nil {
		start := time.Now()
		var cached models.RequestAnalytics
		if err := s.cache.Get(ctx, analyticsCacheKey, &cached); err == nil {
			s.metrics.RecordCacheOperation(true, time.Since(start))
			return &cached, nil
		}
		s.metrics.RecordCacheOperation(false, time.Since(start))
	}

	byStatus, err := s.repo.StatusCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count requests")
	}
	byPriority, err := s.repo.PriorityCounts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count priorities")
	}
	demand, err := s.repo.DatasetDemand(ctx, 10)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute dataset demand")
	}

	total := 0
	for _, count := range byStatus {
		total += count
	}

	approved, err := s.repo.ApprovedCount(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count approvals")
	}
	autoApproved, err := s.repo.AutoApprovedCount(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count auto approvals")
	}
	var autoRate float64
	if approved > 0 {
		autoRate = float64(autoApproved) / float64(approved)
	}

	flagUse, err := s.criteriaFlagUse(ctx)
	if err != nil {
		return nil, err
	}

	analytics := &models.RequestAnalytics{
		TotalRequests:    total,
		ByStatus:         byStatus,
		ByPriority:       byPriority,
		DatasetDemand:    demand,
		CriteriaFlagUse:  flagUse,
		AutoApprovedRate: autoRate,
		GeneratedAt:      time.Now().UTC(),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, analyticsCacheKey, analytics, s.config.CacheTTL); err != nil {
			s.logger.Warn("failed to cache analytics", zap.Error(err))
		}
	}
	return analytics, nil
}

// SystemMetrics returns the runtime metrics snapshot.
func (s *AnalyticsService) SystemMetrics() models.SystemMetrics {
	return s.metrics.Snapshot()
}

// criteriaFlagUse counts, per catalog flag, how many active datasets enable it.
func (s *AnalyticsService) criteriaFlagUse(ctx context.Context) (map[string]int, error) {
	datasets, _, err := s.datasets.List(ctx, models.DatasetFilter{PageSize: 100})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list datasets")
	}
	usage := map[string]int{}
	for _, dataset := range datasets {
		for flag, enabled := range models.CriteriaFlagUsage(dataset.CriteriaFlags) {
			if enabled {
				usage[flag]++
			} else if _, seen := usage[flag]; !seen {
				usage[flag] = 0
			}
		}
	}
	return usage, nil
}
