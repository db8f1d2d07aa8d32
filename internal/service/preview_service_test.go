package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndip-rw/data-portal-api/internal/models"
	appErrors "github.com/ndip-rw/data-portal-api/pkg/errors"
)

type fakePreviewCache struct {
	entries map[string]interface{}
	sets    int
}

func (f *fakePreviewCache) Get(_ context.Context, key string, dest interface{}) error {
	value, ok := f.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*(dest.(*models.PreviewResult)) = *(value.(*models.PreviewResult))
	return nil
}

func (f *fakePreviewCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if f.entries == nil {
		f.entries = map[string]interface{}{}
	}
	f.sets++
	result := *(value.(*models.PreviewResult))
	f.entries[key] = &result
	return nil
}

type fakePreviewBackend struct {
	result *models.PreviewResult
	err    error
	calls  int
}

func (f *fakePreviewBackend) Preview(context.Context, string, models.CriteriaValues, int) (*models.PreviewResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	clone := *f.result
	return &clone, nil
}

func completeCriteria() models.CriteriaValues {
	now := time.Now()
	return models.CriteriaValues{"period": periodValue(now.AddDate(0, -1, 0), now)}
}

func TestPreviewService_RejectsIncompleteCriteria(t *testing.T) {
	datasets := &fakeDatasetReader{datasets: map[string]*models.Dataset{"ds-1": approvalDataset("ds-1")}}
	svc := NewPreviewService(datasets, nil, &fakePreviewBackend{}, nil, nil, PreviewConfig{})

	_, _, err := svc.Preview(context.Background(), "ds-1", models.CriteriaValues{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrIncompleteCriteria.Code, appErr.Code)
	assert.Equal(t, []string{"period"}, appErr.Meta["missing_keys"])
}

func TestPreviewService_WrongTypeCountsAsMissing(t *testing.T) {
	datasets := &fakeDatasetReader{datasets: map[string]*models.Dataset{"ds-1": approvalDataset("ds-1")}}
	svc := NewPreviewService(datasets, nil, &fakePreviewBackend{}, nil, nil, PreviewConfig{})

	criteria := models.CriteriaValues{"period": {Type: models.CriteriaTypeText, Text: "last month"}}
	_, _, err := svc.Preview(context.Background(), "ds-1", criteria)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIncompleteCriteria.Code, appErrors.FromError(err).Code)
}

func TestPreviewService_TruncatesToSampleSize(t *testing.T) {
	datasets := &fakeDatasetReader{datasets: map[string]*models.Dataset{"ds-1": approvalDataset("ds-1")}}
	backend := &fakePreviewBackend{result: &models.PreviewResult{
		TotalRows:   100,
		PreviewRows: make([]models.PreviewRow, 10),
	}}
	svc := NewPreviewService(datasets, nil, backend, nil, nil, PreviewConfig{SampleSize: 3})

	result, cached, err := svc.Preview(context.Background(), "ds-1", completeCriteria())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, result.PreviewRows, 3)
	assert.Equal(t, 100, result.TotalRows)
}

func TestPreviewService_ServesSecondIdenticalQueryFromCache(t *testing.T) {
	datasets := &fakeDatasetReader{datasets: map[string]*models.Dataset{"ds-1": approvalDataset("ds-1")}}
	backend := &fakePreviewBackend{result: &models.PreviewResult{TotalRows: 7}}
	cache := &fakePreviewCache{}
	svc := NewPreviewService(datasets, cache, backend, nil, nil, PreviewConfig{})

	criteria := completeCriteria()
	_, cached, err := svc.Preview(context.Background(), "ds-1", criteria)
	require.NoError(t, err)
	assert.False(t, cached)

	result, cached, err := svc.Preview(context.Background(), "ds-1", criteria)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 7, result.TotalRows)
	assert.Equal(t, 1, backend.calls)
}

func TestPreviewService_EditedCriteriaBypassesCache(t *testing.T) {
	datasets := &fakeDatasetReader{datasets: map[string]*models.Dataset{"ds-1": approvalDataset("ds-1")}}
	backend := &fakePreviewBackend{result: &models.PreviewResult{TotalRows: 7}}
	cache := &fakePreviewCache{}
	svc := NewPreviewService(datasets, cache, backend, nil, nil, PreviewConfig{})

	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	first := models.CriteriaValues{"period": periodValue(now.AddDate(0, -1, 0), now)}
	second := models.CriteriaValues{"period": periodValue(now.AddDate(0, -2, 0), now)}

	_, _, err := svc.Preview(context.Background(), "ds-1", first)
	require.NoError(t, err)
	_, cached, err := svc.Preview(context.Background(), "ds-1", second)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, backend.calls)
}

func TestPreviewService_InactiveDatasetIsNotFound(t *testing.T) {
	deactivated := time.Now()
	dataset := approvalDataset("ds-1")
	dataset.DeactivatedAt = &deactivated
	datasets := &fakeDatasetReader{datasets: map[string]*models.Dataset{"ds-1": dataset}}
	svc := NewPreviewService(datasets, nil, &fakePreviewBackend{}, nil, nil, PreviewConfig{})

	_, _, err := svc.Preview(context.Background(), "ds-1", completeCriteria())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPreviewService_BackendFailurePropagates(t *testing.T) {
	datasets := &fakeDatasetReader{datasets: map[string]*models.Dataset{"ds-1": approvalDataset("ds-1")}}
	backend := &fakePreviewBackend{err: appErrors.Clone(appErrors.ErrBackendUnavailable, "")}
	svc := NewPreviewService(datasets, nil, backend, nil, nil, PreviewConfig{})

	_, _, err := svc.Preview(context.Background(), "ds-1", completeCriteria())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBackendUnavailable.Code, appErrors.FromError(err).Code)
}
