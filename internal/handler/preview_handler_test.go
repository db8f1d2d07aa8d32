package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndip-rw/data-portal-api/internal/models"
)

type fakePreviewSrv struct {
	result *models.PreviewResult
	cached bool
	err    error
	last   struct {
		datasetID string
		criteria  models.CriteriaValues
	}
}

func (f *fakePreviewSrv) Preview(_ context.Context, datasetID string, criteria models.CriteriaValues) (*models.PreviewResult, bool, error) {
	f.last.datasetID = datasetID
	f.last.criteria = criteria
	return f.result, f.cached, f.err
}

func TestPreviewHandlerRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewPreviewHandler(&fakePreviewSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/datasets/ds-1/preview", strings.NewReader("{"))
	c.Params = gin.Params{{Key: "id", Value: "ds-1"}}

	handler.Preview(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewHandlerDecodesTaggedCriteria(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakePreviewSrv{
		result: &models.PreviewResult{TotalRows: 42, ColumnNames: []string{"upi", "date"}},
		cached: true,
	}
	handler := NewPreviewHandler(service)

	body := `{"criteria":{"period":{"type":"dateRange","from":"2026-01-01T00:00:00Z","to":"2026-03-31T00:00:00Z"}}}`
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/datasets/ds-1/preview", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "ds-1"}}

	handler.Preview(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ds-1", service.last.datasetID)

	period, ok := service.last.criteria["period"]
	require.True(t, ok)
	assert.Equal(t, models.CriteriaTypeDateRange, period.Type)
	require.NotNil(t, period.DateRange)
	assert.Equal(t, 2026, period.DateRange.From.Year())

	var envelope struct {
		Data models.PreviewResult   `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 42, envelope.Data.TotalRows)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
}
