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

	"github.com/ndip-rw/data-portal-api/internal/dto"
	"github.com/ndip-rw/data-portal-api/internal/middleware"
	"github.com/ndip-rw/data-portal-api/internal/models"
	appErrors "github.com/ndip-rw/data-portal-api/pkg/errors"
)

type fakeReviewSrv struct {
	items      []dto.ReviewItem
	total      int
	listErr    error
	lastFilter dto.ReviewFilter

	decided    *models.RequestReview
	decideErr  error
	lastDecide struct {
		reviewID string
		req      dto.ReviewDecisionRequest
	}
}

func (f *fakeReviewSrv) MyReviews(_ context.Context, _ *models.JWTClaims, filter dto.ReviewFilter) ([]dto.ReviewItem, int, error) {
	f.lastFilter = filter
	return f.items, f.total, f.listErr
}

func (f *fakeReviewSrv) Decide(_ context.Context, _ *models.JWTClaims, reviewID string, req dto.ReviewDecisionRequest) (*models.RequestReview, error) {
	f.lastDecide.reviewID = reviewID
	f.lastDecide.req = req
	return f.decided, f.decideErr
}

func reviewerContext(rec *httptest.ResponseRecorder) (*gin.Context, *gin.Engine) {
	c, r := gin.CreateTestContext(rec)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "rev-1", Permissions: models.Permissions{IsReviewer: true}})
	return c, r
}

func TestReviewHandlerMyReviewsAppliesStatusFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeReviewSrv{items: []dto.ReviewItem{}, total: 0}
	handler := NewReviewHandler(service)

	rec := httptest.NewRecorder()
	c, _ := reviewerContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/reviews/my?status=pending&page=2&page_size=5", nil)

	handler.MyReviews(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, service.lastFilter.Status)
	assert.Equal(t, models.ReviewStatusPending, *service.lastFilter.Status)
	assert.Equal(t, 2, service.lastFilter.Page)
	assert.Equal(t, 5, service.lastFilter.PageSize)
}

func TestReviewHandlerMyReviewsPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeReviewSrv{
		items: []dto.ReviewItem{{RequestNumber: "REQ-2026-000001", Actionable: true}},
		total: 11,
	}
	handler := NewReviewHandler(service)

	rec := httptest.NewRecorder()
	c, _ := reviewerContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/reviews/my", nil)

	handler.MyReviews(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Pagination *models.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 11, envelope.Pagination.TotalCount)
	assert.Nil(t, service.lastFilter.Status)
}

func TestReviewHandlerDecideRejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReviewHandler(&fakeReviewSrv{})

	rec := httptest.NewRecorder()
	c, _ := reviewerContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/reviews/rev-1/decision", strings.NewReader("{not json"))
	c.Params = gin.Params{{Key: "id", Value: "rev-1"}}

	handler.Decide(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewHandlerDecideSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeReviewSrv{decided: &models.RequestReview{ID: "rev-1", ReviewStatus: models.ReviewStatusApproved}}
	handler := NewReviewHandler(service)

	body := `{"decision":"approved","notes":"looks complete"}`
	rec := httptest.NewRecorder()
	c, _ := reviewerContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/reviews/rev-1/decision", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "rev-1"}}

	handler.Decide(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rev-1", service.lastDecide.reviewID)
	assert.Equal(t, models.ReviewStatusApproved, service.lastDecide.req.Decision)
	assert.Equal(t, "looks complete", service.lastDecide.req.Notes)
}

func TestReviewHandlerDecideForwardsServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service := &fakeReviewSrv{decideErr: appErrors.Clone(appErrors.ErrForbidden, "not your review")}
	handler := NewReviewHandler(service)

	rec := httptest.NewRecorder()
	c, _ := reviewerContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/reviews/rev-2/decision", strings.NewReader(`{"decision":"approved"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "rev-2"}}

	handler.Decide(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
