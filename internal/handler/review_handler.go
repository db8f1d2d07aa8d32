package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ndip-rw/data-portal-api/internal/dto"
	"github.com/ndip-rw/data-portal-api/internal/models"
	appErrors "github.com/ndip-rw/data-portal-api/pkg/errors"
	"github.com/ndip-rw/data-portal-api/pkg/response"
)

type reviewService interface {
	MyReviews(ctx context.Context, claims *models.JWTClaims, filter dto.ReviewFilter) ([]dto.ReviewItem, int, error)
	Decide(ctx context.Context, claims *models.JWTClaims, reviewID string, req dto.ReviewDecisionRequest) (*models.RequestReview, error)
}

// ReviewHandler exposes the reviewer work queue and decision recording.
type ReviewHandler struct {
	reviews reviewService
}

// NewReviewHandler creates a new handler.
func NewReviewHandler(reviews reviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// MyReviews godoc
// @Summary List my review assignments
// @Description Assignments for the current reviewer, flagged actionable once earlier levels resolve
// @Tags Reviews
// @Produce json
// @Param status query string false "Review status filter"
// @Success 200 {object} response.Envelope
// @Router /reviews/my [get]
func (h *ReviewHandler) MyReviews(c *gin.Context) {
	page, pageSize := parsePagination(c)
	filter := dto.ReviewFilter{Page: page, PageSize: pageSize}
	if raw := c.Query("status"); raw != "" {
		status := models.ReviewStatus(raw)
		filter.Status = &status
	}

	items, total, err := h.reviews.MyReviews(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, paginationMeta(page, pageSize, total))
}

// Decide godoc
// @Summary Record review decision
// @Description Record the reviewer's verdict; the request status is recomputed from all assignments
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Review id"
// @Param payload body dto.ReviewDecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /reviews/{id}/decision [post]
func (h *ReviewHandler) Decide(c *gin.Context) {
	var req dto.ReviewDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	review, err := h.reviews.Decide(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, review, nil)
}
