package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ndip-rw/data-portal-api/internal/dto"
	"github.com/ndip-rw/data-portal-api/internal/middleware"
	"github.com/ndip-rw/data-portal-api/internal/models"
	appErrors "github.com/ndip-rw/data-portal-api/pkg/errors"
	"github.com/ndip-rw/data-portal-api/pkg/response"
)

type previewService interface {
	Preview(ctx context.Context, datasetID string, criteria models.CriteriaValues) (*models.PreviewResult, bool, error)
}

// PreviewHandler serves bounded dataset samples.
type PreviewHandler struct {
	previews previewService
}

// NewPreviewHandler creates a new handler.
func NewPreviewHandler(previews previewService) *PreviewHandler {
	return &PreviewHandler{previews: previews}
}

// Preview godoc
// @Summary Preview dataset sample
// @Description Validate criteria and return a bounded sample from the query backend
// @Tags Previews
// @Accept json
// @Produce json
// @Param id path string true "Dataset id"
// @Param payload body dto.PreviewRequest true "Criteria values"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /datasets/{id}/preview [post]
func (h *PreviewHandler) Preview(c *gin.Context) {
	var req dto.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid preview payload"))
		return
	}

	result, cached, err := h.previews.Preview(c.Request.Context(), c.Param("id"), req.Criteria)
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}
