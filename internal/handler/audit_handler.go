package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ndip-rw/data-portal-api/internal/models"
	"github.com/ndip-rw/data-portal-api/internal/service"
	"github.com/ndip-rw/data-portal-api/pkg/response"
)

// AuditHandler exposes the audit trail to administrators.
type AuditHandler struct {
	audits *service.AuditService
}

// NewAuditHandler creates a new handler.
func NewAuditHandler(audits *service.AuditService) *AuditHandler {
	return &AuditHandler{audits: audits}
}

// List godoc
// @Summary List audit logs
// @Tags Audit
// @Produce json
// @Param user_id query string false "Actor filter"
// @Param action query string false "Action filter"
// @Param resource query string false "Resource filter"
// @Success 200 {object} response.Envelope
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	page, pageSize := parsePagination(c)
	filter := models.AuditFilter{
		UserID:   c.Query("user_id"),
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
		Page:     page,
		PageSize: pageSize,
	}

	logs, total, err := h.audits.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, paginationMeta(page, pageSize, total))
}
