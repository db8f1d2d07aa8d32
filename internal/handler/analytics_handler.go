package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ndip-rw/data-portal-api/internal/service"
	"github.com/ndip-rw/data-portal-api/pkg/response"
)

// AnalyticsHandler serves aggregate request statistics and runtime metrics.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler creates a new handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Requests godoc
// @Summary Request analytics
// @Description Aggregate counts by status, priority, dataset demand and criteria flag usage
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /analytics/requests [get]
func (h *AnalyticsHandler) Requests(c *gin.Context) {
	analytics, err := h.analytics.RequestAnalytics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analytics, nil)
}

// System godoc
// @Summary System metrics snapshot
// @Description Runtime counters: cache hit ratio, request and query timings
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.analytics.SystemMetrics(), nil)
}
