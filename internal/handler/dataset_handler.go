package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ndip-rw/data-portal-api/internal/dto"
	"github.com/ndip-rw/data-portal-api/internal/models"
	"github.com/ndip-rw/data-portal-api/internal/service"
	appErrors "github.com/ndip-rw/data-portal-api/pkg/errors"
	"github.com/ndip-rw/data-portal-api/pkg/response"
)

// DatasetHandler serves the dataset catalog, criteria schemas and the
// administrative-area options endpoint.
type DatasetHandler struct {
	datasets *service.DatasetService
	schemas  *service.SchemaService
}

// NewDatasetHandler creates a new handler.
func NewDatasetHandler(datasets *service.DatasetService, schemas *service.SchemaService) *DatasetHandler {
	return &DatasetHandler{datasets: datasets, schemas: schemas}
}

// List godoc
// @Summary List datasets
// @Description Browse the dataset catalog
// @Tags Datasets
// @Produce json
// @Param category_id query string false "Category filter"
// @Param search query string false "Name or description search"
// @Param include_inactive query bool false "Include deactivated datasets (requires configureDatasets)"
// @Success 200 {object} response.Envelope
// @Router /datasets [get]
func (h *DatasetHandler) List(c *gin.Context) {
	page, pageSize := parsePagination(c)
	filter := models.DatasetFilter{
		CategoryID:      c.Query("category_id"),
		Search:          c.Query("search"),
		IncludeInactive: c.Query("include_inactive") == "true",
		Page:            page,
		PageSize:        pageSize,
	}

	datasets, total, err := h.datasets.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, datasets, paginationMeta(page, pageSize, total))
}

// Get godoc
// @Summary Get dataset
// @Tags Datasets
// @Produce json
// @Param id path string true "Dataset id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /datasets/{id} [get]
func (h *DatasetHandler) Get(c *gin.Context) {
	dataset, err := h.datasets.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dataset, nil)
}

// Categories godoc
// @Summary List dataset categories
// @Tags Datasets
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dataset-categories [get]
func (h *DatasetHandler) Categories(c *gin.Context) {
	categories, err := h.datasets.Categories(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, categories, nil)
}

// Schema godoc
// @Summary Get dataset criteria schema
// @Description Criteria form schema derived from the dataset's flags
// @Tags Datasets
// @Produce json
// @Param id path string true "Dataset id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /datasets/{id}/schema [get]
func (h *DatasetHandler) Schema(c *gin.Context) {
	schema, err := h.schemas.GetCriteriaSchema(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schema, nil)
}

// AdminAreas godoc
// @Summary List administrative areas
// @Description Cascading area options scoped by selected parents. Parents come
// @Description from the parent param, or from the per-level selection params
// @Description (province, district, sector, cell) when parent is omitted.
// @Tags Datasets
// @Produce json
// @Param level query string true "province|district|sector|cell|village"
// @Param parent query string false "Comma separated parent area ids"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin-areas [get]
func (h *DatasetHandler) AdminAreas(c *gin.Context) {
	level := models.AdminLevel(c.Query("level"))
	parents := splitList(c.Query("parent"))
	if len(parents) == 0 {
		selection := models.AdminSelection{}
		for _, l := range models.AdminLevels {
			if values := splitList(c.Query(string(l))); len(values) > 0 {
				selection = selection.Apply(l, values)
			}
		}
		// Scope by the deepest selection strictly above the requested level.
		if _, values := selection.Apply(level, nil).Narrowest(); len(values) > 0 {
			parents = values
		}
	}

	areas, err := h.schemas.AdminAreaOptions(c.Request.Context(), level, parents)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, areas, nil)
}

// Create godoc
// @Summary Create dataset
// @Tags Datasets
// @Accept json
// @Produce json
// @Param payload body dto.UpsertDatasetRequest true "Dataset definition"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /datasets [post]
func (h *DatasetHandler) Create(c *gin.Context) {
	var req dto.UpsertDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid dataset payload"))
		return
	}

	dataset, err := h.datasets.Create(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dataset)
}

// Update godoc
// @Summary Update dataset
// @Tags Datasets
// @Accept json
// @Produce json
// @Param id path string true "Dataset id"
// @Param payload body dto.UpsertDatasetRequest true "Dataset definition"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /datasets/{id} [put]
func (h *DatasetHandler) Update(c *gin.Context) {
	var req dto.UpsertDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid dataset payload"))
		return
	}

	dataset, err := h.datasets.Update(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dataset, nil)
}

// Deactivate godoc
// @Summary Deactivate dataset
// @Description Soft-delete: existing requests keep referencing the dataset
// @Tags Datasets
// @Produce json
// @Param id path string true "Dataset id"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /datasets/{id} [delete]
func (h *DatasetHandler) Deactivate(c *gin.Context) {
	if err := h.datasets.Deactivate(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
