package dto

import "github.com/ndip-rw/data-portal-api/internal/models"

// PreviewRequest carries the criteria values to sample against a dataset.
type PreviewRequest struct {
	Criteria models.CriteriaValues `json:"criteria" validate:"required"`
}
