package dto

import "github.com/ndip-rw/data-portal-api/internal/models"

// DatasetSelection pairs a dataset with the criteria values supplied for it.
type DatasetSelection struct {
	DatasetID string                `json:"dataset_id" validate:"required"`
	Criteria  models.CriteriaValues `json:"criteria"`
}

// CreateRequestRequest is the payload for opening a new access request.
type CreateRequestRequest struct {
	Title       string                 `json:"title" validate:"required"`
	Description string                 `json:"description" validate:"required"`
	Priority    models.RequestPriority `json:"priority"`
	Recurring   bool                   `json:"recurring"`
	Draft       bool                   `json:"draft"`
	Datasets    []DatasetSelection     `json:"datasets" validate:"required,min=1,dive"`
}

// UpdateRequestRequest patches an editable request. Nil fields are untouched;
// a non-nil Datasets slice replaces the selection wholesale.
type UpdateRequestRequest struct {
	Title       *string                 `json:"title,omitempty"`
	Description *string                 `json:"description,omitempty"`
	Priority    *models.RequestPriority `json:"priority,omitempty"`
	Recurring   *bool                   `json:"recurring,omitempty"`
	Datasets    []DatasetSelection      `json:"datasets,omitempty"`
}

// RequestItem is a request row enriched for list responses.
type RequestItem struct {
	models.Request
	RequesterName string `db:"requester_name" json:"requester_name,omitempty"`
	DatasetCount  int    `db:"dataset_count" json:"dataset_count"`
}
