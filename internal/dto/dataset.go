package dto

import (
	"github.com/lib/pq"

	"github.com/ndip-rw/data-portal-api/internal/models"
)

// UpsertDatasetRequest creates or updates a dataset definition.
type UpsertDatasetRequest struct {
	Name                string   `json:"name" validate:"required"`
	Description         string   `json:"description" validate:"required"`
	CategoryID          string   `json:"category_id" validate:"required"`
	RequiresPeriod      bool     `json:"requires_period"`
	RequiresUpi         bool     `json:"requires_upi"`
	RequiresUpiList     bool     `json:"requires_upi_list"`
	RequiresIdList      bool     `json:"requires_id_list"`
	HasAdminLevel       bool     `json:"has_admin_level"`
	HasUserLevel        bool     `json:"has_user_level"`
	HasTransactionType  bool     `json:"has_transaction_type"`
	HasLandUse          bool     `json:"has_land_use"`
	HasSizeRange        bool     `json:"has_size_range"`
	RequiresApproval    bool     `json:"requires_approval"`
	AutoApproveForRoles []string `json:"auto_approve_for_roles"`
	AllowsRecurring     bool     `json:"allows_recurring"`
}

// ToModel maps the payload onto a dataset entity.
func (r UpsertDatasetRequest) ToModel() *models.Dataset {
	return &models.Dataset{
		Name:        r.Name,
		Description: r.Description,
		CategoryID:  r.CategoryID,
		CriteriaFlags: models.CriteriaFlags{
			RequiresPeriod:     r.RequiresPeriod,
			RequiresUpi:        r.RequiresUpi,
			RequiresUpiList:    r.RequiresUpiList,
			RequiresIdList:     r.RequiresIdList,
			HasAdminLevel:      r.HasAdminLevel,
			HasUserLevel:       r.HasUserLevel,
			HasTransactionType: r.HasTransactionType,
			HasLandUse:         r.HasLandUse,
			HasSizeRange:       r.HasSizeRange,
		},
		RequiresApproval:    r.RequiresApproval,
		AutoApproveForRoles: pq.StringArray(r.AutoApproveForRoles),
		AllowsRecurring:     r.AllowsRecurring,
	}
}
