package models

import (
	"time"

	"github.com/lib/pq"
)

// CriteriaFlags declares which filter criteria a dataset requires or offers.
// These flags are the single source of truth for the criteria schema served to
// clients; the schema is derived from them and nowhere else.
type CriteriaFlags struct {
	RequiresPeriod     bool `db:"requires_period" json:"requires_period"`
	RequiresUpi        bool `db:"requires_upi" json:"requires_upi"`
	RequiresUpiList    bool `db:"requires_upi_list" json:"requires_upi_list"`
	RequiresIdList     bool `db:"requires_id_list" json:"requires_id_list"`
	HasAdminLevel      bool `db:"has_admin_level" json:"has_admin_level"`
	HasUserLevel       bool `db:"has_user_level" json:"has_user_level"`
	HasTransactionType bool `db:"has_transaction_type" json:"has_transaction_type"`
	HasLandUse         bool `db:"has_land_use" json:"has_land_use"`
	HasSizeRange       bool `db:"has_size_range" json:"has_size_range"`
}

// Dataset is an administrator-configured data product.
type Dataset struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	CategoryID  string `db:"category_id" json:"category_id"`
	CriteriaFlags
	RequiresApproval    bool           `db:"requires_approval" json:"requires_approval"`
	AutoApproveForRoles pq.StringArray `db:"auto_approve_for_roles" json:"auto_approve_for_roles"`
	AllowsRecurring     bool           `db:"allows_recurring" json:"allows_recurring"`
	DeactivatedAt       *time.Time     `db:"deactivated_at" json:"deactivated_at,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
}

// Active reports whether the dataset is still offered to requesters.
func (d *Dataset) Active() bool {
	return d.DeactivatedAt == nil
}

// AutoApprovesRole reports whether the given role bypasses review for this dataset.
func (d *Dataset) AutoApprovesRole(role UserRole) bool {
	for _, r := range d.AutoApproveForRoles {
		if UserRole(r) == role {
			return true
		}
	}
	return false
}

// DatasetCategory groups datasets for browsing; it carries no approval semantics.
type DatasetCategory struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Icon        string    `db:"icon" json:"icon"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// DatasetFilter captures list filters for the dataset catalog.
type DatasetFilter struct {
	CategoryID      string
	Search          string
	IncludeInactive bool
	Page            int
	PageSize        int
}
