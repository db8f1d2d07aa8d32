package models

// Action enumerates the permission-gated operations of the portal.
type Action string

const (
	ActionViewAllRequests   Action = "viewAllRequests"
	ActionApproveRequests   Action = "approveRequests"
	ActionManageUsers       Action = "manageUsers"
	ActionConfigureDatasets Action = "configureDatasets"
	ActionViewAnalytics     Action = "viewAnalytics"
	ActionViewAuditTrail    Action = "viewAuditTrail"
	ActionExportData        Action = "exportData"
	ActionReview            Action = "review"
)

// Permissions carries the explicit capability flags of an account.
// Role alone never grants access; only these flags do. Admin accounts are
// provisioned with all flags true, but the checks below never consult the role.
type Permissions struct {
	CanViewAllRequests   bool `db:"can_view_all_requests" json:"can_view_all_requests"`
	CanApproveRequests   bool `db:"can_approve_requests" json:"can_approve_requests"`
	CanManageUsers       bool `db:"can_manage_users" json:"can_manage_users"`
	CanViewAuditTrail    bool `db:"can_view_audit_trail" json:"can_view_audit_trail"`
	CanExportData        bool `db:"can_export_data" json:"can_export_data"`
	CanConfigureDatasets bool `db:"can_configure_datasets" json:"can_configure_datasets"`
	CanViewAnalytics     bool `db:"can_view_analytics" json:"can_view_analytics"`
	IsReviewer           bool `db:"is_reviewer" json:"is_reviewer"`
}

// Can reports whether the permission flags allow the given action.
func (p Permissions) Can(action Action) bool {
	switch action {
	case ActionViewAllRequests:
		return p.CanViewAllRequests
	case ActionApproveRequests:
		return p.CanApproveRequests
	case ActionManageUsers:
		return p.CanManageUsers
	case ActionConfigureDatasets:
		return p.CanConfigureDatasets
	case ActionViewAnalytics:
		return p.CanViewAnalytics
	case ActionViewAuditTrail:
		return p.CanViewAuditTrail
	case ActionExportData:
		return p.CanExportData
	case ActionReview:
		return p.IsReviewer
	default:
		return false
	}
}

// CanViewRequest reports whether the actor may see the request: elevated view
// permission or ownership.
func CanViewRequest(userID string, perms Permissions, request *Request) bool {
	if request == nil {
		return false
	}
	if perms.Can(ActionViewAllRequests) {
		return true
	}
	return request.UserID == userID
}

// CanEditRequest reports whether the actor may mutate the request. Ownership is
// mandatory; elevated view permission never grants edit rights. Approved and
// in-review requests are immutable.
func CanEditRequest(userID string, request *Request) bool {
	if request == nil || request.UserID != userID {
		return false
	}
	switch request.Status {
	case RequestStatusDraft, RequestStatusPending, RequestStatusRejected, RequestStatusChangesRequested:
		return true
	default:
		return false
	}
}
