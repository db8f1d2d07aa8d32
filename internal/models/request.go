package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RequestStatus tracks a request through the review workflow.
type RequestStatus string

const (
	RequestStatusDraft            RequestStatus = "draft"
	RequestStatusPending          RequestStatus = "pending"
	RequestStatusInReview         RequestStatus = "in_review"
	RequestStatusApproved         RequestStatus = "approved"
	RequestStatusRejected         RequestStatus = "rejected"
	RequestStatusChangesRequested RequestStatus = "changes_requested"
)

// requestTransitions is the workflow state machine. A rejected request reopens
// in place: resubmission moves it back to pending rather than spawning a new
// record.
var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusDraft:            {RequestStatusPending},
	RequestStatusPending:          {RequestStatusInReview, RequestStatusApproved},
	RequestStatusInReview:         {RequestStatusApproved, RequestStatusRejected, RequestStatusChangesRequested},
	RequestStatusChangesRequested: {RequestStatusPending},
	RequestStatusRejected:         {RequestStatusPending},
}

// CanTransition reports whether the workflow permits moving between the two statuses.
func CanTransition(from, to RequestStatus) bool {
	for _, next := range requestTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status ends the current review cycle.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// RequestPriority orders requests for reviewers.
type RequestPriority string

const (
	PriorityLow    RequestPriority = "low"
	PriorityNormal RequestPriority = "normal"
	PriorityHigh   RequestPriority = "high"
	PriorityUrgent RequestPriority = "urgent"
)

// ValidPriority reports whether the string names a known priority.
func ValidPriority(p RequestPriority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Request is a user's application to access one or more datasets.
type Request struct {
	ID            string          `db:"id" json:"id"`
	RequestNumber string          `db:"request_number" json:"request_number"`
	Title         string          `db:"title" json:"title"`
	Description   string          `db:"description" json:"description"`
	Priority      RequestPriority `db:"priority" json:"priority"`
	UserID        string          `db:"user_id" json:"user_id"`
	Status        RequestStatus   `db:"status" json:"status"`
	Recurring     bool            `db:"recurring" json:"recurring"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`

	Datasets []RequestDataset `db:"-" json:"datasets,omitempty"`
}

// RequestDataset binds a request to one dataset plus the criteria supplied for it.
type RequestDataset struct {
	ID        string         `db:"id" json:"id"`
	RequestID string         `db:"request_id" json:"request_id"`
	DatasetID string         `db:"dataset_id" json:"dataset_id"`
	Criteria  CriteriaValues `db:"criteria" json:"criteria"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// RequestFilter captures list filters for the request register.
type RequestFilter struct {
	UserID   string
	Status   *RequestStatus
	Priority *RequestPriority
	Search   string
	Page     int
	PageSize int
}

// Value serialises criteria values for JSONB storage.
func (c CriteriaValues) Value() (driver.Value, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c)
}

// Scan restores criteria values from JSONB storage.
func (c *CriteriaValues) Scan(src interface{}) error {
	if src == nil {
		*c = nil
		return nil
	}
	var raw []byte
	switch typed := src.(type) {
	case []byte:
		raw = typed
	case string:
		raw = []byte(typed)
	default:
		return fmt.Errorf("unsupported criteria scan type %T", src)
	}
	if len(raw) == 0 {
		*c = nil
		return nil
	}
	return json.Unmarshal(raw, c)
}
