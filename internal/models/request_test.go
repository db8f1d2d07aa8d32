package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestTransitions(t *testing.T) {
	assert.True(t, CanTransition(RequestStatusDraft, RequestStatusPending))
	assert.True(t, CanTransition(RequestStatusPending, RequestStatusInReview))
	assert.True(t, CanTransition(RequestStatusPending, RequestStatusApproved))
	assert.True(t, CanTransition(RequestStatusInReview, RequestStatusRejected))
	assert.True(t, CanTransition(RequestStatusChangesRequested, RequestStatusPending))
	assert.True(t, CanTransition(RequestStatusRejected, RequestStatusPending))

	// resubmission never lands directly in approved
	assert.False(t, CanTransition(RequestStatusChangesRequested, RequestStatusApproved))
	assert.False(t, CanTransition(RequestStatusRejected, RequestStatusApproved))
	// approved content is immutable
	assert.False(t, CanTransition(RequestStatusApproved, RequestStatusPending))
	assert.False(t, CanTransition(RequestStatusDraft, RequestStatusApproved))
}

func TestPendingReachableStates(t *testing.T) {
	reachable := requestTransitions[RequestStatusPending]
	assert.ElementsMatch(t, []RequestStatus{RequestStatusInReview, RequestStatusApproved}, reachable)
}
