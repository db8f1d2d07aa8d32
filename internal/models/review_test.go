package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func review(level int, status ReviewStatus) RequestReview {
	return RequestReview{ReviewLevel: level, ReviewStatus: status}
}

func TestAggregateSingleRejectionDominates(t *testing.T) {
	reviews := []RequestReview{
		review(1, ReviewStatusApproved),
		review(1, ReviewStatusRejected),
		review(2, ReviewStatusPending),
	}
	assert.Equal(t, RequestStatusRejected, AggregateReviewStatus(reviews, true))
}

func TestAggregateChangesRequestedShortCircuit(t *testing.T) {
	reviews := []RequestReview{
		review(1, ReviewStatusChangesRequested),
		review(1, ReviewStatusPending),
	}
	assert.Equal(t, RequestStatusChangesRequested, AggregateReviewStatus(reviews, true))
}

func TestAggregateRejectionDominatesChangesRequested(t *testing.T) {
	reviews := []RequestReview{
		review(1, ReviewStatusChangesRequested),
		review(1, ReviewStatusRejected),
	}
	assert.Equal(t, RequestStatusRejected, AggregateReviewStatus(reviews, true))
	assert.Equal(t, RequestStatusRejected, AggregateReviewStatus(reviews, false))
}

func TestAggregateAllApprovedAcrossLevels(t *testing.T) {
	reviews := []RequestReview{
		review(1, ReviewStatusApproved),
		review(1, ReviewStatusApproved),
		review(2, ReviewStatusApproved),
	}
	assert.Equal(t, RequestStatusApproved, AggregateReviewStatus(reviews, true))
	assert.Equal(t, RequestStatusApproved, AggregateReviewStatus(reviews, false))
}

func TestAggregateUnresolvedStaysInReview(t *testing.T) {
	reviews := []RequestReview{
		review(1, ReviewStatusApproved),
		review(1, ReviewStatusInProgress),
	}
	assert.Equal(t, RequestStatusInReview, AggregateReviewStatus(reviews, true))
	assert.Equal(t, RequestStatusInReview, AggregateReviewStatus(reviews, false))
}

func TestAggregateWithoutShortCircuitWaitsForLevel(t *testing.T) {
	reviews := []RequestReview{
		review(1, ReviewStatusRejected),
		review(1, ReviewStatusPending),
	}
	// the level has not fully resolved, so the rejection is not applied yet
	assert.Equal(t, RequestStatusInReview, AggregateReviewStatus(reviews, false))

	reviews[1].ReviewStatus = ReviewStatusApproved
	assert.Equal(t, RequestStatusRejected, AggregateReviewStatus(reviews, false))
}

func TestAggregateIgnoresCancelledRows(t *testing.T) {
	reviews := []RequestReview{
		review(1, ReviewStatusApproved),
		review(1, ReviewStatusCancelled),
	}
	assert.Equal(t, RequestStatusApproved, AggregateReviewStatus(reviews, true))
}

func TestAggregateIsIdempotent(t *testing.T) {
	reviews := []RequestReview{
		review(1, ReviewStatusApproved),
		review(2, ReviewStatusRejected),
		review(2, ReviewStatusPending),
	}
	first := AggregateReviewStatus(reviews, true)
	second := AggregateReviewStatus(reviews, true)
	assert.Equal(t, first, second)
	assert.Equal(t, RequestStatusRejected, first)
}

func TestActiveReviewLevel(t *testing.T) {
	reviews := []RequestReview{
		review(1, ReviewStatusApproved),
		review(1, ReviewStatusApproved),
		review(2, ReviewStatusPending),
		review(3, ReviewStatusPending),
	}
	assert.Equal(t, 2, ActiveReviewLevel(reviews))

	reviews[2].ReviewStatus = ReviewStatusApproved
	assert.Equal(t, 3, ActiveReviewLevel(reviews))

	reviews[3].ReviewStatus = ReviewStatusChangesRequested
	assert.Equal(t, 0, ActiveReviewLevel(reviews))
}
