// Package domain provides core business rules for the queries bounded context.
package domain

// WorkflowStatus is the fine-grained state of one query item.
type WorkflowStatus string

const (
	WorkflowPending            WorkflowStatus = "pending"
	WorkflowRunning            WorkflowStatus = "running"
	WorkflowFollowUp           WorkflowStatus = "follow_up"
	WorkflowSold               WorkflowStatus = "sold"
	WorkflowFinished           WorkflowStatus = "finished"
	WorkflowReviewedWithCall   WorkflowStatus = "reviewed_with_call"
	WorkflowReviewedWithoutCall WorkflowStatus = "reviewed_without_call"
)

// QueryStatus is the coarse status of a parent query, re-derived from its items.
type QueryStatus string

const (
	QueryPending  QueryStatus = "pending"
	QueryRunning  QueryStatus = "running"
	QueryFollowUp QueryStatus = "follow_up"
	QuerySold     QueryStatus = "sold"
	QueryFinished QueryStatus = "finished"
)

// ItemStatus mirrors whether an item is still being worked.
type ItemStatus string

const (
	ItemActive ItemStatus = "active"
	ItemClosed ItemStatus = "closed"
)

// AssignedType distinguishes team-queue items from self-assigned ones.
type AssignedType string

const (
	AssignedSelf AssignedType = "self"
	AssignedTeam AssignedType = "team"
)

// allowedTransitions is the full forward-transition table. follow_up is
// re-entrant; sold and the reviewed states are terminal.
var allowedTransitions = map[WorkflowStatus][]WorkflowStatus{
	WorkflowPending:             {WorkflowRunning, WorkflowFinished},
	WorkflowRunning:             {WorkflowFollowUp, WorkflowSold, WorkflowFinished},
	WorkflowFollowUp:            {WorkflowFollowUp, WorkflowSold, WorkflowFinished},
	WorkflowSold:                {},
	WorkflowFinished:            {WorkflowReviewedWithCall, WorkflowReviewedWithoutCall},
	WorkflowReviewedWithCall:    {},
	WorkflowReviewedWithoutCall: {},
}

// WorkflowStatuses lists every recognized workflow state.
func WorkflowStatuses() []WorkflowStatus {
	return []WorkflowStatus{
		WorkflowPending, WorkflowRunning, WorkflowFollowUp, WorkflowSold,
		WorkflowFinished, WorkflowReviewedWithCall, WorkflowReviewedWithoutCall,
	}
}

// IsWorkflowStatus reports whether raw is a recognized workflow state.
func IsWorkflowStatus(raw string) bool {
	_, ok := allowedTransitions[WorkflowStatus(raw)]
	return ok
}

// CanTransition reports whether from -> to is a permitted forward transition.
func CanTransition(from, to WorkflowStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsReview reports whether the status is one of the reviewed terminal states.
func IsReview(status WorkflowStatus) bool {
	return status == WorkflowReviewedWithCall || status == WorkflowReviewedWithoutCall
}

// IsOperational reports whether entering the status is restricted to the
// item's current assignee (or a superuser).
func IsOperational(status WorkflowStatus) bool {
	switch status {
	case WorkflowRunning, WorkflowFollowUp, WorkflowSold, WorkflowFinished:
		return true
	}
	return false
}

// ClosesItem reports whether reaching the status also closes the coarse
// item status.
func ClosesItem(status WorkflowStatus) bool {
	return status == WorkflowSold || status == WorkflowFinished
}

// AggregateStatus re-derives the parent query's status from its items'
// workflow states, by priority: running, then follow_up, then pending, then
// sold, else finished. It is a pure function of the current item set.
func AggregateStatus(statuses []WorkflowStatus) QueryStatus {
	has := make(map[WorkflowStatus]bool, len(statuses))
	for _, status := range statuses {
		has[status] = true
	}

	switch {
	case has[WorkflowRunning]:
		return QueryRunning
	case has[WorkflowFollowUp]:
		return QueryFollowUp
	case has[WorkflowPending]:
		return QueryPending
	case has[WorkflowSold]:
		return QuerySold
	default:
		return QueryFinished
	}
}

// NextFollowUpCount computes the follow-up counter for a transition into
// follow_up: it increments only when entering from a non-follow_up state.
// ok is false when the increment would exceed maxLimit; the caller must then
// reject the transition outright rather than clamp.
func NextFollowUpCount(current WorkflowStatus, count, maxLimit int) (next int, ok bool) {
	if current == WorkflowFollowUp {
		return count, true
	}
	next = count + 1
	return next, next <= maxLimit
}
