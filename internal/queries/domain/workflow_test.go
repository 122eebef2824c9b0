package domain

import "testing"

func TestCanTransitionFullTable(t *testing.T) {
	allowed := map[WorkflowStatus][]WorkflowStatus{
		WorkflowPending:             {WorkflowRunning, WorkflowFinished},
		WorkflowRunning:             {WorkflowFollowUp, WorkflowSold, WorkflowFinished},
		WorkflowFollowUp:            {WorkflowFollowUp, WorkflowSold, WorkflowFinished},
		WorkflowSold:                {},
		WorkflowFinished:            {WorkflowReviewedWithCall, WorkflowReviewedWithoutCall},
		WorkflowReviewedWithCall:    {},
		WorkflowReviewedWithoutCall: {},
	}

	// Every (from, to) pair must match the table exactly; anything else is rejected.
	for _, from := range WorkflowStatuses() {
		for _, to := range WorkflowStatuses() {
			want := false
			for _, next := range allowed[from] {
				if next == to {
					want = true
				}
			}
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestCanTransitionUnknownStates(t *testing.T) {
	if CanTransition("bogus", WorkflowRunning) {
		t.Error("transition from unknown state must be rejected")
	}
	if CanTransition(WorkflowPending, "bogus") {
		t.Error("transition to unknown state must be rejected")
	}
}

func TestAggregateStatusPriority(t *testing.T) {
	cases := []struct {
		name     string
		statuses []WorkflowStatus
		want     QueryStatus
	}{
		{"running beats everything", []WorkflowStatus{WorkflowSold, WorkflowRunning, WorkflowFollowUp}, QueryRunning},
		{"follow_up beats pending", []WorkflowStatus{WorkflowPending, WorkflowFollowUp}, QueryFollowUp},
		{"pending beats sold", []WorkflowStatus{WorkflowSold, WorkflowPending}, QueryPending},
		{"sold beats finished", []WorkflowStatus{WorkflowFinished, WorkflowSold}, QuerySold},
		{"all finished", []WorkflowStatus{WorkflowFinished, WorkflowFinished}, QueryFinished},
		{"reviewed counts as finished", []WorkflowStatus{WorkflowReviewedWithCall, WorkflowReviewedWithoutCall}, QueryFinished},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AggregateStatus(tc.statuses); got != tc.want {
				t.Errorf("AggregateStatus(%v) = %s, want %s", tc.statuses, got, tc.want)
			}
		})
	}
}

func TestAggregateStatusIdempotent(t *testing.T) {
	statuses := []WorkflowStatus{WorkflowFollowUp, WorkflowSold, WorkflowPending}
	first := AggregateStatus(statuses)
	second := AggregateStatus(statuses)
	if first != second {
		t.Errorf("aggregation not idempotent: %s then %s", first, second)
	}
}

func TestNextFollowUpCount(t *testing.T) {
	// Entering follow_up from a different state increments.
	if next, ok := NextFollowUpCount(WorkflowRunning, 0, 3); !ok || next != 1 {
		t.Errorf("got (%d, %v), want (1, true)", next, ok)
	}

	// Re-entering follow_up keeps the count.
	if next, ok := NextFollowUpCount(WorkflowFollowUp, 2, 3); !ok || next != 2 {
		t.Errorf("got (%d, %v), want (2, true)", next, ok)
	}

	// Exceeding the cap is a hard failure, never a clamp.
	if _, ok := NextFollowUpCount(WorkflowRunning, 3, 3); ok {
		t.Error("expected the increment past the cap to be rejected")
	}

	// Exactly reaching the cap is still allowed.
	if next, ok := NextFollowUpCount(WorkflowRunning, 2, 3); !ok || next != 3 {
		t.Errorf("got (%d, %v), want (3, true)", next, ok)
	}
}

func TestClosesItem(t *testing.T) {
	for _, status := range WorkflowStatuses() {
		want := status == WorkflowSold || status == WorkflowFinished
		if got := ClosesItem(status); got != want {
			t.Errorf("ClosesItem(%s) = %v, want %v", status, got, want)
		}
	}
}
