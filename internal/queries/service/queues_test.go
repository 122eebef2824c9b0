package service

import (
	"testing"

	"github.com/google/uuid"

	"salesops_backend/internal/directory"
)

func TestTeamQueueFilterRejectsUnknownStates(t *testing.T) {
	svc := newWorkflowService(3)
	viewer := directory.NewActor(uuid.New(), nil, nil, []string{"query.view"})

	_, err := svc.teamQueueFilter(viewer, TeamQueueParams{QueueState: "claimed"})
	wantValidationField(t, err, "queue_state")

	_, err = svc.teamQueueFilter(viewer, TeamQueueParams{WorkflowStatus: "done"})
	wantValidationField(t, err, "workflow_status")
}

func TestValidateWorkflowFilter(t *testing.T) {
	for _, ok := range []string{"", "all", "pending", "follow_up", "reviewed_with_call"} {
		if err := validateWorkflowFilter(ok); err != nil {
			t.Errorf("%q must pass, got %v", ok, err)
		}
	}
	for _, bad := range []string{"done", "Running", "follow-up"} {
		if err := validateWorkflowFilter(bad); err == nil {
			t.Errorf("%q must be rejected", bad)
		}
	}
}

func TestCanUseSelfQueue(t *testing.T) {
	for _, perm := range []string{"query.view", "query.create", "query.change_status"} {
		actor := directory.NewActor(uuid.New(), nil, nil, []string{perm})
		if !canUseSelfQueue(actor) {
			t.Errorf("%s must open the self queue", perm)
		}
	}
	if !canUseSelfQueue(directory.NewActor(uuid.New(), nil, []string{"Admin"}, nil)) {
		t.Error("superusers must see their own queue")
	}
	if canUseSelfQueue(directory.NewActor(uuid.New(), nil, nil, []string{"customer.view"})) {
		t.Error("an actor without any query permission must be rejected")
	}
}
