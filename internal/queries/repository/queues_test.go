package repository

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestBuildTeamQueueWhereStates(t *testing.T) {
	actor := uuid.New()

	where, args := buildTeamQueueWhere(TeamQueueFilter{ActorID: actor, QueueState: QueueStateNotAssigned})
	if !strings.Contains(where, "qi.assigned_type = 'team'") || !strings.Contains(where, "qi.assigned_user_id IS NULL") {
		t.Errorf("not_assigned must match undistributed team items, got %q", where)
	}
	if len(args) != 1 || args[0] != actor {
		t.Errorf("non-superuser filter needs exactly the actor arg, got %v", args)
	}

	where, _ = buildTeamQueueWhere(TeamQueueFilter{ActorID: actor, QueueState: QueueStateDistributed})
	if !strings.Contains(where, "qi.assigned_user_id IS NOT NULL") {
		t.Errorf("distributed must match handed-out items, got %q", where)
	}
	if strings.Contains(where, "qi.assigned_type = 'team'") {
		t.Errorf("distributed must not constrain the assignment type, got %q", where)
	}

	where, _ = buildTeamQueueWhere(TeamQueueFilter{ActorID: actor, QueueState: QueueStateAll})
	if strings.Contains(where, "assigned_user_id IS") {
		t.Errorf("all must not partition by assignment, got %q", where)
	}
}

func TestBuildTeamQueueWhereVisibility(t *testing.T) {
	actor := uuid.New()

	where, args := buildTeamQueueWhere(TeamQueueFilter{ActorID: actor})
	for _, table := range []string{"service_queues", "queue_authorizations", "team_role_assignments"} {
		if !strings.Contains(where, table) {
			t.Errorf("visibility predicate must check %s, got %q", table, where)
		}
	}
	if len(args) != 1 || args[0] != actor {
		t.Errorf("visibility predicate binds the actor once, got %v", args)
	}

	where, args = buildTeamQueueWhere(TeamQueueFilter{ActorID: actor, Superuser: true})
	if strings.Contains(where, "service_queues") {
		t.Errorf("superuser must bypass the visibility predicate, got %q", where)
	}
	if len(args) != 0 {
		t.Errorf("superuser filter binds nothing, got %v", args)
	}
}

func TestBuildTeamQueueWhereNarrowing(t *testing.T) {
	actor := uuid.New()
	serviceID := uuid.New()
	teamID := uuid.New()

	where, args := buildTeamQueueWhere(TeamQueueFilter{
		ActorID:        actor,
		Superuser:      true,
		ServiceID:      &serviceID,
		TeamID:         &teamID,
		WorkflowStatus: "follow_up",
	})

	if !strings.Contains(where, "qi.service_id = $1") ||
		!strings.Contains(where, "qi.team_id = $2") ||
		!strings.Contains(where, "qi.workflow_status = $3") {
		t.Errorf("placeholders must be numbered in append order, got %q", where)
	}
	if len(args) != 3 || args[0] != serviceID || args[1] != teamID || args[2] != "follow_up" {
		t.Errorf("args out of order: %v", args)
	}

	// "all" is a no-filter sentinel for the workflow status.
	where, _ = buildTeamQueueWhere(TeamQueueFilter{ActorID: actor, Superuser: true, WorkflowStatus: "all"})
	if strings.Contains(where, "workflow_status") {
		t.Errorf("workflow status 'all' must not filter, got %q", where)
	}
}

func TestBuildSelfQueueWhere(t *testing.T) {
	actor := uuid.New()
	serviceID := uuid.New()

	where, args := buildSelfQueueWhere(SelfQueueFilter{ActorID: actor})
	if !strings.Contains(where, "qi.assigned_user_id = $1") {
		t.Errorf("self queue is keyed on the actor, got %q", where)
	}
	// Sold and finished items close but must remain visible to their owner.
	if strings.Contains(where, "item_status") {
		t.Errorf("self queue must not filter out closed items, got %q", where)
	}
	if len(args) != 1 || args[0] != actor {
		t.Errorf("self queue binds only the actor by default, got %v", args)
	}

	where, args = buildSelfQueueWhere(SelfQueueFilter{
		ActorID:        actor,
		ServiceID:      &serviceID,
		WorkflowStatus: "running",
	})
	if !strings.Contains(where, "qi.service_id = $2") || !strings.Contains(where, "qi.workflow_status = $3") {
		t.Errorf("optional filters must follow the actor placeholder, got %q", where)
	}
	if len(args) != 3 || args[1] != serviceID || args[2] != "running" {
		t.Errorf("args out of order: %v", args)
	}
}
