package service

import (
	"testing"

	"github.com/google/uuid"

	"salesops_backend/internal/queries/domain"
	queryrepo "salesops_backend/internal/queries/repository"
)

func TestBuildAssignmentUpdateFlipsToSelf(t *testing.T) {
	teamID := uuid.New()
	item := queryrepo.QueryItem{
		ID:           uuid.New(),
		AssignedType: domain.AssignedTeam,
		TeamID:       &teamID,
	}
	assigner := uuid.New()
	target := uuid.New()

	upd := buildAssignmentUpdate(item, assignmentChange{TargetUserID: target}, assigner)
	if upd.AssignedType != domain.AssignedSelf {
		t.Errorf("claiming must flip the item to self mode, got %s", upd.AssignedType)
	}
	if upd.AssignedUserID != target || upd.AssignedByUserID != assigner {
		t.Errorf("want assignee %s by %s, got %+v", target, assigner, upd)
	}
	if upd.TeamID == nil || *upd.TeamID != teamID {
		t.Errorf("the item's team must survive the claim, got %v", upd.TeamID)
	}
}

func TestBuildAssignmentUpdateBackfillsTeam(t *testing.T) {
	item := queryrepo.QueryItem{ID: uuid.New(), AssignedType: domain.AssignedTeam}
	fallback := uuid.New()

	upd := buildAssignmentUpdate(item, assignmentChange{
		TargetUserID:   uuid.New(),
		FallbackTeamID: &fallback,
	}, uuid.New())
	if upd.TeamID == nil || *upd.TeamID != fallback {
		t.Errorf("an item without a team must take the fallback, got %v", upd.TeamID)
	}

	upd = buildAssignmentUpdate(item, assignmentChange{TargetUserID: uuid.New()}, uuid.New())
	if upd.TeamID != nil {
		t.Errorf("no team anywhere must stay nil, got %v", upd.TeamID)
	}
}
