package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"salesops_backend/internal/audit"
	"salesops_backend/internal/directory"
	"salesops_backend/internal/queries/authz"
	"salesops_backend/internal/queries/domain"
	queryrepo "salesops_backend/internal/queries/repository"
	"salesops_backend/internal/queries/transport"
	"salesops_backend/platform/apperr"
)

// AssignToMe pulls an unassigned team-queue item onto the caller's own desk.
func (s *Service) AssignToMe(ctx context.Context, actor *directory.Actor, itemID uuid.UUID) (transport.QueryItemResponse, error) {
	item, err := s.loadActiveItem(ctx, itemID)
	if err != nil {
		return transport.QueryItemResponse{}, err
	}
	if item.AssignedType != domain.AssignedTeam || item.AssignedUserID != nil {
		return transport.QueryItemResponse{}, apperr.Conflict("this item is no longer waiting in the queue")
	}

	grants, err := s.itemGrants(ctx, actor, item)
	if err != nil {
		return transport.QueryItemResponse{}, apperr.Wrap(apperr.KindInternal, "authorization lookup failed", err)
	}
	actedAs := "admin"
	if !actor.IsSuperUser() {
		if !authz.Allowed(actor, authz.CapabilitySelfAssign, grants) {
			return transport.QueryItemResponse{}, apperr.Forbidden("you cannot assign from this queue")
		}
		actedAs = authz.ActedAs(grants)
	}

	return s.applyAssignment(ctx, actor, item, assignmentChange{
		TargetUserID:   actor.ID,
		FallbackTeamID: actor.TeamID,
		Action:         audit.ActionAssignmentChanged,
		Mode:           "assign_to_me",
		ActedAs:        actedAs,
	})
}

// AssignToUser hands a queue item to a specific team member.
func (s *Service) AssignToUser(ctx context.Context, actor *directory.Actor, itemID uuid.UUID, req transport.AssignToUserRequest) (transport.QueryItemResponse, error) {
	item, err := s.loadActiveItem(ctx, itemID)
	if err != nil {
		return transport.QueryItemResponse{}, err
	}
	if item.AssignedType != domain.AssignedTeam {
		return transport.QueryItemResponse{}, apperr.Conflict("this item has already left the team queue")
	}

	target, err := s.resolveTarget(ctx, actor, item, req.AssignedUserID)
	if err != nil {
		return transport.QueryItemResponse{}, err
	}

	grants, err := s.itemGrants(ctx, actor, item)
	if err != nil {
		return transport.QueryItemResponse{}, apperr.Wrap(apperr.KindInternal, "authorization lookup failed", err)
	}
	actedAs := "admin"
	if !actor.IsSuperUser() {
		if !authz.Allowed(actor, authz.CapabilityDistribute, grants) {
			return transport.QueryItemResponse{}, apperr.Forbidden("you cannot distribute this queue")
		}
		actedAs = authz.ActedAs(grants)
	}

	return s.applyAssignment(ctx, actor, item, assignmentChange{
		TargetUserID:   target.ID,
		FallbackTeamID: target.TeamID,
		Note:           req.DistributionNote,
		Action:         audit.ActionAssignmentChanged,
		Mode:           "assign_to_user",
		ActedAs:        actedAs,
	})
}

// Reassign moves an already-assigned item to another team member. Besides
// queue managers, the current assignee may hand their own work over when
// they hold the reassign permission. A note is always required.
func (s *Service) Reassign(ctx context.Context, actor *directory.Actor, itemID uuid.UUID, req transport.ReassignRequest) (transport.QueryItemResponse, error) {
	item, err := s.loadActiveItem(ctx, itemID)
	if err != nil {
		return transport.QueryItemResponse{}, err
	}
	if item.AssignedUserID == nil {
		return transport.QueryItemResponse{}, apperr.Conflict("this item has no assignee to move")
	}
	if *item.AssignedUserID == req.AssignedUserID {
		return transport.QueryItemResponse{}, apperr.ValidationField("assigned_user_id", "the item is already assigned to this user")
	}

	target, err := s.resolveTarget(ctx, actor, item, req.AssignedUserID)
	if err != nil {
		return transport.QueryItemResponse{}, err
	}

	isAssignee := *item.AssignedUserID == actor.ID
	actedAs := "admin"
	if !actor.IsSuperUser() {
		grants, err := s.itemGrants(ctx, actor, item)
		if err != nil {
			return transport.QueryItemResponse{}, apperr.Wrap(apperr.KindInternal, "authorization lookup failed", err)
		}
		switch {
		case authz.Allowed(actor, authz.CapabilityDistribute, grants):
			actedAs = authz.ActedAs(grants)
		case isAssignee && (actor.Can("query_reassign_own") || actor.Can("query.reassign")):
			actedAs = "assignee"
		default:
			return transport.QueryItemResponse{}, apperr.Forbidden("you cannot reassign this item")
		}
	}

	note := req.DistributionNote
	return s.applyAssignment(ctx, actor, item, assignmentChange{
		TargetUserID:   target.ID,
		FallbackTeamID: target.TeamID,
		Note:           &note,
		Action:         audit.ActionAssignmentReassigned,
		Mode:           "reassign_to_user",
		ActedAs:        actedAs,
	})
}

type assignmentChange struct {
	TargetUserID   uuid.UUID
	FallbackTeamID *uuid.UUID
	Note           *string
	Action         string
	Mode           string
	ActedAs        string
}

// buildAssignmentUpdate flips the item to self-assignment for the target and
// backfills the team when the item never resolved one.
func buildAssignmentUpdate(item queryrepo.QueryItem, change assignmentChange, assignerID uuid.UUID) queryrepo.AssignmentUpdate {
	teamID := item.TeamID
	if teamID == nil {
		teamID = change.FallbackTeamID
	}
	return queryrepo.AssignmentUpdate{
		AssignedType:     domain.AssignedSelf,
		AssignedUserID:   change.TargetUserID,
		AssignedByUserID: assignerID,
		AssignmentNote:   change.Note,
		TeamID:           teamID,
	}
}

func (s *Service) loadActiveItem(ctx context.Context, itemID uuid.UUID) (queryrepo.QueryItem, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, queryrepo.ErrItemNotFound) {
			return queryrepo.QueryItem{}, apperr.NotFound("query item not found")
		}
		return queryrepo.QueryItem{}, apperr.Wrap(apperr.KindInternal, "item lookup failed", err)
	}
	if item.ItemStatus != domain.ItemActive {
		return queryrepo.QueryItem{}, apperr.Conflict("this item is closed")
	}
	return item, nil
}

// resolveTarget checks the assignment target exists, is active, and belongs
// to the item's team unless the caller is a superuser.
func (s *Service) resolveTarget(ctx context.Context, actor *directory.Actor, item queryrepo.QueryItem, targetID uuid.UUID) (*directory.User, error) {
	target, err := s.directory.ActiveUser(ctx, targetID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, apperr.ValidationField("assigned_user_id", "user does not exist or is inactive")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "user lookup failed", err)
	}
	if !actor.IsSuperUser() {
		if item.TeamID == nil || target.TeamID == nil || *item.TeamID != *target.TeamID {
			return nil, apperr.ValidationField("assigned_user_id", "user is not a member of this team")
		}
	}
	return target, nil
}

func (s *Service) applyAssignment(ctx context.Context, actor *directory.Actor, item queryrepo.QueryItem, change assignmentChange) (transport.QueryItemResponse, error) {
	var updated queryrepo.QueryItem

	upd := buildAssignmentUpdate(item, change, actor.ID)
	err := s.repo.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		updated, err = s.repo.UpdateItemAssignment(ctx, tx, item.ID, upd)
		if err != nil {
			return err
		}

		return s.audits.Append(ctx, tx, audit.AppendParams{
			ActorUserID: uuidPtr(actor.ID),
			SubjectType: audit.SubjectQueryItem,
			SubjectID:   item.ID,
			Action:      change.Action,
			OldValues: map[string]any{
				"assigned_type":       string(item.AssignedType),
				"assigned_user_id":    item.AssignedUserID,
				"assigned_by_user_id": item.AssignedByUserID,
				"assignment_note":     item.AssignmentNote,
				"team_id":             item.TeamID,
			},
			NewValues: map[string]any{
				"assigned_type":       string(upd.AssignedType),
				"assigned_user_id":    upd.AssignedUserID,
				"assigned_by_user_id": upd.AssignedByUserID,
				"assignment_note":     upd.AssignmentNote,
				"team_id":             upd.TeamID,
			},
			Meta: map[string]any{"mode": change.Mode, "acted_as": change.ActedAs},
		})
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return transport.QueryItemResponse{}, appErr
		}
		return transport.QueryItemResponse{}, apperr.Wrap(apperr.KindInternal, "assignment update failed", err)
	}

	names, nameErr := s.repo.ServiceNames(ctx, []uuid.UUID{updated.ServiceID})
	if nameErr != nil {
		names = map[uuid.UUID]string{}
	}
	return toItemResponse(updated, names[updated.ServiceID]), nil
}
