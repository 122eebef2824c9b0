// Package service validates changes to the routing topology: service
// queues, queue authorizations, and team role assignments.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"salesops_backend/internal/directory"
	"salesops_backend/internal/masters/repository"
	"salesops_backend/internal/masters/transport"
	"salesops_backend/internal/queries/authz"
	"salesops_backend/platform/apperr"
)

type Service struct {
	repo      *repository.Repository
	directory *directory.Repository
	log       *slog.Logger
}

func New(repo *repository.Repository, dir *directory.Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, directory: dir, log: log}
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func toServiceQueueResponse(sq repository.ServiceQueue) transport.ServiceQueueResponse {
	return transport.ServiceQueueResponse{
		ID:               sq.ID,
		ServiceID:        sq.ServiceID,
		TeamID:           sq.TeamID,
		QueueOwnerUserID: sq.QueueOwnerUserID,
		IsActive:         sq.IsActive,
		CreatedAt:        sq.CreatedAt,
		UpdatedAt:        sq.UpdatedAt,
	}
}

// UpsertServiceQueue maps a service onto a team queue. The optional queue
// owner must be an active member of that team.
func (s *Service) UpsertServiceQueue(ctx context.Context, req transport.UpsertServiceQueueRequest) (transport.ServiceQueueResponse, error) {
	if req.QueueOwnerUserID != nil {
		if err := s.requireTeamMember(ctx, *req.QueueOwnerUserID, req.TeamID, "queue_owner_user_id"); err != nil {
			return transport.ServiceQueueResponse{}, err
		}
	}

	sq, err := s.repo.UpsertServiceQueue(ctx, repository.UpsertServiceQueueParams{
		ServiceID:        req.ServiceID,
		TeamID:           req.TeamID,
		QueueOwnerUserID: req.QueueOwnerUserID,
		IsActive:         boolOr(req.IsActive, true),
	})
	if err != nil {
		return transport.ServiceQueueResponse{}, apperr.Wrap(apperr.KindInternal, "service queue upsert failed", err)
	}
	return toServiceQueueResponse(sq), nil
}

func (s *Service) ListServiceQueues(ctx context.Context, serviceID, teamID *uuid.UUID) ([]transport.ServiceQueueResponse, error) {
	queues, err := s.repo.ListServiceQueues(ctx, serviceID, teamID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "service queue listing failed", err)
	}
	out := make([]transport.ServiceQueueResponse, 0, len(queues))
	for _, sq := range queues {
		out = append(out, toServiceQueueResponse(sq))
	}
	return out, nil
}

// UpsertQueueAuthorization grants a user explicit rights on one queue. The
// queue must be actively mapped and the user an active member of its team.
func (s *Service) UpsertQueueAuthorization(ctx context.Context, req transport.UpsertQueueAuthorizationRequest) (transport.QueueAuthorizationResponse, error) {
	mapped, err := s.repo.ActiveQueueExists(ctx, req.ServiceID, req.TeamID)
	if err != nil {
		return transport.QueueAuthorizationResponse{}, apperr.Wrap(apperr.KindInternal, "queue lookup failed", err)
	}
	if !mapped {
		return transport.QueueAuthorizationResponse{}, apperr.ValidationField("service_id",
			"no active service queue for this service and team")
	}
	if err := s.requireTeamMember(ctx, req.UserID, req.TeamID, "user_id"); err != nil {
		return transport.QueueAuthorizationResponse{}, err
	}

	qa, err := s.repo.UpsertQueueAuthorization(ctx, repository.UpsertQueueAuthorizationParams{
		ServiceID:       req.ServiceID,
		TeamID:          req.TeamID,
		UserID:          req.UserID,
		CanViewQueue:    req.CanViewQueue,
		CanDistribute:   req.CanDistribute,
		CanAssignToSelf: req.CanAssignToSelf,
		IsActive:        boolOr(req.IsActive, true),
	})
	if err != nil {
		return transport.QueueAuthorizationResponse{}, apperr.Wrap(apperr.KindInternal, "queue authorization upsert failed", err)
	}
	return transport.QueueAuthorizationResponse{
		ID:              qa.ID,
		ServiceID:       qa.ServiceID,
		TeamID:          qa.TeamID,
		UserID:          qa.UserID,
		CanViewQueue:    qa.CanViewQueue,
		CanDistribute:   qa.CanDistribute,
		CanAssignToSelf: qa.CanAssignToSelf,
		IsActive:        qa.IsActive,
		CreatedAt:       qa.CreatedAt,
		UpdatedAt:       qa.UpdatedAt,
	}, nil
}

func (s *Service) ListQueueAuthorizations(ctx context.Context, serviceID, teamID, userID *uuid.UUID) ([]transport.QueueAuthorizationResponse, error) {
	auths, err := s.repo.ListQueueAuthorizations(ctx, serviceID, teamID, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "queue authorization listing failed", err)
	}
	out := make([]transport.QueueAuthorizationResponse, 0, len(auths))
	for _, qa := range auths {
		out = append(out, transport.QueueAuthorizationResponse{
			ID:              qa.ID,
			ServiceID:       qa.ServiceID,
			TeamID:          qa.TeamID,
			UserID:          qa.UserID,
			CanViewQueue:    qa.CanViewQueue,
			CanDistribute:   qa.CanDistribute,
			CanAssignToSelf: qa.CanAssignToSelf,
			IsActive:        qa.IsActive,
			CreatedAt:       qa.CreatedAt,
			UpdatedAt:       qa.UpdatedAt,
		})
	}
	return out, nil
}

// UpsertTeamRole assigns a team role. Promoting a head demotes any other
// active head of the same team in the same transaction, so the newest
// promotion wins.
func (s *Service) UpsertTeamRole(ctx context.Context, req transport.UpsertTeamRoleRequest) (transport.TeamRoleResponse, error) {
	if err := s.requireTeamMember(ctx, req.UserID, req.TeamID, "user_id"); err != nil {
		return transport.TeamRoleResponse{}, err
	}

	var tra repository.TeamRoleAssignment
	err := s.repo.InTx(ctx, func(tx pgx.Tx) error {
		if req.TeamRole == authz.TeamRoleHead && boolOr(req.IsActive, true) {
			if err := s.repo.DemoteOtherHeads(ctx, tx, req.TeamID, req.UserID); err != nil {
				return err
			}
		}
		var err error
		tra, err = s.repo.UpsertTeamRole(ctx, tx, repository.UpsertTeamRoleParams{
			TeamID:   req.TeamID,
			UserID:   req.UserID,
			TeamRole: req.TeamRole,
			IsActive: boolOr(req.IsActive, true),
		})
		return err
	})
	if err != nil {
		return transport.TeamRoleResponse{}, apperr.Wrap(apperr.KindInternal, "team role upsert failed", err)
	}
	return transport.TeamRoleResponse{
		ID:        tra.ID,
		TeamID:    tra.TeamID,
		UserID:    tra.UserID,
		TeamRole:  tra.TeamRole,
		IsActive:  tra.IsActive,
		CreatedAt: tra.CreatedAt,
		UpdatedAt: tra.UpdatedAt,
	}, nil
}

func (s *Service) ListTeamRoles(ctx context.Context, teamID *uuid.UUID) ([]transport.TeamRoleResponse, error) {
	assignments, err := s.repo.ListTeamRoles(ctx, teamID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "team role listing failed", err)
	}
	out := make([]transport.TeamRoleResponse, 0, len(assignments))
	for _, tra := range assignments {
		out = append(out, transport.TeamRoleResponse{
			ID:        tra.ID,
			TeamID:    tra.TeamID,
			UserID:    tra.UserID,
			TeamRole:  tra.TeamRole,
			IsActive:  tra.IsActive,
			CreatedAt: tra.CreatedAt,
			UpdatedAt: tra.UpdatedAt,
		})
	}
	return out, nil
}

func (s *Service) requireTeamMember(ctx context.Context, userID, teamID uuid.UUID, field string) error {
	user, err := s.directory.ActiveUser(ctx, userID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return apperr.ValidationField(field, "user does not exist or is inactive")
		}
		return apperr.Wrap(apperr.KindInternal, "user lookup failed", err)
	}
	if user.TeamID == nil || *user.TeamID != teamID {
		return apperr.ValidationField(field, "user is not a member of this team")
	}
	return nil
}
