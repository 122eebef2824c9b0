package transport

import (
	"time"

	"github.com/google/uuid"
)

type UpsertServiceQueueRequest struct {
	ServiceID        uuid.UUID  `json:"service_id" validate:"required"`
	TeamID           uuid.UUID  `json:"team_id" validate:"required"`
	QueueOwnerUserID *uuid.UUID `json:"queue_owner_user_id,omitempty"`
	IsActive         *bool      `json:"is_active,omitempty"`
}

type UpsertQueueAuthorizationRequest struct {
	ServiceID       uuid.UUID `json:"service_id" validate:"required"`
	TeamID          uuid.UUID `json:"team_id" validate:"required"`
	UserID          uuid.UUID `json:"user_id" validate:"required"`
	CanViewQueue    bool      `json:"can_view_queue"`
	CanDistribute   bool      `json:"can_distribute"`
	CanAssignToSelf bool      `json:"can_assign_to_self"`
	IsActive        *bool     `json:"is_active,omitempty"`
}

type UpsertTeamRoleRequest struct {
	TeamID   uuid.UUID `json:"team_id" validate:"required"`
	UserID   uuid.UUID `json:"user_id" validate:"required"`
	TeamRole string    `json:"team_role" validate:"required,oneof=head delegate_head member"`
	IsActive *bool     `json:"is_active,omitempty"`
}

type ServiceQueueResponse struct {
	ID               uuid.UUID  `json:"id"`
	ServiceID        uuid.UUID  `json:"service_id"`
	TeamID           uuid.UUID  `json:"team_id"`
	QueueOwnerUserID *uuid.UUID `json:"queue_owner_user_id"`
	IsActive         bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type QueueAuthorizationResponse struct {
	ID              uuid.UUID `json:"id"`
	ServiceID       uuid.UUID `json:"service_id"`
	TeamID          uuid.UUID `json:"team_id"`
	UserID          uuid.UUID `json:"user_id"`
	CanViewQueue    bool      `json:"can_view_queue"`
	CanDistribute   bool      `json:"can_distribute"`
	CanAssignToSelf bool      `json:"can_assign_to_self"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type TeamRoleResponse struct {
	ID        uuid.UUID `json:"id"`
	TeamID    uuid.UUID `json:"team_id"`
	UserID    uuid.UUID `json:"user_id"`
	TeamRole  string    `json:"team_role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
