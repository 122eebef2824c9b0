// Package repository stores the routing topology the query engine resolves
// against: service queues, per-user queue authorizations, and team role
// assignments.
package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type ServiceQueue struct {
	ID               uuid.UUID
	ServiceID        uuid.UUID
	TeamID           uuid.UUID
	QueueOwnerUserID *uuid.UUID
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const serviceQueueColumns = `id, service_id, team_id, queue_owner_user_id, is_active, created_at, updated_at`

type UpsertServiceQueueParams struct {
	ServiceID        uuid.UUID
	TeamID           uuid.UUID
	QueueOwnerUserID *uuid.UUID
	IsActive         bool
}

// UpsertServiceQueue creates or updates the queue mapping for one
// service/team pair.
func (r *Repository) UpsertServiceQueue(ctx context.Context, params UpsertServiceQueueParams) (ServiceQueue, error) {
	var sq ServiceQueue
	err := r.pool.QueryRow(ctx, `
		INSERT INTO service_queues (service_id, team_id, queue_owner_user_id, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (service_id, team_id) DO UPDATE
		SET queue_owner_user_id = EXCLUDED.queue_owner_user_id,
			is_active = EXCLUDED.is_active,
			updated_at = now()
		RETURNING `+serviceQueueColumns,
		params.ServiceID, params.TeamID, params.QueueOwnerUserID, params.IsActive,
	).Scan(&sq.ID, &sq.ServiceID, &sq.TeamID, &sq.QueueOwnerUserID, &sq.IsActive, &sq.CreatedAt, &sq.UpdatedAt)
	return sq, err
}

func (r *Repository) ListServiceQueues(ctx context.Context, serviceID, teamID *uuid.UUID) ([]ServiceQueue, error) {
	conds := []string{"true"}
	args := []any{}
	if serviceID != nil {
		args = append(args, *serviceID)
		conds = append(conds, fmt.Sprintf("service_id = $%d", len(args)))
	}
	if teamID != nil {
		args = append(args, *teamID)
		conds = append(conds, fmt.Sprintf("team_id = $%d", len(args)))
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM service_queues WHERE %s ORDER BY created_at ASC`,
		serviceQueueColumns, strings.Join(conds, " AND ")), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	queues := make([]ServiceQueue, 0)
	for rows.Next() {
		var sq ServiceQueue
		if err := rows.Scan(&sq.ID, &sq.ServiceID, &sq.TeamID, &sq.QueueOwnerUserID, &sq.IsActive, &sq.CreatedAt, &sq.UpdatedAt); err != nil {
			return nil, err
		}
		queues = append(queues, sq)
	}
	return queues, rows.Err()
}

// ActiveQueueExists reports whether a service/team pair has an active queue
// mapping; authorizations may only target mapped queues.
func (r *Repository) ActiveQueueExists(ctx context.Context, serviceID, teamID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM service_queues WHERE service_id = $1 AND team_id = $2 AND is_active = true)`,
		serviceID, teamID,
	).Scan(&ok)
	return ok, err
}

type QueueAuthorization struct {
	ID              uuid.UUID
	ServiceID       uuid.UUID
	TeamID          uuid.UUID
	UserID          uuid.UUID
	CanViewQueue    bool
	CanDistribute   bool
	CanAssignToSelf bool
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const queueAuthColumns = `id, service_id, team_id, user_id, can_view_queue, can_distribute, can_assign_to_self, is_active, created_at, updated_at`

type UpsertQueueAuthorizationParams struct {
	ServiceID       uuid.UUID
	TeamID          uuid.UUID
	UserID          uuid.UUID
	CanViewQueue    bool
	CanDistribute   bool
	CanAssignToSelf bool
	IsActive        bool
}

func (r *Repository) UpsertQueueAuthorization(ctx context.Context, params UpsertQueueAuthorizationParams) (QueueAuthorization, error) {
	var qa QueueAuthorization
	err := r.pool.QueryRow(ctx, `
		INSERT INTO queue_authorizations (service_id, team_id, user_id, can_view_queue, can_distribute, can_assign_to_self, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (service_id, team_id, user_id) DO UPDATE
		SET can_view_queue = EXCLUDED.can_view_queue,
			can_distribute = EXCLUDED.can_distribute,
			can_assign_to_self = EXCLUDED.can_assign_to_self,
			is_active = EXCLUDED.is_active,
			updated_at = now()
		RETURNING `+queueAuthColumns,
		params.ServiceID, params.TeamID, params.UserID,
		params.CanViewQueue, params.CanDistribute, params.CanAssignToSelf, params.IsActive,
	).Scan(&qa.ID, &qa.ServiceID, &qa.TeamID, &qa.UserID, &qa.CanViewQueue, &qa.CanDistribute, &qa.CanAssignToSelf, &qa.IsActive, &qa.CreatedAt, &qa.UpdatedAt)
	return qa, err
}

func (r *Repository) ListQueueAuthorizations(ctx context.Context, serviceID, teamID, userID *uuid.UUID) ([]QueueAuthorization, error) {
	conds := []string{"true"}
	args := []any{}
	add := func(col string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if serviceID != nil {
		add("service_id", *serviceID)
	}
	if teamID != nil {
		add("team_id", *teamID)
	}
	if userID != nil {
		add("user_id", *userID)
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM queue_authorizations WHERE %s ORDER BY created_at ASC`,
		queueAuthColumns, strings.Join(conds, " AND ")), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	auths := make([]QueueAuthorization, 0)
	for rows.Next() {
		var qa QueueAuthorization
		if err := rows.Scan(&qa.ID, &qa.ServiceID, &qa.TeamID, &qa.UserID, &qa.CanViewQueue, &qa.CanDistribute, &qa.CanAssignToSelf, &qa.IsActive, &qa.CreatedAt, &qa.UpdatedAt); err != nil {
			return nil, err
		}
		auths = append(auths, qa)
	}
	return auths, rows.Err()
}

type TeamRoleAssignment struct {
	ID        uuid.UUID
	TeamID    uuid.UUID
	UserID    uuid.UUID
	TeamRole  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

const teamRoleColumns = `id, team_id, user_id, team_role, is_active, created_at, updated_at`

type UpsertTeamRoleParams struct {
	TeamID   uuid.UUID
	UserID   uuid.UUID
	TeamRole string
	IsActive bool
}

func (r *Repository) UpsertTeamRole(ctx context.Context, tx pgx.Tx, params UpsertTeamRoleParams) (TeamRoleAssignment, error) {
	var tra TeamRoleAssignment
	err := tx.QueryRow(ctx, `
		INSERT INTO team_role_assignments (team_id, user_id, team_role, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (team_id, user_id) DO UPDATE
		SET team_role = EXCLUDED.team_role,
			is_active = EXCLUDED.is_active,
			updated_at = now()
		RETURNING `+teamRoleColumns,
		params.TeamID, params.UserID, params.TeamRole, params.IsActive,
	).Scan(&tra.ID, &tra.TeamID, &tra.UserID, &tra.TeamRole, &tra.IsActive, &tra.CreatedAt, &tra.UpdatedAt)
	return tra, err
}

// DemoteOtherHeads downgrades every other active head of the team so a team
// has at most one active head at a time.
func (r *Repository) DemoteOtherHeads(ctx context.Context, tx pgx.Tx, teamID, keepUserID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE team_role_assignments
		SET team_role = 'member', updated_at = now()
		WHERE team_id = $1 AND user_id <> $2 AND team_role = 'head' AND is_active = true`,
		teamID, keepUserID,
	)
	return err
}

func (r *Repository) ListTeamRoles(ctx context.Context, teamID *uuid.UUID) ([]TeamRoleAssignment, error) {
	conds := "true"
	args := []any{}
	if teamID != nil {
		conds = "team_id = $1"
		args = append(args, *teamID)
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM team_role_assignments WHERE %s ORDER BY created_at ASC`,
		teamRoleColumns, conds), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := make([]TeamRoleAssignment, 0)
	for rows.Next() {
		var tra TeamRoleAssignment
		if err := rows.Scan(&tra.ID, &tra.TeamID, &tra.UserID, &tra.TeamRole, &tra.IsActive, &tra.CreatedAt, &tra.UpdatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, tra)
	}
	return assignments, rows.Err()
}
