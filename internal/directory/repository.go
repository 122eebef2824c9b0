// Package directory is the user-directory collaborator boundary: actors,
// their team membership, roles, and permission set. The query engine consults
// it through explicit parameters, never through ambient request state.
package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("user not found")

// SuperUserRoles are the elevated roles that bypass queue-level authorization.
var SuperUserRoles = []string{"Super Admin", "Admin"}

// Actor is the authenticated user acting on the system.
type Actor struct {
	ID          uuid.UUID
	FullName    string
	TeamID      *uuid.UUID
	IsActive    bool
	Roles       []string
	permissions map[string]struct{}
}

// Can reports whether the actor holds the named permission tag.
func (a *Actor) Can(permission string) bool {
	_, ok := a.permissions[permission]
	return ok
}

// HasAnyRole reports whether the actor holds at least one of the given roles.
func (a *Actor) HasAnyRole(roles ...string) bool {
	for _, wanted := range roles {
		for _, role := range a.Roles {
			if role == wanted {
				return true
			}
		}
	}
	return false
}

// IsSuperUser reports whether the actor holds one of the elevated roles.
func (a *Actor) IsSuperUser() bool {
	return a.HasAnyRole(SuperUserRoles...)
}

// NewActor builds an actor from already-resolved attributes.
func NewActor(id uuid.UUID, teamID *uuid.UUID, roles []string, permissions []string) *Actor {
	actor := &Actor{
		ID:          id,
		TeamID:      teamID,
		IsActive:    true,
		Roles:       roles,
		permissions: make(map[string]struct{}, len(permissions)),
	}
	for _, permission := range permissions {
		actor.permissions[permission] = struct{}{}
	}
	return actor
}

// User is a directory entry referenced by assignments.
type User struct {
	ID       uuid.UUID
	FullName string
	TeamID   *uuid.UUID
	IsActive bool
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ActorByID loads the actor with roles and permission set resolved.
func (r *Repository) ActorByID(ctx context.Context, id uuid.UUID) (*Actor, error) {
	actor := &Actor{permissions: make(map[string]struct{})}
	err := r.pool.QueryRow(ctx, `
		SELECT id, full_name, team_id, is_active
		FROM users
		WHERE id = $1
	`, id).Scan(&actor.ID, &actor.FullName, &actor.TeamID, &actor.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	roleRows, err := r.pool.Query(ctx, `
		SELECT r.role_name
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = $1 AND r.is_active = true
		ORDER BY r.role_name
	`, id)
	if err != nil {
		return nil, err
	}
	defer roleRows.Close()

	for roleRows.Next() {
		var name string
		if err := roleRows.Scan(&name); err != nil {
			return nil, err
		}
		actor.Roles = append(actor.Roles, name)
	}
	if roleRows.Err() != nil {
		return nil, roleRows.Err()
	}

	permRows, err := r.pool.Query(ctx, `
		SELECT DISTINCT p.permission_name
		FROM user_roles ur
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = $1 AND p.is_active = true
	`, id)
	if err != nil {
		return nil, err
	}
	defer permRows.Close()

	for permRows.Next() {
		var name string
		if err := permRows.Scan(&name); err != nil {
			return nil, err
		}
		actor.permissions[name] = struct{}{}
	}

	return actor, permRows.Err()
}

// ActiveUser returns the user only when it exists and is active.
func (r *Repository) ActiveUser(ctx context.Context, id uuid.UUID) (*User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `
		SELECT id, full_name, team_id, is_active
		FROM users
		WHERE id = $1 AND is_active = true
	`, id).Scan(&user.ID, &user.FullName, &user.TeamID, &user.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FullNames resolves display names for a set of user ids.
func (r *Repository) FullNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, full_name
		FROM users
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}

	return names, rows.Err()
}
