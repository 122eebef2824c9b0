// Package audit provides the append-only audit trail consumed by every
// mutating operation. Entries are immutable once written and are created
// inside the same transaction as the mutation they record.
package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so audit entries can
// join the caller's transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Subject types recorded in audit entries.
const (
	SubjectQuery               = "query"
	SubjectQueryItem           = "query_item"
	SubjectCustomer            = "customer"
	SubjectCustomerEditRequest = "customer_edit_request"
)

// Actions recorded by the query engine.
const (
	ActionQueryCreated          = "query.created"
	ActionQueryStatusChanged    = "query.status.changed"
	ActionItemStatusChanged     = "query_item.status.changed"
	ActionAssignmentCreated     = "query.assignment.created"
	ActionAssignmentChanged     = "query.assignment.changed"
	ActionAssignmentReassigned  = "query.assignment.reassigned"
	ActionSearchPerformed       = "query.search_performed"
	ActionCustomerEditApproved  = "customer.edit.approved"
	ActionCustomerEditRejected  = "customer.edit.rejected"
	ActionCustomerEditRequested = "customer.edit.requested"
)

// AppendParams describes one audit entry.
type AppendParams struct {
	ActorUserID *uuid.UUID
	SubjectType string
	SubjectID   uuid.UUID
	Action      string
	OldValues   map[string]any
	NewValues   map[string]any
	Meta        map[string]any
}

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Append writes one audit entry through the given pool or transaction.
func (r *Repository) Append(ctx context.Context, db DBTX, params AppendParams) error {
	oldJSON, err := marshalNullable(params.OldValues)
	if err != nil {
		return err
	}
	newJSON, err := marshalNullable(params.NewValues)
	if err != nil {
		return err
	}
	metaJSON, err := marshalNullable(params.Meta)
	if err != nil {
		return err
	}

	_, err = db.Exec(ctx, `
		INSERT INTO audit_logs (actor_user_id, subject_type, subject_id, action, old_values, new_values, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, params.ActorUserID, params.SubjectType, params.SubjectID, params.Action, oldJSON, newJSON, metaJSON)
	return err
}

// LatestStatusActors returns, per query id, the actor who most recently drove
// the query into one of wantStatuses via a query.status.changed entry.
// "Most recently" is by audit insertion order.
func (r *Repository) LatestStatusActors(ctx context.Context, db DBTX, queryIDs []uuid.UUID, wantStatuses []string) (map[uuid.UUID]uuid.UUID, error) {
	result := make(map[uuid.UUID]uuid.UUID)
	if len(queryIDs) == 0 {
		return result, nil
	}

	rows, err := db.Query(ctx, `
		SELECT subject_id, actor_user_id, new_values
		FROM audit_logs
		WHERE subject_type = $1 AND action = $2 AND subject_id = ANY($3)
		ORDER BY id DESC
	`, SubjectQuery, ActionQueryStatusChanged, queryIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	wanted := make(map[string]bool, len(wantStatuses))
	for _, status := range wantStatuses {
		wanted[status] = true
	}

	for rows.Next() {
		var queryID uuid.UUID
		var actorID *uuid.UUID
		var newValuesJSON []byte
		if err := rows.Scan(&queryID, &actorID, &newValuesJSON); err != nil {
			return nil, err
		}

		// First match per query wins: rows arrive newest-first, and only
		// entries that set one of the wanted statuses count.
		if _, done := result[queryID]; done {
			continue
		}
		if actorID == nil || len(newValuesJSON) == 0 {
			continue
		}

		var newValues map[string]any
		if err := json.Unmarshal(newValuesJSON, &newValues); err != nil {
			continue
		}
		status, _ := newValues["query_status"].(string)
		if !wanted[status] {
			continue
		}

		result[queryID] = *actorID
	}

	return result, rows.Err()
}

func marshalNullable(values map[string]any) ([]byte, error) {
	if values == nil {
		return nil, nil
	}
	return json.Marshal(values)
}
