package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrEditRequestNotFound = errors.New("edit request not found")

// Edit request statuses.
const (
	EditRequestPending  = "pending"
	EditRequestApproved = "approved"
	EditRequestRejected = "rejected"
)

// EditRequest holds a proposed customer change awaiting review. OldData and
// NewData are field snapshots taken when the request was filed.
type EditRequest struct {
	ID                uuid.UUID
	CustomerID        uuid.UUID
	RequestedByUserID uuid.UUID
	Status            string
	OldData           map[string]any
	NewData           map[string]any
	DecisionNote      *string
	DecidedByUserID   *uuid.UUID
	DecidedAt         *time.Time
	CreatedAt         time.Time
}

const editRequestColumns = `id, customer_id, requested_by_user_id, status, old_data, new_data,
	decision_note, decided_by_user_id, decided_at, created_at`

func scanEditRequest(row pgx.Row) (EditRequest, error) {
	var er EditRequest
	var oldJSON, newJSON []byte
	err := row.Scan(
		&er.ID, &er.CustomerID, &er.RequestedByUserID, &er.Status, &oldJSON, &newJSON,
		&er.DecisionNote, &er.DecidedByUserID, &er.DecidedAt, &er.CreatedAt,
	)
	if err != nil {
		return EditRequest{}, err
	}
	if err := json.Unmarshal(oldJSON, &er.OldData); err != nil {
		return EditRequest{}, err
	}
	if err := json.Unmarshal(newJSON, &er.NewData); err != nil {
		return EditRequest{}, err
	}
	return er, nil
}

type CreateEditRequestParams struct {
	CustomerID        uuid.UUID
	RequestedByUserID uuid.UUID
	OldData           map[string]any
	NewData           map[string]any
}

func (r *Repository) CreateEditRequest(ctx context.Context, params CreateEditRequestParams) (EditRequest, error) {
	oldJSON, err := json.Marshal(params.OldData)
	if err != nil {
		return EditRequest{}, err
	}
	newJSON, err := json.Marshal(params.NewData)
	if err != nil {
		return EditRequest{}, err
	}
	return scanEditRequest(r.pool.QueryRow(ctx, `
		INSERT INTO customer_edit_requests (customer_id, requested_by_user_id, status, old_data, new_data)
		VALUES ($1, $2, 'pending', $3, $4)
		RETURNING `+editRequestColumns,
		params.CustomerID, params.RequestedByUserID, oldJSON, newJSON,
	))
}

func (r *Repository) GetEditRequest(ctx context.Context, id uuid.UUID) (EditRequest, error) {
	er, err := scanEditRequest(r.pool.QueryRow(ctx,
		`SELECT `+editRequestColumns+` FROM customer_edit_requests WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return EditRequest{}, ErrEditRequestNotFound
	}
	return er, err
}

// GetEditRequestTx locks the request row so two reviewers cannot decide it
// concurrently.
func (r *Repository) GetEditRequestTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (EditRequest, error) {
	er, err := scanEditRequest(tx.QueryRow(ctx,
		`SELECT `+editRequestColumns+` FROM customer_edit_requests WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return EditRequest{}, ErrEditRequestNotFound
	}
	return er, err
}

func (r *Repository) ListEditRequests(ctx context.Context, status string, page, perPage int) ([]EditRequest, int64, error) {
	where := ""
	args := []any{}
	if status != "" && status != "all" {
		where = " WHERE status = $1"
		args = append(args, status)
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customer_edit_requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	args = append(args, perPage, (page-1)*perPage)
	sql := fmt.Sprintf(`SELECT %s FROM customer_edit_requests%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		editRequestColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	requests := make([]EditRequest, 0)
	for rows.Next() {
		er, err := scanEditRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		requests = append(requests, er)
	}
	return requests, total, rows.Err()
}

// MarkDecided records the review outcome; it only moves pending requests.
func (r *Repository) MarkDecided(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, decidedBy uuid.UUID, note *string) (EditRequest, error) {
	er, err := scanEditRequest(tx.QueryRow(ctx, `
		UPDATE customer_edit_requests
		SET status = $2, decided_by_user_id = $3, decision_note = $4, decided_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+editRequestColumns,
		id, status, decidedBy, note,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return EditRequest{}, ErrEditRequestNotFound
	}
	return er, err
}
