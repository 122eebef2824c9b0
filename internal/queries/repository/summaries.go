package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"salesops_backend/internal/queries/domain"
)

// SummaryItemRow is the per-service breakdown shown in duplicate warnings
// and intake search results.
type SummaryItemRow struct {
	ID               uuid.UUID
	ServiceID        uuid.UUID
	ServiceName      string
	WorkflowStatus   domain.WorkflowStatus
	AssignedUserName *string
	TeamName         *string
}

type QuerySummaryRow struct {
	ID               uuid.UUID
	CustomerID       uuid.UUID
	QueryDetailsText string
	QueryStatus      domain.QueryStatus
	CreatedAt        time.Time
	CustomerName     string
	CustomerMobile   string
	Items            []SummaryItemRow
}

func (r *Repository) collectSummaries(ctx context.Context, sql string, args ...any) ([]QuerySummaryRow, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]QuerySummaryRow, 0)
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var s QuerySummaryRow
		if err := rows.Scan(&s.ID, &s.CustomerID, &s.QueryDetailsText, &s.QueryStatus, &s.CreatedAt, &s.CustomerName, &s.CustomerMobile); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
		ids = append(ids, s.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return summaries, nil
	}

	itemRows, err := r.pool.Query(ctx, `
		SELECT qi.query_id, qi.id, qi.service_id, s.name, qi.workflow_status, au.full_name, t.name
		FROM query_items qi
		JOIN services s ON s.id = qi.service_id
		LEFT JOIN users au ON au.id = qi.assigned_user_id
		LEFT JOIN teams t ON t.id = qi.team_id
		WHERE qi.query_id = ANY($1)
		ORDER BY qi.created_at ASC`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	byQuery := make(map[uuid.UUID][]SummaryItemRow, len(summaries))
	for itemRows.Next() {
		var queryID uuid.UUID
		var it SummaryItemRow
		if err := itemRows.Scan(&queryID, &it.ID, &it.ServiceID, &it.ServiceName, &it.WorkflowStatus, &it.AssignedUserName, &it.TeamName); err != nil {
			return nil, err
		}
		byQuery[queryID] = append(byQuery[queryID], it)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	for i := range summaries {
		summaries[i].Items = byQuery[summaries[i].ID]
	}
	return summaries, nil
}

// RunningQueries lists a customer's queries currently in one of the given
// in-flight statuses, newest first.
func (r *Repository) RunningQueries(ctx context.Context, customerID uuid.UUID, statuses []string) ([]QuerySummaryRow, error) {
	return r.collectSummaries(ctx, `
		SELECT q.id, q.customer_id, q.query_details_text, q.query_status, q.created_at, c.customer_name, c.mobile_number
		FROM queries q
		JOIN customers c ON c.id = q.customer_id
		WHERE q.customer_id = $1 AND q.query_status = ANY($2)
		ORDER BY q.created_at DESC`,
		customerID, statuses,
	)
}

// DuplicateCandidates lists the customer's recent in-flight queries that
// share at least one requested service within the lookback window. Closed
// queries never count as duplicates.
func (r *Repository) DuplicateCandidates(ctx context.Context, customerID uuid.UUID, serviceIDs []uuid.UUID, since time.Time, statuses []string) ([]QuerySummaryRow, error) {
	return r.collectSummaries(ctx, `
		SELECT DISTINCT q.id, q.customer_id, q.query_details_text, q.query_status, q.created_at, c.customer_name, c.mobile_number
		FROM queries q
		JOIN customers c ON c.id = q.customer_id
		JOIN query_items qi ON qi.query_id = q.id
		WHERE q.customer_id = $1 AND q.created_at >= $2 AND q.query_status = ANY($3) AND qi.service_id = ANY($4)
		ORDER BY q.created_at DESC`,
		customerID, since, statuses, serviceIDs,
	)
}

// QueryDetailRow is the full read model for the query detail screen.
type QueryDetailRow struct {
	Query              Query
	CreatedByUserName  *string
	CustomerName       string
	CustomerMobile     string
	CustomerWhatsApp   *string
	CustomerVisit      *string
	CustomerEmail      *string
	CustomerAddress    *string
	CustomerCategories []string
	Items              []TeamQueueRow
}

func (r *Repository) QueryDetail(ctx context.Context, id uuid.UUID) (QueryDetailRow, error) {
	var d QueryDetailRow
	q := &d.Query
	err := r.pool.QueryRow(ctx, `
		SELECT q.id, q.customer_id, q.created_by_user_id, q.query_details_text, q.query_status,
			q.assigned_type, q.assigned_user_id, q.team_id, q.created_at, q.updated_at,
			cu.full_name,
			c.customer_name, c.mobile_number, c.whatsapp_number, c.visit_record, c.customer_email, c.address
		FROM queries q
		JOIN customers c ON c.id = q.customer_id
		LEFT JOIN users cu ON cu.id = q.created_by_user_id
		WHERE q.id = $1`, id,
	).Scan(
		&q.ID, &q.CustomerID, &q.CreatedByUserID, &q.QueryDetailsText, &q.QueryStatus,
		&q.AssignedType, &q.AssignedUserID, &q.TeamID, &q.CreatedAt, &q.UpdatedAt,
		&d.CreatedByUserName,
		&d.CustomerName, &d.CustomerMobile, &d.CustomerWhatsApp, &d.CustomerVisit, &d.CustomerEmail, &d.CustomerAddress,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return QueryDetailRow{}, ErrQueryNotFound
	}
	if err != nil {
		return QueryDetailRow{}, err
	}

	catRows, err := r.pool.Query(ctx, `
		SELECT cat.name
		FROM customer_categories cc
		JOIN categories cat ON cat.id = cc.category_id
		WHERE cc.customer_id = $1
		ORDER BY cat.name ASC`, q.CustomerID)
	if err != nil {
		return QueryDetailRow{}, err
	}
	defer catRows.Close()
	for catRows.Next() {
		var name string
		if err := catRows.Scan(&name); err != nil {
			return QueryDetailRow{}, err
		}
		d.CustomerCategories = append(d.CustomerCategories, name)
	}
	if err := catRows.Err(); err != nil {
		return QueryDetailRow{}, err
	}

	d.Items, err = r.collectQueueRows(ctx, queueRowSelect+` WHERE qi.query_id = $1 ORDER BY qi.created_at ASC`, []any{id})
	if err != nil {
		return QueryDetailRow{}, err
	}
	return d, nil
}
