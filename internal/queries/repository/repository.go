package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"salesops_backend/internal/queries/authz"
	"salesops_backend/internal/queries/domain"
)

var (
	ErrQueryNotFound = errors.New("query not found")
	ErrItemNotFound  = errors.New("query item not found")
	ErrQueueNotFound = errors.New("no active service queue for service")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Pool exposes the underlying pool for pool-level (non-transactional) writes.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// InTx runs fn inside a transaction, committing on nil error.
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

type Query struct {
	ID               uuid.UUID
	CustomerID       uuid.UUID
	CreatedByUserID  uuid.UUID
	QueryDetailsText string
	QueryStatus      domain.QueryStatus
	AssignedType     domain.AssignedType
	AssignedUserID   *uuid.UUID
	TeamID           *uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type QueryItem struct {
	ID                   uuid.UUID
	QueryID              uuid.UUID
	ServiceID            uuid.UUID
	AssignedType         domain.AssignedType
	AssignedUserID       *uuid.UUID
	AssignedByUserID     *uuid.UUID
	AssignmentNote       *string
	TeamID               *uuid.UUID
	TeamQueueOwnerUserID *uuid.UUID
	ItemStatus           domain.ItemStatus
	WorkflowStatus       domain.WorkflowStatus
	QuotationDate        *time.Time
	FollowUpDate         *time.Time
	FollowUpCount        int
	FinishedNote         *string
	ReviewStatus         *string
	ReviewNote           *string
	ReviewedByUserID     *uuid.UUID
	ReviewedAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

const queryColumns = `id, customer_id, created_by_user_id, query_details_text, query_status,
	assigned_type, assigned_user_id, team_id, created_at, updated_at`

const itemColumns = `id, query_id, service_id, assigned_type, assigned_user_id, assigned_by_user_id,
	assignment_note, team_id, team_queue_owner_user_id, item_status, workflow_status,
	quotation_date, follow_up_date, follow_up_count, finished_note,
	review_status, review_note, reviewed_by_user_id, reviewed_at, created_at, updated_at`

func scanQuery(row pgx.Row) (Query, error) {
	var q Query
	err := row.Scan(
		&q.ID, &q.CustomerID, &q.CreatedByUserID, &q.QueryDetailsText, &q.QueryStatus,
		&q.AssignedType, &q.AssignedUserID, &q.TeamID, &q.CreatedAt, &q.UpdatedAt,
	)
	return q, err
}

func scanItem(row pgx.Row) (QueryItem, error) {
	var it QueryItem
	err := row.Scan(
		&it.ID, &it.QueryID, &it.ServiceID, &it.AssignedType, &it.AssignedUserID, &it.AssignedByUserID,
		&it.AssignmentNote, &it.TeamID, &it.TeamQueueOwnerUserID, &it.ItemStatus, &it.WorkflowStatus,
		&it.QuotationDate, &it.FollowUpDate, &it.FollowUpCount, &it.FinishedNote,
		&it.ReviewStatus, &it.ReviewNote, &it.ReviewedByUserID, &it.ReviewedAt, &it.CreatedAt, &it.UpdatedAt,
	)
	return it, err
}

func (r *Repository) GetQuery(ctx context.Context, id uuid.UUID) (Query, error) {
	q, err := scanQuery(r.pool.QueryRow(ctx, `SELECT `+queryColumns+` FROM queries WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Query{}, ErrQueryNotFound
	}
	return q, err
}

func (r *Repository) GetItem(ctx context.Context, id uuid.UUID) (QueryItem, error) {
	it, err := scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM query_items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return QueryItem{}, ErrItemNotFound
	}
	return it, err
}

// GetItemTx re-reads an item inside a transaction so workflow decisions see
// the row state the transaction will update.
func (r *Repository) GetItemTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (QueryItem, error) {
	it, err := scanItem(tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM query_items WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return QueryItem{}, ErrItemNotFound
	}
	return it, err
}

type CreateQueryParams struct {
	CustomerID       uuid.UUID
	CreatedByUserID  uuid.UUID
	QueryDetailsText string
	QueryStatus      domain.QueryStatus
	AssignedType     domain.AssignedType
	AssignedUserID   *uuid.UUID
	TeamID           *uuid.UUID
}

func (r *Repository) InsertQuery(ctx context.Context, tx pgx.Tx, params CreateQueryParams) (Query, error) {
	return scanQuery(tx.QueryRow(ctx, `
		INSERT INTO queries (customer_id, created_by_user_id, query_details_text, query_status, assigned_type, assigned_user_id, team_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+queryColumns,
		params.CustomerID, params.CreatedByUserID, params.QueryDetailsText, params.QueryStatus,
		params.AssignedType, params.AssignedUserID, params.TeamID,
	))
}

type CreateItemParams struct {
	QueryID              uuid.UUID
	ServiceID            uuid.UUID
	AssignedType         domain.AssignedType
	AssignedUserID       *uuid.UUID
	AssignedByUserID     *uuid.UUID
	TeamID               *uuid.UUID
	TeamQueueOwnerUserID *uuid.UUID
	WorkflowStatus       domain.WorkflowStatus
}

func (r *Repository) InsertItem(ctx context.Context, tx pgx.Tx, params CreateItemParams) (QueryItem, error) {
	return scanItem(tx.QueryRow(ctx, `
		INSERT INTO query_items (query_id, service_id, assigned_type, assigned_user_id, assigned_by_user_id,
			team_id, team_queue_owner_user_id, item_status, workflow_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'active', $8)
		RETURNING `+itemColumns,
		params.QueryID, params.ServiceID, params.AssignedType, params.AssignedUserID, params.AssignedByUserID,
		params.TeamID, params.TeamQueueOwnerUserID, params.WorkflowStatus,
	))
}

func (r *Repository) ItemsByQuery(ctx context.Context, queryID uuid.UUID) ([]QueryItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM query_items WHERE query_id = $1 ORDER BY created_at ASC`, queryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]QueryItem, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ServiceQueue is the routing mapping a service resolves to at intake time.
type ServiceQueue struct {
	ID               uuid.UUID
	ServiceID        uuid.UUID
	TeamID           uuid.UUID
	QueueOwnerUserID *uuid.UUID
}

// ActiveServiceQueue resolves the active queue mapping for a service,
// optionally scoped to a team. The earliest mapping wins when several exist.
func (r *Repository) ActiveServiceQueue(ctx context.Context, tx pgx.Tx, serviceID uuid.UUID, teamID *uuid.UUID) (ServiceQueue, error) {
	sql := `
		SELECT id, service_id, team_id, queue_owner_user_id
		FROM service_queues
		WHERE service_id = $1 AND is_active = true`
	args := []any{serviceID}
	if teamID != nil {
		sql += ` AND team_id = $2`
		args = append(args, *teamID)
	}
	sql += ` ORDER BY created_at ASC LIMIT 1`

	var sq ServiceQueue
	err := tx.QueryRow(ctx, sql, args...).Scan(&sq.ID, &sq.ServiceID, &sq.TeamID, &sq.QueueOwnerUserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ServiceQueue{}, ErrQueueNotFound
	}
	return sq, err
}

type AssignmentUpdate struct {
	AssignedType     domain.AssignedType
	AssignedUserID   uuid.UUID
	AssignedByUserID uuid.UUID
	AssignmentNote   *string
	TeamID           *uuid.UUID
}

func (r *Repository) UpdateItemAssignment(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, upd AssignmentUpdate) (QueryItem, error) {
	it, err := scanItem(tx.QueryRow(ctx, `
		UPDATE query_items
		SET assigned_type = $2, assigned_user_id = $3, assigned_by_user_id = $4, assignment_note = $5, team_id = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+itemColumns,
		itemID, upd.AssignedType, upd.AssignedUserID, upd.AssignedByUserID, upd.AssignmentNote, upd.TeamID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return QueryItem{}, ErrItemNotFound
	}
	return it, err
}

// WorkflowUpdate carries only the columns a given transition touches; nil
// pointers leave the column untouched.
type WorkflowUpdate struct {
	WorkflowStatus   domain.WorkflowStatus
	QuotationDate    *time.Time
	FollowUpDate     *time.Time
	ClearFollowUp    bool
	FollowUpCount    *int
	FinishedNote     *string
	ItemStatus       *domain.ItemStatus
	ReviewStatus     *string
	ReviewNote       *string
	ReviewedByUserID *uuid.UUID
	ReviewedAt       *time.Time
}

func (r *Repository) UpdateItemWorkflow(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, upd WorkflowUpdate) (QueryItem, error) {
	sets := []string{"workflow_status = $2", "updated_at = now()"}
	args := []any{itemID, upd.WorkflowStatus}

	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.QuotationDate != nil {
		add("quotation_date", *upd.QuotationDate)
	}
	if upd.FollowUpDate != nil {
		add("follow_up_date", *upd.FollowUpDate)
	} else if upd.ClearFollowUp {
		sets = append(sets, "follow_up_date = NULL")
	}
	if upd.FollowUpCount != nil {
		add("follow_up_count", *upd.FollowUpCount)
	}
	if upd.FinishedNote != nil {
		add("finished_note", *upd.FinishedNote)
	}
	if upd.ItemStatus != nil {
		add("item_status", *upd.ItemStatus)
	}
	if upd.ReviewStatus != nil {
		add("review_status", *upd.ReviewStatus)
	}
	if upd.ReviewNote != nil {
		add("review_note", *upd.ReviewNote)
	}
	if upd.ReviewedByUserID != nil {
		add("reviewed_by_user_id", *upd.ReviewedByUserID)
	}
	if upd.ReviewedAt != nil {
		add("reviewed_at", *upd.ReviewedAt)
	}

	sql := fmt.Sprintf("UPDATE query_items SET %s WHERE id = $1 RETURNING %s", strings.Join(sets, ", "), itemColumns)
	it, err := scanItem(tx.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return QueryItem{}, ErrItemNotFound
	}
	return it, err
}

// ItemWorkflowStatuses lists the workflow statuses of every item under a
// query, for deriving the aggregate query status.
func (r *Repository) ItemWorkflowStatuses(ctx context.Context, tx pgx.Tx, queryID uuid.UUID) ([]domain.WorkflowStatus, error) {
	rows, err := tx.Query(ctx, `SELECT workflow_status FROM query_items WHERE query_id = $1`, queryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	statuses := make([]domain.WorkflowStatus, 0)
	for rows.Next() {
		var s domain.WorkflowStatus
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}

func (r *Repository) SetQueryStatus(ctx context.Context, tx pgx.Tx, queryID uuid.UUID, status domain.QueryStatus) error {
	tag, err := tx.Exec(ctx, `UPDATE queries SET query_status = $2, updated_at = now() WHERE id = $1`, queryID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrQueryNotFound
	}
	return nil
}

func (r *Repository) SetItemsItemStatus(ctx context.Context, tx pgx.Tx, queryID uuid.UUID, status domain.ItemStatus) error {
	_, err := tx.Exec(ctx, `UPDATE query_items SET item_status = $2, updated_at = now() WHERE query_id = $1`, queryID, status)
	return err
}

// AnyItemAssignedTo reports whether at least one item of the query is
// assigned to the given user.
func (r *Repository) AnyItemAssignedTo(ctx context.Context, queryID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM query_items WHERE query_id = $1 AND assigned_user_id = $2)`,
		queryID, userID,
	).Scan(&ok)
	return ok, err
}

// ServiceNames resolves service display names in bulk.
func (r *Repository) ServiceNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM services WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[uuid.UUID]string, len(ids))
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

// FetchGrants loads the authorization facts linking a user to an item's
// service queue: queue ownership, active team role, and any explicit grant.
func (r *Repository) FetchGrants(ctx context.Context, serviceID uuid.UUID, teamID *uuid.UUID, userID uuid.UUID) (authz.Grants, error) {
	var g authz.Grants
	if teamID == nil {
		return g, nil
	}

	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM service_queues
			WHERE service_id = $1 AND team_id = $2 AND is_active = true AND queue_owner_user_id = $3
		),
		COALESCE((
			SELECT team_role FROM team_role_assignments
			WHERE team_id = $2 AND user_id = $3 AND is_active = true
			ORDER BY CASE team_role WHEN 'head' THEN 0 WHEN 'delegate_head' THEN 1 ELSE 2 END
			LIMIT 1
		), '')`,
		serviceID, *teamID, userID,
	).Scan(&g.OwnsQueue, &g.TeamRole)
	if err != nil {
		return authz.Grants{}, err
	}

	var explicit authz.ExplicitGrant
	err = r.pool.QueryRow(ctx, `
		SELECT can_view_queue, can_distribute, can_assign_to_self
		FROM queue_authorizations
		WHERE service_id = $1 AND team_id = $2 AND user_id = $3 AND is_active = true`,
		serviceID, *teamID, userID,
	).Scan(&explicit.CanViewQueue, &explicit.CanDistribute, &explicit.CanAssignToSelf)
	if errors.Is(err, pgx.ErrNoRows) {
		return g, nil
	}
	if err != nil {
		return authz.Grants{}, err
	}
	g.Explicit = &explicit
	return g, nil
}
