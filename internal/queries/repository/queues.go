package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const QueuePageSize = 20

// QueueStateNotAssigned and QueueStateDistributed partition a team queue into
// items still waiting in the pool and items already handed to a person.
const (
	QueueStateNotAssigned = "not_assigned"
	QueueStateDistributed = "distributed"
	QueueStateAll         = "all"
)

// TeamQueueRow is a queue listing row with its display joins resolved.
type TeamQueueRow struct {
	Item             QueryItem
	ServiceName      string
	AssignedUserName *string
	TeamName         *string
	QueryDetailsText string
	QueryStatus      string
	QueryCreatedAt   time.Time
	CustomerID       uuid.UUID
	CustomerName     string
	CustomerMobile   string
}

// TeamQueueFilter narrows a team queue listing. Visibility applies the
// queue-membership predicate unless the caller is a superuser.
type TeamQueueFilter struct {
	ActorID        uuid.UUID
	Superuser      bool
	ServiceID      *uuid.UUID
	TeamID         *uuid.UUID
	QueueState     string
	WorkflowStatus string
	Page           int
}

// visibilityPredicate restricts team-queue rows to items whose queue the
// actor belongs to: as queue owner, via an explicit grant with view rights,
// or as an active head or delegate head of the item's team.
const visibilityPredicate = `(
	EXISTS (
		SELECT 1 FROM service_queues sq
		WHERE sq.service_id = qi.service_id AND sq.team_id = qi.team_id
		  AND sq.is_active = true AND sq.queue_owner_user_id = %[1]s
	)
	OR EXISTS (
		SELECT 1 FROM queue_authorizations qa
		WHERE qa.service_id = qi.service_id AND qa.team_id = qi.team_id
		  AND qa.user_id = %[1]s AND qa.is_active = true AND qa.can_view_queue = true
	)
	OR EXISTS (
		SELECT 1 FROM team_role_assignments tra
		WHERE tra.team_id = qi.team_id AND tra.user_id = %[1]s
		  AND tra.is_active = true AND tra.team_role IN ('head', 'delegate_head')
	)
)`

func buildTeamQueueWhere(f TeamQueueFilter) (string, []any) {
	conds := []string{"qi.item_status = 'active'"}
	args := []any{}

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.ServiceID != nil {
		conds = append(conds, "qi.service_id = "+arg(*f.ServiceID))
	}
	if f.TeamID != nil {
		conds = append(conds, "qi.team_id = "+arg(*f.TeamID))
	}
	switch f.QueueState {
	case QueueStateNotAssigned:
		conds = append(conds, "qi.assigned_type = 'team'", "qi.assigned_user_id IS NULL")
	case QueueStateDistributed:
		conds = append(conds, "qi.assigned_user_id IS NOT NULL")
	}
	if f.WorkflowStatus != "" && f.WorkflowStatus != "all" {
		conds = append(conds, "qi.workflow_status = "+arg(f.WorkflowStatus))
	}
	if !f.Superuser {
		conds = append(conds, fmt.Sprintf(visibilityPredicate, arg(f.ActorID)))
	}
	return strings.Join(conds, " AND "), args
}

const queueRowSelect = `
	SELECT ` + prefixedItemColumns + `,
		s.name, au.full_name, t.name,
		q.query_details_text, q.query_status, q.created_at,
		c.id, c.customer_name, c.mobile_number
	FROM query_items qi
	JOIN queries q ON q.id = qi.query_id
	JOIN customers c ON c.id = q.customer_id
	JOIN services s ON s.id = qi.service_id
	LEFT JOIN users au ON au.id = qi.assigned_user_id
	LEFT JOIN teams t ON t.id = qi.team_id
`

const prefixedItemColumns = `qi.id, qi.query_id, qi.service_id, qi.assigned_type, qi.assigned_user_id, qi.assigned_by_user_id,
	qi.assignment_note, qi.team_id, qi.team_queue_owner_user_id, qi.item_status, qi.workflow_status,
	qi.quotation_date, qi.follow_up_date, qi.follow_up_count, qi.finished_note,
	qi.review_status, qi.review_note, qi.reviewed_by_user_id, qi.reviewed_at, qi.created_at, qi.updated_at`

func (r *Repository) collectQueueRows(ctx context.Context, sql string, args []any) ([]TeamQueueRow, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]TeamQueueRow, 0)
	for rows.Next() {
		var row TeamQueueRow
		it := &row.Item
		if err := rows.Scan(
			&it.ID, &it.QueryID, &it.ServiceID, &it.AssignedType, &it.AssignedUserID, &it.AssignedByUserID,
			&it.AssignmentNote, &it.TeamID, &it.TeamQueueOwnerUserID, &it.ItemStatus, &it.WorkflowStatus,
			&it.QuotationDate, &it.FollowUpDate, &it.FollowUpCount, &it.FinishedNote,
			&it.ReviewStatus, &it.ReviewNote, &it.ReviewedByUserID, &it.ReviewedAt, &it.CreatedAt, &it.UpdatedAt,
			&row.ServiceName, &row.AssignedUserName, &row.TeamName,
			&row.QueryDetailsText, &row.QueryStatus, &row.QueryCreatedAt,
			&row.CustomerID, &row.CustomerName, &row.CustomerMobile,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// TeamQueue lists team queue items newest-first with a total for pagination.
func (r *Repository) TeamQueue(ctx context.Context, f TeamQueueFilter) ([]TeamQueueRow, int64, error) {
	where, args := buildTeamQueueWhere(f)

	var total int64
	countSQL := `SELECT COUNT(*) FROM query_items qi WHERE ` + where
	if err := r.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	listArgs := append(append([]any{}, args...), QueuePageSize, (page-1)*QueuePageSize)
	sql := fmt.Sprintf(`%s WHERE %s ORDER BY qi.created_at DESC LIMIT $%d OFFSET $%d`,
		queueRowSelect, where, len(listArgs)-1, len(listArgs))

	items, err := r.collectQueueRows(ctx, sql, listArgs)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// TeamQueueCounterRow groups active team-queue items by assignment and
// workflow state. Sold is windowed to the trailing 30 days.
type TeamQueueCounterRow struct {
	NotAssigned int64
	Pending     int64
	Running     int64
	FollowUp    int64
	Sold        int64
	Finished    int64
}

func (r *Repository) TeamQueueCounters(ctx context.Context, f TeamQueueFilter) (TeamQueueCounterRow, error) {
	f.QueueState = QueueStateAll
	f.WorkflowStatus = ""
	where, args := buildTeamQueueWhere(f)

	args = append(args, time.Now().AddDate(0, 0, -30))
	since := fmt.Sprintf("$%d", len(args))

	sql := `
		SELECT
			COUNT(*) FILTER (WHERE qi.assigned_type = 'team' AND qi.assigned_user_id IS NULL),
			COUNT(*) FILTER (WHERE qi.assigned_user_id IS NOT NULL AND qi.workflow_status = 'pending'),
			COUNT(*) FILTER (WHERE qi.assigned_user_id IS NOT NULL AND qi.workflow_status = 'running'),
			COUNT(*) FILTER (WHERE qi.assigned_user_id IS NOT NULL AND qi.workflow_status = 'follow_up'),
			COUNT(*) FILTER (WHERE qi.assigned_user_id IS NOT NULL AND qi.workflow_status = 'sold' AND qi.updated_at >= ` + since + `),
			COUNT(*) FILTER (WHERE qi.assigned_user_id IS NOT NULL AND qi.workflow_status = 'finished')
		FROM query_items qi WHERE ` + where

	var c TeamQueueCounterRow
	err := r.pool.QueryRow(ctx, sql, args...).Scan(&c.NotAssigned, &c.Pending, &c.Running, &c.FollowUp, &c.Sold, &c.Finished)
	return c, err
}

type SelfQueueFilter struct {
	ActorID        uuid.UUID
	ServiceID      *uuid.UUID
	WorkflowStatus string
	Page           int
}

// buildSelfQueueWhere deliberately carries no item_status predicate: sold and
// finished items close, yet must stay in the owner's listing and counters.
func buildSelfQueueWhere(f SelfQueueFilter) (string, []any) {
	args := []any{f.ActorID}
	conds := []string{"qi.assigned_user_id = $1"}

	if f.ServiceID != nil {
		args = append(args, *f.ServiceID)
		conds = append(conds, fmt.Sprintf("qi.service_id = $%d", len(args)))
	}
	if f.WorkflowStatus != "" && f.WorkflowStatus != "all" {
		args = append(args, f.WorkflowStatus)
		conds = append(conds, fmt.Sprintf("qi.workflow_status = $%d", len(args)))
	}
	return strings.Join(conds, " AND "), args
}

// SelfQueue lists the actor's own items, open and closed alike.
func (r *Repository) SelfQueue(ctx context.Context, f SelfQueueFilter) ([]TeamQueueRow, int64, error) {
	where, args := buildSelfQueueWhere(f)

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM query_items qi WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	listArgs := append(append([]any{}, args...), QueuePageSize, (page-1)*QueuePageSize)
	sql := fmt.Sprintf(`%s WHERE %s ORDER BY qi.created_at DESC LIMIT $%d OFFSET $%d`,
		queueRowSelect, where, len(listArgs)-1, len(listArgs))

	items, err := r.collectQueueRows(ctx, sql, listArgs)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// SelfQueueCounterRow groups the actor's items by workflow state. Sold and
// finished are windowed to the trailing 30 days.
type SelfQueueCounterRow struct {
	Pending  int64
	Running  int64
	FollowUp int64
	Sold     int64
	Finished int64
}

func (r *Repository) SelfQueueCounters(ctx context.Context, actorID uuid.UUID, serviceID *uuid.UUID) (SelfQueueCounterRow, error) {
	where, args := buildSelfQueueWhere(SelfQueueFilter{ActorID: actorID, ServiceID: serviceID})

	args = append(args, time.Now().AddDate(0, 0, -30))
	since := fmt.Sprintf("$%d", len(args))

	sql := `
		SELECT
			COUNT(*) FILTER (WHERE qi.workflow_status = 'pending'),
			COUNT(*) FILTER (WHERE qi.workflow_status = 'running'),
			COUNT(*) FILTER (WHERE qi.workflow_status = 'follow_up'),
			COUNT(*) FILTER (WHERE qi.workflow_status = 'sold' AND qi.updated_at >= ` + since + `),
			COUNT(*) FILTER (WHERE qi.workflow_status = 'finished' AND qi.updated_at >= ` + since + `)
		FROM query_items qi WHERE ` + where

	var c SelfQueueCounterRow
	err := r.pool.QueryRow(ctx, sql, args...).Scan(&c.Pending, &c.Running, &c.FollowUp, &c.Sold, &c.Finished)
	return c, err
}

// BadgeCounts feeds the sidebar notification badges.
type BadgeCounts struct {
	SelfPending     int64
	SelfFollowUpDue int64
	TeamNotAssigned int64
	TeamFollowUpDue int64
}

// Badges counts attention-needing items for the actor: own pending work and
// follow-ups due today or overdue, plus the same for the team queues the
// actor can see.
func (r *Repository) Badges(ctx context.Context, actorID uuid.UUID, superuser bool) (BadgeCounts, error) {
	var b BadgeCounts

	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE workflow_status = 'pending'),
			COUNT(*) FILTER (WHERE workflow_status = 'follow_up' AND follow_up_date IS NOT NULL AND follow_up_date <= CURRENT_DATE)
		FROM query_items
		WHERE item_status = 'active' AND assigned_user_id = $1`,
		actorID,
	).Scan(&b.SelfPending, &b.SelfFollowUpDue)
	if err != nil {
		return BadgeCounts{}, err
	}

	where, args := buildTeamQueueWhere(TeamQueueFilter{ActorID: actorID, Superuser: superuser, QueueState: QueueStateAll})
	sql := `
		SELECT
			COUNT(*) FILTER (WHERE qi.assigned_type = 'team' AND qi.assigned_user_id IS NULL),
			COUNT(*) FILTER (WHERE qi.assigned_user_id IS NOT NULL AND qi.workflow_status = 'follow_up'
				AND qi.follow_up_date IS NOT NULL AND qi.follow_up_date <= CURRENT_DATE)
		FROM query_items qi WHERE ` + where
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&b.TeamNotAssigned, &b.TeamFollowUpDue); err != nil {
		return BadgeCounts{}, err
	}
	return b, nil
}
