package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"salesops_backend/internal/directory"
	"salesops_backend/internal/queries/authz"
	"salesops_backend/internal/queries/domain"
	queryrepo "salesops_backend/internal/queries/repository"
	"salesops_backend/internal/queries/transport"
	"salesops_backend/platform/apperr"
)

type TeamQueueParams struct {
	ServiceID      *uuid.UUID
	TeamID         *uuid.UUID
	QueueState     string
	WorkflowStatus string
	Page           int
}

func (s *Service) teamQueueFilter(actor *directory.Actor, p TeamQueueParams) (queryrepo.TeamQueueFilter, error) {
	if !actor.IsSuperUser() && !authz.HoldsPermission(actor, authz.CapabilityView) {
		return queryrepo.TeamQueueFilter{}, apperr.Forbidden("you cannot view team queues")
	}

	teamID := p.TeamID
	if teamID == nil && !actor.IsSuperUser() {
		teamID = actor.TeamID
	}

	state := p.QueueState
	if state == "" {
		state = queryrepo.QueueStateNotAssigned
	}
	switch state {
	case queryrepo.QueueStateNotAssigned, queryrepo.QueueStateDistributed, queryrepo.QueueStateAll:
	default:
		return queryrepo.TeamQueueFilter{}, apperr.ValidationField("queue_state", "unknown queue state")
	}
	if err := validateWorkflowFilter(p.WorkflowStatus); err != nil {
		return queryrepo.TeamQueueFilter{}, err
	}

	return queryrepo.TeamQueueFilter{
		ActorID:        actor.ID,
		Superuser:      actor.IsSuperUser(),
		ServiceID:      p.ServiceID,
		TeamID:         teamID,
		QueueState:     state,
		WorkflowStatus: p.WorkflowStatus,
		Page:           p.Page,
	}, nil
}

// TeamQueue lists the queue items the actor is entitled to see.
func (s *Service) TeamQueue(ctx context.Context, actor *directory.Actor, p TeamQueueParams) (transport.Paginated[transport.TeamQueueItem], error) {
	filter, err := s.teamQueueFilter(actor, p)
	if err != nil {
		return transport.Paginated[transport.TeamQueueItem]{}, err
	}

	rows, total, err := s.repo.TeamQueue(ctx, filter)
	if err != nil {
		return transport.Paginated[transport.TeamQueueItem]{}, apperr.Wrap(apperr.KindInternal, "team queue listing failed", err)
	}

	items := make([]transport.TeamQueueItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, toQueueItem(row))
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	return transport.Paginated[transport.TeamQueueItem]{
		Data:    items,
		Page:    page,
		PerPage: queryrepo.QueuePageSize,
		Total:   total,
	}, nil
}

func (s *Service) TeamQueueCounters(ctx context.Context, actor *directory.Actor, p TeamQueueParams) (transport.TeamQueueCounters, error) {
	filter, err := s.teamQueueFilter(actor, p)
	if err != nil {
		return transport.TeamQueueCounters{}, err
	}

	c, err := s.repo.TeamQueueCounters(ctx, filter)
	if err != nil {
		return transport.TeamQueueCounters{}, apperr.Wrap(apperr.KindInternal, "team queue counters failed", err)
	}
	return transport.TeamQueueCounters{
		NotAssigned: c.NotAssigned,
		Pending:     c.Pending,
		Running:     c.Running,
		FollowUp:    c.FollowUp,
		Sold:        c.Sold,
		Finished:    c.Finished,
	}, nil
}

// validateWorkflowFilter accepts a concrete workflow state, the "all"
// sentinel, or nothing.
func validateWorkflowFilter(raw string) error {
	if raw == "" || raw == "all" || domain.IsWorkflowStatus(raw) {
		return nil
	}
	return apperr.ValidationField("workflow_status", "unknown workflow status")
}

// canUseSelfQueue admits anyone who works queries at all: the self queue is
// personal, so any of the query permissions suffices.
func canUseSelfQueue(actor *directory.Actor) bool {
	return actor.IsSuperUser() ||
		actor.Can("query.view") || actor.Can("query.create") || actor.Can("query.change_status")
}

type SelfQueueParams struct {
	ServiceID      *uuid.UUID
	WorkflowStatus string
	Page           int
}

// SelfQueue lists the actor's own items.
func (s *Service) SelfQueue(ctx context.Context, actor *directory.Actor, p SelfQueueParams) (transport.Paginated[transport.TeamQueueItem], error) {
	if !canUseSelfQueue(actor) {
		return transport.Paginated[transport.TeamQueueItem]{}, apperr.Forbidden("you cannot view the self queue")
	}
	if err := validateWorkflowFilter(p.WorkflowStatus); err != nil {
		return transport.Paginated[transport.TeamQueueItem]{}, err
	}

	filter := queryrepo.SelfQueueFilter{
		ActorID:        actor.ID,
		ServiceID:      p.ServiceID,
		WorkflowStatus: p.WorkflowStatus,
		Page:           p.Page,
	}

	rows, total, err := s.repo.SelfQueue(ctx, filter)
	if err != nil {
		return transport.Paginated[transport.TeamQueueItem]{}, apperr.Wrap(apperr.KindInternal, "self queue listing failed", err)
	}

	items := make([]transport.TeamQueueItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, toQueueItem(row))
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	return transport.Paginated[transport.TeamQueueItem]{
		Data:    items,
		Page:    page,
		PerPage: queryrepo.QueuePageSize,
		Total:   total,
	}, nil
}

func (s *Service) SelfQueueCounters(ctx context.Context, actor *directory.Actor, serviceID *uuid.UUID) (transport.SelfQueueCounters, error) {
	if !canUseSelfQueue(actor) {
		return transport.SelfQueueCounters{}, apperr.Forbidden("you cannot view the self queue")
	}

	c, err := s.repo.SelfQueueCounters(ctx, actor.ID, serviceID)
	if err != nil {
		return transport.SelfQueueCounters{}, apperr.Wrap(apperr.KindInternal, "self queue counters failed", err)
	}
	return transport.SelfQueueCounters{
		Pending:  c.Pending,
		Running:  c.Running,
		FollowUp: c.FollowUp,
		Sold:     c.Sold,
		Finished: c.Finished,
	}, nil
}

// Badges aggregates the attention counters for the navigation bar. Team
// numbers are included only when the actor can see team queues at all.
func (s *Service) Badges(ctx context.Context, actor *directory.Actor) (transport.NotificationBadges, error) {
	canSeeTeam := actor.IsSuperUser() || authz.HoldsPermission(actor, authz.CapabilityView)

	b, err := s.repo.Badges(ctx, actor.ID, actor.IsSuperUser())
	if err != nil {
		return transport.NotificationBadges{}, apperr.Wrap(apperr.KindInternal, "badge counts failed", err)
	}

	out := transport.NotificationBadges{
		SelfPending:     b.SelfPending,
		SelfFollowUpDue: b.SelfFollowUpDue,
	}
	out.SelfEvents = out.SelfPending + out.SelfFollowUpDue
	if canSeeTeam {
		out.TeamNotAssigned = b.TeamNotAssigned
		out.TeamFollowUpDue = b.TeamFollowUpDue
		out.TeamEvents = out.TeamNotAssigned + out.TeamFollowUpDue
	}
	out.TotalEvents = out.SelfEvents + out.TeamEvents
	return out, nil
}

// Detail returns the full read model for one query. Visibility follows the
// queue rules: the creator, any item assignee, team-queue viewers, and
// superusers may look.
func (s *Service) Detail(ctx context.Context, actor *directory.Actor, queryID uuid.UUID) (transport.QueryDetailResponse, error) {
	d, err := s.repo.QueryDetail(ctx, queryID)
	if err != nil {
		if errors.Is(err, queryrepo.ErrQueryNotFound) {
			return transport.QueryDetailResponse{}, apperr.NotFound("query not found")
		}
		return transport.QueryDetailResponse{}, apperr.Wrap(apperr.KindInternal, "query detail failed", err)
	}

	visible := actor.IsSuperUser() ||
		d.Query.CreatedByUserID == actor.ID ||
		authz.HoldsPermission(actor, authz.CapabilityView)
	if !visible {
		assigned, err := s.repo.AnyItemAssignedTo(ctx, queryID, actor.ID)
		if err != nil {
			return transport.QueryDetailResponse{}, apperr.Wrap(apperr.KindInternal, "visibility check failed", err)
		}
		visible = assigned
	}
	if !visible {
		return transport.QueryDetailResponse{}, apperr.Forbidden("you cannot view this query")
	}

	items := make([]transport.QueryItemResponse, 0, len(d.Items))
	for _, row := range d.Items {
		item := toItemResponse(row.Item, row.ServiceName)
		items = append(items, item)
	}

	categories := d.CustomerCategories
	if categories == nil {
		categories = []string{}
	}

	return transport.QueryDetailResponse{
		ID:               d.Query.ID,
		QueryStatus:      string(d.Query.QueryStatus),
		QueryDetailsText: d.Query.QueryDetailsText,
		QueryInputtedBy:  d.CreatedByUserName,
		Customer: transport.QueryDetailCustomer{
			CustomerName:   d.CustomerName,
			MobileNumber:   d.CustomerMobile,
			WhatsAppNumber: d.CustomerWhatsApp,
			VisitRecord:    d.CustomerVisit,
			CustomerEmail:  d.CustomerEmail,
			Address:        d.CustomerAddress,
			Categories:     categories,
		},
		Items: items,
	}, nil
}
