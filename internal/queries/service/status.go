package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"salesops_backend/internal/audit"
	"salesops_backend/internal/directory"
	"salesops_backend/internal/queries/authz"
	"salesops_backend/internal/queries/domain"
	queryrepo "salesops_backend/internal/queries/repository"
	"salesops_backend/internal/queries/transport"
	"salesops_backend/platform/apperr"
)

// UpdateQueryStatus sets the aggregate status directly. Leaving pending
// requires that somebody actually owns the work, and a terminal status
// closes every item under the query.
func (s *Service) UpdateQueryStatus(ctx context.Context, actor *directory.Actor, queryID uuid.UUID, status string) error {
	if !contains(s.cfg.GetQueryStatuses(), status) {
		return apperr.ValidationField("query_status", "unknown query status")
	}
	target := domain.QueryStatus(status)

	query, err := s.repo.GetQuery(ctx, queryID)
	if err != nil {
		if errors.Is(err, queryrepo.ErrQueryNotFound) {
			return apperr.NotFound("query not found")
		}
		return apperr.Wrap(apperr.KindInternal, "query lookup failed", err)
	}

	if query.QueryStatus == domain.QueryPending && target == domain.QueryRunning {
		assigned := query.AssignedUserID != nil && *query.AssignedUserID == actor.ID
		if !assigned {
			assigned, err = s.repo.AnyItemAssignedTo(ctx, queryID, actor.ID)
			if err != nil {
				return apperr.Wrap(apperr.KindInternal, "assignment lookup failed", err)
			}
		}
		if !assigned {
			return apperr.ValidationField("query_status", "only the query's assignee can mark it running")
		}
	}

	err = s.repo.InTx(ctx, func(tx pgx.Tx) error {
		if err := s.repo.SetQueryStatus(ctx, tx, queryID, target); err != nil {
			return err
		}

		itemStatus := domain.ItemActive
		if target == domain.QuerySold || target == domain.QueryFinished {
			itemStatus = domain.ItemClosed
		}
		if err := s.repo.SetItemsItemStatus(ctx, tx, queryID, itemStatus); err != nil {
			return err
		}

		return s.audits.Append(ctx, tx, audit.AppendParams{
			ActorUserID: uuidPtr(actor.ID),
			SubjectType: audit.SubjectQuery,
			SubjectID:   queryID,
			Action:      audit.ActionQueryStatusChanged,
			OldValues:   map[string]any{"query_status": string(query.QueryStatus)},
			NewValues:   map[string]any{"query_status": string(target)},
		})
	})
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "query status update failed", err)
	}
	return nil
}

// UpdateItemStatus advances one item through the workflow, validating the
// transition, the per-status field requirements, and the follow-up cap, then
// re-derives the parent query's aggregate status in the same transaction.
func (s *Service) UpdateItemStatus(ctx context.Context, actor *directory.Actor, itemID uuid.UUID, req transport.UpdateItemStatusRequest) (transport.QueryItemResponse, error) {
	target := domain.WorkflowStatus(req.WorkflowStatus)

	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, queryrepo.ErrItemNotFound) {
			return transport.QueryItemResponse{}, apperr.NotFound("query item not found")
		}
		return transport.QueryItemResponse{}, apperr.Wrap(apperr.KindInternal, "item lookup failed", err)
	}

	actedAs, err := s.authorizeItemChange(ctx, actor, item, target)
	if err != nil {
		return transport.QueryItemResponse{}, err
	}

	upd, err := s.buildWorkflowUpdate(actor, item, target, req)
	if err != nil {
		return transport.QueryItemResponse{}, err
	}

	var updated queryrepo.QueryItem
	var oldQueryStatus, newQueryStatus domain.QueryStatus

	err = s.repo.InTx(ctx, func(tx pgx.Tx) error {
		// Re-read under lock: the transition and the follow-up counter must
		// hold against the row the transaction will actually update.
		current, err := s.repo.GetItemTx(ctx, tx, itemID)
		if err != nil {
			return err
		}
		upd, err = s.buildWorkflowUpdate(actor, current, target, req)
		if err != nil {
			return err
		}

		updated, err = s.repo.UpdateItemWorkflow(ctx, tx, itemID, upd)
		if err != nil {
			return err
		}

		statuses, err := s.repo.ItemWorkflowStatuses(ctx, tx, item.QueryID)
		if err != nil {
			return err
		}
		query, err := s.repo.GetQuery(ctx, item.QueryID)
		if err != nil {
			return err
		}
		oldQueryStatus = query.QueryStatus
		newQueryStatus = domain.AggregateStatus(statuses)
		if newQueryStatus != oldQueryStatus {
			if err := s.repo.SetQueryStatus(ctx, tx, item.QueryID, newQueryStatus); err != nil {
				return err
			}
		}

		before, after := workflowSnapshots(current, upd)
		if err := s.audits.Append(ctx, tx, audit.AppendParams{
			ActorUserID: uuidPtr(actor.ID),
			SubjectType: audit.SubjectQueryItem,
			SubjectID:   itemID,
			Action:      audit.ActionItemStatusChanged,
			OldValues:   before,
			NewValues:   after,
			Meta:        map[string]any{"acted_as": actedAs},
		}); err != nil {
			return err
		}

		// The derived query status gets its own trail entry so "who made
		// this query running" stays answerable from the query's history.
		if newQueryStatus != oldQueryStatus {
			return s.audits.Append(ctx, tx, audit.AppendParams{
				ActorUserID: uuidPtr(actor.ID),
				SubjectType: audit.SubjectQuery,
				SubjectID:   item.QueryID,
				Action:      audit.ActionQueryStatusChanged,
				OldValues:   map[string]any{"query_status": string(oldQueryStatus)},
				NewValues:   map[string]any{"query_status": string(newQueryStatus)},
				Meta:        map[string]any{"via_item_id": itemID},
			})
		}
		return nil
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return transport.QueryItemResponse{}, appErr
		}
		return transport.QueryItemResponse{}, apperr.Wrap(apperr.KindInternal, "item status update failed", err)
	}

	names, nameErr := s.repo.ServiceNames(ctx, []uuid.UUID{updated.ServiceID})
	if nameErr != nil {
		names = map[uuid.UUID]string{}
	}
	return toItemResponse(updated, names[updated.ServiceID]), nil
}

// authorizeItemChange gates a workflow transition on the target status and
// returns the acted-as label recorded in the audit trail. The grant lookup
// only happens for review targets; everything else is decided from the item
// row alone.
func (s *Service) authorizeItemChange(ctx context.Context, actor *directory.Actor, item queryrepo.QueryItem, target domain.WorkflowStatus) (string, error) {
	var grants authz.Grants
	if !actor.IsSuperUser() && domain.IsReview(target) {
		var err error
		grants, err = s.itemGrants(ctx, actor, item)
		if err != nil {
			return "", apperr.Wrap(apperr.KindInternal, "authorization lookup failed", err)
		}
	}
	return itemChangeRole(actor, item, target, grants)
}

// itemChangeRole decides who may drive an item into the target status.
// Review states belong to queue managers; every other transition belongs to
// the item's current assignee. Superusers pass either gate.
func itemChangeRole(actor *directory.Actor, item queryrepo.QueryItem, target domain.WorkflowStatus, grants authz.Grants) (string, error) {
	if actor.IsSuperUser() {
		return "admin", nil
	}
	if domain.IsReview(target) {
		if !authz.Allowed(actor, authz.CapabilityDistribute, grants) {
			return "", apperr.Forbidden("only a queue manager may review this item")
		}
		return authz.ActedAs(grants), nil
	}
	if item.AssignedUserID != nil && *item.AssignedUserID == actor.ID {
		return "assignee", nil
	}
	return "", apperr.Forbidden("only the item's assignee can advance its workflow")
}

func (s *Service) buildWorkflowUpdate(actor *directory.Actor, item queryrepo.QueryItem, target domain.WorkflowStatus, req transport.UpdateItemStatusRequest) (queryrepo.WorkflowUpdate, error) {
	if !domain.CanTransition(item.WorkflowStatus, target) {
		return queryrepo.WorkflowUpdate{}, apperr.ValidationField("workflow_status",
			fmt.Sprintf("cannot move from %s to %s", item.WorkflowStatus, target))
	}
	if domain.IsOperational(target) && item.AssignedUserID == nil {
		return queryrepo.WorkflowUpdate{}, apperr.ValidationField("workflow_status",
			"assign the item before advancing its workflow")
	}

	upd := queryrepo.WorkflowUpdate{WorkflowStatus: target}

	switch target {
	case domain.WorkflowRunning:
		date, err := requireDate(req.QuotationDate, "quotation_date")
		if err != nil {
			return queryrepo.WorkflowUpdate{}, err
		}
		upd.QuotationDate = &date

	case domain.WorkflowFollowUp:
		date, err := requireDate(req.FollowUpDate, "follow_up_date")
		if err != nil {
			return queryrepo.WorkflowUpdate{}, err
		}
		count, ok := domain.NextFollowUpCount(item.WorkflowStatus, item.FollowUpCount, s.cfg.GetFollowUpMaxLimit())
		if !ok {
			return queryrepo.WorkflowUpdate{}, apperr.ValidationField("workflow_status",
				fmt.Sprintf("follow-up limit of %d reached", s.cfg.GetFollowUpMaxLimit()))
		}
		upd.FollowUpDate = &date
		upd.FollowUpCount = &count

	case domain.WorkflowSold:
		closed := domain.ItemClosed
		upd.ItemStatus = &closed

	case domain.WorkflowFinished:
		if req.FinishedNote == nil || *req.FinishedNote == "" {
			return queryrepo.WorkflowUpdate{}, apperr.ValidationField("finished_note",
				"a note is required when finishing an item")
		}
		closed := domain.ItemClosed
		upd.FinishedNote = req.FinishedNote
		upd.ItemStatus = &closed

	case domain.WorkflowReviewedWithCall, domain.WorkflowReviewedWithoutCall:
		if req.ReviewNote == nil || *req.ReviewNote == "" {
			return queryrepo.WorkflowUpdate{}, apperr.ValidationField("review_note",
				"a note is required when reviewing an item")
		}
		review := string(target)
		now := time.Now()
		upd.ReviewStatus = &review
		upd.ReviewNote = req.ReviewNote
		upd.ReviewedByUserID = uuidPtr(actor.ID)
		upd.ReviewedAt = &now
	}

	return upd, nil
}

// workflowSnapshots builds the audit before/after maps covering every column
// the update touches, not just the status itself.
func workflowSnapshots(old queryrepo.QueryItem, upd queryrepo.WorkflowUpdate) (map[string]any, map[string]any) {
	before := map[string]any{"workflow_status": string(old.WorkflowStatus)}
	after := map[string]any{"workflow_status": string(upd.WorkflowStatus)}

	touch := func(field string, oldVal, newVal any) {
		before[field] = oldVal
		after[field] = newVal
	}

	if upd.QuotationDate != nil {
		touch("quotation_date", formatDate(old.QuotationDate), formatDate(upd.QuotationDate))
	}
	if upd.FollowUpDate != nil {
		touch("follow_up_date", formatDate(old.FollowUpDate), formatDate(upd.FollowUpDate))
	}
	if upd.FollowUpCount != nil {
		touch("follow_up_count", old.FollowUpCount, *upd.FollowUpCount)
	}
	if upd.FinishedNote != nil {
		touch("finished_note", old.FinishedNote, *upd.FinishedNote)
	}
	if upd.ItemStatus != nil {
		touch("item_status", string(old.ItemStatus), string(*upd.ItemStatus))
	}
	if upd.ReviewStatus != nil {
		touch("review_status", old.ReviewStatus, *upd.ReviewStatus)
	}
	if upd.ReviewNote != nil {
		touch("review_note", old.ReviewNote, *upd.ReviewNote)
	}
	if upd.ReviewedByUserID != nil {
		touch("reviewed_by_user_id", old.ReviewedByUserID, *upd.ReviewedByUserID)
	}
	if upd.ReviewedAt != nil {
		touch("reviewed_at", old.ReviewedAt, *upd.ReviewedAt)
	}
	return before, after
}

func requireDate(raw *string, field string) (time.Time, error) {
	if raw == nil || *raw == "" {
		return time.Time{}, apperr.ValidationField(field, "this field is required")
	}
	date, err := time.Parse(transport.DateLayout, *raw)
	if err != nil {
		return time.Time{}, apperr.ValidationField(field, "expected a YYYY-MM-DD date")
	}
	return date, nil
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
