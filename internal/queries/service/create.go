package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"salesops_backend/internal/audit"
	custrepo "salesops_backend/internal/customers/repository"
	"salesops_backend/internal/directory"
	"salesops_backend/internal/queries/domain"
	queryrepo "salesops_backend/internal/queries/repository"
	"salesops_backend/internal/queries/transport"
	"salesops_backend/internal/sources"
	"salesops_backend/platform/apperr"
)

// Create registers a query and fans it out into one item per requested
// service. Items routed to a team land in that service's queue unassigned;
// items the creator keeps are self-assigned immediately. The whole fan-out,
// the source log, and the audit entries commit or roll back together.
func (s *Service) Create(ctx context.Context, actor *directory.Actor, req transport.StoreQueryRequest) (transport.QueryResponse, error) {
	customer, err := s.customers.GetByID(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, custrepo.ErrNotFound) {
			return transport.QueryResponse{}, apperr.ValidationField("customer_id", "customer does not exist")
		}
		return transport.QueryResponse{}, apperr.Wrap(apperr.KindInternal, "customer lookup failed", err)
	}

	payload := sources.Payload{
		SourceID:             req.QuerySourceID,
		WhatsAppID:           req.SourceWaID,
		EmailID:              req.SourceEmailID,
		ReferredByUserID:     req.ReferredByUserID,
		ReferredByCustomerID: req.ReferredByCustomerID,
	}
	if payload.SourceID != nil {
		sourceName, err := s.sources.SourceName(ctx, *payload.SourceID)
		if err != nil {
			return transport.QueryResponse{}, apperr.Wrap(apperr.KindInternal, "source lookup failed", err)
		}
		if sourceName == "" {
			return transport.QueryResponse{}, apperr.ValidationField("query_source_id", "unknown query source")
		}
		if fields := sources.ValidateQueryRules(sourceName, payload); !fields.Empty() {
			return transport.QueryResponse{}, apperr.ValidationFields(fields)
		}
	} else {
		// No source supplied: inherit the customer's latest attribution so
		// the query is never orphaned from its origin channel. The fallback
		// fails when no prior log exists or its channel is gone.
		latest, err := s.sources.LatestCustomerSourceLog(ctx, customer.ID)
		if err != nil {
			return transport.QueryResponse{}, apperr.Wrap(apperr.KindInternal, "source fallback lookup failed", err)
		}
		if latest == nil {
			return transport.QueryResponse{}, apperr.ValidationField("query_source_id",
				"customer has no prior source log; query source is required")
		}
		exists, err := s.sources.SourceExists(ctx, latest.SourceID)
		if err != nil {
			return transport.QueryResponse{}, apperr.Wrap(apperr.KindInternal, "source fallback lookup failed", err)
		}
		if !exists {
			return transport.QueryResponse{}, apperr.ValidationField("query_source_id",
				"customer's prior query source no longer exists")
		}
		payload = latest.Payload()
	}

	selfSet, err := effectiveSelfServices(req)
	if err != nil {
		return transport.QueryResponse{}, err
	}

	if !req.ForceCreate {
		if conflict, err := s.creationConflict(ctx, customer.ID, req.ServiceIDs); err != nil {
			return transport.QueryResponse{}, err
		} else if conflict != nil {
			return transport.QueryResponse{}, conflict
		}
	}

	assignedType := domain.AssignedType(req.AssignedType)
	var queryAssignee *uuid.UUID
	if assignedType == domain.AssignedSelf {
		queryAssignee = uuidPtr(actor.ID)
	}

	var created queryrepo.Query
	items := make([]queryrepo.QueryItem, 0, len(req.ServiceIDs))

	err = s.repo.InTx(ctx, func(tx pgx.Tx) error {
		created, err = s.repo.InsertQuery(ctx, tx, queryrepo.CreateQueryParams{
			CustomerID:       customer.ID,
			CreatedByUserID:  actor.ID,
			QueryDetailsText: req.QueryDetailsText,
			QueryStatus:      domain.QueryPending,
			AssignedType:     assignedType,
			AssignedUserID:   queryAssignee,
			TeamID:           req.TeamID,
		})
		if err != nil {
			return err
		}

		for _, serviceID := range req.ServiceIDs {
			queue, err := s.repo.ActiveServiceQueue(ctx, tx, serviceID, req.TeamID)
			if err != nil {
				if errors.Is(err, queryrepo.ErrQueueNotFound) {
					return apperr.ValidationField("service_ids",
						fmt.Sprintf("no active service queue for service %s", serviceID))
				}
				return err
			}

			teamID := queue.TeamID
			params := queryrepo.CreateItemParams{
				QueryID:              created.ID,
				ServiceID:            serviceID,
				AssignedType:         domain.AssignedTeam,
				TeamID:               &teamID,
				TeamQueueOwnerUserID: queue.QueueOwnerUserID,
				WorkflowStatus:       domain.WorkflowPending,
			}
			if selfSet[serviceID] {
				params.AssignedType = domain.AssignedSelf
				params.AssignedUserID = uuidPtr(actor.ID)
				params.AssignedByUserID = uuidPtr(actor.ID)
			}

			item, err := s.repo.InsertItem(ctx, tx, params)
			if err != nil {
				return err
			}
			items = append(items, item)

			if err := s.audits.Append(ctx, tx, audit.AppendParams{
				ActorUserID: uuidPtr(actor.ID),
				SubjectType: audit.SubjectQueryItem,
				SubjectID:   item.ID,
				Action:      audit.ActionAssignmentCreated,
				NewValues: map[string]any{
					"assigned_type":    string(item.AssignedType),
					"assigned_user_id": item.AssignedUserID,
					"team_id":          item.TeamID,
					"workflow_status":  string(item.WorkflowStatus),
				},
				Meta: map[string]any{"mode": "intake"},
			}); err != nil {
				return err
			}
		}

		if err := s.sources.CreateQuerySourceLog(ctx, tx, created.ID, payload, actor.ID); err != nil {
			return err
		}

		return s.audits.Append(ctx, tx, audit.AppendParams{
			ActorUserID: uuidPtr(actor.ID),
			SubjectType: audit.SubjectQuery,
			SubjectID:   created.ID,
			Action:      audit.ActionQueryCreated,
			NewValues: map[string]any{
				"customer_id":   customer.ID,
				"query_status":  string(created.QueryStatus),
				"assigned_type": string(created.AssignedType),
			},
			Meta: map[string]any{
				"service_ids":      req.ServiceIDs,
				"self_service_ids": selfServiceList(selfSet),
			},
		})
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return transport.QueryResponse{}, appErr
		}
		return transport.QueryResponse{}, apperr.Wrap(apperr.KindInternal, "query creation failed", err)
	}

	names, err := s.repo.ServiceNames(ctx, req.ServiceIDs)
	if err != nil {
		names = map[uuid.UUID]string{}
	}
	itemResponses := make([]transport.QueryItemResponse, 0, len(items))
	for _, it := range items {
		itemResponses = append(itemResponses, toItemResponse(it, names[it.ServiceID]))
	}

	return transport.QueryResponse{
		ID:               created.ID,
		CustomerID:       created.CustomerID,
		QueryStatus:      string(created.QueryStatus),
		QueryDetailsText: created.QueryDetailsText,
		AssignedType:     string(created.AssignedType),
		AssignedUserID:   created.AssignedUserID,
		TeamID:           created.TeamID,
		CreatedAt:        created.CreatedAt,
		Items:            itemResponses,
	}, nil
}

func selfServiceList(selfSet map[uuid.UUID]bool) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(selfSet))
	for id := range selfSet {
		ids = append(ids, id)
	}
	return ids
}

// effectiveSelfServices resolves which services the creator keeps. A self
// query keeps everything unless self_service_ids narrows it; a team query
// must not carry a self subset at all.
func effectiveSelfServices(req transport.StoreQueryRequest) (map[uuid.UUID]bool, error) {
	if domain.AssignedType(req.AssignedType) == domain.AssignedTeam {
		if len(req.SelfServiceIDs) > 0 {
			return nil, apperr.ValidationField("self_service_ids",
				"a team query cannot keep services for the creator")
		}
		return map[uuid.UUID]bool{}, nil
	}

	requested := make(map[uuid.UUID]bool, len(req.ServiceIDs))
	for _, id := range req.ServiceIDs {
		requested[id] = true
	}
	if len(req.SelfServiceIDs) == 0 {
		return requested, nil
	}

	selfSet := make(map[uuid.UUID]bool, len(req.SelfServiceIDs))
	for _, id := range req.SelfServiceIDs {
		if !requested[id] {
			return nil, apperr.ValidationField("self_service_ids",
				fmt.Sprintf("service %s is not part of this query", id))
		}
		selfSet[id] = true
	}
	return selfSet, nil
}

// creationConflict checks the two duplicate guards: in-flight queries for
// the customer, then in-flight same-service queries within the lookback
// window.
func (s *Service) creationConflict(ctx context.Context, customerID uuid.UUID, serviceIDs []uuid.UUID) (*ConflictError, error) {
	active, err := s.activeQuerySummaries(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		return &ConflictError{
			Message:        "customer already has queries in progress",
			RunningQueries: active,
		}, nil
	}

	since := time.Now().Add(-DuplicateWindow)
	rows, err := s.repo.DuplicateCandidates(ctx, customerID, serviceIDs, since, s.cfg.GetQueryRunningStatuses())
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "duplicate lookup failed", err)
	}
	if len(rows) > 0 {
		duplicates := make([]transport.QuerySummary, 0, len(rows))
		for _, row := range rows {
			duplicates = append(duplicates, toQuerySummary(row))
		}
		return &ConflictError{
			Message:             "a similar query was created recently",
			DuplicateCandidates: duplicates,
		}, nil
	}
	return nil, nil
}
