// Package service orchestrates the query engine: intake search, query
// creation with per-service fan-out, queue assignment, and the item
// workflow. Mutations run in a single transaction together with their
// audit entries.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"salesops_backend/internal/audit"
	custrepo "salesops_backend/internal/customers/repository"
	"salesops_backend/internal/directory"
	"salesops_backend/internal/queries/authz"
	queryrepo "salesops_backend/internal/queries/repository"
	"salesops_backend/internal/queries/transport"
	"salesops_backend/internal/sources"
	"salesops_backend/platform/config"
)

// DuplicateWindow is how far back query creation looks for same-service
// duplicates before asking for confirmation.
const DuplicateWindow = 7 * 24 * time.Hour

type Service struct {
	repo      *queryrepo.Repository
	customers *custrepo.Repository
	sources   *sources.Repository
	audits    *audit.Repository
	directory *directory.Repository
	cfg       config.QueryConfig
	log       *slog.Logger
}

func New(
	repo *queryrepo.Repository,
	customers *custrepo.Repository,
	srcs *sources.Repository,
	audits *audit.Repository,
	dir *directory.Repository,
	cfg config.QueryConfig,
	log *slog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		customers: customers,
		sources:   srcs,
		audits:    audits,
		directory: dir,
		cfg:       cfg,
		log:       log,
	}
}

// ConflictError is a soft block: the caller may retry the same request with
// force_create once a human has confirmed the duplicates are intentional.
type ConflictError struct {
	Message             string
	RunningQueries      []transport.QuerySummary
	DuplicateCandidates []transport.QuerySummary
}

func (e *ConflictError) Error() string {
	return e.Message
}

func toQuerySummary(row queryrepo.QuerySummaryRow) transport.QuerySummary {
	items := make([]transport.ItemSummary, 0, len(row.Items))
	for _, it := range row.Items {
		items = append(items, transport.ItemSummary{
			ID:             it.ID,
			ServiceID:      it.ServiceID,
			ServiceName:    it.ServiceName,
			WorkflowStatus: string(it.WorkflowStatus),
			AssignedUser:   it.AssignedUserName,
			TeamName:       it.TeamName,
		})
	}
	return transport.QuerySummary{
		ID:               row.ID,
		CustomerID:       row.CustomerID,
		QueryDetailsText: row.QueryDetailsText,
		QueryStatus:      string(row.QueryStatus),
		CreatedAt:        row.CreatedAt,
		Customer: &transport.CustomerSummary{
			ID:           row.CustomerID,
			CustomerName: row.CustomerName,
			MobileNumber: row.CustomerMobile,
		},
		Items: items,
	}
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(transport.DateLayout)
	return &s
}

func toItemResponse(it queryrepo.QueryItem, serviceName string) transport.QueryItemResponse {
	return transport.QueryItemResponse{
		ID:                   it.ID,
		QueryID:              it.QueryID,
		ServiceID:            it.ServiceID,
		ServiceName:          serviceName,
		AssignedType:         string(it.AssignedType),
		AssignedUserID:       it.AssignedUserID,
		AssignedByUserID:     it.AssignedByUserID,
		AssignmentNote:       it.AssignmentNote,
		TeamID:               it.TeamID,
		TeamQueueOwnerUserID: it.TeamQueueOwnerUserID,
		ItemStatus:           string(it.ItemStatus),
		WorkflowStatus:       string(it.WorkflowStatus),
		QuotationDate:        formatDate(it.QuotationDate),
		FollowUpDate:         formatDate(it.FollowUpDate),
		FollowUpCount:        it.FollowUpCount,
		FinishedNote:         it.FinishedNote,
		ReviewStatus:         it.ReviewStatus,
		ReviewNote:           it.ReviewNote,
		ReviewedByUserID:     it.ReviewedByUserID,
		ReviewedAt:           it.ReviewedAt,
		CreatedAt:            it.CreatedAt,
		UpdatedAt:            it.UpdatedAt,
	}
}

func toQueueItem(row queryrepo.TeamQueueRow) transport.TeamQueueItem {
	return transport.TeamQueueItem{
		ID:                   row.Item.ID,
		ItemStatus:           string(row.Item.ItemStatus),
		WorkflowStatus:       string(row.Item.WorkflowStatus),
		ServiceID:            row.Item.ServiceID,
		ServiceName:          row.ServiceName,
		AssignedType:         string(row.Item.AssignedType),
		AssignedUser:         row.AssignedUserName,
		AssignedByUserID:     row.Item.AssignedByUserID,
		AssignmentNote:       row.Item.AssignmentNote,
		TeamID:               row.Item.TeamID,
		TeamName:             row.TeamName,
		TeamQueueOwnerUserID: row.Item.TeamQueueOwnerUserID,
		Query: transport.QuerySummary{
			ID:               row.Item.QueryID,
			CustomerID:       row.CustomerID,
			QueryDetailsText: row.QueryDetailsText,
			QueryStatus:      row.QueryStatus,
			CreatedAt:        row.QueryCreatedAt,
			Customer: &transport.CustomerSummary{
				ID:           row.CustomerID,
				CustomerName: row.CustomerName,
				MobileNumber: row.CustomerMobile,
			},
		},
		CreatedAt: row.Item.CreatedAt,
		UpdatedAt: row.Item.UpdatedAt,
	}
}

// itemGrants loads the authorization snapshot tying the actor to the item's
// service queue.
func (s *Service) itemGrants(ctx context.Context, actor *directory.Actor, item queryrepo.QueryItem) (authz.Grants, error) {
	return s.repo.FetchGrants(ctx, item.ServiceID, item.TeamID, actor.ID)
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
