package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"salesops_backend/internal/audit"
	custrepo "salesops_backend/internal/customers/repository"
	"salesops_backend/internal/directory"
	"salesops_backend/internal/queries/transport"
	"salesops_backend/platform/apperr"
	"salesops_backend/platform/phone"
)

// Customer states reported by intake search.
const (
	CustomerStateRegistered   = "registered"
	CustomerStateReferrerOnly = "referrer_only"
	CustomerStateNotFound     = "not_found"
)

const searchMatchLimit = 20

// IntakeSearch implements the pre-intake lookup: normalize the mobile
// number, match existing customers, and surface the customer's in-flight
// queries so the operator sees potential duplicates before creating a query.
func (s *Service) IntakeSearch(ctx context.Context, actor *directory.Actor, mobile, name string) (transport.IntakeSearchResponse, error) {
	mobile = strings.TrimSpace(mobile)
	name = strings.TrimSpace(name)
	if mobile == "" && name == "" {
		return transport.IntakeSearchResponse{}, apperr.ValidationField("search", "provide a mobile number or a customer name")
	}

	normalized := ""
	var plausible *bool
	if mobile != "" {
		normalized = phone.Normalize(mobile)
		p := phone.IsPlausible(mobile)
		plausible = &p
	}

	customers, err := s.customers.Search(ctx, mobile, normalized, name, searchMatchLimit)
	if err != nil {
		return transport.IntakeSearchResponse{}, apperr.Wrap(apperr.KindInternal, "customer search failed", err)
	}

	matches := make([]transport.CustomerSummary, 0, len(customers))
	for _, c := range customers {
		status := c.CustomerStatus
		matches = append(matches, transport.CustomerSummary{
			ID:           c.ID,
			CustomerName: c.CustomerName,
			MobileNumber: c.MobileNumber,
			Status:       &status,
		})
	}

	primary := resolvePrimaryMatch(customers, normalized)

	resp := transport.IntakeSearchResponse{
		CustomerState:   CustomerStateNotFound,
		ActiveQueries:   []transport.QuerySummary{},
		Matches:         matches,
		MobilePlausible: plausible,
	}

	if primary != nil {
		resp.CustomerID = &primary.ID
		resp.Customer = &transport.CustomerSummary{
			ID:           primary.ID,
			CustomerName: primary.CustomerName,
			MobileNumber: primary.MobileNumber,
			Status:       &primary.CustomerStatus,
		}
		if primary.CustomerStatus == custrepo.StatusReferrerOnly {
			resp.CustomerState = CustomerStateReferrerOnly
		} else {
			resp.CustomerState = CustomerStateRegistered
		}

		active, err := s.activeQuerySummaries(ctx, primary.ID)
		if err != nil {
			return transport.IntakeSearchResponse{}, err
		}
		resp.ActiveQueries = active
		resp.HasActiveQueries = len(active) > 0
	}

	// Search audit is advisory; a write failure must not fail the lookup.
	meta := map[string]any{"mobile": mobile, "name": name, "has_active": resp.HasActiveQueries}
	if err := s.audits.Append(ctx, s.repo.Pool(), audit.AppendParams{
		ActorUserID: uuidPtr(actor.ID),
		SubjectType: audit.SubjectQuery,
		SubjectID:   uuid.Nil,
		Action:      audit.ActionSearchPerformed,
		Meta:        meta,
	}); err != nil {
		s.log.Warn("intake search audit write failed", "error", err)
	}

	return resp, nil
}

// resolvePrimaryMatch picks the customer the search should focus on: an
// exact normalized-mobile match wins, otherwise the most recent candidate.
// Candidates arrive newest-first from the search.
func resolvePrimaryMatch(customers []custrepo.Customer, normalizedMobile string) *custrepo.Customer {
	if normalizedMobile != "" {
		for i := range customers {
			if customers[i].MobileNumber == normalizedMobile {
				return &customers[i]
			}
		}
	}
	if len(customers) > 0 {
		return &customers[0]
	}
	return nil
}

// activeQuerySummaries lists the customer's in-flight queries, each
// annotated with the name of the user whose action last made it in-flight.
func (s *Service) activeQuerySummaries(ctx context.Context, customerID uuid.UUID) ([]transport.QuerySummary, error) {
	running := s.cfg.GetQueryRunningStatuses()
	rows, err := s.repo.RunningQueries(ctx, customerID, running)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "running query lookup failed", err)
	}
	if len(rows) == 0 {
		return []transport.QuerySummary{}, nil
	}

	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	actors, err := s.audits.LatestStatusActors(ctx, s.repo.Pool(), ids, running)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "status actor lookup failed", err)
	}

	actorIDs := make([]uuid.UUID, 0, len(actors))
	for _, userID := range actors {
		actorIDs = append(actorIDs, userID)
	}
	names, err := s.directory.FullNames(ctx, actorIDs)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "actor name lookup failed", err)
	}

	summaries := make([]transport.QuerySummary, 0, len(rows))
	for _, row := range rows {
		summary := toQuerySummary(row)
		if userID, ok := actors[row.ID]; ok {
			if name, ok := names[userID]; ok {
				summary.StatusChangedBy = &name
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
