// Package service implements customer lookup and the moderated edit flow:
// changes to customer records are filed as edit requests and only land after
// a reviewer approves them.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"salesops_backend/internal/audit"
	"salesops_backend/internal/customers/repository"
	"salesops_backend/internal/customers/transport"
	"salesops_backend/internal/directory"
	"salesops_backend/internal/sources"
	"salesops_backend/platform/apperr"
	"salesops_backend/platform/phone"
)

const editRequestPageSize = 20

type Service struct {
	repo      *repository.Repository
	sources   *sources.Repository
	audits    *audit.Repository
	directory *directory.Repository
	log       *slog.Logger
}

func New(repo *repository.Repository, srcs *sources.Repository, audits *audit.Repository, dir *directory.Repository, log *slog.Logger) *Service {
	return &Service{repo: repo, sources: srcs, audits: audits, directory: dir, log: log}
}

func toCustomerResponse(c repository.Customer, categoryIDs []uuid.UUID) transport.CustomerResponse {
	return transport.CustomerResponse{
		ID:              c.ID,
		CustomerName:    c.CustomerName,
		MobileNumber:    c.MobileNumber,
		RawMobileNumber: c.RawMobileNumber,
		WhatsAppNumber:  c.WhatsAppNumber,
		CustomerEmail:   c.CustomerEmail,
		Address:         c.Address,
		VisitRecord:     c.VisitRecord,
		CustomerStatus:  c.CustomerStatus,
		Categories:      categoryIDs,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// Search matches customers by mobile number or partial name.
func (s *Service) Search(ctx context.Context, mobile, name string) ([]transport.CustomerResponse, error) {
	if mobile == "" && name == "" {
		return nil, apperr.ValidationField("search", "provide a mobile number or a customer name")
	}

	normalized := ""
	if mobile != "" {
		normalized = phone.Normalize(mobile)
	}
	customers, err := s.repo.Search(ctx, mobile, normalized, name, 20)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "customer search failed", err)
	}

	out := make([]transport.CustomerResponse, 0, len(customers))
	for _, c := range customers {
		out = append(out, toCustomerResponse(c, nil))
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.CustomerResponse, error) {
	customer, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.CustomerResponse{}, apperr.NotFound("customer not found")
		}
		return transport.CustomerResponse{}, apperr.Wrap(apperr.KindInternal, "customer lookup failed", err)
	}
	categoryIDs, err := s.repo.CategoryIDs(ctx, id)
	if err != nil {
		return transport.CustomerResponse{}, apperr.Wrap(apperr.KindInternal, "category lookup failed", err)
	}
	return toCustomerResponse(customer, categoryIDs), nil
}

// RequestEdit files an edit request for the provided fields. Nothing is
// written to the customer row until a reviewer approves.
func (s *Service) RequestEdit(ctx context.Context, actor *directory.Actor, customerID uuid.UUID, req transport.UpdateCustomerRequest) (transport.EditRequestResponse, error) {
	customer, err := s.repo.GetByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.EditRequestResponse{}, apperr.NotFound("customer not found")
		}
		return transport.EditRequestResponse{}, apperr.Wrap(apperr.KindInternal, "customer lookup failed", err)
	}

	oldData, newData := buildSnapshots(customer, req)
	if req.CategoryIDs != nil {
		current, err := s.repo.CategoryIDs(ctx, customerID)
		if err != nil {
			return transport.EditRequestResponse{}, apperr.Wrap(apperr.KindInternal, "category lookup failed", err)
		}
		oldData["category_ids"] = current
		newData["category_ids"] = *req.CategoryIDs
	}
	if req.QuerySourceID != nil {
		payload := sources.Payload{
			SourceID:             req.QuerySourceID,
			WhatsAppID:           req.SourceWaID,
			EmailID:              req.SourceEmailID,
			ReferredByUserID:     req.ReferredByUserID,
			ReferredByCustomer:   req.ReferredByCustomer,
			ReferredByCustomerID: req.ReferredByCustomerID,
		}
		sourceName, err := s.sources.SourceName(ctx, *req.QuerySourceID)
		if err != nil {
			return transport.EditRequestResponse{}, apperr.Wrap(apperr.KindInternal, "source lookup failed", err)
		}
		if sourceName == "" {
			return transport.EditRequestResponse{}, apperr.ValidationField("query_source_id", "unknown query source")
		}
		if fields := sources.ValidateCustomerRules(sourceName, payload); !fields.Empty() {
			return transport.EditRequestResponse{}, apperr.ValidationFields(fields)
		}
		newData["source_log"] = sourceLogSnapshot(payload)
	}
	if len(newData) == 0 {
		return transport.EditRequestResponse{}, apperr.ValidationField("fields", "nothing to change")
	}

	er, err := s.repo.CreateEditRequest(ctx, repository.CreateEditRequestParams{
		CustomerID:        customerID,
		RequestedByUserID: actor.ID,
		OldData:           oldData,
		NewData:           newData,
	})
	if err != nil {
		return transport.EditRequestResponse{}, apperr.Wrap(apperr.KindInternal, "edit request creation failed", err)
	}

	if err := s.audits.Append(ctx, s.repo.Pool(), audit.AppendParams{
		ActorUserID: &actor.ID,
		SubjectType: audit.SubjectCustomerEditRequest,
		SubjectID:   er.ID,
		Action:      audit.ActionCustomerEditRequested,
		NewValues:   newData,
		Meta:        map[string]any{"customer_id": customerID},
	}); err != nil {
		s.log.Warn("edit request audit write failed", "error", err)
	}

	return s.toEditRequestResponse(ctx, er), nil
}

// buildSnapshots collects the before/after values for every field the
// request actually touches. Mobile numbers are normalized before storage.
func buildSnapshots(customer repository.Customer, req transport.UpdateCustomerRequest) (map[string]any, map[string]any) {
	oldData := map[string]any{}
	newData := map[string]any{}

	set := func(field string, oldVal any, newVal any) {
		oldData[field] = oldVal
		newData[field] = newVal
	}

	if req.CustomerName != nil && *req.CustomerName != customer.CustomerName {
		set("customer_name", customer.CustomerName, *req.CustomerName)
	}
	if req.MobileNumber != nil {
		normalized := phone.Normalize(*req.MobileNumber)
		if normalized != customer.MobileNumber {
			set("mobile_number", customer.MobileNumber, normalized)
		}
	}
	if req.WhatsAppNumber != nil {
		set("whatsapp_number", customer.WhatsAppNumber, phone.Normalize(*req.WhatsAppNumber))
	}
	if req.CustomerEmail != nil {
		set("customer_email", customer.CustomerEmail, *req.CustomerEmail)
	}
	if req.Address != nil {
		set("address", customer.Address, *req.Address)
	}
	if req.VisitRecord != nil {
		set("visit_record", customer.VisitRecord, *req.VisitRecord)
	}
	if req.CustomerStatus != nil && *req.CustomerStatus != customer.CustomerStatus {
		set("customer_status", customer.CustomerStatus, *req.CustomerStatus)
	}
	return oldData, newData
}

func (s *Service) ListEditRequests(ctx context.Context, status string, page int) (transport.Paginated[transport.EditRequestResponse], error) {
	requests, total, err := s.repo.ListEditRequests(ctx, status, page, editRequestPageSize)
	if err != nil {
		return transport.Paginated[transport.EditRequestResponse]{}, apperr.Wrap(apperr.KindInternal, "edit request listing failed", err)
	}

	out := make([]transport.EditRequestResponse, 0, len(requests))
	for _, er := range requests {
		out = append(out, s.toEditRequestResponse(ctx, er))
	}
	if page < 1 {
		page = 1
	}
	return transport.Paginated[transport.EditRequestResponse]{
		Data:    out,
		Page:    page,
		PerPage: editRequestPageSize,
		Total:   total,
	}, nil
}

func (s *Service) GetEditRequest(ctx context.Context, id uuid.UUID) (transport.EditRequestResponse, error) {
	er, err := s.repo.GetEditRequest(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEditRequestNotFound) {
			return transport.EditRequestResponse{}, apperr.NotFound("edit request not found")
		}
		return transport.EditRequestResponse{}, apperr.Wrap(apperr.KindInternal, "edit request lookup failed", err)
	}
	return s.toEditRequestResponse(ctx, er), nil
}

// Approve applies the requested snapshot to the customer row and closes the
// request, all in one transaction.
func (s *Service) Approve(ctx context.Context, actor *directory.Actor, id uuid.UUID, note *string) (transport.EditRequestResponse, error) {
	var decided repository.EditRequest

	err := s.repo.InTx(ctx, func(tx pgx.Tx) error {
		er, err := s.repo.GetEditRequestTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if er.Status != repository.EditRequestPending {
			return apperr.Conflict("this edit request has already been decided")
		}

		fields := make(map[string]any, len(er.NewData))
		var categoryIDs []uuid.UUID
		var sourcePayload *sources.Payload
		for field, value := range er.NewData {
			switch field {
			case "category_ids":
				categoryIDs, err = toUUIDSlice(value)
				if err != nil {
					return err
				}
			case "source_log":
				payload, err := payloadFromSnapshot(value)
				if err != nil {
					return err
				}
				sourcePayload = &payload
			default:
				fields[field] = value
			}
		}

		if len(fields) > 0 {
			if err := s.repo.ApplyFields(ctx, tx, er.CustomerID, fields); err != nil {
				return err
			}
		}
		if categoryIDs != nil {
			if err := s.repo.SyncCategories(ctx, tx, er.CustomerID, categoryIDs); err != nil {
				return err
			}
		}
		if sourcePayload != nil {
			if err := s.sources.CreateCustomerSourceLog(ctx, tx, er.CustomerID, *sourcePayload, actor.ID); err != nil {
				return err
			}
		}

		decided, err = s.repo.MarkDecided(ctx, tx, id, repository.EditRequestApproved, actor.ID, note)
		if err != nil {
			return err
		}

		return s.audits.Append(ctx, tx, audit.AppendParams{
			ActorUserID: &actor.ID,
			SubjectType: audit.SubjectCustomer,
			SubjectID:   er.CustomerID,
			Action:      audit.ActionCustomerEditApproved,
			OldValues:   er.OldData,
			NewValues:   er.NewData,
			Meta:        map[string]any{"edit_request_id": id},
		})
	})
	if err != nil {
		return transport.EditRequestResponse{}, asAppError(err, "edit request approval failed")
	}
	return s.toEditRequestResponse(ctx, decided), nil
}

// Reject closes the request without touching the customer.
func (s *Service) Reject(ctx context.Context, actor *directory.Actor, id uuid.UUID, note *string) (transport.EditRequestResponse, error) {
	var decided repository.EditRequest

	err := s.repo.InTx(ctx, func(tx pgx.Tx) error {
		er, err := s.repo.GetEditRequestTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if er.Status != repository.EditRequestPending {
			return apperr.Conflict("this edit request has already been decided")
		}

		decided, err = s.repo.MarkDecided(ctx, tx, id, repository.EditRequestRejected, actor.ID, note)
		if err != nil {
			return err
		}

		return s.audits.Append(ctx, tx, audit.AppendParams{
			ActorUserID: &actor.ID,
			SubjectType: audit.SubjectCustomer,
			SubjectID:   er.CustomerID,
			Action:      audit.ActionCustomerEditRejected,
			Meta:        map[string]any{"edit_request_id": id},
		})
	})
	if err != nil {
		return transport.EditRequestResponse{}, asAppError(err, "edit request rejection failed")
	}
	return s.toEditRequestResponse(ctx, decided), nil
}

func (s *Service) toEditRequestResponse(ctx context.Context, er repository.EditRequest) transport.EditRequestResponse {
	changes := make([]transport.FieldChangeResponse, 0)
	for _, change := range audit.Diff(er.OldData, er.NewData) {
		changes = append(changes, transport.FieldChangeResponse{
			Field: change.Field,
			Old:   change.Old,
			New:   change.New,
		})
	}

	resp := transport.EditRequestResponse{
		ID:           er.ID,
		CustomerID:   er.CustomerID,
		Status:       er.Status,
		Changes:      changes,
		DecisionNote: er.DecisionNote,
		DecidedAt:    er.DecidedAt,
		CreatedAt:    er.CreatedAt,
	}

	ids := []uuid.UUID{er.RequestedByUserID}
	if er.DecidedByUserID != nil {
		ids = append(ids, *er.DecidedByUserID)
	}
	names, err := s.directory.FullNames(ctx, ids)
	if err != nil {
		s.log.Warn("edit request name lookup failed", "error", err)
		return resp
	}
	if name, ok := names[er.RequestedByUserID]; ok {
		resp.RequestedBy = &name
	}
	if er.DecidedByUserID != nil {
		if name, ok := names[*er.DecidedByUserID]; ok {
			resp.DecidedBy = &name
		}
	}
	if customer, err := s.repo.GetByID(ctx, er.CustomerID); err == nil {
		resp.CustomerName = customer.CustomerName
	}
	return resp
}

// sourceLogSnapshot flattens an attribution payload into the JSONB-friendly
// shape stored on the edit request.
func sourceLogSnapshot(p sources.Payload) map[string]any {
	snap := map[string]any{"source_id": p.SourceID.String()}
	if p.WhatsAppID != nil {
		snap["source_wa_id"] = p.WhatsAppID.String()
	}
	if p.EmailID != nil {
		snap["source_email_id"] = p.EmailID.String()
	}
	if p.ReferredByUserID != nil {
		snap["referred_by_user_id"] = p.ReferredByUserID.String()
	}
	if p.ReferredByCustomerID != nil {
		snap["referred_by_customer_id"] = p.ReferredByCustomerID.String()
	}
	return snap
}

func payloadFromSnapshot(value any) (sources.Payload, error) {
	snap, ok := value.(map[string]any)
	if !ok {
		return sources.Payload{}, apperr.Validation("source_log snapshot is malformed")
	}

	field := func(key string) (*uuid.UUID, error) {
		raw, ok := snap[key]
		if !ok {
			return nil, nil
		}
		s, ok := raw.(string)
		if !ok {
			return nil, apperr.Validation("source_log snapshot is malformed")
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, apperr.Validation("source_log snapshot is malformed")
		}
		return &id, nil
	}

	var payload sources.Payload
	var err error
	if payload.SourceID, err = field("source_id"); err != nil {
		return sources.Payload{}, err
	}
	if payload.SourceID == nil {
		return sources.Payload{}, apperr.Validation("source_log snapshot is malformed")
	}
	if payload.WhatsAppID, err = field("source_wa_id"); err != nil {
		return sources.Payload{}, err
	}
	if payload.EmailID, err = field("source_email_id"); err != nil {
		return sources.Payload{}, err
	}
	if payload.ReferredByUserID, err = field("referred_by_user_id"); err != nil {
		return sources.Payload{}, err
	}
	if payload.ReferredByCustomerID, err = field("referred_by_customer_id"); err != nil {
		return sources.Payload{}, err
	}
	return payload, nil
}

func toUUIDSlice(value any) ([]uuid.UUID, error) {
	raw, ok := value.([]any)
	if !ok {
		return nil, apperr.Validation("category_ids snapshot is malformed")
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, apperr.Validation("category_ids snapshot is malformed")
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, apperr.Validation("category_ids snapshot is malformed")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func asAppError(err error, fallback string) *apperr.Error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperr.Wrap(apperr.KindInternal, fallback, err)
}
