package transport

import (
	"time"

	"github.com/google/uuid"
)

// UpdateCustomerRequest proposes changes to a customer. Only the provided
// fields become part of the edit request.
type UpdateCustomerRequest struct {
	CustomerName   *string      `json:"customer_name,omitempty" validate:"omitempty,min=1,max=255"`
	MobileNumber   *string      `json:"mobile_number,omitempty" validate:"omitempty,min=5,max=32"`
	WhatsAppNumber *string      `json:"whatsapp_number,omitempty" validate:"omitempty,max=32"`
	CustomerEmail  *string      `json:"customer_email,omitempty" validate:"omitempty,email"`
	Address        *string      `json:"address,omitempty" validate:"omitempty,max=2000"`
	VisitRecord    *string      `json:"visit_record,omitempty" validate:"omitempty,max=2000"`
	CustomerStatus *string      `json:"customer_status,omitempty" validate:"omitempty,oneof=regular referrer_only"`
	CategoryIDs    *[]uuid.UUID `json:"category_ids,omitempty" validate:"omitempty,unique"`

	// Optional re-attribution, applied as a fresh source log on approval.
	QuerySourceID        *uuid.UUID `json:"query_source_id,omitempty"`
	SourceWaID           *uuid.UUID `json:"source_wa_id,omitempty"`
	SourceEmailID        *uuid.UUID `json:"source_email_id,omitempty"`
	ReferredByUserID     *uuid.UUID `json:"referred_by_user_id,omitempty"`
	ReferredByCustomer   *bool      `json:"referred_by_customer,omitempty"`
	ReferredByCustomerID *uuid.UUID `json:"referred_by_customer_id,omitempty"`
}

// DecisionRequest carries the reviewer's note on approve or reject.
type DecisionRequest struct {
	Note *string `json:"note,omitempty" validate:"omitempty,max=2000"`
}

type CustomerResponse struct {
	ID              uuid.UUID  `json:"id"`
	CustomerName    string     `json:"customer_name"`
	MobileNumber    string     `json:"mobile_number"`
	RawMobileNumber *string    `json:"raw_mobile_number"`
	WhatsAppNumber  *string    `json:"whatsapp_number"`
	CustomerEmail   *string    `json:"customer_email"`
	Address         *string    `json:"address"`
	VisitRecord     *string    `json:"visit_record"`
	CustomerStatus  string     `json:"customer_status"`
	Categories      []uuid.UUID `json:"category_ids,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// FieldChangeResponse is one before/after pair in an edit request.
type FieldChangeResponse struct {
	Field string `json:"field"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

type EditRequestResponse struct {
	ID              uuid.UUID             `json:"id"`
	CustomerID      uuid.UUID             `json:"customer_id"`
	CustomerName    string                `json:"customer_name,omitempty"`
	RequestedBy     *string               `json:"requested_by,omitempty"`
	Status          string                `json:"status"`
	Changes         []FieldChangeResponse `json:"changes"`
	DecisionNote    *string               `json:"decision_note"`
	DecidedBy       *string               `json:"decided_by,omitempty"`
	DecidedAt       *time.Time            `json:"decided_at"`
	CreatedAt       time.Time             `json:"created_at"`
}

type Paginated[T any] struct {
	Data    []T   `json:"data"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
}
