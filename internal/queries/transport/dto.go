package transport

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire format for quotation and follow-up dates.
const DateLayout = "2006-01-02"

// Request DTOs

type StoreQueryRequest struct {
	CustomerID           uuid.UUID   `json:"customer_id" validate:"required"`
	QueryDetailsText     string      `json:"query_details_text" validate:"required,max=5000"`
	AssignedType         string      `json:"assigned_type" validate:"required,oneof=self team"`
	TeamID               *uuid.UUID  `json:"team_id,omitempty"`
	ServiceIDs           []uuid.UUID `json:"service_ids" validate:"required,min=1,unique"`
	SelfServiceIDs       []uuid.UUID `json:"self_service_ids,omitempty" validate:"omitempty,unique"`
	QuerySourceID        *uuid.UUID  `json:"query_source_id,omitempty"`
	SourceWaID           *uuid.UUID  `json:"source_wa_id,omitempty"`
	SourceEmailID        *uuid.UUID  `json:"source_email_id,omitempty"`
	ReferredByUserID     *uuid.UUID  `json:"referred_by_user_id,omitempty"`
	ReferredByCustomerID *uuid.UUID  `json:"referred_by_customer_id,omitempty"`
	ForceCreate          bool        `json:"force_create,omitempty"`
}

type UpdateQueryStatusRequest struct {
	QueryStatus string `json:"query_status" validate:"required"`
}

type UpdateItemStatusRequest struct {
	WorkflowStatus string  `json:"workflow_status" validate:"required,oneof=pending running follow_up sold finished reviewed_with_call reviewed_without_call"`
	QuotationDate  *string `json:"quotation_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	FollowUpDate   *string `json:"follow_up_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	FinishedNote   *string `json:"finished_note,omitempty" validate:"omitempty,max=2000"`
	ReviewNote     *string `json:"review_note,omitempty" validate:"omitempty,max=2000"`
}

type AssignToUserRequest struct {
	AssignedUserID   uuid.UUID `json:"assigned_user_id" validate:"required"`
	DistributionNote *string   `json:"distribution_note,omitempty" validate:"omitempty,max=1000"`
}

type ReassignRequest struct {
	AssignedUserID   uuid.UUID `json:"assigned_user_id" validate:"required"`
	DistributionNote string    `json:"distribution_note" validate:"required,max=1000"`
}

// Response DTOs

type CustomerSummary struct {
	ID           uuid.UUID `json:"id"`
	CustomerName string    `json:"customer_name"`
	MobileNumber string    `json:"mobile_number"`
	Status       *string   `json:"status,omitempty"`
}

type ItemSummary struct {
	ID             uuid.UUID  `json:"id"`
	ServiceID      uuid.UUID  `json:"service_id"`
	ServiceName    string     `json:"service_name"`
	WorkflowStatus string     `json:"workflow_status"`
	AssignedUser   *string    `json:"assigned_user,omitempty"`
	TeamName       *string    `json:"team_name,omitempty"`
}

type QuerySummary struct {
	ID               uuid.UUID     `json:"id"`
	CustomerID       uuid.UUID     `json:"customer_id"`
	QueryDetailsText string        `json:"query_details_text"`
	QueryStatus      string        `json:"query_status"`
	CreatedAt        time.Time     `json:"created_at"`
	Customer         *CustomerSummary `json:"customer,omitempty"`
	Items            []ItemSummary `json:"items,omitempty"`
	StatusChangedBy  *string       `json:"status_changed_by,omitempty"`
}

type IntakeSearchResponse struct {
	CustomerState    string            `json:"customer_state"`
	CustomerID       *uuid.UUID        `json:"customer_id"`
	Customer         *CustomerSummary  `json:"customer,omitempty"`
	HasActiveQueries bool              `json:"has_active_queries"`
	ActiveQueries    []QuerySummary    `json:"active_queries"`
	Matches          []CustomerSummary `json:"matches"`
	MobilePlausible  *bool             `json:"mobile_plausible,omitempty"`
}

type QueryItemResponse struct {
	ID                   uuid.UUID  `json:"id"`
	QueryID              uuid.UUID  `json:"query_id"`
	ServiceID            uuid.UUID  `json:"service_id"`
	ServiceName          string     `json:"service_name,omitempty"`
	AssignedType         string     `json:"assigned_type"`
	AssignedUserID       *uuid.UUID `json:"assigned_user_id"`
	AssignedByUserID     *uuid.UUID `json:"assigned_by_user_id"`
	AssignmentNote       *string    `json:"assignment_note"`
	TeamID               *uuid.UUID `json:"team_id"`
	TeamQueueOwnerUserID *uuid.UUID `json:"team_queue_owner_user_id"`
	ItemStatus           string     `json:"item_status"`
	WorkflowStatus       string     `json:"workflow_status"`
	QuotationDate        *string    `json:"quotation_date"`
	FollowUpDate         *string    `json:"follow_up_date"`
	FollowUpCount        int        `json:"follow_up_count"`
	FinishedNote         *string    `json:"finished_note"`
	ReviewStatus         *string    `json:"review_status"`
	ReviewNote           *string    `json:"review_note"`
	ReviewedByUserID     *uuid.UUID `json:"reviewed_by_user_id"`
	ReviewedAt           *time.Time `json:"reviewed_at"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

type QueryResponse struct {
	ID               uuid.UUID           `json:"id"`
	CustomerID       uuid.UUID           `json:"customer_id"`
	QueryStatus      string              `json:"query_status"`
	QueryDetailsText string              `json:"query_details_text"`
	AssignedType     string              `json:"assigned_type"`
	AssignedUserID   *uuid.UUID          `json:"assigned_user_id"`
	TeamID           *uuid.UUID          `json:"team_id"`
	CreatedAt        time.Time           `json:"created_at"`
	Items            []QueryItemResponse `json:"items"`
}

type QueryDetailResponse struct {
	ID               uuid.UUID           `json:"id"`
	QueryStatus      string              `json:"query_status"`
	QueryDetailsText string              `json:"query_details_text"`
	QueryInputtedBy  *string             `json:"query_inputted_by"`
	Customer         QueryDetailCustomer `json:"customer"`
	Items            []QueryItemResponse `json:"items"`
}

type QueryDetailCustomer struct {
	CustomerName   string   `json:"customer_name"`
	MobileNumber   string   `json:"mobile_number"`
	WhatsAppNumber *string  `json:"whatsapp_number"`
	VisitRecord    *string  `json:"visit_record"`
	CustomerEmail  *string  `json:"customer_email"`
	Address        *string  `json:"address"`
	Categories     []string `json:"categories"`
}

type TeamQueueItem struct {
	ID                   uuid.UUID     `json:"id"`
	ItemStatus           string        `json:"item_status"`
	WorkflowStatus       string        `json:"workflow_status"`
	ServiceID            uuid.UUID     `json:"service_id"`
	ServiceName          string        `json:"service_name"`
	AssignedType         string        `json:"assigned_type"`
	AssignedUser         *string       `json:"assigned_user"`
	AssignedByUserID     *uuid.UUID    `json:"assigned_by_user_id"`
	AssignmentNote       *string       `json:"assignment_note"`
	TeamID               *uuid.UUID    `json:"team_id"`
	TeamName             *string       `json:"team_name"`
	TeamQueueOwnerUserID *uuid.UUID    `json:"team_queue_owner_user_id"`
	Query                QuerySummary  `json:"query"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

type Paginated[T any] struct {
	Data    []T   `json:"data"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
}

type TeamQueueCounters struct {
	NotAssigned int64 `json:"not_assigned"`
	Pending     int64 `json:"pending"`
	Running     int64 `json:"running"`
	FollowUp    int64 `json:"follow_up"`
	Sold        int64 `json:"sold"`
	Finished    int64 `json:"finished"`
}

type SelfQueueCounters struct {
	Pending  int64 `json:"pending"`
	Running  int64 `json:"running"`
	FollowUp int64 `json:"follow_up"`
	Sold     int64 `json:"sold"`
	Finished int64 `json:"finished"`
}

type NotificationBadges struct {
	SelfPending     int64 `json:"self_pending"`
	SelfFollowUpDue int64 `json:"self_follow_up_due"`
	SelfEvents      int64 `json:"self_events"`
	TeamNotAssigned int64 `json:"team_not_assigned"`
	TeamFollowUpDue int64 `json:"team_follow_up_due"`
	TeamEvents      int64 `json:"team_events"`
	TotalEvents     int64 `json:"total_events"`
}
