package service

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"salesops_backend/internal/directory"
	"salesops_backend/internal/queries/authz"
	"salesops_backend/internal/queries/domain"
	queryrepo "salesops_backend/internal/queries/repository"
	"salesops_backend/internal/queries/transport"
	"salesops_backend/platform/apperr"
)

type workflowPolicy struct {
	followUpLimit int
}

func (p workflowPolicy) GetQueryRunningStatuses() []string {
	return []string{"pending", "running", "follow_up"}
}

func (p workflowPolicy) GetFollowUpMaxLimit() int { return p.followUpLimit }

func (p workflowPolicy) GetQueryStatuses() []string {
	return []string{"pending", "running", "follow_up", "sold", "finished"}
}

func newWorkflowService(limit int) *Service {
	return &Service{cfg: workflowPolicy{followUpLimit: limit}}
}

func strPtr(s string) *string { return &s }

func assignedItem(status domain.WorkflowStatus) queryrepo.QueryItem {
	assignee := uuid.New()
	return queryrepo.QueryItem{
		ID:             uuid.New(),
		WorkflowStatus: status,
		AssignedUserID: &assignee,
	}
}

func wantValidationField(t *testing.T, err error, field string) {
	t.Helper()
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
		t.Fatalf("want a validation error, got %v", err)
	}
	fields, ok := appErr.Details.(apperr.FieldErrors)
	if !ok || len(fields[field]) == 0 {
		t.Fatalf("want the error keyed on %q, got %v", field, appErr.Details)
	}
}

func TestItemChangeRoleAssigneeDrivesOperational(t *testing.T) {
	item := assignedItem(domain.WorkflowPending)
	actor := directory.NewActor(*item.AssignedUserID, nil, nil, nil)

	role, err := itemChangeRole(actor, item, domain.WorkflowRunning, authz.Grants{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role != "assignee" {
		t.Errorf("want role assignee, got %q", role)
	}
}

func TestItemChangeRoleAssigneeCannotReview(t *testing.T) {
	item := assignedItem(domain.WorkflowFinished)
	actor := directory.NewActor(*item.AssignedUserID, nil, nil, []string{"query.assign"})

	if _, err := itemChangeRole(actor, item, domain.WorkflowReviewedWithCall, authz.Grants{}); err == nil {
		t.Fatal("the assignee alone must not review their own item")
	}
}

func TestItemChangeRoleManagerCannotDriveOperational(t *testing.T) {
	item := assignedItem(domain.WorkflowPending)
	manager := directory.NewActor(uuid.New(), nil, nil, []string{"query.assign"})

	if _, err := itemChangeRole(manager, item, domain.WorkflowRunning, authz.Grants{OwnsQueue: true}); err == nil {
		t.Fatal("a queue owner who is not the assignee must not drive the workflow")
	}
}

func TestItemChangeRoleOwnerReviews(t *testing.T) {
	item := assignedItem(domain.WorkflowFinished)
	owner := directory.NewActor(uuid.New(), nil, nil, []string{"query.assign"})

	role, err := itemChangeRole(owner, item, domain.WorkflowReviewedWithoutCall, authz.Grants{OwnsQueue: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if role != "owner" {
		t.Errorf("want role owner, got %q", role)
	}
}

func TestItemChangeRoleSuperuserBypasses(t *testing.T) {
	item := assignedItem(domain.WorkflowFinished)
	admin := directory.NewActor(uuid.New(), nil, []string{"Admin"}, nil)

	for _, target := range []domain.WorkflowStatus{domain.WorkflowRunning, domain.WorkflowReviewedWithCall} {
		role, err := itemChangeRole(admin, item, target, authz.Grants{})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", target, err)
		}
		if role != "admin" {
			t.Errorf("%s: want role admin, got %q", target, role)
		}
	}
}

func TestBuildWorkflowUpdateIllegalTransition(t *testing.T) {
	svc := newWorkflowService(3)
	actor := directory.NewActor(uuid.New(), nil, nil, nil)
	item := assignedItem(domain.WorkflowPending)

	_, err := svc.buildWorkflowUpdate(actor, item, domain.WorkflowSold, transport.UpdateItemStatusRequest{})
	wantValidationField(t, err, "workflow_status")
}

func TestBuildWorkflowUpdateOperationalNeedsAssignee(t *testing.T) {
	svc := newWorkflowService(3)
	actor := directory.NewActor(uuid.New(), nil, nil, nil)
	item := queryrepo.QueryItem{ID: uuid.New(), WorkflowStatus: domain.WorkflowPending}

	_, err := svc.buildWorkflowUpdate(actor, item, domain.WorkflowRunning, transport.UpdateItemStatusRequest{
		QuotationDate: strPtr("2026-09-01"),
	})
	wantValidationField(t, err, "workflow_status")
}

func TestBuildWorkflowUpdateRunningRequiresQuotationDate(t *testing.T) {
	svc := newWorkflowService(3)
	actor := directory.NewActor(uuid.New(), nil, nil, nil)
	item := assignedItem(domain.WorkflowPending)

	_, err := svc.buildWorkflowUpdate(actor, item, domain.WorkflowRunning, transport.UpdateItemStatusRequest{})
	wantValidationField(t, err, "quotation_date")

	upd, err := svc.buildWorkflowUpdate(actor, item, domain.WorkflowRunning, transport.UpdateItemStatusRequest{
		QuotationDate: strPtr("2026-09-01"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upd.QuotationDate == nil || upd.WorkflowStatus != domain.WorkflowRunning {
		t.Errorf("running update must carry the quotation date, got %+v", upd)
	}
}

func TestBuildWorkflowUpdateFollowUpCountsAndCaps(t *testing.T) {
	svc := newWorkflowService(2)
	actor := directory.NewActor(uuid.New(), nil, nil, nil)

	item := assignedItem(domain.WorkflowRunning)
	upd, err := svc.buildWorkflowUpdate(actor, item, domain.WorkflowFollowUp, transport.UpdateItemStatusRequest{
		FollowUpDate: strPtr("2026-09-10"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upd.FollowUpCount == nil || *upd.FollowUpCount != 1 {
		t.Errorf("entering follow_up from running must count 1, got %+v", upd.FollowUpCount)
	}

	// Re-dating an existing follow-up does not consume the budget.
	item = assignedItem(domain.WorkflowFollowUp)
	item.FollowUpCount = 2
	upd, err = svc.buildWorkflowUpdate(actor, item, domain.WorkflowFollowUp, transport.UpdateItemStatusRequest{
		FollowUpDate: strPtr("2026-09-20"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upd.FollowUpCount == nil || *upd.FollowUpCount != 2 {
		t.Errorf("re-dating must keep the count at 2, got %+v", upd.FollowUpCount)
	}

	// A fresh entry past the cap is rejected.
	item = assignedItem(domain.WorkflowRunning)
	item.FollowUpCount = 2
	_, err = svc.buildWorkflowUpdate(actor, item, domain.WorkflowFollowUp, transport.UpdateItemStatusRequest{
		FollowUpDate: strPtr("2026-09-20"),
	})
	wantValidationField(t, err, "workflow_status")
}

func TestBuildWorkflowUpdateSoldClosesItem(t *testing.T) {
	svc := newWorkflowService(3)
	actor := directory.NewActor(uuid.New(), nil, nil, nil)
	item := assignedItem(domain.WorkflowRunning)

	upd, err := svc.buildWorkflowUpdate(actor, item, domain.WorkflowSold, transport.UpdateItemStatusRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upd.ItemStatus == nil || *upd.ItemStatus != domain.ItemClosed {
		t.Errorf("sold must close the item, got %+v", upd.ItemStatus)
	}
}

func TestBuildWorkflowUpdateFinishedNeedsNote(t *testing.T) {
	svc := newWorkflowService(3)
	actor := directory.NewActor(uuid.New(), nil, nil, nil)
	item := assignedItem(domain.WorkflowRunning)

	_, err := svc.buildWorkflowUpdate(actor, item, domain.WorkflowFinished, transport.UpdateItemStatusRequest{})
	wantValidationField(t, err, "finished_note")

	upd, err := svc.buildWorkflowUpdate(actor, item, domain.WorkflowFinished, transport.UpdateItemStatusRequest{
		FinishedNote: strPtr("customer went with a competitor"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upd.ItemStatus == nil || *upd.ItemStatus != domain.ItemClosed {
		t.Errorf("finished must close the item, got %+v", upd.ItemStatus)
	}
}

func TestBuildWorkflowUpdateReviewNeedsNote(t *testing.T) {
	svc := newWorkflowService(3)
	actor := directory.NewActor(uuid.New(), nil, nil, nil)
	item := assignedItem(domain.WorkflowFinished)

	_, err := svc.buildWorkflowUpdate(actor, item, domain.WorkflowReviewedWithCall, transport.UpdateItemStatusRequest{})
	wantValidationField(t, err, "review_note")

	_, err = svc.buildWorkflowUpdate(actor, item, domain.WorkflowReviewedWithoutCall, transport.UpdateItemStatusRequest{
		ReviewNote: strPtr(""),
	})
	wantValidationField(t, err, "review_note")
}

func TestBuildWorkflowUpdateReviewStampsActor(t *testing.T) {
	svc := newWorkflowService(3)
	actorID := uuid.New()
	actor := directory.NewActor(actorID, nil, nil, nil)
	item := assignedItem(domain.WorkflowFinished)

	upd, err := svc.buildWorkflowUpdate(actor, item, domain.WorkflowReviewedWithCall, transport.UpdateItemStatusRequest{
		ReviewNote: strPtr("called, customer satisfied"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upd.ReviewedByUserID == nil || *upd.ReviewedByUserID != actorID {
		t.Errorf("review must stamp the reviewer, got %+v", upd.ReviewedByUserID)
	}
	if upd.ReviewStatus == nil || *upd.ReviewStatus != string(domain.WorkflowReviewedWithCall) {
		t.Errorf("review must record the review status, got %+v", upd.ReviewStatus)
	}
	if upd.ReviewedAt == nil {
		t.Error("review must record when it happened")
	}
}

func TestWorkflowSnapshotsCoverTouchedFields(t *testing.T) {
	svc := newWorkflowService(3)
	actorID := uuid.New()
	actor := directory.NewActor(actorID, nil, nil, nil)
	item := assignedItem(domain.WorkflowFinished)

	upd, err := svc.buildWorkflowUpdate(actor, item, domain.WorkflowReviewedWithCall, transport.UpdateItemStatusRequest{
		ReviewNote: strPtr("called, customer satisfied"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	before, after := workflowSnapshots(item, upd)
	if before["workflow_status"] != string(domain.WorkflowFinished) ||
		after["workflow_status"] != string(domain.WorkflowReviewedWithCall) {
		t.Errorf("snapshots must record the status change, got %v -> %v", before, after)
	}
	for _, field := range []string{"review_status", "review_note", "reviewed_by_user_id", "reviewed_at"} {
		if _, ok := before[field]; !ok {
			t.Errorf("before snapshot is missing %s", field)
		}
		if _, ok := after[field]; !ok {
			t.Errorf("after snapshot is missing %s", field)
		}
	}
	if after["review_note"] != "called, customer satisfied" {
		t.Errorf("after snapshot must carry the new note, got %v", after["review_note"])
	}
	if after["reviewed_by_user_id"] != actorID {
		t.Errorf("after snapshot must name the reviewer, got %v", after["reviewed_by_user_id"])
	}
	if _, ok := before["quotation_date"]; ok {
		t.Error("untouched fields must stay out of the snapshots")
	}
}

func TestRequireDate(t *testing.T) {
	if _, err := requireDate(nil, "quotation_date"); err == nil {
		t.Error("missing date must be rejected")
	}
	if _, err := requireDate(strPtr("01-09-2026"), "quotation_date"); err == nil {
		t.Error("wrong layout must be rejected")
	}
	date, err := requireDate(strPtr("2026-09-01"), "quotation_date")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if date.Year() != 2026 || date.Month() != 9 || date.Day() != 1 {
		t.Errorf("parsed the wrong date: %v", date)
	}
}
