package service

import (
	"testing"

	"github.com/google/uuid"

	"salesops_backend/internal/customers/repository"
	"salesops_backend/internal/customers/transport"
	"salesops_backend/internal/sources"
)

func strPtr(s string) *string { return &s }

func TestBuildSnapshotsOnlyChangedFields(t *testing.T) {
	customer := repository.Customer{
		CustomerName:   "Rahim Uddin",
		MobileNumber:   "+8801712345678",
		CustomerStatus: repository.StatusRegular,
	}
	req := transport.UpdateCustomerRequest{
		CustomerName: strPtr("Rahim Uddin"),
		Address:      strPtr("House 12, Road 5, Dhanmondi"),
	}

	oldData, newData := buildSnapshots(customer, req)

	if _, ok := newData["customer_name"]; ok {
		t.Error("an unchanged name must not appear in the snapshot")
	}
	if newData["address"] != "House 12, Road 5, Dhanmondi" {
		t.Errorf("address change missing from snapshot: %v", newData)
	}
	if oldData["address"] != (*string)(nil) {
		t.Errorf("old address should be the nil pointer, got %v", oldData["address"])
	}
}

func TestBuildSnapshotsNormalizesMobile(t *testing.T) {
	customer := repository.Customer{MobileNumber: "+8801712345678"}

	// A differently written same number is no change at all.
	_, newData := buildSnapshots(customer, transport.UpdateCustomerRequest{
		MobileNumber: strPtr("01712345678"),
	})
	if len(newData) != 0 {
		t.Errorf("same number in local format must not count as a change: %v", newData)
	}

	_, newData = buildSnapshots(customer, transport.UpdateCustomerRequest{
		MobileNumber: strPtr("01898765432"),
	})
	if newData["mobile_number"] != "+8801898765432" {
		t.Errorf("new mobile must be stored normalized, got %v", newData["mobile_number"])
	}
}

func TestBuildSnapshotsUntouchedFieldsStayOut(t *testing.T) {
	customer := repository.Customer{
		CustomerName:   "Karim",
		MobileNumber:   "+8801712345678",
		CustomerStatus: repository.StatusRegular,
	}

	oldData, newData := buildSnapshots(customer, transport.UpdateCustomerRequest{})
	if len(oldData) != 0 || len(newData) != 0 {
		t.Errorf("empty request must produce empty snapshots: old %v new %v", oldData, newData)
	}
}

func TestSourceLogSnapshotRoundTrip(t *testing.T) {
	sourceID, waID := uuid.New(), uuid.New()
	payload := sources.Payload{SourceID: &sourceID, WhatsAppID: &waID}

	snap := sourceLogSnapshot(payload)
	if snap["source_id"] != sourceID.String() || snap["source_wa_id"] != waID.String() {
		t.Fatalf("snapshot lost fields: %v", snap)
	}
	if _, ok := snap["source_email_id"]; ok {
		t.Error("absent fields must stay out of the snapshot")
	}

	got, err := payloadFromSnapshot(snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SourceID == nil || *got.SourceID != sourceID || got.WhatsAppID == nil || *got.WhatsAppID != waID {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if got.EmailID != nil || got.ReferredByUserID != nil {
		t.Errorf("round trip invented fields: %+v", got)
	}

	if _, err := payloadFromSnapshot(map[string]any{}); err == nil {
		t.Error("a snapshot without source_id must be rejected")
	}
}

func TestToUUIDSlice(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	ids, err := toUUIDSlice([]any{a.String(), b.String()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != a || ids[1] != b {
		t.Errorf("round trip lost ids: %v", ids)
	}

	if _, err := toUUIDSlice("not a list"); err == nil {
		t.Error("a non-list snapshot must be rejected")
	}
	if _, err := toUUIDSlice([]any{"not-a-uuid"}); err == nil {
		t.Error("a malformed id must be rejected")
	}
	ids, err = toUUIDSlice([]any{})
	if err != nil || len(ids) != 0 {
		t.Errorf("empty list is a valid empty selection, got %v, %v", ids, err)
	}
}
