package service

import (
	"testing"

	"github.com/google/uuid"

	"salesops_backend/internal/queries/transport"
	"salesops_backend/platform/apperr"
)

func TestEffectiveSelfServicesSelfKeepsAll(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	req := transport.StoreQueryRequest{
		AssignedType: "self",
		ServiceIDs:   []uuid.UUID{a, b},
	}

	got, err := effectiveSelfServices(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got[a] || !got[b] || len(got) != 2 {
		t.Errorf("self query without a subset must keep every service, got %v", got)
	}
}

func TestEffectiveSelfServicesSelfSubset(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	req := transport.StoreQueryRequest{
		AssignedType:   "self",
		ServiceIDs:     []uuid.UUID{a, b},
		SelfServiceIDs: []uuid.UUID{b},
	}

	got, err := effectiveSelfServices(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[a] || !got[b] || len(got) != 1 {
		t.Errorf("subset should narrow the self set to %s, got %v", b, got)
	}
}

func TestEffectiveSelfServicesTeamRejectsSubset(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	req := transport.StoreQueryRequest{
		AssignedType:   "team",
		ServiceIDs:     []uuid.UUID{a, b},
		SelfServiceIDs: []uuid.UUID{a},
	}

	_, err := effectiveSelfServices(req)
	if err == nil {
		t.Fatal("a team query must not carry self_service_ids")
	}
	appErr, ok := err.(*apperr.Error)
	if !ok || appErr.Kind != apperr.KindValidation {
		t.Errorf("want a validation error, got %v", err)
	}
}

func TestEffectiveSelfServicesTeamKeepsNothing(t *testing.T) {
	req := transport.StoreQueryRequest{
		AssignedType: "team",
		ServiceIDs:   []uuid.UUID{uuid.New()},
	}

	got, err := effectiveSelfServices(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("team query without a subset keeps nothing for the creator, got %v", got)
	}
}

func TestEffectiveSelfServicesRejectsForeignService(t *testing.T) {
	req := transport.StoreQueryRequest{
		AssignedType:   "self",
		ServiceIDs:     []uuid.UUID{uuid.New()},
		SelfServiceIDs: []uuid.UUID{uuid.New()},
	}

	_, err := effectiveSelfServices(req)
	if err == nil {
		t.Fatal("expected a validation error for a service outside the query")
	}
	appErr, ok := err.(*apperr.Error)
	if !ok || appErr.Kind != apperr.KindValidation {
		t.Errorf("want a validation error, got %v", err)
	}
}
