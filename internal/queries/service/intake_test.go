package service

import (
	"testing"

	"github.com/google/uuid"

	custrepo "salesops_backend/internal/customers/repository"
)

func TestResolvePrimaryMatchExactMobileWins(t *testing.T) {
	matches := []custrepo.Customer{
		{ID: uuid.New(), CustomerName: "Kamal", MobileNumber: "+8801711111111"},
		{ID: uuid.New(), CustomerName: "Jamal", MobileNumber: "+8801722222222"},
	}

	got := resolvePrimaryMatch(matches, "+8801722222222")
	if got == nil || got.CustomerName != "Jamal" {
		t.Fatalf("want the exact mobile match, got %+v", got)
	}
}

func TestResolvePrimaryMatchLoneResult(t *testing.T) {
	matches := []custrepo.Customer{
		{ID: uuid.New(), CustomerName: "Kamal", MobileNumber: "+8801711111111"},
	}

	got := resolvePrimaryMatch(matches, "")
	if got == nil || got.CustomerName != "Kamal" {
		t.Fatalf("a lone result is primary even without a mobile, got %+v", got)
	}
}

func TestResolvePrimaryMatchMostRecentWinsWithoutMobile(t *testing.T) {
	// Search results arrive newest-first; without an exact mobile match
	// the most recent candidate is primary.
	matches := []custrepo.Customer{
		{ID: uuid.New(), CustomerName: "Rahim"},
		{ID: uuid.New(), CustomerName: "Rahim Uddin"},
	}

	got := resolvePrimaryMatch(matches, "")
	if got == nil || got.CustomerName != "Rahim" {
		t.Errorf("want the first (most recent) candidate, got %+v", got)
	}
}

func TestResolvePrimaryMatchNoResults(t *testing.T) {
	if got := resolvePrimaryMatch(nil, "+8801711111111"); got != nil {
		t.Errorf("no matches means no primary, got %+v", got)
	}
}
