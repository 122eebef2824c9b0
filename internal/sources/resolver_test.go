package sources

import (
	"testing"

	"github.com/google/uuid"
)

func ptr[T any](v T) *T { return &v }

func TestValidateQueryRules(t *testing.T) {
	id := uuid.New()

	cases := []struct {
		name       string
		sourceName string
		payload    Payload
		wantField  string
	}{
		{"whatsapp missing account", ChannelWhatsApp, Payload{}, "source_wa_id"},
		{"whatsapp with account", ChannelWhatsApp, Payload{WhatsAppID: &id}, ""},
		{"email missing account", ChannelEmail, Payload{}, "source_email_id"},
		{"email with account", ChannelEmail, Payload{EmailID: &id}, ""},
		{"colleague missing referrer", ChannelReferredByColleague, Payload{}, "referred_by_user_id"},
		{"colleague with referrer", ChannelReferredByColleague, Payload{ReferredByUserID: &id}, ""},
		{"customer referral missing id", ChannelReferredByCustomer, Payload{}, "referred_by_customer_id"},
		{"customer referral with id", ChannelReferredByCustomer, Payload{ReferredByCustomerID: &id}, ""},
		{"unconditional channel", "Walk In", Payload{}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errs := ValidateQueryRules(tc.sourceName, tc.payload)
			if tc.wantField == "" {
				if !errs.Empty() {
					t.Errorf("expected no errors, got %v", errs)
				}
				return
			}
			if len(errs[tc.wantField]) == 0 {
				t.Errorf("expected an error under %q, got %v", tc.wantField, errs)
			}
		})
	}
}

func TestValidateCustomerRulesReferralFlag(t *testing.T) {
	id := uuid.New()

	// No answer to the yes/no question at all.
	errs := ValidateCustomerRules(ChannelReferredByCustomer, Payload{})
	if len(errs["referred_by_customer"]) == 0 {
		t.Errorf("expected an error demanding the yes/no flag, got %v", errs)
	}

	// Answered yes but no referrer selected.
	errs = ValidateCustomerRules(ChannelReferredByCustomer, Payload{ReferredByCustomer: ptr(true)})
	if len(errs["referred_by_customer_id"]) == 0 {
		t.Errorf("expected an error demanding the referrer customer, got %v", errs)
	}

	// Answered no: nothing more required.
	errs = ValidateCustomerRules(ChannelReferredByCustomer, Payload{ReferredByCustomer: ptr(false)})
	if !errs.Empty() {
		t.Errorf("expected no errors when answered no, got %v", errs)
	}

	// Answered yes with a referrer.
	errs = ValidateCustomerRules(ChannelReferredByCustomer, Payload{
		ReferredByCustomer:   ptr(true),
		ReferredByCustomerID: &id,
	})
	if !errs.Empty() {
		t.Errorf("expected no errors, got %v", errs)
	}
}
