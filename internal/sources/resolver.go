package sources

import "salesops_backend/platform/apperr"

// Channel names driving the conditional-field rules. Channels are matched by
// looked-up name, never by hardcoded ids.
const (
	ChannelWhatsApp           = "WhatsApp Call/Message"
	ChannelEmail              = "Email"
	ChannelReferredByColleague = "Referred by Colleague"
	ChannelReferredByCustomer  = "Referred by Customer"
)

// ValidateQueryRules checks the conditional-field rules for a query-level
// attribution payload whose channel resolved to sourceName.
func ValidateQueryRules(sourceName string, payload Payload) apperr.FieldErrors {
	errs := make(apperr.FieldErrors)

	switch sourceName {
	case ChannelWhatsApp:
		if payload.WhatsAppID == nil {
			errs.Add("source_wa_id", "Official WhatsApp number is required for this query source.")
		}
	case ChannelEmail:
		if payload.EmailID == nil {
			errs.Add("source_email_id", "Official email is required for this query source.")
		}
	case ChannelReferredByColleague:
		if payload.ReferredByUserID == nil {
			errs.Add("referred_by_user_id", "Referrer colleague is required for this query source.")
		}
	case ChannelReferredByCustomer:
		if payload.ReferredByCustomerID == nil {
			errs.Add("referred_by_customer_id", "Referrer customer is required for this query source.")
		}
	}

	return errs
}

// ValidateCustomerRules checks the conditional-field rules for a customer-level
// payload. The "Referred by Customer" channel additionally demands the explicit
// yes/no flag; the referrer id is only required once the caller answered yes.
func ValidateCustomerRules(sourceName string, payload Payload) apperr.FieldErrors {
	errs := make(apperr.FieldErrors)

	switch sourceName {
	case ChannelWhatsApp:
		if payload.WhatsAppID == nil {
			errs.Add("source_wa_id", "Official WhatsApp is required for WhatsApp source.")
		}
	case ChannelEmail:
		if payload.EmailID == nil {
			errs.Add("source_email_id", "Official email is required for Email source.")
		}
	case ChannelReferredByColleague:
		if payload.ReferredByUserID == nil {
			errs.Add("referred_by_user_id", "Referrer colleague is required for this source.")
		}
	case ChannelReferredByCustomer:
		if payload.ReferredByCustomer == nil {
			errs.Add("referred_by_customer", "Please select whether customer referrer is available (Yes/No).")
		} else if *payload.ReferredByCustomer && payload.ReferredByCustomerID == nil {
			errs.Add("referred_by_customer_id", `Referrer customer is required when "Yes" is selected.`)
		}
	}

	return errs
}
