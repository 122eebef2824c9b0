// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "BD"

// Normalize canonicalizes a mobile number to the +<country><subscriber> form used
// for exact-match equality throughout the system. All non-digits are stripped, then
// Bangladesh number shapes are recognized:
//
//	8801XXXXXXXXX (13 digits)  -> +8801XXXXXXXXX
//	0XXXXXXXXXX   (11 digits)  -> +880XXXXXXXXXX
//	1XXXXXXXXX    (10 digits)  -> +8801XXXXXXXXX
//
// Anything else keeps its digits with a leading +. Empty input after stripping
// yields the empty string; treating that as invalid is the caller's job.
// The same function is applied to mobile and WhatsApp numbers.
func Normalize(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	d := digits.String()
	if d == "" {
		return ""
	}

	if strings.HasPrefix(d, "8801") && len(d) >= 13 {
		return "+" + d[:13]
	}

	if strings.HasPrefix(d, "0") && len(d) == 11 {
		return "+88" + d
	}

	if len(d) == 10 && strings.HasPrefix(d, "1") {
		return "+880" + d
	}

	return "+" + d
}

// IsPlausible reports whether the input parses as a possible phone number for the
// default region. It is advisory only; canonical equality is defined by Normalize.
func IsPlausible(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return false
	}

	return phonenumbers.IsPossibleNumber(number)
}
