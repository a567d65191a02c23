// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "ES"

// NormalizeE164 formats a phone number to E.164. An explicit country prefix
// (e.g. "+31") is prepended when the number is not already international.
// If parsing fails, it returns the trimmed input.
func NormalizeE164(input, countryPrefix, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}
	if region == "" {
		region = defaultRegion
	}

	candidate := trimmed
	prefix := strings.TrimSpace(countryPrefix)
	if prefix != "" && !strings.HasPrefix(candidate, "+") && !strings.HasPrefix(candidate, "00") {
		if !strings.HasPrefix(prefix, "+") {
			prefix = "+" + prefix
		}
		candidate = prefix + strings.TrimLeft(candidate, "0")
	}

	number, err := phonenumbers.Parse(candidate, region)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}
