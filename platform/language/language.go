// Package language normalizes intake language codes.
package language

import (
	"strings"

	"golang.org/x/text/language"
)

// Normalize reduces a language tag ("EN", "en-GB", "nl_BE") to its lower-case
// ISO 639-1 base. Unparseable or empty input yields fallback.
func Normalize(input, fallback string) string {
	trimmed := strings.TrimSpace(strings.ReplaceAll(input, "_", "-"))
	if trimmed == "" {
		return fallback
	}

	tag, err := language.Parse(trimmed)
	if err != nil {
		return fallback
	}

	base, confidence := tag.Base()
	if confidence == language.No {
		return fallback
	}

	code := base.String()
	if len(code) != 2 {
		return fallback
	}
	return code
}
