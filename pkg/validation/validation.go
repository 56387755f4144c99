package validation

import (
	"regexp"
	"strings"
)

var (
	emailRegex     = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	shortNameRegex = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)
)

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	email = strings.TrimSpace(strings.ToLower(email))
	return emailRegex.MatchString(email)
}

// ValidateShortName validates a client short name (upper-case alphanumeric,
// 2-10 characters, e.g. "NABO")
func ValidateShortName(shortName string) bool {
	return shortNameRegex.MatchString(strings.TrimSpace(shortName))
}

// SanitizeString removes potentially harmful characters
func SanitizeString(input string) string {
	// Basic sanitization
	input = strings.TrimSpace(input)
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")
	return input
}
