package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	userIDPattern = regexp.MustCompile(`^[A-Za-z0-9._@\-]{1,64}$`)
	controlChars  = regexp.MustCompile(`[\x00-\x08\x0b-\x1f\x7f]`)
)

// Paging bounds for list endpoints
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// ValidateUserID checks that an actor identifier is a short printable token
func ValidateUserID(userID string) error {
	if !userIDPattern.MatchString(userID) {
		return fmt.Errorf("invalid user id: %q", userID)
	}
	return nil
}

// SanitizeString removes control characters other than tab and newline and trims surrounding space
func SanitizeString(s string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(s, ""))
}

// ClampPage normalizes a limit/offset pair
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
