package domain

import (
	"fmt"
	"strings"
)

// ValidationError reports a field that failed construction-time validation.
// Invalid input is rejected before it reaches persistence, never coerced.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NormalizeID validates a Slack identifier and folds it to the canonical
// upper-case form used throughout storage and comparison.
func NormalizeID(field, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", &ValidationError{Field: field, Reason: "must not be empty"}
	}
	return strings.ToUpper(id), nil
}
