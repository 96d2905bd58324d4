package domain

import (
	"fmt"
	"strings"
)

// MaxLimit caps the result count of any single query.
const MaxLimit = 50

// ValidateQuery checks a SearchQuery before any external call is made.
// Autocomplete mode permits short or empty prefixes; every other mode
// requires non-empty text after trimming.
func ValidateQuery(q SearchQuery) error {
	if !ValidModes[q.Mode] {
		return NewValidationError("mode", string(q.Mode), ErrUnknownMode)
	}
	if q.Limit <= 0 {
		return NewValidationError("limit", fmt.Sprintf("%d", q.Limit), ErrBadLimit)
	}
	if q.Mode != ModeAutocomplete && strings.TrimSpace(q.Text) == "" {
		return NewValidationError("text", q.Text, ErrEmptyQuery)
	}
	if role, ok := q.Filters["role"]; ok && !ValidRoles[Role(role)] {
		return NewValidationError("filters.role", role, ErrUnknownRole)
	}
	return nil
}

// ClampLimit applies the MaxLimit cap.
func ClampLimit(limit int) int {
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
