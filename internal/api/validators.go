package api

import (
	"github.com/moolen-fork/changeintel/internal/models"
)

// Validator validates API request parameters that aren't already enforced
// by internal/service or the model types themselves.
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateLimit checks a caller-supplied page size: 0 yields def, and a
// negative value or one above max is a validation error.
func (v *Validator) ValidateLimit(limit, def, max int) (int, error) {
	if limit == 0 {
		return def, nil
	}
	if limit < 0 {
		return 0, NewValidationError("limit must be non-negative")
	}
	if limit > max {
		return 0, NewValidationError("limit must not exceed %d", max)
	}
	return limit, nil
}

// ValidateChangeType checks t against the enumerated change kinds, when set.
func (v *Validator) ValidateChangeType(t string) error {
	if t == "" {
		return nil
	}
	if !models.ValidChangeType(models.ChangeType(t)) {
		return NewValidationError("invalid changeType %q", t)
	}
	return nil
}
