package api

import (
	"strconv"
	"time"

	dps "github.com/markusmobius/go-dateparser"
)

// parseTime parses a query-parameter timestamp, supporting both Unix
// seconds and human-readable dates ("2026-08-06", "3 hours ago"). fieldName
// is used for error messages.
func parseTime(value, fieldName string) (time.Time, error) {
	if value == "" {
		return time.Time{}, NewValidationError("%s is required", fieldName)
	}

	if unixSeconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if unixSeconds < 0 {
			return time.Time{}, NewValidationError("%s must be non-negative", fieldName)
		}
		return time.Unix(unixSeconds, 0).UTC(), nil
	}

	parser := dps.Parser{}
	cfg := &dps.Configuration{PreferredDateSource: dps.CurrentPeriod}
	parsed, err := parser.Parse(cfg, value)
	if err != nil {
		return time.Time{}, NewValidationError("%s must be a Unix timestamp or human-readable date: %v", fieldName, err)
	}
	if parsed.IsZero() {
		return time.Time{}, NewValidationError("%s could not be parsed as a date: %s", fieldName, value)
	}
	return parsed.Time.UTC(), nil
}

// parseOptionalTime parses value if non-empty, otherwise returns the zero
// time with no error.
func parseOptionalTime(value, fieldName string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return parseTime(value, fieldName)
}
