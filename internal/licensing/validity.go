// internal/licensing/validity.go
package licensing

import (
	"errors"
	"fmt"
	"time"
)

// ValidityType determines how a license expiration date was computed.
type ValidityType string

const (
	ValidityCustomDate ValidityType = "CUSTOM_DATE"
	ValidityLifetime   ValidityType = "LIFETIME"
)

// LifetimeExpiration is the sentinel expiration stored for lifetime licenses.
var LifetimeExpiration = time.Date(9999, time.December, 31, 23, 59, 59, 999_000_000, time.UTC)

var (
	ErrInvalidValidityType = errors.New("validity type must be CUSTOM_DATE or LIFETIME")
	ErrMissingCustomDate   = errors.New("custom validity date is required for CUSTOM_DATE")
	ErrInvalidCustomDate   = errors.New("custom validity date is not a valid date")
	ErrCustomDateInPast    = errors.New("custom validity date is in the past")
)

var acceptedDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
}

// IsValidValidityType reports whether v is a supported validity type.
func IsValidValidityType(v string) bool {
	switch ValidityType(v) {
	case ValidityCustomDate, ValidityLifetime:
		return true
	}
	return false
}

// EndOfDay returns 23:59:59.999 of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999_000_000, loc)
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// ParseCalendarDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the
// calendar day it names in loc.
func ParseCalendarDate(value string, loc *time.Location) (time.Time, error) {
	for _, layout := range acceptedDateLayouts {
		if layout == "2006-01-02" {
			if t, err := time.ParseInLocation(layout, value, loc); err == nil {
				return t, nil
			}
			continue
		}
		if t, err := time.Parse(layout, value); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidCustomDate, value)
}

// ComputeExpiration resolves the expiration date for a validity selection.
// Custom dates are normalized to end of day and must not be in the past.
func ComputeExpiration(validity ValidityType, customDate string, clock Clock) (time.Time, error) {
	switch validity {
	case ValidityLifetime:
		return LifetimeExpiration, nil
	case ValidityCustomDate:
		if customDate == "" {
			return time.Time{}, ErrMissingCustomDate
		}
		loc := clock.Location()
		day, err := ParseCalendarDate(customDate, loc)
		if err != nil {
			return time.Time{}, err
		}
		expiration := EndOfDay(day, loc)
		if expiration.Before(clock.Now()) {
			return time.Time{}, ErrCustomDateInPast
		}
		return expiration, nil
	default:
		return time.Time{}, ErrInvalidValidityType
	}
}

// IsExpired reports whether expiration lies before today's midnight.
func IsExpired(expiration time.Time, clock Clock) bool {
	return expiration.Before(Today(clock))
}
