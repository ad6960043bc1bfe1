package rules

import (
	"errors"
	"fmt"
	"time"
)

// ResolveErrorCode categorizes rule-resolution failures.
type ResolveErrorCode string

const (
	// ErrCodeUnknownVersion indicates no pack matches the selector.
	ErrCodeUnknownVersion ResolveErrorCode = "UNKNOWN_VERSION"

	// ErrCodePeriodNotCovered indicates the as-of date falls outside
	// the selected pack's effective window.
	ErrCodePeriodNotCovered ResolveErrorCode = "PERIOD_NOT_COVERED"

	// ErrCodeBackdatingRejected indicates "latest" was requested for a
	// period that predates the newest pack's effectiveness.
	ErrCodeBackdatingRejected ResolveErrorCode = "BACKDATING_REJECTED"
)

// ResolveError reports a failed pack resolution with enough context to
// diagnose without re-running: the selector, the as-of date, and the
// candidate window when one was considered.
type ResolveError struct {
	Code     ResolveErrorCode
	Selector string
	AsOf     time.Time
	Message  string
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	return fmt.Sprintf("%s: %s (selector=%s, as_of=%s)",
		e.Code, e.Message, e.Selector, e.AsOf.Format("2006-01-02"))
}

// IsUnknownVersion reports whether err is an UNKNOWN_VERSION resolution
// failure. Uses errors.As to handle wrapped errors.
func IsUnknownVersion(err error) bool {
	var re *ResolveError
	return errors.As(err, &re) && re.Code == ErrCodeUnknownVersion
}

// IsPeriodNotCovered reports whether err is a PERIOD_NOT_COVERED
// resolution failure.
func IsPeriodNotCovered(err error) bool {
	var re *ResolveError
	return errors.As(err, &re) && re.Code == ErrCodePeriodNotCovered
}

// IsBackdatingRejected reports whether err is the backdating guard
// firing for the "latest" selector.
func IsBackdatingRejected(err error) bool {
	var re *ResolveError
	return errors.As(err, &re) && re.Code == ErrCodeBackdatingRejected
}

// ConfigError reports a broken pack definition: bracket gaps or
// overlaps, bad semantics, out-of-range rates, or a digest mismatch.
// Fatal for the pack - the definitions themselves are wrong, so the
// whole load fails rather than degrading per call.
type ConfigError struct {
	// PackID identifies the offending pack, empty when the error
	// precedes identification.
	PackID string

	// Field names the offending field or bracket (e.g. "brackets[2]").
	Field string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.PackID == "" {
		return fmt.Sprintf("BRACKET_CONFIG: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("BRACKET_CONFIG: pack %s: %s: %s", e.PackID, e.Field, e.Message)
}

// IsConfigError reports whether err is a fatal pack configuration
// error.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
