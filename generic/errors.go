/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages return these (or wrap them) so the API layer can map
  every failure to a status code without string matching.

ERROR CATEGORIES:
  1. Validation errors - user-correctable input, carry a reason code
  2. Authorization errors - actor may not perform the transition
  3. State-conflict errors - transition from an unexpected state
  4. Not-found errors - unknown request or user
  5. Configuration errors - missing or malformed holiday table (fail closed)

USAGE:
  if errors.Is(err, generic.ErrValidation) {
      var ve *generic.ValidationError
      errors.As(err, &ve)
      fmt.Println(ve.Code) // "no_business_days"
  }

SEE ALSO:
  - leave/state.go: Produces ConflictError and PermissionError
  - api/handlers.go: Maps categories to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the category of every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidPeriod is returned when a range is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrNotFound is returned when a referenced leave request doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrUserNotFound is returned when a referenced user doesn't exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrConflict is the category of every *ConflictError.
	ErrConflict = errors.New("state conflict")

	// ErrConcurrentModification is returned when a conditional update lost a race
	// and the re-read state could not be reconciled.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrPermissionDenied is the category of every *PermissionError.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrConfiguration is the category of configuration failures.
	ErrConfiguration = errors.New("configuration error")

	// ErrHolidayTableMissing means no holiday table is configured for a tenant.
	// The engine refuses to compute instead of treating every day as working.
	ErrHolidayTableMissing = fmt.Errorf("%w: holiday table missing", ErrConfiguration)

	// ErrInvalidHolidayTable means the configured table is malformed.
	ErrInvalidHolidayTable = fmt.Errorf("%w: holiday table invalid", ErrConfiguration)
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ReasonCode identifies why a submission was rejected.
type ReasonCode string

const (
	ReasonInvalidInput            ReasonCode = "invalid_input"
	ReasonInvalidRange            ReasonCode = "invalid_range"
	ReasonHalfDayOnNonWorkingDay  ReasonCode = "half_day_on_non_working_day"
	ReasonNoBusinessDays          ReasonCode = "no_business_days"
	ReasonFullyOverlapsApproved   ReasonCode = "fully_overlaps_approved"
	ReasonInsufficientEntitlement ReasonCode = "insufficient_entitlement"
)

// ValidationError is a rejected submission. Never fatal.
type ValidationError struct {
	Code    ReasonCode
	Message string
}

func NewValidationError(code ReasonCode, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConflictError reports a transition attempted from a state that neither
// permits it nor already reflects it.
type ConflictError struct {
	RequestID RequestID
	Current   string
	Event     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot %s request %s in status %s", e.Event, e.RequestID, e.Current)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// PermissionError reports an actor that may not perform an action.
type PermissionError struct {
	ActorID UserID
	Action  string
	Reason  string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s may not %s: %s", e.ActorID, e.Action, e.Reason)
}

func (e *PermissionError) Unwrap() error { return ErrPermissionDenied }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrUserNotFound)
}

// IsConflict returns true for state conflicts and lost races.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrConcurrentModification)
}

// IsPermission returns true for authorization failures.
func IsPermission(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// IsConfiguration returns true for holiday/tenant configuration failures.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
