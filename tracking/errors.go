/*
errors.go - Error taxonomy of the time tracker

PURPOSE:
  Every business rejection surfaces as one of the sentinels below, possibly
  wrapped in a structured error that carries details for the caller.
  The HTTP layer maps categories to status codes; nothing else inspects
  error strings.

ERROR CATEGORIES:
  1. Validation  - malformed input (dates reversed, range too long, past dates)
  2. Quota       - yearly vacation allowance exhausted
  3. Conflict    - vacation over events, double check-in, check-out while out
  4. Forbidden   - role or ownership mismatch, deleting a started vacation
  5. Not found   - unknown identifiers

SEE ALSO:
  - api/errors.go: status code mapping
  - store.go: persistence contract returning ErrNotFound
*/
package tracking

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation marks malformed input. No side effects happened.
	ErrValidation = errors.New("validation failed")

	// ErrQuotaExceeded is returned when a vacation would overrun the yearly allowance.
	ErrQuotaExceeded = errors.New("vacation quota exceeded")

	// ErrConflict is the parent of every state conflict.
	ErrConflict = errors.New("conflict")

	// ErrEventsOverlap is returned when a vacation intersects staff events.
	ErrEventsOverlap = fmt.Errorf("%w: vacation overlaps events", ErrConflict)

	// ErrAlreadyCheckedIn is returned by a check-in while a session is open.
	ErrAlreadyCheckedIn = fmt.Errorf("%w: already checked in", ErrConflict)

	// ErrNotCheckedIn is returned by a check-out without an open session.
	ErrNotCheckedIn = fmt.Errorf("%w: not checked in", ErrConflict)

	// ErrUnauthenticated is returned when an operation needs a known caller.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrNotAuthorized is returned on role or ownership mismatch.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrVacationStarted is returned when deleting a vacation whose start date has passed.
	ErrVacationStarted = fmt.Errorf("%w: vacation already started", ErrNotAuthorized)

	// ErrNotFound is returned for unknown identifiers.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// QuotaExceededError reports how many days are still available this year.
type QuotaExceededError struct {
	Limit     int
	Used      int
	Requested int
	Remaining int
}

func (e *QuotaExceededError) Error() string {
	if e.Remaining <= 0 {
		return fmt.Sprintf("reached max vacation days (%d)", e.Limit)
	}
	return fmt.Sprintf("can't add more than %d days (requested %d)", e.Remaining, e.Requested)
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }

// EventConflictError lists the events a vacation request intersects.
type EventConflictError struct {
	EventIDs []EventID
}

func (e *EventConflictError) Error() string {
	ids := make([]string, len(e.EventIDs))
	for i, id := range e.EventIDs {
		ids[i] = string(id)
	}
	return fmt.Sprintf("events intersect with the vacation: %s", strings.Join(ids, ", "))
}

func (e *EventConflictError) Unwrap() error { return ErrEventsOverlap }

// NotFoundError names the kind of resource that is missing.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation reports malformed-input errors, quota breaches included.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrQuotaExceeded)
}

// IsConflict reports state conflicts.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsForbidden reports role, ownership and lifecycle refusals.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrNotAuthorized)
}

// IsNotFound reports unknown resources.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
