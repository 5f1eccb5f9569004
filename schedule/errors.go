/*
errors.go - Error types for the scheduling core

PURPOSE:
  All scheduling error types in one place. The taxonomy:

  1. Admission/validation rejection - the mutation did not happen, no
     partial state change (ErrCapacityExceeded, ErrInvalidPostalCode,
     ErrInvalidDate).
  2. Not-found - a normal outcome, represented as an explicit nil/false
     result by the finder and resolver; only entity lookups by ID use
     error values (ErrVisitNotFound, ErrAddressNotFound).
  3. Persistence failure - fatal to the enclosing operation, surfaced
     unwrapped from the store.

USAGE:
  Handlers map errors to HTTP status codes via IsClientError/IsNotFound.
*/
package schedule

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCapacityExceeded is returned when a write would push a day's
	// scheduled work past DailyCapacityMinutes.
	ErrCapacityExceeded = errors.New("daily capacity of 480 minutes exceeded")

	// ErrInvalidPostalCode is returned when a CEP does not reduce to 8 digits.
	ErrInvalidPostalCode = errors.New("postal code must have 8 digits")

	// ErrInvalidDate is returned for dates not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("invalid date")

	// ErrVisitNotFound is returned when a visit ID does not exist.
	ErrVisitNotFound = errors.New("visit not found")

	// ErrAddressNotFound is returned when an address ID does not exist.
	ErrAddressNotFound = errors.New("address not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// CapacityError reports an admission rejection with the numbers behind it.
type CapacityError struct {
	Date      Date
	Current   int // minutes already scheduled on Date
	Requested int // additional minutes that were asked for
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity exceeded on %s: %d scheduled + %d requested > %d",
		e.Date, e.Current, e.Requested, DailyCapacityMinutes)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is due to invalid client input
// or an admission rejection, as opposed to a store failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrInvalidPostalCode) ||
		errors.Is(err, ErrInvalidDate)
}

// IsNotFound reports whether the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrVisitNotFound) ||
		errors.Is(err, ErrAddressNotFound)
}
