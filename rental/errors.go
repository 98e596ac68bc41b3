/*
errors.go - Centralized error types for the conversion workflow

PURPOSE:
  All conversion error kinds in one place. Validation failures carry enough
  detail to render a specific message; infrastructure failures are opaque to
  end users and logged by the Converter.

ERROR CATEGORIES:
  1. Validation - guard violations on the freshly read reservation
  2. Infrastructure - sequence or persistence failures
  3. Internal - the conditional-update conflict, recovered and never surfaced

USAGE:
  if errors.Is(err, rental.ErrDownPaymentUnpaid) {
      // render "down payment not received" to the operator
  }

SEE ALSO:
  - convert.go: Produces these errors
*/
package rental

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrReservationNotFound is returned when the reservation id does not
	// exist.
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrReservationNotConfirmed is returned when the reservation status is
	// not 'confirmed'.
	ErrReservationNotConfirmed = errors.New("reservation not confirmed")

	// ErrDownPaymentUnpaid is returned when the down payment is not marked
	// paid.
	ErrDownPaymentUnpaid = errors.New("down payment not paid")

	// ErrNumberGeneration is returned when the agreement-number sequence
	// fails. No partial writes have occurred at that point.
	ErrNumberGeneration = errors.New("agreement number generation failed")

	// ErrAgreementPersistence is returned when the agreement insert fails.
	// The reservation has not been mutated.
	ErrAgreementPersistence = errors.New("agreement persistence failed")

	// ErrConversionConflict marks a lost conditional update: another caller
	// converted the reservation first. The Converter recovers from this
	// internally by returning the winner's agreement; it is never surfaced.
	ErrConversionConflict = errors.New("concurrent conversion won the race")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// GuardError reports which guard condition a reservation failed.
type GuardError struct {
	ReservationID     string
	Status            ReservationStatus
	DownPaymentStatus DownPaymentStatus
	kind              error
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("reservation %s: %v (status=%s, down_payment=%s)",
		e.ReservationID, e.kind, e.Status, e.DownPaymentStatus)
}

func (e *GuardError) Unwrap() error { return e.kind }

// NotFoundError identifies the missing reservation.
type NotFoundError struct {
	ReservationID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("reservation %s: not found", e.ReservationID)
}

func (e *NotFoundError) Unwrap() error { return ErrReservationNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is a guard violation the caller
// can present to an operator.
func IsClientError(err error) bool {
	return errors.Is(err, ErrReservationNotFound) ||
		errors.Is(err, ErrReservationNotConfirmed) ||
		errors.Is(err, ErrDownPaymentUnpaid)
}

// IsNotFound returns true if the error indicates a missing reservation.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrReservationNotFound)
}

// IsInfrastructure returns true for failures that should surface as opaque
// server errors.
func IsInfrastructure(err error) bool {
	return errors.Is(err, ErrNumberGeneration) ||
		errors.Is(err, ErrAgreementPersistence)
}
