/*
Package rental provides the reservation-to-agreement conversion workflow.

PURPOSE:
  Owns the domain objects on the conversion path (Reservation, Agreement,
  AgreementLine) and the Converter, the only component in the engine with a
  shared-resource hazard: the reservation row may be hit by concurrent
  conversion requests (double-submit, retry after timeout, two operators).

INVARIANT:
  A reservation's ConvertedAgreementID is set at most once and is permanent.
  The state transition is expressed as a single conditional write at the
  storage boundary, never a read-then-write pair.

SEE ALSO:
  - store.go: Collaborator interfaces (stores, sequence)
  - convert.go: The conversion workflow
  - errors.go: Conversion error taxonomy
*/
package rental

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RESERVATION - The source booking
// =============================================================================

type ReservationStatus string

const (
	ReservationPending    ReservationStatus = "pending"
	ReservationConfirmed  ReservationStatus = "confirmed"
	ReservationCheckedOut ReservationStatus = "checked_out"
	ReservationCompleted  ReservationStatus = "completed"
	ReservationCancelled  ReservationStatus = "cancelled"
)

type DownPaymentStatus string

const (
	DownPaymentPending DownPaymentStatus = "pending"
	DownPaymentPaid    DownPaymentStatus = "paid"
)

// Reservation is the committed booking the workflow consumes. Conversion
// trusts the persisted TotalAmount and does not re-run the rollup.
type Reservation struct {
	ID         string
	CustomerID string
	VehicleID  string

	Status            ReservationStatus
	DownPaymentStatus DownPaymentStatus

	CheckoutAt time.Time
	CheckinAt  time.Time

	TotalAmount decimal.Decimal
	Notes       string

	// ConvertedAgreementID is nil until the reservation is converted, then
	// permanent. Only the Converter sets it, together with Status.
	ConvertedAgreementID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Convertible reports whether the conversion guard holds. The Converter
// re-checks this against a freshly read row; callers may use it for display.
func (r *Reservation) Convertible() bool {
	return r.Status == ReservationConfirmed &&
		r.DownPaymentStatus == DownPaymentPaid &&
		r.ConvertedAgreementID == nil
}

// =============================================================================
// AGREEMENT - The binding contract created by conversion
// =============================================================================

type AgreementStatus string

const (
	AgreementActive AgreementStatus = "active"
	AgreementClosed AgreementStatus = "closed"
	AgreementVoided AgreementStatus = "voided"
)

// Agreement maps to exactly one originating reservation when created via
// conversion; a reservation maps to zero or one agreements.
type Agreement struct {
	ID            string
	AgreementNo   string
	ReservationID string
	CustomerID    string
	VehicleID     string

	CheckoutAt time.Time
	CheckinAt  time.Time

	TotalAmount decimal.Decimal
	Notes       string
	Status      AgreementStatus

	CreatedAt time.Time
}

// AgreementLine mirrors the reservation's vehicle and date range. It is a
// best-effort secondary artifact: its insert failing does not roll back the
// agreement.
type AgreementLine struct {
	ID          string
	AgreementID string
	VehicleID   string

	CheckoutAt time.Time
	CheckinAt  time.Time

	NetPrice   decimal.Decimal
	TotalPrice decimal.Decimal
}
