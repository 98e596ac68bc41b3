/*
convert.go - The reservation-to-agreement conversion workflow

PURPOSE:
  Converts a qualifying reservation into a binding agreement exactly once,
  idempotent under retry and safe under concurrent callers.

ALGORITHM:
  1. Read the reservation. Already converted -> return the existing
     agreement (idempotent success, no new side effects).
  2. Re-validate the guard against the freshly read row, failing with a
     distinguishable error per violated condition.
  3. Generate the agreement number (external sequence; never retried
     blindly - a wasted number is acceptable, a double allocation is not).
  4. Insert the agreement (status 'active'), copying customer, vehicle,
     dates, total and notes from the reservation.
  5. Conditionally mark the reservation converted. Zero rows affected means
     a concurrent caller won: re-read and return the winner's agreement.
     Our just-inserted agreement row becomes unreferenced waste; logged.
  6. Insert the first agreement line. Best-effort: failure is logged and
     reported as a secondary warning, never as a conversion failure.

  The line insert runs after the conditional write so a lost race never
  produces orphan lines; externally the outcome is identical to inserting
  it before.

SEE ALSO:
  - store.go: Collaborator interfaces
  - errors.go: Error taxonomy
*/
package rental

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// =============================================================================
// CONVERTER
// =============================================================================

// Converter executes the conversion workflow against the given stores.
type Converter struct {
	store    ConversionStore
	sequence AgreementSequence
	log      zerolog.Logger

	// newID and now are injectable for tests.
	newID func() string
	now   func() time.Time
}

// NewConverter wires a converter. The logger may be zerolog.Nop().
func NewConverter(store ConversionStore, sequence AgreementSequence, log zerolog.Logger) *Converter {
	return &Converter{
		store:    store,
		sequence: sequence,
		log:      log,
		newID:    func() string { return uuid.NewString() },
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ConversionResult is the two-phase outcome: the primary result plus an
// optional warning from the best-effort agreement line insert. Callers may
// retry the line insert or surface a non-blocking warning; they must not
// treat LineWarning as a failed conversion.
type ConversionResult struct {
	AgreementID   string
	AgreementNo   string
	ReservationID string
	Status        AgreementStatus

	// AlreadyConverted is true when this call found the reservation
	// converted (earlier call or concurrent winner) and returned the
	// existing agreement.
	AlreadyConverted bool

	// LineWarning is non-nil when the agreement line insert failed after
	// the agreement was committed.
	LineWarning error
}

// Convert converts the reservation into an agreement. Calling it again for
// the same reservation returns the same agreement identity and performs no
// new writes.
func (c *Converter) Convert(ctx context.Context, reservationID string) (*ConversionResult, error) {
	res, err := c.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("read reservation %s: %w", reservationID, err)
	}
	if res == nil {
		return nil, &NotFoundError{ReservationID: reservationID}
	}

	// Idempotent short-circuit.
	if res.ConvertedAgreementID != nil {
		return c.existingResult(ctx, res)
	}

	if res.Status != ReservationConfirmed {
		return nil, &GuardError{
			ReservationID:     res.ID,
			Status:            res.Status,
			DownPaymentStatus: res.DownPaymentStatus,
			kind:              ErrReservationNotConfirmed,
		}
	}
	if res.DownPaymentStatus != DownPaymentPaid {
		return nil, &GuardError{
			ReservationID:     res.ID,
			Status:            res.Status,
			DownPaymentStatus: res.DownPaymentStatus,
			kind:              ErrDownPaymentUnpaid,
		}
	}

	agreementNo, err := c.sequence.NextAgreementNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNumberGeneration, err)
	}

	agreement := Agreement{
		ID:            c.newID(),
		AgreementNo:   agreementNo,
		ReservationID: res.ID,
		CustomerID:    res.CustomerID,
		VehicleID:     res.VehicleID,
		CheckoutAt:    res.CheckoutAt,
		CheckinAt:     res.CheckinAt,
		TotalAmount:   res.TotalAmount,
		Notes:         res.Notes,
		Status:        AgreementActive,
		CreatedAt:     c.now(),
	}

	if err := c.store.InsertAgreement(ctx, agreement); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAgreementPersistence, err)
	}

	won, err := c.store.MarkConverted(ctx, res.ID, agreement.ID)
	if err != nil {
		return nil, fmt.Errorf("mark reservation %s converted: %w", res.ID, err)
	}
	if !won {
		// Another caller converted first. Our agreement row is now
		// unreferenced; acceptable waste, same as a burned sequence number.
		c.log.Warn().
			Str("reservation_id", res.ID).
			Str("orphan_agreement_id", agreement.ID).
			Msg("lost conversion race, returning winner's agreement")
		return c.winnerResult(ctx, res.ID)
	}

	result := &ConversionResult{
		AgreementID:   agreement.ID,
		AgreementNo:   agreement.AgreementNo,
		ReservationID: res.ID,
		Status:        agreement.Status,
	}

	line := AgreementLine{
		ID:          c.newID(),
		AgreementID: agreement.ID,
		VehicleID:   res.VehicleID,
		CheckoutAt:  res.CheckoutAt,
		CheckinAt:   res.CheckinAt,
		NetPrice:    res.TotalAmount,
		TotalPrice:  res.TotalAmount,
	}
	if err := c.store.InsertAgreementLine(ctx, line); err != nil {
		c.log.Warn().
			Err(err).
			Str("agreement_id", agreement.ID).
			Str("reservation_id", res.ID).
			Msg("agreement line insert failed, conversion stands")
		result.LineWarning = fmt.Errorf("agreement line insert: %w", err)
	}

	return result, nil
}

// existingResult resolves an already-converted reservation to its agreement.
func (c *Converter) existingResult(ctx context.Context, res *Reservation) (*ConversionResult, error) {
	agreement, err := c.store.GetAgreement(ctx, *res.ConvertedAgreementID)
	if err != nil {
		return nil, fmt.Errorf("read agreement %s: %w", *res.ConvertedAgreementID, err)
	}
	if agreement == nil {
		// The back-reference is set but the agreement is missing; the
		// invariant says this cannot happen short of manual data surgery.
		return nil, fmt.Errorf("%w: reservation %s references missing agreement %s",
			ErrAgreementPersistence, res.ID, *res.ConvertedAgreementID)
	}
	return &ConversionResult{
		AgreementID:      agreement.ID,
		AgreementNo:      agreement.AgreementNo,
		ReservationID:    res.ID,
		Status:           agreement.Status,
		AlreadyConverted: true,
	}, nil
}

// winnerResult recovers from a lost conditional update by re-reading the
// reservation and returning whoever converted it. ErrConversionConflict is
// internal only and never escapes this function on the happy path.
func (c *Converter) winnerResult(ctx context.Context, reservationID string) (*ConversionResult, error) {
	res, err := c.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("re-read after conflict: %w", err)
	}
	if res == nil || res.ConvertedAgreementID == nil {
		// Conditional update said converted, re-read disagrees. Surface the
		// conflict rather than loop.
		return nil, fmt.Errorf("%w: reservation %s has no converted agreement on re-read",
			ErrConversionConflict, reservationID)
	}
	return c.existingResult(ctx, res)
}
