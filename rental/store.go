/*
store.go - Persistence interfaces for the conversion path

PURPOSE:
  Defines the storage boundary the Converter depends on. Implementations:
  - store/sqlite: production SQLite (same patterns apply to PostgreSQL)
  - store: in-memory, for tests and dev mode

THE CONDITIONAL WRITE:
  MarkConverted is the whole concurrency story. It must be a single
  compare-and-swap at the storage layer:

      UPDATE reservations
         SET status = 'completed', converted_agreement_id = ?
       WHERE id = ? AND converted_agreement_id IS NULL

  returning whether a row was affected. Zero rows means another caller won;
  the Converter re-reads and returns the winner's agreement. No
  read-then-write pair anywhere.

SEE ALSO:
  - convert.go: The only consumer of these interfaces
  - store/memory.go, store/sqlite/sqlite.go: Implementations
*/
package rental

import "context"

// =============================================================================
// RESERVATION STORE
// =============================================================================

// ReservationStore reads reservations and performs the conditional
// conversion write.
type ReservationStore interface {
	// GetReservation returns the reservation or nil when the id is unknown.
	GetReservation(ctx context.Context, id string) (*Reservation, error)

	// MarkConverted atomically sets status='completed' and
	// converted_agreement_id=agreementID, but only while
	// converted_agreement_id is still unset. Returns false when another
	// caller already converted the reservation.
	MarkConverted(ctx context.Context, reservationID, agreementID string) (bool, error)
}

// =============================================================================
// AGREEMENT STORES
// =============================================================================

// AgreementStore persists and reads agreements.
type AgreementStore interface {
	InsertAgreement(ctx context.Context, a Agreement) error

	// GetAgreement returns the agreement or nil when the id is unknown.
	GetAgreement(ctx context.Context, id string) (*Agreement, error)
}

// AgreementLineStore persists agreement lines. Insert failure is non-fatal
// to the conversion; the Converter reports it as a secondary warning.
type AgreementLineStore interface {
	InsertAgreementLine(ctx context.Context, line AgreementLine) error
}

// =============================================================================
// SEQUENCE - External agreement number source
// =============================================================================

// AgreementSequence produces globally unique agreement numbers. Numbers must
// be unique and monotonic but need not be gap-free: a successful call whose
// result is later discarded wastes a number, which is acceptable.
type AgreementSequence interface {
	NextAgreementNumber(ctx context.Context) (string, error)
}

// ConversionStore is the full set of capabilities the Converter needs.
// Concrete stores implement all of it; tests may compose pieces.
type ConversionStore interface {
	ReservationStore
	AgreementStore
	AgreementLineStore
}
