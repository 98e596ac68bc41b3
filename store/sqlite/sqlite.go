/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements rental.ConversionStore, rental.AgreementSequence, and the
  catalog record stores using SQLite. In production the same patterns apply
  to PostgreSQL - only minor SQL dialect differences.

THE CONDITIONAL CONVERSION WRITE:
  MarkConverted is a single UPDATE guarded by
  converted_agreement_id IS NULL, with the rows-affected count deciding the
  winner. Two concurrent converters cannot both pass: SQLite serializes the
  writes and exactly one UPDATE matches the row.

KEY TABLES:
  reservations:     Source bookings; converted_agreement_id set at most once
  agreements:       Binding contracts created by conversion
  agreement_lines:  Best-effort secondary artifacts
  agreement_seq:    Single-row monotonic counter for agreement numbers
  price_lists:      Catalog configs stored as JSON
  misc_charges:     Ancillary charge catalog

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

USAGE:
  store, err := sqlite.New("./data/rental.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - rental/store.go: Interface definitions
  - store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/fleetops/rental-engine/pricing"
	"github.com/fleetops/rental-engine/rental"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single shared connection keeps :memory: databases coherent and
	// sidesteps SQLITE_BUSY between pooled writers.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Reservations (source bookings)
	CREATE TABLE IF NOT EXISTS reservations (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		vehicle_id TEXT NOT NULL,
		status TEXT NOT NULL,
		down_payment_status TEXT NOT NULL,
		checkout_at TEXT NOT NULL,
		checkin_at TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		notes TEXT,
		converted_agreement_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reservations_status
		ON reservations(status);
	CREATE INDEX IF NOT EXISTS idx_reservations_converted
		ON reservations(converted_agreement_id)
		WHERE converted_agreement_id IS NOT NULL;

	-- Agreements (one per converted reservation)
	CREATE TABLE IF NOT EXISTS agreements (
		id TEXT PRIMARY KEY,
		agreement_no TEXT NOT NULL UNIQUE,
		reservation_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		vehicle_id TEXT NOT NULL,
		checkout_at TEXT NOT NULL,
		checkin_at TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		notes TEXT,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_agreements_reservation
		ON agreements(reservation_id);

	-- Agreement lines (best-effort secondary artifacts)
	CREATE TABLE IF NOT EXISTS agreement_lines (
		id TEXT PRIMARY KEY,
		agreement_id TEXT NOT NULL,
		vehicle_id TEXT NOT NULL,
		checkout_at TEXT NOT NULL,
		checkin_at TEXT NOT NULL,
		net_price TEXT NOT NULL,
		total_price TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_agreement_lines_agreement
		ON agreement_lines(agreement_id);

	-- Agreement number sequence (single row, monotonic)
	CREATE TABLE IF NOT EXISTS agreement_seq (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		value INTEGER NOT NULL
	);
	INSERT OR IGNORE INTO agreement_seq (id, value) VALUES (1, 0);

	-- Price lists (configs stored as JSON, parsed by the catalog package)
	CREATE TABLE IF NOT EXISTS price_lists (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Misc charge catalog
	CREATE TABLE IF NOT EXISTS misc_charges (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		amount TEXT NOT NULL,
		taxable BOOLEAN NOT NULL,
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RESERVATIONS (rental.ReservationStore)
// =============================================================================

// SaveReservation inserts or replaces a reservation.
func (s *Store) SaveReservation(ctx context.Context, r rental.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	createdAt := now
	if !r.CreatedAt.IsZero() {
		createdAt = r.CreatedAt.UTC().Format(time.RFC3339)
	}

	query := `
		INSERT OR REPLACE INTO reservations
		(id, customer_id, vehicle_id, status, down_payment_status,
		 checkout_at, checkin_at, total_amount, notes, converted_agreement_id,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.CustomerID,
		r.VehicleID,
		string(r.Status),
		string(r.DownPaymentStatus),
		r.CheckoutAt.UTC().Format(time.RFC3339),
		r.CheckinAt.UTC().Format(time.RFC3339),
		r.TotalAmount.String(),
		r.Notes,
		nullString(stringOrEmpty(r.ConvertedAgreementID)),
		createdAt,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save reservation: %w", err)
	}
	return nil
}

// GetReservation returns the reservation or nil when unknown.
func (s *Store) GetReservation(ctx context.Context, id string) (*rental.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, customer_id, vehicle_id, status, down_payment_status,
		       checkout_at, checkin_at, total_amount, notes,
		       converted_agreement_id, created_at, updated_at
		FROM reservations WHERE id = ?
	`
	row := s.db.QueryRowContext(ctx, query, id)
	r, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

// ListReservations returns all reservations ordered by creation time.
func (s *Store) ListReservations(ctx context.Context) ([]rental.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, customer_id, vehicle_id, status, down_payment_status,
		       checkout_at, checkin_at, total_amount, notes,
		       converted_agreement_id, created_at, updated_at
		FROM reservations ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	var out []rental.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// MarkConverted performs the compare-and-swap conversion write. The
// IS NULL guard makes exactly one concurrent caller win.
func (s *Store) MarkConverted(ctx context.Context, reservationID, agreementID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE reservations
		   SET status = ?, converted_agreement_id = ?, updated_at = ?
		 WHERE id = ? AND converted_agreement_id IS NULL
	`
	result, err := s.db.ExecContext(ctx, query,
		string(rental.ReservationCompleted),
		agreementID,
		time.Now().UTC().Format(time.RFC3339),
		reservationID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark reservation converted: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected == 1, nil
}

// =============================================================================
// AGREEMENTS (rental.AgreementStore)
// =============================================================================

// InsertAgreement persists a new agreement. Insert-only: agreements created
// by conversion are never rewritten through this store.
func (s *Store) InsertAgreement(ctx context.Context, a rental.Agreement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO agreements
		(id, agreement_no, reservation_id, customer_id, vehicle_id,
		 checkout_at, checkin_at, total_amount, notes, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, query,
		a.ID,
		a.AgreementNo,
		a.ReservationID,
		a.CustomerID,
		a.VehicleID,
		a.CheckoutAt.UTC().Format(time.RFC3339),
		a.CheckinAt.UTC().Format(time.RFC3339),
		a.TotalAmount.String(),
		a.Notes,
		string(a.Status),
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert agreement: %w", err)
	}
	return nil
}

// GetAgreement returns the agreement or nil when unknown.
func (s *Store) GetAgreement(ctx context.Context, id string) (*rental.Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := agreementSelect + ` WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id)
	a, err := scanAgreement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agreement: %w", err)
	}
	return a, nil
}

// GetAgreementByReservation returns the agreement created from a
// reservation, or nil when none exists.
func (s *Store) GetAgreementByReservation(ctx context.Context, reservationID string) (*rental.Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := agreementSelect + ` WHERE reservation_id = ? ORDER BY created_at ASC LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, reservationID)
	a, err := scanAgreement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agreement by reservation: %w", err)
	}
	return a, nil
}

// ListAgreements returns all agreements ordered by agreement number.
func (s *Store) ListAgreements(ctx context.Context) ([]rental.Agreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, agreementSelect+` ORDER BY agreement_no ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list agreements: %w", err)
	}
	defer rows.Close()

	var out []rental.Agreement
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agreement: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// CountAgreementsByReservation counts agreement rows for a reservation.
func (s *Store) CountAgreementsByReservation(ctx context.Context, reservationID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM agreements WHERE reservation_id = ?`, reservationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count agreements: %w", err)
	}
	return n, nil
}

const agreementSelect = `
	SELECT id, agreement_no, reservation_id, customer_id, vehicle_id,
	       checkout_at, checkin_at, total_amount, notes, status, created_at
	FROM agreements`

// =============================================================================
// AGREEMENT LINES (rental.AgreementLineStore)
// =============================================================================

// InsertAgreementLine persists a line.
func (s *Store) InsertAgreementLine(ctx context.Context, line rental.AgreementLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO agreement_lines
		(id, agreement_id, vehicle_id, checkout_at, checkin_at, net_price, total_price)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		line.ID,
		line.AgreementID,
		line.VehicleID,
		line.CheckoutAt.UTC().Format(time.RFC3339),
		line.CheckinAt.UTC().Format(time.RFC3339),
		line.NetPrice.String(),
		line.TotalPrice.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert agreement line: %w", err)
	}
	return nil
}

// ListAgreementLines returns the lines of an agreement.
func (s *Store) ListAgreementLines(ctx context.Context, agreementID string) ([]rental.AgreementLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, agreement_id, vehicle_id, checkout_at, checkin_at, net_price, total_price
		FROM agreement_lines WHERE agreement_id = ?
	`
	rows, err := s.db.QueryContext(ctx, query, agreementID)
	if err != nil {
		return nil, fmt.Errorf("failed to list agreement lines: %w", err)
	}
	defer rows.Close()

	var out []rental.AgreementLine
	for rows.Next() {
		var line rental.AgreementLine
		var checkout, checkin, netPrice, totalPrice string
		if err := rows.Scan(&line.ID, &line.AgreementID, &line.VehicleID,
			&checkout, &checkin, &netPrice, &totalPrice); err != nil {
			return nil, fmt.Errorf("failed to scan agreement line: %w", err)
		}
		line.CheckoutAt, _ = time.Parse(time.RFC3339, checkout)
		line.CheckinAt, _ = time.Parse(time.RFC3339, checkin)
		line.NetPrice = parseDecimal(netPrice)
		line.TotalPrice = parseDecimal(totalPrice)
		out = append(out, line)
	}
	return out, rows.Err()
}

// =============================================================================
// SEQUENCE (rental.AgreementSequence)
// =============================================================================

// NextAgreementNumber increments the counter row and formats AGR-NNNNNN.
// Unique and monotonic; not gap-free, since callers may discard results.
func (s *Store) NextAgreementNumber(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin sequence transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE agreement_seq SET value = value + 1 WHERE id = 1`); err != nil {
		return "", fmt.Errorf("failed to advance sequence: %w", err)
	}

	var value int64
	if err := tx.QueryRowContext(ctx,
		`SELECT value FROM agreement_seq WHERE id = 1`).Scan(&value); err != nil {
		return "", fmt.Errorf("failed to read sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit sequence: %w", err)
	}
	return fmt.Sprintf("AGR-%06d", value), nil
}

// =============================================================================
// PRICE LISTS
// =============================================================================

// PriceListRecord is the stored form of a price list. ConfigJSON is parsed
// by the catalog package.
type PriceListRecord struct {
	ID         string
	Name       string
	ConfigJSON string
	CreatedAt  time.Time
}

// SavePriceList inserts or replaces a price list config.
func (s *Store) SavePriceList(ctx context.Context, rec PriceListRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO price_lists (id, name, config_json, created_at)
		VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.ConfigJSON, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save price list: %w", err)
	}
	return nil
}

// GetPriceList returns the record or nil when unknown.
func (s *Store) GetPriceList(ctx context.Context, id string) (*PriceListRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rec PriceListRecord
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, config_json, created_at FROM price_lists WHERE id = ?`, id).
		Scan(&rec.ID, &rec.Name, &rec.ConfigJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get price list: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &rec, nil
}

// ListPriceLists returns all price list records.
func (s *Store) ListPriceLists(ctx context.Context) ([]PriceListRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, config_json, created_at FROM price_lists ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list price lists: %w", err)
	}
	defer rows.Close()

	var out []PriceListRecord
	for rows.Next() {
		var rec PriceListRecord
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.ConfigJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan price list: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// =============================================================================
// MISC CHARGES
// =============================================================================

// SaveMiscCharge inserts or replaces a catalog charge.
func (s *Store) SaveMiscCharge(ctx context.Context, c pricing.MiscCharge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO misc_charges (id, name, amount, taxable, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Amount.String(), c.Taxable, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save misc charge: %w", err)
	}
	return nil
}

// ListMiscCharges returns the full charge catalog.
func (s *Store) ListMiscCharges(ctx context.Context) ([]pricing.MiscCharge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, amount, taxable FROM misc_charges ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list misc charges: %w", err)
	}
	defer rows.Close()

	var out []pricing.MiscCharge
	for rows.Next() {
		var c pricing.MiscCharge
		var amount string
		if err := rows.Scan(&c.ID, &c.Name, &amount, &c.Taxable); err != nil {
			return nil, fmt.Errorf("failed to scan misc charge: %w", err)
		}
		c.Amount = parseDecimal(amount)
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*rental.Reservation, error) {
	var r rental.Reservation
	var status, downPayment, checkout, checkin, totalAmount, createdAt, updatedAt string
	var notes, convertedID sql.NullString

	err := row.Scan(&r.ID, &r.CustomerID, &r.VehicleID, &status, &downPayment,
		&checkout, &checkin, &totalAmount, &notes, &convertedID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	r.Status = rental.ReservationStatus(status)
	r.DownPaymentStatus = rental.DownPaymentStatus(downPayment)
	r.CheckoutAt, _ = time.Parse(time.RFC3339, checkout)
	r.CheckinAt, _ = time.Parse(time.RFC3339, checkin)
	r.TotalAmount = parseDecimal(totalAmount)
	r.Notes = notes.String
	if convertedID.Valid {
		id := convertedID.String
		r.ConvertedAgreementID = &id
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &r, nil
}

func scanAgreement(row rowScanner) (*rental.Agreement, error) {
	var a rental.Agreement
	var checkout, checkin, totalAmount, status, createdAt string
	var notes sql.NullString

	err := row.Scan(&a.ID, &a.AgreementNo, &a.ReservationID, &a.CustomerID, &a.VehicleID,
		&checkout, &checkin, &totalAmount, &notes, &status, &createdAt)
	if err != nil {
		return nil, err
	}

	a.CheckoutAt, _ = time.Parse(time.RFC3339, checkout)
	a.CheckinAt, _ = time.Parse(time.RFC3339, checkin)
	a.TotalAmount = parseDecimal(totalAmount)
	a.Notes = notes.String
	a.Status = rental.AgreementStatus(status)
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &a, nil
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
