// Package store provides in-memory implementations of the rental storage
// interfaces, for tests and dev mode.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fleetops/rental-engine/rental"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements rental.ConversionStore and rental.AgreementSequence with
// mutex-guarded maps. MarkConverted performs the compare-and-swap under the
// write lock, matching the row-level atomicity a SQL store provides.
type Memory struct {
	mu           sync.RWMutex
	reservations map[string]rental.Reservation
	agreements   map[string]rental.Agreement
	lines        map[string][]rental.AgreementLine
	sequence     int64
}

func NewMemory() *Memory {
	return &Memory{
		reservations: make(map[string]rental.Reservation),
		agreements:   make(map[string]rental.Agreement),
		lines:        make(map[string][]rental.AgreementLine),
	}
}

// =============================================================================
// RESERVATIONS
// =============================================================================

// SaveReservation inserts or replaces a reservation.
func (m *Memory) SaveReservation(_ context.Context, r rental.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations[r.ID] = r
	return nil
}

func (m *Memory) GetReservation(_ context.Context, id string) (*rental.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, nil
	}
	copied := r
	return &copied, nil
}

func (m *Memory) ListReservations(_ context.Context) ([]rental.Reservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]rental.Reservation, 0, len(m.reservations))
	for _, r := range m.reservations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MarkConverted is the conditional write: it succeeds only while the
// reservation is still unconverted.
func (m *Memory) MarkConverted(_ context.Context, reservationID, agreementID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[reservationID]
	if !ok || r.ConvertedAgreementID != nil {
		return false, nil
	}
	r.Status = rental.ReservationCompleted
	r.ConvertedAgreementID = &agreementID
	m.reservations[reservationID] = r
	return true, nil
}

// =============================================================================
// AGREEMENTS
// =============================================================================

func (m *Memory) InsertAgreement(_ context.Context, a rental.Agreement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.agreements[a.ID]; exists {
		return fmt.Errorf("agreement %s already exists", a.ID)
	}
	m.agreements[a.ID] = a
	return nil
}

func (m *Memory) GetAgreement(_ context.Context, id string) (*rental.Agreement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agreements[id]
	if !ok {
		return nil, nil
	}
	copied := a
	return &copied, nil
}

func (m *Memory) ListAgreements(_ context.Context) ([]rental.Agreement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]rental.Agreement, 0, len(m.agreements))
	for _, a := range m.agreements {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgreementNo < out[j].AgreementNo })
	return out, nil
}

// AgreementCount reports how many agreement rows exist. Test helper for the
// exactly-one-agreement-per-reservation property.
func (m *Memory) AgreementCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.agreements)
}

// =============================================================================
// AGREEMENT LINES
// =============================================================================

func (m *Memory) InsertAgreementLine(_ context.Context, line rental.AgreementLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines[line.AgreementID] = append(m.lines[line.AgreementID], line)
	return nil
}

func (m *Memory) ListAgreementLines(_ context.Context, agreementID string) ([]rental.AgreementLine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]rental.AgreementLine, len(m.lines[agreementID]))
	copy(out, m.lines[agreementID])
	return out, nil
}

// =============================================================================
// SEQUENCE
// =============================================================================

// NextAgreementNumber produces AGR-000001, AGR-000002, ... Unique and
// monotonic, not gap-free once callers start discarding results.
func (m *Memory) NextAgreementNumber(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence++
	return fmt.Sprintf("AGR-%06d", m.sequence), nil
}
