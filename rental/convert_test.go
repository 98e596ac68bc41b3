package rental_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/rental-engine/rental"
	"github.com/fleetops/rental-engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestConverter(t *testing.T) (*rental.Converter, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return rental.NewConverter(mem, mem, zerolog.Nop()), mem
}

func confirmedReservation(id string) rental.Reservation {
	checkout := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)
	return rental.Reservation{
		ID:                id,
		CustomerID:        "cust-1",
		VehicleID:         "veh-7",
		Status:            rental.ReservationConfirmed,
		DownPaymentStatus: rental.DownPaymentPaid,
		CheckoutAt:        checkout,
		CheckinAt:         checkout.AddDate(0, 0, 3),
		TotalAmount:       decimal.RequireFromString("846.25"),
		Notes:             "airport pickup",
	}
}

// =============================================================================
// HAPPY PATH
// =============================================================================

func TestConvert_CreatesAgreementAndLine(t *testing.T) {
	conv, mem := newTestConverter(t)
	ctx := context.Background()

	res := confirmedReservation("res-1")
	require.NoError(t, mem.SaveReservation(ctx, res))

	result, err := conv.Convert(ctx, "res-1")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "res-1", result.ReservationID)
	assert.Equal(t, "AGR-000001", result.AgreementNo)
	assert.Equal(t, rental.AgreementActive, result.Status)
	assert.False(t, result.AlreadyConverted)
	assert.NoError(t, result.LineWarning)

	// Agreement copies the reservation fields and trusts its total.
	agreement, err := mem.GetAgreement(ctx, result.AgreementID)
	require.NoError(t, err)
	require.NotNil(t, agreement)
	assert.Equal(t, res.CustomerID, agreement.CustomerID)
	assert.Equal(t, res.VehicleID, agreement.VehicleID)
	assert.Equal(t, res.Notes, agreement.Notes)
	assert.True(t, agreement.TotalAmount.Equal(res.TotalAmount))

	// Reservation is completed and permanently linked.
	after, err := mem.GetReservation(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, rental.ReservationCompleted, after.Status)
	require.NotNil(t, after.ConvertedAgreementID)
	assert.Equal(t, result.AgreementID, *after.ConvertedAgreementID)

	// One line mirroring the reservation.
	lines, err := mem.ListAgreementLines(ctx, result.AgreementID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, res.VehicleID, lines[0].VehicleID)
	assert.True(t, lines[0].NetPrice.Equal(res.TotalAmount))
}

// =============================================================================
// GUARD ENFORCEMENT
// =============================================================================

func TestConvert_NotFound(t *testing.T) {
	conv, _ := newTestConverter(t)

	_, err := conv.Convert(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, rental.IsNotFound(err))
	var nf *rental.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestConvert_RejectsUnconfirmedReservation(t *testing.T) {
	conv, mem := newTestConverter(t)
	ctx := context.Background()

	res := confirmedReservation("res-pending")
	res.Status = rental.ReservationPending
	require.NoError(t, mem.SaveReservation(ctx, res))

	_, err := conv.Convert(ctx, "res-pending")

	require.Error(t, err)
	assert.ErrorIs(t, err, rental.ErrReservationNotConfirmed)
	assert.True(t, rental.IsClientError(err))
	assert.Equal(t, 0, mem.AgreementCount(), "no agreement should be created")
}

func TestConvert_RejectsUnpaidDownPayment(t *testing.T) {
	// Checked independently of the status guard: the reservation is
	// confirmed but the down payment is still pending.

	conv, mem := newTestConverter(t)
	ctx := context.Background()

	res := confirmedReservation("res-unpaid")
	res.DownPaymentStatus = rental.DownPaymentPending
	require.NoError(t, mem.SaveReservation(ctx, res))

	_, err := conv.Convert(ctx, "res-unpaid")

	require.Error(t, err)
	assert.ErrorIs(t, err, rental.ErrDownPaymentUnpaid)
	assert.NotErrorIs(t, err, rental.ErrReservationNotConfirmed)
	assert.Equal(t, 0, mem.AgreementCount())
}

// =============================================================================
// IDEMPOTENCY
// =============================================================================

func TestConvert_SecondCallReturnsSameAgreement(t *testing.T) {
	conv, mem := newTestConverter(t)
	ctx := context.Background()

	require.NoError(t, mem.SaveReservation(ctx, confirmedReservation("res-2")))

	first, err := conv.Convert(ctx, "res-2")
	require.NoError(t, err)

	second, err := conv.Convert(ctx, "res-2")
	require.NoError(t, err)

	assert.Equal(t, first.AgreementID, second.AgreementID)
	assert.Equal(t, first.AgreementNo, second.AgreementNo)
	assert.True(t, second.AlreadyConverted)
	assert.Equal(t, 1, mem.AgreementCount(), "exactly one agreement row")
}

// =============================================================================
// CONCURRENCY - The core regression test
// =============================================================================

func TestConvert_ConcurrentCallsCreateOneAgreement(t *testing.T) {
	// GIVEN: Concurrent conversion calls for the same eligible reservation
	// THEN:  The reservation links exactly one agreement and every caller
	//        returns that same agreement identity. Losing callers may leave
	//        unreferenced agreement rows behind; those are accepted waste.

	conv, mem := newTestConverter(t)
	ctx := context.Background()

	require.NoError(t, mem.SaveReservation(ctx, confirmedReservation("res-race")))

	const callers = 8
	results := make([]*rental.ConversionResult, callers)
	errs := make([]error, callers)

	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer done.Done()
			start.Wait()
			results[i], errs[i] = conv.Convert(ctx, "res-race")
		}(i)
	}
	start.Done()
	done.Wait()

	winnerID := ""
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i], "caller %d", i)
		require.NotNil(t, results[i])
		if winnerID == "" {
			winnerID = results[i].AgreementID
		}
		assert.Equal(t, winnerID, results[i].AgreementID, "caller %d must see the winner", i)
	}

	after, err := mem.GetReservation(ctx, "res-race")
	require.NoError(t, err)
	require.NotNil(t, after.ConvertedAgreementID)
	assert.Equal(t, winnerID, *after.ConvertedAgreementID)
}

// =============================================================================
// INFRASTRUCTURE FAILURES
// =============================================================================

// failingSequence simulates a sequence outage.
type failingSequence struct{}

func (failingSequence) NextAgreementNumber(context.Context) (string, error) {
	return "", errors.New("sequence unavailable")
}

func TestConvert_SequenceFailureLeavesNoWrites(t *testing.T) {
	mem := store.NewMemory()
	conv := rental.NewConverter(mem, failingSequence{}, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, mem.SaveReservation(ctx, confirmedReservation("res-seq")))

	_, err := conv.Convert(ctx, "res-seq")

	require.Error(t, err)
	assert.ErrorIs(t, err, rental.ErrNumberGeneration)
	assert.True(t, rental.IsInfrastructure(err))
	assert.Equal(t, 0, mem.AgreementCount())

	after, err := mem.GetReservation(ctx, "res-seq")
	require.NoError(t, err)
	assert.Nil(t, after.ConvertedAgreementID)
	assert.Equal(t, rental.ReservationConfirmed, after.Status)
}

// failingAgreementStore rejects agreement inserts.
type failingAgreementStore struct {
	*store.Memory
}

func (f failingAgreementStore) InsertAgreement(context.Context, rental.Agreement) error {
	return errors.New("disk full")
}

func TestConvert_AgreementInsertFailureLeavesReservationUntouched(t *testing.T) {
	mem := store.NewMemory()
	conv := rental.NewConverter(failingAgreementStore{Memory: mem}, mem, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, mem.SaveReservation(ctx, confirmedReservation("res-insert")))

	_, err := conv.Convert(ctx, "res-insert")

	require.Error(t, err)
	assert.ErrorIs(t, err, rental.ErrAgreementPersistence)

	after, err := mem.GetReservation(ctx, "res-insert")
	require.NoError(t, err)
	assert.Nil(t, after.ConvertedAgreementID, "reservation must not be mutated")
}

// failingLineStore rejects agreement line inserts only.
type failingLineStore struct {
	*store.Memory
}

func (f failingLineStore) InsertAgreementLine(context.Context, rental.AgreementLine) error {
	return errors.New("line table locked")
}

func TestConvert_LineFailureIsNonFatalWarning(t *testing.T) {
	// The agreement line is a best-effort secondary artifact: its failure
	// surfaces as a warning on a successful result, not as an error.

	mem := store.NewMemory()
	conv := rental.NewConverter(failingLineStore{Memory: mem}, mem, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, mem.SaveReservation(ctx, confirmedReservation("res-line")))

	result, err := conv.Convert(ctx, "res-line")

	require.NoError(t, err, "conversion must stand despite line failure")
	require.NotNil(t, result)
	assert.Error(t, result.LineWarning)

	after, err := mem.GetReservation(ctx, "res-line")
	require.NoError(t, err)
	require.NotNil(t, after.ConvertedAgreementID)
	assert.Equal(t, result.AgreementID, *after.ConvertedAgreementID)
	assert.Equal(t, 1, mem.AgreementCount())
}
