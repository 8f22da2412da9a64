package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func completed(b *Booking, amount string, at time.Time) Payment {
	return Payment{
		ID:        uuid.New(),
		BookingID: b.ID,
		Amount:    dec(amount),
		Status:    PaymentCompleted,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func assertAmounts(t *testing.T, b *Booking, advance, remaining string) {
	t.Helper()
	assert.True(t, b.AdvanceAmount.Equal(dec(advance)), "advance = %s, want %s", b.AdvanceAmount, advance)
	assert.True(t, b.RemainingAmount.Equal(dec(remaining)), "remaining = %s, want %s", b.RemainingAmount, remaining)
	assert.True(t, b.RemainingAmount.Equal(b.TotalAmount.Sub(b.AdvanceAmount)))
}

func TestNewBooking(t *testing.T) {
	b := NewBooking(uuid.New(), dec("199"), t0)

	assert.Equal(t, BookingPending, b.Status)
	assert.Equal(t, BookingPaymentPending, b.PaymentStatus)
	assert.Equal(t, DefaultLocation, b.Location)
	assertAmounts(t, b, "0", "199")
	assert.Equal(t, t0, b.UpdatedAt)
}

func TestReconcile_AdvancePayment(t *testing.T) {
	b := NewBooking(uuid.New(), dec("199"), t0)
	p := completed(b, "59.70", t0.Add(time.Minute))

	b.Reconcile(EventPaymentCompleted, []Payment{p}, t0.Add(time.Minute))

	assert.Equal(t, BookingConfirmed, b.Status)
	assert.Equal(t, BookingPaymentPartial, b.PaymentStatus)
	assertAmounts(t, b, "59.70", "139.30")
	assert.Equal(t, []uuid.UUID{p.ID}, b.PaymentIDs)
	assert.Equal(t, t0.Add(time.Minute), b.UpdatedAt)
}

func TestReconcile_FullPayment(t *testing.T) {
	b := NewBooking(uuid.New(), dec("199"), t0)
	p := completed(b, "199", t0)

	b.Reconcile(EventPaymentCompleted, []Payment{p}, t0)

	assert.Equal(t, BookingConfirmed, b.Status)
	assert.Equal(t, BookingPaymentPaid, b.PaymentStatus)
	assertAmounts(t, b, "199", "0")
}

func TestReconcile_SumsAllCompletedPayments(t *testing.T) {
	b := NewBooking(uuid.New(), dec("199"), t0)
	first := completed(b, "59.70", t0)
	second := completed(b, "139.30", t0.Add(time.Hour))

	b.Reconcile(EventPaymentCompleted, []Payment{first}, t0)
	b.Reconcile(EventPaymentCompleted, []Payment{first, second}, t0.Add(time.Hour))

	assert.Equal(t, BookingPaymentPaid, b.PaymentStatus)
	assertAmounts(t, b, "199", "0")
	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, b.PaymentIDs)
}

func TestReconcile_FailedAttemptKeepsAmounts(t *testing.T) {
	t.Run("nothing collected rolls back confirmation", func(t *testing.T) {
		b := NewBooking(uuid.New(), dec("199"), t0)
		b.SetStatus(BookingConfirmed, t0)
		failed := Payment{ID: uuid.New(), BookingID: b.ID, Amount: dec("59.70"), Status: PaymentFailed}

		b.Reconcile(EventPaymentFailed, []Payment{failed}, t0)

		assert.Equal(t, BookingPending, b.Status)
		assert.Equal(t, BookingPaymentPending, b.PaymentStatus)
		assertAmounts(t, b, "0", "199")
	})

	t.Run("earlier completed payment survives", func(t *testing.T) {
		b := NewBooking(uuid.New(), dec("199"), t0)
		ok := completed(b, "59.70", t0)
		b.Reconcile(EventPaymentCompleted, []Payment{ok}, t0)
		failed := Payment{ID: uuid.New(), BookingID: b.ID, Amount: dec("139.30"), Status: PaymentFailed}

		b.Reconcile(EventPaymentFailed, []Payment{ok, failed}, t0.Add(time.Minute))

		assert.Equal(t, BookingConfirmed, b.Status)
		assert.Equal(t, BookingPaymentPartial, b.PaymentStatus)
		assertAmounts(t, b, "59.70", "139.30")
	})
}

func TestReconcile_Refund(t *testing.T) {
	b := NewBooking(uuid.New(), dec("499"), t0)
	p := completed(b, "149.70", t0)
	b.Reconcile(EventPaymentCompleted, []Payment{p}, t0)

	require.NoError(t, p.Refund(decimal.Zero, "client cancelled", t0.Add(time.Hour)))
	b.Reconcile(EventPaymentRefunded, []Payment{p}, t0.Add(time.Hour))

	assert.Equal(t, BookingCancelled, b.Status)
	assert.Equal(t, BookingPaymentRefunded, b.PaymentStatus)
	assertAmounts(t, b, "0", "499")
}

func TestReconcile_PartialRefundKeepsRetainedAmount(t *testing.T) {
	b := NewBooking(uuid.New(), dec("199"), t0)
	p := completed(b, "199", t0)

	require.NoError(t, p.Refund(dec("99"), "", t0))
	b.Reconcile(EventPaymentRefunded, []Payment{p}, t0)

	assert.Equal(t, BookingCancelled, b.Status)
	assert.Equal(t, BookingPaymentPartial, b.PaymentStatus)
	assertAmounts(t, b, "100", "99")
}

func TestAttachPayment_IgnoresDuplicates(t *testing.T) {
	b := NewBooking(uuid.New(), dec("199"), t0)
	id := uuid.New()

	assert.True(t, b.AttachPayment(id))
	assert.False(t, b.AttachPayment(id))
	assert.Len(t, b.PaymentIDs, 1)
}

func TestBookingStatusValid(t *testing.T) {
	assert.True(t, BookingCompleted.Valid())
	assert.False(t, BookingStatus("archived").Valid())
}
