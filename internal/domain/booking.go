package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

type BookingPaymentStatus string

const (
	BookingPaymentPending  BookingPaymentStatus = "pending"
	BookingPaymentPartial  BookingPaymentStatus = "partial"
	BookingPaymentPaid     BookingPaymentStatus = "paid"
	BookingPaymentRefunded BookingPaymentStatus = "refunded"
)

// Category is the kind of photography session. The set of known categories
// is owned by the pricing table.
type Category string

const (
	CategoryPortrait Category = "portrait"
	CategoryEvent    Category = "event"
	CategoryWedding  Category = "wedding"
)

type TimeSlot string

const (
	SlotMorning   TimeSlot = "morning"
	SlotAfternoon TimeSlot = "afternoon"
	SlotEvening   TimeSlot = "evening"
)

const DefaultLocation = "Studio"

type Booking struct {
	ID              uuid.UUID            `json:"id"`
	UserID          uuid.UUID            `json:"userId"`
	Name            string               `json:"name"`
	Email           string               `json:"email"`
	Phone           string               `json:"phone"`
	Category        Category             `json:"category"`
	Date            time.Time            `json:"date"`
	TimeSlot        TimeSlot             `json:"timeSlot"`
	Location        string               `json:"location"`
	Note            string               `json:"note,omitempty"`
	Status          BookingStatus        `json:"status"`
	PaymentStatus   BookingPaymentStatus `json:"paymentStatus"`
	TotalAmount     decimal.Decimal      `json:"totalAmount"`
	AdvanceAmount   decimal.Decimal      `json:"advanceAmount"`
	RemainingAmount decimal.Decimal      `json:"remainingAmount"`
	PaymentIDs      []uuid.UUID          `json:"payments"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

// NewBooking returns a pending booking priced at total.
func NewBooking(id uuid.UUID, total decimal.Decimal, now time.Time) *Booking {
	b := &Booking{
		ID:            id,
		Status:        BookingPending,
		PaymentStatus: BookingPaymentPending,
		TotalAmount:   Round(total),
		AdvanceAmount: decimal.Zero,
		Location:      DefaultLocation,
		PaymentIDs:    []uuid.UUID{},
		CreatedAt:     now,
	}
	b.touch(now)
	return b
}

// touch recomputes the derived remaining amount and bumps UpdatedAt.
// Every mutation of a booking goes through here.
func (b *Booking) touch(now time.Time) {
	b.RemainingAmount = Round(b.TotalAmount.Sub(b.AdvanceAmount))
	b.UpdatedAt = now
}

// AttachPayment records a payment reference, keeping insertion order and
// ignoring ids already present.
func (b *Booking) AttachPayment(id uuid.UUID) bool {
	if slices.Contains(b.PaymentIDs, id) {
		return false
	}
	b.PaymentIDs = append(b.PaymentIDs, id)
	return true
}

// SetStatus is the manual (admin) status change.
func (b *Booking) SetStatus(status BookingStatus, now time.Time) {
	b.Status = status
	b.touch(now)
}

// Reconcile applies a payment event to the booking. Amounts and the payment
// status are always re-derived from the whole ledger; the event only decides
// how the booking status moves.
func (b *Booking) Reconcile(event PaymentEvent, ledger []Payment, now time.Time) {
	for _, p := range ledger {
		if p.BookingID == b.ID {
			b.AttachPayment(p.ID)
		}
	}

	s := Settle(ledger)
	b.AdvanceAmount = decimal.Min(s.Collected, b.TotalAmount)
	if b.AdvanceAmount.IsNegative() {
		b.AdvanceAmount = decimal.Zero
	}
	b.PaymentStatus = s.Status(b.TotalAmount)

	switch event {
	case EventPaymentCompleted:
		if b.Status == BookingPending || b.Status == BookingCancelled {
			b.Status = BookingConfirmed
		}
	case EventPaymentFailed:
		if b.Status == BookingConfirmed && b.PaymentStatus == BookingPaymentPending {
			b.Status = BookingPending
		}
	case EventPaymentRefunded:
		b.Status = BookingCancelled
	}

	b.touch(now)
}

// BookingFilter narrows booking listings. Zero values match everything.
type BookingFilter struct {
	Email  string
	UserID uuid.UUID
	Status BookingStatus
	Limit  int
	Offset int
}

// BookingStats counts bookings by lifecycle and sums what they are worth.
// Cancelled bookings are left out of the outstanding balance.
type BookingStats struct {
	Count       int64           `json:"count"`
	Pending     int64           `json:"pending"`
	Confirmed   int64           `json:"confirmed"`
	Completed   int64           `json:"completed"`
	Cancelled   int64           `json:"cancelled"`
	FullyPaid   int64           `json:"fullyPaid"`
	TotalBooked decimal.Decimal `json:"totalBooked"`
	Collected   decimal.Decimal `json:"collected"`
	Outstanding decimal.Decimal `json:"outstanding"`
}
