package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentCancelled PaymentStatus = "cancelled"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded, PaymentCancelled:
		return true
	}
	return false
}

// statusMoves lists the manual changes allowed from each status. Completed
// entries leave only through Refund; refunded and cancelled ones are final.
var statusMoves = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentCompleted, PaymentFailed, PaymentCancelled},
	PaymentFailed:  {PaymentCompleted, PaymentCancelled},
}

type PaymentMethod string

const (
	MethodCard   PaymentMethod = "card"
	MethodPayPal PaymentMethod = "paypal"
	MethodApple  PaymentMethod = "apple"
	MethodGoogle PaymentMethod = "google"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodPayPal, MethodApple, MethodGoogle:
		return true
	}
	return false
}

const (
	DefaultCurrency          = "USD"
	DefaultAdvancePercentage = 30
)

// CardInfo is the non-sensitive part of a card kept on the ledger.
type CardInfo struct {
	Last4          string `json:"last4"`
	CardType       string `json:"cardType"`
	CardholderName string `json:"cardholderName"`
}

// Payment is one ledger entry. Completed entries change only through Refund.
type Payment struct {
	ID                 uuid.UUID           `json:"id"`
	BookingID          uuid.UUID           `json:"bookingId"`
	UserID             uuid.UUID           `json:"userId"`
	ProcessorPaymentID string              `json:"paymentId"`
	TransactionID      string              `json:"transactionId"`
	Amount             decimal.Decimal     `json:"amount"`
	Currency           string              `json:"currency"`
	Method             PaymentMethod       `json:"method"`
	Status             PaymentStatus       `json:"status"`
	Description        string              `json:"description"`
	Card               *CardInfo           `json:"cardDetails,omitempty"`
	IsAdvancePayment   bool                `json:"isAdvancePayment"`
	AdvancePercentage  int                 `json:"advancePercentage"`
	TotalBookingAmount decimal.Decimal     `json:"totalBookingAmount"`
	RemainingAmount    decimal.Decimal     `json:"remainingAmount"`
	FailureReason      string              `json:"failureReason,omitempty"`
	RefundReason       string              `json:"refundReason,omitempty"`
	RefundAmount       decimal.NullDecimal `json:"refundAmount"`
	RefundedAt         *time.Time          `json:"refundedAt,omitempty"`
	ProcessedAt        time.Time           `json:"processedAt"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

// Refund moves a completed payment to refunded. A zero amount means a full
// refund; any other amount must still be at least one cent once rounded.
// The payment is left untouched when the transition is not allowed.
func (p *Payment) Refund(amount decimal.Decimal, reason string, now time.Time) error {
	if p.Status != PaymentCompleted {
		return Errorf(ErrInvalidRefundState, "payment %s is %s", p.ID, p.Status)
	}
	if amount.IsZero() {
		amount = p.Amount
	}
	amount = Round(amount)
	if !amount.IsPositive() || amount.GreaterThan(p.Amount) {
		return Errorf(ErrValidation, "refund amount %s must be between 0.01 and %s", amount.StringFixed(2), p.Amount.StringFixed(2))
	}

	p.Status = PaymentRefunded
	p.RefundAmount = decimal.NewNullDecimal(amount)
	p.RefundReason = reason
	p.RefundedAt = &now
	p.UpdatedAt = now
	return nil
}

// SetStatus is the manual (admin) status change, for settling attempts the
// processor left open or that were captured outside the simulator.
func (p *Payment) SetStatus(to PaymentStatus, failureReason string, now time.Time) error {
	if !to.Valid() {
		return Errorf(ErrValidation, "unknown payment status %q", to)
	}
	if !slices.Contains(statusMoves[p.Status], to) {
		return Errorf(ErrInvalidTransition, "payment %s cannot move from %s to %s", p.ID, p.Status, to)
	}

	switch to {
	case PaymentCompleted:
		p.FailureReason = ""
		p.RemainingAmount = decimal.Max(Round(p.RemainingAmount.Sub(p.Amount)), decimal.Zero)
	case PaymentFailed:
		p.FailureReason = failureReason
		if p.FailureReason == "" {
			p.FailureReason = "Marked failed by admin"
		}
	case PaymentCancelled:
		if failureReason != "" {
			p.FailureReason = failureReason
		}
	}
	p.Status = to
	p.UpdatedAt = now
	return nil
}

// Retained is the part of the payment the studio still holds.
func (p *Payment) Retained() decimal.Decimal {
	switch p.Status {
	case PaymentCompleted:
		return p.Amount
	case PaymentRefunded:
		if p.RefundAmount.Valid {
			return p.Amount.Sub(p.RefundAmount.Decimal)
		}
	}
	return decimal.Zero
}

type PaymentEvent string

const (
	EventPaymentCompleted PaymentEvent = "payment.completed"
	EventPaymentFailed    PaymentEvent = "payment.failed"
	EventPaymentRefunded  PaymentEvent = "payment.refunded"
)

// EventFor maps a ledger entry to the event that produced its current state.
func EventFor(p Payment) PaymentEvent {
	switch p.Status {
	case PaymentCompleted:
		return EventPaymentCompleted
	case PaymentRefunded:
		return EventPaymentRefunded
	default:
		return EventPaymentFailed
	}
}

// LatestEvent returns the event of the most recently touched ledger entry.
func LatestEvent(ledger []Payment) (PaymentEvent, bool) {
	if len(ledger) == 0 {
		return "", false
	}
	latest := ledger[0]
	for _, p := range ledger[1:] {
		if !p.UpdatedAt.Before(latest.UpdatedAt) {
			latest = p
		}
	}
	return EventFor(latest), true
}

// Settlement summarises what a ledger has collected.
type Settlement struct {
	Collected decimal.Decimal
	Refunded  decimal.Decimal
	HasRefund bool
}

func Settle(ledger []Payment) Settlement {
	s := Settlement{Collected: decimal.Zero, Refunded: decimal.Zero}
	for i := range ledger {
		p := &ledger[i]
		s.Collected = s.Collected.Add(p.Retained())
		if p.Status == PaymentRefunded {
			s.HasRefund = true
			if p.RefundAmount.Valid {
				s.Refunded = s.Refunded.Add(p.RefundAmount.Decimal)
			}
		}
	}
	s.Collected = Round(s.Collected)
	return s
}

// Status derives the booking payment status against the booking total.
func (s Settlement) Status(total decimal.Decimal) BookingPaymentStatus {
	switch {
	case !s.Collected.IsPositive():
		if s.HasRefund {
			return BookingPaymentRefunded
		}
		return BookingPaymentPending
	case s.Collected.GreaterThanOrEqual(total):
		return BookingPaymentPaid
	default:
		return BookingPaymentPartial
	}
}

type PaymentFilter struct {
	BookingID uuid.UUID
	Status    PaymentStatus
	Method    PaymentMethod
	Limit     int
	Offset    int
}

type PaymentStats struct {
	TotalPayments     int64           `json:"totalPayments"`
	CompletedPayments int64           `json:"completedPayments"`
	TotalRevenue      decimal.Decimal `json:"totalRevenue"`
	PendingAmount     decimal.Decimal `json:"pendingAmount"`
}

type Breakdown struct {
	Key         string          `json:"_id"`
	Count       int64           `json:"count"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

type DailyRevenue struct {
	Day     string          `json:"day"`
	Revenue decimal.Decimal `json:"revenue"`
	Count   int64           `json:"count"`
}

type PaymentAnalytics struct {
	StatusBreakdown []Breakdown    `json:"statusBreakdown"`
	MethodBreakdown []Breakdown    `json:"methodBreakdown"`
	DailyRevenue    []DailyRevenue `json:"dailyRevenue"`
}
