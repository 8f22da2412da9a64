package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"studio-pro/internal/domain"
	"studio-pro/internal/metrics"
	"studio-pro/internal/repo"
)

// Reconciler keeps a booking consistent with its payment ledger.
type Reconciler interface {
	// Apply reconciles the booking that owns p after p was written to the ledger.
	// A missing booking is logged and skipped; the ledger entry stays.
	Apply(ctx context.Context, event domain.PaymentEvent, p *domain.Payment) (*domain.Booking, error)
	// Resync re-derives a booking from its ledger using the latest event.
	Resync(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error)
}

type reconciler struct {
	bookingRepo repo.BookingRepo
	paymentRepo repo.PaymentRepo
	log         logrus.FieldLogger
	now         func() time.Time
}

func NewReconciler(
	bookingRepo repo.BookingRepo,
	paymentRepo repo.PaymentRepo,
	log logrus.FieldLogger,
	now func() time.Time,
) Reconciler {
	if now == nil {
		now = time.Now
	}
	return &reconciler{
		bookingRepo: bookingRepo,
		paymentRepo: paymentRepo,
		log:         log,
		now:         now,
	}
}

func (r *reconciler) Apply(ctx context.Context, event domain.PaymentEvent, p *domain.Payment) (*domain.Booking, error) {
	log := r.log.WithFields(logrus.Fields{
		"booking_id": p.BookingID,
		"payment_id": p.ID,
		"event":      event,
	})

	booking, err := r.bookingRepo.FindById(ctx, p.BookingID)
	if err != nil {
		log.WithError(err).Warn("booking lookup failed, skipping reconcile")
		metrics.IncReconcileSkipped("lookup_failed")
		return nil, nil
	}
	if booking == nil {
		log.Warn("booking not found, skipping reconcile")
		metrics.IncReconcileSkipped("booking_missing")
		return nil, nil
	}

	ledger, err := r.paymentRepo.FindByBookingId(ctx, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("load ledger for booking %s: %w", booking.ID, err)
	}

	booking.Reconcile(event, ledger, r.now())
	if err := r.bookingRepo.UpdateBooking(ctx, booking); err != nil {
		return nil, fmt.Errorf("update booking %s: %w", booking.ID, err)
	}

	log.WithFields(logrus.Fields{
		"status":         booking.Status,
		"payment_status": booking.PaymentStatus,
		"advance":        booking.AdvanceAmount.StringFixed(2),
		"remaining":      booking.RemainingAmount.StringFixed(2),
	}).Debug("booking reconciled")
	return booking, nil
}

func (r *reconciler) Resync(ctx context.Context, bookingID uuid.UUID) (*domain.Booking, error) {
	booking, err := r.bookingRepo.FindById(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domain.Errorf(domain.ErrBookingNotFound, "%s", bookingID)
	}

	ledger, err := r.paymentRepo.FindByBookingId(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load ledger for booking %s: %w", bookingID, err)
	}
	event, ok := domain.LatestEvent(ledger)
	if !ok {
		return booking, nil
	}

	booking.Reconcile(event, ledger, r.now())
	if err := r.bookingRepo.UpdateBooking(ctx, booking); err != nil {
		return nil, fmt.Errorf("update booking %s: %w", bookingID, err)
	}
	return booking, nil
}
