package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"studio-pro/internal/metrics"
	"studio-pro/internal/repo"
	"studio-pro/internal/service"
)

// ReconciliationWorker repairs bookings that lag behind their ledger: the
// process died between the ledger write and the booking update, or the
// booking update failed and was only logged.
type ReconciliationWorker struct {
	bookingRepo repo.BookingRepo
	paymentRepo repo.PaymentRepo
	reconciler  service.Reconciler
	locker      Locker
	interval    time.Duration
	grace       time.Duration
	batchSize   int
	log         logrus.FieldLogger
}

type Settings struct {
	Interval  time.Duration
	Grace     time.Duration
	BatchSize int
}

func NewReconciliationWorker(
	bookingRepo repo.BookingRepo,
	paymentRepo repo.PaymentRepo,
	reconciler service.Reconciler,
	locker Locker,
	settings Settings,
	log logrus.FieldLogger,
) *ReconciliationWorker {
	if locker == nil {
		locker = LocalLocker{}
	}
	if settings.BatchSize <= 0 {
		settings.BatchSize = 100
	}
	return &ReconciliationWorker{
		bookingRepo: bookingRepo,
		paymentRepo: paymentRepo,
		reconciler:  reconciler,
		locker:      locker,
		interval:    settings.Interval,
		grace:       settings.Grace,
		batchSize:   settings.BatchSize,
		log:         log.WithField("component", "reconciliation"),
	}
}

func (rw *ReconciliationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.log.WithField("interval", rw.interval).Info("reconciliation worker started")

	for {
		select {
		case <-ctx.Done():
			rw.log.Info("reconciliation worker stopped")
			return
		case <-ticker.C:
			if _, err := rw.Sweep(ctx); err != nil {
				rw.log.WithError(err).Error("reconciliation sweep failed")
			}
		}
	}
}

// Sweep runs one pass and returns how many bookings were repaired.
func (rw *ReconciliationWorker) Sweep(ctx context.Context) (int, error) {
	release, ok, err := rw.locker.TryLock(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		rw.log.Debug("lease held elsewhere, skipping sweep")
		return 0, nil
	}
	defer release()

	stale, err := rw.bookingRepo.FindStaleBookings(ctx, rw.grace, rw.batchSize)
	if err != nil {
		return 0, err
	}
	if len(stale) > 0 {
		rw.log.WithField("count", len(stale)).Warn("found bookings behind their ledger")
	}

	repaired := 0
	for _, b := range stale {
		fixed, err := rw.reconciler.Resync(ctx, b.ID)
		if err != nil {
			// Leave it for the next sweep.
			rw.log.WithError(err).WithField("booking_id", b.ID).Error("resync failed")
			continue
		}
		repaired++
		metrics.IncReconcileRepaired()
		rw.log.WithFields(logrus.Fields{
			"booking_id":     b.ID,
			"status":         fixed.Status,
			"payment_status": fixed.PaymentStatus,
			"was_status":     b.Status,
			"was_payment":    b.PaymentStatus,
		}).Info("booking repaired from ledger")
	}

	orphans, err := rw.paymentRepo.CountOrphans(ctx)
	if err != nil {
		return repaired, err
	}
	metrics.SetOrphanPayments(orphans)
	if orphans > 0 {
		rw.log.WithField("count", orphans).Warn("ledger has payments for deleted bookings")
	}
	return repaired, nil
}
