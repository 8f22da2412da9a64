package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studio",
			Name:      "bookings_created_total",
			Help:      "Count of bookings created by session category.",
		},
		[]string{"category"},
	)

	paymentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studio",
			Name:      "payments_processed_total",
			Help:      "Count of payment attempts by method and ledger status.",
		},
		[]string{"method", "status"},
	)

	paymentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "studio",
			Name:      "payment_processing_seconds",
			Help:      "Time spent in the payment processor.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	refunds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "studio",
			Name:      "refunds_total",
			Help:      "Count of refunded payments.",
		},
	)

	statusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studio",
			Name:      "payment_status_changes_total",
			Help:      "Manual payment status changes by previous and new status.",
		},
		[]string{"from", "to"},
	)

	reconcileSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studio",
			Name:      "reconciliation_skipped_total",
			Help:      "Ledger writes whose booking could not be reconciled.",
		},
		[]string{"reason"},
	)

	reconcileRepaired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "studio",
			Name:      "reconciliation_repaired_total",
			Help:      "Bookings re-derived from the ledger by the reconciliation worker.",
		},
	)

	orphanPayments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "studio",
			Name:      "orphan_payments",
			Help:      "Ledger entries whose booking no longer exists.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingsCreated,
			paymentsProcessed,
			paymentDuration,
			refunds,
			statusChanges,
			reconcileSkipped,
			reconcileRepaired,
			orphanPayments,
		)
	})
}

func IncBookingCreated(category string) {
	bookingsCreated.WithLabelValues(category).Inc()
}

func ObservePayment(method, status string, took time.Duration) {
	paymentsProcessed.WithLabelValues(method, status).Inc()
	paymentDuration.WithLabelValues(method).Observe(took.Seconds())
}

func IncRefund() {
	refunds.Inc()
}

func IncStatusChange(from, to string) {
	statusChanges.WithLabelValues(from, to).Inc()
}

func IncReconcileSkipped(reason string) {
	reconcileSkipped.WithLabelValues(reason).Inc()
}

func IncReconcileRepaired() {
	reconcileRepaired.Inc()
}

func SetOrphanPayments(n int) {
	orphanPayments.Set(float64(n))
}
