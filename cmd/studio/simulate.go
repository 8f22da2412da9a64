package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"studio-pro/internal/domain"
	"studio-pro/internal/infrastructure/payment"
	"studio-pro/internal/service"
	"studio-pro/internal/worker"
)

var (
	simulateCount       int
	simulateFailureRate float64
	simulateFast        bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Book sessions, pay their advances and print what was stored",
	Long: `Run a booking and payment simulation against the configured database.

Each round creates a booking, pays the advance through the processor
simulator and reads the booking back, then a single reconciliation sweep
repairs anything left behind.

Examples:
  studio simulate --count 20
  studio simulate --failure-rate 0.5 --fast`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().IntVarP(&simulateCount, "count", "n", 20, "number of bookings to create")
	simulateCmd.Flags().Float64Var(&simulateFailureRate, "failure-rate", -1, "override the processor decline probability")
	simulateCmd.Flags().BoolVar(&simulateFast, "fast", false, "skip the processor latency")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var opts []payment.Option
	if simulateFailureRate >= 0 {
		opts = append(opts, payment.WithFailureRate(simulateFailureRate))
	}
	if simulateFast {
		opts = append(opts, payment.WithLatency(0, 0))
	}

	a, err := newApp(ctx, opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	categories := []string{"portrait", "event", "wedding"}
	slots := []string{"morning", "afternoon", "evening"}
	methods := []domain.PaymentMethod{domain.MethodCard, domain.MethodPayPal, domain.MethodApple, domain.MethodGoogle}

	fmt.Printf("--- STARTING SIMULATION (%d BOOKINGS) ---\n", simulateCount)
	for i := 0; i < simulateCount; i++ {
		booking, err := a.bookings.CreateBooking(ctx, service.CreateBookingRequest{
			Name:     fmt.Sprintf("Guest %d", i+1),
			Email:    fmt.Sprintf("guest%d@example.com", i+1),
			Phone:    "+1 555 010 0000",
			Category: categories[rand.IntN(len(categories))],
			Date:     time.Now().AddDate(0, 0, 7+rand.IntN(60)).Truncate(24 * time.Hour),
			TimeSlot: slots[rand.IntN(len(slots))],
		})
		if err != nil {
			a.log.WithError(err).Error("create booking failed")
			continue
		}

		quote := a.bookings.AdvanceQuote(booking.TotalAmount)
		method := methods[rand.IntN(len(methods))]
		req := service.ProcessPaymentRequest{
			BookingID: booking.ID,
			Amount:    quote.Advance,
			Method:    method,
		}
		if method == domain.MethodCard {
			req.Card = &payment.CardDetails{Number: "4242 4242 4242 4242", Name: booking.Name, Expiry: "12/30", CVV: "123"}
		}

		fmt.Printf("[%d] %s %s advance %s via %s ... ", i+1, booking.ID, booking.Category, quote.Advance.StringFixed(2), method)
		_, err = a.payments.ProcessPayment(ctx, req)
		var perr *domain.PaymentError
		switch {
		case errors.As(err, &perr):
			fmt.Printf("DECLINED: %s\n", perr.Reason)
		case err != nil:
			fmt.Printf("ERROR: %v\n", err)
		default:
			fmt.Printf("PAID\n")
		}

		printBooking(ctx, a, booking.ID)
		fmt.Println("---------------------------------------------------")
	}

	w := worker.NewReconciliationWorker(a.bookingRepo, a.paymentRepo, a.reconciler, worker.LocalLocker{}, worker.Settings{
		Interval:  time.Second,
		Grace:     0,
		BatchSize: simulateCount,
	}, a.log)
	repaired, err := w.Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("--- RECONCILIATION: %d bookings repaired ---\n", repaired)
	return nil
}

func printBooking(ctx context.Context, a *app, id uuid.UUID) {
	fresh, err := a.bookings.GetBooking(ctx, id)
	if err != nil {
		fmt.Printf("    -> DB read failed: %v\n", err)
		return
	}
	fmt.Printf("    -> DB Status: %s / %s  advance %s  remaining %s  payments %d\n",
		fresh.Status, fresh.PaymentStatus,
		fresh.AdvanceAmount.StringFixed(2), fresh.RemainingAmount.StringFixed(2),
		len(fresh.PaymentIDs))
}
