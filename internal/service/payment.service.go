package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"studio-pro/internal/domain"
	"studio-pro/internal/infrastructure/payment"
	"studio-pro/internal/metrics"
	"studio-pro/internal/repo"
)

type PaymentService interface {
	// ProcessPayment charges the customer and appends the attempt to the
	// ledger. A declined attempt returns the failed record together with a
	// *domain.PaymentError.
	ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (*domain.Payment, error)
	RefundPayment(ctx context.Context, req RefundRequest) (*domain.Payment, error)
	GetBookingPayments(ctx context.Context, bookingID uuid.UUID) ([]domain.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error)
	PaymentStats(ctx context.Context) (domain.PaymentStats, error)
	PaymentAnalytics(ctx context.Context, from, to *time.Time) (domain.PaymentAnalytics, error)
	// UpdatePaymentStatus is the manual status change; completed payments
	// only change through RefundPayment.
	UpdatePaymentStatus(ctx context.Context, req PaymentStatusRequest) (*domain.Payment, error)
}

type PaymentOptions struct {
	Currency          string
	MaxAmount         decimal.Decimal
	AdvancePercentage int
}

type paymentService struct {
	bookingRepo repo.BookingRepo
	paymentRepo repo.PaymentRepo
	gateway     payment.PaymentGateway
	reconciler  Reconciler
	cards       SavedCardService
	opts        PaymentOptions
	log         logrus.FieldLogger
	now         func() time.Time
}

func NewPaymentService(
	bookingRepo repo.BookingRepo,
	paymentRepo repo.PaymentRepo,
	gateway payment.PaymentGateway,
	reconciler Reconciler,
	cards SavedCardService,
	opts PaymentOptions,
	log logrus.FieldLogger,
	now func() time.Time,
) PaymentService {
	if now == nil {
		now = time.Now
	}
	if opts.Currency == "" {
		opts.Currency = domain.DefaultCurrency
	}
	if opts.AdvancePercentage <= 0 {
		opts.AdvancePercentage = domain.DefaultAdvancePercentage
	}
	if !opts.MaxAmount.IsPositive() {
		opts.MaxAmount = decimal.NewFromInt(10000)
	}
	return &paymentService{
		bookingRepo: bookingRepo,
		paymentRepo: paymentRepo,
		gateway:     gateway,
		reconciler:  reconciler,
		cards:       cards,
		opts:        opts,
		log:         log,
		now:         now,
	}
}

func (s *paymentService) ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (*domain.Payment, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	amount := domain.Round(req.Amount)
	if !amount.IsPositive() || amount.GreaterThan(s.opts.MaxAmount) {
		return nil, domain.Errorf(domain.ErrValidation, "amount must be between 0.01 and %s", s.opts.MaxAmount.StringFixed(2))
	}

	// The customer may go away while the processor is working; the attempt
	// and its ledger entry must still complete.
	ctx = context.WithoutCancel(ctx)

	booking, err := s.bookingRepo.FindById(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domain.Errorf(domain.ErrBookingNotFound, "%s", req.BookingID)
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = s.opts.Currency
	}

	log := s.log.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"method":     req.Method,
		"amount":     amount.StringFixed(2),
	})

	started := time.Now()
	outcome, err := s.gateway.Charge(ctx, payment.ChargeRequest{
		Method:   req.Method,
		Amount:   amount,
		Currency: currency,
		Card:     req.Card,
	})
	if err != nil {
		return nil, domain.Errorf(domain.ErrValidation, "%v", err)
	}

	p := s.newRecord(booking, req, amount, currency, outcome)
	metrics.ObservePayment(string(p.Method), string(p.Status), time.Since(started))

	if err := s.paymentRepo.CreatePayment(ctx, p); err != nil {
		log.WithError(err).Error("failed to record payment attempt")
		return nil, fmt.Errorf("record payment: %w", err)
	}

	if _, err := s.reconciler.Apply(ctx, domain.EventFor(*p), p); err != nil {
		// The ledger entry is durable; the reconciliation worker repairs the booking.
		log.WithError(err).Warn("booking reconcile failed after ledger write")
		metrics.IncReconcileSkipped("update_failed")
	}

	if !outcome.Approved {
		log.WithFields(logrus.Fields{
			"payment_id": p.ID,
			"code":       outcome.FailureCode,
		}).Info("payment declined")
		cause := domain.ErrPaymentDeclined
		if outcome.FailureCode == payment.FailureInvalidCard {
			cause = domain.ErrInvalidCard
		}
		return p, domain.NewPaymentError(outcome.FailureCode, outcome.FailureReason, cause)
	}

	log.WithFields(logrus.Fields{
		"payment_id":   p.ID,
		"processor_id": p.ProcessorPaymentID,
	}).Info("payment completed")

	if req.Card != nil && req.Card.SaveCard && req.Method == domain.MethodCard && s.cards != nil {
		// A card that cannot be kept on file does not undo the charge.
		if _, err := s.cards.SaveFromPayment(ctx, booking.UserID, req.Card); err != nil {
			log.WithError(err).Warn("failed to save card on file")
		}
	}
	return p, nil
}

func (s *paymentService) newRecord(
	booking *domain.Booking,
	req ProcessPaymentRequest,
	amount decimal.Decimal,
	currency string,
	outcome payment.Outcome,
) *domain.Payment {
	now := s.now()
	p := &domain.Payment{
		ID:                 uuid.New(),
		BookingID:          booking.ID,
		UserID:             booking.UserID,
		ProcessorPaymentID: outcome.PaymentID,
		TransactionID:      outcome.TransactionID,
		Amount:             amount,
		Currency:           currency,
		Method:             req.Method,
		Description:        req.Description,
		AdvancePercentage:  s.opts.AdvancePercentage,
		TotalBookingAmount: booking.TotalAmount,
		RemainingAmount:    booking.RemainingAmount,
		ProcessedAt:        outcome.ProcessedAt,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if p.Description == "" {
		p.Description = fmt.Sprintf("Photography session booking - %s", booking.Category)
	}
	if p.ProcessedAt.IsZero() {
		p.ProcessedAt = now
	}
	if req.Card != nil && req.Method == domain.MethodCard {
		p.Card = req.Card.Info()
	}
	if req.IsAdvancePayment != nil {
		p.IsAdvancePayment = *req.IsAdvancePayment
	} else {
		p.IsAdvancePayment = amount.LessThan(booking.RemainingAmount)
	}

	if outcome.Approved {
		p.Status = domain.PaymentCompleted
		p.RemainingAmount = decimal.Max(domain.Round(booking.RemainingAmount.Sub(amount)), decimal.Zero)
	} else {
		p.Status = domain.PaymentFailed
		p.FailureReason = outcome.FailureReason
	}
	return p
}

func (s *paymentService) RefundPayment(ctx context.Context, req RefundRequest) (*domain.Payment, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	p, err := s.GetPayment(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}

	reason := req.Reason
	if reason == "" {
		reason = "Admin refund"
	}
	if err := p.Refund(req.Amount, reason, s.now()); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.UpdateRefund(ctx, p); err != nil {
		return nil, err
	}
	metrics.IncRefund()

	log := s.log.WithFields(logrus.Fields{
		"payment_id": p.ID,
		"booking_id": p.BookingID,
		"refund":     p.RefundAmount.Decimal.StringFixed(2),
	})
	if _, err := s.reconciler.Apply(ctx, domain.EventPaymentRefunded, p); err != nil {
		log.WithError(err).Warn("booking reconcile failed after refund")
		metrics.IncReconcileSkipped("update_failed")
	}
	log.Info("payment refunded")
	return p, nil
}

func (s *paymentService) UpdatePaymentStatus(ctx context.Context, req PaymentStatusRequest) (*domain.Payment, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	if req.Status == domain.PaymentRefunded {
		return nil, domain.Errorf(domain.ErrInvalidTransition, "use the refund operation to refund a payment")
	}

	p, err := s.GetPayment(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	from := p.Status
	if err := p.SetStatus(req.Status, req.FailureReason, s.now()); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.UpdateStatus(ctx, p, from); err != nil {
		return nil, err
	}
	metrics.IncStatusChange(string(from), string(p.Status))

	log := s.log.WithFields(logrus.Fields{
		"payment_id": p.ID,
		"booking_id": p.BookingID,
		"from":       from,
		"to":         p.Status,
	})
	if _, err := s.reconciler.Apply(ctx, domain.EventFor(*p), p); err != nil {
		log.WithError(err).Warn("booking reconcile failed after status change")
		metrics.IncReconcileSkipped("update_failed")
	}
	log.Info("payment status changed")
	return p, nil
}

func (s *paymentService) GetBookingPayments(ctx context.Context, bookingID uuid.UUID) ([]domain.Payment, error) {
	return s.paymentRepo.FindByBookingId(ctx, bookingID)
}

func (s *paymentService) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, err := s.paymentRepo.FindById(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.Errorf(domain.ErrPaymentNotFound, "%s", id)
	}
	return p, nil
}

func (s *paymentService) ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	if filter.Method != "" && !filter.Method.Valid() {
		return nil, domain.Errorf(domain.ErrValidation, "unknown payment method %q", filter.Method)
	}
	return s.paymentRepo.ListPayments(ctx, filter)
}

func (s *paymentService) PaymentStats(ctx context.Context) (domain.PaymentStats, error) {
	return s.paymentRepo.Stats(ctx)
}

func (s *paymentService) PaymentAnalytics(ctx context.Context, from, to *time.Time) (domain.PaymentAnalytics, error) {
	if from != nil && to != nil && to.Before(*from) {
		return domain.PaymentAnalytics{}, domain.Errorf(domain.ErrValidation, "endDate is before startDate")
	}
	return s.paymentRepo.Analytics(ctx, from, to)
}
