package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"studio-pro/internal/domain"
	"studio-pro/internal/metrics"
	"studio-pro/internal/pricing"
	"studio-pro/internal/repo"
)

// customerNamespace derives stable user ids for guests who book by email.
var customerNamespace = uuid.MustParse("6f1c7d2e-3a8b-4c55-9e21-b0d4a7c3f810")

type BookingService interface {
	CreateBooking(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	ListBookings(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error)
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus) (*domain.Booking, error)
	DeleteBooking(ctx context.Context, id uuid.UUID) error
	BookingStats(ctx context.Context) (domain.BookingStats, error)
	Prices() []pricing.Entry
	AdvanceQuote(total decimal.Decimal) Quote
}

// Quote splits a total into the advance due now and the rest.
type Quote struct {
	Total             decimal.Decimal `json:"totalAmount"`
	AdvancePercentage int             `json:"advancePercentage"`
	Advance           decimal.Decimal `json:"advanceAmount"`
	Remaining         decimal.Decimal `json:"remainingAmount"`
}

type bookingService struct {
	bookingRepo       repo.BookingRepo
	prices            *pricing.Table
	advancePercentage int
	log               logrus.FieldLogger
	now               func() time.Time
}

func NewBookingService(
	bookingRepo repo.BookingRepo,
	prices *pricing.Table,
	advancePercentage int,
	log logrus.FieldLogger,
	now func() time.Time,
) BookingService {
	if now == nil {
		now = time.Now
	}
	if advancePercentage <= 0 {
		advancePercentage = domain.DefaultAdvancePercentage
	}
	return &bookingService{
		bookingRepo:       bookingRepo,
		prices:            prices,
		advancePercentage: advancePercentage,
		log:               log,
		now:               now,
	}
}

func (s *bookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	category := domain.Category(strings.ToLower(strings.TrimSpace(req.Category)))
	total, err := s.prices.Price(category)
	if err != nil {
		return nil, err
	}
	if req.TotalAmount != nil {
		if req.TotalAmount.IsNegative() {
			return nil, domain.Errorf(domain.ErrValidation, "totalAmount must not be negative")
		}
		total = *req.TotalAmount
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	booking := domain.NewBooking(uuid.New(), total, s.now())
	booking.Name = strings.TrimSpace(req.Name)
	booking.Email = email
	booking.Phone = strings.TrimSpace(req.Phone)
	booking.Category = category
	booking.Date = req.Date
	booking.TimeSlot = domain.TimeSlot(req.TimeSlot)
	booking.Note = req.Note
	if loc := strings.TrimSpace(req.Location); loc != "" {
		booking.Location = loc
	}
	if req.UserID != nil && *req.UserID != uuid.Nil {
		booking.UserID = *req.UserID
	} else {
		booking.UserID = uuid.NewSHA1(customerNamespace, []byte(email))
	}

	if err := s.bookingRepo.CreateBooking(ctx, booking); err != nil {
		return nil, err
	}

	metrics.IncBookingCreated(string(category))
	s.log.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"category":   category,
		"total":      booking.TotalAmount.StringFixed(2),
	}).Info("booking created")
	return booking, nil
}

func (s *bookingService) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	booking, err := s.bookingRepo.FindById(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, domain.Errorf(domain.ErrBookingNotFound, "%s", id)
	}
	return booking, nil
}

func (s *bookingService) ListBookings(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.Errorf(domain.ErrValidation, "unknown booking status %q", filter.Status)
	}
	return s.bookingRepo.ListBookings(ctx, filter)
}

func (s *bookingService) UpdateBookingStatus(ctx context.Context, id uuid.UUID, status domain.BookingStatus) (*domain.Booking, error) {
	if !status.Valid() {
		return nil, domain.Errorf(domain.ErrValidation, "unknown booking status %q", status)
	}
	booking, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	from := booking.Status
	booking.SetStatus(status, s.now())
	if err := s.bookingRepo.UpdateBooking(ctx, booking); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"booking_id": id,
		"from":       from,
		"to":         status,
	}).Info("booking status changed")
	return booking, nil
}

// DeleteBooking removes the booking only. Its ledger entries are kept.
func (s *bookingService) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.bookingRepo.DeleteBooking(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.Errorf(domain.ErrBookingNotFound, "%s", id)
	}
	s.log.WithField("booking_id", id).Info("booking deleted")
	return nil
}

func (s *bookingService) BookingStats(ctx context.Context) (domain.BookingStats, error) {
	return s.bookingRepo.Stats(ctx)
}

func (s *bookingService) Prices() []pricing.Entry {
	return s.prices.Entries()
}

func (s *bookingService) AdvanceQuote(total decimal.Decimal) Quote {
	advance, remaining := domain.AdvanceSplit(total, s.advancePercentage)
	return Quote{
		Total:             domain.Round(total),
		AdvancePercentage: s.advancePercentage,
		Advance:           advance,
		Remaining:         remaining,
	}
}
