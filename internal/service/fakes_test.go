package service

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"studio-pro/internal/domain"
	"studio-pro/internal/infrastructure/payment"
	"studio-pro/internal/logging"
	"studio-pro/internal/pricing"
)

// memBookings is an in-memory BookingRepo. FindByIdErr, when set, is
// returned from FindById instead of the stored booking.
type memBookings struct {
	mu          sync.Mutex
	rows        map[uuid.UUID]domain.Booking
	FindByIdErr error
	updates     int
}

func newMemBookings() *memBookings {
	return &memBookings{rows: map[uuid.UUID]domain.Booking{}}
}

func cloneBooking(b domain.Booking) domain.Booking {
	b.PaymentIDs = slices.Clone(b.PaymentIDs)
	return b
}

func (m *memBookings) CreateBooking(_ context.Context, b *domain.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[b.ID] = cloneBooking(*b)
	return nil
}

func (m *memBookings) FindById(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindByIdErr != nil {
		return nil, m.FindByIdErr
	}
	b, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	b = cloneBooking(b)
	return &b, nil
}

func (m *memBookings) UpdateBooking(_ context.Context, b *domain.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[b.ID]; !ok {
		return domain.Errorf(domain.ErrBookingNotFound, "%s", b.ID)
	}
	m.rows[b.ID] = cloneBooking(*b)
	m.updates++
	return nil
}

func (m *memBookings) DeleteBooking(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	delete(m.rows, id)
	return ok, nil
}

func (m *memBookings) ListBookings(_ context.Context, f domain.BookingFilter) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Booking{}
	for _, b := range m.rows {
		if f.Email != "" && b.Email != f.Email {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, cloneBooking(b))
	}
	return out, nil
}

func (m *memBookings) FindStaleBookings(context.Context, time.Duration, int) ([]domain.Booking, error) {
	return nil, nil
}

func (m *memBookings) Stats(context.Context) (domain.BookingStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := domain.BookingStats{TotalBooked: decimal.Zero, Collected: decimal.Zero, Outstanding: decimal.Zero}
	for _, b := range m.rows {
		s.Count++
		switch b.Status {
		case domain.BookingPending:
			s.Pending++
		case domain.BookingConfirmed:
			s.Confirmed++
		case domain.BookingCompleted:
			s.Completed++
		case domain.BookingCancelled:
			s.Cancelled++
		}
		if b.PaymentStatus == domain.BookingPaymentPaid {
			s.FullyPaid++
		}
		s.TotalBooked = s.TotalBooked.Add(b.TotalAmount)
		s.Collected = s.Collected.Add(b.AdvanceAmount)
		if b.Status != domain.BookingCancelled {
			s.Outstanding = s.Outstanding.Add(b.RemainingAmount)
		}
	}
	return s, nil
}

type memPayments struct {
	mu   sync.Mutex
	rows []domain.Payment
}

func (m *memPayments) CreatePayment(_ context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *p)
	return nil
}

func (m *memPayments) FindById(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *memPayments) FindByBookingId(_ context.Context, bookingID uuid.UUID) ([]domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Payment{}
	for _, p := range m.rows {
		if p.BookingID == bookingID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPayments) UpdateRefund(_ context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == p.ID {
			if m.rows[i].Status != domain.PaymentCompleted {
				return domain.Errorf(domain.ErrInvalidRefundState, "%s", p.ID)
			}
			m.rows[i] = *p
			return nil
		}
	}
	return domain.Errorf(domain.ErrPaymentNotFound, "%s", p.ID)
}

func (m *memPayments) UpdateStatus(_ context.Context, p *domain.Payment, from domain.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == p.ID {
			if m.rows[i].Status != from {
				return domain.Errorf(domain.ErrInvalidTransition, "%s", p.ID)
			}
			m.rows[i] = *p
			return nil
		}
	}
	return domain.Errorf(domain.ErrPaymentNotFound, "%s", p.ID)
}

func (m *memPayments) ListPayments(_ context.Context, f domain.PaymentFilter) ([]domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Payment{}
	for _, p := range m.rows {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memPayments) Stats(context.Context) (domain.PaymentStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := domain.PaymentStats{TotalRevenue: decimal.Zero, PendingAmount: decimal.Zero}
	for _, p := range m.rows {
		s.TotalPayments++
		if p.Status == domain.PaymentCompleted {
			s.CompletedPayments++
			s.TotalRevenue = s.TotalRevenue.Add(p.Amount)
		}
	}
	return s, nil
}

func (m *memPayments) Analytics(context.Context, *time.Time, *time.Time) (domain.PaymentAnalytics, error) {
	return domain.PaymentAnalytics{}, nil
}

func (m *memPayments) CountOrphans(context.Context) (int, error) {
	return 0, nil
}

// memCards is an in-memory SavedCardRepo keeping insertion order.
type memCards struct {
	mu   sync.Mutex
	rows []domain.SavedCard
}

func (m *memCards) CreateCard(_ context.Context, c *domain.SavedCard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.IsDefault {
		m.clearDefault(c.UserID)
	}
	m.rows = append(m.rows, *c)
	return nil
}

func (m *memCards) clearDefault(userID uuid.UUID) {
	for i := range m.rows {
		if m.rows[i].UserID == userID {
			m.rows[i].IsDefault = false
		}
	}
}

func (m *memCards) ListActive(_ context.Context, userID uuid.UUID) ([]domain.SavedCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.SavedCard{}
	for i := len(m.rows) - 1; i >= 0; i-- {
		c := m.rows[i]
		if c.UserID == userID && c.IsActive {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.SavedCard) int {
		switch {
		case a.IsDefault == b.IsDefault:
			return 0
		case a.IsDefault:
			return -1
		default:
			return 1
		}
	})
	return out, nil
}

func (m *memCards) SetDefault(_ context.Context, userID, id uuid.UUID) (*domain.SavedCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID == id && m.rows[i].UserID == userID && m.rows[i].IsActive {
			m.clearDefault(userID)
			m.rows[i].IsDefault = true
			c := m.rows[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memCards) Deactivate(_ context.Context, userID, id uuid.UUID) (*domain.SavedCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].ID != id || m.rows[i].UserID != userID {
			continue
		}
		wasDefault := m.rows[i].IsDefault && m.rows[i].IsActive
		m.rows[i].IsActive, m.rows[i].IsDefault = false, false
		if wasDefault {
			for j := len(m.rows) - 1; j >= 0; j-- {
				if m.rows[j].UserID == userID && m.rows[j].IsActive {
					m.rows[j].IsDefault = true
					break
				}
			}
		}
		c := m.rows[i]
		return &c, nil
	}
	return nil, nil
}

// fixture wires both services over in-memory repos and a zero-latency
// simulator whose decisions the test controls.
type fixture struct {
	bookings *memBookings
	payments *memPayments
	cards    *memCards
	decline  bool
	clock    time.Time

	Bookings BookingService
	Payments PaymentService
	Cards    SavedCardService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		bookings: newMemBookings(),
		payments: &memPayments{},
		cards:    &memCards{},
		clock:    time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	now := func() time.Time {
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}
	log := logging.Discard()
	gateway := payment.NewPaymentGateway(
		payment.WithLatency(0, 0),
		payment.WithDecider(func() bool { return f.decline }),
		payment.WithClock(now),
	)
	reconciler := NewReconciler(f.bookings, f.payments, log, now)
	f.Bookings = NewBookingService(f.bookings, pricing.New(nil), 30, log, now)
	f.Cards = NewSavedCardService(f.cards, gateway, log, now)
	f.Payments = NewPaymentService(f.bookings, f.payments, gateway, reconciler, f.Cards, PaymentOptions{
		MaxAmount: decimal.NewFromInt(10000),
	}, log, now)
	return f
}

func (f *fixture) createPortrait(t *testing.T) *domain.Booking {
	t.Helper()
	b, err := f.Bookings.CreateBooking(context.Background(), CreateBookingRequest{
		Name:     "Ada Lovelace",
		Email:    "ada@example.com",
		Phone:    "+1 555-123-4567",
		Category: "portrait",
		Date:     time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		TimeSlot: "morning",
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}

func (f *fixture) stored(t *testing.T, id uuid.UUID) *domain.Booking {
	t.Helper()
	b, err := f.bookings.FindById(context.Background(), id)
	if err != nil || b == nil {
		t.Fatalf("booking %s not stored: %v", id, err)
	}
	return b
}

func cardPayment(bookingID uuid.UUID, amount string) ProcessPaymentRequest {
	return ProcessPaymentRequest{
		BookingID: bookingID,
		Amount:    decimal.RequireFromString(amount),
		Method:    domain.MethodCard,
		Card: &payment.CardDetails{
			Number: "4242 4242 4242 4242",
			Name:   "Ada Lovelace",
			Expiry: "12/30",
			CVV:    "123",
		},
	}
}
