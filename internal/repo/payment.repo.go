package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"studio-pro/internal/domain"
)

type PaymentRepo interface {
	// CreatePayment appends an attempt to the ledger.
	CreatePayment(ctx context.Context, payment *domain.Payment) error
	// FindById returns nil, nil when the payment does not exist.
	FindById(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	// FindByBookingId returns the booking's ledger in chronological order.
	FindByBookingId(ctx context.Context, bookingID uuid.UUID) ([]domain.Payment, error)
	// UpdateRefund persists the refund transition of a completed payment.
	UpdateRefund(ctx context.Context, payment *domain.Payment) error
	// UpdateStatus persists a manual status change, provided the stored row
	// still has status from.
	UpdateStatus(ctx context.Context, payment *domain.Payment, from domain.PaymentStatus) error
	ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error)
	Stats(ctx context.Context) (domain.PaymentStats, error)
	Analytics(ctx context.Context, from, to *time.Time) (domain.PaymentAnalytics, error)
	CountOrphans(ctx context.Context) (int, error)
}

const paymentColumns = `id, booking_id, user_id, processor_payment_id, transaction_id, amount, currency, method, status,
	description, card_last4, card_type, cardholder_name, is_advance_payment, advance_percentage,
	total_booking_amount, remaining_amount, failure_reason, refund_reason, refund_amount, refunded_at,
	processed_at, created_at, updated_at`

type paymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) PaymentRepo {
	return &paymentRepo{db: db}
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var (
		p    domain.Payment
		card domain.CardInfo
	)
	err := row.Scan(
		&p.ID,
		&p.BookingID,
		&p.UserID,
		&p.ProcessorPaymentID,
		&p.TransactionID,
		&p.Amount,
		&p.Currency,
		&p.Method,
		&p.Status,
		&p.Description,
		&card.Last4,
		&card.CardType,
		&card.CardholderName,
		&p.IsAdvancePayment,
		&p.AdvancePercentage,
		&p.TotalBookingAmount,
		&p.RemainingAmount,
		&p.FailureReason,
		&p.RefundReason,
		&p.RefundAmount,
		&p.RefundedAt,
		&p.ProcessedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if card != (domain.CardInfo{}) {
		p.Card = &card
	}
	return &p, nil
}

func (r *paymentRepo) CreatePayment(ctx context.Context, p *domain.Payment) error {
	var card domain.CardInfo
	if p.Card != nil {
		card = *p.Card
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`,
		p.ID, p.BookingID, p.UserID, p.ProcessorPaymentID, p.TransactionID, p.Amount, p.Currency, p.Method, p.Status,
		p.Description, card.Last4, card.CardType, card.CardholderName, p.IsAdvancePayment, p.AdvancePercentage,
		p.TotalBookingAmount, p.RemainingAmount, p.FailureReason, p.RefundReason, p.RefundAmount, nullTime(p.RefundedAt),
		p.ProcessedAt, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *paymentRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+paymentColumns+" FROM payments WHERE id = $1", id)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *paymentRepo) FindByBookingId(ctx context.Context, bookingID uuid.UUID) ([]domain.Payment, error) {
	return r.query(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE booking_id = $1 ORDER BY created_at, id",
		bookingID,
	)
}

// UpdateRefund only touches rows still marked completed, so a concurrent
// second refund of the same payment cannot overwrite the first.
func (r *paymentRepo) UpdateRefund(ctx context.Context, p *domain.Payment) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $2,
		    refund_amount = $3,
		    refund_reason = $4,
		    refunded_at = $5,
		    updated_at = $6
		WHERE id = $1 AND status = $7`,
		p.ID, p.Status, p.RefundAmount, p.RefundReason, nullTime(p.RefundedAt), p.UpdatedAt, domain.PaymentCompleted,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.Errorf(domain.ErrInvalidRefundState, "payment %s is no longer completed", p.ID)
	}
	return nil
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, p *domain.Payment, from domain.PaymentStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $2,
		    failure_reason = $3,
		    remaining_amount = $4,
		    updated_at = $5
		WHERE id = $1 AND status = $6`,
		p.ID, p.Status, p.FailureReason, p.RemainingAmount, p.UpdatedAt, from,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.Errorf(domain.ErrInvalidTransition, "payment %s is no longer %s", p.ID, from)
	}
	return nil
}

func (r *paymentRepo) ListPayments(ctx context.Context, f domain.PaymentFilter) ([]domain.Payment, error) {
	var (
		where []string
		args  []any
	)
	if f.BookingID != uuid.Nil {
		args = append(args, f.BookingID)
		where = append(where, fmt.Sprintf("booking_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Method != "" {
		args = append(args, f.Method)
		where = append(where, fmt.Sprintf("method = $%d", len(args)))
	}

	query := "SELECT " + paymentColumns + " FROM payments"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	query += limitClause(f.Limit, f.Offset, &args)

	return r.query(ctx, query, args...)
}

func (r *paymentRepo) Stats(ctx context.Context) (domain.PaymentStats, error) {
	var s domain.PaymentStats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COALESCE(SUM(amount) FILTER (WHERE status = 'completed'), 0),
		       COALESCE(SUM(amount) FILTER (WHERE status = 'pending'), 0)
		FROM payments`,
	).Scan(&s.TotalPayments, &s.CompletedPayments, &s.TotalRevenue, &s.PendingAmount)
	return s, err
}

const dateRange = `($1::timestamptz IS NULL OR created_at >= $1) AND ($2::timestamptz IS NULL OR created_at <= $2)`

func (r *paymentRepo) Analytics(ctx context.Context, from, to *time.Time) (domain.PaymentAnalytics, error) {
	var (
		a    domain.PaymentAnalytics
		err  error
		args = []any{nullTime(from), nullTime(to)}
	)

	a.StatusBreakdown, err = r.breakdown(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(amount), 0) FROM payments
		WHERE `+dateRange+` GROUP BY status ORDER BY status`, args...)
	if err != nil {
		return a, fmt.Errorf("status breakdown: %w", err)
	}

	a.MethodBreakdown, err = r.breakdown(ctx, `
		SELECT method, COUNT(*), COALESCE(SUM(amount), 0) FROM payments
		WHERE status = 'completed' AND `+dateRange+` GROUP BY method ORDER BY method`, args...)
	if err != nil {
		return a, fmt.Errorf("method breakdown: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, SUM(amount), COUNT(*)
		FROM payments
		WHERE status = 'completed' AND `+dateRange+`
		GROUP BY day ORDER BY day`, args...)
	if err != nil {
		return a, fmt.Errorf("daily revenue: %w", err)
	}
	defer rows.Close()

	a.DailyRevenue = []domain.DailyRevenue{}
	for rows.Next() {
		var d domain.DailyRevenue
		if err := rows.Scan(&d.Day, &d.Revenue, &d.Count); err != nil {
			return a, err
		}
		a.DailyRevenue = append(a.DailyRevenue, d)
	}
	return a, rows.Err()
}

func (r *paymentRepo) breakdown(ctx context.Context, query string, args ...any) ([]domain.Breakdown, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Breakdown{}
	for rows.Next() {
		var b domain.Breakdown
		if err := rows.Scan(&b.Key, &b.Count, &b.TotalAmount); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *paymentRepo) CountOrphans(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM payments p
		WHERE NOT EXISTS (SELECT 1 FROM bookings b WHERE b.id = p.booking_id)`,
	).Scan(&n)
	return n, err
}

func (r *paymentRepo) query(ctx context.Context, query string, args ...any) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []domain.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
