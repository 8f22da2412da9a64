package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"studio-pro/internal/domain"
)

type BookingRepo interface {
	CreateBooking(ctx context.Context, booking *domain.Booking) error
	// FindById returns nil, nil when the booking does not exist.
	FindById(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	UpdateBooking(ctx context.Context, booking *domain.Booking) error
	DeleteBooking(ctx context.Context, id uuid.UUID) (bool, error)
	ListBookings(ctx context.Context, filter domain.BookingFilter) ([]domain.Booking, error)
	// FindStaleBookings returns bookings with ledger activity newer than the
	// booking itself, ignoring activity younger than grace.
	FindStaleBookings(ctx context.Context, grace time.Duration, limit int) ([]domain.Booking, error)
	Stats(ctx context.Context) (domain.BookingStats, error)
}

const bookingColumns = `id, user_id, name, email, phone, category, session_date, time_slot, location, note,
	status, payment_status, total_amount, advance_amount, remaining_amount, payment_ids, created_at, updated_at`

type bookingRepo struct {
	db    *sql.DB
	types *pgtype.Map
}

func NewBookingRepo(db *sql.DB) BookingRepo {
	return &bookingRepo{db: db, types: pgtype.NewMap()}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *bookingRepo) scan(row rowScanner) (*domain.Booking, error) {
	var (
		b   domain.Booking
		ids []string
	)
	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.Name,
		&b.Email,
		&b.Phone,
		&b.Category,
		&b.Date,
		&b.TimeSlot,
		&b.Location,
		&b.Note,
		&b.Status,
		&b.PaymentStatus,
		&b.TotalAmount,
		&b.AdvanceAmount,
		&b.RemainingAmount,
		r.types.SQLScanner(&ids),
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.PaymentIDs = make([]uuid.UUID, 0, len(ids))
	for _, s := range ids {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("booking %s: bad payment reference %q: %w", b.ID, s, err)
		}
		b.PaymentIDs = append(b.PaymentIDs, id)
	}
	return &b, nil
}

func paymentRefs(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func (r *bookingRepo) CreateBooking(ctx context.Context, b *domain.Booking) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		b.ID, b.UserID, b.Name, b.Email, b.Phone, b.Category, b.Date, b.TimeSlot, b.Location, b.Note,
		b.Status, b.PaymentStatus, b.TotalAmount, b.AdvanceAmount, b.RemainingAmount,
		paymentRefs(b.PaymentIDs), b.CreatedAt, b.UpdatedAt,
	)
	return err
}

func (r *bookingRepo) FindById(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+bookingColumns+" FROM bookings WHERE id = $1", id)
	b, err := r.scan(row)
	if err == sql.ErrNoRows {
		return nil, nil // not found
	}
	if err != nil {
		return nil, err // system error
	}
	return b, nil
}

func (r *bookingRepo) UpdateBooking(ctx context.Context, b *domain.Booking) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bookings
		SET status = $2,
		    payment_status = $3,
		    total_amount = $4,
		    advance_amount = $5,
		    remaining_amount = $6,
		    payment_ids = $7,
		    updated_at = $8
		WHERE id = $1`,
		b.ID, b.Status, b.PaymentStatus, b.TotalAmount, b.AdvanceAmount, b.RemainingAmount,
		paymentRefs(b.PaymentIDs), b.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.Errorf(domain.ErrBookingNotFound, "%s", b.ID)
	}
	return nil
}

func (r *bookingRepo) DeleteBooking(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM bookings WHERE id = $1", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *bookingRepo) ListBookings(ctx context.Context, f domain.BookingFilter) ([]domain.Booking, error) {
	var (
		where []string
		args  []any
	)
	if f.Email != "" {
		args = append(args, strings.ToLower(f.Email))
		where = append(where, fmt.Sprintf("lower(email) = $%d", len(args)))
	}
	if f.UserID != uuid.Nil {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := "SELECT " + bookingColumns + " FROM bookings"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY session_date DESC, created_at DESC"
	query += limitClause(f.Limit, f.Offset, &args)

	return r.query(ctx, query, args...)
}

func (r *bookingRepo) FindStaleBookings(ctx context.Context, grace time.Duration, limit int) ([]domain.Booking, error) {
	query := "SELECT " + bookingColumns + ` FROM bookings b
		WHERE EXISTS (
			SELECT 1 FROM payments p
			WHERE p.booking_id = b.id
			  AND p.updated_at < $1
			  AND (p.updated_at > b.updated_at OR NOT (p.id::text = ANY (b.payment_ids)))
		)
		ORDER BY b.updated_at
		LIMIT $2`
	return r.query(ctx, query, time.Now().Add(-grace), limit)
}

func (r *bookingRepo) Stats(ctx context.Context) (domain.BookingStats, error) {
	var s domain.BookingStats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'confirmed'),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'cancelled'),
		       COUNT(*) FILTER (WHERE payment_status = 'paid'),
		       COALESCE(SUM(total_amount), 0),
		       COALESCE(SUM(advance_amount), 0),
		       COALESCE(SUM(remaining_amount) FILTER (WHERE status <> 'cancelled'), 0)
		FROM bookings`,
	).Scan(&s.Count, &s.Pending, &s.Confirmed, &s.Completed, &s.Cancelled, &s.FullyPaid,
		&s.TotalBooked, &s.Collected, &s.Outstanding)
	return s, err
}

func (r *bookingRepo) query(ctx context.Context, query string, args ...any) ([]domain.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := []domain.Booking{}
	for rows.Next() {
		b, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func limitClause(limit, offset int, args *[]any) string {
	if limit <= 0 {
		limit = 100
	}
	*args = append(*args, limit, max(offset, 0))
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(*args)-1, len(*args))
}
