package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"studio-pro/internal/domain"
)

type SavedCardRepo interface {
	// CreateCard stores a card; a default card takes the default flag from
	// the customer's other cards.
	CreateCard(ctx context.Context, card *domain.SavedCard) error
	// ListActive returns the customer's active cards, default first, newest next.
	ListActive(ctx context.Context, userID uuid.UUID) ([]domain.SavedCard, error)
	// SetDefault returns nil, nil when the customer has no such active card.
	SetDefault(ctx context.Context, userID, id uuid.UUID) (*domain.SavedCard, error)
	// Deactivate soft-deletes a card and, if it was the default, promotes the
	// newest remaining one. It returns nil, nil when the card does not exist.
	Deactivate(ctx context.Context, userID, id uuid.UUID) (*domain.SavedCard, error)
}

const cardColumns = `id, user_id, card_type, last4, cardholder_name, expiry_month, expiry_year,
	is_default, is_active, token, created_at, updated_at`

type savedCardRepo struct {
	db *sql.DB
}

func NewSavedCardRepo(db *sql.DB) SavedCardRepo {
	return &savedCardRepo{db: db}
}

func scanCard(row rowScanner) (*domain.SavedCard, error) {
	var c domain.SavedCard
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Type,
		&c.Last4,
		&c.CardholderName,
		&c.ExpiryMonth,
		&c.ExpiryYear,
		&c.IsDefault,
		&c.IsActive,
		&c.Token,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *savedCardRepo) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func clearDefault(ctx context.Context, tx *sql.Tx, userID uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE saved_cards SET is_default = FALSE WHERE user_id = $1 AND is_default", userID)
	return err
}

func (r *savedCardRepo) CreateCard(ctx context.Context, c *domain.SavedCard) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if c.IsDefault {
			if err := clearDefault(ctx, tx, c.UserID); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO saved_cards (`+cardColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			c.ID, c.UserID, c.Type, c.Last4, c.CardholderName, c.ExpiryMonth, c.ExpiryYear,
			c.IsDefault, c.IsActive, c.Token, c.CreatedAt, c.UpdatedAt,
		)
		return err
	})
}

func (r *savedCardRepo) ListActive(ctx context.Context, userID uuid.UUID) ([]domain.SavedCard, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+cardColumns+` FROM saved_cards
		WHERE user_id = $1 AND is_active
		ORDER BY is_default DESC, created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := []domain.SavedCard{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *c)
	}
	return cards, rows.Err()
}

func (r *savedCardRepo) SetDefault(ctx context.Context, userID, id uuid.UUID) (*domain.SavedCard, error) {
	var card *domain.SavedCard
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		c, err := scanCard(tx.QueryRowContext(ctx, "SELECT "+cardColumns+` FROM saved_cards
			WHERE id = $1 AND user_id = $2 AND is_active FOR UPDATE`, id, userID))
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		if err := clearDefault(ctx, tx, userID); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx,
			"UPDATE saved_cards SET is_default = TRUE, updated_at = now() WHERE id = $1 RETURNING updated_at", id,
		).Scan(&c.UpdatedAt); err != nil {
			return err
		}
		c.IsDefault = true
		card = c
		return nil
	})
	return card, err
}

func (r *savedCardRepo) Deactivate(ctx context.Context, userID, id uuid.UUID) (*domain.SavedCard, error) {
	var card *domain.SavedCard
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		c, err := scanCard(tx.QueryRowContext(ctx, "SELECT "+cardColumns+` FROM saved_cards
			WHERE id = $1 AND user_id = $2 FOR UPDATE`, id, userID))
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}

		wasDefault := c.IsDefault && c.IsActive
		if err := tx.QueryRowContext(ctx, `
			UPDATE saved_cards SET is_active = FALSE, is_default = FALSE, updated_at = now()
			WHERE id = $1 RETURNING updated_at`, id,
		).Scan(&c.UpdatedAt); err != nil {
			return err
		}
		c.IsActive, c.IsDefault = false, false

		if wasDefault {
			_, err := tx.ExecContext(ctx, `
				UPDATE saved_cards SET is_default = TRUE, updated_at = now()
				WHERE id = (
					SELECT id FROM saved_cards
					WHERE user_id = $1 AND is_active
					ORDER BY created_at DESC
					LIMIT 1
				)`, userID)
			if err != nil {
				return fmt.Errorf("promote next default: %w", err)
			}
		}
		card = c
		return nil
	})
	return card, err
}
