package domain

import (
	"time"

	"github.com/google/uuid"
)

// SavedCard is a card kept on file for a customer. Only the processor token
// and display fields are stored.
type SavedCard struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"userId"`
	Type           string    `json:"type"`
	Last4          string    `json:"last4"`
	CardholderName string    `json:"cardholderName"`
	ExpiryMonth    string    `json:"expiryMonth"`
	ExpiryYear     string    `json:"expiryYear"`
	IsDefault      bool      `json:"isDefault"`
	IsActive       bool      `json:"isActive"`
	Token          string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
