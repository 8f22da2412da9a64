package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio-pro/internal/domain"
)

func addCardRequest(userID uuid.UUID, number string) AddCardRequest {
	return AddCardRequest{
		UserID:         userID,
		CardNumber:     number,
		CardholderName: "Ada Lovelace",
		ExpiryDate:     "09/29",
		CVV:            "123",
	}
}

func TestAddCard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()

	card, err := f.Cards.AddCard(ctx, addCardRequest(user, "5555 5555 5555 4444"))
	require.NoError(t, err)
	assert.Equal(t, user, card.UserID)
	assert.Equal(t, "mastercard", card.Type)
	assert.Equal(t, "4444", card.Last4)
	assert.Equal(t, "09", card.ExpiryMonth)
	assert.Equal(t, "29", card.ExpiryYear)
	assert.True(t, card.IsActive)
	assert.False(t, card.IsDefault)
	assert.Contains(t, card.Token, "tok_")
	require.Len(t, f.cards.rows, 1)
}

func TestAddCard_Rejections(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()

	tests := []struct {
		name   string
		mutate func(r *AddCardRequest)
	}{
		{"no user", func(r *AddCardRequest) { r.UserID = uuid.Nil }},
		{"short number", func(r *AddCardRequest) { r.CardNumber = "4242 4242" }},
		{"letters", func(r *AddCardRequest) { r.CardNumber = "abcd efgh ijkl mnop" }},
		{"too long", func(r *AddCardRequest) { r.CardNumber = "4242 4242 4242 4242 4242" }},
		{"bad expiry", func(r *AddCardRequest) { r.ExpiryDate = "2029-09" }},
		{"month out of range", func(r *AddCardRequest) { r.ExpiryDate = "13/29" }},
		{"cvv letters", func(r *AddCardRequest) { r.CVV = "12a" }},
		{"no name", func(r *AddCardRequest) { r.CardholderName = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := addCardRequest(user, "4242 4242 4242 4242")
			tt.mutate(&req)

			_, err := f.Cards.AddCard(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
	assert.Empty(t, f.cards.rows)
}

func TestSavedCards_DefaultHandling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()

	first := addCardRequest(user, "4242 4242 4242 4242")
	first.IsDefault = true
	visa, err := f.Cards.AddCard(ctx, first)
	require.NoError(t, err)

	second := addCardRequest(user, "3782 822463 10005")
	second.IsDefault = true
	amex, err := f.Cards.AddCard(ctx, second)
	require.NoError(t, err)

	_, err = f.Cards.AddCard(ctx, addCardRequest(uuid.New(), "6011 1111 1111 1117"))
	require.NoError(t, err)

	cards, err := f.Cards.ListCards(ctx, user)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, amex.ID, cards[0].ID, "newest default wins")
	assert.True(t, cards[0].IsDefault)
	assert.False(t, cards[1].IsDefault)

	got, err := f.Cards.SetDefaultCard(ctx, user, visa.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDefault)

	cards, err = f.Cards.ListCards(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, visa.ID, cards[0].ID)

	_, err = f.Cards.SetDefaultCard(ctx, uuid.New(), visa.ID)
	assert.ErrorIs(t, err, domain.ErrSavedCardNotFound, "cards of other customers are invisible")
}

func TestRemoveCard_PromotesNextDefault(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()

	older, err := f.Cards.AddCard(ctx, addCardRequest(user, "4242 4242 4242 4242"))
	require.NoError(t, err)
	req := addCardRequest(user, "5555 5555 5555 4444")
	req.IsDefault = true
	def, err := f.Cards.AddCard(ctx, req)
	require.NoError(t, err)

	require.NoError(t, f.Cards.RemoveCard(ctx, user, def.ID))

	cards, err := f.Cards.ListCards(ctx, user)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, older.ID, cards[0].ID)
	assert.True(t, cards[0].IsDefault)

	assert.ErrorIs(t, f.Cards.RemoveCard(ctx, user, uuid.New()), domain.ErrSavedCardNotFound)
}

func TestProcessPayment_SaveCard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.createPortrait(t)

	req := cardPayment(b.ID, "59.70")
	req.Card.SaveCard = true
	_, err := f.Payments.ProcessPayment(ctx, req)
	require.NoError(t, err)

	cards, err := f.Cards.ListCards(ctx, b.UserID)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "4242", cards[0].Last4)
	assert.Equal(t, "visa", cards[0].Type)
	assert.Equal(t, "12", cards[0].ExpiryMonth)
}

func TestProcessPayment_SaveCardSkippedOnDecline(t *testing.T) {
	f := newFixture(t)
	b := f.createPortrait(t)
	f.decline = true

	req := cardPayment(b.ID, "59.70")
	req.Card.SaveCard = true
	_, err := f.Payments.ProcessPayment(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrPaymentDeclined)
	assert.Empty(t, f.cards.rows)
}

func TestProcessPayment_SaveCardFailureKeepsCharge(t *testing.T) {
	f := newFixture(t)
	b := f.createPortrait(t)

	req := cardPayment(b.ID, "59.70")
	req.Card.SaveCard = true
	req.Card.Expiry = "someday"
	p, err := f.Payments.ProcessPayment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCompleted, p.Status)
	assert.Empty(t, f.cards.rows)
}
