package payment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio-pro/internal/domain"
)

var fixedNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func newTestGateway(d Decider) PaymentGateway {
	return NewPaymentGateway(
		WithDecider(d),
		WithLatency(0, 0),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func validCard() *CardDetails {
	return &CardDetails{Number: "4242 4242 4242 4242", Name: "Ada Lovelace", Expiry: "12/30", CVV: "123"}
}

func TestCharge_CardApproved(t *testing.T) {
	gw := newTestGateway(AlwaysApprove)

	out, err := gw.Charge(context.Background(), ChargeRequest{
		Method: domain.MethodCard,
		Amount: decimal.RequireFromString("59.70"),
		Card:   validCard(),
	})

	require.NoError(t, err)
	assert.True(t, out.Approved)
	assert.True(t, strings.HasPrefix(out.PaymentID, "pay_"), out.PaymentID)
	assert.True(t, strings.HasPrefix(out.TransactionID, "txn_"), out.TransactionID)
	assert.Empty(t, out.FailureReason)
	assert.Equal(t, fixedNow, out.ProcessedAt)
}

func TestCharge_AlternativeMethod(t *testing.T) {
	gw := newTestGateway(AlwaysApprove)

	out, err := gw.Charge(context.Background(), ChargeRequest{Method: domain.MethodPayPal, Amount: decimal.NewFromInt(10)})

	require.NoError(t, err)
	assert.True(t, out.Approved)
	assert.True(t, strings.HasPrefix(out.PaymentID, "paypal_pay_"), out.PaymentID)
	assert.True(t, strings.HasPrefix(out.TransactionID, "paypal_txn_"), out.TransactionID)
}

func TestCharge_Declined(t *testing.T) {
	gw := newTestGateway(AlwaysDecline)

	out, err := gw.Charge(context.Background(), ChargeRequest{Method: domain.MethodCard, Amount: decimal.NewFromInt(10), Card: validCard()})

	require.NoError(t, err)
	assert.False(t, out.Approved)
	assert.Equal(t, FailureDeclined, out.FailureCode)
	assert.NotEmpty(t, out.FailureReason)
	assert.True(t, strings.HasPrefix(out.PaymentID, "failed_"))
}

func TestCharge_InvalidCard(t *testing.T) {
	gw := newTestGateway(AlwaysApprove)
	tests := []struct {
		name   string
		number string
	}{
		{"too short", "4242 4242 42"},
		{"letters only", "abcdefghijklm"},
		{"letters mixed in", "4242 4242 4242 424x"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := gw.Charge(context.Background(), ChargeRequest{
				Method: domain.MethodCard,
				Amount: decimal.NewFromInt(10),
				Card:   &CardDetails{Number: tt.number},
			})

			require.NoError(t, err)
			assert.False(t, out.Approved)
			assert.Equal(t, FailureInvalidCard, out.FailureCode)
		})
	}
}

func TestValidNumber(t *testing.T) {
	assert.True(t, (&CardDetails{Number: "4242-4242-4242-4"}).ValidNumber())
	assert.True(t, (&CardDetails{Number: "4242 4242 4242 4242"}).ValidNumber())
	assert.False(t, (&CardDetails{Number: "ABCD EFGH IJKL M"}).ValidNumber())
	assert.False(t, (&CardDetails{Number: "4242.4242.4242.4242"}).ValidNumber())
}

func TestTokenize(t *testing.T) {
	gw := newTestGateway(AlwaysApprove)

	token, err := gw.Tokenize(context.Background(), validCard())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, "tok_"), token)

	other, err := gw.Tokenize(context.Background(), validCard())
	require.NoError(t, err)
	assert.NotEqual(t, token, other)

	for _, number := range []string{"4242", "4242 4242 4242 4242 4242", "not a card number"} {
		_, err := gw.Tokenize(context.Background(), &CardDetails{Number: number})
		assert.ErrorIs(t, err, ErrMalformedCharge, number)
	}
}

func TestParseExpiry(t *testing.T) {
	month, year, err := ParseExpiry("09/29")
	require.NoError(t, err)
	assert.Equal(t, "09", month)
	assert.Equal(t, "29", year)

	for _, bad := range []string{"", "9/29", "13/29", "00/29", "09/2029", "ab/cd", "0929"} {
		_, _, err := ParseExpiry(bad)
		assert.Error(t, err, bad)
	}
}

func TestCharge_Malformed(t *testing.T) {
	gw := newTestGateway(AlwaysApprove)
	tests := []struct {
		name string
		req  ChargeRequest
	}{
		{"unknown method", ChargeRequest{Method: "bitcoin", Amount: decimal.NewFromInt(1)}},
		{"zero amount", ChargeRequest{Method: domain.MethodApple, Amount: decimal.Zero}},
		{"card without details", ChargeRequest{Method: domain.MethodCard, Amount: decimal.NewFromInt(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gw.Charge(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrMalformedCharge)
		})
	}
}

func TestCharge_IdentifiersAreUnique(t *testing.T) {
	gw := newTestGateway(AlwaysApprove)
	seen := make(map[string]bool)

	for i := 0; i < 200; i++ {
		out, err := gw.Charge(context.Background(), ChargeRequest{Method: domain.MethodGoogle, Amount: decimal.NewFromInt(1)})
		require.NoError(t, err)
		require.False(t, seen[out.PaymentID], "duplicate payment id %s", out.PaymentID)
		require.False(t, seen[out.TransactionID], "duplicate transaction id %s", out.TransactionID)
		seen[out.PaymentID] = true
		seen[out.TransactionID] = true
	}
}

func TestCharge_Latency(t *testing.T) {
	gw := NewPaymentGateway(WithDecider(AlwaysApprove), WithLatency(30*time.Millisecond, 10*time.Millisecond))

	start := time.Now()
	_, err := gw.Charge(context.Background(), ChargeRequest{Method: domain.MethodCard, Amount: decimal.NewFromInt(1), Card: validCard()})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestRandomDecline(t *testing.T) {
	assert.False(t, RandomDecline(0)())
	assert.True(t, RandomDecline(1)())
}

func TestCardInfo(t *testing.T) {
	info := (&CardDetails{Number: "5555-5555-5555-4444", Name: "Grace Hopper"}).Info()

	assert.Equal(t, "4444", info.Last4)
	assert.Equal(t, "mastercard", info.CardType)
	assert.Equal(t, "Grace Hopper", info.CardholderName)
	assert.Equal(t, "amex", cardType("378282246310005"))
	assert.Equal(t, "discover", cardType("6011111111111117"))
	assert.Equal(t, "other", cardType("9111111111111111"))
}
