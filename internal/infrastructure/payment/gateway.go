package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"studio-pro/internal/domain"
)

// ErrMalformedCharge is the only error Charge returns. Declines are outcomes.
var ErrMalformedCharge = errors.New("malformed charge request")

const (
	FailureInvalidCard = "invalid_card"
	FailureDeclined    = "declined_by_processor"

	DefaultFailureRate = 0.05
	DefaultCardLatency = 2 * time.Second
	DefaultAltLatency  = 1500 * time.Millisecond

	minCardDigits = 13
	maxCardDigits = 19
)

type CardDetails struct {
	Number     string `json:"number"`
	Name       string `json:"name"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
	BillingZip string `json:"billingZip"`
	// SaveCard asks for the card to be kept on file once the charge succeeds.
	SaveCard   bool   `json:"saveCard"`
}

// Digits returns the card number without spaces or dashes.
func (c *CardDetails) Digits() string {
	return strings.NewReplacer(" ", "", "-", "").Replace(c.Number)
}

// ValidNumber reports whether the number has at least 13 digits and nothing
// but digits once separators are removed.
func (c *CardDetails) ValidNumber() bool {
	n := c.Digits()
	if len(n) < minCardDigits {
		return false
	}
	for _, r := range n {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Info keeps only what may be stored on the ledger.
func (c *CardDetails) Info() *domain.CardInfo {
	n := c.Digits()
	info := &domain.CardInfo{CardholderName: c.Name, CardType: cardType(n)}
	if len(n) >= 4 {
		info.Last4 = n[len(n)-4:]
	}
	return info
}

func cardType(number string) string {
	switch {
	case strings.HasPrefix(number, "4"):
		return "visa"
	case strings.HasPrefix(number, "5"), strings.HasPrefix(number, "2"):
		return "mastercard"
	case strings.HasPrefix(number, "3"):
		return "amex"
	case strings.HasPrefix(number, "6"):
		return "discover"
	default:
		return "other"
	}
}

type ChargeRequest struct {
	Method   domain.PaymentMethod
	Amount   decimal.Decimal
	Currency string
	Card     *CardDetails
}

type Outcome struct {
	Approved      bool
	PaymentID     string
	TransactionID string
	FailureCode   string
	FailureReason string
	ProcessedAt   time.Time
}

// PaymentGateway charges a customer. One call is one final attempt.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (Outcome, error)
	// Tokenize exchanges a card for a processor token so the card can be
	// kept on file without its number.
	Tokenize(ctx context.Context, card *CardDetails) (string, error)
}

// Decider reports whether the processor declines the current attempt.
type Decider func() bool

// RandomDecline declines with probability p.
func RandomDecline(p float64) Decider {
	return func() bool { return rand.Float64() < p }
}

func AlwaysApprove() bool { return false }

func AlwaysDecline() bool { return true }

type Option func(*simulator)

func WithDecider(d Decider) Option {
	return func(s *simulator) { s.decline = d }
}

func WithFailureRate(p float64) Option {
	return func(s *simulator) { s.decline = RandomDecline(p) }
}

func WithLatency(card, alt time.Duration) Option {
	return func(s *simulator) {
		s.cardLatency = card
		s.altLatency = alt
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *simulator) { s.now = now }
}

type simulator struct {
	mu          sync.Mutex
	seq         uint64
	decline     Decider
	cardLatency time.Duration
	altLatency  time.Duration
	now         func() time.Time
}

// NewPaymentGateway returns the in-process processor simulator.
func NewPaymentGateway(opts ...Option) PaymentGateway {
	s := &simulator{
		decline:     RandomDecline(DefaultFailureRate),
		cardLatency: DefaultCardLatency,
		altLatency:  DefaultAltLatency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *simulator) Charge(ctx context.Context, req ChargeRequest) (Outcome, error) {
	if !req.Method.Valid() {
		return Outcome{}, fmt.Errorf("%w: unsupported method %q", ErrMalformedCharge, req.Method)
	}
	if !req.Amount.IsPositive() {
		return Outcome{}, fmt.Errorf("%w: amount must be positive", ErrMalformedCharge)
	}
	if req.Method == domain.MethodCard && req.Card == nil {
		return Outcome{}, fmt.Errorf("%w: card details required for card payment", ErrMalformedCharge)
	}

	// Emulated network latency. The attempt is not cancellable once dispatched.
	if req.Method == domain.MethodCard {
		time.Sleep(s.cardLatency)
	} else {
		time.Sleep(s.altLatency)
	}

	out := Outcome{ProcessedAt: s.now()}

	if req.Method == domain.MethodCard && !req.Card.ValidNumber() {
		out.PaymentID, out.TransactionID = s.identifiers("failed")
		out.FailureCode = FailureInvalidCard
		out.FailureReason = "Invalid card number"
		return out, nil
	}

	if s.decline() {
		out.PaymentID, out.TransactionID = s.identifiers("failed")
		out.FailureCode = FailureDeclined
		out.FailureReason = "Payment declined by bank"
		return out, nil
	}

	prefix := "pay"
	if req.Method != domain.MethodCard {
		prefix = string(req.Method) + "_pay"
	}
	out.Approved = true
	out.PaymentID, out.TransactionID = s.identifiers(prefix)
	return out, nil
}

func (s *simulator) Tokenize(_ context.Context, card *CardDetails) (string, error) {
	if card == nil || !card.ValidNumber() || len(card.Digits()) > maxCardDigits {
		return "", fmt.Errorf("%w: invalid card number", ErrMalformedCharge)
	}
	token, _ := s.identifiers("tok")
	return token, nil
}

// ParseExpiry splits an MM/YY expiry into its month and year.
func ParseExpiry(expiry string) (month, year string, err error) {
	month, year, ok := strings.Cut(strings.TrimSpace(expiry), "/")
	if !ok || len(month) != 2 || len(year) != 2 {
		return "", "", fmt.Errorf("expiry %q is not MM/YY", expiry)
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return "", "", fmt.Errorf("expiry month %q is out of range", month)
	}
	if _, err := strconv.Atoi(year); err != nil {
		return "", "", fmt.Errorf("expiry year %q is not numeric", year)
	}
	return month, year, nil
}

// identifiers builds a processor payment id and transaction id from the
// clock, a per-process sequence and a random suffix.
func (s *simulator) identifiers(prefix string) (string, string) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	ts := s.now().UnixMilli()
	suffix := strconv.FormatUint(seq, 36) + strconv.FormatUint(rand.Uint64()%(1<<40), 36)
	txnPrefix := "txn"
	if strings.HasSuffix(prefix, "_pay") {
		txnPrefix = strings.TrimSuffix(prefix, "_pay") + "_txn"
	} else if prefix == "failed" {
		txnPrefix = "failed_txn"
	}
	return fmt.Sprintf("%s_%d_%s", prefix, ts, suffix), fmt.Sprintf("%s_%d_%s", txnPrefix, ts, suffix)
}
