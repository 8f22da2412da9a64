package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrUnknownCategory    = errors.New("unknown session category")
	ErrPaymentDeclined    = errors.New("payment declined by processor")
	ErrInvalidCard        = errors.New("invalid card number")
	ErrBookingNotFound    = errors.New("booking not found")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrInvalidRefundState = errors.New("can only refund completed payments")
	ErrInvalidTransition  = errors.New("payment status change not allowed")
	ErrSavedCardNotFound  = errors.New("payment method not found")
)

// Errorf wraps a sentinel with context so callers can still match it with errors.Is.
func Errorf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// PaymentError is returned alongside the failed ledger record when the
// processor rejects an attempt.
type PaymentError struct {
	Code   string
	Reason string
	cause  error
}

func NewPaymentError(code, reason string, cause error) *PaymentError {
	return &PaymentError{Code: code, Reason: reason, cause: cause}
}

func (e *PaymentError) Error() string {
	return e.Reason
}

func (e *PaymentError) Unwrap() error {
	return e.cause
}
