package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"studio-pro/internal/domain"
	"studio-pro/internal/infrastructure/payment"
)

var (
	validate = newValidator()
	phoneRe  = regexp.MustCompile(`^\+?[\d\s-]{10,}$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	mustRegister(v, "phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	})
	mustRegister(v, "expiry", func(fl validator.FieldLevel) bool {
		_, _, err := payment.ParseExpiry(fl.Field().String())
		return err == nil
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %q validation: %v", tag, err))
	}
}

type CreateBookingRequest struct {
	Name     string           `json:"name" validate:"required,max=200"`
	Email    string           `json:"email" validate:"required,email"`
	Phone    string           `json:"phone" validate:"required,phone"`
	Category string           `json:"category" validate:"required"`
	Date     time.Time        `json:"date" validate:"required"`
	TimeSlot string           `json:"timeSlot" validate:"required,oneof=morning afternoon evening"`
	Location string           `json:"location" validate:"max=200"`
	Note     string           `json:"note" validate:"max=2000"`
	UserID   *uuid.UUID       `json:"userId"`
	// TotalAmount overrides the category price.
	TotalAmount *decimal.Decimal `json:"totalAmount"`
}

type ProcessPaymentRequest struct {
	BookingID   uuid.UUID            `json:"bookingId" validate:"required"`
	Amount      decimal.Decimal      `json:"amount"`
	Method      domain.PaymentMethod `json:"paymentMethod" validate:"required,oneof=card paypal apple google"`
	Currency    string               `json:"currency" validate:"omitempty,len=3"`
	Description string               `json:"description" validate:"max=500"`
	// IsAdvancePayment is inferred from the amount when omitted.
	IsAdvancePayment *bool                `json:"isAdvancePayment"`
	Card             *payment.CardDetails `json:"cardDetails" validate:"required_if=Method card"`
}

type RefundRequest struct {
	PaymentID uuid.UUID       `json:"paymentId" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason" validate:"max=500"`
}

type PaymentStatusRequest struct {
	PaymentID     uuid.UUID            `json:"paymentId" validate:"required"`
	Status        domain.PaymentStatus `json:"status" validate:"required,oneof=pending completed failed refunded cancelled"`
	FailureReason string               `json:"failureReason" validate:"max=500"`
}

type AddCardRequest struct {
	UserID         uuid.UUID `json:"userId" validate:"required"`
	CardNumber     string    `json:"cardNumber" validate:"required"`
	CardholderName string    `json:"cardholderName" validate:"required,max=200"`
	ExpiryDate     string    `json:"expiryDate" validate:"required,expiry"`
	CVV            string    `json:"cvv" validate:"required,numeric,min=3,max=4"`
	IsDefault      bool      `json:"isDefault"`
}

// Validate runs the struct tags and wraps the first failure in ErrValidation.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
		}
		return domain.Errorf(domain.ErrValidation, "%s", strings.Join(msgs, "; "))
	}
	return domain.Errorf(domain.ErrValidation, "%v", err)
}
