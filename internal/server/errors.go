package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studio-pro/internal/domain"
)

func statusFor(err error) int {
	var perr *domain.PaymentError
	switch {
	case errors.As(err, &perr),
		errors.Is(err, domain.ErrPaymentDeclined),
		errors.Is(err, domain.ErrInvalidCard):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrUnknownCategory):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrBookingNotFound),
		errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrSavedCardNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidRefundState), errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", c.FullPath()).Error("internal error")
		msg = "internal server error"
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   msg,
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   msg,
	})
}
