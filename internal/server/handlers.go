package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"studio-pro/internal/domain"
	"studio-pro/internal/service"
)

func (s *Server) handleHealth(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "up"})
		return
	}
	stats := s.health.Health()
	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, stats)
}

func (s *Server) handlePricing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"prices":  s.bookings.Prices(),
	})
}

func (s *Server) handleQuote(c *gin.Context) {
	total, err := decimal.NewFromString(c.Query("total"))
	if err != nil || total.IsNegative() {
		badRequest(c, "total must be a non-negative amount")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"quote":   s.bookings.AdvanceQuote(total),
	})
}

// bookingBody is the wire form of a booking request; the date may be a
// plain calendar date.
type bookingBody struct {
	Name        string           `json:"name"`
	Email       string           `json:"email"`
	Phone       string           `json:"phone"`
	Category    string           `json:"category"`
	Date        string           `json:"date"`
	TimeSlot    string           `json:"timeSlot"`
	Location    string           `json:"location"`
	Note        string           `json:"note"`
	UserID      *uuid.UUID       `json:"userId"`
	TotalAmount *decimal.Decimal `json:"totalAmount"`
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, v)
}

func (s *Server) handleCreateBooking(c *gin.Context) {
	var body bookingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	date, err := parseDate(body.Date)
	if err != nil {
		badRequest(c, "date must be YYYY-MM-DD or RFC 3339")
		return
	}

	booking, err := s.bookings.CreateBooking(c.Request.Context(), service.CreateBookingRequest{
		Name:        body.Name,
		Email:       body.Email,
		Phone:       body.Phone,
		Category:    body.Category,
		Date:        date,
		TimeSlot:    body.TimeSlot,
		Location:    body.Location,
		Note:        body.Note,
		UserID:      body.UserID,
		TotalAmount: body.TotalAmount,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	quote := s.bookings.AdvanceQuote(booking.TotalAmount)
	c.JSON(http.StatusCreated, gin.H{
		"success":         true,
		"message":         "Booking created successfully",
		"booking":         booking,
		"advanceAmount":   quote.Advance,
		"remainingAmount": quote.Remaining,
	})
}

func (s *Server) handleGetBooking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	booking, err := s.bookings.GetBooking(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "booking": booking})
}

func (s *Server) handleListBookings(c *gin.Context) {
	limit, offset := page(c)
	filter := domain.BookingFilter{
		Email:  c.Query("email"),
		Status: domain.BookingStatus(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	}
	if v := c.Query("userId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			badRequest(c, "userId must be a UUID")
			return
		}
		filter.UserID = id
	}

	bookings, err := s.bookings.ListBookings(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "bookings": bookings, "count": len(bookings)})
}

func (s *Server) handleUpdateBookingStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body struct {
		Status domain.BookingStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	booking, err := s.bookings.UpdateBookingStatus(c.Request.Context(), id, body.Status)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "booking": booking})
}

func (s *Server) handleDeleteBooking(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.bookings.DeleteBooking(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Booking deleted"})
}

func (s *Server) handleBookingPayments(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	payments, err := s.payments.GetBookingPayments(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "payments": payments})
}

func (s *Server) handleProcessPayment(c *gin.Context) {
	var req service.ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	p, err := s.payments.ProcessPayment(c.Request.Context(), req)
	var perr *domain.PaymentError
	switch {
	case errors.As(err, &perr):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"success": false,
			"error":   perr.Reason,
			"code":    perr.Code,
			"payment": p,
		})
		return
	case err != nil:
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Payment processed successfully",
		"payment": p,
	})
}

func (s *Server) handleGetPayment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	p, err := s.payments.GetPayment(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "payment": p})
}

func (s *Server) handleListPayments(c *gin.Context) {
	limit, offset := page(c)
	filter := domain.PaymentFilter{
		Status: domain.PaymentStatus(c.Query("status")),
		Method: domain.PaymentMethod(c.Query("method")),
		Limit:  limit,
		Offset: offset,
	}
	if v := c.Query("bookingId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			badRequest(c, "bookingId must be a UUID")
			return
		}
		filter.BookingID = id
	}

	payments, err := s.payments.ListPayments(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "payments": payments, "count": len(payments)})
}

func (s *Server) handleRefund(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body struct {
		Amount decimal.Decimal `json:"amount"`
		Reason string          `json:"reason"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	p, err := s.payments.RefundPayment(c.Request.Context(), service.RefundRequest{
		PaymentID: id,
		Amount:    body.Amount,
		Reason:    body.Reason,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Payment refunded successfully",
		"payment": p,
	})
}

func (s *Server) handlePaymentStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body struct {
		Status        domain.PaymentStatus `json:"status"`
		FailureReason string               `json:"failureReason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	p, err := s.payments.UpdatePaymentStatus(c.Request.Context(), service.PaymentStatusRequest{
		PaymentID:     id,
		Status:        body.Status,
		FailureReason: body.FailureReason,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "payment": p})
}

func (s *Server) handleBookingStats(c *gin.Context) {
	stats, err := s.bookings.BookingStats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

func (s *Server) handlePaymentStats(c *gin.Context) {
	stats, err := s.payments.PaymentStats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

func (s *Server) handlePaymentAnalytics(c *gin.Context) {
	var from, to *time.Time
	for key, dst := range map[string]**time.Time{"startDate": &from, "endDate": &to} {
		v := c.Query(key)
		if v == "" {
			continue
		}
		t, err := parseDate(v)
		if err != nil {
			badRequest(c, key+" must be YYYY-MM-DD or RFC 3339")
			return
		}
		*dst = &t
	}
	if to != nil && !strings.Contains(c.Query("endDate"), "T") {
		// A plain end date covers the whole day.
		end := to.Add(24*time.Hour - time.Nanosecond)
		to = &end
	}

	analytics, err := s.payments.PaymentAnalytics(c.Request.Context(), from, to)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "analytics": analytics})
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func page(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}
