package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"studio-pro/internal/config"
	"studio-pro/internal/service"
)

// HealthChecker reports storage health for /health.
type HealthChecker interface {
	Health() map[string]string
}

// Server is the studio HTTP API.
type Server struct {
	bookings service.BookingService
	payments service.PaymentService
	cards    service.SavedCardService
	health   HealthChecker
	log      logrus.FieldLogger
	router   *gin.Engine
	http     *http.Server
}

func New(
	cfg config.HTTPConfig,
	bookings service.BookingService,
	payments service.PaymentService,
	cards service.SavedCardService,
	health HealthChecker,
	log logrus.FieldLogger,
) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), accessLog(log))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = cfg.AllowedOrigins
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	corsCfg.AllowCredentials = true
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowOrigins = nil
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	}
	router.Use(cors.New(corsCfg))

	s := &Server{
		bookings: bookings,
		payments: payments,
		cards:    cards,
		health:   health,
		log:      log,
		router:   router,
	}

	router.GET("/health", s.handleHealth)
	if cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api")
	{
		api.GET("/pricing", s.handlePricing)
		api.GET("/pricing/quote", s.handleQuote)

		api.POST("/bookings", s.handleCreateBooking)
		api.GET("/bookings", s.handleListBookings)
		api.GET("/bookings/:id", s.handleGetBooking)
		api.GET("/bookings/:id/payments", s.handleBookingPayments)

		api.POST("/payments/process", s.handleProcessPayment)
		api.GET("/payments/:id", s.handleGetPayment)

		api.GET("/users/:userId/payment-methods", s.handleListCards)
		api.POST("/users/:userId/payment-methods", s.handleAddCard)
		api.PUT("/users/:userId/payment-methods/:id/default", s.handleSetDefaultCard)
		api.DELETE("/users/:userId/payment-methods/:id", s.handleRemoveCard)
	}

	admin := api.Group("/admin")
	{
		admin.GET("/bookings", s.handleListBookings)
		admin.PUT("/bookings/:id/status", s.handleUpdateBookingStatus)
		admin.DELETE("/bookings/:id", s.handleDeleteBooking)

		admin.GET("/payments", s.handleListPayments)
		admin.GET("/payments/:id", s.handleGetPayment)
		admin.PUT("/payments/:id/status", s.handlePaymentStatus)
		admin.POST("/payments/:id/refund", s.handleRefund)

		admin.GET("/stats/bookings", s.handleBookingStats)
		admin.GET("/stats/payments", s.handlePaymentStats)
		admin.GET("/analytics/payments", s.handlePaymentAnalytics)
	}

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.http.Addr).Info("http server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.log.Info("shutting down http server")
	return s.http.Shutdown(shutdownCtx)
}

func accessLog(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("request failed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Debug("request served")
		}
	}
}
