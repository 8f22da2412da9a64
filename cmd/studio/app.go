package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"studio-pro/internal/config"
	"studio-pro/internal/database"
	"studio-pro/internal/infrastructure/payment"
	"studio-pro/internal/logging"
	"studio-pro/internal/pricing"
	"studio-pro/internal/repo"
	"studio-pro/internal/service"
)

// app holds the wired components shared by the serve and simulate commands.
type app struct {
	cfg         *config.Config
	log         *logrus.Logger
	db          database.Service
	bookingRepo repo.BookingRepo
	paymentRepo repo.PaymentRepo
	reconciler  service.Reconciler
	bookings    service.BookingService
	payments    service.PaymentService
	cards       service.SavedCardService
}

func loadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logging.New(cfg.Logging), nil
}

func newApp(ctx context.Context, gatewayOpts ...payment.Option) (*app, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := database.New(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}

	bookingRepo := repo.NewBookingRepo(db.DB())
	paymentRepo := repo.NewPaymentRepo(db.DB())

	opts := append([]payment.Option{
		payment.WithFailureRate(cfg.Payments.FailureRate),
		payment.WithLatency(cfg.Payments.CardLatency, cfg.Payments.AltLatency),
	}, gatewayOpts...)
	gateway := payment.NewPaymentGateway(opts...)

	reconciler := service.NewReconciler(bookingRepo, paymentRepo, log, time.Now)
	cards := service.NewSavedCardService(repo.NewSavedCardRepo(db.DB()), gateway, log, time.Now)
	bookings := service.NewBookingService(
		bookingRepo,
		pricing.New(cfg.Prices()),
		cfg.Payments.AdvancePercentage,
		log,
		time.Now,
	)
	payments := service.NewPaymentService(
		bookingRepo,
		paymentRepo,
		gateway,
		reconciler,
		cards,
		service.PaymentOptions{
			Currency:          cfg.Payments.Currency,
			MaxAmount:         cfg.Payments.MaxAmountDecimal(),
			AdvancePercentage: cfg.Payments.AdvancePercentage,
		},
		log,
		time.Now,
	)

	return &app{
		cfg:         cfg,
		log:         log,
		db:          db,
		bookingRepo: bookingRepo,
		paymentRepo: paymentRepo,
		reconciler:  reconciler,
		bookings:    bookings,
		payments:    payments,
		cards:       cards,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.log.WithError(err).Warn("closing database")
	}
}
