package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"studio-pro/internal/domain"
	"studio-pro/internal/infrastructure/payment"
	"studio-pro/internal/repo"
)

// SavedCardService manages the cards customers keep on file.
type SavedCardService interface {
	AddCard(ctx context.Context, req AddCardRequest) (*domain.SavedCard, error)
	ListCards(ctx context.Context, userID uuid.UUID) ([]domain.SavedCard, error)
	SetDefaultCard(ctx context.Context, userID, id uuid.UUID) (*domain.SavedCard, error)
	RemoveCard(ctx context.Context, userID, id uuid.UUID) error
	// SaveFromPayment keeps the card of an approved payment on file.
	SaveFromPayment(ctx context.Context, userID uuid.UUID, card *payment.CardDetails) (*domain.SavedCard, error)
}

type savedCardService struct {
	cardRepo repo.SavedCardRepo
	gateway  payment.PaymentGateway
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewSavedCardService(
	cardRepo repo.SavedCardRepo,
	gateway payment.PaymentGateway,
	log logrus.FieldLogger,
	now func() time.Time,
) SavedCardService {
	if now == nil {
		now = time.Now
	}
	return &savedCardService{
		cardRepo: cardRepo,
		gateway:  gateway,
		log:      log,
		now:      now,
	}
}

func (s *savedCardService) AddCard(ctx context.Context, req AddCardRequest) (*domain.SavedCard, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	return s.store(ctx, req.UserID, &payment.CardDetails{
		Number: req.CardNumber,
		Name:   req.CardholderName,
		Expiry: req.ExpiryDate,
		CVV:    req.CVV,
	}, req.IsDefault)
}

func (s *savedCardService) SaveFromPayment(ctx context.Context, userID uuid.UUID, card *payment.CardDetails) (*domain.SavedCard, error) {
	if card == nil {
		return nil, domain.Errorf(domain.ErrValidation, "card details required")
	}
	return s.store(ctx, userID, card, false)
}

func (s *savedCardService) store(ctx context.Context, userID uuid.UUID, card *payment.CardDetails, isDefault bool) (*domain.SavedCard, error) {
	month, year, err := payment.ParseExpiry(card.Expiry)
	if err != nil {
		return nil, domain.Errorf(domain.ErrValidation, "%v", err)
	}
	token, err := s.gateway.Tokenize(ctx, card)
	if err != nil {
		return nil, domain.Errorf(domain.ErrValidation, "Invalid card number")
	}

	info := card.Info()
	now := s.now()
	saved := &domain.SavedCard{
		ID:             uuid.New(),
		UserID:         userID,
		Type:           info.CardType,
		Last4:          info.Last4,
		CardholderName: strings.TrimSpace(info.CardholderName),
		ExpiryMonth:    month,
		ExpiryYear:     year,
		IsDefault:      isDefault,
		IsActive:       true,
		Token:          token,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.cardRepo.CreateCard(ctx, saved); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id": userID,
		"card_id": saved.ID,
		"type":    saved.Type,
		"default": saved.IsDefault,
	}).Info("payment method saved")
	return saved, nil
}

func (s *savedCardService) ListCards(ctx context.Context, userID uuid.UUID) ([]domain.SavedCard, error) {
	return s.cardRepo.ListActive(ctx, userID)
}

func (s *savedCardService) SetDefaultCard(ctx context.Context, userID, id uuid.UUID) (*domain.SavedCard, error) {
	card, err := s.cardRepo.SetDefault(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, domain.Errorf(domain.ErrSavedCardNotFound, "%s", id)
	}
	return card, nil
}

func (s *savedCardService) RemoveCard(ctx context.Context, userID, id uuid.UUID) error {
	card, err := s.cardRepo.Deactivate(ctx, userID, id)
	if err != nil {
		return err
	}
	if card == nil {
		return domain.Errorf(domain.ErrSavedCardNotFound, "%s", id)
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "card_id": id}).Info("payment method removed")
	return nil
}
