package referral

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/magabrotheeeer/splickets/internal/lib/sl"
	"github.com/magabrotheeeer/splickets/internal/metrics"
	"github.com/magabrotheeeer/splickets/internal/models"
	"github.com/magabrotheeeer/splickets/internal/storage"
)

var (
	// ErrCodeExhausted все попытки вставки упёрлись в уникальность кода.
	ErrCodeExhausted = errors.New("referral code generation exhausted")
	// ErrInvalidCode код не соответствует формату.
	ErrInvalidCode = errors.New("invalid referral code format")
	// ErrOwnCode пользователь пытается применить собственный код.
	ErrOwnCode = errors.New("referral code belongs to the same user")
)

// Repository методы хранилища промокодов.
type Repository interface {
	GetPromoCodeByUser(ctx context.Context, userUID string) (*models.PromoCode, error)
	GetPromoCode(ctx context.Context, code string) (*models.PromoCode, error)
	CreatePromoCode(ctx context.Context, userUID, code string) (*models.PromoCode, error)
}

// Service выдаёт реферальные коды с ограниченным числом повторов при коллизиях.
type Service struct {
	repo Repository
	rnd  io.Reader
	log  *slog.Logger
}

// New создаёт сервис. rnd может быть nil, тогда используется crypto/rand.
func New(repo Repository, rnd io.Reader, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		rnd:  rnd,
		log:  log,
	}
}

// Issue возвращает код пользователя, создавая его при первом обращении.
func (s *Service) Issue(ctx context.Context, user models.User) (*models.PromoCode, error) {
	const op = "referral.Issue"
	log := s.log.With(slog.String("op", op), slog.String("user_uid", user.UID))

	existing, err := s.repo.GetPromoCodeByUser(ctx, user.UID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		code, err := Generate(user.FirstName, user.LastName, s.rnd)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		promo, err := s.repo.CreatePromoCode(ctx, user.UID, code)
		switch {
		case err == nil:
			log.Info("referral code issued", slog.String("code", code), slog.Int("attempt", attempt))
			return promo, nil
		case errors.Is(err, storage.ErrCodeTaken):
			metrics.ReferralCollisions.Inc()
			log.Debug("referral code collision", slog.String("code", code), slog.Int("attempt", attempt))
			continue
		case errors.Is(err, storage.ErrAlreadyExists):
			// параллельный запрос уже выдал код этому пользователю
			promo, err := s.repo.GetPromoCodeByUser(ctx, user.UID)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			return promo, nil
		default:
			log.Error("failed to store referral code", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	log.Error("referral code attempts exhausted", slog.Int("attempts", MaxAttempts))
	return nil, fmt.Errorf("%s: %w", op, ErrCodeExhausted)
}

// Lookup проверяет формат и возвращает сохранённый код.
func (s *Service) Lookup(ctx context.Context, code string) (*models.PromoCode, error) {
	const op = "referral.Lookup"
	code = Normalize(code)
	if !Valid(code) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCode)
	}
	promo, err := s.repo.GetPromoCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return promo, nil
}

// Redeemable проверяет, что код существует и не принадлежит userUID.
func (s *Service) Redeemable(ctx context.Context, code, userUID string) (*models.PromoCode, error) {
	promo, err := s.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if promo.UserUID == userUID {
		return nil, fmt.Errorf("referral.Redeemable: %w", ErrOwnCode)
	}
	return promo, nil
}
