// Package booking создаёт и отменяет бронирования вместе с планом оплаты.
package booking

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/splickets/internal/kafka"
	"github.com/magabrotheeeer/splickets/internal/lib/sl"
	"github.com/magabrotheeeer/splickets/internal/metrics"
	"github.com/magabrotheeeer/splickets/internal/models"
	"github.com/magabrotheeeer/splickets/internal/paymentprovider"
	"github.com/magabrotheeeer/splickets/internal/services/installment"
	"github.com/magabrotheeeer/splickets/internal/services/referral"
	"github.com/magabrotheeeer/splickets/internal/storage"
)

const (
	referencePrefix = "SPK"
	referenceLength = 6
	// referenceAttempts попыток при совпадении номера брони.
	referenceAttempts = 3
)

var (
	// ErrForbidden бронирование принадлежит другому пользователю.
	ErrForbidden = errors.New("booking belongs to another user")
	// ErrNotCancellable бронирование уже подтверждено или отменено.
	ErrNotCancellable = errors.New("booking cannot be cancelled in its current state")
	// ErrDeparted рейс уже вылетел.
	ErrDeparted = errors.New("flight has already departed")
)

// Repository методы хранилища бронирований.
type Repository interface {
	CreateBooking(ctx context.Context, flight models.Flight, booking models.Booking,
		plan models.PaymentPlan) (*models.BookingDetails, error)
	GetBooking(ctx context.Context, id int64) (*models.BookingDetails, error)
	CancelBooking(ctx context.Context, id int64) error
}

// OfferSource возвращает предложение, найденное поиском.
type OfferSource interface {
	Offer(ctx context.Context, offerID string) (*models.FlightOffer, error)
}

// Referrals проверяет промокод перед применением.
type Referrals interface {
	Redeemable(ctx context.Context, code, userUID string) (*models.PromoCode, error)
}

// Intents отменяет намерение оплаты у процессора.
type Intents interface {
	CancelPaymentIntent(ctx context.Context, id string) (*paymentprovider.PaymentIntent, error)
}

// EventPublisher публикует события жизненного цикла бронирования.
type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, ev kafka.BookingEvent) error
}

// Service бизнес-логика бронирований.
type Service struct {
	repo            Repository
	offers          OfferSource
	referrals       Referrals
	intents         Intents
	events          EventPublisher
	policy          installment.Policy
	discountPercent int
	now             func() time.Time
	rnd             io.Reader
	log             *slog.Logger
}

// New создаёт Service. discountPercent скидка по чужому реферальному коду.
func New(repo Repository, offers OfferSource, referrals Referrals, intents Intents, events EventPublisher,
	policy installment.Policy, discountPercent int, log *slog.Logger) *Service {
	return &Service{
		repo:            repo,
		offers:          offers,
		referrals:       referrals,
		intents:         intents,
		events:          events,
		policy:          policy,
		discountPercent: discountPercent,
		now:             time.Now,
		rnd:             rand.Reader,
		log:             log,
	}
}

// Create бронирует предложение для userUID и строит план оплаты.
func (s *Service) Create(ctx context.Context, userUID string, req models.DummyBooking) (*models.BookingDetails, error) {
	const op = "booking.Create"
	log := s.log.With(slog.String("op", op), slog.String("user_uid", userUID), slog.String("offer_id", req.OfferID))

	offer, err := s.offers.Offer(ctx, req.OfferID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	now := s.now()
	if !offer.DepartureTime.After(now) {
		return nil, fmt.Errorf("%s: %w", op, ErrDeparted)
	}

	total := offer.PriceMinor
	var (
		discount  int64
		promoCode *string
	)
	if req.PromoCode != "" {
		promo, err := s.referrals.Redeemable(ctx, req.PromoCode, userUID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		discount = total * int64(s.discountPercent) / 100
		total -= discount
		promoCode = &promo.Code
	}

	schedule, err := s.policy.Build(total, req.Installments, now, offer.DepartureTime)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	plan := models.PaymentPlan{
		TotalMinor:   total,
		DepositMinor: schedule.DepositMinor,
		Currency:     offer.Currency,
		Schedule:     schedule.Installments,
	}

	for attempt := 1; ; attempt++ {
		ref, err := s.reference()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		b := models.Booking{
			Reference:     ref,
			UserUID:       userUID,
			Passengers:    req.Passengers,
			TotalMinor:    total,
			DiscountMinor: discount,
			Currency:      offer.Currency,
			PromoCode:     promoCode,
		}

		details, err := s.repo.CreateBooking(ctx, offer.ToFlight(), b, plan)
		if errors.Is(err, storage.ErrAlreadyExists) && attempt < referenceAttempts {
			log.Debug("booking reference collision", slog.String("reference", ref))
			continue
		}
		if err != nil {
			log.Error("failed to create booking", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		metrics.BookingsCreated.Inc()
		log.Info("booking created",
			slog.Int64("booking_id", details.Booking.ID),
			slog.String("reference", ref),
			slog.Int("installments", len(plan.Schedule)),
		)
		s.publish(ctx, kafka.EventBookingCreated, details)
		return details, nil
	}
}

// Get возвращает бронирование, если оно принадлежит userUID.
func (s *Service) Get(ctx context.Context, userUID string, id int64) (*models.BookingDetails, error) {
	const op = "booking.Get"

	details, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if details.Booking.UserUID != userUID {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	return details, nil
}

// Cancel отменяет бронирование в статусе PENDING.
// Созданное намерение оплаты сначала отменяется у процессора.
func (s *Service) Cancel(ctx context.Context, userUID string, id int64) (*models.BookingDetails, error) {
	const op = "booking.Cancel"

	details, err := s.Get(ctx, userUID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if details.Booking.Status != models.BookingStatusPending {
		return nil, fmt.Errorf("%s: %w", op, ErrNotCancellable)
	}

	if intentID := details.Plan.PaymentIntentID; intentID != nil {
		if _, err := s.intents.CancelPaymentIntent(ctx, *intentID); err != nil {
			var apiErr *paymentprovider.APIError
			if errors.As(err, &apiErr) && !apiErr.Retryable() {
				// процессор отказал: списание уже идёт или прошло
				s.log.Warn("payment intent cannot be cancelled",
					slog.String("op", op), slog.String("intent_id", *intentID), sl.Err(err))
				return nil, fmt.Errorf("%s: %w", op, ErrNotCancellable)
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := s.repo.CancelBooking(ctx, id); err != nil {
		if errors.Is(err, storage.ErrStatusConflict) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotCancellable)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	details.Booking.Status = models.BookingStatusCancelled
	details.Plan.Status = models.PlanStatusCancelled
	s.log.Info("booking cancelled", slog.String("op", op), slog.Int64("booking_id", id))
	s.publish(ctx, kafka.EventBookingCancelled, details)
	return details, nil
}

// publish отправляет событие в Kafka. Ошибка только логируется, бронирование уже сохранено.
func (s *Service) publish(ctx context.Context, eventType string, d *models.BookingDetails) {
	ev := kafka.BookingEvent{
		Type:       eventType,
		BookingID:  d.Booking.ID,
		Reference:  d.Booking.Reference,
		UserUID:    d.Booking.UserUID,
		Status:     string(d.Booking.Status),
		PlanStatus: string(d.Plan.Status),
		TotalMinor: d.Booking.TotalMinor,
		Currency:   d.Booking.Currency,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.PublishBookingEvent(ctx, ev); err != nil {
		s.log.Warn("failed to publish booking event",
			slog.String("type", eventType), slog.Int64("booking_id", d.Booking.ID), sl.Err(err))
	}
}

// reference генерирует номер брони вида SPK7KQ2MX.
func (s *Service) reference() (string, error) {
	buf := make([]byte, referenceLength)
	if _, err := io.ReadFull(s.rnd, buf); err != nil {
		return "", fmt.Errorf("booking.reference: %w", err)
	}
	out := make([]byte, 0, len(referencePrefix)+referenceLength)
	out = append(out, referencePrefix...)
	for _, b := range buf {
		out = append(out, referral.Alphabet[int(b)%len(referral.Alphabet)])
	}
	return string(out), nil
}
