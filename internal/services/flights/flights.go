// Package flights проверяет параметры поиска, кэширует ответы поставщика
// и запоминает найденные предложения, чтобы бронирование ссылалось на цену из поиска.
package flights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/splickets/internal/flightprovider"
	"github.com/magabrotheeeer/splickets/internal/lib/sl"
	"github.com/magabrotheeeer/splickets/internal/metrics"
	"github.com/magabrotheeeer/splickets/internal/models"
)

const (
	searchKeyPrefix = "flights:search:"
	offerKeyPrefix  = "flights:offer:"
	defaultCabin    = "economy"
)

var (
	// ErrInvalidQuery параметры поиска не прошли проверку.
	ErrInvalidQuery = errors.New("invalid flight search query")
	// ErrOfferNotFound предложение не найдено или устарело.
	ErrOfferNotFound = errors.New("flight offer not found or expired")
)

// Cache хранилище результатов поиска и предложений.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// Service поиск рейсов.
type Service struct {
	provider flightprovider.Provider
	cache    Cache
	cacheTTL time.Duration
	offerTTL time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// New создаёт Service.
func New(provider flightprovider.Provider, cache Cache, cacheTTL, offerTTL time.Duration, log *slog.Logger) *Service {
	return &Service{
		provider: provider,
		cache:    cache,
		cacheTTL: cacheTTL,
		offerTTL: offerTTL,
		now:      time.Now,
		log:      log,
	}
}

// ParseQuery проверяет сырые параметры и приводит их к models.FlightSearch.
// Коды аэропортов переводятся в верхний регистр, даты сравниваются по UTC.
func ParseQuery(raw models.DummyFlightSearch, now time.Time) (models.FlightSearch, error) {
	const op = "flights.ParseQuery"

	q := models.FlightSearch{
		Origin:      strings.ToUpper(strings.TrimSpace(raw.Origin)),
		Destination: strings.ToUpper(strings.TrimSpace(raw.Destination)),
		Passengers:  raw.Passengers,
		CabinClass:  strings.ToLower(strings.TrimSpace(raw.CabinClass)),
		Currency:    strings.ToUpper(strings.TrimSpace(raw.Currency)),
	}
	if !isIATA(q.Origin) || !isIATA(q.Destination) {
		return q, fmt.Errorf("%s: %w: airport codes must be 3 letters", op, ErrInvalidQuery)
	}
	if q.Origin == q.Destination {
		return q, fmt.Errorf("%s: %w: origin and destination are the same", op, ErrInvalidQuery)
	}
	if q.Passengers < 1 || q.Passengers > 9 {
		return q, fmt.Errorf("%s: %w: passengers must be between 1 and 9", op, ErrInvalidQuery)
	}
	if q.CabinClass == "" {
		q.CabinClass = defaultCabin
	}

	today := now.UTC().Truncate(24 * time.Hour)
	departure, err := time.Parse(time.DateOnly, raw.DepartureDate)
	if err != nil {
		return q, fmt.Errorf("%s: %w: departure_date must be YYYY-MM-DD", op, ErrInvalidQuery)
	}
	if departure.Before(today) {
		return q, fmt.Errorf("%s: %w: departure_date is in the past", op, ErrInvalidQuery)
	}
	q.DepartureDate = departure

	if raw.ReturnDate != "" {
		ret, err := time.Parse(time.DateOnly, raw.ReturnDate)
		if err != nil {
			return q, fmt.Errorf("%s: %w: return_date must be YYYY-MM-DD", op, ErrInvalidQuery)
		}
		if ret.Before(departure) {
			return q, fmt.Errorf("%s: %w: return_date is before departure_date", op, ErrInvalidQuery)
		}
		q.ReturnDate = &ret
	}
	return q, nil
}

func isIATA(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// CacheKey ключ результатов поиска для нормализованного запроса.
func CacheKey(q models.FlightSearch) string {
	ret := "-"
	if q.ReturnDate != nil {
		ret = q.ReturnDate.Format(time.DateOnly)
	}
	return fmt.Sprintf("%s%s:%s:%s:%s:%d:%s:%s", searchKeyPrefix,
		q.Origin, q.Destination, q.DepartureDate.Format(time.DateOnly), ret,
		q.Passengers, q.CabinClass, q.Currency)
}

// Search возвращает предложения из кэша или у поставщика.
func (s *Service) Search(ctx context.Context, q models.FlightSearch) ([]models.FlightOffer, error) {
	const op = "flights.Search"
	log := s.log.With(slog.String("op", op))
	key := CacheKey(q)

	var offers []models.FlightOffer
	found, err := s.cache.Get(ctx, key, &offers)
	if err != nil {
		log.Warn("search cache read failed", sl.Err(err))
	}
	if found {
		metrics.FlightSearchCache.WithLabelValues("hit").Inc()
		return offers, nil
	}
	metrics.FlightSearchCache.WithLabelValues("miss").Inc()

	offers, err = s.provider.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Set(ctx, key, offers, s.cacheTTL); err != nil {
		log.Warn("search cache write failed", sl.Err(err))
	}
	for _, o := range offers {
		if err := s.cache.Set(ctx, offerKeyPrefix+o.OfferID, o, s.offerTTL); err != nil {
			log.Warn("offer cache write failed", slog.String("offer_id", o.OfferID), sl.Err(err))
		}
	}
	log.Debug("flight search served by provider", slog.String("key", key), slog.Int("offers", len(offers)))
	return offers, nil
}

// Offer возвращает запомненное предложение по id.
func (s *Service) Offer(ctx context.Context, offerID string) (*models.FlightOffer, error) {
	const op = "flights.Offer"

	var offer models.FlightOffer
	found, err := s.cache.Get(ctx, offerKeyPrefix+offerID, &offer)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", op, ErrOfferNotFound)
	}
	if !offer.DepartureTime.After(s.now()) {
		return nil, fmt.Errorf("%s: %w", op, ErrOfferNotFound)
	}
	return &offer, nil
}
