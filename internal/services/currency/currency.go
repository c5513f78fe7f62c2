// Package currency выбирает валюту отображения цен для клиента.
//
// Порядок: валюта, сохранённая у пользователя на сервере, затем валюта
// из браузера (заголовок или cookie), затем страна по IP, иначе USD.
package currency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/magabrotheeeer/splickets/internal/lib/sl"
	"github.com/magabrotheeeer/splickets/internal/models"
	"github.com/magabrotheeeer/splickets/internal/storage"
)

// Default валюта по умолчанию.
const Default = "USD"

// Source откуда взята валюта.
type Source string

const (
	SourceUser    Source = "user"
	SourceBrowser Source = "browser"
	SourceGeo     Source = "geo"
	SourceDefault Source = "default"
)

// ErrUnsupported валюта не поддерживается.
var ErrUnsupported = errors.New("unsupported currency")

var supported = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "ZAR": true, "CAD": true,
	"AUD": true, "NGN": true, "KES": true, "INR": true, "JPY": true,
}

// byCountry валюта по ISO-коду страны. Страны вне таблицы получают USD.
var byCountry = map[string]string{
	"US": "USD",
	"GB": "GBP",
	"ZA": "ZAR",
	"CA": "CAD",
	"AU": "AUD",
	"NG": "NGN",
	"KE": "KES",
	"IN": "INR",
	"JP": "JPY",
	"DE": "EUR", "FR": "EUR", "ES": "EUR", "IT": "EUR", "NL": "EUR", "BE": "EUR",
	"AT": "EUR", "IE": "EUR", "PT": "EUR", "FI": "EUR", "GR": "EUR", "LU": "EUR",
	"SK": "EUR", "SI": "EUR", "EE": "EUR", "LV": "EUR", "LT": "EUR", "MT": "EUR",
	"CY": "EUR", "HR": "EUR",
}

// Supported возвращает отсортированный список поддерживаемых валют.
func Supported() []string {
	out := make([]string, 0, len(supported))
	for c := range supported {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Normalize приводит код к верхнему регистру и проверяет, что он поддерживается.
func Normalize(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !supported[code] {
		return "", fmt.Errorf("currency.Normalize: %w: %q", ErrUnsupported, code)
	}
	return code, nil
}

// ForCountry возвращает валюту страны или USD.
func ForCountry(country string) string {
	if c, ok := byCountry[strings.ToUpper(country)]; ok {
		return c
	}
	return Default
}

// UserRepository методы хранилища пользователей.
type UserRepository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	UpdatePreferredCurrency(ctx context.Context, userUID, currency string) error
}

// Locator определяет страну по IP.
type Locator interface {
	Country(ctx context.Context, ip string) (string, error)
}

// Request входные данные для выбора валюты. Пустые поля пропускаются.
type Request struct {
	UserUID string
	Browser string
	IP      string
}

// Result выбранная валюта и её источник.
type Result struct {
	Currency string `json:"currency"`
	Source   Source `json:"source"`
	Country  string `json:"country,omitempty"`
}

// Service выбор и сохранение валюты.
type Service struct {
	users   UserRepository
	locator Locator
	log     *slog.Logger
}

// New создаёт Service.
func New(users UserRepository, locator Locator, log *slog.Logger) *Service {
	return &Service{
		users:   users,
		locator: locator,
		log:     log,
	}
}

// Resolve выбирает валюту. Ошибки источников не прерывают выбор:
// они логируются, и проверяется следующий источник.
func (s *Service) Resolve(ctx context.Context, req Request) Result {
	const op = "currency.Resolve"
	log := s.log.With(slog.String("op", op))

	if req.UserUID != "" {
		user, err := s.users.GetUser(ctx, req.UserUID)
		switch {
		case err != nil:
			log.Warn("failed to load user currency", slog.String("user_uid", req.UserUID), sl.Err(err))
		case user.PreferredCurrency != nil:
			if c, err := Normalize(*user.PreferredCurrency); err == nil {
				return Result{Currency: c, Source: SourceUser}
			}
		}
	}

	if req.Browser != "" {
		if c, err := Normalize(req.Browser); err == nil {
			return Result{Currency: c, Source: SourceBrowser}
		}
		log.Debug("ignoring unsupported browser currency", slog.String("currency", req.Browser))
	}

	if req.IP != "" && s.locator != nil {
		country, err := s.locator.Country(ctx, req.IP)
		if err == nil {
			return Result{Currency: ForCountry(country), Source: SourceGeo, Country: country}
		}
		log.Debug("geolocation unavailable", slog.String("ip", req.IP), sl.Err(err))
	}

	return Result{Currency: Default, Source: SourceDefault}
}

// SetPreferred сохраняет валюту пользователя на сервере.
func (s *Service) SetPreferred(ctx context.Context, userUID, code string) (string, error) {
	const op = "currency.SetPreferred"

	c, err := Normalize(code)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.UpdatePreferredCurrency(ctx, userUID, c); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}
