// Package geoip определяет страну клиента по IP через внешний HTTP-сервис.
package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/magabrotheeeer/splickets/internal/config"
	"github.com/magabrotheeeer/splickets/internal/lib/sl"
)

// ErrUnknownLocation страну по адресу определить нельзя.
var ErrUnknownLocation = errors.New("location unknown")

// Cache кэш ответов сервиса.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// Client запрашивает {base}/{ip}/json/ и кэширует код страны.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      Cache
	ttl        time.Duration
	log        *slog.Logger
}

// NewClient создаёт клиент. cache может быть nil.
func NewClient(cfg config.GeoIP, cache Cache, log *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.GeoAPIURL, "/"),
		httpClient: &http.Client{Timeout: cfg.GeoTimeout},
		cache:      cache,
		ttl:        cfg.GeoCacheTTL,
		log:        log,
	}
}

type lookupResponse struct {
	CountryCode string `json:"country_code"`
	Error       bool   `json:"error"`
	Reason      string `json:"reason"`
}

// Country возвращает ISO-код страны для ip. Частные и loopback-адреса
// сразу дают ErrUnknownLocation.
func (c *Client) Country(ctx context.Context, ip string) (string, error) {
	const op = "geoip.Country"
	log := c.log.With(slog.String("op", op), slog.String("ip", ip))

	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return "", fmt.Errorf("%s: %w", op, ErrUnknownLocation)
	}
	if c.baseURL == "" {
		return "", fmt.Errorf("%s: %w", op, ErrUnknownLocation)
	}

	key := "geoip:" + parsed.String()
	if c.cache != nil {
		var cached string
		found, err := c.cache.Get(ctx, key, &cached)
		if err != nil {
			log.Warn("geoip cache read failed", sl.Err(err))
		}
		if found {
			return cached, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+parsed.String()+"/json/", nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: unexpected status %s", op, resp.Status)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if body.Error || len(body.CountryCode) != 2 {
		return "", fmt.Errorf("%s: %w: %s", op, ErrUnknownLocation, body.Reason)
	}

	country := strings.ToUpper(body.CountryCode)
	if c.cache != nil {
		if err := c.cache.Set(ctx, key, country, c.ttl); err != nil {
			log.Warn("geoip cache write failed", sl.Err(err))
		}
	}
	return country, nil
}
