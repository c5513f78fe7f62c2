// Package flightprovider запрашивает предложения рейсов у внешнего API данных о рейсах.
package flightprovider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/splickets/internal/config"
	"github.com/magabrotheeeer/splickets/internal/models"
)

var (
	// ErrNotConfigured адрес API не задан.
	ErrNotConfigured = errors.New("flight provider is not configured")
	// ErrTemporary поставщик временно недоступен, запрос можно повторить.
	ErrTemporary = errors.New("temporary flight provider error")
	// ErrRejected поставщик отклонил параметры запроса.
	ErrRejected = errors.New("flight provider rejected the query")
)

// Provider источник предложений рейсов.
type Provider interface {
	Search(ctx context.Context, q models.FlightSearch) ([]models.FlightOffer, error)
}

// Client HTTP-клиент API /v1/offers.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient создаёт клиент по настройкам из конфига.
func NewClient(cfg config.FlightProvider) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.FlightAPIURL, "/"),
		apiKey:     cfg.FlightAPIKey,
		httpClient: &http.Client{Timeout: cfg.FlightTimeout},
	}
}

type offersResponse struct {
	Data []struct {
		ID      string `json:"id"`
		Airline struct {
			Name string `json:"name"`
			Code string `json:"code"`
		} `json:"airline"`
		FlightNumber string `json:"flight_number"`
		Departure    struct {
			Airport string `json:"airport"`
			Time    string `json:"time"`
		} `json:"departure"`
		Arrival struct {
			Airport string `json:"airport"`
			Time    string `json:"time"`
		} `json:"arrival"`
		Stops      int    `json:"stops"`
		CabinClass string `json:"cabin_class"`
		Price      struct {
			Amount   string `json:"amount"`
			Currency string `json:"currency"`
		} `json:"price"`
		SeatsLeft int `json:"seats_left"`
	} `json:"data"`
}

// Search возвращает предложения для запроса q.
func (c *Client) Search(ctx context.Context, q models.FlightSearch) ([]models.FlightOffer, error) {
	const op = "flightprovider.Search"
	if c.baseURL == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	params := url.Values{}
	params.Set("origin", q.Origin)
	params.Set("destination", q.Destination)
	params.Set("departure_date", q.DepartureDate.Format(time.DateOnly))
	if q.ReturnDate != nil {
		params.Set("return_date", q.ReturnDate.Format(time.DateOnly))
	}
	params.Set("adults", strconv.Itoa(q.Passengers))
	if q.CabinClass != "" {
		params.Set("cabin_class", q.CabinClass)
	}
	if q.Currency != "" {
		params.Set("currency", q.Currency)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/offers?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrTemporary, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%s: %w: %s", op, ErrTemporary, resp.Status)
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s: %w: %s %s", op, ErrRejected, resp.Status, strings.TrimSpace(string(body)))
	}

	var payload offersResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}

	offers := make([]models.FlightOffer, 0, len(payload.Data))
	for _, o := range payload.Data {
		departAt, err := time.Parse(time.RFC3339, o.Departure.Time)
		if err != nil {
			return nil, fmt.Errorf("%s: offer %s departure time: %w", op, o.ID, err)
		}
		arriveAt, err := time.Parse(time.RFC3339, o.Arrival.Time)
		if err != nil {
			return nil, fmt.Errorf("%s: offer %s arrival time: %w", op, o.ID, err)
		}
		currency := strings.ToUpper(o.Price.Currency)
		price, err := ToMinor(o.Price.Amount, currency)
		if err != nil {
			return nil, fmt.Errorf("%s: offer %s price: %w", op, o.ID, err)
		}
		if price <= 0 {
			continue
		}

		flightNumber := o.FlightNumber
		if flightNumber == "" {
			flightNumber = o.Airline.Code
		}
		offers = append(offers, models.FlightOffer{
			OfferID:       o.ID,
			Airline:       o.Airline.Name,
			FlightNumber:  flightNumber,
			Origin:        strings.ToUpper(o.Departure.Airport),
			Destination:   strings.ToUpper(o.Arrival.Airport),
			DepartureTime: departAt.UTC(),
			ArrivalTime:   arriveAt.UTC(),
			CabinClass:    strings.ToLower(o.CabinClass),
			Stops:         o.Stops,
			PriceMinor:    price,
			Currency:      currency,
			SeatsLeft:     o.SeatsLeft,
		})
	}
	return offers, nil
}
