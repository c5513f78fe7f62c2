// Package search реализует поиск рейсов через поставщика данных.
//
// Параметры приходят в query-строке, проходят валидацию тегами и затем
// доменную проверку flights.ParseQuery (коды IATA, даты, число пассажиров).
package search

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/magabrotheeeer/splickets/internal/http/response"
	"github.com/magabrotheeeer/splickets/internal/lib/sl"
	"github.com/magabrotheeeer/splickets/internal/models"
	"github.com/magabrotheeeer/splickets/internal/services/flights"
)

// Service поиск предложений.
type Service interface {
	Search(ctx context.Context, q models.FlightSearch) ([]models.FlightOffer, error)
}

// Handler обрабатывает GET /flights/search.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
	now      func() time.Time
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
		now:      time.Now,
	}
}

// ServeHTTP godoc
// @Summary Поиск рейсов
// @Tags Flights
// @Produce json
// @Param origin query string true "IATA код вылета"
// @Param destination query string true "IATA код прилёта"
// @Param departure_date query string true "Дата вылета YYYY-MM-DD"
// @Param return_date query string false "Дата возврата YYYY-MM-DD"
// @Param passengers query int false "Пассажиры 1..9"
// @Param cabin query string false "economy, premium_economy, business, first"
// @Param currency query string false "Валюта цен"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /flights/search [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.flights.search"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	q := r.URL.Query()
	raw := models.DummyFlightSearch{
		Origin:        q.Get("origin"),
		Destination:   q.Get("destination"),
		DepartureDate: q.Get("departure_date"),
		ReturnDate:    q.Get("return_date"),
		Passengers:    1,
		CabinClass:    q.Get("cabin"),
		Currency:      q.Get("currency"),
	}
	if p := q.Get("passengers"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			log.Info("invalid passengers parameter", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("passengers must be a number"))
			return
		}
		raw.Passengers = n
	}

	if err := h.validate.Struct(raw); err != nil {
		log.Info("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	search, err := flights.ParseQuery(raw, h.now())
	if err != nil {
		log.Info("invalid search query", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error(err.Error()))
		return
	}

	offers, err := h.service.Search(r.Context(), search)
	if errors.Is(err, flights.ErrInvalidQuery) {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error(err.Error()))
		return
	}
	if err != nil {
		log.Error("flight search failed", sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("flight provider unavailable"))
		return
	}

	log.Info("flight search done", slog.Int("offers", len(offers)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"offers": offers,
		"count":  len(offers),
	}))
}
