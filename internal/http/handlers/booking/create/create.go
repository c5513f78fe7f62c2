// Package create реализует создание бронирования по ранее найденному предложению.
//
// Бронирование создаётся в статусе PENDING вместе с планом оплаты: депозит
// и, если клиент выбрал рассрочку, график ежемесячных платежей.
package create

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/magabrotheeeer/splickets/internal/http/middlewarectx"
	"github.com/magabrotheeeer/splickets/internal/http/response"
	"github.com/magabrotheeeer/splickets/internal/lib/sl"
	"github.com/magabrotheeeer/splickets/internal/models"
	"github.com/magabrotheeeer/splickets/internal/services/booking"
	"github.com/magabrotheeeer/splickets/internal/services/flights"
	"github.com/magabrotheeeer/splickets/internal/services/installment"
	"github.com/magabrotheeeer/splickets/internal/services/referral"
	"github.com/magabrotheeeer/splickets/internal/storage"
)

// Service создание бронирования.
type Service interface {
	Create(ctx context.Context, userUID string, req models.DummyBooking) (*models.BookingDetails, error)
}

// Handler обрабатывает POST /bookings.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создать бронирование
// @Tags Bookings
// @Accept json
// @Produce json
// @Param request body models.DummyBooking true "Предложение, пассажиры, рассрочка, промокод"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /bookings [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.booking.create"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := middlewarectx.UserUIDFrom(r.Context())
	if !ok {
		log.Error("user UID not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req models.DummyBooking
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Info("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	details, err := h.service.Create(r.Context(), userUID, req)
	if err != nil {
		code, msg := statusFor(err)
		if code == http.StatusInternalServerError {
			log.Error("failed to create booking", sl.Err(err))
		} else {
			log.Info("booking rejected", sl.Err(err))
		}
		w.WriteHeader(code)
		render.JSON(w, r, response.Error(msg))
		return
	}

	log.Info("booking created", slog.Int64("booking_id", details.Booking.ID))
	w.WriteHeader(http.StatusCreated)
	render.JSON(w, r, response.OKWithData(details))
}

var scheduleErrors = []error{
	installment.ErrInstallmentCount,
	installment.ErrNothingToFinance,
	installment.ErrScheduleTooLate,
	installment.ErrInvalidTotal,
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, flights.ErrOfferNotFound):
		return http.StatusNotFound, "flight offer not found or expired, search again"
	case errors.Is(err, booking.ErrDeparted):
		return http.StatusUnprocessableEntity, "flight has already departed"
	case errors.Is(err, referral.ErrInvalidCode), errors.Is(err, storage.ErrNotFound):
		return http.StatusUnprocessableEntity, "promo code is not valid"
	case errors.Is(err, referral.ErrOwnCode):
		return http.StatusUnprocessableEntity, "you cannot use your own promo code"
	}
	for _, target := range scheduleErrors {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity, target.Error()
		}
	}
	return http.StatusInternalServerError, "internal error"
}
