// Package read возвращает бронирование владельцу вместе с рейсом и планом оплаты.
package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/splickets/internal/http/middlewarectx"
	"github.com/magabrotheeeer/splickets/internal/http/response"
	"github.com/magabrotheeeer/splickets/internal/lib/sl"
	"github.com/magabrotheeeer/splickets/internal/models"
	"github.com/magabrotheeeer/splickets/internal/services/booking"
	"github.com/magabrotheeeer/splickets/internal/storage"
)

// Service чтение бронирования.
type Service interface {
	Get(ctx context.Context, userUID string, id int64) (*models.BookingDetails, error)
}

// Handler обрабатывает GET /bookings/{id}.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Получить бронирование
// @Tags Bookings
// @Produce json
// @Param id path int true "ID бронирования"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /bookings/{id} [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.booking.read"

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

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		log.Info("failed to decode id from url", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid booking id"))
		return
	}

	details, err := h.service.Get(r.Context(), userUID, id)
	// чужое бронирование отдаём как отсутствующее
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, booking.ErrForbidden) {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("booking not found"))
		return
	}
	if err != nil {
		log.Error("failed to read booking", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, response.OKWithData(details))
}
