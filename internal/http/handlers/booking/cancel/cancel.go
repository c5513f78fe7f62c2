// Package cancel отменяет бронирование, пока депозит не оплачен.
package cancel

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

// Service отмена бронирования.
type Service interface {
	Cancel(ctx context.Context, userUID string, id int64) (*models.BookingDetails, error)
}

// Handler обрабатывает POST /bookings/{id}/cancel.
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
// @Summary Отменить бронирование
// @Tags Bookings
// @Produce json
// @Param id path int true "ID бронирования"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /bookings/{id}/cancel [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.booking.cancel"

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

	details, err := h.service.Cancel(r.Context(), userUID, id)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, booking.ErrForbidden):
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("booking not found"))
		return
	case errors.Is(err, booking.ErrNotCancellable):
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("booking can no longer be cancelled"))
		return
	default:
		log.Error("failed to cancel booking", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("booking cancelled", slog.Int64("booking_id", id))
	render.JSON(w, r, response.OKWithData(details))
}
