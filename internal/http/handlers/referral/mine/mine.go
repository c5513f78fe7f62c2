// Package mine выдаёт текущему пользователю его реферальный код, создавая его при первом обращении.
package mine

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/splickets/internal/http/middlewarectx"
	"github.com/magabrotheeeer/splickets/internal/http/response"
	"github.com/magabrotheeeer/splickets/internal/lib/sl"
	"github.com/magabrotheeeer/splickets/internal/models"
	"github.com/magabrotheeeer/splickets/internal/services/referral"
	"github.com/magabrotheeeer/splickets/internal/storage"
)

// Users чтение профиля для инициалов кода.
type Users interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

// Service выдача кода.
type Service interface {
	Issue(ctx context.Context, user models.User) (*models.PromoCode, error)
}

// Handler обрабатывает GET /referral.
type Handler struct {
	log     *slog.Logger
	users   Users
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, users Users, service Service) *Handler {
	return &Handler{
		log:     log,
		users:   users,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Мой реферальный код
// @Tags Referral
// @Produce json
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Failure 503 {object} response.ErrorResponse
// @Router /referral [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.referral.mine"

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

	user, err := h.users.GetUser(r.Context(), userUID)
	if errors.Is(err, storage.ErrNotFound) {
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}
	if err != nil {
		log.Error("failed to load user", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	promo, err := h.service.Issue(r.Context(), *user)
	if errors.Is(err, referral.ErrCodeExhausted) {
		log.Error("referral code space exhausted", sl.Err(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("could not issue referral code, try again later"))
		return
	}
	if err != nil {
		log.Error("failed to issue referral code", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, response.OKWithData(promo))
}
