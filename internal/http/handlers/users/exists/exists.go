// Package exists проверяет, зарегистрирован ли email. Клиент вызывает его
// перед выбором между формами входа и регистрации.
package exists

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/magabrotheeeer/splickets/internal/http/response"
	"github.com/magabrotheeeer/splickets/internal/lib/sl"
)

// Service проверка наличия пользователя одной выборкой из БД.
type Service interface {
	UserExists(ctx context.Context, email string) (bool, error)
}

// Handler обрабатывает GET /users/exists?email=.
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
// @Summary Проверка существования пользователя
// @Tags Users
// @Produce json
// @Param email query string true "Email"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /users/exists [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.exists"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	email := r.URL.Query().Get("email")
	if err := h.validate.Var(email, "required,email"); err != nil {
		log.Info("invalid email in query", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("query parameter email must be a valid email"))
		return
	}

	ok, err := h.service.UserExists(r.Context(), email)
	if err != nil {
		log.Error("failed to check user", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"exists": ok,
	}))
}
