// Package testemail ставит в очередь тестовое письмо, чтобы проверить доставку почты.
package testemail

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/magabrotheeeer/splickets/internal/http/middlewarectx"
	"github.com/magabrotheeeer/splickets/internal/http/response"
	"github.com/magabrotheeeer/splickets/internal/lib/sl"
	"github.com/magabrotheeeer/splickets/internal/models"
)

// Request адрес получателя. Пустой адрес заменяется email из токена.
type Request struct {
	To   string `json:"to" validate:"omitempty,email"`
	Name string `json:"name" validate:"omitempty,max=100"`
}

// Queue постановка письма в очередь.
type Queue interface {
	Enqueue(ctx context.Context, msg models.EmailMessage) error
}

// Handler обрабатывает POST /email/test.
type Handler struct {
	log      *slog.Logger
	queue    Queue
	validate *validator.Validate
}

// New создаёт Handler.
func New(log *slog.Logger, queue Queue) *Handler {
	return &Handler{
		log:      log,
		queue:    queue,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Отправить тестовое письмо
// @Tags Email
// @Accept json
// @Produce json
// @Param request body Request false "Получатель"
// @Success 202 {object} response.Response
// @Failure 401 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /email/test [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.email.test"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if _, ok := middlewarectx.UserUIDFrom(r.Context()); !ok {
		log.Error("user UID not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
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
	if req.To == "" {
		req.To = middlewarectx.EmailFrom(r.Context())
	}
	if req.To == "" {
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("field To is a required field"))
		return
	}

	if req.Name == "" {
		req.Name = "there"
	}
	msg := models.EmailMessage{
		Kind: models.EmailTest,
		To:   req.To,
		Data: map[string]string{"first_name": req.Name},
	}
	if err := h.queue.Enqueue(r.Context(), msg); err != nil {
		log.Error("failed to enqueue test email", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not queue email"))
		return
	}

	log.Info("test email queued")
	w.WriteHeader(http.StatusAccepted)
	render.JSON(w, r, response.OKWithData(map[string]any{
		"to": req.To,
	}))
}
