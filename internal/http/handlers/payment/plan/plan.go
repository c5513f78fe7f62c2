// Package plan содержит обработчики шагов оплаты бронирования: создание
// намерения оплаты депозита, подтверждение после оплаты на клиенте и
// создание подписки на рассрочку. Все три принимают booking_id.
package plan

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
	"github.com/magabrotheeeer/splickets/internal/paymentprovider"
	"github.com/magabrotheeeer/splickets/internal/services/payment"
	"github.com/magabrotheeeer/splickets/internal/storage"
)

// Request идентификатор бронирования.
type Request struct {
	BookingID int64 `json:"booking_id" validate:"required,min=1"`
}

// Service шаги оплаты.
type Service interface {
	CreateIntent(ctx context.Context, userUID string, bookingID int64) (*payment.IntentResult, error)
	Confirm(ctx context.Context, userUID string, bookingID int64) (*models.PaymentPlan, error)
	SetupSubscriptionForBooking(ctx context.Context, userUID string, bookingID int64) (*models.PaymentPlan, error)
}

type step func(ctx context.Context, userUID string, bookingID int64) (any, error)

// Handler общий обработчик одного шага оплаты.
type Handler struct {
	log      *slog.Logger
	op       string
	step     step
	validate *validator.Validate
}

func newHandler(log *slog.Logger, op string, s step) *Handler {
	return &Handler{
		log:      log,
		op:       op,
		step:     s,
		validate: validator.New(),
	}
}

// NewIntent godoc
// @Summary Создать намерение оплаты депозита
// @Description Повторный вызов возвращает уже открытое намерение.
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body Request true "Бронирование"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /payments/intent [post]
// @Security BearerAuth
func NewIntent(log *slog.Logger, service Service) *Handler {
	return newHandler(log, "handlers.payment.intent", func(ctx context.Context, uid string, id int64) (any, error) {
		return service.CreateIntent(ctx, uid, id)
	})
}

// NewConfirm godoc
// @Summary Подтвердить оплату депозита
// @Description Проверяет статус намерения у процессора и подтверждает бронирование.
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body Request true "Бронирование"
// @Success 200 {object} response.Response
// @Failure 402 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /payments/confirm [post]
// @Security BearerAuth
func NewConfirm(log *slog.Logger, service Service) *Handler {
	return newHandler(log, "handlers.payment.confirm", func(ctx context.Context, uid string, id int64) (any, error) {
		return service.Confirm(ctx, uid, id)
	})
}

// NewSubscription godoc
// @Summary Создать подписку на рассрочку
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body Request true "Бронирование"
// @Success 200 {object} response.Response
// @Failure 409 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 502 {object} response.ErrorResponse
// @Router /payments/subscription [post]
// @Security BearerAuth
func NewSubscription(log *slog.Logger, service Service) *Handler {
	return newHandler(log, "handlers.payment.subscription", func(ctx context.Context, uid string, id int64) (any, error) {
		return service.SetupSubscriptionForBooking(ctx, uid, id)
	})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(
		slog.String("op", h.op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := middlewarectx.UserUIDFrom(r.Context())
	if !ok {
		log.Error("user UID not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	var req Request
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

	log = log.With(slog.Int64("booking_id", req.BookingID))
	res, err := h.step(r.Context(), userUID, req.BookingID)
	if err != nil {
		code, msg := statusFor(err)
		if code >= http.StatusInternalServerError {
			log.Error("payment step failed", sl.Err(err))
		} else {
			log.Info("payment step rejected", sl.Err(err))
		}
		w.WriteHeader(code)
		render.JSON(w, r, response.Error(msg))
		return
	}

	log.Info("payment step done")
	render.JSON(w, r, response.OKWithData(res))
}

func statusFor(err error) (int, string) {
	var apiErr *paymentprovider.APIError
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, payment.ErrForbidden):
		return http.StatusNotFound, "booking not found"
	case errors.Is(err, payment.ErrInvalidTransition):
		return http.StatusConflict, "payment plan is not in a state that allows this operation"
	case errors.Is(err, payment.ErrPaymentNotSucceeded):
		return http.StatusPaymentRequired, "deposit payment has not succeeded yet"
	case errors.Is(err, payment.ErrNoInstallments):
		return http.StatusUnprocessableEntity, "booking has no installments"
	case errors.Is(err, payment.ErrSetupFailed):
		return http.StatusBadGateway, "installment subscription could not be created"
	case errors.Is(err, paymentprovider.ErrNotConfigured):
		return http.StatusServiceUnavailable, "payments are not configured"
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, "payment provider error"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
