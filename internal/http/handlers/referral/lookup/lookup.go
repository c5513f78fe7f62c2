// Package lookup проверяет реферальный код перед применением при бронировании.
package lookup

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/splickets/internal/http/response"
	"github.com/magabrotheeeer/splickets/internal/lib/sl"
	"github.com/magabrotheeeer/splickets/internal/models"
	"github.com/magabrotheeeer/splickets/internal/services/referral"
	"github.com/magabrotheeeer/splickets/internal/storage"
)

// Service поиск кода.
type Service interface {
	Lookup(ctx context.Context, code string) (*models.PromoCode, error)
}

// Result ответ проверки. Владелец кода наружу не отдаётся.
type Result struct {
	Code            string `json:"code"`
	Valid           bool   `json:"valid"`
	DiscountPercent int    `json:"discount_percent"`
}

// Handler обрабатывает GET /referral/{code}.
type Handler struct {
	log             *slog.Logger
	service         Service
	discountPercent int
}

// New создаёт Handler. discountPercent скидка, которую даёт действующий код.
func New(log *slog.Logger, service Service, discountPercent int) *Handler {
	return &Handler{
		log:             log,
		service:         service,
		discountPercent: discountPercent,
	}
}

// ServeHTTP godoc
// @Summary Проверить реферальный код
// @Tags Referral
// @Produce json
// @Param code path string true "Код"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /referral/{code} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.referral.lookup"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	promo, err := h.service.Lookup(r.Context(), chi.URLParam(r, "code"))
	switch {
	case err == nil:
	case errors.Is(err, referral.ErrInvalidCode):
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("invalid referral code format"))
		return
	case errors.Is(err, storage.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("referral code not found"))
		return
	default:
		log.Error("failed to look up referral code", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, response.OKWithData(Result{
		Code:            promo.Code,
		Valid:           true,
		DiscountPercent: h.discountPercent,
	}))
}
