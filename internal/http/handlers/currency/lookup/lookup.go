// Package lookup определяет валюту отображения цен для клиента.
package lookup

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/splickets/internal/http/middlewarectx"
	"github.com/magabrotheeeer/splickets/internal/http/response"
	"github.com/magabrotheeeer/splickets/internal/services/currency"
)

const (
	// HeaderPreferred заголовок с валютой, сохранённой в браузере.
	HeaderPreferred = "X-Preferred-Currency"
	// CookiePreferred cookie с валютой, сохранённой в браузере.
	CookiePreferred = "preferred_currency"
)

// Service разрешение валюты по приоритету источников.
type Service interface {
	Resolve(ctx context.Context, req currency.Request) currency.Result
}

// Handler обрабатывает GET /currency.
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
// @Summary Валюта пользователя
// @Description Сохранённая валюта пользователя, затем браузерная, затем по IP, иначе USD.
// @Tags Currency
// @Produce json
// @Param X-Preferred-Currency header string false "Валюта из браузера"
// @Success 200 {object} response.Response
// @Router /currency [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.currency.lookup"

	req := currency.Request{
		Browser: r.Header.Get(HeaderPreferred),
		IP:      clientIP(r.RemoteAddr),
	}
	if req.Browser == "" {
		if c, err := r.Cookie(CookiePreferred); err == nil {
			req.Browser = c.Value
		}
	}
	if uid, ok := middlewarectx.UserUIDFrom(r.Context()); ok {
		req.UserUID = uid
	}

	res := h.service.Resolve(r.Context(), req)
	h.log.Debug("currency resolved",
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("currency", res.Currency),
		slog.String("source", string(res.Source)),
	)

	render.JSON(w, r, response.OKWithData(map[string]any{
		"currency":  res.Currency,
		"source":    res.Source,
		"country":   res.Country,
		"supported": currency.Supported(),
	}))
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
