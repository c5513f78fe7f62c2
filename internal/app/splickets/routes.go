package splickets

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	// Регистрация swagger-документа в swag.
	_ "github.com/magabrotheeeer/splickets/docs"
	"github.com/magabrotheeeer/splickets/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/splickets/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/splickets/internal/http/handlers/booking/cancel"
	"github.com/magabrotheeeer/splickets/internal/http/handlers/booking/create"
	"github.com/magabrotheeeer/splickets/internal/http/handlers/booking/read"
	currencylookup "github.com/magabrotheeeer/splickets/internal/http/handlers/currency/lookup"
	"github.com/magabrotheeeer/splickets/internal/http/handlers/currency/preferred"
	"github.com/magabrotheeeer/splickets/internal/http/handlers/email/testemail"
	"github.com/magabrotheeeer/splickets/internal/http/handlers/flights/search"
	"github.com/magabrotheeeer/splickets/internal/http/handlers/health"
	"github.com/magabrotheeeer/splickets/internal/http/handlers/payment/plan"
	"github.com/magabrotheeeer/splickets/internal/http/handlers/payment/webhook"
	referrallookup "github.com/magabrotheeeer/splickets/internal/http/handlers/referral/lookup"
	"github.com/magabrotheeeer/splickets/internal/http/handlers/referral/mine"
	"github.com/magabrotheeeer/splickets/internal/http/handlers/users/exists"
	"github.com/magabrotheeeer/splickets/internal/http/middlewarectx"
	"github.com/magabrotheeeer/splickets/internal/services/auth"
	"github.com/magabrotheeeer/splickets/internal/services/booking"
	"github.com/magabrotheeeer/splickets/internal/services/currency"
	"github.com/magabrotheeeer/splickets/internal/services/flights"
	"github.com/magabrotheeeer/splickets/internal/services/payment"
	"github.com/magabrotheeeer/splickets/internal/services/referral"
	"github.com/magabrotheeeer/splickets/internal/services/sender"
	"github.com/magabrotheeeer/splickets/internal/storage/repository"
)

// Services зависимости, нужные маршрутам.
type Services struct {
	Auth             *auth.Service
	Flights          *flights.Service
	Bookings         *booking.Service
	Currency         *currency.Service
	Payments         *payment.Service
	Referrals        *referral.Service
	Users            *repository.Storage
	Emails           *sender.Queue
	Limiter          *middlewarectx.RateLimiter
	Checks           map[string]health.Check
	ReferralDiscount int
}

// RegisterRoutes регистрирует все маршруты API.
func RegisterRoutes(r chi.Router, logger *slog.Logger, s Services) {
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Get("/health", health.New(logger, s.Checks).ServeHTTP)
		r.Post("/auth/register", register.New(logger, s.Auth).ServeHTTP)
		r.Post("/auth/login", login.New(logger, s.Auth).ServeHTTP)
		r.Get("/users/exists", exists.New(logger, s.Auth).ServeHTTP)
		r.Get("/flights/search", search.New(logger, s.Flights).ServeHTTP)
		r.Get("/referral/{code}", referrallookup.New(logger, s.Referrals, s.ReferralDiscount).ServeHTTP)

		// Подпись проверяется сервисом, токен не нужен
		r.Post("/payments/webhook", webhook.New(logger, s.Payments).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.OptionalJWTMiddleware(s.Auth, logger))
			r.Get("/currency", currencylookup.New(logger, s.Currency).ServeHTTP)
		})

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(s.Auth, logger))
			r.Use(s.Limiter.Middleware(logger))
			r.Put("/users/me/currency", preferred.New(logger, s.Currency).ServeHTTP)
			r.Post("/bookings", create.New(logger, s.Bookings).ServeHTTP)
			r.Get("/bookings/{id}", read.New(logger, s.Bookings).ServeHTTP)
			r.Post("/bookings/{id}/cancel", cancel.New(logger, s.Bookings).ServeHTTP)
			r.Post("/payments/intent", plan.NewIntent(logger, s.Payments).ServeHTTP)
			r.Post("/payments/confirm", plan.NewConfirm(logger, s.Payments).ServeHTTP)
			r.Post("/payments/subscription", plan.NewSubscription(logger, s.Payments).ServeHTTP)
			r.Get("/referral", mine.New(logger, s.Users, s.Referrals).ServeHTTP)
			r.Post("/email/test", testemail.New(logger, s.Emails).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
