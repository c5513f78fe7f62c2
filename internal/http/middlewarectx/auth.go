// Package middlewarectx содержит HTTP middleware: проверку JWT и ограничение частоты запросов.
//
// JWTMiddleware проверяет Bearer-токен из заголовка Authorization и кладёт
// в контекст uid и email пользователя. OptionalJWTMiddleware делает то же,
// но пропускает анонимные запросы дальше.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/splickets/internal/http/response"
	"github.com/magabrotheeeer/splickets/internal/lib/jwt"
	"github.com/magabrotheeeer/splickets/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserUID ключ uid пользователя в контексте.
	UserUID Key = "user_uid"
	// Email ключ email пользователя в контексте.
	Email Key = "email"
)

const bearerPrefix = "Bearer "

// TokenValidator проверяет JWT и возвращает его claims.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*jwt.CustomClaims, error)
}

// UserUIDFrom достаёт uid пользователя из контекста.
func UserUIDFrom(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(UserUID).(string)
	return uid, ok && uid != ""
}

// EmailFrom достаёт email пользователя из контекста.
func EmailFrom(ctx context.Context) string {
	email, _ := ctx.Value(Email).(string)
	return email
}

// WithUser возвращает контекст с данными пользователя.
func WithUser(ctx context.Context, userUID, email string) context.Context {
	ctx = context.WithValue(ctx, UserUID, userUID)
	return context.WithValue(ctx, Email, email)
}

// JWTMiddleware требует валидный Bearer-токен, иначе отвечает 401.
func JWTMiddleware(auth TokenValidator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, bearerPrefix) {
				log.Warn("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}

			claims, err := auth.ValidateToken(r.Context(), strings.TrimPrefix(authHeader, bearerPrefix))
			if err != nil {
				log.Warn("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.UserUID, claims.Email)))
		})
	}
}

// OptionalJWTMiddleware добавляет пользователя в контекст, если токен передан и валиден.
// Запросы без токена или с невалидным токеном обрабатываются как анонимные.
func OptionalJWTMiddleware(auth TokenValidator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, bearerPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ValidateToken(r.Context(), strings.TrimPrefix(authHeader, bearerPrefix))
			if err != nil {
				log.Debug("ignoring invalid optional token",
					slog.String("request_id", middleware.GetReqID(r.Context())), sl.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.UserUID, claims.Email)))
		})
	}
}
