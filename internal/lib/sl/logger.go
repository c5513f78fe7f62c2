package sl

import (
	"io"
	"log/slog"
	"os"
)

const envProd = "prod"

// SetupLogger создаёт логгер по окружению: JSON уровня info для prod,
// текст уровня debug для остальных.
func SetupLogger(env string) *slog.Logger {
	return NewLogger(env, os.Stdout)
}

// NewLogger то же, что SetupLogger, но пишет в w.
func NewLogger(env string, w io.Writer) *slog.Logger {
	if env == envProd {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
