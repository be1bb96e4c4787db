package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/authservice/internal/middleware"
)

// Logging creates request logging middleware for the API
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Logging(logger)
}

// RequestID tags each API request with a correlation id
func RequestID(next http.Handler) http.Handler {
	return middleware.RequestID(next)
}
