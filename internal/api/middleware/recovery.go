package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/authservice/internal/api/apierr"
	"github.com/mcoot/authservice/internal/middleware"
)

// Recovery creates panic recovery middleware for the API
// Returns JSON error responses on panic
func Recovery(logger *slog.Logger, errs *apierr.Writer) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, errs.Panic)
}
