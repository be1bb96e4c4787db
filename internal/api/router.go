package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/authservice/internal/api/apierr"
	"github.com/mcoot/authservice/internal/api/handler"
	"github.com/mcoot/authservice/internal/api/middleware"
	"github.com/mcoot/authservice/internal/api/response"
	"github.com/mcoot/authservice/internal/services/account"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	AccountService *account.Service
	Tokens         middleware.TokenVerifier
	Accounts       middleware.AccountLookup
	// ExposeErrorDetails adds diagnostic detail to 500 responses; development only
	ExposeErrorDetails bool
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	errs := apierr.NewWriter(cfg.Logger, cfg.ExposeErrorDetails)
	r.NotFoundHandler = http.HandlerFunc(errs.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(errs.MethodNotAllowed)

	// Create handlers
	authHandler := handler.NewAuthHandler(cfg.AccountService, errs)
	userHandler := handler.NewUserHandler(cfg.AccountService, errs)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.Tokens, cfg.Accounts, errs)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger, errs)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.RequestID)
	api.Use(loggingMiddleware)
	api.Use(recoveryMiddleware)

	// Public auth routes
	api.HandleFunc("/auth/register", authHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)

	// Protected routes; all act on the caller's own account
	users := api.PathPrefix("/users").Subrouter()
	users.Use(authMiddleware)
	users.HandleFunc("/me", userHandler.GetMe).Methods(http.MethodGet)
	users.HandleFunc("/me", userHandler.UpdateMe).Methods(http.MethodPatch)
	users.HandleFunc("/me", userHandler.Deactivate).Methods(http.MethodDelete)
	users.HandleFunc("/me/password", userHandler.ChangePassword).Methods(http.MethodPut)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.HealthResponse{Status: "ok"})
}
