package handler

import (
	"net/http"

	"github.com/mcoot/authservice/internal/api/apierr"
	"github.com/mcoot/authservice/internal/api/request"
	"github.com/mcoot/authservice/internal/api/response"
	"github.com/mcoot/authservice/internal/services/account"
)

// AuthHandler handles the public registration and login endpoints
type AuthHandler struct {
	accounts *account.Service
	errs     *apierr.Writer
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(accounts *account.Service, errs *apierr.Writer) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		errs:     errs,
	}
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if err := request.Decode(w, r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	profile, err := h.accounts.Register(r.Context(), account.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.AccountFromProfile(profile))
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if err := request.Decode(w, r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	result, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, response.LoginResponseFromResult(result))
}
