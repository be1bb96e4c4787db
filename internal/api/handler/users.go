package handler

import (
	"net/http"

	"github.com/mcoot/authservice/internal/api/apierr"
	"github.com/mcoot/authservice/internal/api/middleware"
	"github.com/mcoot/authservice/internal/api/request"
	"github.com/mcoot/authservice/internal/api/response"
	"github.com/mcoot/authservice/internal/services/account"
)

// UserHandler handles the caller's own profile endpoints.
// Every route acts on the authenticated identity; none takes a target id.
type UserHandler struct {
	accounts *account.Service
	errs     *apierr.Writer
}

// NewUserHandler creates a new user handler
func NewUserHandler(accounts *account.Service, errs *apierr.Writer) *UserHandler {
	return &UserHandler{
		accounts: accounts,
		errs:     errs,
	}
}

// GetMe handles GET /api/v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	profile, err := h.accounts.GetProfile(r.Context(), identity.ID)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AccountFromProfile(profile))
}

// UpdateMe handles PATCH /api/v1/users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	var req request.UpdateProfileRequest
	if err := request.Decode(w, r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	profile, err := h.accounts.UpdateProfile(r.Context(), identity.ID, account.UpdateProfileInput{
		Username: req.Username,
		Email:    req.Email,
	})
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AccountFromProfile(profile))
}

// ChangePassword handles PUT /api/v1/users/me/password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	var req request.ChangePasswordRequest
	if err := request.Decode(w, r, &req); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), identity.ID, req.CurrentPassword, req.NewPassword); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	response.Message(w, "Password updated successfully")
}

// Deactivate handles DELETE /api/v1/users/me
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	identity := middleware.MustGetIdentity(r.Context())

	if err := h.accounts.Deactivate(r.Context(), identity.ID); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	response.Message(w, "Account deactivated successfully")
}
