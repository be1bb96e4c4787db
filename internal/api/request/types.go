package request

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/mcoot/authservice/internal/model"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// RegisterRequest is the request body for registering an account
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest is the request body for a partial profile update.
// Absent fields are left unchanged.
type UpdateProfileRequest struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
}

// ChangePasswordRequest is the request body for changing password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Decode parses the JSON body of r into v. Malformed or empty bodies fail
// with a parse error before any validation runs.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return model.Parse(err)
	}
	// Reject trailing data after the first JSON value
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return model.Parse(errors.New("unexpected data after JSON body"))
	}
	return nil
}
