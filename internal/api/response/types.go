package response

import (
	"time"

	"github.com/mcoot/authservice/internal/model"
	"github.com/mcoot/authservice/internal/services/account"
)

// Account represents an account in API responses. It never carries the password hash.
type Account struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

// AccountFromProfile converts a model.Profile to a response Account
func AccountFromProfile(p *model.Profile) Account {
	return Account{
		ID:          string(p.ID),
		Username:    p.Username,
		Email:       p.Email,
		Role:        string(p.Role),
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		LastLoginAt: p.LastLoginAt,
	}
}

// LoginResponse is the response for a successful login
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Account   `json:"user"`
}

// LoginResponseFromResult creates a LoginResponse from a login result
func LoginResponseFromResult(res *account.LoginResult) LoginResponse {
	return LoginResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      AccountFromProfile(&res.Profile),
	}
}

// MessageResponse carries a human-readable confirmation
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the response for the health endpoint
type HealthResponse struct {
	Status string `json:"status"`
}
