package model

import "time"

// AccountID uniquely identifies an account across the system
type AccountID string

// Role is the single permission flag carried by an account
type Role string

const (
	RolePlayer Role = "player"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RolePlayer, RoleAdmin:
		return true
	}
	return false
}

// Account is a registered user with credentials.
// PasswordHash never leaves the storage/service boundary.
type Account struct {
	ID           AccountID  `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"password_hash"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// Clone returns a copy that shares no pointers with a
func (a *Account) Clone() *Account {
	c := *a
	if a.LastLoginAt != nil {
		t := *a.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}

// Identity is the verified caller attached to a request by the auth middleware
type Identity struct {
	ID       AccountID
	Username string
	Role     Role
}

// Profile is the public view of an account returned to callers
type Profile struct {
	ID          AccountID  `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

// Profile returns the account's non-secret fields
func (a *Account) Profile() Profile {
	c := a.Clone()
	return Profile{
		ID:          c.ID,
		Username:    c.Username,
		Email:       c.Email,
		Role:        c.Role,
		IsActive:    c.IsActive,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		LastLoginAt: c.LastLoginAt,
	}
}

// Identity returns the identity a token for this account carries
func (a *Account) Identity() Identity {
	return Identity{ID: a.ID, Username: a.Username, Role: a.Role}
}

// AccountUpdate lists the columns a single write changes. Nil fields keep
// their stored value, so concurrent writes to different fields do not
// overwrite each other.
type AccountUpdate struct {
	Username     *string
	Email        *string
	PasswordHash *string
	Role         *Role
	IsActive     *bool
	LastLoginAt  *time.Time
	UpdatedAt    time.Time
}

// Apply copies the set fields of u onto a
func (u AccountUpdate) Apply(a *Account) {
	if u.Username != nil {
		a.Username = *u.Username
	}
	if u.Email != nil {
		a.Email = *u.Email
	}
	if u.PasswordHash != nil {
		a.PasswordHash = *u.PasswordHash
	}
	if u.Role != nil {
		a.Role = *u.Role
	}
	if u.IsActive != nil {
		a.IsActive = *u.IsActive
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		a.LastLoginAt = &t
	}
	a.UpdatedAt = u.UpdatedAt
}
