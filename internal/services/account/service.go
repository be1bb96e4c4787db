package account

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mcoot/authservice/internal/dependencies/clock"
	"github.com/mcoot/authservice/internal/model"
	"github.com/mcoot/authservice/internal/services/password"
	"github.com/mcoot/authservice/internal/services/token"
	"github.com/mcoot/authservice/internal/storage"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 30
	maxEmailLength    = 254
)

// TokenIssuer issues bearer tokens for authenticated accounts
type TokenIssuer interface {
	Issue(identity model.Identity) (token.Token, error)
}

// RegisterInput holds the fields supplied at registration
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// UpdateProfileInput holds optional profile changes; nil fields are left untouched
type UpdateProfileInput struct {
	Username *string
	Email    *string
}

// LoginResult is returned from a successful login
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Profile   model.Profile
}

// Service implements account registration, login and self-service profile management
type Service struct {
	storage storage.Storage
	hasher  password.Hasher
	tokens  TokenIssuer
	clock   clock.Clock
	logger  *slog.Logger
}

// New creates a new account Service
func New(
	storage storage.Storage,
	hasher password.Hasher,
	tokens TokenIssuer,
	clock clock.Clock,
	logger *slog.Logger,
) *Service {
	return &Service{
		storage: storage,
		hasher:  hasher,
		tokens:  tokens,
		clock:   clock,
		logger:  logger.With(slog.String("component", "account-service")),
	}
}

// Register creates a player account and returns its public profile
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.Profile, error) {
	username, err := normalizeUsername(in.Username)
	if err != nil {
		return nil, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	_, err = s.storage.FindAccountByEmailOrUsername(ctx, email, username)
	if err == nil {
		return nil, model.ErrDuplicateIdentity
	}
	if !errors.Is(err, model.ErrAccountNotFound) {
		return nil, model.Persistence(err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, model.Persistence(err)
	}

	now := s.clock.Now()
	account := &model.Account{
		ID:           model.AccountID(uuid.NewString()),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RolePlayer,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.CreateAccount(ctx, account); err != nil {
		// A concurrent registration may win between the lookup and the insert
		if errors.Is(err, model.ErrDuplicateIdentity) {
			return nil, model.ErrDuplicateIdentity
		}
		return nil, model.Persistence(err)
	}

	s.logger.Info("account registered",
		slog.String("account_id", string(account.ID)),
		slog.String("username", account.Username),
	)

	profile := account.Profile()
	return &profile, nil
}

// Login verifies credentials, records the login time and issues a token.
// Unknown emails and wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, email, plain string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || plain == "" {
		return nil, model.Validation("Email and password are required")
	}

	account, err := s.storage.FindAccountByEmailOrUsername(ctx, email, "")
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, model.Persistence(err)
	}

	if !s.hasher.Verify(plain, account.PasswordHash) {
		s.logger.Debug("login rejected", slog.String("account_id", string(account.ID)))
		return nil, model.ErrInvalidCredentials
	}

	// Only reported once the password has verified
	if !account.IsActive {
		return nil, model.ErrAccountDeactivated
	}

	// Write only the login columns
	now := s.clock.Now()
	update := model.AccountUpdate{LastLoginAt: &now, UpdatedAt: now}
	if err := s.storage.UpdateAccount(ctx, account.ID, update); err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, model.Persistence(err)
	}
	update.Apply(account)

	tok, err := s.tokens.Issue(account.Identity())
	if err != nil {
		return nil, model.Persistence(err)
	}

	return &LoginResult{
		Token:     tok.Value,
		ExpiresAt: tok.ExpiresAt,
		Profile:   account.Profile(),
	}, nil
}

// GetProfile returns the public profile of an account
func (s *Service) GetProfile(ctx context.Context, id model.AccountID) (*model.Profile, error) {
	account, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	profile := account.Profile()
	return &profile, nil
}

// UpdateProfile applies the supplied username and email changes.
// Each changed field is checked against other accounts before saving.
func (s *Service) UpdateProfile(ctx context.Context, id model.AccountID, in UpdateProfileInput) (*model.Profile, error) {
	account, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	var update model.AccountUpdate
	changed := false

	if in.Username != nil {
		username, err := normalizeUsername(*in.Username)
		if err != nil {
			return nil, err
		}
		if username != account.Username {
			if err := s.ensureAvailable(ctx, id, "", username, model.ErrUsernameTaken); err != nil {
				return nil, err
			}
			update.Username = &username
			changed = true
		}
	}

	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return nil, err
		}
		if email != account.Email {
			if err := s.ensureAvailable(ctx, id, email, "", model.ErrEmailTaken); err != nil {
				return nil, err
			}
			update.Email = &email
			changed = true
		}
	}

	if changed {
		update.UpdatedAt = s.clock.Now()
		if err := s.storage.UpdateAccount(ctx, id, update); err != nil {
			return nil, model.Persistence(err)
		}
		update.Apply(account)
	}

	profile := account.Profile()
	return &profile, nil
}

// ChangePassword replaces the password after verifying the current one
func (s *Service) ChangePassword(ctx context.Context, id model.AccountID, current, next string) error {
	if current == "" || next == "" {
		return model.Validation("Current password and new password are required")
	}
	if err := validatePassword(next); err != nil {
		return err
	}

	account, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(current, account.PasswordHash) {
		return model.ErrCurrentPasswordIncorrect
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return model.Persistence(err)
	}

	update := model.AccountUpdate{PasswordHash: &hash, UpdatedAt: s.clock.Now()}
	if err := s.storage.UpdateAccount(ctx, id, update); err != nil {
		return model.Persistence(err)
	}

	s.logger.Info("password changed", slog.String("account_id", string(id)))
	return nil
}

// Deactivate disables an account permanently. Tokens already issued are
// refused by the auth middleware from then on.
func (s *Service) Deactivate(ctx context.Context, id model.AccountID) error {
	account, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	if !account.IsActive {
		return nil
	}

	inactive := false
	update := model.AccountUpdate{IsActive: &inactive, UpdatedAt: s.clock.Now()}
	if err := s.storage.UpdateAccount(ctx, id, update); err != nil {
		return model.Persistence(err)
	}

	s.logger.Info("account deactivated", slog.String("account_id", string(id)))
	return nil
}

// EnsureAdmin creates an admin account with the given credentials unless an
// account with that username or email already exists.
func (s *Service) EnsureAdmin(ctx context.Context, username, email, plain string) (*model.Profile, error) {
	profile, err := s.Register(ctx, RegisterInput{Username: username, Email: email, Password: plain})
	if err != nil {
		if errors.Is(err, model.ErrDuplicateIdentity) {
			s.logger.Info("admin account already present", slog.String("username", username))
			return nil, nil
		}
		return nil, err
	}

	admin := model.RoleAdmin
	if err := s.storage.UpdateAccount(ctx, profile.ID, model.AccountUpdate{Role: &admin, UpdatedAt: s.clock.Now()}); err != nil {
		return nil, model.Persistence(err)
	}
	account, err := s.load(ctx, profile.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("admin account created",
		slog.String("account_id", string(account.ID)),
		slog.String("username", account.Username),
	)

	adminProfile := account.Profile()
	return &adminProfile, nil
}

func (s *Service) load(ctx context.Context, id model.AccountID) (*model.Account, error) {
	account, err := s.storage.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return nil, model.ErrAccountNotFound
		}
		return nil, model.Persistence(err)
	}
	return account, nil
}

// ensureAvailable fails with taken if another account already holds the email or username
func (s *Service) ensureAvailable(ctx context.Context, self model.AccountID, email, username string, taken error) error {
	existing, err := s.storage.FindAccountByEmailOrUsername(ctx, email, username)
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return nil
		}
		return model.Persistence(err)
	}
	if existing.ID != self {
		return taken
	}
	return nil
}

func normalizeUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	if username == "" {
		return "", model.Validation("Username is required")
	}
	n := utf8.RuneCountInString(username)
	if n < minUsernameLength || n > maxUsernameLength {
		return "", model.Validation("Username must be between 3 and 30 characters")
	}
	if strings.IndexFunc(username, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}) >= 0 {
		return "", model.Validation("Username must not contain whitespace")
	}
	return username, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", model.Validation("Email is required")
	}
	if len(email) > maxEmailLength {
		return "", model.Validation("Please provide a valid email")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", model.Validation("Please provide a valid email")
	}
	return email, nil
}

func validatePassword(plain string) error {
	if plain == "" {
		return model.Validation("Password is required")
	}
	if utf8.RuneCountInString(plain) < password.MinLength {
		return model.Validation("Password must be at least 6 characters")
	}
	if len(plain) > password.MaxBytes {
		return model.Validation("Password must be at most 72 bytes")
	}
	return nil
}
