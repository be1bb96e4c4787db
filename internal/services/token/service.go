package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mcoot/authservice/internal/dependencies/clock"
	"github.com/mcoot/authservice/internal/model"
)

// Config holds the signing configuration. It is copied at construction and never changes afterwards.
type Config struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// DefaultConfig returns the default token configuration; Secret must still be supplied
func DefaultConfig() Config {
	return Config{
		TTL:    24 * time.Hour,
		Issuer: "authservice",
	}
}

// Validate checks the configuration is usable for signing
func (c Config) Validate() error {
	if c.Secret == "" {
		return errors.New("token signing secret is required")
	}
	if c.TTL <= 0 {
		return fmt.Errorf("token TTL must be positive, got %s", c.TTL)
	}
	return nil
}

// Token is a signed bearer token and the instant it stops being accepted
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Claims are the verified contents of a token
type Claims struct {
	AccountID model.AccountID
	Username  string
	Role      model.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Identity returns the caller identity carried by the claims
func (c Claims) Identity() model.Identity {
	return model.Identity{ID: c.AccountID, Username: c.Username, Role: c.Role}
}

type jwtClaims struct {
	AccountID string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and verifies HS256 tokens
type Service struct {
	secret []byte
	ttl    time.Duration
	issuer string
	clock  clock.Clock
	parser *jwt.Parser
}

// New creates a token service from a validated configuration
func New(cfg Config, clk clock.Clock) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(clk.Now),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}

	return &Service{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		clock:  clk,
		parser: jwt.NewParser(options...),
	}, nil
}

// TTL returns how long issued tokens remain valid
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for the given identity, valid for the configured TTL
func (s *Service) Issue(identity model.Identity) (Token, error) {
	now := s.clock.Now()
	expiresAt := jwt.NewNumericDate(expiryFor(now, s.ttl))

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		AccountID: string(identity.ID),
		Username:  identity.Username,
		Role:      string(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: expiresAt,
		},
	})

	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: expiresAt.Time.UTC()}, nil
}

// expiryFor rounds now+ttl up to the next whole second, since exp is
// encoded in seconds and a token must never live shorter than ttl
func expiryFor(now time.Time, ttl time.Duration) time.Time {
	exp := now.Add(ttl)
	if rounded := exp.Truncate(jwt.TimePrecision); rounded.Before(exp) {
		return rounded.Add(jwt.TimePrecision)
	}
	return exp
}

// Verify checks the signature and expiry of raw and returns its claims.
// A token is expired from the instant named by its exp claim onwards.
// Expired tokens fail with model.ErrTokenExpired; anything else wrong fails with model.ErrTokenInvalid.
func (s *Service) Verify(raw string) (Claims, error) {
	parsed, err := s.parser.ParseWithClaims(raw, &jwtClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, model.ErrTokenExpired
		}
		return Claims{}, model.ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*jwtClaims)
	if !ok || !parsed.Valid {
		return Claims{}, model.ErrTokenInvalid
	}
	role := model.Role(claims.Role)
	if claims.AccountID == "" || claims.Username == "" || !role.Valid() {
		return Claims{}, model.ErrTokenInvalid
	}

	out := Claims{
		AccountID: model.AccountID(claims.AccountID),
		Username:  claims.Username,
		Role:      role,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	return out, nil
}
