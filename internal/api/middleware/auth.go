package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/mcoot/authservice/internal/api/apierr"
	"github.com/mcoot/authservice/internal/model"
	"github.com/mcoot/authservice/internal/services/token"
)

// TokenVerifier checks a raw bearer token
type TokenVerifier interface {
	Verify(raw string) (token.Claims, error)
}

// AccountLookup loads the account a token refers to
type AccountLookup interface {
	GetAccount(ctx context.Context, id model.AccountID) (*model.Account, error)
}

type identityKey struct{}

// Auth creates authentication middleware. A request passes only with a
// valid, unexpired bearer token for an account that exists and is active;
// the account existence check runs before the active check. The attached
// identity is read from the stored account, not the token claims.
func Auth(tokens TokenVerifier, accounts AccountLookup, errs *apierr.Writer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractToken(r)
			if raw == "" {
				errs.Write(w, r, model.ErrNoToken)
				return
			}

			claims, err := tokens.Verify(raw)
			if err != nil {
				errs.Write(w, r, err)
				return
			}

			account, err := accounts.GetAccount(r.Context(), claims.AccountID)
			if err != nil {
				if errors.Is(err, model.ErrAccountNotFound) {
					errs.Write(w, r, model.ErrUnknownAccount)
					return
				}
				errs.Write(w, r, model.Persistence(err))
				return
			}

			if !account.IsActive {
				errs.Write(w, r, model.ErrAccountDeactivated)
				return
			}

			// The stored account is authoritative for username and role
			ctx := WithIdentity(r.Context(), account.Identity())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken returns the bearer token from the Authorization header
func extractToken(r *http.Request) string {
	scheme, value, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}

// WithIdentity returns a context carrying the verified caller
func WithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFrom returns the verified caller from the request context
func IdentityFrom(ctx context.Context) (model.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(model.Identity)
	return identity, ok
}

// MustGetIdentity returns the verified caller or panics
func MustGetIdentity(ctx context.Context) model.Identity {
	identity, ok := IdentityFrom(ctx)
	if !ok {
		panic("no identity in context - auth middleware not applied?")
	}
	return identity
}
