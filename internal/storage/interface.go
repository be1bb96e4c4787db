package storage

import (
	"context"

	"github.com/mcoot/authservice/internal/model"
)

// Storage defines the interface for account persistence.
//
// Every backend enforces username and email uniqueness itself and reports a
// violation as a model.KindDuplicateIdentity error, so a writer that loses a
// race against a concurrent registration still gets a duplicate error rather
// than silently creating a second identity.
type Storage interface {
	// CreateAccount inserts a new account
	CreateAccount(ctx context.Context, account *model.Account) error
	// GetAccount returns model.ErrAccountNotFound when id is unknown
	GetAccount(ctx context.Context, id model.AccountID) (*model.Account, error)
	// FindAccountByEmailOrUsername matches either field; empty arguments are ignored
	FindAccountByEmailOrUsername(ctx context.Context, email, username string) (*model.Account, error)
	// UpdateAccount writes only the fields set in update, re-checking uniqueness
	// of a changed username or email against other accounts. It returns
	// model.ErrAccountNotFound when id is unknown.
	UpdateAccount(ctx context.Context, id model.AccountID, update model.AccountUpdate) error
}
