// Package storagetest holds a conformance suite run against every storage backend.
package storagetest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/authservice/internal/model"
	"github.com/mcoot/authservice/internal/storage"
)

// Suite exercises the storage.Storage contract. Backends embed it and set
// NewStorage; a fresh, empty store is created for every test.
type Suite struct {
	suite.Suite
	NewStorage func() storage.Storage

	Storage storage.Storage
	Ctx     context.Context
}

func (s *Suite) SetupTest() {
	s.Require().NotNil(s.NewStorage, "NewStorage must be set")
	s.Storage = s.NewStorage()
	s.Ctx = context.Background()
}

// NewAccount builds a valid account; times are truncated so round-trips compare equal
func NewAccount(username, email string) *model.Account {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return &model.Account{
		ID:           model.AccountID(uuid.NewString()),
		Username:     username,
		Email:        email,
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		Role:         model.RolePlayer,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Create tests

func (s *Suite) TestCreateAndGetAccount() {
	account := NewAccount("alice", "alice@x.com")
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, account))

	got, err := s.Storage.GetAccount(s.Ctx, account.ID)
	s.Require().NoError(err)
	s.Equal(account.Username, got.Username)
	s.Equal(account.Email, got.Email)
	s.Equal(account.PasswordHash, got.PasswordHash)
	s.Equal(model.RolePlayer, got.Role)
	s.True(got.IsActive)
	s.True(account.CreatedAt.Equal(got.CreatedAt))
	s.Nil(got.LastLoginAt)
}

func (s *Suite) TestCreateRejectsDuplicateUsername() {
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, NewAccount("alice", "alice@x.com")))

	err := s.Storage.CreateAccount(s.Ctx, NewAccount("alice", "other@x.com"))
	s.ErrorIs(err, model.ErrDuplicateIdentity)
}

func (s *Suite) TestCreateRejectsDuplicateEmail() {
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, NewAccount("alice", "alice@x.com")))

	err := s.Storage.CreateAccount(s.Ctx, NewAccount("bob", "alice@x.com"))
	s.ErrorIs(err, model.ErrDuplicateIdentity)

	// The losing write must not leave a partial index behind
	_, err = s.Storage.FindAccountByEmailOrUsername(s.Ctx, "", "bob")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *Suite) TestConcurrentCreateAdmitsOneWinner() {
	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Storage.CreateAccount(s.Ctx, NewAccount("racer", "racer@x.com"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.ErrorIs(err, model.ErrDuplicateIdentity)
	}
	s.Equal(1, succeeded)
}

// Lookup tests

func (s *Suite) TestGetAccountNotFound() {
	_, err := s.Storage.GetAccount(s.Ctx, model.AccountID(uuid.NewString()))
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *Suite) TestFindByEmail() {
	account := NewAccount("alice", "alice@x.com")
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, account))

	got, err := s.Storage.FindAccountByEmailOrUsername(s.Ctx, "alice@x.com", "")
	s.Require().NoError(err)
	s.Equal(account.ID, got.ID)
}

func (s *Suite) TestFindByUsername() {
	account := NewAccount("alice", "alice@x.com")
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, account))

	got, err := s.Storage.FindAccountByEmailOrUsername(s.Ctx, "", "alice")
	s.Require().NoError(err)
	s.Equal(account.ID, got.ID)
}

func (s *Suite) TestFindMatchesEitherField() {
	account := NewAccount("alice", "alice@x.com")
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, account))

	got, err := s.Storage.FindAccountByEmailOrUsername(s.Ctx, "nobody@x.com", "alice")
	s.Require().NoError(err)
	s.Equal(account.ID, got.ID)
}

func (s *Suite) TestFindNotFound() {
	_, err := s.Storage.FindAccountByEmailOrUsername(s.Ctx, "nobody@x.com", "nobody")
	s.ErrorIs(err, model.ErrAccountNotFound)

	_, err = s.Storage.FindAccountByEmailOrUsername(s.Ctx, "", "")
	s.ErrorIs(err, model.ErrAccountNotFound)
}

// Update tests

func ptr[T any](v T) *T { return &v }

func (s *Suite) TestUpdateWritesFields() {
	account := NewAccount("alice", "alice@x.com")
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, account))

	login := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	s.Require().NoError(s.Storage.UpdateAccount(s.Ctx, account.ID, model.AccountUpdate{
		Username:    ptr("alice2"),
		Email:       ptr("alice2@x.com"),
		Role:        ptr(model.RoleAdmin),
		IsActive:    ptr(false),
		LastLoginAt: &login,
		UpdatedAt:   login,
	}))

	got, err := s.Storage.GetAccount(s.Ctx, account.ID)
	s.Require().NoError(err)
	s.Equal("alice2", got.Username)
	s.Equal("alice2@x.com", got.Email)
	s.Equal(model.RoleAdmin, got.Role)
	s.False(got.IsActive)
	s.Require().NotNil(got.LastLoginAt)
	s.True(login.Equal(*got.LastLoginAt))
	s.True(login.Equal(got.UpdatedAt))
}

func (s *Suite) TestUpdateLeavesUnsetFieldsAlone() {
	account := NewAccount("alice", "alice@x.com")
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, account))

	// Deactivate, then write a login time the way a login racing the deactivation would
	later := account.UpdatedAt.Add(time.Minute)
	s.Require().NoError(s.Storage.UpdateAccount(s.Ctx, account.ID, model.AccountUpdate{IsActive: ptr(false), UpdatedAt: later}))
	s.Require().NoError(s.Storage.UpdateAccount(s.Ctx, account.ID, model.AccountUpdate{LastLoginAt: &later, UpdatedAt: later}))

	got, err := s.Storage.GetAccount(s.Ctx, account.ID)
	s.Require().NoError(err)
	s.False(got.IsActive)
	s.Equal(account.PasswordHash, got.PasswordHash)
	s.Equal("alice", got.Username)
	s.NotNil(got.LastLoginAt)
}

func (s *Suite) TestConcurrentUpdatesOfDifferentFieldsAllLand() {
	account := NewAccount("alice", "alice@x.com")
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, account))

	at := account.UpdatedAt.Add(time.Minute)
	updates := []model.AccountUpdate{
		{IsActive: ptr(false), UpdatedAt: at},
		{PasswordHash: ptr("$2a$10$zyxwvutsrqponmlkjihgfe"), UpdatedAt: at},
		{LastLoginAt: &at, UpdatedAt: at},
		{Role: ptr(model.RoleAdmin), UpdatedAt: at},
	}

	var wg sync.WaitGroup
	errs := make([]error, len(updates))
	for i, u := range updates {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.Storage.UpdateAccount(s.Ctx, account.ID, u)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		s.Require().NoError(err)
	}

	got, err := s.Storage.GetAccount(s.Ctx, account.ID)
	s.Require().NoError(err)
	s.False(got.IsActive)
	s.Equal("$2a$10$zyxwvutsrqponmlkjihgfe", got.PasswordHash)
	s.NotNil(got.LastLoginAt)
	s.Equal(model.RoleAdmin, got.Role)
}

func (s *Suite) TestUpdateMovesIdentityIndexes() {
	account := NewAccount("alice", "alice@x.com")
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, account))

	s.Require().NoError(s.Storage.UpdateAccount(s.Ctx, account.ID, model.AccountUpdate{
		Username:  ptr("alice2"),
		Email:     ptr("alice2@x.com"),
		UpdatedAt: account.UpdatedAt,
	}))

	_, err := s.Storage.FindAccountByEmailOrUsername(s.Ctx, "alice@x.com", "alice")
	s.ErrorIs(err, model.ErrAccountNotFound)

	// The released identity can be claimed by someone else
	s.NoError(s.Storage.CreateAccount(s.Ctx, NewAccount("alice", "alice@x.com")))
}

func (s *Suite) TestUpdateKeepingOwnIdentityIsNotAConflict() {
	account := NewAccount("alice", "alice@x.com")
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, account))

	s.NoError(s.Storage.UpdateAccount(s.Ctx, account.ID, model.AccountUpdate{
		Username:  ptr("alice"),
		Email:     ptr("alice@x.com"),
		UpdatedAt: account.UpdatedAt,
	}))
}

func (s *Suite) TestUpdateRejectsUsernameOfOtherAccount() {
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, NewAccount("alice", "alice@x.com")))
	bob := NewAccount("bob", "bob@x.com")
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, bob))

	err := s.Storage.UpdateAccount(s.Ctx, bob.ID, model.AccountUpdate{Username: ptr("alice"), UpdatedAt: bob.UpdatedAt})
	s.ErrorIs(err, model.ErrDuplicateIdentity)

	got, err := s.Storage.GetAccount(s.Ctx, bob.ID)
	s.Require().NoError(err)
	s.Equal("bob", got.Username)
}

func (s *Suite) TestUpdateRejectsEmailOfOtherAccount() {
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, NewAccount("alice", "alice@x.com")))
	bob := NewAccount("bob", "bob@x.com")
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, bob))

	err := s.Storage.UpdateAccount(s.Ctx, bob.ID, model.AccountUpdate{Email: ptr("alice@x.com"), UpdatedAt: bob.UpdatedAt})
	s.ErrorIs(err, model.ErrDuplicateIdentity)
}

func (s *Suite) TestUpdateUnknownAccount() {
	err := s.Storage.UpdateAccount(s.Ctx, model.AccountID(uuid.NewString()), model.AccountUpdate{
		IsActive:  ptr(false),
		UpdatedAt: time.Now(),
	})
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *Suite) TestReturnedAccountIsACopy() {
	account := NewAccount("alice", "alice@x.com")
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, account))

	got, err := s.Storage.GetAccount(s.Ctx, account.ID)
	s.Require().NoError(err)
	got.Username = "mutated"

	again, err := s.Storage.GetAccount(s.Ctx, account.ID)
	s.Require().NoError(err)
	s.Equal("alice", again.Username)
}
