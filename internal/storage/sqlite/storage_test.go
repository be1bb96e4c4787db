package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/authservice/internal/model"
	"github.com/mcoot/authservice/internal/storage"
	"github.com/mcoot/authservice/internal/storage/storagetest"
)

type StorageSuite struct {
	storagetest.Suite
}

func TestStorageSuite(t *testing.T) {
	s := new(StorageSuite)
	s.NewStorage = func() storage.Storage {
		path := filepath.Join(s.T().TempDir(), "accounts.db")
		st, err := Open(context.Background(), path)
		s.Require().NoError(err)
		return st
	}
	suite.Run(t, s)
}

func (s *StorageSuite) TearDownTest() {
	if st, ok := s.Storage.(*Storage); ok {
		_ = st.Close()
	}
}

func (s *StorageSuite) TestDuplicateNamesTheField() {
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, storagetest.NewAccount("alice", "alice@x.com")))

	err := s.Storage.CreateAccount(s.Ctx, storagetest.NewAccount("alice", "other@x.com"))
	s.ErrorIs(err, model.ErrUsernameTaken)
	s.Equal(model.ErrUsernameTaken.Error(), err.Error())

	err = s.Storage.CreateAccount(s.Ctx, storagetest.NewAccount("bob", "alice@x.com"))
	s.Equal(model.ErrEmailTaken.Error(), err.Error())
}

func (s *StorageSuite) TestUpdateDuplicateNamesTheField() {
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, storagetest.NewAccount("alice", "alice@x.com")))
	bob := storagetest.NewAccount("bob", "bob@x.com")
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, bob))

	email := "alice@x.com"
	err := s.Storage.UpdateAccount(s.Ctx, bob.ID, model.AccountUpdate{Email: &email, UpdatedAt: bob.UpdatedAt})
	s.Require().Error(err)
	s.Equal(model.ErrEmailTaken.Error(), err.Error())
}

func (s *StorageSuite) TestDataSurvivesReopen() {
	path := filepath.Join(s.T().TempDir(), "reopen.db")
	first, err := Open(s.Ctx, path)
	s.Require().NoError(err)

	account := storagetest.NewAccount("alice", "alice@x.com")
	s.Require().NoError(first.CreateAccount(s.Ctx, account))
	s.Require().NoError(first.Close())

	second, err := Open(s.Ctx, path)
	s.Require().NoError(err)
	defer func() { _ = second.Close() }()

	got, err := second.GetAccount(s.Ctx, account.ID)
	s.Require().NoError(err)
	s.Equal("alice", got.Username)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	require.Error(t, err)
}

func TestUniqueViolationRequiresDriverCode(t *testing.T) {
	assert.Nil(t, uniqueViolation(errors.New("disk I/O error")))
	// Matching text without a driver error code is not a constraint violation
	assert.Nil(t, uniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: accounts.email (2067)")))
	assert.Nil(t, uniqueViolation(fmt.Errorf("exec: %w", errors.New("UNIQUE constraint failed: accounts.id"))))
}
