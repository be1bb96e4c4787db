package redis

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/authservice/internal/model"
	"github.com/mcoot/authservice/internal/storage"
	"github.com/mcoot/authservice/internal/storage/storagetest"
)

type StorageSuite struct {
	storagetest.Suite
	mini *miniredis.Miniredis
}

func TestStorageSuite(t *testing.T) {
	s := new(StorageSuite)
	s.NewStorage = func() storage.Storage {
		s.mini = miniredis.RunT(s.T())
		client := redis.NewClient(&redis.Options{
			Addr: s.mini.Addr(),
		})
		return NewWithClient(client, DefaultConfig())
	}
	suite.Run(t, s)
}

func (s *StorageSuite) TearDownTest() {
	if st, ok := s.Storage.(*Storage); ok {
		_ = st.Close()
	}
}

func (s *StorageSuite) store() *Storage {
	return s.Storage.(*Storage)
}

func (s *StorageSuite) TestCreateWritesIndexes() {
	account := storagetest.NewAccount("alice", "alice@x.com")
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, account))

	id, err := s.mini.Get(s.store().usernameIndexKey("alice"))
	s.Require().NoError(err)
	s.Equal(string(account.ID), id)

	id, err = s.mini.Get(s.store().emailIndexKey("alice@x.com"))
	s.Require().NoError(err)
	s.Equal(string(account.ID), id)
}

func (s *StorageSuite) TestAccountsHaveNoTTL() {
	account := storagetest.NewAccount("alice", "alice@x.com")
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, account))

	s.Zero(s.mini.TTL(s.store().accountKey(account.ID)))
	s.Zero(s.mini.TTL(s.store().usernameIndexKey("alice")))
}

func (s *StorageSuite) TestEmailConflictReleasesUsernameClaim() {
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, storagetest.NewAccount("alice", "alice@x.com")))

	err := s.Storage.CreateAccount(s.Ctx, storagetest.NewAccount("bob", "alice@x.com"))
	s.ErrorIs(err, model.ErrEmailTaken)
	s.False(s.mini.Exists(s.store().usernameIndexKey("bob")))
}

func (s *StorageSuite) TestUpdateReleasesOldIndexes() {
	account := storagetest.NewAccount("alice", "alice@x.com")
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, account))

	username := "alice2"
	s.Require().NoError(s.Storage.UpdateAccount(s.Ctx, account.ID, model.AccountUpdate{
		Username:  &username,
		UpdatedAt: account.UpdatedAt,
	}))

	s.False(s.mini.Exists(s.store().usernameIndexKey("alice")))
	s.True(s.mini.Exists(s.store().usernameIndexKey("alice2")))
	s.True(s.mini.Exists(s.store().emailIndexKey("alice@x.com")))
}

func (s *StorageSuite) TestUpdateConflictReleasesUsernameClaim() {
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, storagetest.NewAccount("alice", "alice@x.com")))
	bob := storagetest.NewAccount("bob", "bob@x.com")
	s.Require().NoError(s.Storage.CreateAccount(s.Ctx, bob))

	username, email := "bobby", "alice@x.com"
	err := s.Storage.UpdateAccount(s.Ctx, bob.ID, model.AccountUpdate{Username: &username, Email: &email, UpdatedAt: bob.UpdatedAt})
	s.ErrorIs(err, model.ErrEmailTaken)
	s.False(s.mini.Exists(s.store().usernameIndexKey("bobby")))
	s.True(s.mini.Exists(s.store().usernameIndexKey("bob")))
}

func (s *StorageSuite) TestCustomKeyPrefix() {
	client := redis.NewClient(&redis.Options{Addr: s.mini.Addr()})
	cfg := DefaultConfig()
	cfg.KeyPrefix = "tenant2"
	other := NewWithClient(client, cfg)
	defer func() { _ = other.Close() }()

	account := storagetest.NewAccount("alice", "alice@x.com")
	s.Require().NoError(other.CreateAccount(s.Ctx, account))
	s.True(s.mini.Exists("tenant2:account:" + string(account.ID)))

	// Same identity is free under the default prefix
	s.NoError(s.Storage.CreateAccount(s.Ctx, storagetest.NewAccount("alice", "alice@x.com")))
}

func (s *StorageSuite) TestGetAccountConnectionFailure() {
	s.mini.Close()

	_, err := s.Storage.GetAccount(s.Ctx, "any")
	s.Error(err)
	s.NotErrorIs(err, model.ErrAccountNotFound)
}
