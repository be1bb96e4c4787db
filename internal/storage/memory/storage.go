package memory

import (
	"context"
	"sync"

	"github.com/mcoot/authservice/internal/model"
	"github.com/mcoot/authservice/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	accounts      map[model.AccountID]*model.Account
	usernameIndex map[string]model.AccountID
	emailIndex    map[string]model.AccountID
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		accounts:      make(map[model.AccountID]*model.Account),
		usernameIndex: make(map[string]model.AccountID),
		emailIndex:    make(map[string]model.AccountID),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; ok {
		return model.ErrDuplicateIdentity
	}
	if err := s.checkUniqueLocked(account); err != nil {
		return err
	}

	s.accounts[account.ID] = account.Clone()
	s.usernameIndex[account.Username] = account.ID
	s.emailIndex[account.Email] = account.ID
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, id model.AccountID) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	return account.Clone(), nil
}

func (s *Storage) FindAccountByEmailOrUsername(ctx context.Context, email, username string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if email != "" {
		if id, ok := s.emailIndex[email]; ok {
			return s.accounts[id].Clone(), nil
		}
	}
	if username != "" {
		if id, ok := s.usernameIndex[username]; ok {
			return s.accounts[id].Clone(), nil
		}
	}
	return nil, model.ErrAccountNotFound
}

func (s *Storage) UpdateAccount(ctx context.Context, id model.AccountID, update model.AccountUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.accounts[id]
	if !ok {
		return model.ErrAccountNotFound
	}
	next := existing.Clone()
	update.Apply(next)
	if err := s.checkUniqueLocked(next); err != nil {
		return err
	}

	delete(s.usernameIndex, existing.Username)
	delete(s.emailIndex, existing.Email)
	s.accounts[id] = next
	s.usernameIndex[next.Username] = id
	s.emailIndex[next.Email] = id
	return nil
}

// checkUniqueLocked reports a conflict with any account other than account itself
func (s *Storage) checkUniqueLocked(account *model.Account) error {
	if id, ok := s.usernameIndex[account.Username]; ok && id != account.ID {
		return model.ErrUsernameTaken
	}
	if id, ok := s.emailIndex[account.Email]; ok && id != account.ID {
		return model.ErrEmailTaken
	}
	return nil
}
