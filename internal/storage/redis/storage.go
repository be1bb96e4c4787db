package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/authservice/internal/model"
	"github.com/mcoot/authservice/internal/storage"
)

// maxUpdateAttempts bounds optimistic retries of a watched update
const maxUpdateAttempts = 10

// Storage is a Redis-backed implementation of the storage interface.
//
// Uniqueness is enforced by claiming the username and email index keys with
// SETNX before the record is written; whichever writer claims an index first
// owns that identity.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return err
	}

	claimed, err := s.claim(ctx, s.usernameIndexKey(account.Username), account.ID)
	if err != nil {
		return err
	}
	if !claimed {
		return model.ErrUsernameTaken
	}

	claimed, err = s.claim(ctx, s.emailIndexKey(account.Email), account.ID)
	if err != nil || !claimed {
		s.release(ctx, s.usernameIndexKey(account.Username))
		if err != nil {
			return err
		}
		return model.ErrEmailTaken
	}

	if err := s.client.Set(ctx, s.accountKey(account.ID), data, 0).Err(); err != nil {
		s.release(ctx, s.usernameIndexKey(account.Username), s.emailIndexKey(account.Email))
		return err
	}
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, id model.AccountID) (*model.Account, error) {
	data, err := s.client.Get(ctx, s.accountKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}

	var account model.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *Storage) FindAccountByEmailOrUsername(ctx context.Context, email, username string) (*model.Account, error) {
	if email != "" {
		account, err := s.lookup(ctx, s.emailIndexKey(email))
		if !errors.Is(err, model.ErrAccountNotFound) {
			return account, err
		}
	}
	if username != "" {
		return s.lookup(ctx, s.usernameIndexKey(username))
	}
	return nil, model.ErrAccountNotFound
}

// UpdateAccount applies update to the stored record under WATCH, retrying
// when another writer changes the record between the read and the write
func (s *Storage) UpdateAccount(ctx context.Context, id model.AccountID, update model.AccountUpdate) error {
	key := s.accountKey(id)
	for range maxUpdateAttempts {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			return s.updateWatched(ctx, tx, key, update)
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update account %s: too much contention", id)
}

func (s *Storage) updateWatched(ctx context.Context, tx *redis.Tx, key string, update model.AccountUpdate) error {
	data, err := tx.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.ErrAccountNotFound
		}
		return err
	}
	var existing model.Account
	if err := json.Unmarshal(data, &existing); err != nil {
		return err
	}

	next := existing.Clone()
	update.Apply(next)
	data, err = json.Marshal(next)
	if err != nil {
		return err
	}

	usernameChanged := existing.Username != next.Username
	emailChanged := existing.Email != next.Email
	var claimed []string

	if usernameChanged {
		ok, err := s.claim(ctx, s.usernameIndexKey(next.Username), next.ID)
		if err != nil {
			return err
		}
		if !ok {
			return model.ErrUsernameTaken
		}
		claimed = append(claimed, s.usernameIndexKey(next.Username))
	}
	if emailChanged {
		ok, err := s.claim(ctx, s.emailIndexKey(next.Email), next.ID)
		if err != nil || !ok {
			s.release(ctx, claimed...)
			if err != nil {
				return err
			}
			return model.ErrEmailTaken
		}
		claimed = append(claimed, s.emailIndexKey(next.Email))
	}

	// Write the record and drop the released indexes together
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, 0)
		if usernameChanged {
			pipe.Del(ctx, s.usernameIndexKey(existing.Username))
		}
		if emailChanged {
			pipe.Del(ctx, s.emailIndexKey(existing.Email))
		}
		return nil
	})
	if err != nil {
		s.release(ctx, claimed...)
	}
	return err
}

// claim sets an index key only if it is absent
func (s *Storage) claim(ctx context.Context, key string, id model.AccountID) (bool, error) {
	return s.client.SetNX(ctx, key, string(id), 0).Result()
}

// release removes index keys claimed by a write that did not complete
func (s *Storage) release(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	_ = s.client.Del(ctx, keys...).Err()
}

func (s *Storage) lookup(ctx context.Context, indexKey string) (*model.Account, error) {
	id, err := s.client.Get(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}
	return s.GetAccount(ctx, model.AccountID(id))
}
