package redis

import (
	"fmt"

	"github.com/mcoot/authservice/internal/model"
)

// accountKey returns the Redis key for an Account record
func (s *Storage) accountKey(id model.AccountID) string {
	return fmt.Sprintf("%s:account:%s", s.cfg.KeyPrefix, id)
}

// usernameIndexKey returns the Redis key for the username -> account_id index
func (s *Storage) usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", s.cfg.KeyPrefix, username)
}

// emailIndexKey returns the Redis key for the email -> account_id index
func (s *Storage) emailIndexKey(email string) string {
	return fmt.Sprintf("%s:idx:email:%s", s.cfg.KeyPrefix, email)
}
