package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/mcoot/authservice/internal/model"
	"github.com/mcoot/authservice/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL CHECK (password_hash <> ''),
	role          TEXT NOT NULL CHECK (role IN ('player', 'admin')),
	is_active     INTEGER NOT NULL DEFAULT 1,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL,
	last_login_at INTEGER
);
`

const accountColumns = `id, username, email, password_hash, role, is_active, created_at, updated_at, last_login_at`

// Storage implements account persistence over SQLite.
// The UNIQUE constraints on username and email are the final arbiter of identity conflicts.
type Storage struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the accounts table exists
func Open(ctx context.Context, path string) (*Storage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite allows a single writer; serialise through one connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the underlying database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) CreateAccount(ctx context.Context, account *model.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(account.ID),
		account.Username,
		account.Email,
		account.PasswordHash,
		string(account.Role),
		account.IsActive,
		toMillis(account.CreatedAt),
		toMillis(account.UpdatedAt),
		nullableMillis(account.LastLoginAt),
	)
	if err != nil {
		if dup := uniqueViolation(err); dup != nil {
			return dup
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, id model.AccountID) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, string(id))
	return scanAccount(row)
}

func (s *Storage) FindAccountByEmailOrUsername(ctx context.Context, email, username string) (*model.Account, error) {
	if email == "" && username == "" {
		return nil, model.ErrAccountNotFound
	}
	// Prefer the email match when both fields hit different accounts
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		WHERE (?1 <> '' AND email = ?1) OR (?2 <> '' AND username = ?2)
		ORDER BY CASE WHEN email = ?1 THEN 0 ELSE 1 END
		LIMIT 1`,
		email, username)
	return scanAccount(row)
}

func (s *Storage) UpdateAccount(ctx context.Context, id model.AccountID, update model.AccountUpdate) error {
	set, args := updateColumns(update)
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET `+set+` WHERE id = ?`,
		append(args, string(id))...,
	)
	if err != nil {
		if dup := uniqueViolation(err); dup != nil {
			return dup
		}
		return fmt.Errorf("update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if n == 0 {
		return model.ErrAccountNotFound
	}
	return nil
}

// updateColumns renders the SET list for the fields present in update
func updateColumns(update model.AccountUpdate) (string, []any) {
	var (
		cols []string
		args []any
	)
	add := func(col string, v any) {
		cols = append(cols, col+" = ?")
		args = append(args, v)
	}
	if update.Username != nil {
		add("username", *update.Username)
	}
	if update.Email != nil {
		add("email", *update.Email)
	}
	if update.PasswordHash != nil {
		add("password_hash", *update.PasswordHash)
	}
	if update.Role != nil {
		add("role", string(*update.Role))
	}
	if update.IsActive != nil {
		add("is_active", *update.IsActive)
	}
	if update.LastLoginAt != nil {
		add("last_login_at", toMillis(*update.LastLoginAt))
	}
	add("updated_at", toMillis(update.UpdatedAt))
	return strings.Join(cols, ", "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*model.Account, error) {
	var (
		account   model.Account
		id, role  string
		created   int64
		updated   int64
		lastLogin sql.NullInt64
	)
	err := row.Scan(&id, &account.Username, &account.Email, &account.PasswordHash, &role,
		&account.IsActive, &created, &updated, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	account.ID = model.AccountID(id)
	account.Role = model.Role(role)
	account.CreatedAt = fromMillis(created)
	account.UpdatedAt = fromMillis(updated)
	if lastLogin.Valid {
		t := fromMillis(lastLogin.Int64)
		account.LastLoginAt = &t
	}
	return &account, nil
}

// uniqueViolation translates a UNIQUE constraint failure into a duplicate
// identity error naming the field, or returns nil for any other error.
// The extended result code decides; the message only names the column.
func uniqueViolation(err error) error {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return nil
	}
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
	default:
		return nil
	}

	message := strings.ToLower(sqliteErr.Error())
	switch {
	case strings.Contains(message, "accounts.username"):
		return model.ErrUsernameTaken
	case strings.Contains(message, "accounts.email"):
		return model.ErrEmailTaken
	default:
		return model.ErrDuplicateIdentity
	}
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullableMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}
