package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/authservice/internal/config"
	"github.com/mcoot/authservice/internal/dependencies/clock"
	"github.com/mcoot/authservice/internal/dependencies/random"
	"github.com/mcoot/authservice/internal/services/account"
	"github.com/mcoot/authservice/internal/services/password"
	"github.com/mcoot/authservice/internal/services/token"
	"github.com/mcoot/authservice/internal/storage"
	"github.com/mcoot/authservice/internal/storage/memory"
	"github.com/mcoot/authservice/internal/storage/postgres"
	redisstorage "github.com/mcoot/authservice/internal/storage/redis"
	"github.com/mcoot/authservice/internal/storage/sqlite"
)

// Storage type constants
const (
	StorageTypeMemory   = config.StorageMemory
	StorageTypeRedis    = config.StorageRedis
	StorageTypeSQLite   = config.StorageSQLite
	StorageTypePostgres = config.StoragePostgres
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Hasher         password.Hasher
	Tokens         *token.Service
	AccountService *account.Service

	closeStorage func() error
}

// Config holds configuration for the application factory
type Config struct {
	// TokenConfig holds signing settings; Secret is required
	TokenConfig token.Config
	// BcryptCost is the password hashing cost (optional)
	// If zero, bcrypt.DefaultCost is used
	BcryptCost int
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLitePath is the database file (required if StorageType is "sqlite")
	SQLitePath string
	// PostgresConfig holds PostgreSQL settings (required if StorageType is "postgres")
	PostgresConfig *postgres.Config
}

// ConfigFrom maps loaded service configuration onto factory configuration
func ConfigFrom(cfg config.Config, logger *slog.Logger) Config {
	out := Config{
		TokenConfig: token.Config{
			Secret: cfg.JWT.Secret,
			TTL:    cfg.JWT.TTL,
			Issuer: cfg.JWT.Issuer,
		},
		Logger:      logger,
		StorageType: cfg.Storage.Type,
		SQLitePath:  cfg.Storage.SQLitePath,
	}

	switch cfg.Storage.Type {
	case StorageTypeRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.Storage.RedisURL
		out.RedisConfig = &redisCfg
	case StorageTypePostgres:
		pgCfg := postgres.DefaultConfig()
		pgCfg.URL = cfg.Storage.DatabaseURL
		if cfg.Storage.DatabaseMaxConns > 0 {
			pgCfg.MaxConns = cfg.Storage.DatabaseMaxConns
		}
		out.PostgresConfig = &pgCfg
	}
	return out
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, closeStore, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app, err := newWithDependencies(
		store,
		clock.New(),
		random.New(),
		password.NewBcrypt(cfg.BcryptCost),
		cfg.TokenConfig,
		logger,
	)
	if err != nil {
		_ = closeStore()
		return nil, err
	}
	app.closeStorage = closeStore

	logger.Info("storage ready", slog.String("type", storageTypeOrDefault(cfg.StorageType)))
	return app, nil
}

// Close releases storage connections
func (a *App) Close() error {
	if a.closeStorage == nil {
		return nil
	}
	return a.closeStorage()
}

func storageTypeOrDefault(t string) string {
	if t == "" {
		return StorageTypeMemory
	}
	return t
}

// openStorage creates the configured backend and its close function
func openStorage(ctx context.Context, cfg Config) (storage.Storage, func() error, error) {
	noop := func() error { return nil }

	switch storageTypeOrDefault(cfg.StorageType) {
	case StorageTypeMemory:
		return memory.New(), noop, nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, nil, errors.New("RedisConfig required when StorageType is redis")
		}
		store, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis storage: %w", err)
		}
		return store, store.Close, nil
	case StorageTypeSQLite:
		if cfg.SQLitePath == "" {
			return nil, nil, errors.New("SQLitePath required when StorageType is sqlite")
		}
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		return store, store.Close, nil
	case StorageTypePostgres:
		if cfg.PostgresConfig == nil {
			return nil, nil, errors.New("PostgresConfig required when StorageType is postgres")
		}
		store, err := postgres.New(ctx, *cfg.PostgresConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres storage: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("invalid StorageType %q: must be memory, redis, sqlite or postgres", cfg.StorageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	hasher password.Hasher,
	tokenCfg token.Config,
	logger *slog.Logger,
) (*App, error) {
	tokens, err := token.New(tokenCfg, clk)
	if err != nil {
		return nil, err
	}

	accountService := account.New(store, hasher, tokens, clk, logger)

	return &App{
		Storage:        store,
		Clock:          clk,
		Random:         rnd,
		Hasher:         hasher,
		Tokens:         tokens,
		AccountService: accountService,
	}, nil
}

// BootstrapAdmin seeds the configured admin account, if any
func (a *App) BootstrapAdmin(ctx context.Context, admin config.AdminConfig) error {
	if !admin.Enabled() {
		return nil
	}
	_, err := a.AccountService.EnsureAdmin(ctx, admin.Username, admin.Email, admin.Password)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	return nil
}
