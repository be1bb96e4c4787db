// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mcoot/authservice/internal/dependencies/random"
)

// Deployment postures
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// minProductionSecretLength is the shortest signing secret accepted in production
const minProductionSecretLength = 32

// devSecretBytes is the entropy of a generated development secret
const devSecretBytes = 32

// Config is the complete service configuration
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	HTTP    HTTPConfig
	JWT     JWTConfig
	Storage StorageConfig
	Log     LogConfig
	Admin   AdminConfig
}

// HTTPConfig holds the listen address
type HTTPConfig struct {
	Host string `env:"HTTP_HOST"`
	Port int    `env:"HTTP_PORT" envDefault:"8080"`
}

// JWTConfig holds token signing settings
type JWTConfig struct {
	Secret string        `env:"JWT_SECRET"`
	TTL    time.Duration `env:"JWT_TTL"    envDefault:"24h"`
	Issuer string        `env:"JWT_ISSUER" envDefault:"authservice"`
}

// StorageConfig selects and locates the credential store
type StorageConfig struct {
	Type             string `env:"STORAGE_TYPE"       envDefault:"memory"`
	RedisURL         string `env:"REDIS_URL"`
	SQLitePath       string `env:"SQLITE_PATH"        envDefault:"authservice.db"`
	DatabaseURL      string `env:"DATABASE_URL"`
	DatabaseMaxConns int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`
}

// LogConfig controls log output
type LogConfig struct {
	Level  string `env:"LOG_LEVEL"  envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// AdminConfig optionally seeds an admin account at startup
type AdminConfig struct {
	Username string `env:"ADMIN_USERNAME"`
	Email    string `env:"ADMIN_EMAIL"`
	Password string `env:"ADMIN_PASSWORD"`
}

// Enabled reports whether an admin account should be bootstrapped
func (a AdminConfig) Enabled() bool {
	return a.Username != "" || a.Email != "" || a.Password != ""
}

// Load reads configuration from the process environment
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads configuration from the given variables instead of the process environment
func LoadFrom(environment map[string]string) (Config, error) {
	return parse(env.Options{Environment: environment})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))
	cfg.Storage.Type = strings.ToLower(strings.TrimSpace(cfg.Storage.Type))
	return cfg, nil
}

// IsDevelopment reports whether the service runs in the development posture
func (c Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// Validate checks the configuration is complete and consistent
func (c Config) Validate() error {
	var errs []error

	switch c.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("ENVIRONMENT must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Environment))
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("HTTP_PORT out of range: %d", c.HTTP.Port))
	}

	if c.Environment == EnvProduction {
		switch {
		case c.JWT.Secret == "":
			errs = append(errs, errors.New("JWT_SECRET is required in production"))
		case len(c.JWT.Secret) < minProductionSecretLength:
			errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes in production", minProductionSecretLength))
		}
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, fmt.Errorf("JWT_TTL must be positive, got %s", c.JWT.TTL))
	}

	switch c.Storage.Type {
	case StorageMemory:
	case StorageRedis:
		if c.Storage.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL required when STORAGE_TYPE=redis"))
		}
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH required when STORAGE_TYPE=sqlite"))
		}
	case StoragePostgres:
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL required when STORAGE_TYPE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_TYPE %q", c.Storage.Type))
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format))
	}

	if c.Admin.Enabled() && (c.Admin.Username == "" || c.Admin.Email == "" || c.Admin.Password == "") {
		errs = append(errs, errors.New("ADMIN_USERNAME, ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}

	return errors.Join(errs...)
}

// EnsureSecret fills in an ephemeral signing secret when none is configured
// in development. It reports whether a secret was generated; tokens signed
// with it do not survive a restart.
func (c *Config) EnsureSecret(rnd random.Random) (bool, error) {
	if c.JWT.Secret != "" {
		return false, nil
	}
	if !c.IsDevelopment() {
		return false, errors.New("JWT_SECRET is required in production")
	}
	secret, err := rnd.Secret(devSecretBytes)
	if err != nil {
		return false, fmt.Errorf("generate development secret: %w", err)
	}
	c.JWT.Secret = secret
	return true, nil
}

// NewLogger builds the service logger writing to w, or stdout when w is nil
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	if w == nil {
		w = os.Stdout
	}
	level, err := parseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(l.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL invalid: %q", raw)
	}
	return level, nil
}
