package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/authservice/internal/dependencies/mocks"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 24*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, "authservice", cfg.JWT.Issuer)
	assert.Equal(t, StorageMemory, cfg.Storage.Type)
	assert.Equal(t, int32(10), cfg.Storage.DatabaseMaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Admin.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"ENVIRONMENT":        "Production",
		"HTTP_HOST":          "127.0.0.1",
		"HTTP_PORT":          "9090",
		"JWT_SECRET":         "0123456789abcdef0123456789abcdef",
		"JWT_TTL":            "1h",
		"STORAGE_TYPE":       "POSTGRES",
		"DATABASE_URL":       "postgres://u:p@db:5432/auth",
		"DATABASE_MAX_CONNS": "4",
		"LOG_LEVEL":          "debug",
		"LOG_FORMAT":         "text",
	})
	require.NoError(t, err)

	assert.Equal(t, EnvProduction, cfg.Environment)
	assert.Equal(t, "127.0.0.1", cfg.HTTP.Host)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, time.Hour, cfg.JWT.TTL)
	assert.Equal(t, StoragePostgres, cfg.Storage.Type)
	assert.Equal(t, int32(4), cfg.Storage.DatabaseMaxConns)
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	_, err := LoadFrom(map[string]string{"HTTP_PORT": "eighty"})
	assert.Error(t, err)

	_, err = LoadFrom(map[string]string{"JWT_TTL": "forever"})
	assert.Error(t, err)
}

func TestValidateProductionRequiresSecret(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"ENVIRONMENT": "production"})
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.Validate(), "JWT_SECRET is required")

	cfg.JWT.Secret = "short"
	assert.ErrorContains(t, cfg.Validate(), "at least 32 bytes")
}

func TestValidateStorageCoordinates(t *testing.T) {
	tests := []struct {
		env  map[string]string
		want string
	}{
		{map[string]string{"STORAGE_TYPE": "redis"}, "REDIS_URL"},
		{map[string]string{"STORAGE_TYPE": "postgres"}, "DATABASE_URL"},
		{map[string]string{"STORAGE_TYPE": "mongo"}, "unknown STORAGE_TYPE"},
	}
	for _, tt := range tests {
		cfg, err := LoadFrom(tt.env)
		require.NoError(t, err)
		assert.ErrorContains(t, cfg.Validate(), tt.want)
	}
}

func TestValidateMisc(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"ENVIRONMENT":    "staging",
		"LOG_LEVEL":      "loud",
		"LOG_FORMAT":     "xml",
		"ADMIN_USERNAME": "root",
	})
	require.NoError(t, err)

	err = cfg.Validate()
	assert.ErrorContains(t, err, "ENVIRONMENT")
	assert.ErrorContains(t, err, "LOG_LEVEL")
	assert.ErrorContains(t, err, "LOG_FORMAT")
	assert.ErrorContains(t, err, "ADMIN_")
}

func TestEnsureSecretGeneratesInDevelopment(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	rnd := mocks.NewMockRandom()
	rnd.QueueSecret("generated-secret")

	generated, err := cfg.EnsureSecret(rnd)
	require.NoError(t, err)
	assert.True(t, generated)
	assert.Equal(t, "generated-secret", cfg.JWT.Secret)
}

func TestEnsureSecretKeepsConfiguredSecret(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"JWT_SECRET": "configured"})
	require.NoError(t, err)

	generated, err := cfg.EnsureSecret(mocks.NewMockRandom())
	require.NoError(t, err)
	assert.False(t, generated)
	assert.Equal(t, "configured", cfg.JWT.Secret)
}

func TestEnsureSecretRefusesInProduction(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{"ENVIRONMENT": "production"})
	require.NoError(t, err)

	_, err = cfg.EnsureSecret(mocks.NewMockRandom())
	assert.Error(t, err)
	assert.Empty(t, cfg.JWT.Secret)
}

func TestEnsureSecretPropagatesRandomFailure(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	rnd := mocks.NewMockRandom()
	rnd.Err = errors.New("entropy exhausted")
	_, err = cfg.EnsureSecret(rnd)
	assert.ErrorContains(t, err, "entropy exhausted")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])

	_, err = LogConfig{Level: "nope", Format: "json"}.NewLogger(&buf)
	assert.Error(t, err)
}
