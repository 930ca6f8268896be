package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points ENV_FILE at a missing file so a developer .env cannot leak in
func isolate(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func validConfig() *Config {
	return &Config{
		HTTPAddr:       ":8080",
		StoreDriver:    "postgres",
		DBDSN:          "postgres://localhost/tracker",
		DBMaxConns:     5,
		AuthEnabled:    true,
		JWTSecret:      "valid-secret-that-is-long-enough-for-testing",
		JWTIssuer:      "test-issuer",
		JWTAudience:    "test-audience",
		JWTExpiry:      time.Hour,
		LogLevel:       "info",
		LogFormat:      "json",
		ImportMaxBytes: 1024,
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	for _, key := range []string{"JWT_SECRET", "JWT_ISS", "JWT_AUD", "JWT_EXPIRY", "HTTP_ADDR", "STORE_DRIVER", "LOG_LEVEL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultJWTSecret, cfg.JWTSecret)
	assert.Equal(t, "project-tracker-api", cfg.JWTIssuer)
	assert.Equal(t, "project-tracker-api", cfg.JWTAudience)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.AuthEnabled)
	assert.Equal(t, int64(10<<20), cfg.ImportMaxBytes)
}

func TestLoadWithEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("JWT_SECRET", "test-secret-key")
	t.Setenv("JWT_ISS", "test-issuer")
	t.Setenv("JWT_AUD", "test-audience")
	t.Setenv("JWT_EXPIRY", "2h")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("AUTH_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "test-secret-key", cfg.JWTSecret)
	assert.Equal(t, "test-issuer", cfg.JWTIssuer)
	assert.Equal(t, "test-audience", cfg.JWTAudience)
	assert.Equal(t, 2*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.False(t, cfg.AuthEnabled)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("LOG_FORMAT=console\nDB_MAX_CONNS=3\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Setenv("LOG_FORMAT", "")
	os.Unsetenv("LOG_FORMAT")
	t.Setenv("DB_MAX_CONNS", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, int32(7), cfg.DBMaxConns, "process environment wins over the file")
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	isolate(t)
	t.Setenv("JWT_EXPIRY", "forever")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"empty secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"secret too short", func(c *Config) { c.JWTSecret = "short" }, true},
		{"empty issuer", func(c *Config) { c.JWTIssuer = "" }, true},
		{"empty audience", func(c *Config) { c.JWTAudience = "" }, true},
		{"zero expiry", func(c *Config) { c.JWTExpiry = 0 }, true},
		{"expiry too long", func(c *Config) { c.JWTExpiry = 31 * 24 * time.Hour }, true},
		{"auth disabled ignores jwt", func(c *Config) { c.AuthEnabled = false; c.JWTSecret = "" }, false},
		{"unknown driver", func(c *Config) { c.StoreDriver = "sqlite" }, true},
		{"memory without dsn", func(c *Config) { c.StoreDriver = "memory"; c.DBDSN = "" }, false},
		{"postgres without dsn", func(c *Config) { c.DBDSN = "" }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, true},
		{"zero import limit", func(c *Config) { c.ImportMaxBytes = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadAndValidate(t *testing.T) {
	isolate(t)
	t.Setenv("JWT_SECRET", "test-secret-key-that-is-long-enough-for-testing")
	t.Setenv("JWT_EXPIRY", "1h")

	cfg, err := LoadAndValidate()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	t.Setenv("JWT_SECRET", "short")
	_, err = LoadAndValidate()
	assert.Error(t, err)
}

func TestProductionSecretValidation(t *testing.T) {
	cfg := validConfig()
	cfg.Environment = "production"
	cfg.JWTSecret = DefaultJWTSecret
	assert.Error(t, cfg.Validate())

	cfg.JWTSecret = "proper-production-secret-that-is-long-enough"
	assert.NoError(t, cfg.Validate())
}
