package config_test

import (
	"skillsetu/backend/internal/config"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_DSN", "host=localhost user=user password=password dbname=skillsetu port=5432 sslmode=disable")
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, _, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.True(t, cfg.RunMigrations)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.NotEmpty(t, cfg.InstanceID, "instance id is generated when unset")
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ENV", "production")
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("STORE_TIMEOUT", "750ms")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("REDIS_ADDR", "localhost:6380")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("INSTANCE_ID", "api-1")

	cfg, _, err := config.Load()

	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, 750*time.Millisecond, cfg.StoreTimeout)
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, "localhost:6380", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, "api-1", cfg.InstanceID)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("JWT_SECRET", "x")

	_, _, err := config.Load()
	assert.ErrorContains(t, err, "DATABASE_DSN")

	t.Setenv("DATABASE_DSN", "dsn")
	t.Setenv("JWT_SECRET", "")

	_, _, err = config.Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"REDIS_DB", "zero"},
		{"RUN_MIGRATIONS", "maybe"},
		{"STORE_TIMEOUT", "5 seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)

			_, _, err := config.Load()
			assert.ErrorContains(t, err, tt.key)
		})
	}
}
