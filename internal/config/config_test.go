package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"APP_ENV", "PORT", "WS_PATH", "CLIENT_URL", "DATABASE_URL", "DATA_PATH",
	"REDIS_URL", "SESSION_SECRET", "LOG_LEVEL", "LOG_PRETTY", "RATE_LIMIT_MPS",
	"RATE_LIMIT_BURST", "WELCOME_MESSAGE", "DEFAULT_MAP_ID", "DEV_TOKENS",
}

// clearEnv unsets every key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, c.Env)
	assert.Equal(t, 3001, c.Port)
	assert.Equal(t, ":3001", c.Addr())
	assert.Equal(t, "/ws", c.WSPath)
	assert.Equal(t, "http://localhost:5173", c.ClientURL)
	assert.Equal(t, 100.0, c.RateLimitMPS)
	assert.Equal(t, 200, c.RateLimitBurst)
	assert.True(t, c.LogPretty)
	assert.True(t, c.RateLimited())
	assert.Empty(t, c.DevTokens)

	assert.EqualError(t, c.Validate(), "one of DATABASE_URL or DATA_PATH is required")
	c.DataPath = "data"
	assert.NoError(t, c.Validate())
}

func TestProductionRequiresSessionSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/realm")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.False(t, c.LogPretty)
	assert.EqualError(t, c.Validate(), "SESSION_SECRET is required in production")

	t.Setenv("SESSION_SECRET", "s3cret")
	c, err = FromEnv()
	require.NoError(t, err)
	assert.NoError(t, c.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		ok   bool
	}{
		{name: "port out of range", env: map[string]string{"PORT": "70000"}},
		{name: "relative ws path", env: map[string]string{"WS_PATH": "ws"}},
		{name: "negative burst", env: map[string]string{"RATE_LIMIT_BURST": "-1"}},
		{name: "dev tokens in production", env: map[string]string{"APP_ENV": "production", "SESSION_SECRET": "x", "DEV_TOKENS": "a=b"}},
		{name: "rate limit off", env: map[string]string{"RATE_LIMIT_MPS": "0"}, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("DATA_PATH", "data")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			c, err := FromEnv()
			require.NoError(t, err)
			if tt.ok {
				assert.NoError(t, c.Validate())
			} else {
				assert.Error(t, c.Validate())
			}
		})
	}
}

func TestInvalidNumbers(t *testing.T) {
	for _, key := range []string{"PORT", "RATE_LIMIT_MPS", "RATE_LIMIT_BURST", "LOG_PRETTY"} {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, "lots")
			_, err := FromEnv()
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestDevTokens(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEV_TOKENS", "alice=11111111-1111-1111-1111-111111111111, bob=22222222-2222-2222-2222-222222222222")

	c, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"alice": "11111111-1111-1111-1111-111111111111",
		"bob":   "22222222-2222-2222-2222-222222222222",
	}, c.DevTokens)

	t.Setenv("DEV_TOKENS", "alice")
	_, err = FromEnv()
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "4000")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=5000\nDATA_PATH=/tmp/realm\nCLIENT_URL=https://play.example.com\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4000, c.Port, "environment wins over .env")
	assert.Equal(t, "/tmp/realm", c.DataPath)
	assert.Equal(t, "https://play.example.com", c.ClientURL)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}
