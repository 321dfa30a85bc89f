package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peronio/realmnet/internal/config"
)

func TestCreateSessionRejectsBadInput(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dev := &config.Config{Env: config.EnvDevelopment}
	prod := &config.Config{Env: config.EnvProduction, RedisURL: "redis://127.0.0.1:1/0"}

	tests := []struct {
		name     string
		cfg      *config.Config
		playerID string
		wantErr  string
	}{
		{name: "bad player id", cfg: dev, playerID: "alice", wantErr: "not a player id"},
		{name: "no redis", cfg: dev, playerID: uuid.NewString(), wantErr: "REDIS_URL is not set"},
		{name: "production without secret", cfg: prod, playerID: uuid.NewString(), wantErr: "SESSION_SECRET is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var out bytes.Buffer
			err := createSession(ctx, tt.cfg, tt.playerID, time.Hour, &out)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, out.String())
		})
	}
}

func TestSessionCommandsNeedRedis(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cfg := &config.Config{Env: config.EnvDevelopment, RedisURL: "redis://127.0.0.1:1/0", SessionSecret: "s3cret"}

	var out bytes.Buffer
	err := createSession(ctx, cfg, uuid.NewString(), time.Hour, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
	assert.Empty(t, out.String())

	err = revokeSession(ctx, cfg, "tok")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}

func TestSessionCommandArgs(t *testing.T) {
	t.Parallel()

	assert.Error(t, sessionRevokeCmd.Args(sessionRevokeCmd, nil))
	assert.NoError(t, sessionRevokeCmd.Args(sessionRevokeCmd, []string{"tok"}))
	assert.Error(t, sessionCreateCmd.Args(sessionCreateCmd, []string{"extra"}))
}
