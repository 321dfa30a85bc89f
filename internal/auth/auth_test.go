package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticVerifier(t *testing.T) {
	t.Parallel()

	v := NewStaticVerifier(map[string]string{"dev-token": "p1"})
	s, err := v.Verify(context.Background(), "dev-token")
	require.NoError(t, err)
	assert.Equal(t, "p1", s.PlayerID)

	_, err = v.Verify(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidToken)

	v.Add("nope", "p2")
	s, err = v.Verify(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, "p2", s.PlayerID)
}

func TestDecodeSession(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		want    string
		invalid bool
	}{
		{name: "valid", data: `{"playerId":"p1","gameId":"ignored"}`, want: "p1"},
		{name: "missing player", data: `{"gameId":"g"}`, invalid: true},
		{name: "not json", data: `player`, invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := decodeSession([]byte(tt.data))
			if tt.invalid {
				assert.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.PlayerID)
		})
	}
}

func TestRedisVerifierEmptyToken(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })

	v := NewRedisVerifier(client, 0, "", zerolog.Nop())
	assert.Equal(t, DefaultSessionTTL, v.TTL())

	_, err := v.Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, v.Revoke(context.Background(), ""), ErrInvalidToken)
	_, err = v.CreateSession(context.Background(), "")
	assert.Error(t, err)
}

func TestSessionKey(t *testing.T) {
	t.Parallel()

	plain := NewRedisVerifier(nil, 0, "", zerolog.Nop())
	assert.Equal(t, "session:tok", plain.sessionKey("tok"))

	signed := NewRedisVerifier(nil, 0, "s3cret", zerolog.Nop())
	key := signed.sessionKey("tok")
	assert.True(t, strings.HasPrefix(key, "session:"))
	assert.Len(t, key, len("session:")+64)
	assert.NotContains(t, key, "tok")
	assert.Equal(t, key, signed.sessionKey("tok"))
	assert.NotEqual(t, key, signed.sessionKey("tok2"))

	other := NewRedisVerifier(nil, 0, "other", zerolog.Nop())
	assert.NotEqual(t, key, other.sessionKey("tok"))
}

func TestRedisVerifierUnreachable(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	v := NewRedisVerifier(client, time.Minute, "s3cret", zerolog.Nop())
	ctx := context.Background()
	_, err := v.Verify(ctx, "tok")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidToken, "a store outage is not a bad token")

	token, err := v.CreateSession(ctx, "p1")
	assert.Error(t, err)
	assert.Empty(t, token)
	assert.Error(t, v.Revoke(ctx, "tok"))
}

func TestNewRedisClient(t *testing.T) {
	t.Parallel()

	c, err := NewRedisClient("redis://:secret@localhost:6380/2")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	assert.Equal(t, "localhost:6380", c.Options().Addr)
	assert.Equal(t, 2, c.Options().DB)

	_, err = NewRedisClient("http://nope")
	assert.Error(t, err)
}
