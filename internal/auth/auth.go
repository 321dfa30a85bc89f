// Package auth turns the token carried by auth:login into a player id.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrInvalidToken means the token is unknown, expired or malformed.
var ErrInvalidToken = errors.New("invalid_session")

// DefaultSessionTTL is how long a session created by CreateSession lives.
const DefaultSessionTTL = 24 * time.Hour

// Session is what a valid token resolves to.
type Session struct {
	PlayerID  string    `json:"playerId"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Verifier resolves login tokens.
type Verifier interface {
	Verify(ctx context.Context, token string) (Session, error)
}

// RedisVerifier reads sessions stored under "session:<key>". With a
// secret the key is the hex HMAC-SHA256 of the token, so the keys in Redis
// cannot be replayed as tokens. Without one the key is the token itself.
type RedisVerifier struct {
	client *redis.Client
	ttl    time.Duration
	secret []byte
	log    zerolog.Logger
}

func NewRedisVerifier(client *redis.Client, ttl time.Duration, secret string, logger zerolog.Logger) *RedisVerifier {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisVerifier{
		client: client,
		ttl:    ttl,
		secret: []byte(secret),
		log:    logger.With().Str("component", "auth").Logger(),
	}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (v *RedisVerifier) sessionKey(token string) string {
	if len(v.secret) == 0 {
		return "session:" + token
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(token))
	return "session:" + hex.EncodeToString(mac.Sum(nil))
}

func (v *RedisVerifier) Verify(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrInvalidToken
	}
	data, err := v.client.Get(ctx, v.sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrInvalidToken
	}
	if err != nil {
		v.log.Error().Err(err).Msg("failed to read session")
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	return decodeSession(data)
}

// CreateSession stores a new session for playerID and returns its token.
func (v *RedisVerifier) CreateSession(ctx context.Context, playerID string) (string, error) {
	if playerID == "" {
		return "", errors.New("create session: empty player id")
	}
	token := uuid.NewString()
	data, err := json.Marshal(Session{PlayerID: playerID, CreatedAt: time.Now().UTC()})
	if err != nil {
		return "", err
	}
	if err := v.client.Set(ctx, v.sessionKey(token), data, v.ttl).Err(); err != nil {
		v.log.Error().Err(err).Msg("failed to save session")
		return "", err
	}
	return token, nil
}

// Revoke deletes the session behind token. Revoking an unknown token is
// not an error.
func (v *RedisVerifier) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	if err := v.client.Del(ctx, v.sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// TTL is how long sessions created by CreateSession live.
func (v *RedisVerifier) TTL() time.Duration {
	return v.ttl
}

func decodeSession(data []byte) (Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if s.PlayerID == "" {
		return Session{}, ErrInvalidToken
	}
	return s, nil
}

// StaticVerifier maps fixed tokens to players. It backs development
// servers and tests.
type StaticVerifier struct {
	mu     sync.RWMutex
	tokens map[string]string
}

func NewStaticVerifier(tokens map[string]string) *StaticVerifier {
	v := &StaticVerifier{tokens: make(map[string]string, len(tokens))}
	for tok, id := range tokens {
		v.tokens[tok] = id
	}
	return v
}

// Add maps token to playerID.
func (v *StaticVerifier) Add(token, playerID string) {
	v.mu.Lock()
	v.tokens[token] = playerID
	v.mu.Unlock()
}

func (v *StaticVerifier) Verify(_ context.Context, token string) (Session, error) {
	v.mu.RLock()
	id, ok := v.tokens[token]
	v.mu.RUnlock()
	if !ok {
		return Session{}, ErrInvalidToken
	}
	return Session{PlayerID: id}, nil
}
