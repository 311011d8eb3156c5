package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/slanderboard/internal/config"
	"github.com/slanderboard/internal/domain"
)

// SessionStore keeps short-lived identity state in Redis: one-time sign-in
// codes and rotating refresh tokens.
type SessionStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewSessionStore creates a new Redis session store
func NewSessionStore(cfg *config.RedisConfig, logger *slog.Logger) (*SessionStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewSessionStoreFromClient(client, logger), nil
}

// NewSessionStoreFromClient wraps an existing client
func NewSessionStoreFromClient(client *redis.Client, logger *slog.Logger) *SessionStore {
	return &SessionStore{
		client: client,
		logger: logger,
	}
}

// Close closes the Redis connection
func (s *SessionStore) Close() error {
	return s.client.Close()
}

// Ping checks Redis connectivity
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// signInKey returns the Redis key for a pending sign-in code
func (s *SessionStore) signInKey(code string) string {
	return fmt.Sprintf("signin:%s:code", digest(code))
}

// refreshKey returns the Redis key for a refresh token
func (s *SessionStore) refreshKey(token string) string {
	return fmt.Sprintf("session:%s:refresh", digest(token))
}

// rotatedKey returns the Redis key remembering what a refresh token was
// rotated to
func (s *SessionStore) rotatedKey(token string) string {
	return fmt.Sprintf("session:%s:rotated", digest(token))
}

// digest keeps raw secrets out of the keyspace
func digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// SaveSignInCode stores a one-time sign-in code
func (s *SessionStore) SaveSignInCode(ctx context.Context, code string, signIn domain.SignInCode, ttl time.Duration) error {
	key := s.signInKey(code)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "email", signIn.Email, "redirect", signIn.Redirect)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving sign-in code: %w", err)
	}
	return nil
}

// TakeSignInCode consumes a sign-in code. A code can be taken once.
func (s *SessionStore) TakeSignInCode(ctx context.Context, code string) (*domain.SignInCode, error) {
	fields, err := s.take(ctx, s.signInKey(code))
	if err != nil {
		return nil, fmt.Errorf("taking sign-in code: %w", err)
	}
	if fields["email"] == "" {
		return nil, domain.ErrInvalidSignInCode
	}
	return &domain.SignInCode{Email: fields["email"], Redirect: fields["redirect"]}, nil
}

// SaveRefreshToken stores a refresh token for the user
func (s *SessionStore) SaveRefreshToken(ctx context.Context, token string, user domain.User, ttl time.Duration) error {
	key := s.refreshKey(token)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "user_id", user.ID, "email", user.Email)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving refresh token: %w", err)
	}
	return nil
}

// rotateScript swaps a refresh token for the next one. KEYS are the current
// token, its rotation tombstone and the next token; ARGV are the next raw
// token, the refresh TTL and the reuse window in milliseconds. A token that
// was rotated inside the window yields the pair it was rotated to, as long as
// that pair has not been revoked.
var rotateScript = redis.NewScript(`
local user = redis.call('HMGET', KEYS[1], 'user_id', 'email')
if user[1] then
	local email = user[2] or ''
	redis.call('DEL', KEYS[1])
	redis.call('HSET', KEYS[3], 'user_id', user[1], 'email', email)
	redis.call('PEXPIRE', KEYS[3], ARGV[2])
	redis.call('HSET', KEYS[2], 'user_id', user[1], 'email', email, 'refresh', ARGV[1], 'key', KEYS[3])
	redis.call('PEXPIRE', KEYS[2], ARGV[3])
	return {user[1], email, ARGV[1]}
end
local prev = redis.call('HMGET', KEYS[2], 'user_id', 'email', 'refresh', 'key')
if prev[1] and prev[4] and redis.call('EXISTS', prev[4]) == 1 then
	return {prev[1], prev[2] or '', prev[3]}
end
return false
`)

// RotateRefreshToken consumes token and stores next in its place. It returns
// the owner and the refresh token now current for the session: next, or the
// token a concurrent rotation already issued within the reuse window.
func (s *SessionStore) RotateRefreshToken(
	ctx context.Context,
	token, next string,
	ttl, reuseWindow time.Duration,
) (*domain.User, string, error) {
	keys := []string{s.refreshKey(token), s.rotatedKey(token), s.refreshKey(next)}
	res, err := rotateScript.Run(ctx, s.client, keys, next, ttl.Milliseconds(), reuseWindow.Milliseconds()).StringSlice()
	if errors.Is(err, redis.Nil) {
		return nil, "", domain.ErrInvalidToken
	}
	if err != nil {
		return nil, "", fmt.Errorf("rotating refresh token: %w", err)
	}
	if len(res) != 3 || res[0] == "" {
		return nil, "", domain.ErrInvalidToken
	}
	if res[2] != next {
		s.logger.Debug("refresh token reused within window", "user_id", res[0])
	}
	return &domain.User{ID: res[0], Email: res[1]}, res[2], nil
}

// DeleteRefreshToken revokes a refresh token
func (s *SessionStore) DeleteRefreshToken(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.refreshKey(token)).Err(); err != nil {
		return fmt.Errorf("deleting refresh token: %w", err)
	}
	return nil
}

// take reads and deletes a hash atomically
func (s *SessionStore) take(ctx context.Context, key string) (map[string]string, error) {
	var get *redis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.HGetAll(ctx, key)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return get.Val(), nil
}
