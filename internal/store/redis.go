package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// TokenCacheKey is the well-known key holding the serialized Tradovate
// token payload. It is shared across process restarts: a fresh process
// reads whatever the previous instance (possibly now dead) wrote.
const TokenCacheKey = "tradovate:token"

type RedisStore struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// TokenCache returns the durable token cache backed by this Redis client.
func (s *RedisStore) TokenCache() *TokenCache {
	return &TokenCache{client: s.client}
}

// TokenCache persists the current auth token payload under TokenCacheKey.
// No TTL is set on the key: the payload carries its own expiration
// timestamp, and the session manager decides staleness by watermark.
type TokenCache struct {
	client *redis.Client
}

func NewTokenCache(client *redis.Client) *TokenCache {
	return &TokenCache{client: client}
}

// Load returns the cached token payload, or nil when no token is cached.
func (c *TokenCache) Load(ctx context.Context) (json.RawMessage, error) {
	data, err := c.client.Get(ctx, TokenCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token cache: %w", err)
	}
	return json.RawMessage(data), nil
}

// Store writes the token payload through to Redis. Callers must not treat
// a token as valid until this write has succeeded.
func (c *TokenCache) Store(ctx context.Context, payload json.RawMessage) error {
	if err := c.client.Set(ctx, TokenCacheKey, []byte(payload), 0).Err(); err != nil {
		return fmt.Errorf("writing token cache: %w", err)
	}
	return nil
}
