package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-stockroom"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisTTL bounds how long a cached session survives, roughly the
// default Cognito refresh token validity.
const DefaultRedisTTL = 30 * 24 * time.Hour

// RedisSessionCache implements stockroom.SessionCache as a JSON value under
// "stockroom:session:<namespace>".
type RedisSessionCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

var _ stockroom.SessionCache = (*RedisSessionCache)(nil)

// NewRedisSessionCache creates a new cache. A non-positive ttl uses DefaultRedisTTL.
func NewRedisSessionCache(client *redis.Client, namespace string, ttl time.Duration) *RedisSessionCache {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisSessionCache{
		client: client,
		key:    "stockroom:session:" + namespace,
		ttl:    ttl,
	}
}

// Key returns the Redis key holding the session.
func (r *RedisSessionCache) Key() string {
	return r.key
}

// Load implements stockroom.SessionCache.
func (r *RedisSessionCache) Load(ctx context.Context) (*stockroom.CachedSession, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, stockroom.ErrNoCachedSession
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to load cached session")
	}

	var session stockroom.CachedSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode cached session").
			WithMetadata(map[string]any{"key": r.key})
	}
	return &session, nil
}

// Save implements stockroom.SessionCache.
func (r *RedisSessionCache) Save(ctx context.Context, session *stockroom.CachedSession) error {
	if session == nil {
		return r.Clear(ctx)
	}

	raw, err := json.Marshal(session)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode cached session")
	}
	if err := r.client.Set(ctx, r.key, raw, r.ttl).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to save cached session")
	}
	return nil
}

// Clear implements stockroom.SessionCache.
func (r *RedisSessionCache) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to clear cached session")
	}
	return nil
}
