// Package cache stores GitHub responses in Redis so repeated analyses of the
// same account do not spend API quota.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amishk599/skillpiler/internal/metrics"
	"github.com/amishk599/skillpiler/internal/model"
)

const DefaultTTL = time.Hour

// Cache is a JSON value cache on top of Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, addr string, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return New(client, ttl), nil
}

// New wraps an existing client.
func New(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// Get decodes the value at key into out. It reports false on a miss.
func (c *Cache) Get(ctx context.Context, key string, out any) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores v at key with the cache TTL.
func (c *Cache) Set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete removes keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// Ensure Source implements model.RepoSource.
var _ model.RepoSource = (*Source)(nil)

// Source is a decorator that serves RepoSource calls from the cache and
// fills it on a miss. Cache failures are logged and bypassed.
type Source struct {
	inner  model.RepoSource
	cache  *Cache
	logger *slog.Logger
}

// NewSource wraps inner with cache.
func NewSource(inner model.RepoSource, cache *Cache, logger *slog.Logger) *Source {
	return &Source{inner: inner, cache: cache, logger: logger}
}

func (s *Source) ListRepositories(ctx context.Context, username string, includePrivate bool, token string) ([]model.Repository, error) {
	scope := "public"
	if includePrivate && token != "" {
		scope = "private:" + tokenDigest(token)
	}
	return cached(ctx, s, fmt.Sprintf("repos:%s:%s", username, scope), func() ([]model.Repository, error) {
		return s.inner.ListRepositories(ctx, username, includePrivate, token)
	})
}

func (s *Source) RepositoryLanguages(ctx context.Context, owner, repo, token string) (map[string]int, error) {
	return cached(ctx, s, fmt.Sprintf("repo:%s:%s:languages", owner, repo), func() (map[string]int, error) {
		return s.inner.RepositoryLanguages(ctx, owner, repo, token)
	})
}

func (s *Source) CommitHistory(ctx context.Context, owner, repo, token string) ([]model.Commit, error) {
	return cached(ctx, s, fmt.Sprintf("repo:%s:%s:commits", owner, repo), func() ([]model.Commit, error) {
		return s.inner.CommitHistory(ctx, owner, repo, token)
	})
}

// tokenDigest identifies a credential in cache keys without storing it.
func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

func cached[T any](ctx context.Context, s *Source, key string, load func() (T, error)) (T, error) {
	var v T
	hit, err := s.cache.Get(ctx, key, &v)
	if err != nil {
		s.logger.Warn("cache read failed", "key", key, "error", err)
	}
	metrics.RecordCacheLookup(hit)
	if hit {
		return v, nil
	}

	v, err = load()
	if err != nil {
		return v, err
	}
	if err := s.cache.Set(ctx, key, v); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}
	return v, nil
}
