package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amishk599/skillpiler/internal/model"
)

// Limiter enforces a minimum delay between requests sharing the same key.
type Limiter struct {
	mu       sync.Mutex
	lastCall map[string]time.Time
	minDelay time.Duration
}

// NewLimiter creates a limiter that enforces minDelay between consecutive
// requests with the same key.
func NewLimiter(minDelay time.Duration) *Limiter {
	return &Limiter{
		lastCall: make(map[string]time.Time),
		minDelay: minDelay,
	}
}

// Wait blocks until enough time has passed since the last request for key.
// Returns an error if the context is cancelled while waiting.
func (r *Limiter) Wait(ctx context.Context, key string) error {
	r.mu.Lock()
	last, ok := r.lastCall[key]
	now := time.Now()

	if !ok || now.Sub(last) >= r.minDelay {
		r.lastCall[key] = now
		r.mu.Unlock()
		return nil
	}

	// Reserve the next slot so concurrent callers queue behind each other.
	next := last.Add(r.minDelay)
	r.lastCall[key] = next
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", key, ctx.Err())
	case <-time.After(next.Sub(now)):
	}
	return nil
}

// Ensure Source implements model.RepoSource.
var _ model.RepoSource = (*Source)(nil)

// Source is a decorator that rate limits calls per credential before
// delegating to the wrapped RepoSource.
type Source struct {
	inner   model.RepoSource
	limiter *Limiter
}

// NewSource wraps a RepoSource with per-credential rate limiting.
func NewSource(inner model.RepoSource, limiter *Limiter) *Source {
	return &Source{inner: inner, limiter: limiter}
}

func (s *Source) ListRepositories(ctx context.Context, username string, includePrivate bool, token string) ([]model.Repository, error) {
	if err := s.limiter.Wait(ctx, credentialKey(token)); err != nil {
		return nil, err
	}
	return s.inner.ListRepositories(ctx, username, includePrivate, token)
}

func (s *Source) RepositoryLanguages(ctx context.Context, owner, repo, token string) (map[string]int, error) {
	if err := s.limiter.Wait(ctx, credentialKey(token)); err != nil {
		return nil, err
	}
	return s.inner.RepositoryLanguages(ctx, owner, repo, token)
}

func (s *Source) CommitHistory(ctx context.Context, owner, repo, token string) ([]model.Commit, error) {
	if err := s.limiter.Wait(ctx, credentialKey(token)); err != nil {
		return nil, err
	}
	return s.inner.CommitHistory(ctx, owner, repo, token)
}

// credentialKey groups requests by the quota they draw from.
func credentialKey(token string) string {
	if token == "" {
		return "anonymous"
	}
	if len(token) > 6 {
		return "token:" + token[len(token)-6:]
	}
	return "token:" + token
}
