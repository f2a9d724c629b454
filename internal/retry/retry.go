package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/amishk599/skillpiler/internal/model"
)

// Ensure Source implements model.RepoSource.
var _ model.RepoSource = (*Source)(nil)

// Source is a decorator that retries transient failures with exponential
// backoff and jitter before delegating to the wrapped RepoSource.
type Source struct {
	inner      model.RepoSource
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// NewSource wraps a RepoSource with retry logic.
// maxRetries is the number of additional attempts after the first failure.
// baseDelay is the delay before the first retry, doubled on each subsequent retry.
func NewSource(inner model.RepoSource, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *Source {
	return &Source{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

func (s *Source) ListRepositories(ctx context.Context, username string, includePrivate bool, token string) ([]model.Repository, error) {
	return withRetry(ctx, s, "list repositories", func(ctx context.Context) ([]model.Repository, error) {
		return s.inner.ListRepositories(ctx, username, includePrivate, token)
	})
}

func (s *Source) RepositoryLanguages(ctx context.Context, owner, repo, token string) (map[string]int, error) {
	return withRetry(ctx, s, "repository languages", func(ctx context.Context) (map[string]int, error) {
		return s.inner.RepositoryLanguages(ctx, owner, repo, token)
	})
}

func (s *Source) CommitHistory(ctx context.Context, owner, repo, token string) ([]model.Commit, error) {
	return withRetry(ctx, s, "commit history", func(ctx context.Context) ([]model.Commit, error) {
		return s.inner.CommitHistory(ctx, owner, repo, token)
	})
}

// withRetry runs fn, retrying on transient errors.
func withRetry[T any](ctx context.Context, s *Source, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	v, err := fn(ctx)
	if err == nil {
		return v, nil
	}

	if !isRetryable(err) {
		return zero, err
	}

	lastErr := err
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		delay := s.backoffDelay(attempt, lastErr)

		s.logger.Warn("retrying after transient error",
			"operation", op,
			"attempt", attempt,
			"max_retries", s.maxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}

		if !isRetryable(err) {
			return zero, err
		}
		lastErr = err
	}

	return zero, lastErr
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// If the error includes a Retry-After duration (HTTP 429), that takes precedence.
func (s *Source) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	// Exponential: baseDelay * 2^(attempt-1)
	delay := s.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	delay = time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)

	return delay
}

// isRetryable returns true if the error represents a transient failure worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context cancellation, never retry.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == 429 {
			return true
		}
		if httpErr.StatusCode >= 500 {
			return true
		}
		// 4xx (not 429), not retryable.
		return false
	}

	// Non-HTTP errors (network, DNS, etc.) are retryable.
	return true
}
