package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/amishk599/skillpiler/internal/model"
)

func TestWait_SameKey_EnforcesMinDelay(t *testing.T) {
	limiter := NewLimiter(100 * time.Millisecond)
	ctx := context.Background()

	// First call should return immediately.
	if err := limiter.Wait(ctx, "anonymous"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, "anonymous"); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	elapsed := time.Since(start)

	// Should have waited at least ~100ms (allow 80ms for timer jitter).
	if elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait, got %v", elapsed)
	}
}

func TestWait_ConcurrentCallersQueue(t *testing.T) {
	limiter := NewLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	done := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		go func() {
			limiter.Wait(ctx, "anonymous")
			done <- struct{}{}
		}()
	}
	for i := 0; i < 3; i++ {
		<-done
	}

	// Three callers need two full delays between them.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms for three queued callers, got %v", elapsed)
	}
}

func TestWait_DifferentKeys_NoCrossBlocking(t *testing.T) {
	limiter := NewLimiter(200 * time.Millisecond)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "anonymous"); err != nil {
		t.Fatalf("anonymous wait: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx, "token:abcdef"); err != nil {
		t.Fatalf("token wait: %v", err)
	}
	elapsed := time.Since(start)

	if elapsed > 50*time.Millisecond {
		t.Errorf("expected token wait to be near-instant, got %v", elapsed)
	}
}

func TestWait_ContextCancellation(t *testing.T) {
	limiter := NewLimiter(5 * time.Second)

	if err := limiter.Wait(context.Background(), "anonymous"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx, "anonymous"); err == nil {
		t.Fatal("expected error from cancelled context, got nil")
	}
}

func TestCredentialKey(t *testing.T) {
	if got := credentialKey(""); got != "anonymous" {
		t.Errorf("expected anonymous, got %s", got)
	}
	if got := credentialKey("gho_1234567890"); got != "token:567890" {
		t.Errorf("expected token:567890, got %s", got)
	}
}

// --- Mock for Source test ---

type recordingSource struct {
	calls int
}

func (s *recordingSource) ListRepositories(_ context.Context, _ string, _ bool, _ string) ([]model.Repository, error) {
	s.calls++
	return nil, nil
}

func (s *recordingSource) RepositoryLanguages(_ context.Context, _, _, _ string) (map[string]int, error) {
	s.calls++
	return nil, nil
}

func (s *recordingSource) CommitHistory(_ context.Context, _, _, _ string) ([]model.Commit, error) {
	s.calls++
	return nil, nil
}

func TestSource_WaitsBeforeDelegating(t *testing.T) {
	inner := &recordingSource{}
	src := NewSource(inner, NewLimiter(100*time.Millisecond))
	ctx := context.Background()

	if _, err := src.ListRepositories(ctx, "octocat", false, ""); err != nil {
		t.Fatalf("first call: %v", err)
	}

	start := time.Now()
	if _, err := src.RepositoryLanguages(ctx, "octocat", "skills", ""); err != nil {
		t.Fatalf("second call: %v", err)
	}
	elapsed := time.Since(start)

	if inner.calls != 2 {
		t.Fatalf("expected 2 delegated calls, got %d", inner.calls)
	}
	if elapsed < 80*time.Millisecond {
		t.Errorf("expected >= 80ms wait on second call, got %v", elapsed)
	}
}
