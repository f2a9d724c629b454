package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/skillpiler/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := NewRedis(context.Background(), mr.Addr(), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c, mr
}

type countingSource struct {
	repoCalls, langCalls, commitCalls int
	err                               error
}

func (s *countingSource) ListRepositories(_ context.Context, username string, _ bool, _ string) ([]model.Repository, error) {
	s.repoCalls++
	if s.err != nil {
		return nil, s.err
	}
	return []model.Repository{{Name: "skills", Owner: username}}, nil
}

func (s *countingSource) RepositoryLanguages(_ context.Context, _, _, _ string) (map[string]int, error) {
	s.langCalls++
	return map[string]int{"Go": 1000}, nil
}

func (s *countingSource) CommitHistory(_ context.Context, _, _, _ string) ([]model.Commit, error) {
	s.commitCalls++
	return []model.Commit{{SHA: "a1", Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}}, nil
}

func TestNewRedis_InvalidAddress(t *testing.T) {
	_, err := NewRedis(context.Background(), "127.0.0.1:1", time.Minute)
	assert.Error(t, err)
}

func TestCache_GetSet(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	var out map[string]int
	hit, err := c.Get(ctx, "missing", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "k", map[string]int{"Go": 1}))
	hit, err = c.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, out["Go"])

	assert.Equal(t, time.Minute, mr.TTL("k"))

	mr.FastForward(2 * time.Minute)
	hit, err = c.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit, "entry must expire after the TTL")
}

func TestSource_ServesFromCache(t *testing.T) {
	c, mr := setupTestCache(t)
	inner := &countingSource{}
	src := NewSource(inner, c, discardLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		repos, err := src.ListRepositories(ctx, "octocat", false, "")
		require.NoError(t, err)
		require.Len(t, repos, 1)

		langs, err := src.RepositoryLanguages(ctx, "octocat", "skills", "")
		require.NoError(t, err)
		assert.Equal(t, 1000, langs["Go"])

		commits, err := src.CommitHistory(ctx, "octocat", "skills", "")
		require.NoError(t, err)
		require.Len(t, commits, 1)
		assert.Equal(t, time.January, commits[0].Date.Month())
	}

	assert.Equal(t, 1, inner.repoCalls)
	assert.Equal(t, 1, inner.langCalls)
	assert.Equal(t, 1, inner.commitCalls)
	assert.True(t, mr.Exists("repos:octocat:public"))
	assert.True(t, mr.Exists("repo:octocat:skills:languages"))
	assert.True(t, mr.Exists("repo:octocat:skills:commits"))
}

func TestSource_PrivateScopeUsesSeparateKey(t *testing.T) {
	c, mr := setupTestCache(t)
	inner := &countingSource{}
	src := NewSource(inner, c, discardLogger())
	ctx := context.Background()

	_, err := src.ListRepositories(ctx, "octocat", false, "")
	require.NoError(t, err)
	_, err = src.ListRepositories(ctx, "octocat", true, "gho_token")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.repoCalls)
	assert.True(t, mr.Exists("repos:octocat:private:"+tokenDigest("gho_token")))
	assert.False(t, mr.Exists("repos:octocat:private"))
}

func TestSource_PrivateScopeIsKeyedByCredential(t *testing.T) {
	c, mr := setupTestCache(t)
	inner := &countingSource{}
	src := NewSource(inner, c, discardLogger())
	ctx := context.Background()

	_, err := src.ListRepositories(ctx, "bob", true, "gho_alice")
	require.NoError(t, err)
	_, err = src.ListRepositories(ctx, "bob", true, "gho_bob")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.repoCalls, "a listing made with another token must not be reused")
	for _, k := range mr.Keys() {
		assert.NotContains(t, k, "gho_", "raw tokens must not appear in cache keys")
	}
}

func TestSource_ErrorsAreNotCached(t *testing.T) {
	c, mr := setupTestCache(t)
	inner := &countingSource{err: errors.New("boom")}
	src := NewSource(inner, c, discardLogger())

	_, err := src.ListRepositories(context.Background(), "octocat", false, "")
	assert.Error(t, err)
	assert.False(t, mr.Exists("repos:octocat:public"))
}

func TestSource_BypassesUnavailableCache(t *testing.T) {
	c, mr := setupTestCache(t)
	inner := &countingSource{}
	src := NewSource(inner, c, discardLogger())

	mr.Close()

	repos, err := src.ListRepositories(context.Background(), "octocat", false, "")
	require.NoError(t, err)
	assert.Len(t, repos, 1)
	assert.Equal(t, 1, inner.repoCalls)
}
