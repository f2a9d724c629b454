package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), mr.Addr())
	require.NoError(t, err)
	s.now = func() time.Time { return testNow }
	t.Cleanup(func() { s.Close() })
	return mr, s
}

func TestRedisStore(t *testing.T) {
	_, s := newRedisStore(t)
	exerciseStore(t, s)
}

func TestRedisStore_IndexesCompletedJobs(t *testing.T) {
	mr, s := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveJob(ctx, completedJob("job-1", testNow)))

	assert.True(t, mr.Exists(jobsKey))
	members, err := mr.ZMembers(completedKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"job-1"}, members)
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisStore(context.Background(), addr)
	assert.Error(t, err)
}
