package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amishk599/skillpiler/internal/model"
)

const (
	jobsKey         = "skillpiler:jobs"
	completedKey    = "skillpiler:jobs:completed"
	timeSeriesKeyFn = "skillpiler:timeseries:%s"
)

// RedisStore keeps jobs in a hash and indexes finished jobs by completion
// time in a sorted set so Cleanup can range over them.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return &RedisStore{client: client, now: time.Now}, nil
}

func (s *RedisStore) SaveJob(ctx context.Context, job model.AnalysisJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job %s: %w", job.JobID, err)
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, jobsKey, job.JobID, data)
	if job.CompletedAt != nil {
		pipe.ZAdd(ctx, completedKey, redis.Z{Score: float64(job.CompletedAt.Unix()), Member: job.JobID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving job %s: %w", job.JobID, err)
	}
	return nil
}

func (s *RedisStore) GetJob(ctx context.Context, jobID string) (model.AnalysisJob, error) {
	data, err := s.client.HGet(ctx, jobsKey, jobID).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.AnalysisJob{}, model.ErrNotFound
	}
	if err != nil {
		return model.AnalysisJob{}, fmt.Errorf("loading job %s: %w", jobID, err)
	}
	var job model.AnalysisJob
	if err := json.Unmarshal(data, &job); err != nil {
		return model.AnalysisJob{}, fmt.Errorf("decoding job %s: %w", jobID, err)
	}
	return job, nil
}

func (s *RedisStore) SaveTimeSeries(ctx context.Context, username string, points []model.TimeSeriesPoint) error {
	data, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("encoding time series for %s: %w", username, err)
	}
	if err := s.client.Set(ctx, fmt.Sprintf(timeSeriesKeyFn, username), data, 0).Err(); err != nil {
		return fmt.Errorf("saving time series for %s: %w", username, err)
	}
	return nil
}

func (s *RedisStore) GetTimeSeries(ctx context.Context, username string) ([]model.TimeSeriesPoint, error) {
	data, err := s.client.Get(ctx, fmt.Sprintf(timeSeriesKeyFn, username)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading time series for %s: %w", username, err)
	}
	var points []model.TimeSeriesPoint
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("decoding time series for %s: %w", username, err)
	}
	return points, nil
}

// Cleanup deletes finished jobs completed more than olderThan ago.
func (s *RedisStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan).Unix()
	ids, err := s.client.ZRangeByScore(ctx, completedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("listing expired jobs: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	pipe := s.client.TxPipeline()
	pipe.HDel(ctx, jobsKey, ids...)
	pipe.ZRem(ctx, completedKey, members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("cleaning up jobs older than %v: %w", olderThan, err)
	}
	return len(ids), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
