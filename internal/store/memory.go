package store

import (
	"context"
	"sync"
	"time"

	"github.com/amishk599/skillpiler/internal/model"
)

// MemoryStore keeps jobs in process memory. Used in tests and when no
// persistent backend is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	jobs   map[string]model.AnalysisJob
	series map[string][]model.TimeSeriesPoint
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:   make(map[string]model.AnalysisJob),
		series: make(map[string][]model.TimeSeriesPoint),
		now:    time.Now,
	}
}

func (s *MemoryStore) SaveJob(_ context.Context, job model.AnalysisJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = job
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, jobID string) (model.AnalysisJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return model.AnalysisJob{}, model.ErrNotFound
	}
	return job, nil
}

func (s *MemoryStore) SaveTimeSeries(_ context.Context, username string, points []model.TimeSeriesPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[username] = points
	return nil
}

func (s *MemoryStore) GetTimeSeries(_ context.Context, username string) ([]model.TimeSeriesPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	points, ok := s.series[username]
	if !ok {
		return nil, model.ErrNotFound
	}
	return points, nil
}

// Cleanup removes finished jobs completed more than olderThan ago.
func (s *MemoryStore) Cleanup(_ context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, job := range s.jobs {
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Close() error { return nil }
