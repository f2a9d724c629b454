// Package scheduler runs periodic maintenance tasks for the analysis server.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/amishk599/skillpiler/internal/metrics"
)

// Task is one unit of periodic work.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler owns the maintenance loop: ticks on an interval and runs each task sequentially.
type Scheduler struct {
	tasks    []Task
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler that runs all tasks at the given interval.
func NewScheduler(tasks []Task, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		tasks:    tasks,
		interval: interval,
		logger:   logger,
	}
}

// Run runs one immediate cycle, then ticks on the configured interval. It
// returns nil when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("starting scheduler",
		"interval", s.interval.String(),
		"tasks", len(s.tasks),
	)

	s.runAll(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down scheduler")
			return nil
		case <-time.After(s.interval):
			s.runAll(ctx)
		}
	}
}

// runAll runs every task in order. A failing task does not stop the rest.
func (s *Scheduler) runAll(ctx context.Context) {
	for _, t := range s.tasks {
		if ctx.Err() != nil {
			return
		}
		if err := t.Run(ctx); err != nil {
			s.logger.Error("task failed",
				"task", t.Name(),
				"error", err,
			)
		}
	}
}

// Purger removes finished jobs older than a retention period.
type Purger interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)
}

// CleanupTask purges finished analysis jobs past their retention.
type CleanupTask struct {
	purger    Purger
	retention time.Duration
	logger    *slog.Logger
}

func NewCleanupTask(purger Purger, retention time.Duration, logger *slog.Logger) *CleanupTask {
	return &CleanupTask{purger: purger, retention: retention, logger: logger}
}

func (c *CleanupTask) Name() string { return "job-cleanup" }

func (c *CleanupTask) Run(ctx context.Context) error {
	n, err := c.purger.Cleanup(ctx, c.retention)
	if err != nil {
		return err
	}
	metrics.RecordJobsPurged(n)
	if n > 0 {
		c.logger.Info("purged finished jobs", "count", n, "retention", c.retention.String())
	}
	return nil
}
