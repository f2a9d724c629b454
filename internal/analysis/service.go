// Package analysis runs GitHub skill analyses as background jobs.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/amishk599/skillpiler/internal/clock"
	"github.com/amishk599/skillpiler/internal/intensity"
	"github.com/amishk599/skillpiler/internal/metrics"
	"github.com/amishk599/skillpiler/internal/model"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 100
	// repoConcurrency bounds parallel GitHub calls within one job.
	repoConcurrency = 4
	saveTimeout     = 5 * time.Second
)

var ErrQueueFull = errors.New("analysis queue is full")

// Repository persists jobs and per-user time series.
type Repository interface {
	SaveJob(ctx context.Context, job model.AnalysisJob) error
	GetJob(ctx context.Context, jobID string) (model.AnalysisJob, error)
	SaveTimeSeries(ctx context.Context, username string, points []model.TimeSeriesPoint) error
	GetTimeSeries(ctx context.Context, username string) ([]model.TimeSeriesPoint, error)
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)
	Close() error
}

// Options tunes the worker pool.
type Options struct {
	Workers   int
	QueueSize int
	Clock     clock.Clock
	// DefaultToken authenticates public GitHub reads for requests that carry
	// no token of their own.
	DefaultToken string
}

// Ensure Service implements model.AnalysisService.
var _ model.AnalysisService = (*Service)(nil)

// Service accepts analysis requests and processes them on a worker pool.
type Service struct {
	repo    Repository
	source  model.RepoSource
	clock   clock.Clock
	workers int
	token   string
	queue   chan work
	logger  *slog.Logger
}

type work struct {
	job model.AnalysisJob
	req model.AnalysisRequest
}

// NewService creates a service. Jobs are processed only while Run is active.
func NewService(repo Repository, source model.RepoSource, opts Options, logger *slog.Logger) *Service {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Service{
		repo:    repo,
		source:  source,
		clock:   opts.Clock,
		workers: opts.Workers,
		token:   opts.DefaultToken,
		queue:   make(chan work, opts.QueueSize),
		logger:  logger,
	}
}

// Run processes queued jobs until ctx is cancelled, then waits for the
// workers to finish their current job.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("starting analysis workers", "workers", s.workers)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case w := <-s.queue:
					s.process(ctx, w)
				}
			}
		}()
	}

	<-ctx.Done()
	wg.Wait()
	s.logger.Info("analysis workers stopped")
	return nil
}

// Submit creates a pending job and queues it.
func (s *Service) Submit(ctx context.Context, req model.AnalysisRequest) (model.AnalysisJob, error) {
	req.GitHubUsername = strings.TrimSpace(req.GitHubUsername)
	if req.GitHubUsername == "" {
		return model.AnalysisJob{}, model.ErrEmptyUsername
	}

	job := model.AnalysisJob{
		JobID:     uuid.NewString(),
		Username:  req.GitHubUsername,
		Status:    model.StatusPending,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.SaveJob(ctx, job); err != nil {
		return model.AnalysisJob{}, fmt.Errorf("create job for %s: %w", req.GitHubUsername, err)
	}

	select {
	case s.queue <- work{job: job, req: req}:
	default:
		now := s.clock.Now()
		job.Status = model.StatusFailed
		job.ErrorMessage = ErrQueueFull.Error()
		job.CompletedAt = &now
		if err := s.repo.SaveJob(ctx, job); err != nil {
			s.logger.Error("failed to record rejected job", "job_id", job.JobID, "error", err)
		}
		return model.AnalysisJob{}, ErrQueueFull
	}

	metrics.RecordAnalysisStarted()
	s.logger.Info("started analysis job",
		"job_id", job.JobID,
		"username", req.GitHubUsername,
		"include_private", req.IncludePrivate,
	)
	return job, nil
}

// Status returns the current handle of a job.
func (s *Service) Status(ctx context.Context, jobID string) (model.AnalysisJob, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return model.AnalysisJob{}, fmt.Errorf("job %s: %w", jobID, err)
	}
	return job, nil
}

// FetchResult returns the result of a completed job.
func (s *Service) FetchResult(ctx context.Context, jobID string) (model.AnalysisResult, error) {
	job, err := s.Status(ctx, jobID)
	if err != nil {
		return model.AnalysisResult{}, err
	}
	if job.Status != model.StatusCompleted || job.Result == nil {
		return model.AnalysisResult{}, &model.JobNotCompletedError{JobID: jobID, Status: job.Status}
	}
	return *job.Result, nil
}

// TimeSeries returns the trailing months of the user's latest completed
// analysis; months <= 0 returns the whole series.
func (s *Service) TimeSeries(ctx context.Context, username string, months int) ([]model.TimeSeriesPoint, error) {
	points, err := s.repo.GetTimeSeries(ctx, seriesKey(username))
	if err != nil {
		return nil, fmt.Errorf("time series for %s: %w", username, err)
	}
	return intensity.LastMonths(points, months), nil
}

func (s *Service) process(ctx context.Context, w work) {
	start := s.clock.Now()
	job := w.job
	job.Status = model.StatusProcessing
	s.save(ctx, job)

	s.logger.Info("processing analysis", "job_id", job.JobID, "username", w.req.GitHubUsername)

	result, series, err := s.analyze(ctx, w.req)

	now := s.clock.Now()
	job.CompletedAt = &now
	if err != nil {
		job.Status = model.StatusFailed
		job.ErrorMessage = userMessage(err)
		s.logger.Error("analysis failed", "job_id", job.JobID, "username", w.req.GitHubUsername, "error", err)
	} else {
		job.Status = model.StatusCompleted
		job.Result = &result
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
		if err := s.repo.SaveTimeSeries(saveCtx, seriesKey(w.req.GitHubUsername), series); err != nil {
			s.logger.Warn("failed to store time series", "username", w.req.GitHubUsername, "error", err)
		}
		cancel()
		s.logger.Info("completed analysis",
			"job_id", job.JobID,
			"username", w.req.GitHubUsername,
			"languages", len(result.Languages),
			"repositories", result.TotalRepositories,
		)
	}
	s.save(ctx, job)
	metrics.RecordAnalysisFinished(string(job.Status), now.Sub(start))
}

func (s *Service) save(ctx context.Context, job model.AnalysisJob) {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	if err := s.repo.SaveJob(saveCtx, job); err != nil {
		s.logger.Error("failed to save job", "job_id", job.JobID, "status", job.Status, "error", err)
	}
}

func (s *Service) analyze(ctx context.Context, req model.AnalysisRequest) (model.AnalysisResult, []model.TimeSeriesPoint, error) {
	username := req.GitHubUsername
	token, private := req.AccessToken, req.IncludePrivate
	if token == "" {
		if private {
			s.logger.Info("no access token, analyzing public repositories only", "username", username)
		}
		token, private = s.token, false
	}

	repos, err := s.source.ListRepositories(ctx, username, private, token)
	if err != nil {
		return model.AnalysisResult{}, nil, err
	}
	if private {
		repos = ownedBy(repos, username)
	}
	s.logger.Info("found repositories", "username", username, "count", len(repos))

	activity := make([]*intensity.RepoActivity, len(repos))
	commitCounts := make([]int, len(repos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(repoConcurrency)
	for i, repo := range repos {
		owner := repo.Owner
		if owner == "" {
			owner = username
		}
		g.Go(func() error {
			langs, err := s.source.RepositoryLanguages(gctx, owner, repo.Name, token)
			if err != nil {
				s.logger.Warn("skipping repository", "repo", owner+"/"+repo.Name, "error", err)
				return nil
			}
			commits, err := s.source.CommitHistory(gctx, owner, repo.Name, token)
			if err != nil {
				s.logger.Warn("skipping repository", "repo", owner+"/"+repo.Name, "error", err)
				return nil
			}

			dates := make([]time.Time, len(commits))
			for j, c := range commits {
				dates[j] = c.Date
			}
			activity[i] = &intensity.RepoActivity{Languages: langs, Commits: dates}
			commitCounts[i] = len(commits)

			s.logger.Debug("processed repository",
				"repo", owner+"/"+repo.Name,
				"languages", len(langs),
				"commits", len(commits),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.AnalysisResult{}, nil, err
	}
	if err := ctx.Err(); err != nil {
		return model.AnalysisResult{}, nil, err
	}

	var repoActivity []intensity.RepoActivity
	totalCommits := 0
	for i, a := range activity {
		if a == nil {
			continue
		}
		repoActivity = append(repoActivity, *a)
		totalCommits += commitCounts[i]
	}

	now := s.clock.Now()
	result := model.AnalysisResult{
		Username:             username,
		AnalysisDate:         now,
		Languages:            intensity.Profile(intensity.Aggregate(repoActivity, now)),
		TotalRepositories:    len(repos),
		TotalCommits:         totalCommits,
		AnalysisPeriodMonths: intensity.RecentMonths,
	}
	return result, intensity.MonthlySeries(repoActivity, now), nil
}

func seriesKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// userMessage extracts the message shown to the user for a failed job.
func userMessage(err error) string {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.Err != nil {
		return httpErr.Err.Error()
	}
	return err.Error()
}

// ownedBy drops repositories of other accounts. A private listing is made
// with the caller's token and must never be attributed to someone else.
func ownedBy(repos []model.Repository, username string) []model.Repository {
	kept := make([]model.Repository, 0, len(repos))
	for _, r := range repos {
		if strings.EqualFold(r.Owner, username) {
			kept = append(kept, r)
		}
	}
	return kept
}
