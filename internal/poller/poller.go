package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/amishk599/skillpiler/internal/clock"
	"github.com/amishk599/skillpiler/internal/metrics"
	"github.com/amishk599/skillpiler/internal/model"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 60

	TimeoutMessage      = "Analysis timeout - please try again"
	JobFailedMessage    = "Analysis failed"
	UnknownErrorMessage = "Unknown error"
)

// Options tunes the polling schedule. Zero values fall back to the defaults.
type Options struct {
	Interval    time.Duration
	MaxAttempts int
	Clock       clock.Clock
}

// JobPoller submits analysis jobs and polls them to a terminal state,
// publishing every change as a new State snapshot.
type JobPoller struct {
	svc         model.AnalysisService
	clock       clock.Clock
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger

	mu        sync.Mutex
	state     State
	session   uint64 // bumped whenever a polling session is started or abandoned
	cancel    context.CancelFunc
	tsSession uint64
	subs      map[uint64]chan State
	nextSub   uint64
	wg        sync.WaitGroup
}

// New creates a poller driving svc.
func New(svc model.AnalysisService, opts Options, logger *slog.Logger) *JobPoller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &JobPoller{
		svc:         svc,
		clock:       opts.Clock,
		interval:    opts.Interval,
		maxAttempts: opts.MaxAttempts,
		logger:      logger,
		state:       State{Phase: PhaseIdle},
		subs:        make(map[uint64]chan State),
	}
}

// MaxAttempts returns the number of status checks before a session times out.
func (p *JobPoller) MaxAttempts() int { return p.maxAttempts }

// State returns the current snapshot.
func (p *JobPoller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Subscribe returns a channel that always holds the latest snapshot, starting
// with the current one. Intermediate snapshots may be skipped by slow readers.
func (p *JobPoller) Subscribe() (<-chan State, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSub
	p.nextSub++
	ch := make(chan State, 1)
	ch <- p.state
	p.subs[id] = ch

	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(ch)
		}
	}
}

// Start submits req and, once accepted, polls the returned job. Any session
// already in progress is abandoned and the previous time series is dropped.
// Failures are recorded in State.
func (p *JobPoller) Start(ctx context.Context, req model.AnalysisRequest) {
	p.mu.Lock()
	gen, sctx := p.newSessionLocked(ctx)
	// A series still loading belongs to the previous analysis.
	p.tsSession++
	p.updateLocked(func(s *State) {
		s.IsLoading = true
		s.Error = ""
		s.ErrorKind = ErrorNone
		s.CurrentResult = nil
		s.TimeSeries = nil
		s.IsLoadingTimeSeries = false
		s.Phase = PhaseSubmitting
		s.Attempts = 0
	})
	p.mu.Unlock()

	p.logger.Info("submitting analysis",
		"username", req.GitHubUsername,
		"include_private", req.IncludePrivate,
	)

	job, err := p.svc.Submit(sctx, req)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.session {
		return
	}
	if err != nil {
		p.logger.Warn("analysis submission failed", "username", req.GitHubUsername, "error", err)
		p.finishLocked(PhaseFailed, SubmissionError, messageOf(err))
		p.releaseLocked(gen)
		return
	}

	p.logger.Info("analysis accepted", "job_id", job.JobID, "status", job.Status)
	p.updateLocked(func(s *State) { s.CurrentJob = &job })
	p.pollLocked(sctx, gen, job.JobID)
}

// PollJobStatus polls an existing job until it reaches a terminal state or
// the attempt budget runs out. Any session already in progress is abandoned.
func (p *JobPoller) PollJobStatus(ctx context.Context, jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	gen, sctx := p.newSessionLocked(ctx)
	p.pollLocked(sctx, gen, jobID)
}

// ClearAnalysis abandons any session and resets the job, result, time series,
// error and loading flags.
func (p *JobPoller) ClearAnalysis() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.abandonLocked()
	p.tsSession++
	p.updateLocked(func(s *State) {
		*s = State{Phase: PhaseIdle}
	})
}

// SetError overwrites the error message. An empty message clears it.
func (p *JobPoller) SetError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updateLocked(func(s *State) {
		s.Error = msg
		if msg == "" {
			s.ErrorKind = ErrorNone
		}
	})
}

// LoadTimeSeriesData fetches the monthly series for username. months <= 0
// requests the whole history. It blocks until the fetch completes.
func (p *JobPoller) LoadTimeSeriesData(ctx context.Context, username string, months int) {
	p.mu.Lock()
	p.tsSession++
	gen := p.tsSession
	p.updateLocked(func(s *State) { s.IsLoadingTimeSeries = true })
	p.mu.Unlock()

	points, err := p.svc.TimeSeries(ctx, username, months)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.tsSession {
		return
	}
	if err != nil {
		p.logger.Warn("time series fetch failed", "username", username, "months", months, "error", err)
		p.updateLocked(func(s *State) {
			s.Error = messageOf(err)
			s.ErrorKind = TimeSeriesError
			s.IsLoadingTimeSeries = false
		})
		return
	}
	p.updateLocked(func(s *State) {
		s.TimeSeries = points
		s.IsLoadingTimeSeries = false
	})
}

// Wait blocks until every polling goroutine has exited.
func (p *JobPoller) Wait() {
	p.wg.Wait()
}

func (p *JobPoller) newSessionLocked(ctx context.Context) (uint64, context.Context) {
	p.abandonLocked()
	sctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	return p.session, sctx
}

func (p *JobPoller) abandonLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.session++
}

func (p *JobPoller) pollLocked(ctx context.Context, gen uint64, jobID string) {
	// The ticker is created before returning so the first tick is due
	// exactly one interval after the call.
	ticker := p.clock.NewTicker(p.interval)
	p.updateLocked(func(s *State) {
		s.Phase = PhasePolling
		s.Attempts = 0
	})

	p.wg.Add(1)
	go p.run(ctx, gen, jobID, ticker)
}

func (p *JobPoller) run(ctx context.Context, gen uint64, jobID string, ticker clock.Ticker) {
	defer p.wg.Done()
	defer ticker.Stop()
	defer p.release(gen)

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}
		if ctx.Err() != nil {
			return
		}
		attempts++
		if p.check(ctx, gen, jobID, attempts) {
			return
		}
	}
}

// check performs one status round trip and reports whether the session is over.
func (p *JobPoller) check(ctx context.Context, gen uint64, jobID string, attempt int) bool {
	metrics.RecordPollAttempt()
	p.logger.Debug("checking job status", "job_id", jobID, "attempt", attempt, "max_attempts", p.maxAttempts)

	job, err := p.svc.Status(ctx, jobID)
	if err != nil {
		return p.fail(gen, StatusCheckError, err, "job_id", jobID, "attempt", attempt)
	}

	switch job.Status {
	case model.StatusCompleted:
		if !p.apply(gen, func(s *State) {
			s.CurrentJob = &job
			s.Attempts = attempt
		}) {
			return true
		}

		result, err := p.svc.FetchResult(ctx, jobID)
		if err != nil {
			return p.fail(gen, ResultFetchError, err, "job_id", jobID)
		}
		if p.apply(gen, func(s *State) {
			s.CurrentResult = &result
			s.IsLoading = false
			s.Phase = PhaseSucceeded
		}) {
			metrics.RecordPollOutcome(string(PhaseSucceeded))
			p.logger.Info("analysis completed",
				"job_id", jobID,
				"username", result.Username,
				"languages", len(result.Languages),
				"attempts", attempt,
			)
		}
		return true

	case model.StatusFailed:
		msg := job.ErrorMessage
		if msg == "" {
			msg = JobFailedMessage
		}
		if p.apply(gen, func(s *State) {
			s.CurrentJob = &job
			s.Attempts = attempt
			s.Error = msg
			s.ErrorKind = JobFailedError
			s.IsLoading = false
			s.Phase = PhaseFailed
		}) {
			metrics.RecordPollOutcome(string(PhaseFailed))
			p.logger.Warn("analysis failed", "job_id", jobID, "error", msg)
		}
		return true

	default:
		timedOut := attempt >= p.maxAttempts
		applied := p.apply(gen, func(s *State) {
			s.CurrentJob = &job
			s.Attempts = attempt
			if timedOut {
				s.Error = TimeoutMessage
				s.ErrorKind = TimeoutError
				s.IsLoading = false
				s.Phase = PhaseTimedOut
			}
		})
		if !applied {
			return true
		}
		if timedOut {
			metrics.RecordPollOutcome(string(PhaseTimedOut))
			p.logger.Warn("analysis timed out", "job_id", jobID, "attempts", attempt)
		}
		return timedOut
	}
}

func (p *JobPoller) fail(gen uint64, kind ErrorKind, err error, logArgs ...any) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.session {
		return true
	}
	p.logger.Warn("polling stopped", append(logArgs, "kind", kind, "error", err)...)
	p.finishLocked(PhaseFailed, kind, messageOf(err))
	return true
}

func (p *JobPoller) finishLocked(phase Phase, kind ErrorKind, msg string) {
	metrics.RecordPollOutcome(string(phase))
	p.updateLocked(func(s *State) {
		s.Error = msg
		s.ErrorKind = kind
		s.IsLoading = false
		s.Phase = phase
	})
}

// release drops the cancel func of a session that ended on its own.
func (p *JobPoller) release(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releaseLocked(gen)
}

func (p *JobPoller) releaseLocked(gen uint64) {
	if gen == p.session && p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// apply runs fn against a copy of the state if gen is still current.
func (p *JobPoller) apply(gen uint64, fn func(s *State)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.session {
		return false
	}
	p.updateLocked(fn)
	return true
}

func (p *JobPoller) updateLocked(fn func(s *State)) {
	next := p.state
	fn(&next)
	p.state = next
	for _, ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		ch <- next
	}
}

// messageOf extracts the user-facing message of a failure.
func messageOf(err error) string {
	if err == nil {
		return UnknownErrorMessage
	}
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.Err != nil {
		if msg := httpErr.Err.Error(); msg != "" {
			return msg
		}
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return UnknownErrorMessage
}
