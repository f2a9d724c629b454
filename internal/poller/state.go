package poller

import "github.com/amishk599/skillpiler/internal/model"

// Phase is the lifecycle position of the current polling session.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhasePolling    Phase = "polling"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
	PhaseTimedOut   Phase = "timed_out"
)

// Terminal reports whether the session has finished.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed || p == PhaseTimedOut
}

// ErrorKind classifies where the current error came from.
type ErrorKind string

const (
	ErrorNone        ErrorKind = ""
	SubmissionError  ErrorKind = "submission"
	StatusCheckError ErrorKind = "status_check"
	ResultFetchError ErrorKind = "result_fetch"
	JobFailedError   ErrorKind = "job_failed"
	TimeoutError     ErrorKind = "timeout"
	TimeSeriesError  ErrorKind = "time_series"
)

// State is an immutable snapshot of the poller. Every change produces a new
// State; pointers and slices inside a snapshot must not be mutated.
type State struct {
	CurrentJob          *model.AnalysisJob
	CurrentResult       *model.AnalysisResult
	TimeSeries          []model.TimeSeriesPoint
	IsLoading           bool
	IsLoadingTimeSeries bool
	Error               string // empty when absent
	ErrorKind           ErrorKind
	Phase               Phase
	Attempts            int // status checks issued by the current session
}

// HasError reports whether an error message is present.
func (s State) HasError() bool { return s.Error != "" }
