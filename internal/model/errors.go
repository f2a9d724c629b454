package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrJobNotCompleted = errors.New("job is not completed")
	ErrEmptyUsername   = errors.New("github username is required")
	ErrUnauthorized    = errors.New("not authenticated")
)

// JobNotCompletedError reports a result request for a job that is still
// running or has failed.
type JobNotCompletedError struct {
	JobID  string
	Status JobStatus
}

func (e *JobNotCompletedError) Error() string {
	return fmt.Sprintf("Job %s is not completed (status: %s)", e.JobID, e.Status)
}

func (e *JobNotCompletedError) Is(target error) bool {
	return target == ErrJobNotCompleted
}

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}
