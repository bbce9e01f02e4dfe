package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyVault       = errors.New("vault name must be provided")
	ErrInvalidArchive   = errors.New("invalid archive")
	ErrJobStateNotFound = errors.New("job state not found")
	// ErrJobStateMismatch is returned when the persisted state belongs to a
	// different archive. It matches ErrJobStateNotFound under errors.Is.
	ErrJobStateMismatch = fmt.Errorf("%w: archive id mismatch", ErrJobStateNotFound)
	ErrTransient        = errors.New("transient backend error")
	ErrPollTimeout      = errors.New("job did not complete within the polling window")
)

// TransientError marks a backend failure that should be retried on the next
// poll tick (service unavailable, throttling).
type TransientError struct {
	Code string
	Err  error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient %s: %v", e.Code, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// JobFailedError is returned when the backend reports a job as Failed.
type JobFailedError struct {
	JobID         string
	StatusCode    string
	StatusMessage string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s failed (%s): %s", e.JobID, e.StatusCode, e.StatusMessage)
}
