// Package worker waits on asynchronous backend jobs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/cwygoda/thaw/internal/domain"
	"github.com/cwygoda/thaw/internal/logging"
)

var errNotReady = errors.New("job not ready")

// StatusSource reports the current status of a backend job.
type StatusSource interface {
	DescribeJob(ctx context.Context, vault, jobID string) (*domain.JobStatus, error)
}

// Policy controls how a job is polled. Interval is slept before every
// status check, including the first. A zero MaxWait polls until the job
// settles or ctx is done.
type Policy struct {
	Interval time.Duration
	Jitter   time.Duration
	MaxWait  time.Duration
}

// Validate checks the policy for values the poller cannot work with.
func (p Policy) Validate() error {
	switch {
	case p.Interval <= 0:
		return fmt.Errorf("poll interval must be positive, got %s", p.Interval)
	case p.Jitter < 0:
		return fmt.Errorf("poll jitter must not be negative, got %s", p.Jitter)
	case p.MaxWait < 0:
		return fmt.Errorf("max poll wait must not be negative, got %s", p.MaxWait)
	}
	return nil
}

func (p Policy) backoff() retry.Backoff {
	b := retry.NewConstant(p.Interval)
	if p.Jitter > 0 {
		b = retry.WithJitter(p.Jitter, b)
	}
	if p.MaxWait > 0 {
		b = retry.WithMaxDuration(p.MaxWait, b)
	}
	return b
}

// Poller blocks until a job completes, fails, or the policy gives up.
// Transient backend errors are retried on the next tick and never surface.
type Poller struct {
	jobs   StatusSource
	policy Policy
	log    logging.Logger
}

// New creates a new Poller.
func New(jobs StatusSource, policy Policy, log logging.Logger) (*Poller, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Poller{jobs: jobs, policy: policy, log: log}, nil
}

// Wait polls jobID until it completes. A job reported as Failed yields a
// *domain.JobFailedError; running out of MaxWait yields domain.ErrPollTimeout.
func (p *Poller) Wait(ctx context.Context, vault, jobID string) (*domain.JobStatus, error) {
	log := p.log.With("vault", vault, "job_id", jobID)
	log.Info(ctx, "waiting for job", "interval", p.policy.Interval)

	b := p.policy.backoff()
	if err := sleep(ctx, p.policy.Interval); err != nil {
		return nil, err
	}

	polls := 0
	status, err := retry.DoValue(ctx, b, func(ctx context.Context) (*domain.JobStatus, error) {
		polls++
		status, err := p.jobs.DescribeJob(ctx, vault, jobID)
		switch {
		case domain.IsTransient(err):
			log.Debug(ctx, "transient error, will retry", "poll", polls, "error", err)
			return nil, retry.RetryableError(err)
		case err != nil:
			return nil, fmt.Errorf("describe job %s: %w", jobID, err)
		case status.Failed():
			return nil, &domain.JobFailedError{
				JobID:         jobID,
				StatusCode:    status.StatusCode,
				StatusMessage: status.StatusMessage,
			}
		case !status.Completed:
			log.Debug(ctx, "job not ready", "poll", polls, "status", status.StatusCode)
			return nil, retry.RetryableError(errNotReady)
		}
		return status, nil
	})
	if err != nil {
		if ctx.Err() == nil && (errors.Is(err, errNotReady) || domain.IsTransient(err)) {
			return nil, fmt.Errorf("%w: job %s after %d polls: %w", domain.ErrPollTimeout, jobID, polls, err)
		}
		return nil, err
	}

	log.Info(ctx, "job completed", "polls", polls, "status", status.StatusCode)
	return status, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
