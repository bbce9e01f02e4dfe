package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cwygoda/thaw/internal/logging"
)

// Retrieval is a backend job whose output is ready to be fetched.
type Retrieval struct {
	State   JobState
	Status  JobStatus
	Resumed bool
}

// RetrievalService orchestrates archive-retrieval jobs: it resumes a
// persisted job when one is fresh, starts a new one otherwise, and waits for
// the backend to report it complete.
type RetrievalService struct {
	jobs   JobBackend
	store  JobStateStore
	waiter JobWaiter
	log    logging.Logger
	now    func() time.Time
}

// NewRetrievalService creates a new RetrievalService.
func NewRetrievalService(jobs JobBackend, store JobStateStore, waiter JobWaiter, log logging.Logger) *RetrievalService {
	return &RetrievalService{
		jobs:   jobs,
		store:  store,
		waiter: waiter,
		log:    log,
		now:    time.Now,
	}
}

// Prepare returns once the retrieval job for info has completed. State is
// left in place on failure so that a rerun resumes the same job.
func (s *RetrievalService) Prepare(ctx context.Context, info ArchiveInfo) (*Retrieval, error) {
	if !info.IsRemote() {
		return nil, fmt.Errorf("%w: archive id is required for retrieval", ErrInvalidArchive)
	}
	log := s.log.With("vault", info.Vault(), "archive_id", info.ArchiveID(), "key", info.StateKey())

	state, err := s.resume(ctx, info, log)
	if err != nil {
		return nil, err
	}
	resumed := state != nil
	if !resumed {
		if state, err = s.initiate(ctx, info, log); err != nil {
			return nil, err
		}
	}

	log = log.With("job_id", state.JobID)
	log.Debug(ctx, "job phase", "phase", PhasePolling)
	started := s.now()

	status, err := s.waiter.Wait(ctx, info.Vault(), state.JobID)
	if err != nil {
		var failed *JobFailedError
		if errors.As(err, &failed) {
			log.Error(ctx, "retrieval job failed", "phase", PhaseFailed, "status_message", failed.StatusMessage)
		}
		return nil, err
	}

	log.Info(ctx, "retrieval job completed", "phase", PhaseReady, "waited", s.now().Sub(started).Round(time.Second))
	return &Retrieval{State: *state, Status: *status, Resumed: resumed}, nil
}

// Cleanup removes the persisted state for info. Call it only after the
// output has been fully written.
func (s *RetrievalService) Cleanup(ctx context.Context, info ArchiveInfo) error {
	if err := s.store.Delete(ctx, info); err != nil {
		return fmt.Errorf("delete job state: %w", err)
	}
	s.log.Debug(ctx, "job state deleted", "key", info.StateKey())
	return nil
}

func (s *RetrievalService) resume(ctx context.Context, info ArchiveInfo, log logging.Logger) (*JobState, error) {
	ok, err := s.store.Exists(ctx, info)
	if err != nil {
		return nil, fmt.Errorf("check job state: %w", err)
	}
	if !ok {
		log.Debug(ctx, "job phase", "phase", PhaseNoJob)
		return nil, nil
	}

	state, err := s.store.Load(ctx, info)
	switch {
	case errors.Is(err, ErrJobStateMismatch):
		log.Warn(ctx, "persisted job belongs to another archive, starting a new one")
		return nil, nil
	case errors.Is(err, ErrJobStateNotFound):
		log.Debug(ctx, "job phase", "phase", PhaseNoJob)
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("load job state: %w", err)
	}
	if !state.Matches(info) {
		log.Warn(ctx, "persisted job belongs to another archive, starting a new one", "persisted_archive_id", state.ArchiveID)
		return nil, nil
	}

	log.Info(ctx, "resuming retrieval job", "job_id", state.JobID, "created_at", state.CreatedAt)
	return state, nil
}

func (s *RetrievalService) initiate(ctx context.Context, info ArchiveInfo, log logging.Logger) (*JobState, error) {
	log.Debug(ctx, "job phase", "phase", PhaseInitiating)
	jobID, err := s.jobs.InitiateRetrievalJob(ctx, info.Vault(), info.ArchiveID(), TierStandard, info.RetrievalDescription())
	if err != nil {
		return nil, fmt.Errorf("initiate retrieval job: %w", err)
	}

	state := NewJobState(info, jobID, s.now())
	if err := s.store.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save job state for job %s: %w", jobID, err)
	}
	log.Info(ctx, "retrieval job initiated", "job_id", jobID)
	return &state, nil
}

// ArchiveService removes archives from a vault.
type ArchiveService struct {
	deleter ArchiveDeleter
	log     logging.Logger
}

// NewArchiveService creates a new ArchiveService.
func NewArchiveService(deleter ArchiveDeleter, log logging.Logger) *ArchiveService {
	return &ArchiveService{deleter: deleter, log: log}
}

// Delete removes archiveID from vault.
func (s *ArchiveService) Delete(ctx context.Context, vault, archiveID string) error {
	if vault == "" {
		return ErrEmptyVault
	}
	if archiveID == "" {
		return fmt.Errorf("%w: archive id is required", ErrInvalidArchive)
	}
	if err := s.deleter.DeleteArchive(ctx, vault, archiveID); err != nil {
		return fmt.Errorf("delete archive %s: %w", archiveID, err)
	}
	s.log.Info(ctx, "archive deleted", "vault", vault, "archive_id", archiveID)
	return nil
}
