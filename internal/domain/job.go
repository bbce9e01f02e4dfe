package domain

import (
	"fmt"
	"strings"
	"time"
)

// Retrieval job parameters understood by the backend.
const (
	JobTypeArchiveRetrieval   = "archive-retrieval"
	JobTypeInventoryRetrieval = "inventory-retrieval"
	TierStandard              = "Standard"
	StatusCodeFailed          = "Failed"
)

// DefaultStaleAfter is the backend's job-readiness window. Persisted job
// references older than this are presumed expired server-side.
const DefaultStaleAfter = 18 * time.Hour

// JobPhase is a step of the retrieval state machine.
type JobPhase string

const (
	PhaseNoJob      JobPhase = "no-job"
	PhaseInitiating JobPhase = "initiating"
	PhasePolling    JobPhase = "polling"
	PhaseReady      JobPhase = "ready"
	PhaseFailed     JobPhase = "failed"
)

// JobState is the durable record of an in-flight retrieval job.
type JobState struct {
	Key       string
	Vault     string
	ArchiveID string
	JobID     string
	CreatedAt time.Time
}

// NewJobState builds the record persisted right after a job is initiated.
func NewJobState(info ArchiveInfo, jobID string, now time.Time) JobState {
	return JobState{
		Key:       info.StateKey(),
		Vault:     info.Vault(),
		ArchiveID: info.ArchiveID(),
		JobID:     jobID,
		CreatedAt: now,
	}
}

// Stale returns true once the record is at least staleAfter old.
func (s JobState) Stale(now time.Time, staleAfter time.Duration) bool {
	return !now.Before(s.CreatedAt.Add(staleAfter))
}

// Matches returns true if the record belongs to info's archive.
func (s JobState) Matches(info ArchiveInfo) bool {
	return s.ArchiveID == info.ArchiveID()
}

// JobStatus is the backend's view of a job.
type JobStatus struct {
	Completed     bool
	StatusCode    string
	StatusMessage string
	// SizeBytes is the size of the job output, or 0 when the backend does
	// not report one.
	SizeBytes int64
}

// Failed reports a terminal backend failure. The comparison is
// case-insensitive.
func (s JobStatus) Failed() bool {
	return strings.EqualFold(s.StatusCode, StatusCodeFailed)
}

// InventoryJob is a vault inventory retrieval scoped to one invocation.
type InventoryJob struct {
	Vault     string
	JobID     string
	StartedAt time.Time
}

// OutputName returns the file name the inventory is saved under, stamped
// with the retrieval time in UTC.
func (j InventoryJob) OutputName(retrievedAt time.Time) string {
	return fmt.Sprintf("%s_inventory_%s.json", j.Vault, retrievedAt.UTC().Format("20060102T150405Z"))
}
