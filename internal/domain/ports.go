package domain

import (
	"context"
	"io"

	"github.com/cwygoda/thaw/internal/progress"
)

// JobStateStore is the driven port for job state persistence.
type JobStateStore interface {
	// Exists is true only for a record younger than the staleness threshold.
	Exists(ctx context.Context, info ArchiveInfo) (bool, error)
	// Load returns ErrJobStateNotFound for absent or malformed records and
	// ErrJobStateMismatch when the record belongs to another archive.
	Load(ctx context.Context, info ArchiveInfo) (*JobState, error)
	Save(ctx context.Context, state JobState) error
	// Delete is idempotent.
	Delete(ctx context.Context, info ArchiveInfo) error
}

// JobBackend is the driven port for asynchronous backend jobs.
type JobBackend interface {
	InitiateRetrievalJob(ctx context.Context, vault, archiveID, tier, description string) (string, error)
	InitiateInventoryJob(ctx context.Context, vault string) (string, error)
	DescribeJob(ctx context.Context, vault, jobID string) (*JobStatus, error)
	FetchJobOutput(ctx context.Context, vault, jobID string) (io.ReadCloser, error)
}

// Transferer is the driven port for whole-archive bulk transfers.
type Transferer interface {
	BulkUpload(ctx context.Context, vault, description, localPath string, listener progress.Listener) (string, error)
	BulkDownload(ctx context.Context, vault, jobID, destPath string, size int64, listener progress.Listener) error
}

// ArchiveDeleter is the driven port for archive removal.
type ArchiveDeleter interface {
	DeleteArchive(ctx context.Context, vault, archiveID string) error
}

// JobWaiter blocks until a backend job reaches a terminal state.
type JobWaiter interface {
	Wait(ctx context.Context, vault, jobID string) (*JobStatus, error)
}
