// Package transfer runs whole-archive uploads and downloads with progress
// reporting and throughput accounting.
package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/cwygoda/thaw/internal/domain"
	"github.com/cwygoda/thaw/internal/logging"
	"github.com/cwygoda/thaw/internal/progress"
)

// Result summarizes a finished transfer.
type Result struct {
	Bytes   int64
	Elapsed time.Duration
}

// Throughput returns MiB per second, or 0 when no time elapsed.
func (r Result) Throughput() float64 {
	secs := r.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(r.Bytes) / (1024 * 1024) / secs
}

// Executor wraps a domain.Transferer with progress and timing.
type Executor struct {
	backend  domain.Transferer
	reporter progress.Reporter
	log      logging.Logger
	now      func() time.Time
}

// New creates a new Executor.
func New(backend domain.Transferer, reporter progress.Reporter, log logging.Logger) *Executor {
	return &Executor{backend: backend, reporter: reporter, log: log, now: time.Now}
}

// Upload stores info's local file as a new archive and returns its id.
// Backend errors are returned as is.
func (e *Executor) Upload(ctx context.Context, info domain.ArchiveInfo) (string, *Result, error) {
	if info.IsRemote() {
		return "", nil, fmt.Errorf("%w: upload needs a local archive", domain.ErrInvalidArchive)
	}
	log := e.log.With("vault", info.Vault(), "file", info.LocalPath())
	log.Info(ctx, "uploading archive", "size", humanize.IBytes(uint64(info.SizeBytes())))

	listener, _ := progress.Listen(ctx, info.SizeBytes(), e.reporter)
	start := e.now()
	archiveID, err := e.backend.BulkUpload(ctx, info.Vault(), info.Description(), info.LocalPath(), listener)
	if err != nil {
		return "", nil, err
	}

	res := &Result{Bytes: info.SizeBytes(), Elapsed: e.now().Sub(start)}
	log.Info(ctx, "upload complete",
		"archive_id", archiveID,
		"elapsed", res.Elapsed.Round(time.Millisecond),
		"throughput", fmt.Sprintf("%.2f MB/s", res.Throughput()),
	)
	return archiveID, res, nil
}

// Download fetches the output of the completed job into info's local path.
func (e *Executor) Download(ctx context.Context, info domain.ArchiveInfo, jobID string) (*Result, error) {
	if !info.IsRemote() {
		return nil, fmt.Errorf("%w: download needs a remote archive", domain.ErrInvalidArchive)
	}
	log := e.log.With("vault", info.Vault(), "archive_id", info.ArchiveID(), "job_id", jobID)
	log.Info(ctx, "downloading archive", "file", info.LocalPath(), "size", humanize.IBytes(uint64(info.SizeBytes())))

	listener, tracker := progress.Listen(ctx, info.SizeBytes(), e.reporter)
	start := e.now()
	if err := e.backend.BulkDownload(ctx, info.Vault(), jobID, info.LocalPath(), info.SizeBytes(), listener); err != nil {
		return nil, err
	}

	res := &Result{Bytes: info.SizeBytes(), Elapsed: e.now().Sub(start)}
	if res.Bytes == 0 {
		res.Bytes = tracker.Transferred()
	}
	log.Info(ctx, "download complete",
		"elapsed", res.Elapsed.Round(time.Millisecond),
		"throughput", fmt.Sprintf("%.2f MB/s", res.Throughput()),
	)
	return res, nil
}
