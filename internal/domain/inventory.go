package domain

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cwygoda/thaw/internal/fsutil"
	"github.com/cwygoda/thaw/internal/logging"
)

// InventoryService fetches a vault's inventory into a local JSON file.
// Inventory jobs are never persisted; each call starts a fresh one.
type InventoryService struct {
	jobs      JobBackend
	waiter    JobWaiter
	outputDir string
	log       logging.Logger
	now       func() time.Time
}

// NewInventoryService creates a new InventoryService writing into outputDir.
func NewInventoryService(jobs JobBackend, waiter JobWaiter, outputDir string, log logging.Logger) *InventoryService {
	return &InventoryService{
		jobs:      jobs,
		waiter:    waiter,
		outputDir: outputDir,
		log:       log,
		now:       time.Now,
	}
}

// Retrieve starts an inventory job for vault, waits for it and saves the
// output. It returns the path of the written file.
func (s *InventoryService) Retrieve(ctx context.Context, vault string) (string, error) {
	if vault == "" {
		return "", ErrEmptyVault
	}

	jobID, err := s.jobs.InitiateInventoryJob(ctx, vault)
	if err != nil {
		return "", fmt.Errorf("initiate inventory job: %w", err)
	}
	job := InventoryJob{Vault: vault, JobID: jobID, StartedAt: s.now()}
	log := s.log.With("vault", vault, "job_id", jobID)
	log.Info(ctx, "inventory job initiated")

	if _, err := s.waiter.Wait(ctx, vault, jobID); err != nil {
		return "", err
	}
	log.Info(ctx, "inventory job completed", "waited", s.now().Sub(job.StartedAt).Round(time.Second))

	out, err := s.jobs.FetchJobOutput(ctx, vault, jobID)
	if err != nil {
		return "", fmt.Errorf("fetch inventory output: %w", err)
	}
	defer out.Close()

	path := filepath.Join(s.outputDir, job.OutputName(s.now()))
	n, err := fsutil.WriteAtomic(path, out, 0o644)
	if err != nil {
		return "", fmt.Errorf("save inventory: %w", err)
	}
	log.Info(ctx, "inventory saved", "path", path, "bytes", n)
	return path, nil
}
