// Package filestate persists retrieval job state as one JSON file per
// archive, named after the local destination file.
package filestate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/cwygoda/thaw/internal/domain"
	"github.com/cwygoda/thaw/internal/fsutil"
)

// record is the on-disk format. Files written before createdAt existed only
// carry archiveId and jobId; their age is taken from the file mtime.
type record struct {
	ArchiveID string     `json:"archiveId"`
	JobID     string     `json:"jobId"`
	Vault     string     `json:"vault,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// Store implements domain.JobStateStore on the local filesystem.
type Store struct {
	dir        string
	staleAfter time.Duration
	now        func() time.Time
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string, staleAfter time.Duration) (*Store, error) {
	if staleAfter <= 0 {
		staleAfter = domain.DefaultStaleAfter
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &Store{dir: dir, staleAfter: staleAfter, now: time.Now}, nil
}

// Path returns the file the state for info is kept in.
func (s *Store) Path(info domain.ArchiveInfo) string {
	return filepath.Join(s.dir, "job_"+info.StateKey()+".json")
}

func (s *Store) Exists(ctx context.Context, info domain.ArchiveInfo) (bool, error) {
	state, err := s.read(info)
	if errors.Is(err, domain.ErrJobStateNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !state.Stale(s.now(), s.staleAfter), nil
}

func (s *Store) Load(ctx context.Context, info domain.ArchiveInfo) (*domain.JobState, error) {
	state, err := s.read(info)
	if err != nil {
		return nil, err
	}
	if !state.Matches(info) {
		return nil, fmt.Errorf("%w: persisted %s, requested %s", domain.ErrJobStateMismatch, state.ArchiveID, info.ArchiveID())
	}
	return state, nil
}

func (s *Store) Save(ctx context.Context, state domain.JobState) error {
	created := state.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	created = created.UTC()

	data, err := json.MarshalIndent(record{
		ArchiveID: state.ArchiveID,
		JobID:     state.JobID,
		Vault:     state.Vault,
		CreatedAt: &created,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode job state: %w", err)
	}

	path := filepath.Join(s.dir, "job_"+state.Key+".json")
	if _, err := fsutil.WriteAtomic(path, bytes.NewReader(data), 0o600); err != nil {
		return fmt.Errorf("write job state: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, info domain.ArchiveInfo) error {
	if err := os.Remove(s.Path(info)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete job state: %w", err)
	}
	return nil
}

// read returns ErrJobStateNotFound for missing or malformed files and a
// plain error for any other I/O failure.
func (s *Store) read(info domain.ArchiveInfo) (*domain.JobState, error) {
	path := s.Path(info)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrJobStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read job state: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: malformed %s: %v", domain.ErrJobStateNotFound, path, err)
	}
	if rec.ArchiveID == "" || rec.JobID == "" {
		return nil, fmt.Errorf("%w: incomplete %s", domain.ErrJobStateNotFound, path)
	}

	state := &domain.JobState{
		Key:       info.StateKey(),
		Vault:     rec.Vault,
		ArchiveID: rec.ArchiveID,
		JobID:     rec.JobID,
	}
	if rec.CreatedAt != nil {
		state.CreatedAt = *rec.CreatedAt
	} else {
		fi, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat job state: %w", err)
		}
		state.CreatedAt = fi.ModTime()
	}
	return state, nil
}
