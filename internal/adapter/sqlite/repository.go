package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cwygoda/thaw/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS job_states (
    state_key  TEXT PRIMARY KEY,
    vault      TEXT NOT NULL DEFAULT '',
    archive_id TEXT NOT NULL,
    job_id     TEXT NOT NULL,
    created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_job_states_created_at ON job_states(created_at);
`

// Repository implements domain.JobStateStore using SQLite. Staleness is
// judged from the created_at column, not from file metadata.
type Repository struct {
	db         *sql.DB
	staleAfter time.Duration
	now        func() time.Time
}

// New creates a new SQLite repository, initializing the schema if needed.
func New(dbPath string, staleAfter time.Duration) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer per process run
	db.SetMaxOpenConns(1)

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	if staleAfter <= 0 {
		staleAfter = domain.DefaultStaleAfter
	}
	return &Repository{db: db, staleAfter: staleAfter, now: time.Now}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Exists reports whether a fresh record is stored for info.
func (r *Repository) Exists(ctx context.Context, info domain.ArchiveInfo) (bool, error) {
	state, err := r.get(ctx, info.StateKey())
	if errors.Is(err, domain.ErrJobStateNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !state.Stale(r.now(), r.staleAfter), nil
}

// Load returns the stored record for info.
func (r *Repository) Load(ctx context.Context, info domain.ArchiveInfo) (*domain.JobState, error) {
	state, err := r.get(ctx, info.StateKey())
	if err != nil {
		return nil, err
	}
	if !state.Matches(info) {
		return nil, fmt.Errorf("%w: persisted %s, requested %s", domain.ErrJobStateMismatch, state.ArchiveID, info.ArchiveID())
	}
	return state, nil
}

// Save inserts or replaces the record for state.Key.
func (r *Repository) Save(ctx context.Context, state domain.JobState) error {
	created := state.CreatedAt
	if created.IsZero() {
		created = r.now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO job_states (state_key, vault, archive_id, job_id, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(state_key) DO UPDATE SET
		   vault = excluded.vault,
		   archive_id = excluded.archive_id,
		   job_id = excluded.job_id,
		   created_at = excluded.created_at`,
		state.Key, state.Vault, state.ArchiveID, state.JobID, created.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save job state: %w", err)
	}
	return nil
}

// Delete removes the record for info. Deleting an absent record is not an error.
func (r *Repository) Delete(ctx context.Context, info domain.ArchiveInfo) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM job_states WHERE state_key = ?`, info.StateKey()); err != nil {
		return fmt.Errorf("delete job state: %w", err)
	}
	return nil
}

// PurgeStale removes every record at or past the staleness threshold.
func (r *Repository) PurgeStale(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM job_states WHERE created_at <= ?`,
		r.now().Add(-r.staleAfter).UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge stale job states: %w", err)
	}
	return result.RowsAffected()
}

func (r *Repository) get(ctx context.Context, key string) (*domain.JobState, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT state_key, vault, archive_id, job_id, created_at
		 FROM job_states WHERE state_key = ?`, key,
	)
	return scanState(row)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanState(row scanner) (*domain.JobState, error) {
	var state domain.JobState
	err := row.Scan(&state.Key, &state.Vault, &state.ArchiveID, &state.JobID, &state.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrJobStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read job state: %w", err)
	}
	if state.ArchiveID == "" || state.JobID == "" {
		return nil, fmt.Errorf("%w: incomplete row %s", domain.ErrJobStateNotFound, state.Key)
	}
	return &state, nil
}
