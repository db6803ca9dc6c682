package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cleberrangel/epic-forecast-api/internal/logger"
	"github.com/cleberrangel/epic-forecast-api/internal/model"
)

// LockRepository implements the named job-lock abstraction backing
// system-wide serialization of recomputation jobs.
type LockRepository struct {
	db *sql.DB
}

// NewLockRepository creates a new lock repository
func NewLockRepository(db *sql.DB) *LockRepository {
	return &LockRepository{db: db}
}

// TryAcquire atomically claims the named lock for owner. Returns false
// without error when another owner already holds it.
func (r *LockRepository) TryAcquire(jobName, owner string) (bool, error) {
	log := logger.Global()

	query := `
		INSERT INTO job_locks (job_name, owner, acquired_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (job_name) DO NOTHING
	`

	result, err := r.db.Exec(query, jobName, owner)
	if err != nil {
		return false, fmt.Errorf("acquiring lock %s: %w", jobName, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking lock acquisition: %w", err)
	}

	acquired := rows == 1
	if acquired {
		log.Info().Str("job_name", jobName).Str("owner", owner).Msg("Job lock acquired")
	}
	return acquired, nil
}

// Release clears the lock if owner still holds it. Releasing a lock that
// was already taken over by another owner is a no-op.
func (r *LockRepository) Release(jobName, owner string) error {
	log := logger.Global()

	result, err := r.db.Exec(
		"DELETE FROM job_locks WHERE job_name = $1 AND owner = $2", jobName, owner)
	if err != nil {
		return fmt.Errorf("releasing lock %s: %w", jobName, err)
	}

	if rows, _ := result.RowsAffected(); rows == 1 {
		log.Info().Str("job_name", jobName).Str("owner", owner).Msg("Job lock released")
	}
	return nil
}

// Get returns the current lock row, or nil when the lock is free.
func (r *LockRepository) Get(jobName string) (*model.JobLock, error) {
	var lock model.JobLock
	err := r.db.QueryRow(
		"SELECT job_name, owner, acquired_at FROM job_locks WHERE job_name = $1",
		jobName).Scan(&lock.JobName, &lock.Owner, &lock.AcquiredAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching lock %s: %w", jobName, err)
	}
	return &lock, nil
}

// IsStale reports whether the named lock is held past maxAge, which
// indicates a crashed worker.
func (r *LockRepository) IsStale(jobName string, maxAge time.Duration) (bool, error) {
	lock, err := r.Get(jobName)
	if err != nil {
		return false, err
	}
	if lock == nil {
		return false, nil
	}
	return time.Since(lock.AcquiredAt) > maxAge, nil
}

// ForceRelease clears the lock regardless of owner, but only when it is
// stale. Used to recover from crashed workers before a new run.
func (r *LockRepository) ForceRelease(jobName string, maxAge time.Duration) error {
	log := logger.Global()

	result, err := r.db.Exec(
		"DELETE FROM job_locks WHERE job_name = $1 AND acquired_at < $2",
		jobName, time.Now().Add(-maxAge))
	if err != nil {
		return fmt.Errorf("force-releasing lock %s: %w", jobName, err)
	}

	if rows, _ := result.RowsAffected(); rows == 1 {
		log.Warn().Str("job_name", jobName).Msg("Stale job lock force-released")
	}
	return nil
}
