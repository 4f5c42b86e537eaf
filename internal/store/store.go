// Package store provides durable persistence for job records: atomic status
// transitions, crash-recovery queries, and the cheap progress-only write path
// the scheduler uses while a job is running.
package store

import (
	"context"
	"errors"

	"github.com/CheapNud/shotcutrenderqueue/internal/job"
)

// Static errors surfaced by JobStore implementations.
var (
	// ErrNotFound is returned when the requested job id does not exist.
	ErrNotFound = errors.New("store: job not found")
	// ErrConflict names a transition that would violate the job status state
	// machine. Neither MemoryStore nor SQLiteStore returns it: UpdateFull
	// writes whatever status the record carries, and transitions are checked
	// only by the job's own methods before the write.
	ErrConflict = errors.New("store: transition conflict")
)

// JobStore is the durable persistence port the orchestrator core depends on.
// Any implementation providing the atomicity and crash-durability contract
// from spec §4.1 is acceptable; the core does not mandate a storage engine.
type JobStore interface {
	// Create persists a brand-new job record. A successful return guarantees
	// the record survives a crash.
	Create(ctx context.Context, j *job.Job) error

	// Get reads one job by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*job.Job, error)

	// ListByStatus returns all jobs currently in the given status.
	ListByStatus(ctx context.Context, status job.Status) ([]*job.Job, error)

	// ListAll returns every job record, newest first.
	ListAll(ctx context.Context) ([]*job.Job, error)

	// ListActive returns jobs in Pending, Running, or Paused, newest first.
	ListActive(ctx context.Context) ([]*job.Job, error)

	// UpdateFull persists the entirety of a job record atomically. A
	// successful return guarantees the record survives a crash.
	UpdateFull(ctx context.Context, j *job.Job) error

	// UpdateProgressOnly is the cheap hot path used while a job is Running:
	// implementations may coalesce writes but must persist at least once
	// per second while the job remains Running.
	UpdateProgressOnly(ctx context.Context, id string, percent float64, currentFrame int, stageLabel string) error

	// Delete removes a job record. Callers must only invoke this once the
	// job is in a terminal state and its intermediate files are gone.
	Delete(ctx context.Context, id string) error

	// ClaimOrphaned returns every job Running under an owner that is not
	// (currentPID, currentHost) — the crash-recovery query.
	ClaimOrphaned(ctx context.Context, currentPID, currentHost string) ([]*job.Job, error)

	// Close releases any resources the store holds.
	Close() error
}
