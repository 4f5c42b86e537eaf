// Package recovery implements the once-at-startup reconciliation that
// claims jobs left Running by a process that crashed before writing their
// terminal status.
package recovery

import (
	"context"
	"log/slog"

	"github.com/CheapNud/shotcutrenderqueue/internal/job"
	"github.com/CheapNud/shotcutrenderqueue/internal/pipeline"
	"github.com/CheapNud/shotcutrenderqueue/internal/queue"
	"github.com/CheapNud/shotcutrenderqueue/internal/store"
)

// Recoverer runs the startup reconciliation exactly once, before the
// scheduler loop begins.
type Recoverer struct {
	Store  store.JobStore
	Queue  *queue.WorkQueue
	Logger *slog.Logger
}

// New constructs a Recoverer.
func New(st store.JobStore, wq *queue.WorkQueue, logger *slog.Logger) *Recoverer {
	return &Recoverer{Store: st, Queue: wq, Logger: logger}
}

// Run claims every job Running under an owner that does not match
// (currentPID, currentHost), and either dead-letters it (retry budget
// exhausted) or resets it to Pending and re-enqueues it.
func (r *Recoverer) Run(ctx context.Context, currentPID, currentHost string) error {
	orphaned, err := r.Store.ClaimOrphaned(ctx, currentPID, currentHost)
	if err != nil {
		return pipeline.NewRecoveryError("claim orphaned jobs", err)
	}

	for _, j := range orphaned {
		r.recoverOne(ctx, j)
	}
	return nil
}

func (r *Recoverer) recoverOne(ctx context.Context, j *job.Job) {
	j.RetryCount++
	j.OwnerProcessID = ""
	j.OwnerHostID = ""
	j.LastErrorMessage = "recovered after crash"

	// Running only transitions to Failed directly; Pending is reached from
	// there, mirroring the ordinary retry path's Running -> Failed -> Pending.
	if err := j.TransitionTo(job.StatusFailed); err != nil {
		r.Logger.Error("recovery: failed transition rejected", "job_id", j.ID, "error", err)
		return
	}

	if j.RetryCount >= j.MaxRetries {
		if err := j.TransitionTo(job.StatusDeadLetter); err != nil {
			r.Logger.Error("recovery: dead-letter transition rejected", "job_id", j.ID, "error", err)
			return
		}
		if err := r.Store.UpdateFull(ctx, j); err != nil {
			r.Logger.Error("recovery: persist dead-letter failed", "job_id", j.ID, "error", err)
		}
		r.Logger.Warn("recovery: orphaned job dead-lettered", "job_id", j.ID, "retry_count", j.RetryCount)
		return
	}

	if err := j.TransitionTo(job.StatusPending); err != nil {
		r.Logger.Error("recovery: pending transition rejected", "job_id", j.ID, "error", err)
		return
	}
	if err := r.Store.UpdateFull(ctx, j); err != nil {
		r.Logger.Error("recovery: persist pending failed", "job_id", j.ID, "error", err)
		return
	}
	if !r.Queue.TryEnqueue(queue.Token{JobID: j.ID}) {
		r.Logger.Warn("recovery: work queue full, job remains Pending with no activation token queued", "job_id", j.ID)
	}
	r.Logger.Info("recovery: orphaned job requeued", "job_id", j.ID, "retry_count", j.RetryCount)
}
