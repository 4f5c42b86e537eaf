// Package sched implements the queue scheduler: the pause gate, concurrency
// ceiling, per-job cancellation handles, retry/dead-letter decisions, and
// orderly shutdown that sit between the work queue and the pipeline
// executor.
package sched

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/CheapNud/shotcutrenderqueue/internal/events"
	"github.com/CheapNud/shotcutrenderqueue/internal/job"
	"github.com/CheapNud/shotcutrenderqueue/internal/pipeline"
	"github.com/CheapNud/shotcutrenderqueue/internal/queue"
	"github.com/CheapNud/shotcutrenderqueue/internal/store"
	"golang.org/x/sync/semaphore"
)

// Config carries the scheduler's tunables, all of which have defaults per
// spec §5 and §6.5.
type Config struct {
	Concurrency          int64
	OwnerProcessID       string
	OwnerHostID          string
	ShutdownGrace        time.Duration
	ProgressEventFloor   time.Duration
	ProgressPersistFloor time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:          1,
		ShutdownGrace:        5 * time.Second,
		ProgressEventFloor:   100 * time.Millisecond,
		ProgressPersistFloor: time.Second,
	}
}

// Scheduler dequeues activation tokens and drives each job's pipeline to
// completion, enforcing the pause gate, the concurrency ceiling, and the
// retry/dead-letter policy.
type Scheduler struct {
	cfg      Config
	store    store.JobStore
	queue    *queue.WorkQueue
	executor *pipeline.Executor
	broker   *events.Broker
	logger   *slog.Logger

	sem *semaphore.Weighted

	gate *pauseGate

	handlesMu sync.Mutex
	handles   map[string]context.CancelFunc

	jobsWG sync.WaitGroup

	shuttingDownMu sync.Mutex
	shuttingDown   bool
}

// New constructs a Scheduler. The queue starts paused per spec §4.7.
func New(cfg Config, st store.JobStore, wq *queue.WorkQueue, exec *pipeline.Executor, broker *events.Broker, logger *slog.Logger) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Scheduler{
		cfg:      cfg,
		store:    st,
		queue:    wq,
		executor: exec,
		broker:   broker,
		logger:   logger,
		sem:      semaphore.NewWeighted(cfg.Concurrency),
		gate:     newPauseGate(),
		handles:  make(map[string]context.CancelFunc),
	}
}

// StartQueue unblocks the pause gate so dequeued tokens are picked up.
func (s *Scheduler) StartQueue() {
	s.gate.resume()
	s.broker.PublishQueueStatus(events.QueueStatusEvent{Paused: false})
}

// StopQueue blocks new dequeues. Jobs already running continue to completion.
func (s *Scheduler) StopQueue() {
	s.gate.pause()
	s.broker.PublishQueueStatus(events.QueueStatusEvent{Paused: true})
}

// IsPaused reports the current pause-gate state.
func (s *Scheduler) IsPaused() bool {
	return s.gate.isPaused()
}

// CancelJob fires the registered per-job cancel handle, if any. Returns
// false if no job with that id is currently running under this scheduler.
func (s *Scheduler) CancelJob(jobID string) bool {
	s.handlesMu.Lock()
	defer s.handlesMu.Unlock()
	cancel, ok := s.handles[jobID]
	if !ok {
		return false
	}
	cancel()
	return true
}

// Run is the scheduler's supervising loop: wait for the pause gate, acquire
// a concurrency permit, dequeue a token, and spawn a worker for it. Returns
// when ctx is cancelled, after the shutdown sequence completes.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := s.gate.wait(ctx); err != nil {
			return s.shutdown()
		}

		if err := s.sem.Acquire(ctx, 1); err != nil {
			return s.shutdown()
		}

		tok, err := s.queue.Dequeue(ctx)
		if err != nil {
			s.sem.Release(1)
			return s.shutdown()
		}

		s.jobsWG.Add(1)
		go func(jobID string) {
			defer s.jobsWG.Done()
			defer s.sem.Release(1)
			s.runJob(ctx, jobID)
		}(tok.JobID)
	}
}

// runJob implements §4.5.1/§4.5.2: claim, run, then complete, dead-letter,
// or reschedule with backoff.
func (s *Scheduler) runJob(parentCtx context.Context, jobID string) {
	j, err := s.store.Get(parentCtx, jobID)
	if err != nil {
		s.logger.Error("scheduler: job fetch failed", "job_id", jobID, "error", err)
		return
	}
	if j.GetStatus() != job.StatusPending {
		return
	}

	jobCtx, cancel := context.WithCancel(parentCtx)
	s.registerHandle(jobID, cancel)
	defer func() {
		s.unregisterHandle(jobID)
		cancel()
	}()

	if err := j.Start(s.cfg.OwnerProcessID, s.cfg.OwnerHostID, ""); err != nil {
		s.logger.Error("scheduler: invalid start transition", "job_id", jobID, "error", err)
		return
	}
	if err := s.store.UpdateFull(parentCtx, j); err != nil {
		s.logger.Error("scheduler: persist start failed", "job_id", jobID, "error", err)
		return
	}
	s.publishStatus(j, "")

	eventThrottle := pipeline.NewThrottle(s.cfg.ProgressEventFloor)
	persistThrottle := pipeline.NewThrottle(s.cfg.ProgressPersistFloor)

	onProgress := func(percent float64, currentFrame int, stageLabel string) {
		j.UpdateProgress(percent, currentFrame, stageLabel)
		isTerminal := percent >= 100
		if isTerminal {
			eventThrottle.Force()
			persistThrottle.Force()
		}
		if eventThrottle.Allow() || isTerminal {
			s.broker.Publish(events.ProgressEvent{
				JobID:           j.ID,
				Status:          j.GetStatus(),
				ProgressPercent: percent,
				CurrentFrame:    currentFrame,
				StageLabel:      stageLabel,
			})
		}
		if persistThrottle.Allow() || isTerminal {
			_ = s.store.UpdateProgressOnly(parentCtx, j.ID, percent, currentFrame, stageLabel)
		}
	}
	onArtifact := func(path string, size int64) {
		j.RecordArtifactSize(path, size)
	}

	execErr := s.executor.Execute(jobCtx, j, onProgress, onArtifact)

	if execErr == nil {
		var size int64
		if j.OutputSizeBytes != nil {
			size = *j.OutputSizeBytes
		}
		if err := j.Complete(size); err != nil {
			s.logger.Error("scheduler: complete transition failed", "job_id", jobID, "error", err)
			return
		}
		_ = s.store.UpdateFull(parentCtx, j)
		s.publishStatus(j, "")
		return
	}

	if pipeline.IsCancelled(execErr) {
		// status was already written by whichever controller method fired
		// the cancel (Pause or Cancel); nothing further to persist here.
		return
	}

	s.handleFailure(parentCtx, j, execErr)
}

// handleFailure steps the job Running -> Failed -> {Pending, DeadLetter},
// publishing and persisting at the Failed step before deciding the next one,
// mirroring recovery.recoverOne: Running only transitions to Failed
// directly, so subscribers must observe that status on its own rather than
// Running jumping straight to a terminal one.
func (s *Scheduler) handleFailure(ctx context.Context, j *job.Job, execErr error) {
	message := execErr.Error()
	detail := ""
	if pe, ok := execErr.(*pipeline.Error); ok && pe.Cause != nil {
		detail = pe.Cause.Error()
	}

	j.LastErrorMessage = message
	j.LastErrorDetail = detail
	j.RetryCount++
	if err := j.TransitionTo(job.StatusFailed); err != nil {
		s.logger.Error("scheduler: fail transition rejected", "job_id", j.ID, "error", err)
		return
	}
	_ = s.store.UpdateFull(ctx, j)
	s.publishStatus(j, message)

	if j.RetryCount >= j.MaxRetries {
		if err := j.TransitionTo(job.StatusDeadLetter); err != nil {
			s.logger.Error("scheduler: dead-letter transition rejected", "job_id", j.ID, "error", err)
			return
		}
		_ = s.store.UpdateFull(ctx, j)
		s.publishStatus(j, message)
		return
	}

	delay := retryDelay(j.RetryCount)
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return
	}

	if s.isShuttingDown() {
		return
	}
	if err := j.TransitionTo(job.StatusPending); err != nil {
		s.logger.Error("scheduler: pending transition rejected", "job_id", j.ID, "error", err)
		return
	}
	_ = s.store.UpdateFull(ctx, j)
	s.publishStatus(j, "")
	s.queue.TryEnqueue(queue.Token{JobID: j.ID})
}

func (s *Scheduler) publishStatus(j *job.Job, errMsg string) {
	s.broker.Publish(events.ProgressEvent{
		JobID:           j.ID,
		Status:          j.GetStatus(),
		ProgressPercent: j.ProgressPercent,
		CurrentFrame:    j.CurrentFrame,
		StageLabel:      j.CurrentStageLabel,
		ErrorMessage:    errMsg,
	})
}

func (s *Scheduler) registerHandle(jobID string, cancel context.CancelFunc) {
	s.handlesMu.Lock()
	defer s.handlesMu.Unlock()
	s.handles[jobID] = cancel
}

func (s *Scheduler) unregisterHandle(jobID string) {
	s.handlesMu.Lock()
	defer s.handlesMu.Unlock()
	delete(s.handles, jobID)
}

func (s *Scheduler) isShuttingDown() bool {
	s.shuttingDownMu.Lock()
	defer s.shuttingDownMu.Unlock()
	return s.shuttingDown
}

// shutdown fires every registered handle, waits up to the configured grace
// window for workers to drain, then returns. Jobs still Running afterward
// are left as-is for crash recovery on the next start, per spec §4.5.3.
func (s *Scheduler) shutdown() error {
	s.shuttingDownMu.Lock()
	s.shuttingDown = true
	s.shuttingDownMu.Unlock()

	s.handlesMu.Lock()
	for _, cancel := range s.handles {
		cancel()
	}
	s.handlesMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.jobsWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.ShutdownGrace):
		s.logger.Warn("scheduler: shutdown grace window elapsed with workers still draining")
	}
	return nil
}
