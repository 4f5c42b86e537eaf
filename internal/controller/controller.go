// Package controller implements the public JobController surface: the
// operations the HTTP API and any other caller use to add, inspect, and
// steer jobs, and to toggle the scheduler's pause gate.
package controller

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/CheapNud/shotcutrenderqueue/internal/events"
	"github.com/CheapNud/shotcutrenderqueue/internal/job"
	"github.com/CheapNud/shotcutrenderqueue/internal/pipeline"
	"github.com/CheapNud/shotcutrenderqueue/internal/queue"
	"github.com/CheapNud/shotcutrenderqueue/internal/sched"
	"github.com/CheapNud/shotcutrenderqueue/internal/storage"
	"github.com/CheapNud/shotcutrenderqueue/internal/store"
)

// Sentinel errors returned to callers, none of which throw.
var (
	ErrInvalidJob  = errors.New("controller: invalid job")
	ErrNotFound    = store.ErrNotFound
	ErrWrongStatus = errors.New("controller: operation not valid from the job's current status")
)

// Stats aggregates job counts per status bucket.
type Stats struct {
	Pending       int
	Running       int
	Paused        int
	Completed     int
	Failed        int
	DeadLetter    int
	Cancelled     int
	IsQueuePaused bool
}

// Controller is the orchestrator's public API.
type Controller struct {
	store     store.JobStore
	queue     *queue.WorkQueue
	scheduler *sched.Scheduler
	broker    *events.Broker
	tempDir   *storage.TempDirManager
}

// New constructs a Controller over the given store, work queue, scheduler,
// event broker, and temp directory manager. tempDir supplies the root every
// new job's intermediate artifact paths are assigned under.
func New(st store.JobStore, wq *queue.WorkQueue, scheduler *sched.Scheduler, broker *events.Broker, tempDir *storage.TempDirManager) *Controller {
	return &Controller{store: st, queue: wq, scheduler: scheduler, broker: broker, tempDir: tempDir}
}

// NewJobRequest carries the fields a caller supplies to Add.
type NewJobRequest struct {
	SourceKind job.SourceKind
	SourcePath string
	OutputPath string
	Flags      job.StageFlags
}

// Add validates and creates a new job as Pending, pushes its activation
// token, and returns its id.
func (c *Controller) Add(ctx context.Context, req NewJobRequest) (string, error) {
	if req.SourcePath == "" || req.OutputPath == "" {
		return "", fmt.Errorf("%w: source and output paths are required", ErrInvalidJob)
	}
	if !req.Flags.UseTimelineRender && !req.Flags.UseUpscale && !req.Flags.UseInterpolate &&
		req.SourceKind != job.SourceTimelineProject {
		return "", fmt.Errorf("%w: job selects no pipeline stages", ErrInvalidJob)
	}

	j := job.New(req.SourceKind, req.SourcePath, req.OutputPath, req.Flags)
	pipeline.AssignIntermediatePaths(j, c.tempDir.Root())

	if err := c.store.Create(ctx, j); err != nil {
		return "", pipeline.NewStoreError("create job", err)
	}
	c.queue.TryEnqueue(queue.Token{JobID: j.ID})
	return j.ID, nil
}

// Get reads the current record for id.
func (c *Controller) Get(ctx context.Context, id string) (*job.Job, error) {
	j, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return j, nil
}

// ListActive returns Pending, Running, and Paused jobs.
func (c *Controller) ListActive(ctx context.Context) ([]*job.Job, error) {
	return c.store.ListActive(ctx)
}

// ListCompleted returns Completed jobs.
func (c *Controller) ListCompleted(ctx context.Context) ([]*job.Job, error) {
	return c.store.ListByStatus(ctx, job.StatusCompleted)
}

// ListFailed returns Failed and DeadLetter jobs merged, newest first.
func (c *Controller) ListFailed(ctx context.Context) ([]*job.Job, error) {
	failed, err := c.store.ListByStatus(ctx, job.StatusFailed)
	if err != nil {
		return nil, err
	}
	deadLetter, err := c.store.ListByStatus(ctx, job.StatusDeadLetter)
	if err != nil {
		return nil, err
	}
	return mergeNewestFirst(failed, deadLetter), nil
}

// ListDeadLetter returns only DeadLetter jobs.
func (c *Controller) ListDeadLetter(ctx context.Context) ([]*job.Job, error) {
	return c.store.ListByStatus(ctx, job.StatusDeadLetter)
}

// Pause is valid only from Running: it fires the per-job cancel handle and
// sets the status to Paused.
func (c *Controller) Pause(ctx context.Context, id string) error {
	j, err := c.store.Get(ctx, id)
	if err != nil {
		return translateStoreErr(err)
	}
	if j.GetStatus() != job.StatusRunning {
		return ErrWrongStatus
	}
	if err := j.Pause(); err != nil {
		return ErrWrongStatus
	}
	c.scheduler.CancelJob(id)
	return c.persist(ctx, j)
}

// Resume is valid only from Paused: it sets Pending and pushes a work token.
func (c *Controller) Resume(ctx context.Context, id string) error {
	j, err := c.store.Get(ctx, id)
	if err != nil {
		return translateStoreErr(err)
	}
	if j.GetStatus() != job.StatusPaused {
		return ErrWrongStatus
	}
	if err := j.Resume(); err != nil {
		return ErrWrongStatus
	}
	if err := c.persist(ctx, j); err != nil {
		return err
	}
	c.queue.TryEnqueue(queue.Token{JobID: id})
	return nil
}

// Cancel is valid from Pending, Running, or Paused.
func (c *Controller) Cancel(ctx context.Context, id string) error {
	j, err := c.store.Get(ctx, id)
	if err != nil {
		return translateStoreErr(err)
	}
	switch j.GetStatus() {
	case job.StatusPending, job.StatusRunning, job.StatusPaused:
	default:
		return ErrWrongStatus
	}
	if err := j.Cancel(); err != nil {
		return ErrWrongStatus
	}
	c.scheduler.CancelJob(id)
	return c.persist(ctx, j)
}

// Retry is valid from Failed or DeadLetter: it resets progress and
// RetryCount, sets Pending, and pushes a work token.
func (c *Controller) Retry(ctx context.Context, id string) error {
	j, err := c.store.Get(ctx, id)
	if err != nil {
		return translateStoreErr(err)
	}
	switch j.GetStatus() {
	case job.StatusFailed, job.StatusDeadLetter:
	default:
		return ErrWrongStatus
	}
	if err := j.Retry(); err != nil {
		return ErrWrongStatus
	}
	if err := c.persist(ctx, j); err != nil {
		return err
	}
	c.queue.TryEnqueue(queue.Token{JobID: id})
	return nil
}

// Delete is valid only in a terminal state. It removes intermediate files
// before the record.
func (c *Controller) Delete(ctx context.Context, id string) error {
	j, err := c.store.Get(ctx, id)
	if err != nil {
		return translateStoreErr(err)
	}
	if !j.IsTerminal() {
		return ErrWrongStatus
	}
	removeIntermediates(j)
	if err := c.store.Delete(ctx, id); err != nil {
		return translateStoreErr(err)
	}
	return nil
}

// StartQueue toggles the scheduler's pause gate open.
func (c *Controller) StartQueue() { c.scheduler.StartQueue() }

// StopQueue toggles the scheduler's pause gate shut. Running jobs continue.
func (c *Controller) StopQueue() { c.scheduler.StopQueue() }

// Stats aggregates counts per status bucket.
func (c *Controller) Stats(ctx context.Context) (Stats, error) {
	all, err := c.store.ListAll(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{IsQueuePaused: c.scheduler.IsPaused()}
	for _, j := range all {
		switch j.GetStatus() {
		case job.StatusPending:
			stats.Pending++
		case job.StatusRunning:
			stats.Running++
		case job.StatusPaused:
			stats.Paused++
		case job.StatusCompleted:
			stats.Completed++
		case job.StatusFailed:
			stats.Failed++
		case job.StatusDeadLetter:
			stats.DeadLetter++
		case job.StatusCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

// Subscribe registers for progress and status-change events.
func (c *Controller) Subscribe() (<-chan events.ProgressEvent, events.Subscription) {
	return c.broker.Subscribe()
}

// Unsubscribe removes a previously registered subscription.
func (c *Controller) Unsubscribe(sub events.Subscription) {
	c.broker.Unsubscribe(sub)
}

func (c *Controller) persist(ctx context.Context, j *job.Job) error {
	if err := c.store.UpdateFull(ctx, j); err != nil {
		return pipeline.NewStoreError("persist job", err)
	}
	c.broker.Publish(events.ProgressEvent{
		JobID:           j.ID,
		Status:          j.GetStatus(),
		ProgressPercent: j.ProgressPercent,
		CurrentFrame:    j.CurrentFrame,
		StageLabel:      j.CurrentStageLabel,
	})
	return nil
}

func translateStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, store.ErrConflict) {
		return ErrWrongStatus
	}
	return err
}

func removeIntermediates(j *job.Job) {
	for _, p := range []string{j.IntermediatePath1, j.IntermediatePath2} {
		if p != "" {
			_ = os.Remove(p)
		}
	}
}

func mergeNewestFirst(a, b []*job.Job) []*job.Job {
	out := make([]*job.Job, 0, len(a)+len(b))
	i, k := 0, 0
	for i < len(a) && k < len(b) {
		if a[i].CreatedAt.After(b[k].CreatedAt) {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[k])
			k++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[k:]...)
	return out
}
