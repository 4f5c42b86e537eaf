// Package queue implements the bounded in-memory hand-off between job
// producers (the controller, the scheduler's own re-enqueue path, and crash
// recovery) and the scheduler's consuming loop. It carries only activation
// tokens (job IDs); the JobStore remains the authoritative record.
package queue

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Token is the minimal unit of work handed from a producer to the scheduler:
// just enough to look the job back up in the store.
type Token struct {
	JobID string
}

// WorkQueue is multi-producer, single-consumer: producers are the
// controller, the scheduler's own retry re-enqueue, and crash recovery;
// the consumer is the scheduler loop.
type WorkQueue struct {
	ch   chan Token
	sem  *semaphore.Weighted
}

// New creates a WorkQueue with the given capacity. Capacity only bounds the
// in-memory hand-off channel; it has no bearing on how many jobs the store
// may hold pending.
func New(capacity int) *WorkQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &WorkQueue{
		ch:  make(chan Token, capacity),
		sem: semaphore.NewWeighted(int64(capacity)),
	}
}

// Enqueue hands a token to the scheduler, blocking if the queue is full
// until ctx is cancelled or room frees up.
func (q *WorkQueue) Enqueue(ctx context.Context, token Token) error {
	if err := q.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	select {
	case q.ch <- token:
		return nil
	case <-ctx.Done():
		q.sem.Release(1)
		return ctx.Err()
	}
}

// TryEnqueue hands a token to the scheduler without blocking, reporting
// false if the queue is currently full. Used by producers (controller
// Add/Resume/Retry, crash recovery) that must not stall the caller.
func (q *WorkQueue) TryEnqueue(token Token) bool {
	if !q.sem.TryAcquire(1) {
		return false
	}
	select {
	case q.ch <- token:
		return true
	default:
		q.sem.Release(1)
		return false
	}
}

// Dequeue blocks until a token is available or ctx is cancelled.
func (q *WorkQueue) Dequeue(ctx context.Context) (Token, error) {
	select {
	case tok := <-q.ch:
		q.sem.Release(1)
		return tok, nil
	case <-ctx.Done():
		return Token{}, ctx.Err()
	}
}
