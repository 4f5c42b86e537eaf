package events

import (
	"sync"

	"github.com/google/uuid"
)

// bufferSize bounds each subscriber's channel. A full channel means the
// subscriber is slow; the broker drops rather than blocks the publisher.
const bufferSize = 64

// Subscription is the handle returned by Subscribe, used to Unsubscribe later.
type Subscription struct {
	id uuid.UUID
}

// Broker fans out progress and queue-status events to subscribers,
// delivering best-effort: a subscriber whose channel is full loses the event
// instead of stalling every other subscriber or the scheduler loop.
type Broker struct {
	mu       sync.RWMutex
	progress map[uuid.UUID]chan ProgressEvent
	queue    map[uuid.UUID]chan QueueStatusEvent
}

// NewBroker constructs an empty Broker.
func NewBroker() *Broker {
	return &Broker{
		progress: make(map[uuid.UUID]chan ProgressEvent),
		queue:    make(map[uuid.UUID]chan QueueStatusEvent),
	}
}

// Subscribe registers a new progress-event subscriber and returns both its
// receive channel and the handle used to unsubscribe.
func (b *Broker) Subscribe() (<-chan ProgressEvent, Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New()
	ch := make(chan ProgressEvent, bufferSize)
	b.progress[id] = ch
	return ch, Subscription{id: id}
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.progress[sub.id]; ok {
		delete(b.progress, sub.id)
		close(ch)
	}
}

// Publish delivers ev to every current subscriber, dropping it for any whose
// channel is currently full.
func (b *Broker) Publish(ev ProgressEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.progress {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscribeQueueStatus registers a new queue-status subscriber.
func (b *Broker) SubscribeQueueStatus() (<-chan QueueStatusEvent, Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New()
	ch := make(chan QueueStatusEvent, bufferSize)
	b.queue[id] = ch
	return ch, Subscription{id: id}
}

// UnsubscribeQueueStatus removes a queue-status subscriber and closes its channel.
func (b *Broker) UnsubscribeQueueStatus(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.queue[sub.id]; ok {
		delete(b.queue, sub.id)
		close(ch)
	}
}

// PublishQueueStatus delivers a queue-status event to every current subscriber.
func (b *Broker) PublishQueueStatus(ev QueueStatusEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.queue {
		select {
		case ch <- ev:
		default:
		}
	}
}
