package pipeline

import (
	"sync"
	"time"
)

// Throttle enforces a minimum interval between accepted calls, coalescing
// (dropping) anything that arrives sooner. Used for both progress-event
// fan-out (≥100ms floor) and progress persistence (≥1s floor) per spec §7 —
// two independent Throttle instances per job, since the floors differ.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewThrottle creates a Throttle with the given minimum interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval}
}

// Allow reports whether enough time has passed since the last accepted call
// to accept this one too, and if so, records now as the new baseline.
func (t *Throttle) Allow() bool {
	return t.AllowAt(time.Now())
}

// AllowAt is Allow with an explicit timestamp, for deterministic tests.
func (t *Throttle) AllowAt(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}

// Force marks now as the baseline regardless of the interval, used to make
// sure a terminal event (completion, failure) is never itself dropped.
func (t *Throttle) Force() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = time.Now()
}
