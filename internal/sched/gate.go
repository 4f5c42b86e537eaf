package sched

import (
	"context"
	"sync"
)

// pauseGate blocks dequeues while paused. It starts paused: the initial
// queue state is paused per spec §4.7, so an operator must start it
// explicitly after an unattended launch.
type pauseGate struct {
	mu     sync.Mutex
	paused bool
	ch     chan struct{}
}

func newPauseGate() *pauseGate {
	return &pauseGate{paused: true, ch: make(chan struct{})}
}

func (g *pauseGate) pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		g.paused = true
		g.ch = make(chan struct{})
	}
}

func (g *pauseGate) resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		g.paused = false
		close(g.ch)
	}
}

func (g *pauseGate) isPaused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// wait blocks until the gate is open or ctx is cancelled.
func (g *pauseGate) wait(ctx context.Context) error {
	g.mu.Lock()
	paused := g.paused
	ch := g.ch
	g.mu.Unlock()
	if !paused {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
