package store

import (
	"context"
	"sort"
	"sync"

	"github.com/CheapNud/shotcutrenderqueue/internal/job"
)

// MemoryStore is an in-process JobStore backed by a map. It satisfies the
// atomicity contract (every read observes a complete pre- or post-state) but
// not the crash-durability one, so it is meant for tests, not for
// production use where SQLiteStore is the default.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*job.Job
}

var _ JobStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*job.Job)}
}

func (s *MemoryStore) Create(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j.Clone(), nil
}

func (s *MemoryStore) ListByStatus(_ context.Context, status job.Status) ([]*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*job.Job
	for _, j := range s.jobs {
		if j.GetStatus() == status {
			out = append(out, j.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*job.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Clone())
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) ListActive(_ context.Context) ([]*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*job.Job
	for _, j := range s.jobs {
		switch j.GetStatus() {
		case job.StatusPending, job.StatusRunning, job.StatusPaused:
			out = append(out, j.Clone())
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) UpdateFull(_ context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; !ok {
		return ErrNotFound
	}
	s.jobs[j.ID] = j.Clone()
	return nil
}

func (s *MemoryStore) UpdateProgressOnly(_ context.Context, id string, percent float64, currentFrame int, stageLabel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	j.UpdateProgress(percent, currentFrame, stageLabel)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return ErrNotFound
	}
	delete(s.jobs, id)
	return nil
}

func (s *MemoryStore) ClaimOrphaned(_ context.Context, currentPID, currentHost string) ([]*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*job.Job
	for _, j := range s.jobs {
		if j.GetStatus() != job.StatusRunning {
			continue
		}
		if j.OwnerProcessID == currentPID && j.OwnerHostID == currentHost {
			continue
		}
		out = append(out, j.Clone())
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func sortNewestFirst(jobs []*job.Job) {
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
	})
}
