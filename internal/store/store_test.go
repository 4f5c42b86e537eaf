package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/CheapNud/shotcutrenderqueue/internal/job"
	"github.com/CheapNud/shotcutrenderqueue/internal/store"
)

// conformance runs the same scenarios against any JobStore implementation so
// MemoryStore and SQLiteStore are held to one contract.
func conformance(t *testing.T, newStore func(t *testing.T) store.JobStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("create and get round-trip", func(t *testing.T) {
		s := newStore(t)
		j := job.New(job.SourceVideoFile, "/in/a.mp4", "/out/a.mp4", job.StageFlags{UseUpscale: true, UpscaleVariant: job.UpscaleClassic})

		if err := s.Create(ctx, j); err != nil {
			t.Fatalf("Create: %v", err)
		}
		got, err := s.Get(ctx, j.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.ID != j.ID || got.Status != j.Status || got.SourcePath != j.SourcePath {
			t.Errorf("round-tripped job mismatch: got %+v, want %+v", got, j)
		}
	})

	t.Run("get missing returns ErrNotFound", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Get(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("update progress only is visible on next get", func(t *testing.T) {
		s := newStore(t)
		j := job.New(job.SourceVideoFile, "/in/a.mp4", "/out/a.mp4", job.StageFlags{})
		_ = s.Create(ctx, j)

		if err := s.UpdateProgressOnly(ctx, j.ID, 55, 550, "Stage 1 of 1: Upscale"); err != nil {
			t.Fatalf("UpdateProgressOnly: %v", err)
		}
		got, err := s.Get(ctx, j.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.ProgressPercent != 55 || got.CurrentFrame != 550 {
			t.Errorf("expected progress to persist, got %+v", got)
		}
	})

	t.Run("list active includes pending running paused only", func(t *testing.T) {
		s := newStore(t)
		pending := job.New(job.SourceVideoFile, "/in/a.mp4", "/out/a.mp4", job.StageFlags{})
		running := job.New(job.SourceVideoFile, "/in/b.mp4", "/out/b.mp4", job.StageFlags{})
		_ = running.Start("pid", "host", "")
		done := job.New(job.SourceVideoFile, "/in/c.mp4", "/out/c.mp4", job.StageFlags{})
		_ = done.Start("pid", "host", "")
		_ = done.Complete(10)

		for _, j := range []*job.Job{pending, running, done} {
			if err := s.Create(ctx, j); err != nil {
				t.Fatalf("Create: %v", err)
			}
		}

		active, err := s.ListActive(ctx)
		if err != nil {
			t.Fatalf("ListActive: %v", err)
		}
		if len(active) != 2 {
			t.Fatalf("expected 2 active jobs, got %d", len(active))
		}
	})

	t.Run("claim orphaned excludes current owner", func(t *testing.T) {
		s := newStore(t)
		mine := job.New(job.SourceVideoFile, "/in/a.mp4", "/out/a.mp4", job.StageFlags{})
		_ = mine.Start("pid-1", "host-1", "")
		theirs := job.New(job.SourceVideoFile, "/in/b.mp4", "/out/b.mp4", job.StageFlags{})
		_ = theirs.Start("pid-dead", "host-1", "")

		_ = s.Create(ctx, mine)
		_ = s.Create(ctx, theirs)

		orphaned, err := s.ClaimOrphaned(ctx, "pid-1", "host-1")
		if err != nil {
			t.Fatalf("ClaimOrphaned: %v", err)
		}
		if len(orphaned) != 1 || orphaned[0].ID != theirs.ID {
			t.Errorf("expected only %s to be orphaned, got %+v", theirs.ID, orphaned)
		}
	})

	t.Run("delete removes the record", func(t *testing.T) {
		s := newStore(t)
		j := job.New(job.SourceVideoFile, "/in/a.mp4", "/out/a.mp4", job.StageFlags{})
		_ = j.Start("pid", "host", "")
		_ = j.Cancel()
		_ = s.Create(ctx, j)

		if err := s.Delete(ctx, j.ID); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := s.Get(ctx, j.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("update full on missing id returns ErrNotFound", func(t *testing.T) {
		s := newStore(t)
		j := job.New(job.SourceVideoFile, "/in/a.mp4", "/out/a.mp4", job.StageFlags{})
		if err := s.UpdateFull(ctx, j); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestMemoryStore_Conformance(t *testing.T) {
	conformance(t, func(t *testing.T) store.JobStore {
		return store.NewMemoryStore()
	})
}

func ctxBG() context.Context { return context.Background() }

func newTestJob(t *testing.T) *job.Job {
	t.Helper()
	return job.New(job.SourceVideoFile, "/in/a.mp4", "/out/a.mp4", job.StageFlags{UseUpscale: true, UpscaleVariant: job.UpscaleClassic})
}
