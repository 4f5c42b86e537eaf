package recovery_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/CheapNud/shotcutrenderqueue/internal/job"
	"github.com/CheapNud/shotcutrenderqueue/internal/queue"
	"github.com/CheapNud/shotcutrenderqueue/internal/recovery"
	"github.com/CheapNud/shotcutrenderqueue/internal/store"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func runningJob(t *testing.T, st *store.MemoryStore, owner string) *job.Job {
	t.Helper()
	j := job.New(job.SourceVideoFile, "/in.mp4", "/out.mp4", job.StageFlags{UseUpscale: true, UpscaleVariant: job.UpscaleClassic})
	if err := st.Create(context.Background(), j); err != nil {
		t.Fatal(err)
	}
	if err := j.Start(owner, "host-a", ""); err != nil {
		t.Fatal(err)
	}
	if err := st.UpdateFull(context.Background(), j); err != nil {
		t.Fatal(err)
	}
	return j
}

func TestRecoverer_RequeuesOrphanedJobUnderRetryBudget(t *testing.T) {
	st := store.NewMemoryStore()
	wq := queue.New(4)
	j := runningJob(t, st, "stale-pid")

	r := recovery.New(st, wq, discardLogger())
	if err := r.Run(context.Background(), "current-pid", "current-host"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := st.Get(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.GetStatus() != job.StatusPending {
		t.Errorf("expected Pending, got %s", got.GetStatus())
	}
	if got.RetryCount != 1 {
		t.Errorf("expected RetryCount 1, got %d", got.RetryCount)
	}
	if got.LastErrorMessage != "recovered after crash" {
		t.Errorf("unexpected LastErrorMessage: %s", got.LastErrorMessage)
	}

	tok, err := wq.Dequeue(context.Background())
	if err != nil {
		t.Fatalf("expected the recovered job to be requeued: %v", err)
	}
	if tok.JobID != j.ID {
		t.Errorf("expected token for %s, got %s", j.ID, tok.JobID)
	}
}

func TestRecoverer_DeadLettersOrphanedJobOverRetryBudget(t *testing.T) {
	st := store.NewMemoryStore()
	wq := queue.New(4)
	j := runningJob(t, st, "stale-pid")
	j.RetryCount = j.MaxRetries - 1
	if err := st.UpdateFull(context.Background(), j); err != nil {
		t.Fatal(err)
	}

	r := recovery.New(st, wq, discardLogger())
	if err := r.Run(context.Background(), "current-pid", "current-host"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := st.Get(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.GetStatus() != job.StatusDeadLetter {
		t.Errorf("expected DeadLetter, got %s", got.GetStatus())
	}
}

func TestRecoverer_IgnoresJobsOwnedByCurrentProcess(t *testing.T) {
	st := store.NewMemoryStore()
	wq := queue.New(4)
	j := runningJob(t, st, "current-pid")

	r := recovery.New(st, wq, discardLogger())
	if err := r.Run(context.Background(), "current-pid", "host-a"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := st.Get(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.GetStatus() != job.StatusRunning {
		t.Errorf("expected job owned by the current process to be left Running, got %s", got.GetStatus())
	}
}
