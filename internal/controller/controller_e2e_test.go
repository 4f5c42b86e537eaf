package controller_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CheapNud/shotcutrenderqueue/internal/controller"
	"github.com/CheapNud/shotcutrenderqueue/internal/events"
	"github.com/CheapNud/shotcutrenderqueue/internal/job"
	"github.com/CheapNud/shotcutrenderqueue/internal/pipeline"
	"github.com/CheapNud/shotcutrenderqueue/internal/queue"
	"github.com/CheapNud/shotcutrenderqueue/internal/sched"
	"github.com/CheapNud/shotcutrenderqueue/internal/stage"
	"github.com/CheapNud/shotcutrenderqueue/internal/storage"
	"github.com/CheapNud/shotcutrenderqueue/internal/store"
)

// copyStage copies inputPath to outputPath, standing in for a real tool so
// this test can assert that the bytes actually flow through the
// intermediate path Controller.Add assigned.
type copyStage struct{ label string }

func (s copyStage) Label() string { return s.label }
func (s copyStage) Preflight(ctx context.Context, inputPath string) error {
	_, err := os.Stat(inputPath)
	return err
}
func (s copyStage) Run(ctx context.Context, inputPath, outputPath string, opts stage.RunOptions, onProgress stage.ProgressFunc) error {
	onProgress(100, 1)
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0o644)
}

// TestController_Add_TwoStageJob_RunsThroughSchedulerToCompletion exercises
// the path a review found missing: Controller.Add must assign intermediate
// paths before the job ever reaches the scheduler, or a 2-stage job has
// nowhere to write between its first and second stage.
func TestController_Add_TwoStageJob_RunsThroughSchedulerToCompletion(t *testing.T) {
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "source.mp4")
	if err := os.WriteFile(sourcePath, []byte("src"), 0o644); err != nil {
		t.Fatal(err)
	}
	outputPath := filepath.Join(dir, "out.mp4")

	st := store.NewMemoryStore()
	wq := queue.New(4)
	exec := pipeline.NewExecutor(pipeline.StageSet{
		UpscaleClassic: copyStage{label: "Upscale (classic)"},
		Interpolate:    copyStage{label: "Interpolate"},
	})
	broker := events.NewBroker()

	cfg := sched.DefaultConfig()
	cfg.ProgressEventFloor = 0
	cfg.ProgressPersistFloor = 0
	s := sched.New(cfg, st, wq, exec, broker, discardLogger())

	tempDir, err := storage.NewTempDirManager(filepath.Join(dir, "tmp"))
	if err != nil {
		t.Fatalf("NewTempDirManager: %v", err)
	}
	c := controller.New(st, wq, s, broker, tempDir)

	id, err := c.Add(context.Background(), controller.NewJobRequest{
		SourceKind: job.SourceVideoFile,
		SourcePath: sourcePath,
		OutputPath: outputPath,
		Flags: job.StageFlags{
			UseUpscale:     true,
			UpscaleVariant: job.UpscaleClassic,
			UseInterpolate: true,
		},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	created, err := c.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if created.IntermediatePath1 == "" {
		t.Fatal("expected Add to assign IntermediatePath1 for a 2-stage job")
	}

	c.StartQueue()
	runCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go s.Run(runCtx)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		got, err := st.Get(context.Background(), id)
		if err == nil && got.GetStatus() == job.StatusCompleted {
			out, err := os.ReadFile(outputPath)
			if err != nil {
				t.Fatalf("read output: %v", err)
			}
			if string(out) != "src" {
				t.Errorf("expected output to carry source bytes through both stages, got %q", out)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not reach Completed in time")
}
