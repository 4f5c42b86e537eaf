package pipeline

import (
	"context"
	"os"
	"testing"

	"github.com/CheapNud/shotcutrenderqueue/internal/job"
	"github.com/CheapNud/shotcutrenderqueue/internal/stage"
)

type fakeStage struct {
	label        string
	progress     []float64
	failWith     error
	preflightErr error
}

var _ stage.Stage = (*fakeStage)(nil)

func (f *fakeStage) Label() string { return f.label }

func (f *fakeStage) Preflight(ctx context.Context, inputPath string) error {
	return f.preflightErr
}

func (f *fakeStage) Run(ctx context.Context, inputPath, outputPath string, opts stage.RunOptions, onProgress stage.ProgressFunc) error {
	for _, p := range f.progress {
		onProgress(p, int(p))
	}
	if f.failWith != nil {
		return f.failWith
	}
	return os.WriteFile(outputPath, []byte("rendered"), 0o644)
}

func TestComposeStages_SingleStageRoutesSourceDirectlyToOutput(t *testing.T) {
	j := job.New(job.SourceVideoFile, "/in.mp4", "/out.mp4", job.StageFlags{UseUpscale: true, UpscaleVariant: job.UpscaleClassic})
	set := StageSet{UpscaleClassic: &fakeStage{label: "Upscale (classic)"}}

	specs, err := composeStages(j, set)
	if err != nil {
		t.Fatalf("composeStages: %v", err)
	}
	if len(specs) != 1 {
		t.Fatalf("expected 1 stage, got %d", len(specs))
	}
	if specs[0].inputPath != "/in.mp4" || specs[0].outputPath != "/out.mp4" {
		t.Errorf("expected source->output routing, got %s -> %s", specs[0].inputPath, specs[0].outputPath)
	}
}

func TestComposeStages_ThreeStageRoutesThroughIntermediates(t *testing.T) {
	j := job.New(job.SourceTimelineProject, "/in.mlt", "/out.mp4", job.StageFlags{
		UseUpscale: true, UpscaleVariant: job.UpscaleAIAnime, UseInterpolate: true,
	})
	j.IntermediatePath1 = "/tmp/stage1.mp4"
	j.IntermediatePath2 = "/tmp/stage2.mp4"

	set := StageSet{
		TimelineRender: &fakeStage{label: "TimelineRender"},
		UpscaleAIAnime: &fakeStage{label: "Upscale (AI anime)"},
		Interpolate:    &fakeStage{label: "Interpolate"},
	}

	specs, err := composeStages(j, set)
	if err != nil {
		t.Fatalf("composeStages: %v", err)
	}
	if len(specs) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(specs))
	}

	want := [][2]string{
		{"/in.mlt", "/tmp/stage1.mp4"},
		{"/tmp/stage1.mp4", "/tmp/stage2.mp4"},
		{"/tmp/stage2.mp4", "/out.mp4"},
	}
	for i, w := range want {
		if specs[i].inputPath != w[0] || specs[i].outputPath != w[1] {
			t.Errorf("stage %d: got %s -> %s, want %s -> %s", i, specs[i].inputPath, specs[i].outputPath, w[0], w[1])
		}
	}
}

func TestComposeStages_NoStagesSelectedIsInputError(t *testing.T) {
	j := job.New(job.SourceVideoFile, "/in.mp4", "/out.mp4", job.StageFlags{})
	_, err := composeStages(j, StageSet{})
	if err == nil {
		t.Fatal("expected error when no stages selected")
	}
	pe, ok := err.(*Error)
	if !ok || pe.Kind != KindInput {
		t.Errorf("expected KindInput, got %v", err)
	}
}

func TestComposeStages_MissingStageImplementationIsInputError(t *testing.T) {
	j := job.New(job.SourceVideoFile, "/in.mp4", "/out.mp4", job.StageFlags{UseUpscale: true, UpscaleVariant: job.UpscaleAIPhoto})
	_, err := composeStages(j, StageSet{})
	if err == nil {
		t.Fatal("expected error when no stage is wired for the selected variant")
	}
}

func TestStageSlice_UniformByStageCount(t *testing.T) {
	cases := []struct {
		i, n     int
		wantBase float64
		wantSpan float64
	}{
		{0, 1, 0, 100},
		{0, 2, 0, 50},
		{1, 2, 50, 50},
		{0, 3, 0, 100.0 / 3},
		{2, 3, 200.0 / 3, 100.0 / 3},
	}
	for _, c := range cases {
		base, span := stageSlice(c.i, c.n)
		if base != c.wantBase || span != c.wantSpan {
			t.Errorf("stageSlice(%d,%d) = %v,%v want %v,%v", c.i, c.n, base, span, c.wantBase, c.wantSpan)
		}
	}
}
