// Package pipeline composes a job's stage list, routes intermediate
// artifacts between stages, and remaps each stage's own [0,100] progress
// into the job's overall percentage.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/CheapNud/shotcutrenderqueue/internal/job"
	"github.com/CheapNud/shotcutrenderqueue/internal/stage"
)

// StageSet resolves the concrete Stage implementation for each variant a
// job's flags might select. Supplied by whoever wires tool paths (bootstrap).
type StageSet struct {
	TimelineRender stage.Stage
	UpscaleAIAnime stage.Stage
	UpscaleAIPhoto stage.Stage
	UpscaleClassic stage.Stage
	Interpolate    stage.Stage
}

// stageSpec is one composed step: the stage implementation plus the human
// label and input/output paths the executor assigned it.
type stageSpec struct {
	st         stage.Stage
	label      string
	inputPath  string
	outputPath string
}

// composeStages builds the ordered stage list and path assignment for one
// job, exposed as a package-visible pure function per the design note asking
// for it to be testable independent of the scheduler.
func composeStages(j *job.Job, set StageSet) ([]stageSpec, error) {
	var kinds []string
	if j.Flags.UseTimelineRender {
		kinds = append(kinds, "timeline_render")
	}
	if j.Flags.UseUpscale {
		kinds = append(kinds, "upscale")
	}
	if j.Flags.UseInterpolate {
		kinds = append(kinds, "interpolate")
	}
	if len(kinds) == 0 {
		return nil, NewInputError("job selects no pipeline stages", nil)
	}

	paths := routePaths(j, len(kinds))

	specs := make([]stageSpec, 0, len(kinds))
	for i, kind := range kinds {
		var st stage.Stage
		var label string
		switch kind {
		case "timeline_render":
			st, label = set.TimelineRender, "TimelineRender"
		case "upscale":
			st, label = stageForUpscaleVariant(set, j.Flags.UpscaleVariant)
		case "interpolate":
			st, label = set.Interpolate, "Interpolate"
		}
		if st == nil {
			return nil, NewInputError(fmt.Sprintf("no stage implementation wired for %q", kind), nil)
		}
		specs = append(specs, stageSpec{
			st:         st,
			label:      fmt.Sprintf("Stage %d of %d: %s", i+1, len(kinds), label),
			inputPath:  paths[i],
			outputPath: paths[i+1],
		})
	}
	return specs, nil
}

func stageForUpscaleVariant(set StageSet, variant job.UpscaleVariant) (stage.Stage, string) {
	switch variant {
	case job.UpscaleAIAnime:
		return set.UpscaleAIAnime, "Upscale (AI anime)"
	case job.UpscaleAIPhoto:
		return set.UpscaleAIPhoto, "Upscale (AI photo)"
	case job.UpscaleClassic:
		return set.UpscaleClassic, "Upscale (classic)"
	default:
		return nil, "Upscale"
	}
}

// routePaths returns stageCount+1 paths: source, intermediate(s), output —
// per spec §4.4 step 2's 1/2/3-stage table.
func routePaths(j *job.Job, stageCount int) []string {
	switch stageCount {
	case 1:
		return []string{j.SourcePath, j.OutputPath}
	case 2:
		return []string{j.SourcePath, j.IntermediatePath1, j.OutputPath}
	default:
		return []string{j.SourcePath, j.IntermediatePath1, j.IntermediatePath2, j.OutputPath}
	}
}

// AssignIntermediatePaths creates the job-id-scoped intermediate paths under
// tempDir before the job runs, so routePaths always has somewhere to write.
func AssignIntermediatePaths(j *job.Job, tempDir string) {
	jobDir := filepath.Join(tempDir, j.ID)
	if j.Flags.UseUpscale && j.Flags.UseInterpolate && j.Flags.UseTimelineRender {
		j.IntermediatePath1 = filepath.Join(jobDir, "stage1.mp4")
		j.IntermediatePath2 = filepath.Join(jobDir, "stage2.mp4")
	} else if countStages(j) == 2 {
		j.IntermediatePath1 = filepath.Join(jobDir, "stage1.mp4")
	}
}

func countStages(j *job.Job) int {
	n := 0
	if j.Flags.UseTimelineRender {
		n++
	}
	if j.Flags.UseUpscale {
		n++
	}
	if j.Flags.UseInterpolate {
		n++
	}
	return n
}

// ArtifactSizeRecorder is called after each stage so the caller can persist
// the produced artifact's size into the job's size fields (spec §4.4 step 6).
type ArtifactSizeRecorder func(path string, size int64)

// ProgressSink receives whole-job progress remapped from a stage's own
// [0,100] range into that stage's slice of [0,100].
type ProgressSink func(percent float64, currentFrame int, stageLabel string)

// Executor composes and runs one job's pipeline to completion.
type Executor struct {
	Stages StageSet
}

// NewExecutor constructs an Executor over the given stage implementations.
func NewExecutor(set StageSet) *Executor {
	return &Executor{Stages: set}
}

// Execute runs every composed stage in order, remapping progress, passing
// the stage label to onProgress, recording artifact sizes, and cleaning
// up intermediate files on any exit path (success, failure, or cancellation).
func (e *Executor) Execute(
	ctx context.Context,
	j *job.Job,
	onProgress ProgressSink,
	onArtifact ArtifactSizeRecorder,
) error {
	specs, err := composeStages(j, e.Stages)
	if err != nil {
		return err
	}

	cleanupPaths := intermediatePaths(j)
	defer func() {
		for _, p := range cleanupPaths {
			_ = os.Remove(p)
		}
	}()

	n := len(specs)
	for i, spec := range specs {
		if err := ctx.Err(); err != nil {
			return NewCancelledError("pipeline cancelled before stage start", err)
		}

		if err := spec.st.Preflight(ctx, spec.inputPath); err != nil {
			return err
		}

		if dir := filepath.Dir(spec.outputPath); dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}

		base, span := stageSlice(i, n)
		onProgress(base, j.CurrentFrame, spec.label)

		stageErr := spec.st.Run(ctx, spec.inputPath, spec.outputPath, stage.RunOptions{
			Settings:       j.StageSettingsBlob,
			TrackSelection: j.TrackSelection,
			InFrame:        j.InFrame,
			OutFrame:       j.OutFrame,
			TotalFrames:    j.TotalFrames,
			FrameRate:      j.FrameRate,
		}, func(percent float64, frame int) {
			onProgress(base+percent/100*span, frame, spec.label)
		})
		if stageErr != nil {
			return stageErr
		}

		if info, statErr := os.Stat(spec.outputPath); statErr == nil {
			onArtifact(spec.outputPath, info.Size())
		}
	}

	onProgress(100, j.CurrentFrame, specs[n-1].label)
	return nil
}

// stageSlice returns the [base, base+span] percentage range assigned to
// stage i of n, uniform by stage count per spec §9's standardized default.
func stageSlice(i, n int) (base, span float64) {
	span = 100.0 / float64(n)
	base = float64(i) * span
	return base, span
}

func intermediatePaths(j *job.Job) []string {
	var paths []string
	if j.IntermediatePath1 != "" {
		paths = append(paths, j.IntermediatePath1)
	}
	if j.IntermediatePath2 != "" {
		paths = append(paths, j.IntermediatePath2)
	}
	return paths
}
