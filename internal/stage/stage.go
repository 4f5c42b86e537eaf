// Package stage adapts each external processing tool (timeline renderer,
// video encoder, AI frame-processing backend) into the uniform Stage
// contract the pipeline executor composes jobs from.
package stage

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/CheapNud/shotcutrenderqueue/internal/pipeline"
)

// ProgressFunc reports a stage's progress as a percentage within its own
// [0,100] range, plus the current frame number if known.
type ProgressFunc func(percent float64, currentFrame int)

// RunOptions carries everything a stage variant needs beyond the input and
// output path. Settings is the job's opaque StageSettingsBlob; the remaining
// fields are the job attributes that, per spec §3.1, only specific stage
// variants interpret (TrackSelection: TimelineRender only; InFrame/OutFrame:
// partial-range rendering; TotalFrames: any variant that only gets a frame
// counter from its tool, not a direct percentage, needs it to compute one).
type RunOptions struct {
	Settings       []byte
	TrackSelection string
	InFrame        *int
	OutFrame       *int
	TotalFrames    *int
	FrameRate      float64
}

// Stage is the pure contract every variant implements. The orchestrator
// treats every stage identically once it conforms to this signature.
type Stage interface {
	// Label is the human-readable name used in CurrentStageLabel, e.g. "Upscale".
	Label() string

	// Preflight checks the input exists and the required tool is resolvable,
	// returning a *pipeline.Error of KindPreflight if not.
	Preflight(ctx context.Context, inputPath string) error

	// Run executes the stage, writing outputPath from inputPath, reporting
	// progress as it becomes available.
	Run(ctx context.Context, inputPath, outputPath string, opts RunOptions, onProgress ProgressFunc) error
}

func checkInputExists(inputPath string) error {
	info, err := os.Stat(inputPath)
	if err != nil {
		return pipeline.NewPreflightError(fmt.Sprintf("input not found: %s", inputPath), err)
	}
	if info.IsDir() {
		return pipeline.NewPreflightError(fmt.Sprintf("input is a directory: %s", inputPath), nil)
	}
	return nil
}

func checkToolResolvable(toolPath string) error {
	if toolPath == "" {
		return pipeline.NewPreflightError("tool path not configured", nil)
	}
	if _, err := exec.LookPath(toolPath); err != nil {
		if len(toolPath) > 0 && toolPath[0] == '/' {
			if _, statErr := os.Stat(toolPath); statErr == nil {
				return nil
			}
		}
		return pipeline.NewPreflightError(fmt.Sprintf("tool not resolvable: %s", toolPath), err)
	}
	return nil
}
