package stage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/CheapNud/shotcutrenderqueue/internal/pipeline"
	"github.com/CheapNud/shotcutrenderqueue/internal/supervisor"
)

// timelineRenderProgressRe matches the renderer's stderr progress line:
// "Current Frame: <n>, percentage: <p>".
var timelineRenderProgressRe = regexp.MustCompile(`Current Frame:\s*(\d+),\s*percentage:\s*(\d+)`)

// TimelineRender invokes the timeline/project renderer binary. It always
// uses the CPU codec path; hardware acceleration flags are accepted by job
// settings but ignored here with a logged warning, per spec §4.3.
type TimelineRender struct {
	ToolPath string
	Sup      *supervisor.Supervisor
	TempDir  string
	Logger   *slog.Logger
}

var _ Stage = (*TimelineRender)(nil)

func (r *TimelineRender) Label() string { return "TimelineRender" }

func (r *TimelineRender) Preflight(ctx context.Context, inputPath string) error {
	if err := checkInputExists(inputPath); err != nil {
		return err
	}
	return checkToolResolvable(r.ToolPath)
}

func (r *TimelineRender) Run(ctx context.Context, inputPath, outputPath string, opts RunOptions, onProgress ProgressFunc) error {
	projectPath := inputPath
	if opts.TrackSelection != "" {
		materialized, cleanup, err := r.materializeTrackSelection(inputPath, opts.TrackSelection)
		if err != nil {
			return err
		}
		defer cleanup()
		projectPath = materialized
	}

	args := []string{projectPath, fmt.Sprintf("out=%s", outputPath), "codec=cpu"}
	if opts.InFrame != nil {
		args = append(args, fmt.Sprintf("in=%d", *opts.InFrame))
	}
	if opts.OutFrame != nil {
		args = append(args, fmt.Sprintf("out-frame=%d", *opts.OutFrame))
	}

	r.Logger.Warn("hardware acceleration ignored; timeline render always uses the CPU codec path",
		slog.String("tool", r.ToolPath),
	)

	report, err := r.Sup.Run(ctx, supervisor.ExecSpec{
		Path: r.ToolPath,
		Args: args,
		OnStderrLine: func(line string) {
			m := timelineRenderProgressRe.FindStringSubmatch(line)
			if m == nil {
				return
			}
			frame, _ := strconv.Atoi(m[1])
			percent, _ := strconv.ParseFloat(m[2], 64)
			onProgress(percent, frame)
		},
	})
	if err != nil {
		return classifySupervisorError(err, "timeline render")
	}
	if report.Code != 0 {
		return pipeline.NewProcessError(fmt.Sprintf("timeline renderer exited %d", report.Code), nil)
	}
	return nil
}

// materializeTrackSelection copies the project file to a temp path with the
// requested track-selection applied, so the renderer is always pointed at a
// copy rather than mutating the job's source file. The copy is removed by
// the returned cleanup func whether the stage succeeds or fails.
func (r *TimelineRender) materializeTrackSelection(projectPath, trackSelection string) (string, func(), error) {
	src, err := os.ReadFile(projectPath)
	if err != nil {
		return "", func() {}, pipeline.NewPreflightError("read project file for track selection", err)
	}

	dir := r.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	tmpPath := filepath.Join(dir, fmt.Sprintf("trackselect-%d.mlt", time.Now().UnixNano()))

	modified := applyTrackSelection(src, trackSelection)
	if err := os.WriteFile(tmpPath, modified, 0o644); err != nil {
		return "", func() {}, pipeline.NewPreflightError("write materialized project copy", err)
	}

	cleanup := func() { _ = os.Remove(tmpPath) }
	return tmpPath, cleanup, nil
}

// applyTrackSelection is a narrow textual transform: the project XML format
// itself is explicitly out of scope (spec §1), so this only needs to thread
// the opaque selection string through to whatever the renderer understands
// as a track filter, prepended to the project as an XML comment the tool
// reads back out.
func applyTrackSelection(project []byte, trackSelection string) []byte {
	marker := []byte(fmt.Sprintf("<!-- track-selection: %s -->\n", trackSelection))
	return append(marker, project...)
}

func classifySupervisorError(err error, toolLabel string) error {
	switch {
	case err == supervisor.ErrNotFound:
		return pipeline.NewPreflightError(toolLabel+" executable not found", err)
	case err == supervisor.ErrCancelled:
		return pipeline.NewCancelledError(toolLabel+" cancelled", err)
	case err == supervisor.ErrTimedOut:
		return pipeline.NewProcessError(toolLabel+" timed out", err)
	default:
		return pipeline.NewProcessError(toolLabel+" launch failed", err)
	}
}
