package stage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/CheapNud/shotcutrenderqueue/internal/job"
	"github.com/CheapNud/shotcutrenderqueue/internal/pipeline"
	"github.com/CheapNud/shotcutrenderqueue/internal/supervisor"
)

// Interpolate runs the frame-rate-multiplying backend, piped into the video
// encoder — the same piped-pair architecture as the AI upscale variants,
// progress parsed identically, per spec §4.3.
type Interpolate struct {
	BackendToolPath string
	EncoderToolPath string

	Sup *supervisor.Supervisor
}

var _ Stage = (*Interpolate)(nil)

func (i *Interpolate) Label() string { return "Interpolate" }

func (i *Interpolate) Preflight(ctx context.Context, inputPath string) error {
	if err := checkInputExists(inputPath); err != nil {
		return err
	}
	if err := checkToolResolvable(i.BackendToolPath); err != nil {
		return err
	}
	return checkToolResolvable(i.EncoderToolPath)
}

func (i *Interpolate) Run(ctx context.Context, inputPath, outputPath string, opts RunOptions, onProgress ProgressFunc) error {
	scriptPath, cleanup, err := writeBackendScript(job.UpscaleVariant("interpolate"), inputPath, opts.Settings)
	if err != nil {
		return err
	}
	defer cleanup()

	backendSpec := supervisor.ExecSpec{
		Path: i.BackendToolPath,
		Args: []string{scriptPath},
		OnStderrLine: func(line string) {
			m := frameBackendProgressRe.FindStringSubmatch(line)
			if m == nil {
				return
			}
			frame, _ := strconv.Atoi(m[1])
			total, _ := strconv.Atoi(m[2])
			if total > 0 {
				onProgress(float64(frame)/float64(total)*100, frame)
			}
		},
	}
	encoderSpec := supervisor.ExecSpec{
		Path: i.EncoderToolPath,
		Args: []string{"-f", "rawvideo", "-i", "-", outputPath},
	}

	report, err := i.Sup.RunPiped(ctx, backendSpec, encoderSpec)
	if err != nil {
		return classifySupervisorError(err, "interpolation pipeline")
	}
	if report.Code != 0 {
		return pipeline.NewProcessError(fmt.Sprintf("interpolation pipeline exited %d", report.Code), nil)
	}
	return nil
}
