package stage

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/CheapNud/shotcutrenderqueue/internal/job"
	"github.com/CheapNud/shotcutrenderqueue/internal/pipeline"
	"github.com/CheapNud/shotcutrenderqueue/internal/supervisor"
)

// frameBackendProgressRe matches the AI frame-processing backend's stderr
// progress line: "Frame: <n>/<total>".
var frameBackendProgressRe = regexp.MustCompile(`Frame:\s*(\d+)/(\d+)`)

// encoderProgressRe matches the video encoder's frame counter line.
var encoderProgressRe = regexp.MustCompile(`frame=\s*(\d+)`)

// Upscale adapts the frame-processing backend (AI variants) or the video
// encoder's scaling filter (classic variant) to the Stage contract.
type Upscale struct {
	Variant job.UpscaleVariant

	BackendToolPath string // AI frame-processing backend, aiAnime/aiPhoto
	EncoderToolPath string // video encoder, all variants

	Sup *supervisor.Supervisor
}

var _ Stage = (*Upscale)(nil)

func (u *Upscale) Label() string { return "Upscale" }

func (u *Upscale) Preflight(ctx context.Context, inputPath string) error {
	if err := checkInputExists(inputPath); err != nil {
		return err
	}
	if err := checkToolResolvable(u.EncoderToolPath); err != nil {
		return err
	}
	if u.Variant == job.UpscaleAIAnime || u.Variant == job.UpscaleAIPhoto {
		return checkToolResolvable(u.BackendToolPath)
	}
	return nil
}

func (u *Upscale) Run(ctx context.Context, inputPath, outputPath string, opts RunOptions, onProgress ProgressFunc) error {
	switch u.Variant {
	case job.UpscaleAIAnime, job.UpscaleAIPhoto:
		return u.runAIPiped(ctx, inputPath, outputPath, opts, onProgress)
	case job.UpscaleClassic:
		return u.runClassic(ctx, inputPath, outputPath, opts, onProgress)
	default:
		return pipeline.NewInputError(fmt.Sprintf("unsupported upscale variant %q", u.Variant), nil)
	}
}

func (u *Upscale) runClassic(ctx context.Context, inputPath, outputPath string, opts RunOptions, onProgress ProgressFunc) error {
	report, err := u.Sup.Run(ctx, supervisor.ExecSpec{
		Path: u.EncoderToolPath,
		Args: []string{"-i", inputPath, "-vf", "scale=iw*2:ih*2", outputPath},
		OnStderrLine: func(line string) {
			m := encoderProgressRe.FindStringSubmatch(line)
			if m == nil {
				return
			}
			frame, _ := strconv.Atoi(m[1])
			var percent float64
			if opts.TotalFrames != nil && *opts.TotalFrames > 0 {
				percent = float64(frame) / float64(*opts.TotalFrames) * 100
			}
			onProgress(percent, frame)
		},
	})
	if err != nil {
		return classifySupervisorError(err, "classic upscale encoder")
	}
	if report.Code != 0 {
		return pipeline.NewProcessError(fmt.Sprintf("classic upscale encoder exited %d", report.Code), nil)
	}
	return nil
}

func (u *Upscale) runAIPiped(ctx context.Context, inputPath, outputPath string, opts RunOptions, onProgress ProgressFunc) error {
	scriptPath, cleanup, err := writeBackendScript(u.Variant, inputPath, opts.Settings)
	if err != nil {
		return err
	}
	defer cleanup()

	backendSpec := supervisor.ExecSpec{
		Path: u.BackendToolPath,
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
		Path: u.EncoderToolPath,
		Args: []string{"-f", "rawvideo", "-i", "-", outputPath},
	}

	report, err := u.Sup.RunPiped(ctx, backendSpec, encoderSpec)
	if err != nil {
		return classifySupervisorError(err, "AI upscale pipeline")
	}
	if report.Code != 0 {
		return pipeline.NewProcessError(fmt.Sprintf("AI upscale pipeline exited %d", report.Code), nil)
	}
	return nil
}
