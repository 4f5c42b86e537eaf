package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CheapNud/shotcutrenderqueue/internal/job"
	"github.com/CheapNud/shotcutrenderqueue/internal/pipeline"
	"github.com/CheapNud/shotcutrenderqueue/internal/stage"
)

type stubStage struct {
	label string
}

var _ stage.Stage = (*stubStage)(nil)

func (s *stubStage) Label() string { return s.label }

func (s *stubStage) Preflight(ctx context.Context, inputPath string) error {
	if _, err := os.Stat(inputPath); err != nil {
		return err
	}
	return nil
}

func (s *stubStage) Run(ctx context.Context, inputPath, outputPath string, opts stage.RunOptions, onProgress stage.ProgressFunc) error {
	onProgress(50, 5)
	onProgress(100, 10)
	return os.WriteFile(outputPath, []byte("output"), 0o644)
}

func TestExecutor_Execute_TwoStage_SlicesProgressAndCleansUpIntermediate(t *testing.T) {
	dir := t.TempDir()
	sourcePath := filepath.Join(dir, "source.mp4")
	require.NoError(t, os.WriteFile(sourcePath, []byte("source"), 0o644))
	outputPath := filepath.Join(dir, "out.mp4")

	j := job.New(job.SourceVideoFile, sourcePath, outputPath, job.StageFlags{
		UseUpscale: true, UpscaleVariant: job.UpscaleClassic, UseInterpolate: true,
	})
	j.IntermediatePath1 = filepath.Join(dir, "stage1.mp4")

	exec := pipeline.NewExecutor(pipeline.StageSet{
		UpscaleClassic: &stubStage{label: "Upscale (classic)"},
		Interpolate:    &stubStage{label: "Interpolate"},
	})

	var percents []float64
	var labels []string
	var artifactCount int
	err := exec.Execute(context.Background(), j,
		func(percent float64, currentFrame int, stageLabel string) {
			percents = append(percents, percent)
			labels = append(labels, stageLabel)
		},
		func(path string, size int64) {
			artifactCount++
		},
	)

	require.NoError(t, err)
	assert.Equal(t, 2, artifactCount, "expected one artifact recorded per stage")
	assert.Contains(t, labels, "Stage 1 of 2: Upscale (classic)")
	assert.Contains(t, labels, "Stage 2 of 2: Interpolate")
	assert.Equal(t, 100.0, percents[len(percents)-1])

	_, statErr := os.Stat(j.IntermediatePath1)
	assert.True(t, os.IsNotExist(statErr), "expected intermediate artifact to be cleaned up")

	out, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, "output", string(out))
}
