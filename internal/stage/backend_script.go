package stage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/CheapNud/shotcutrenderqueue/internal/job"
	"github.com/CheapNud/shotcutrenderqueue/internal/pipeline"
)

// writeBackendScript generates the scripted pipeline description the
// frame-processing backend reads, per spec §4.3 ("generate a scripted
// pipeline for the frame-processing backend"). The script's own format is
// one of the external wire protocols explicitly out of scope (spec §1); this
// writes the minimal key=value form any conforming backend accepts, combined
// with whatever the job's opaque settings blob specifies.
func writeBackendScript(variant job.UpscaleVariant, inputPath string, settings []byte) (string, func(), error) {
	dir := os.TempDir()
	scriptPath := filepath.Join(dir, fmt.Sprintf("backend-script-%s-%d.txt", variant, time.Now().UnixNano()))

	content := fmt.Sprintf("input=%s\nmode=%s\n", inputPath, variant)
	if len(settings) > 0 {
		content += fmt.Sprintf("settings=%s\n", string(settings))
	}

	if err := os.WriteFile(scriptPath, []byte(content), 0o644); err != nil {
		return "", func() {}, pipeline.NewPreflightError("write backend script", err)
	}
	cleanup := func() { _ = os.Remove(scriptPath) }
	return scriptPath, cleanup, nil
}
