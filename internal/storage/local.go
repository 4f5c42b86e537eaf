// Package storage manages the orchestrator-owned temp directory tree:
// one subdirectory per job id, holding that job's intermediate artifacts
// until the pipeline cleans them up.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// TempDirManager creates and removes per-job subdirectories under a single
// configured root.
type TempDirManager struct {
	root string
}

// NewTempDirManager creates a TempDirManager rooted at root. If root is
// empty, os.TempDir()/renderqueue is used. The root is created if absent.
func NewTempDirManager(root string) (*TempDirManager, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "renderqueue")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create temp root: %w", err)
	}
	return &TempDirManager{root: root}, nil
}

// Root returns the configured temp directory root.
func (m *TempDirManager) Root() string {
	return m.root
}

// JobDir returns the per-job subdirectory for jobID, creating it if absent.
func (m *TempDirManager) JobDir(jobID string) (string, error) {
	dir := filepath.Join(m.root, jobID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create job temp dir: %w", err)
	}
	return dir, nil
}

// Cleanup removes a job's entire temp subdirectory, tolerating its absence.
func (m *TempDirManager) Cleanup(jobID string) error {
	dir := filepath.Join(m.root, jobID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove job temp dir: %w", err)
	}
	return nil
}
