package main

import (
	"os"
	"path/filepath"
)

// defaultDataDir resolves the root under which flowctl keeps pipeline
// definitions, the plugin catalog descriptor, checkpoints, artifacts, and
// the audit log, mirroring the teacher's ~/.streamy convention.
func defaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".flowforge"), nil
}

func pipelinesDir(dataDir string) string   { return filepath.Join(dataDir, "pipelines") }
func checkpointsDir(dataDir string) string { return filepath.Join(dataDir, "checkpoints") }
func artifactsDir(dataDir string) string   { return filepath.Join(dataDir, "artifacts") }
func catalogPath(dataDir string) string    { return filepath.Join(dataDir, "catalog.toml") }
func auditDir(dataDir string) string       { return dataDir }
