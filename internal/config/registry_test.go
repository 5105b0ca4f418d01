package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writePipelineFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRegistryLoadDirRegistersEachPipelineByID(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writePipelineFile(t, dir, "deploy.yaml", "id: deploy\nname: deploy\nsteps:\n  - name: a\n    plugin: command\n")
	writePipelineFile(t, dir, "build.yml", "name: build\nsteps:\n  - name: a\n    plugin: command\n")
	writePipelineFile(t, dir, "notes.txt", "ignored")

	r := NewRegistry()
	require.NoError(t, r.LoadDir(dir))

	require.Equal(t, []string{"build", "deploy"}, r.IDs())

	def, ok := r.Get("deploy")
	require.True(t, ok)
	require.Equal(t, "deploy", def.Name)

	build, ok := r.Get("build")
	require.True(t, ok)
	require.Equal(t, "build", build.ID, "falls back to filename stem when id is omitted")
}

func TestRegistryLoadDirReportsOffendingFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writePipelineFile(t, dir, "broken.yaml", "name: broken\nsteps: []\n")

	r := NewRegistry()
	err := r.LoadDir(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "broken.yaml")
}
