package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCommandAllComplete(t *testing.T) {
	jobDir, outDir := materializeWorkspace(t)
	writeLogs(t, outDir, "subfarm: task complete (exit status 0)\n")
	checkFile := filepath.Join(jobDir, "check.log")

	out, err := execute(t, NewStatusCommand(), "-p", outDir, "-c", checkFile)
	require.NoError(t, err)

	assert.Contains(t, out, "task")
	assert.Contains(t, out, "conf")
	assert.Contains(t, out, "opt")
	assert.Contains(t, out, "OK")
	assert.NotContains(t, out, "Non-OK log files")

	// Nothing to follow up on, so the check file is empty.
	data, err := os.ReadFile(checkFile)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestStatusCommandFailures(t *testing.T) {
	jobDir, outDir := materializeWorkspace(t)
	writeLogs(t, outDir, "subfarm: task failed (exit status 1)\n")
	checkFile := filepath.Join(jobDir, "check.log")

	out, err := execute(t, NewStatusCommand(), "-p", outDir, "-c", checkFile)
	require.NoError(t, err)

	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "Non-OK log files in "+jobDir)

	data, err := os.ReadFile(checkFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "out.log")
}

func TestStatusCommandEmptyDirs(t *testing.T) {
	jobDir, outDir := materializeWorkspace(t)
	checkFile := filepath.Join(jobDir, "check.log")

	// No logs at all renders every cell as pending.
	out, err := execute(t, NewStatusCommand(), "-p", outDir, "-c", checkFile)
	require.NoError(t, err)
	assert.Contains(t, out, "TBD")
}

func TestStatusCommandMissingRoot(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, NewStatusCommand(), "-p", filepath.Join(dir, "nope"), "-c", filepath.Join(dir, "check.log"))
	require.Error(t, err)
}
