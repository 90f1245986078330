package commands

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmech/subfarm/internal/testutil"
)

func TestCheckLogCommandFile(t *testing.T) {
	dir := t.TempDir()
	log := filepath.Join(dir, "out.log")
	testutil.WriteFile(t, log, "subfarm: task complete (exit status 0)\n")

	out, err := execute(t, NewCheckLogCommand(), log)
	require.NoError(t, err)
	assert.Contains(t, out, log)
	assert.Contains(t, out, "OK")
}

func TestCheckLogCommandDir(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "out.log"), "subfarm: task complete (exit status 0)\n")
	testutil.WriteFile(t, filepath.Join(dir, "out1.log"), "subfarm: task failed (exit status 2)\n")

	out, err := execute(t, NewCheckLogCommand(), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "OK")
	assert.Contains(t, out, "ERROR")
}

func TestCheckLogCommandEmptyDir(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, NewCheckLogCommand(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no out*.log files")
}

func TestCheckLogCommandMissingPath(t *testing.T) {
	_, err := execute(t, NewCheckLogCommand(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}
