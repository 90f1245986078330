package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmech/subfarm/internal/loader"
	"github.com/openmech/subfarm/internal/setup"
	"github.com/openmech/subfarm/internal/testutil"
)

func TestSetupCommand(t *testing.T) {
	jobDir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(jobDir, setup.JobSpecFile), testJobSpec)
	outDir := filepath.Join(jobDir, "farm")

	out, err := execute(t, NewSetupCommand(), "-p", jobDir, "-o", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Materialized 3 subtasks (1 groups, 2 tasks)")

	ws, err := loader.Load(outDir)
	require.NoError(t, err)
	require.Len(t, ws.Groups, 1)
	assert.Equal(t, "els", ws.Groups[0].ID)
	assert.DirExists(t, ws.AbsPath(ws.Groups[0].Matrix.Cell("conf", "1")))
}

func TestSetupCommandExistingRoot(t *testing.T) {
	jobDir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(jobDir, setup.JobSpecFile), testJobSpec)
	outDir := filepath.Join(jobDir, "farm")

	_, err := execute(t, NewSetupCommand(), "-p", jobDir, "-o", outDir)
	require.NoError(t, err)

	// A second pass refuses to clobber the root without --force.
	_, err = execute(t, NewSetupCommand(), "-p", jobDir, "-o", outDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, NewSetupCommand(), "-p", jobDir, "-o", outDir, "--force")
	require.NoError(t, err)
}

func TestSetupCommandGroupFilter(t *testing.T) {
	spec := `groups:
  - id: els
    tasks:
      - name: conf
        keys: ["1"]
  - id: thermo
    tasks:
      - name: fit
        keys: ["1"]
`
	jobDir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(jobDir, setup.JobSpecFile), spec)
	outDir := filepath.Join(jobDir, "farm")

	_, err := execute(t, NewSetupCommand(), "-p", jobDir, "-o", outDir, "-g", "thermo")
	require.NoError(t, err)

	ws, err := loader.Load(outDir)
	require.NoError(t, err)
	require.Len(t, ws.Groups, 1)
	assert.Equal(t, "thermo", ws.Groups[0].ID)

	_, err = os.Stat(filepath.Join(outDir, loader.CatalogFile("els")))
	assert.True(t, os.IsNotExist(err), "els catalog should not be materialized")
}

func TestSetupCommandUnknownGroup(t *testing.T) {
	jobDir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(jobDir, setup.JobSpecFile), testJobSpec)

	_, err := execute(t, NewSetupCommand(), "-p", jobDir, "-o", filepath.Join(jobDir, "farm"), "-g", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestSetupCommandMissingSpec(t *testing.T) {
	jobDir := t.TempDir()

	_, err := execute(t, NewSetupCommand(), "-p", jobDir, "-o", filepath.Join(jobDir, "farm"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job spec not found")
}
