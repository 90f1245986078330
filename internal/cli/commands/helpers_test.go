package commands

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/openmech/subfarm/internal/loader"
	"github.com/openmech/subfarm/internal/setup"
	"github.com/openmech/subfarm/internal/testutil"
)

// execute runs a command with the given args and returns its combined
// output.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

const testJobSpec = `groups:
  - id: els
    tasks:
      - name: conf
        keys: ["1", "2"]
      - name: opt
        keys: ["2"]
`

// materializeWorkspace builds a small subtask workspace and returns the
// job directory and the subtask root.
func materializeWorkspace(t *testing.T) (string, string) {
	t.Helper()
	jobDir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(jobDir, setup.JobSpecFile), testJobSpec)

	outDir := filepath.Join(jobDir, "subtasks")
	_, err := setup.Materialize(setup.Options{Dir: jobDir, OutDir: outDir})
	require.NoError(t, err)
	return jobDir, outDir
}

// writeLogs drops an out.log with the given content into every subtask
// directory of the workspace.
func writeLogs(t *testing.T, outDir, content string) {
	t.Helper()
	ws, err := loader.Load(outDir)
	require.NoError(t, err)
	for _, group := range ws.Groups {
		for _, task := range group.Tasks {
			for _, key := range task.SubtaskKeys {
				dir := ws.AbsPath(group.Matrix.Cell(task.Name, key))
				testutil.WriteFile(t, filepath.Join(dir, "out.log"), content)
			}
		}
	}
}
