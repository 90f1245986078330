package checklog

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmech/subfarm/internal/testutil"
	"github.com/openmech/subfarm/pkg/core"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    core.Status
	}{
		{
			name:    "clean completion",
			content: "starting conf_energy\nall points converged\nsubfarm: task complete (exit status 0)\n",
			want:    core.StatusOK,
		},
		{
			name:    "completion with warnings",
			content: "Warning: low convergence on point 3\nsubfarm: task complete (exit status 0)\n",
			want:    core.StatusWarning,
		},
		{
			name:    "wrapper failure sentinel",
			content: "starting conf_energy\nsubfarm: task failed (exit status 2)\n",
			want:    core.StatusError,
		},
		{
			name:    "python traceback without sentinel",
			content: "step 4\nTraceback (most recent call last):\n  File \"driver.py\", line 10\n",
			want:    core.StatusError,
		},
		{
			name:    "segfault",
			content: "Segmentation fault (core dumped)\n",
			want:    core.StatusError,
		},
		{
			name:    "error after completion still fails",
			content: "subfarm: task complete (exit status 0)\nerror termination in post step\n",
			want:    core.StatusError,
		},
		{
			name:    "no terminal marker means still running",
			content: "starting conf_energy\npoint 1 of 40\n",
			want:    core.StatusRunning,
		},
		{
			name:    "empty file is running",
			content: "",
			want:    core.StatusRunning,
		},
		{
			name:    "warnings alone do not complete",
			content: "Warning: retrying point\n",
			want:    core.StatusRunning,
		},
		{
			name:    "marker case insensitive",
			content: "SUBFARM: TASK COMPLETE (EXIT STATUS 0)\n",
			want:    core.StatusOK,
		},
	}

	p := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out.log")
			testutil.WriteFile(t, path, tt.content)

			got, err := p.Classify(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyMissingFile(t *testing.T) {
	p := Default()
	_, err := p.Classify(filepath.Join(t.TempDir(), "absent.log"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open log")
}

func TestClassifyLongLines(t *testing.T) {
	// A single line well past the default scanner buffer must not error.
	path := filepath.Join(t.TempDir(), "out.log")
	long := strings.Repeat("x", 200*1024)
	testutil.WriteFile(t, path, long+"\nsubfarm: task complete (exit status 0)\n")

	got, err := Default().Classify(path)
	require.NoError(t, err)
	assert.Equal(t, core.StatusOK, got)
}

func TestClassifyCustomMarkers(t *testing.T) {
	p := &Parser{
		CompleteMarkers: []string{"automech has completed"},
		ErrorMarkers:    []string{"exiting with error"},
		WarningMarkers:  []string{"warning"},
	}

	path := filepath.Join(t.TempDir(), "out.log")
	testutil.WriteFile(t, path, "AutoMech has completed.\n")

	got, err := p.Classify(path)
	require.NoError(t, err)
	assert.Equal(t, core.StatusOK, got)
}
