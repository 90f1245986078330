package archive

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmech/subfarm/internal/testutil"
)

func readEntries(t *testing.T, path string) map[string]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	entries := map[string]string{}
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		var content string
		if header.Typeflag == tar.TypeReg {
			data, err := io.ReadAll(tr)
			require.NoError(t, err)
			content = string(data)
		}
		entries[header.Name] = content
	}
	return entries
}

func TestTarGz(t *testing.T) {
	src := filepath.Join(t.TempDir(), "subtasks")
	testutil.WriteFile(t, filepath.Join(src, "info.yaml"), "work_path: /work\n")
	testutil.WriteFile(t, filepath.Join(src, "els", "conf", "1", "out.log"), "done\n")

	dest := filepath.Join(t.TempDir(), "subtasks.tar.gz")
	require.NoError(t, TarGz(src, dest))

	entries := readEntries(t, dest)
	assert.Contains(t, entries, "subtasks/")
	assert.Contains(t, entries, "subtasks/els/conf/1/")
	assert.Equal(t, "work_path: /work\n", entries["subtasks/info.yaml"])
	assert.Equal(t, "done\n", entries["subtasks/els/conf/1/out.log"])
}

func TestTarGzDestInsideSource(t *testing.T) {
	src := filepath.Join(t.TempDir(), "subtasks")
	testutil.WriteFile(t, filepath.Join(src, "a.txt"), "a")

	dest := filepath.Join(src, "self.tar.gz")
	require.NoError(t, TarGz(src, dest))

	entries := readEntries(t, dest)
	assert.Contains(t, entries, "subtasks/a.txt")
	assert.NotContains(t, entries, "subtasks/self.tar.gz")
}

func TestTarGzMissingSource(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.tar.gz")
	err := TarGz(filepath.Join(t.TempDir(), "nope"), dest)
	require.Error(t, err)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "failed archive must not leave a destination file")
}
