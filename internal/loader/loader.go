// Package loader reads the persisted setup artifacts: the manifest,
// plus one task catalog and one subtask matrix per group. Integrity
// checks run eagerly at load time; the loaded views are read-only.
package loader

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/openmech/subfarm/pkg/core"
)

// Artifact names inside the subtask root.
const (
	// ManifestFile records the group ids and the absolute work root.
	ManifestFile = "info.yaml"

	// taskColumn is the mandatory first matrix column.
	taskColumn = "task"
)

// CatalogFile returns the task catalog artifact name for a group.
func CatalogFile(groupID string) string {
	return groupID + ".yaml"
}

// MatrixFile returns the subtask matrix artifact name for a group.
func MatrixFile(groupID string) string {
	return groupID + ".csv"
}

// Workspace is the loaded, validated view of one setup.
type Workspace struct {
	// Dir is the subtask root holding the artifacts.
	Dir      string
	Manifest *core.Manifest
	Groups   []*core.TaskGroup
}

// AbsPath resolves a matrix cell path against the manifest work root.
func (w *Workspace) AbsPath(rel string) string {
	return filepath.Join(w.Manifest.WorkPath, rel)
}

// Load reads and validates every artifact under dir. A missing root or
// manifest yields a PrerequisiteError; catalog/matrix row drift yields
// an IntegrityError. Both are fatal for the whole pass.
func Load(dir string) (*Workspace, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, &PrerequisiteError{Path: dir}
	}

	manifest, err := readManifest(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}

	groups := make([]*core.TaskGroup, 0, len(manifest.GroupIDs))
	for _, id := range manifest.GroupIDs {
		tasks, err := ReadCatalog(filepath.Join(dir, CatalogFile(id)))
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", id, err)
		}
		matrix, err := readMatrix(filepath.Join(dir, MatrixFile(id)), id, tasks)
		if err != nil {
			return nil, err
		}
		groups = append(groups, &core.TaskGroup{ID: id, Tasks: tasks, Matrix: matrix})
	}

	return &Workspace{Dir: dir, Manifest: manifest, Groups: groups}, nil
}

func readManifest(path string) (*core.Manifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &PrerequisiteError{Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m core.Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	if len(m.GroupIDs) == 0 {
		return nil, fmt.Errorf("manifest %s lists no groups", path)
	}
	if m.WorkPath == "" {
		return nil, fmt.Errorf("manifest %s has no work path", path)
	}
	return &m, nil
}

// ReadCatalog reads the ordered task list of one group.
func ReadCatalog(path string) ([]core.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var tasks []core.Task
	if err := yaml.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("catalog %s lists no tasks", path)
	}
	return tasks, nil
}

// readMatrix reads one group's matrix and pairs it against the catalog:
// row i must name catalog task i, and the leading column must be the
// task-name column.
func readMatrix(path, groupID string, tasks []core.Task) (*core.Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("group %s: failed to read matrix: %w", groupID, err)
	}
	defer func() { _ = f.Close() }()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("group %s: failed to parse matrix %s: %w", groupID, path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("group %s: matrix %s is empty", groupID, path)
	}

	header := records[0]
	if header[0] != taskColumn {
		return nil, fmt.Errorf("group %s: matrix %s: first column must be %q, got %q",
			groupID, path, taskColumn, header[0])
	}
	keys := header[1:]

	rows := records[1:]
	if len(rows) != len(tasks) {
		return nil, fmt.Errorf("group %s: matrix %s has %d rows but catalog lists %d tasks",
			groupID, path, len(rows), len(tasks))
	}

	matrix := core.NewMatrix(keys)
	for i, row := range rows {
		if row[0] != tasks[i].Name {
			return nil, &IntegrityError{
				Group:       groupID,
				Row:         i,
				CatalogName: tasks[i].Name,
				MatrixName:  row[0],
			}
		}
		for j, cell := range row[1:] {
			if cell != "" {
				matrix.SetCell(row[0], keys[j], cell)
			}
		}
	}
	return matrix, nil
}
