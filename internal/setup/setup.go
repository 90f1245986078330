// Package setup materializes a subtask workspace from a job spec: the
// per-subtask directories plus the manifest, catalog, and matrix
// artifacts that the status and dispatch passes read back.
package setup

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openmech/subfarm/internal/loader"
	"github.com/openmech/subfarm/pkg/core"
)

// JobSpecFile is the job spec filename expected in the job directory.
const JobSpecFile = "subtasks.yaml"

// JobSpec describes the batch to materialize.
type JobSpec struct {
	// WorkPath overrides the work root. Relative paths are resolved
	// against the job directory; empty defaults to the job directory.
	WorkPath string      `yaml:"work_path"`
	Groups   []GroupSpec `yaml:"groups"`
}

// GroupSpec is one task group in the job spec.
type GroupSpec struct {
	ID    string     `yaml:"id"`
	Tasks []TaskSpec `yaml:"tasks"`
}

// TaskSpec is one task and the partition keys it fans out over.
type TaskSpec struct {
	Name string   `yaml:"name"`
	Keys []string `yaml:"keys"`
}

// Options configures Materialize.
type Options struct {
	// Dir is the job directory holding the job spec.
	Dir string
	// OutDir is the subtask root to create (default Dir/subtasks).
	OutDir string
	// Groups filters which group IDs to materialize; empty means all.
	Groups []string
	// Force overwrites the artifacts of an existing subtask root.
	Force bool
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Result summarizes what Materialize created.
type Result struct {
	Dir      string
	Groups   int
	Tasks    int
	Subtasks int
}

// ReadJobSpec parses and validates a job spec file.
func ReadJobSpec(path string) (*JobSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("job spec not found at %s", path)
		}
		return nil, fmt.Errorf("failed to read job spec: %w", err)
	}

	spec := &JobSpec{}
	if err := yaml.Unmarshal(data, spec); err != nil {
		return nil, fmt.Errorf("failed to parse job spec %s: %w", path, err)
	}

	if len(spec.Groups) == 0 {
		return nil, fmt.Errorf("job spec %s defines no groups", path)
	}
	seenGroups := map[string]bool{}
	for _, group := range spec.Groups {
		if group.ID == "" {
			return nil, fmt.Errorf("job spec %s has a group without an id", path)
		}
		if seenGroups[group.ID] {
			return nil, fmt.Errorf("job spec %s defines group %s twice", path, group.ID)
		}
		seenGroups[group.ID] = true
		if len(group.Tasks) == 0 {
			return nil, fmt.Errorf("group %s defines no tasks", group.ID)
		}
		seenTasks := map[string]bool{}
		for _, task := range group.Tasks {
			if task.Name == "" {
				return nil, fmt.Errorf("group %s has a task without a name", group.ID)
			}
			if seenTasks[task.Name] {
				return nil, fmt.Errorf("group %s defines task %s twice", group.ID, task.Name)
			}
			seenTasks[task.Name] = true
			if len(task.Keys) == 0 {
				return nil, fmt.Errorf("task %s in group %s has no keys", task.Name, group.ID)
			}
		}
	}
	return spec, nil
}

// Materialize creates the subtask directories and workspace artifacts
// for the job spec in opts.Dir. The manifest is written last, so a
// half-finished setup never looks complete to the loader.
func Materialize(opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	jobDir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve job directory: %w", err)
	}
	outDir := opts.OutDir
	if outDir == "" {
		outDir = filepath.Join(jobDir, "subtasks")
	}
	outDir, err = filepath.Abs(outDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory: %w", err)
	}

	spec, err := ReadJobSpec(filepath.Join(jobDir, JobSpecFile))
	if err != nil {
		return nil, err
	}

	groups, err := selectGroups(spec, opts.Groups)
	if err != nil {
		return nil, err
	}

	workPath := spec.WorkPath
	if workPath == "" {
		workPath = jobDir
	} else if !filepath.IsAbs(workPath) {
		workPath = filepath.Join(jobDir, workPath)
	}

	manifestPath := filepath.Join(outDir, loader.ManifestFile)
	if _, err := os.Stat(manifestPath); err == nil && !opts.Force {
		return nil, fmt.Errorf("subtask root already exists at %s (use --force to overwrite)", outDir)
	}

	outRel, err := filepath.Rel(workPath, outDir)
	if err != nil {
		return nil, fmt.Errorf("failed to relate %s to work root %s: %w", outDir, workPath, err)
	}

	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create subtask root: %w", err)
	}

	result := &Result{Dir: outDir, Groups: len(groups)}
	groupIDs := make([]string, 0, len(groups))
	for _, group := range groups {
		groupIDs = append(groupIDs, group.ID)
		tasks, matrix, count, err := materializeGroup(workPath, outRel, group)
		if err != nil {
			return nil, err
		}
		result.Tasks += len(tasks)
		result.Subtasks += count

		if err := writeCatalog(filepath.Join(outDir, loader.CatalogFile(group.ID)), tasks); err != nil {
			return nil, err
		}
		if err := writeMatrix(filepath.Join(outDir, loader.MatrixFile(group.ID)), tasks, matrix); err != nil {
			return nil, err
		}
		logger.Debug("materialized group",
			slog.String("group", group.ID), slog.Int("tasks", len(tasks)), slog.Int("subtasks", count))
	}

	manifest := &core.Manifest{GroupIDs: groupIDs, WorkPath: workPath}
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := writeFileAtomic(manifestPath, data); err != nil {
		return nil, err
	}

	logger.Info("setup complete",
		slog.String("dir", outDir), slog.Int("groups", result.Groups), slog.Int("subtasks", result.Subtasks))
	return result, nil
}

// selectGroups filters the job spec's groups by the requested IDs,
// keeping job spec order. Empty ids means every group.
func selectGroups(spec *JobSpec, ids []string) ([]GroupSpec, error) {
	if len(ids) == 0 {
		return spec.Groups, nil
	}
	byID := map[string]GroupSpec{}
	for _, group := range spec.Groups {
		byID[group.ID] = group
	}
	var missing []string
	var out []GroupSpec
	for _, id := range ids {
		group, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out = append(out, group)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("job spec does not define group(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// materializeGroup creates the group's subtask directories and returns
// its catalog tasks and cell matrix.
func materializeGroup(workPath, outRel string, group GroupSpec) ([]core.Task, *core.Matrix, int, error) {
	tasks := make([]core.Task, len(group.Tasks))
	for i, task := range group.Tasks {
		tasks[i] = core.Task{Name: task.Name, SubtaskKeys: append([]string(nil), task.Keys...)}
	}

	keys := (&core.TaskGroup{Tasks: tasks}).UnionKeys()
	matrix := core.NewMatrix(keys)
	count := 0
	for i, task := range group.Tasks {
		for _, key := range task.Keys {
			rel := filepath.ToSlash(filepath.Join(outRel, group.ID, fmt.Sprintf("%d_%s", i, task.Name), key))
			dir := filepath.Join(workPath, rel)
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, nil, 0, fmt.Errorf("failed to create subtask directory %s: %w", dir, err)
			}
			matrix.SetCell(task.Name, key, rel)
			count++
		}
	}
	return tasks, matrix, count, nil
}

func writeCatalog(path string, tasks []core.Task) error {
	data, err := yaml.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("failed to encode catalog %s: %w", path, err)
	}
	return writeFileAtomic(path, data)
}

func writeMatrix(path string, tasks []core.Task, matrix *core.Matrix) error {
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write(append([]string{"task"}, matrix.Keys...)); err != nil {
		return fmt.Errorf("failed to encode matrix %s: %w", path, err)
	}
	for _, task := range tasks {
		row := make([]string, 0, len(matrix.Keys)+1)
		row = append(row, task.Name)
		for _, key := range matrix.Keys {
			row = append(row, matrix.Cell(task.Name, key))
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to encode matrix %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to encode matrix %s: %w", path, err)
	}
	return writeFileAtomic(path, []byte(b.String()))
}

// writeFileAtomic writes data via a sibling temp file and rename, so
// readers never observe a partially written artifact.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
