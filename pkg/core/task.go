package core

// LogPattern matches the log segments of one subtask directory.
// Restart-heavy jobs append numbered segments (out.log, out1.log, ...).
const LogPattern = "out*.log"

// Task is a named unit of work spanning one or more partitions
// within a group.
type Task struct {
	Name        string   `yaml:"name"`
	SubtaskKeys []string `yaml:"subtask_keys"`
}

// TaskGroup is a named collection of tasks sharing one manifest entry
// and one subtask matrix.
type TaskGroup struct {
	ID     string
	Tasks  []Task
	Matrix *Matrix
}

// UnionKeys returns the union of all task partition keys in the group,
// in first-seen order.
func (g *TaskGroup) UnionKeys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, t := range g.Tasks {
		for _, k := range t.SubtaskKeys {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// LabelWidth returns the length of the longest task name in the group.
func (g *TaskGroup) LabelWidth() int {
	w := 0
	for _, t := range g.Tasks {
		if len(t.Name) > w {
			w = len(t.Name)
		}
	}
	return w
}

// Matrix is the persisted (task x partition key) table of subtask
// working directories. Cell paths are relative to the manifest's work
// root; a task need not cover every column, so cells may be blank.
type Matrix struct {
	// Keys holds the column order as persisted, excluding the leading
	// task-name column.
	Keys []string

	cells map[string]map[string]string
}

// NewMatrix creates an empty matrix with the given column order.
func NewMatrix(keys []string) *Matrix {
	return &Matrix{
		Keys:  keys,
		cells: make(map[string]map[string]string),
	}
}

// SetCell records the relative subtask path for (task, key).
func (m *Matrix) SetCell(task, key, path string) {
	if m.cells[task] == nil {
		m.cells[task] = make(map[string]string)
	}
	m.cells[task][key] = path
}

// Cell returns the relative subtask path for (task, key), or "" when
// the task does not cover that column.
func (m *Matrix) Cell(task, key string) string {
	return m.cells[task][key]
}

// Manifest is the immutable per-setup record of group ids and the
// absolute work root under which matrix paths resolve. It is written
// once by setup and read-only afterward.
type Manifest struct {
	GroupIDs []string `yaml:"group_ids"`
	WorkPath string   `yaml:"work_path"`
}

// LogRecord ties one log file to its (task, key) cell for the
// end-of-report diagnostic listing. It is never persisted.
type LogRecord struct {
	Task   string
	Key    string
	Path   string
	Status Status
}

// LogClassifier classifies the text of one log file into exactly one
// Status. Implementations must be side-effect free.
type LogClassifier interface {
	Classify(path string) (Status, error)
}
