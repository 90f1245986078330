// Package monitor runs the status pass over a subtask workspace: it
// classifies every log file, aggregates per subtask, renders one grid
// per task group, and digests the logs that need human attention. It
// also selects subtasks for resubmission by their aggregate status.
package monitor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/openmech/subfarm/internal/checklog"
	"github.com/openmech/subfarm/internal/loader"
	"github.com/openmech/subfarm/pkg/core"
)

// Config holds status engine configuration.
type Config struct {
	// Classifier turns a log file into a status (optional, defaults to
	// the standard marker set)
	Classifier core.LogClassifier
	// Renderer receives the grids and the digest (optional, defaults to
	// stdout with the default wrap)
	Renderer *Renderer
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Engine runs the status pass.
type Engine struct {
	classifier core.LogClassifier
	renderer   *Renderer
	logger     *slog.Logger
}

// New creates a status engine, filling in defaults for unset fields.
func New(cfg Config) *Engine {
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = checklog.Default()
	}
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = NewRenderer(os.Stdout, DefaultWrap)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{classifier: classifier, renderer: renderer, logger: logger}
}

// Report renders one status grid per task group followed by a digest of
// the logs that need attention. It returns the digest records so callers
// can hand them to a follow-up tool.
//
// A subtask whose logs cannot be read or match no aggregation rule
// renders as "??" and is logged; the rest of the report is unaffected.
func (e *Engine) Report(ws *loader.Workspace) ([]core.LogRecord, error) {
	var records []core.LogRecord
	for _, group := range ws.Groups {
		keys := group.UnionKeys()
		rows := make([]Row, 0, len(group.Tasks))
		for _, task := range group.Tasks {
			row := Row{Label: task.Name, Cells: make([]Cell, 0, len(keys))}
			for _, key := range keys {
				rel := group.Matrix.Cell(task.Name, key)
				if rel == "" {
					row.Cells = append(row.Cells, BlankCell())
					continue
				}
				dir := ws.AbsPath(rel)
				logs, err := LogStatuses(dir, e.classifier)
				if err != nil {
					e.logger.Warn("failed to classify subtask logs",
						"group", group.ID, "task", task.Name, "key", key, "error", err)
					row.Cells = append(row.Cells, UnknownCell())
					continue
				}
				statuses := make([]core.Status, len(logs))
				for i, l := range logs {
					statuses[i] = l.Status
				}
				status, err := Combine(statuses)
				if err != nil {
					var unmodeled *UnmodeledCombinationError
					if errors.As(err, &unmodeled) {
						unmodeled.Dir = dir
					}
					e.logger.Warn("log statuses match no aggregation rule",
						"group", group.ID, "task", task.Name, "key", key, "error", err)
					row.Cells = append(row.Cells, UnknownCell())
				} else {
					row.Cells = append(row.Cells, StatusCell(status))
				}
				for _, l := range logs {
					if l.Status != core.StatusOK {
						records = append(records, core.LogRecord{
							Task:   task.Name,
							Key:    key,
							Path:   l.Path,
							Status: l.Status,
						})
					}
				}
			}
			rows = append(rows, row)
		}
		e.renderer.Table(group.LabelWidth(), keys, rows)
	}
	e.renderer.Digest(ws.Manifest.WorkPath, records)
	return records, nil
}

// WriteCheckFile writes the digest's log paths to path, one per line.
// An empty record set truncates the file so paths from an earlier pass
// cannot linger.
func WriteCheckFile(path string, records []core.LogRecord) error {
	var b strings.Builder
	for _, rec := range records {
		b.WriteString(rec.Path)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write check file: %w", err)
	}
	return nil
}
