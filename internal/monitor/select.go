package monitor

import (
	"io"
	"log/slog"

	"github.com/openmech/subfarm/internal/loader"
	"github.com/openmech/subfarm/pkg/core"
)

// Candidate is a covered subtask eligible for submission.
type Candidate struct {
	Group string
	Task  string
	Key   string
	Dir   string
}

// Select walks the workspace in catalog order and returns every covered
// subtask whose aggregate status is one of targets. A subtask whose logs
// cannot be read or match no aggregation rule is skipped with a warning
// rather than blocking the rest of the batch.
func Select(ws *loader.Workspace, classifier core.LogClassifier, targets []core.Status, logger *slog.Logger) ([]Candidate, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var candidates []Candidate
	for _, group := range ws.Groups {
		keys := group.UnionKeys()
		for _, task := range group.Tasks {
			for _, key := range keys {
				rel := group.Matrix.Cell(task.Name, key)
				if rel == "" {
					continue
				}
				dir := ws.AbsPath(rel)
				status, err := Aggregate(dir, classifier)
				if err != nil {
					logger.Warn("skipping subtask with unassessable logs",
						"group", group.ID, "task", task.Name, "key", key, "error", err)
					continue
				}
				if statusIn(status, targets) {
					candidates = append(candidates, Candidate{
						Group: group.ID,
						Task:  task.Name,
						Key:   key,
						Dir:   dir,
					})
				}
			}
		}
	}
	return candidates, nil
}

func statusIn(s core.Status, set []core.Status) bool {
	for _, t := range set {
		if s == t {
			return true
		}
	}
	return false
}
