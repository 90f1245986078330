package monitor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/openmech/subfarm/pkg/core"
)

// smallErrorThreshold is the error fraction below which one or two failed
// logs downgrade a subtask to OK_1E or OK_2E instead of failing it.
const smallErrorThreshold = 0.2

// UnmodeledCombinationError reports a mix of log statuses that no
// aggregation rule covers. Callers decide how loudly to fail; the status
// engine degrades the affected subtask and keeps going.
type UnmodeledCombinationError struct {
	Dir      string
	Statuses []core.Status
}

func (e *UnmodeledCombinationError) Error() string {
	names := make([]string, len(e.Statuses))
	for i, s := range e.Statuses {
		names[i] = s.String()
	}
	if e.Dir == "" {
		return fmt.Sprintf("no aggregation rule for log statuses [%s]", strings.Join(names, " "))
	}
	return fmt.Sprintf("no aggregation rule for log statuses [%s] in %s", strings.Join(names, " "), e.Dir)
}

// LogStatus pairs one log file with its classified status.
type LogStatus struct {
	Path   string
	Status core.Status
}

// LogStatuses classifies every log file in dir matching core.LogPattern.
// Glob ordering is lexical, so rescanning an unchanged directory yields
// the same slice. A missing directory simply has no logs.
func LogStatuses(dir string, classifier core.LogClassifier) ([]LogStatus, error) {
	paths, err := filepath.Glob(filepath.Join(dir, core.LogPattern))
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s for logs: %w", dir, err)
	}
	logs := make([]LogStatus, 0, len(paths))
	for _, p := range paths {
		status, err := classifier.Classify(p)
		if err != nil {
			return nil, err
		}
		logs = append(logs, LogStatus{Path: p, Status: status})
	}
	return logs, nil
}

// Combine reduces the statuses of one subtask's logs to a single status.
//
// No logs means nothing ran yet. A uniform set keeps its value. Any
// running log keeps the whole subtask running. One or two errors under a
// fifth of the total degrade to OK_1E/OK_2E; more errors fail outright.
// Whatever remains must be a mix of passes and warnings.
func Combine(statuses []core.Status) (core.Status, error) {
	if len(statuses) == 0 {
		return core.StatusTBD, nil
	}

	uniform := true
	for _, s := range statuses[1:] {
		if s != statuses[0] {
			uniform = false
			break
		}
	}
	if uniform {
		return statuses[0], nil
	}

	errorCount := 0
	for _, s := range statuses {
		switch s {
		case core.StatusRunning:
			return core.StatusRunning, nil
		case core.StatusError:
			errorCount++
		}
	}

	if errorCount > 0 {
		if float64(errorCount)/float64(len(statuses)) < smallErrorThreshold {
			switch errorCount {
			case 1:
				return core.StatusOK1E, nil
			case 2:
				return core.StatusOK2E, nil
			}
		}
		return core.StatusError, nil
	}

	for _, s := range statuses {
		if s != core.StatusOK && s != core.StatusWarning {
			return "", &UnmodeledCombinationError{Statuses: append([]core.Status(nil), statuses...)}
		}
	}
	return core.StatusWarning, nil
}

// Aggregate scans one subtask directory and reduces its logs to a status.
func Aggregate(dir string, classifier core.LogClassifier) (core.Status, error) {
	logs, err := LogStatuses(dir, classifier)
	if err != nil {
		return "", err
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
		return "", err
	}
	return status, nil
}
