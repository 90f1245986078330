package core

import (
	"fmt"
	"strings"
)

// Status classifies the progress or outcome of one subtask.
type Status string

// Status values.
const (
	// StatusTBD means nothing has run yet: no log files exist.
	StatusTBD Status = "TBD"
	// StatusRunning means at least one log segment is still in progress.
	StatusRunning Status = "RUNNING"
	// StatusOK means every log segment completed cleanly.
	StatusOK Status = "OK"
	// StatusWarning means the subtask finished with warnings.
	StatusWarning Status = "WARNING"
	// StatusError means the subtask failed.
	StatusError Status = "ERROR"
	// StatusOK1E means functionally OK despite one isolated error
	// below the noise tolerance.
	StatusOK1E Status = "OK_1E"
	// StatusOK2E means functionally OK despite two isolated errors
	// below the noise tolerance.
	StatusOK2E Status = "OK_2E"
)

// AllStatuses lists every Status value in display order.
func AllStatuses() []Status {
	return []Status{
		StatusTBD,
		StatusRunning,
		StatusOK,
		StatusWarning,
		StatusError,
		StatusOK1E,
		StatusOK2E,
	}
}

// String returns the wire representation of the status.
func (s Status) String() string {
	return string(s)
}

// Kind groups statuses for display styling. Styling is cosmetic and
// must never be parsed back into a Status.
type Kind int

// Display kinds.
const (
	// KindPending covers subtasks that have not produced logs yet.
	KindPending Kind = iota
	// KindInProgress covers subtasks with live log segments.
	KindInProgress
	// KindPass covers clean completions.
	KindPass
	// KindPartialPass covers completions with tolerated noise.
	KindPartialPass
	// KindFailure covers failed subtasks.
	KindFailure
)

// Kind returns the display kind for the status.
func (s Status) Kind() Kind {
	switch s {
	case StatusTBD:
		return KindPending
	case StatusRunning:
		return KindInProgress
	case StatusOK:
		return KindPass
	case StatusOK1E, StatusOK2E, StatusWarning:
		return KindPartialPass
	case StatusError:
		return KindFailure
	default:
		return KindFailure
	}
}

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindPending:
		return "pending"
	case KindInProgress:
		return "in progress"
	case KindPass:
		return "pass"
	case KindPartialPass:
		return "partial pass"
	case KindFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// ParseStatus converts a string to a Status value.
// The match is case-insensitive; the set is closed.
func ParseStatus(s string) (Status, error) {
	for _, st := range AllStatuses() {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q (valid: %s)", s, statusNames())
}

// ParseStatusList converts a comma-separated list to Status values.
func ParseStatusList(s string) ([]Status, error) {
	parts := strings.Split(s, ",")
	statuses := make([]Status, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		st, err := ParseStatus(p)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, st)
	}
	if len(statuses) == 0 {
		return nil, fmt.Errorf("empty status list %q", s)
	}
	return statuses, nil
}

func statusNames() string {
	all := AllStatuses()
	names := make([]string, len(all))
	for i, st := range all {
		names[i] = string(st)
	}
	return strings.Join(names, ", ")
}
