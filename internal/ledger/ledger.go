// Package ledger records dispatch runs and the subtask submissions they
// fan out, backed by SQLite. The history survives across invocations so
// operators can see which node ran which subtask and how it ended.
package ledger

import (
	"time"

	"github.com/openmech/subfarm/pkg/core"
)

// RunStatus tracks the lifecycle of one dispatch run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one dispatcher invocation over a node pool.
type Run struct {
	ID          string
	Dir         string
	Nodes       string
	Targets     string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// SubmissionStatus tracks the lifecycle of one subtask submission.
type SubmissionStatus string

const (
	SubmissionRunning   SubmissionStatus = "running"
	SubmissionSucceeded SubmissionStatus = "succeeded"
	SubmissionFailed    SubmissionStatus = "failed"
)

// Submission is one subtask handed to one node during a run.
type Submission struct {
	ID          string
	RunID       string
	Group       string
	Task        string
	Key         string
	Dir         string
	Node        string
	Status      SubmissionStatus
	ExitCode    int
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// Store persists runs and submissions.
type Store interface {
	// Open opens the backing database. Use ":memory:" for tests.
	Open(path string) error

	// Close closes the backing database.
	Close() error

	// InitSchema creates the tables if they do not exist.
	InitSchema() error

	// CreateRun inserts a new run in the running state.
	CreateRun(dir string, nodes []string, targets []core.Status) (*Run, error)

	// CompleteRun marks a run finished.
	CompleteRun(id string, status RunStatus, errMsg string) error

	// GetRun retrieves a run by ID.
	GetRun(id string) (*Run, error)

	// ListRuns returns the most recent runs, newest first.
	ListRuns(limit int) ([]*Run, error)

	// CreateSubmission inserts a submission in the running state.
	CreateSubmission(runID, group, task, key, dir, node string) (*Submission, error)

	// CompleteSubmission marks a submission finished.
	CompleteSubmission(id string, status SubmissionStatus, exitCode int, errMsg string) error

	// ListSubmissions returns a run's submissions in start order.
	ListSubmissions(runID string) ([]*Submission, error)
}
