package ledger

import (
	"database/sql"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/openmech/subfarm/pkg/core"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite ledger store instance.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SQLiteStore{logger: logger}
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	} else {
		dsn = ":memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// One connection serializes the dispatch pool's writers and keeps
	// ":memory:" databases on a single shared handle.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitSchema initializes the database schema.
func (s *SQLiteStore) InitSchema() error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}

// --- Run operations ---

// CreateRun inserts a new run in the running state.
func (s *SQLiteStore) CreateRun(dir string, nodes []string, targets []core.Status) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.String()
	}

	run := &Run{
		ID:        generateID(),
		Dir:       dir,
		Nodes:     strings.Join(nodes, ","),
		Targets:   strings.Join(names, ","),
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	s.logger.Debug("creating run", slog.String("id", run.ID), slog.String("nodes", run.Nodes))

	_, err := s.db.Exec(
		`INSERT INTO runs (id, dir, nodes, targets, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Dir, run.Nodes, run.Targets, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

// CompleteRun marks a run finished with the given status.
func (s *SQLiteStore) CompleteRun(id string, status RunStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	var errorPtr *string
	if errMsg != "" {
		errorPtr = &errMsg
	}

	result, err := s.db.Exec(
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		status, time.Now().UTC(), errorPtr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}

	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(id string) (*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &Run{}
	var completedAt sql.NullTime
	var errMsg sql.NullString

	err := s.db.QueryRow(
		`SELECT id, dir, nodes, targets, status, started_at, completed_at, error FROM runs WHERE id = ?`,
		id,
	).Scan(&run.ID, &run.Dir, &run.Nodes, &run.Targets, &run.Status, &run.StartedAt, &completedAt, &errMsg)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}

	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, dir, nodes, targets, status, started_at, completed_at, error
		 FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var completedAt sql.NullTime
		var errMsg sql.NullString
		if err := rows.Scan(&run.ID, &run.Dir, &run.Nodes, &run.Targets, &run.Status,
			&run.StartedAt, &completedAt, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if completedAt.Valid {
			run.CompletedAt = &completedAt.Time
		}
		if errMsg.Valid {
			run.Error = errMsg.String
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

// --- Submission operations ---

// CreateSubmission inserts a submission in the running state.
func (s *SQLiteStore) CreateSubmission(runID, group, task, key, dir, node string) (*Submission, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	sub := &Submission{
		ID:        generateID(),
		RunID:     runID,
		Group:     group,
		Task:      task,
		Key:       key,
		Dir:       dir,
		Node:      node,
		Status:    SubmissionRunning,
		StartedAt: time.Now().UTC(),
	}

	s.logger.Debug("creating submission",
		slog.String("id", sub.ID), slog.String("task", task), slog.String("node", node))

	_, err := s.db.Exec(
		`INSERT INTO submissions (id, run_id, group_id, task, subtask_key, dir, node, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.RunID, sub.Group, sub.Task, sub.Key, sub.Dir, sub.Node, sub.Status, sub.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	return sub, nil
}

// CompleteSubmission marks a submission finished.
func (s *SQLiteStore) CompleteSubmission(id string, status SubmissionStatus, exitCode int, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	var errorPtr *string
	if errMsg != "" {
		errorPtr = &errMsg
	}

	result, err := s.db.Exec(
		`UPDATE submissions SET status = ?, exit_code = ?, completed_at = ?, error = ? WHERE id = ?`,
		status, exitCode, time.Now().UTC(), errorPtr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete submission: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("submission not found: %s", id)
	}

	return nil
}

// ListSubmissions returns a run's submissions in start order.
func (s *SQLiteStore) ListSubmissions(runID string) ([]*Submission, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, group_id, task, subtask_key, dir, node, status, exit_code, started_at, completed_at, error
		 FROM submissions WHERE run_id = ? ORDER BY started_at, id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var subs []*Submission
	for rows.Next() {
		sub := &Submission{}
		var completedAt sql.NullTime
		var errMsg sql.NullString
		if err := rows.Scan(&sub.ID, &sub.RunID, &sub.Group, &sub.Task, &sub.Key, &sub.Dir, &sub.Node,
			&sub.Status, &sub.ExitCode, &sub.StartedAt, &completedAt, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		if completedAt.Valid {
			sub.CompletedAt = &completedAt.Time
		}
		if errMsg.Valid {
			sub.Error = errMsg.String
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submissions: %w", err)
	}

	return subs, nil
}

var _ Store = (*SQLiteStore)(nil)
