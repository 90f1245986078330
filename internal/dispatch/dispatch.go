// Package dispatch fans subtask submissions out over an ad hoc pool of
// worker nodes. Each node runs one submission at a time; every node pulls
// the next candidate from a shared queue as soon as it finishes, so fast
// nodes drain more of the batch. Subtask directories live on a filesystem
// shared with the nodes, so each payload's output lands in its own
// out.log without any copying back.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openmech/subfarm/internal/archive"
	"github.com/openmech/subfarm/internal/checklog"
	"github.com/openmech/subfarm/internal/ledger"
	"github.com/openmech/subfarm/internal/loader"
	"github.com/openmech/subfarm/internal/monitor"
	"github.com/openmech/subfarm/pkg/core"
)

// DefaultCommand is the payload run in each subtask directory.
const DefaultCommand = "automech run"

// RunSpec describes one dispatch over a node pool.
type RunSpec struct {
	// Dir is the subtask root.
	Dir string
	// Nodes are the worker hostnames, already expanded.
	Nodes []string
	// Command is the payload command (default DefaultCommand).
	Command string
	// ActivationHook is shell code eval'd on the node before the payload,
	// typically an environment activation snippet.
	ActivationHook string
	// Statuses selects which subtasks to (re)submit (default TBD).
	Statuses []core.Status
	// Archive tars the subtask root after the run.
	Archive bool
}

// Summary reports how a dispatch run went.
type Summary struct {
	RunID       string
	Total       int
	Succeeded   int
	Failed      int
	ArchivePath string
}

// Config holds dispatch engine configuration.
type Config struct {
	// Runner executes scripts on nodes (optional, defaults to ssh)
	Runner Runner
	// Store records the run and its submissions
	Store ledger.Store
	// Classifier is used to select candidates by status (optional,
	// defaults to the standard marker set)
	Classifier core.LogClassifier
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Engine dispatches subtask batches.
type Engine struct {
	runner     Runner
	store      ledger.Store
	classifier core.LogClassifier
	logger     *slog.Logger
}

// New creates a dispatch engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	runner := cfg.Runner
	if runner == nil {
		runner = &SSHRunner{}
	}
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = checklog.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{runner: runner, store: cfg.Store, classifier: classifier, logger: logger}, nil
}

// Run selects the target subtasks and farms them out to the nodes. One
// failed submission never stops the pool; the summary carries the
// counts. Cancelling ctx stops handing out new candidates, finishes the
// in-flight ones, and closes out the ledger before returning.
func (e *Engine) Run(ctx context.Context, spec RunSpec) (*Summary, error) {
	if len(spec.Nodes) == 0 {
		return nil, fmt.Errorf("no nodes given")
	}
	if spec.Command == "" {
		spec.Command = DefaultCommand
	}
	if len(spec.Statuses) == 0 {
		spec.Statuses = []core.Status{core.StatusTBD}
	}

	ws, err := loader.Load(spec.Dir)
	if err != nil {
		return nil, err
	}
	candidates, err := monitor.Select(ws, e.classifier, spec.Statuses, e.logger)
	if err != nil {
		return nil, err
	}

	run, err := e.store.CreateRun(spec.Dir, spec.Nodes, spec.Statuses)
	if err != nil {
		return nil, err
	}
	summary := &Summary{RunID: run.ID, Total: len(candidates)}

	e.logger.Info("dispatching subtasks",
		slog.Int("candidates", len(candidates)), slog.Int("nodes", len(spec.Nodes)))

	poolErr := e.runPool(ctx, run.ID, candidates, spec, summary)
	if poolErr != nil {
		if err := e.store.CompleteRun(run.ID, ledger.RunStatusFailed, poolErr.Error()); err != nil {
			e.logger.Error("failed to finalize run", slog.String("error", err.Error()))
		}
		return summary, poolErr
	}
	if err := e.store.CompleteRun(run.ID, ledger.RunStatusCompleted, ""); err != nil {
		return summary, err
	}

	e.logger.Info("dispatch finished",
		slog.Int("succeeded", summary.Succeeded), slog.Int("failed", summary.Failed))

	if spec.Archive {
		dest, err := e.archiveWorkspace(ws.Dir)
		if err != nil {
			return summary, err
		}
		summary.ArchivePath = dest
	}
	return summary, nil
}

func (e *Engine) runPool(ctx context.Context, runID string, candidates []monitor.Candidate, spec RunSpec, summary *Summary) error {
	if len(candidates) == 0 {
		e.logger.Info("nothing to dispatch", slog.String("targets", statusNames(spec.Statuses)))
		return nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	queue := make(chan monitor.Candidate)
	g.Go(func() error {
		defer close(queue)
		for _, cand := range candidates {
			if err := gctx.Err(); err != nil {
				return err
			}
			select {
			case queue <- cand:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for _, node := range spec.Nodes {
		node := node
		g.Go(func() error {
			for cand := range queue {
				if e.submit(gctx, runID, node, cand, spec) {
					mu.Lock()
					summary.Succeeded++
					mu.Unlock()
				} else {
					mu.Lock()
					summary.Failed++
					mu.Unlock()
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// submit runs one candidate on one node and records it in the ledger.
// It reports success; failures are recorded, never propagated, so the
// rest of the batch keeps flowing.
func (e *Engine) submit(ctx context.Context, runID, node string, cand monitor.Candidate, spec RunSpec) bool {
	sub, err := e.store.CreateSubmission(runID, cand.Group, cand.Task, cand.Key, cand.Dir, node)
	if err != nil {
		e.logger.Error("failed to record submission",
			slog.String("task", cand.Task), slog.String("key", cand.Key), slog.String("error", err.Error()))
		return false
	}

	e.logger.Info("submitting subtask",
		slog.String("group", cand.Group), slog.String("task", cand.Task),
		slog.String("key", cand.Key), slog.String("node", node))

	script := buildScript(cand.Dir, spec.ActivationHook, spec.Command)
	code, runErr := e.runner.Run(ctx, node, script)

	status := ledger.SubmissionSucceeded
	errMsg := ""
	switch {
	case runErr != nil:
		status = ledger.SubmissionFailed
		errMsg = runErr.Error()
		e.logger.Error("submission failed to run",
			slog.String("task", cand.Task), slog.String("key", cand.Key),
			slog.String("node", node), slog.String("error", errMsg))
	case code != 0:
		status = ledger.SubmissionFailed
		e.logger.Warn("submission exited nonzero",
			slog.String("task", cand.Task), slog.String("key", cand.Key),
			slog.String("node", node), slog.Int("exit_code", code))
	default:
		e.logger.Info("submission finished",
			slog.String("task", cand.Task), slog.String("key", cand.Key), slog.String("node", node))
	}

	if err := e.store.CompleteSubmission(sub.ID, status, code, errMsg); err != nil {
		e.logger.Error("failed to finalize submission",
			slog.String("id", sub.ID), slog.String("error", err.Error()))
		return false
	}
	return status == ledger.SubmissionSucceeded
}

func (e *Engine) archiveWorkspace(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	stamp := time.Now().UTC().Format("20060102-150405")
	dest := filepath.Join(filepath.Dir(abs), fmt.Sprintf("%s-%s.tar.gz", filepath.Base(abs), stamp))

	e.logger.Info("archiving subtask root", slog.String("dest", dest))
	if err := archive.TarGz(abs, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// buildScript assembles the shell script run on the node. The payload's
// combined output goes to a fresh out.log in the subtask directory, and
// a trailing marker line records how it exited so the status pass can
// classify the log without guessing.
func buildScript(dir, hook, command string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "cd %s || exit 97\n", shellQuote(dir))
	if hook != "" {
		b.WriteString(hook)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "( %s ) > out.log 2>&1\n", command)
	b.WriteString(`status=$?
if [ "$status" -eq 0 ]; then
  echo "subfarm: task complete (exit status 0)" >> out.log
else
  echo "subfarm: task failed (exit status $status)" >> out.log
fi
exit "$status"
`)
	return b.String()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func statusNames(statuses []core.Status) string {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = s.String()
	}
	return strings.Join(names, ",")
}
