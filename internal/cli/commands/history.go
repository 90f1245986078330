package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/openmech/subfarm/internal/cli/config"
	"github.com/openmech/subfarm/internal/ledger"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Path  string
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past dispatch runs",
		Long: `Show the dispatch runs recorded in the ledger of a subtask root,
newest first. With a run ID, show that run's individual submissions
and which node each one landed on.`,
		Example: `  # The last ten runs
  subfarm history

  # More of them, from another root
  subfarm history -p runs/propane -l 50

  # Submissions of one run
  subfarm history 5d2befc6-ed3e-4d13-9e4e-0a7f2a01b1a8`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.Path, "path", "p", config.DefaultRoot, "Subtask root whose ledger to read")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "l", 10, "Maximum number of runs to show")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions, args []string) error {
	cc := NewCommandContext(cmd)

	root := opts.Path
	if !cmd.Flags().Changed("path") {
		root = cc.Cfg.Path
	}

	// A history query must not create an empty ledger.
	path := cc.Cfg.LedgerPath(root)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(cmd.OutOrStdout(), "No dispatch runs recorded.")
			return nil
		}
		return fmt.Errorf("failed to stat ledger %s: %w", path, err)
	}

	store := ledger.NewSQLiteStore(cc.Logger)
	if err := store.Open(path); err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 1 {
		return historyRun(cmd, store, args[0])
	}
	return historyRuns(cmd, store, opts.Limit)
}

func historyRuns(cmd *cobra.Command, store ledger.Store, limit int) error {
	runs, err := store.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No dispatch runs recorded.")
		return nil
	}

	titleCaser := cases.Title(language.English)
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Status", "Started", "Duration", "Nodes", "Targets"})
	for _, run := range runs {
		t.AppendRow(table.Row{
			run.ID,
			titleCaser.String(string(run.Status)),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			spanString(run.StartedAt, run.CompletedAt),
			run.Nodes,
			run.Targets,
		})
	}
	t.Render()
	fmt.Fprintf(cmd.OutOrStdout(), "(%d runs)\n", len(runs))
	return nil
}

func historyRun(cmd *cobra.Command, store ledger.Store, id string) error {
	run, err := store.GetRun(id)
	if err != nil {
		return err
	}
	subs, err := store.ListSubmissions(id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	titleCaser := cases.Title(language.English)
	fmt.Fprintf(out, "Run %s: %s\n", run.ID, titleCaser.String(string(run.Status)))
	fmt.Fprintf(out, "Started %s in %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.Dir)
	if run.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", run.Error)
	}

	if len(subs) == 0 {
		fmt.Fprintln(out, "No submissions recorded.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Group", "Task", "Key", "Node", "Status", "Exit", "Duration"})
	for _, sub := range subs {
		t.AppendRow(table.Row{
			sub.Group,
			sub.Task,
			sub.Key,
			sub.Node,
			titleCaser.String(string(sub.Status)),
			sub.ExitCode,
			spanString(sub.StartedAt, sub.CompletedAt),
		})
	}
	t.Render()
	fmt.Fprintf(out, "(%d submissions)\n", len(subs))
	return nil
}

// spanString formats the life span of a run or submission; "-" while it
// is still going.
func spanString(started time.Time, completed *time.Time) string {
	if completed == nil {
		return "-"
	}
	return completed.Sub(started).Round(time.Second).String()
}
