package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openmech/subfarm/internal/cli/config"
	"github.com/openmech/subfarm/internal/dispatch"
	"github.com/openmech/subfarm/internal/hostexpand"
	"github.com/openmech/subfarm/pkg/core"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Path           string
	ActivationHook string
	Statuses       string
	Command        string
	Archive        bool
	Local          bool
	Jobs           int
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run [nodes...]",
		Short: "Dispatch pending subtasks over a node pool",
		Long: `Select the subtasks whose aggregate status matches --statuses and farm
them out to the given nodes over ssh. Each node runs one subtask at a
time and pulls the next as soon as it finishes, so fast nodes drain
more of the batch. Node arguments accept bracket ranges such as
csb[01-04] and comma lists such as node[1,3,7].

The payload's output is captured in the subtask directory's out.log
and every submission is recorded in the dispatch ledger for
subfarm history. Before the payload runs, the activation hook is
eval'd on the node; without -a, the hook is taken from pixi shell-hook
when a pixi environment is present.`,
		Example: `  # Dispatch pending subtasks over four nodes
  subfarm run csb[01-04]

  # Retry errored subtasks on two nodes and archive the root afterwards
  subfarm run node1 node2 -s ERROR -t

  # Run locally with three workers
  subfarm run --local -n 3`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.Path, "path", "p", config.DefaultRoot, "Subtask root to dispatch from")
	cmd.Flags().StringVarP(&opts.ActivationHook, "activation-hook", "a", "", "Shell snippet eval'd on the node before the payload")
	cmd.Flags().StringVarP(&opts.Statuses, "statuses", "s", config.DefaultStatuses, "Comma-separated statuses to (re)submit")
	cmd.Flags().StringVar(&opts.Command, "command", config.DefaultCommand, "Payload command run in each subtask directory")
	cmd.Flags().BoolVarP(&opts.Archive, "tar", "t", false, "Archive the subtask root after the run")
	cmd.Flags().BoolVar(&opts.Local, "local", false, "Run on the local host instead of over ssh")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "n", 1, "Local worker count (requires --local)")

	// Register completion for statuses flag
	_ = cmd.RegisterFlagCompletionFunc("statuses", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		statuses := core.AllStatuses()
		names := make([]string, len(statuses))
		for i, s := range statuses {
			names[i] = s.String()
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions, args []string) error {
	cc := NewCommandContext(cmd)

	root := opts.Path
	if !cmd.Flags().Changed("path") {
		root = cc.Cfg.Path
	}
	command := opts.Command
	if !cmd.Flags().Changed("command") {
		command = cc.Cfg.Run.Command
	}
	statusList := opts.Statuses
	if !cmd.Flags().Changed("statuses") {
		statusList = cc.Cfg.Run.Statuses
	}
	statuses, err := core.ParseStatusList(statusList)
	if err != nil {
		return err
	}

	hook := opts.ActivationHook
	switch {
	case cmd.Flags().Changed("activation-hook"):
		// Explicit hook wins, even an empty one.
	case cc.Cfg.Run.ActivationHook != "":
		hook = cc.Cfg.Run.ActivationHook
	default:
		hook = detectPixiHook(cc.Logger)
	}

	nodes, runner, err := resolveNodes(opts, args)
	if err != nil {
		return err
	}

	store, err := openLedger(cc, root)
	if err != nil {
		return err
	}
	defer store.Close()

	eng, err := dispatch.New(dispatch.Config{
		Runner: runner,
		Store:  store,
		Logger: cc.Logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(cmd.ErrOrStderr(), "\nInterrupted, letting in-flight submissions finish...")
			cancel()
		case <-ctx.Done():
		}
	}()

	summary, runErr := eng.Run(ctx, dispatch.RunSpec{
		Dir:            root,
		Nodes:          nodes,
		Command:        command,
		ActivationHook: hook,
		Statuses:       statuses,
		Archive:        opts.Archive,
	})
	if summary != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %d submitted, %d succeeded, %d failed\n",
			summary.RunID, summary.Total, summary.Succeeded, summary.Failed)
		if summary.ArchivePath != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Archived to %s\n", summary.ArchivePath)
		}
	}
	if runErr != nil {
		return runErr
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d submissions failed", summary.Failed, summary.Total)
	}
	return nil
}

// resolveNodes turns the node arguments into the worker pool. With
// --local the pool is the local host repeated --jobs times; otherwise
// the arguments are bracket-expanded hostnames run over ssh.
func resolveNodes(opts *RunOptions, args []string) ([]string, dispatch.Runner, error) {
	if opts.Local {
		if len(args) > 0 {
			return nil, nil, fmt.Errorf("node arguments conflict with --local")
		}
		if opts.Jobs < 1 {
			return nil, nil, fmt.Errorf("jobs must be at least 1, got %d", opts.Jobs)
		}
		nodes := make([]string, opts.Jobs)
		for i := range nodes {
			nodes[i] = "local"
		}
		return nodes, &dispatch.LocalRunner{}, nil
	}

	if opts.Jobs != 1 {
		return nil, nil, fmt.Errorf("--jobs requires --local")
	}
	if len(args) == 0 {
		return nil, nil, fmt.Errorf("no nodes given (pass hostnames or use --local)")
	}
	nodes, err := hostexpand.ExpandAll(args)
	if err != nil {
		return nil, nil, err
	}
	return nodes, nil, nil
}

// detectPixiHook asks pixi for its shell activation snippet. Outside a
// pixi workspace, or without pixi installed, dispatch proceeds with no
// hook.
func detectPixiHook(logger *slog.Logger) string {
	out, err := exec.Command("pixi", "shell-hook").Output()
	if err != nil {
		logger.Debug("no pixi activation hook", slog.String("error", err.Error()))
		return ""
	}
	return string(out)
}
